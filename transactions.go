package insider

import "strings"

// TradeType classifies the direction of an insider transaction
type TradeType string

const (
	TypeBuy      TradeType = "buy"
	TypeSell     TradeType = "sell"
	TypeExercise TradeType = "exercise"
	TypeOther    TradeType = "other"
)

// Transaction is one disclosed insider transaction. Several may
// originate from a single filing: the non-derivative and derivative
// tables are parsed separately and a filing can report multiple rows.
type Transaction struct {
	Date            string    `json:"date"`
	Insider         string    `json:"insider"`
	FormType        string    `json:"formType"`
	TransactionCode string    `json:"transactionCode,omitempty"`
	Type            TradeType `json:"type"`
	Shares          float64   `json:"shares"`
	Price           *float64  `json:"price"`
	SecurityTitle   string    `json:"securityTitle,omitempty"`
	Source          string    `json:"source"`
	Note            string    `json:"note,omitempty"`
	Under10b51      bool      `json:"under10b51,omitempty"`

	// Placeholder marks a synthesized row standing in for a filing
	// whose contents could not be extracted. Placeholders carry zero
	// shares and are exempt from the positive-shares rule.
	Placeholder bool `json:"placeholder,omitempty"`
}

// Summary aggregates a transaction list into buy/sell/net share totals
type Summary struct {
	TotalBuyShares  float64 `json:"totalBuyShares"`
	TotalSellShares float64 `json:"totalSellShares"`
	NetShares       float64 `json:"netShares"`
}

// LookupResult is the unit returned to callers and the unit of caching
type LookupResult struct {
	Ticker       string        `json:"ticker"`
	CIK          string        `json:"cik"`
	Summary      Summary       `json:"summary"`
	Transactions []Transaction `json:"transactions"`
}

// classifyTransaction maps an SEC transaction code and acquired/disposed
// flag to a trade type. The code is the primary signal; the A/D flag is
// the fallback for unmapped codes.
//
// The second return is false when the row must be dropped entirely: an
// M code on a non-derivative row with an "acquired" disposition is an
// echo of shares already represented by the corresponding derivative
// exercise row, and keeping both would double-count.
func classifyTransaction(code, acquiredDisposed string, isDerivative bool) (TradeType, bool) {
	ad := strings.ToUpper(strings.TrimSpace(acquiredDisposed))

	switch strings.ToUpper(strings.TrimSpace(code)) {
	case "M":
		if !isDerivative && ad == "A" {
			return TypeOther, false
		}
		return TypeExercise, true
	case "F", "S", "D":
		return TypeSell, true
	case "P", "A":
		return TypeBuy, true
	case "C", "G":
		return TypeOther, true
	}

	switch ad {
	case "A":
		return TypeBuy, true
	case "D":
		return TypeSell, true
	}
	return TypeOther, true
}

// TransactionCodeDescription returns human-readable transaction code
func TransactionCodeDescription(code string) string {
	descriptions := map[string]string{
		"P": "Open Market Purchase",
		"S": "Open Market Sale",
		"A": "Grant, Award or Other Acquisition",
		"D": "Disposition to the Issuer",
		"F": "Payment of Exercise Price or Tax Liability",
		"G": "Gift",
		"M": "Exercise or Conversion of Derivative Security",
		"C": "Conversion of Derivative Security",
	}
	return descriptions[code]
}

// Summarize reduces a transaction list into buy/sell/net totals.
// Exercise and other rows (including placeholders) contribute to
// neither total.
func Summarize(txns []Transaction) Summary {
	var s Summary
	for _, t := range txns {
		switch t.Type {
		case TypeBuy:
			s.TotalBuyShares += t.Shares
		case TypeSell:
			s.TotalSellShares += t.Shares
		}
		s.NetShares = s.TotalBuyShares - s.TotalSellShares
	}
	return s
}

// unavailableNote is attached to placeholder transactions
const unavailableNote = "Transaction details unavailable"

// PlaceholderTransaction synthesizes a stand-in row for a filing that
// exists in the index but whose document could not be fetched or
// yielded no transactions.
func PlaceholderTransaction(f Filing, source string) Transaction {
	date := f.ReportDate
	if date == "" {
		date = f.FilingDate
	}
	return Transaction{
		Date:        date,
		FormType:    f.Form,
		Type:        TypeOther,
		Shares:      0,
		Source:      source,
		Note:        unavailableNote,
		Placeholder: true,
	}
}
