package insider

import (
	"encoding/xml"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// OwnershipDocument represents an SEC Form 3/4/5 insider ownership
// filing. All three forms share the ownershipDocument root element and
// are differentiated by documentType.
type OwnershipDocument struct {
	XMLName            xml.Name            `xml:"ownershipDocument"`
	SchemaVersion      string              `xml:"schemaVersion"`
	DocumentType       string              `xml:"documentType"`
	PeriodOfReport     string              `xml:"periodOfReport"`
	Aff10b5One         bool                `xml:"aff10b5One"` // 10b5-1 trading plan indicator
	Issuer             Issuer              `xml:"issuer"`
	ReportingOwners    []ReportingOwner    `xml:"reportingOwner"`
	NonDerivativeTable *NonDerivativeTable `xml:"nonDerivativeTable"`
	DerivativeTable    *DerivativeTable    `xml:"derivativeTable"`
	Footnotes          []Footnote          `xml:"footnotes>footnote"`
	Remarks            string              `xml:"remarks"`
}

// Issuer represents the company whose stock is being traded
type Issuer struct {
	CIK           string `xml:"issuerCik"`
	Name          string `xml:"issuerName"`
	TradingSymbol string `xml:"issuerTradingSymbol"`
}

// ReportingOwner represents an insider filing the form
type ReportingOwner struct {
	ID           OwnerID      `xml:"reportingOwnerId"`
	Relationship Relationship `xml:"reportingOwnerRelationship"`
}

type OwnerID struct {
	CIK  string `xml:"rptOwnerCik"`
	Name string `xml:"rptOwnerName"`
}

type Relationship struct {
	IsDirector        bool   `xml:"isDirector"`
	IsOfficer         bool   `xml:"isOfficer"`
	IsTenPercentOwner bool   `xml:"isTenPercentOwner"`
	IsOther           bool   `xml:"isOther"`
	OfficerTitle      string `xml:"officerTitle"`
}

// NonDerivativeTable contains direct equity transactions
type NonDerivativeTable struct {
	Transactions []NonDerivativeTransaction `xml:"nonDerivativeTransaction"`
}

// NonDerivativeTransaction represents a stock purchase, sale, or grant
type NonDerivativeTransaction struct {
	SecurityTitle   string             `xml:"securityTitle>value"`
	TransactionDate string             `xml:"transactionDate>value"`
	Coding          TransactionCoding  `xml:"transactionCoding"`
	Amounts         TransactionAmounts `xml:"transactionAmounts"`
	OwnershipNature OwnershipNature    `xml:"ownershipNature"`
}

// DerivativeTable contains option/RSU transactions
type DerivativeTable struct {
	Transactions []DerivativeTransaction `xml:"derivativeTransaction"`
}

type DerivativeTransaction struct {
	SecurityTitle             string             `xml:"securityTitle>value"`
	ConversionOrExercisePrice Value              `xml:"conversionOrExercisePrice"`
	TransactionDate           string             `xml:"transactionDate>value"`
	Coding                    TransactionCoding  `xml:"transactionCoding"`
	Amounts                   TransactionAmounts `xml:"transactionAmounts"`
	OwnershipNature           OwnershipNature    `xml:"ownershipNature"`
}

type TransactionCoding struct {
	FormType   string     `xml:"transactionFormType"`
	Code       string     `xml:"transactionCode"`
	FootnoteID FootnoteID `xml:"footnoteId"`
}

type TransactionAmounts struct {
	Shares           Value  `xml:"transactionShares"`
	PricePerShare    Value  `xml:"transactionPricePerShare"`
	AcquiredDisposed string `xml:"transactionAcquiredDisposedCode>value"`
}

// OwnershipNature describes direct versus indirect ownership; the
// nature element frequently carries only a footnote reference.
type OwnershipNature struct {
	DirectOrIndirect  Value `xml:"directOrIndirectOwnership"`
	NatureOfOwnership Value `xml:"natureOfOwnership"`
}

// Value is the shape EDGAR uses for most scalar fields: a nested value
// element, an optional footnote reference, or both.
type Value struct {
	Value      string     `xml:"value"`
	FootnoteID FootnoteID `xml:"footnoteId"`
}

type FootnoteID struct {
	ID string `xml:"id,attr"`
}

type Footnote struct {
	ID   string `xml:"id,attr"`
	Text string `xml:",chardata"`
}

// Float64 returns the value as float64, handling empty values and footnote refs
func (v Value) Float64() (float64, error) {
	if v.Value == "" {
		return 0, fmt.Errorf("empty value")
	}
	return strconv.ParseFloat(v.Value, 64)
}

// ParseOwnership unmarshals ownership-document XML. The input passes
// through character normalization first; documents whose root element
// is not ownershipDocument fail to unmarshal.
func ParseOwnership(data []byte) (*OwnershipDocument, error) {
	var doc OwnershipDocument
	if err := xml.Unmarshal(normalizeXMLText(data), &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

// ParseFilingTransactions parses one filing's XML into classified
// transactions. Malformed XML and documents without an
// ownershipDocument root yield an empty list, never an error - some
// filed documents are empty shells.
func ParseFilingTransactions(data []byte, filing Filing, source string) []Transaction {
	doc, err := ParseOwnership(data)
	if err != nil {
		return nil
	}
	return doc.Transactions(filing, source)
}

var tenb51Pattern = regexp.MustCompile(`(?i)10b5-1`)

// Transactions extracts classified transactions from a parsed document.
// The non-derivative table contributes rows before the derivative
// table, preserving document order within each.
func (d *OwnershipDocument) Transactions(filing Filing, source string) []Transaction {
	insider := d.insiderName()
	footnotes := d.footnoteTable()
	formType := d.DocumentType
	if formType == "" {
		formType = filing.Form
	}
	if source == "" {
		source = "Form " + formType
	}

	var txns []Transaction
	if d.NonDerivativeTable != nil {
		for _, row := range d.NonDerivativeTable.Transactions {
			t, ok := d.rowTransaction(row.SecurityTitle, row.TransactionDate, row.Coding, row.Amounts, row.OwnershipNature, false, filing, footnotes)
			if !ok {
				continue
			}
			t.Insider = insider
			t.FormType = formType
			t.Source = source
			txns = append(txns, t)
		}
	}
	if d.DerivativeTable != nil {
		for _, row := range d.DerivativeTable.Transactions {
			t, ok := d.rowTransaction(row.SecurityTitle, row.TransactionDate, row.Coding, row.Amounts, row.OwnershipNature, true, filing, footnotes)
			if !ok {
				continue
			}
			t.Insider = insider
			t.FormType = formType
			t.Source = source
			txns = append(txns, t)
		}
	}
	return txns
}

// rowTransaction converts one table row. The second return is false
// when the row is dropped: non-positive or non-numeric share counts,
// and the non-derivative M/acquired echo of a derivative exercise.
func (d *OwnershipDocument) rowTransaction(securityTitle, date string, coding TransactionCoding, amounts TransactionAmounts, nature OwnershipNature, isDerivative bool, filing Filing, footnotes map[string]string) (Transaction, bool) {
	shares, err := amounts.Shares.Float64()
	if err != nil || math.IsNaN(shares) || math.IsInf(shares, 0) || shares <= 0 {
		return Transaction{}, false
	}

	ttype, keep := classifyTransaction(coding.Code, amounts.AcquiredDisposed, isDerivative)
	if !keep {
		return Transaction{}, false
	}

	var price *float64
	if p, err := amounts.PricePerShare.Float64(); err == nil && !math.IsNaN(p) && !math.IsInf(p, 0) {
		price = &p
	}

	if date == "" {
		date = filing.ReportDate
	}
	if date == "" {
		date = filing.FilingDate
	}
	if date == "" {
		date = d.PeriodOfReport
	}

	if securityTitle == "" && isDerivative {
		securityTitle = "Derivative"
	}

	note, under10b51 := d.resolveNotes(coding, nature, footnotes)

	return Transaction{
		Date:            date,
		TransactionCode: coding.Code,
		Type:            ttype,
		Shares:          shares,
		Price:           price,
		SecurityTitle:   securityTitle,
		Note:            note,
		Under10b51:      under10b51,
	}, true
}

// resolveNotes looks up the footnotes referenced from a row's coding
// block and its nature-of-indirect-ownership block, and reports whether
// any of them (or the document-level flag) indicate a Rule 10b5-1
// trading plan.
func (d *OwnershipDocument) resolveNotes(coding TransactionCoding, nature OwnershipNature, footnotes map[string]string) (string, bool) {
	under10b51 := d.Aff10b5One

	var notes []string
	for _, id := range []string{coding.FootnoteID.ID, nature.NatureOfOwnership.FootnoteID.ID} {
		if id == "" {
			continue
		}
		text, ok := footnotes[id]
		if !ok {
			continue
		}
		if tenb51Pattern.MatchString(text) {
			under10b51 = true
		}
		notes = append(notes, text)
	}
	if nature.NatureOfOwnership.Value != "" {
		notes = append(notes, cleanExtractedText(nature.NatureOfOwnership.Value))
	}
	return strings.Join(notes, "; "), under10b51
}

// insiderName joins all reporting owners into a single display name.
// Joint filers are common on family trust and fund filings.
func (d *OwnershipDocument) insiderName() string {
	var names []string
	for _, owner := range d.ReportingOwners {
		name := strings.TrimSpace(owner.ID.Name)
		if name == "" {
			continue
		}
		if title := strings.TrimSpace(owner.Relationship.OfficerTitle); title != "" {
			name = fmt.Sprintf("%s (%s)", name, title)
		}
		names = append(names, name)
	}
	return strings.Join(names, ", ")
}

// footnoteTable maps footnote id to cleaned footnote text
func (d *OwnershipDocument) footnoteTable() map[string]string {
	table := make(map[string]string, len(d.Footnotes))
	for _, fn := range d.Footnotes {
		if fn.ID == "" {
			continue
		}
		table[fn.ID] = cleanExtractedText(fn.Text)
	}
	return table
}
