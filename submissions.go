package insider

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Submissions represents the SEC submissions data for a CIK
type Submissions struct {
	CIK     string      `json:"cik"`
	Name    string      `json:"name"`
	Tickers []string    `json:"tickers"`
	Filings FilingsData `json:"filings"`
}

// FilingsData contains the recent filings block
type FilingsData struct {
	Recent FilingArrays `json:"recent"`
}

// FilingArrays contains parallel arrays of filing data.
// Each index in the arrays represents one filing - a quirk of the
// submissions API that OwnershipFilings flattens into rows.
type FilingArrays struct {
	AccessionNumber []string `json:"accessionNumber"`
	FilingDate      []string `json:"filingDate"`
	ReportDate      []string `json:"reportDate"`
	Form            []string `json:"form"`
	PrimaryDocument []string `json:"primaryDocument"`
}

// Filing represents one Form 3/4/5 row of a company's filing index
type Filing struct {
	CIK             string
	AccessionNumber string
	Form            string
	FilingDate      string
	ReportDate      string
	PrimaryDocument string
}

// FetchSubmissions fetches and parses the CIK submissions JSON from SEC
func (c *Client) FetchSubmissions(ctx context.Context, cik string) (*Submissions, error) {
	url := fmt.Sprintf("%s/submissions/CIK%010s.json", c.dataBaseURL, cik)

	body, err := c.get(ctx, url, "application/json")
	if err != nil {
		return nil, fmt.Errorf("failed to fetch submissions: %w", err)
	}

	var subs Submissions
	if err := json.Unmarshal(body, &subs); err != nil {
		return nil, fmt.Errorf("failed to parse submissions JSON: %w", err)
	}
	return &subs, nil
}

// OwnershipFilings zips the parallel recent-filings arrays into Filing
// rows, keeping only exact Form 3/4/5 entries (amendments like "4/A" are
// excluded) that carry both an accession number and a primary document.
// Upstream ordering (most-recent-first) is preserved.
func (s *Submissions) OwnershipFilings(cik string) []Filing {
	fa := s.Filings.Recent
	var filings []Filing
	for i := range fa.AccessionNumber {
		f := Filing{
			CIK:             cik,
			AccessionNumber: fa.AccessionNumber[i],
		}
		if i < len(fa.Form) {
			f.Form = strings.TrimSpace(fa.Form[i])
		}
		if i < len(fa.FilingDate) {
			f.FilingDate = fa.FilingDate[i]
		}
		if i < len(fa.ReportDate) {
			f.ReportDate = fa.ReportDate[i]
		}
		if i < len(fa.PrimaryDocument) {
			f.PrimaryDocument = fa.PrimaryDocument[i]
		}

		if f.Form != "3" && f.Form != "4" && f.Form != "5" {
			continue
		}
		if f.AccessionNumber == "" || f.PrimaryDocument == "" {
			continue
		}
		filings = append(filings, f)
	}
	return filings
}

// SortFilingsByDateDesc sorts filings most-recent-first by filing date.
// Dates are ISO YYYY-MM-DD so string comparison is sufficient. The sort
// is stable so upstream ordering breaks ties.
func SortFilingsByDateDesc(filings []Filing) {
	sort.SliceStable(filings, func(i, j int) bool {
		return filings[i].FilingDate > filings[j].FilingDate
	})
}

// DocumentURL constructs the SEC EDGAR URL for a filing's raw document.
// Accession number hyphens are removed for the URL path, and for Forms
// 3/4/5 the primaryDocument often points to an HTML rendering
// (xslF345X05/doc4.xml) whose path prefix must be stripped to reach the
// actual XML.
func (c *Client) DocumentURL(f Filing) string {
	doc := f.PrimaryDocument
	if i := strings.LastIndex(doc, "/"); i >= 0 {
		doc = doc[i+1:]
	}
	return fmt.Sprintf("%s/%s/%s/%s",
		c.archivesBaseURL,
		strings.TrimLeft(f.CIK, "0"),
		strings.ReplaceAll(f.AccessionNumber, "-", ""),
		doc,
	)
}

// FilingIndexURL constructs the URL of a filing's index page, which
// lists every document in the submission.
func (c *Client) FilingIndexURL(f Filing) string {
	return fmt.Sprintf("%s/%s/%s/",
		c.archivesBaseURL,
		strings.TrimLeft(f.CIK, "0"),
		strings.ReplaceAll(f.AccessionNumber, "-", ""),
	)
}
