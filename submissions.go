package edgar

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"strings"
)

// SubmissionsURL is the base of the per-CIK submissions API
const SubmissionsURL = "https://data.sec.gov/submissions/"

// Submissions represents the complete SEC submissions data for a CIK
type Submissions struct {
	CIK            string      `json:"cik"`
	EntityType     string      `json:"entityType"`
	SIC            string      `json:"sic"`
	SICDescription string      `json:"sicDescription"`
	Name           string      `json:"name"`
	Ticker         []string    `json:"tickers"`
	Exchanges      []string    `json:"exchanges"`
	FiscalYearEnd  string      `json:"fiscalYearEnd"`
	Filings        FilingsData `json:"filings"`
}

// FilingsData contains recent and paginated filings information
type FilingsData struct {
	Recent FilingArrays `json:"recent"`
	Files  []FilingFile `json:"files"`
}

// FilingFile represents a paginated file containing older filings
type FilingFile struct {
	Name        string `json:"name"`
	FilingCount int    `json:"filingCount"`
	FilingFrom  string `json:"filingFrom"`
	FilingTo    string `json:"filingTo"`
}

// FilingArrays contains parallel arrays of filing data.
// Each index in the arrays represents one filing
type FilingArrays struct {
	AccessionNumber       []string `json:"accessionNumber"`
	FilingDate            []string `json:"filingDate"`
	ReportDate            []string `json:"reportDate"`
	AcceptanceDateTime    []string `json:"acceptanceDateTime"`
	Form                  []string `json:"form"`
	IsXBRL                []int    `json:"isXBRL"`
	PrimaryDocument       []string `json:"primaryDocument"`
	PrimaryDocDescription []string `json:"primaryDocDescription"`
}

// FilingRecord is one filing listed by the submissions API
type FilingRecord struct {
	AccessionNumber       string `json:"accessionNumber"`
	FilingDate            string `json:"filingDate"`
	ReportDate            string `json:"reportDate,omitempty"`
	AcceptanceDateTime    string `json:"acceptanceDateTime,omitempty"`
	Form                  string `json:"form"`
	IsXBRL                bool   `json:"isXBRL"`
	PrimaryDocument       string `json:"primaryDocument,omitempty"`
	PrimaryDocDescription string `json:"primaryDocDescription,omitempty"`
	CIK                   string `json:"cik"`
	URL                   string `json:"url"` // Primary document
}

// FetchSubmissions fetches and parses the CIK submissions JSON from SEC
func FetchSubmissions(ctx context.Context, r Retriever, cik string) (*Submissions, error) {
	url := fmt.Sprintf("%sCIK%s.json", SubmissionsURL, PadCIK(cik))

	text, err := r.Fetch(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch submissions: %w", err)
	}
	return ParseSubmissions(strings.NewReader(text))
}

// PadCIK left-pads a CIK with zeros to the 10 digits the API expects
func PadCIK(cik string) string {
	cik = strings.TrimSpace(cik)
	if len(cik) >= 10 {
		return cik
	}
	return strings.Repeat("0", 10-len(cik)) + cik
}

// ParseSubmissions parses a submissions JSON from a reader (for local files or testing)
func ParseSubmissions(r io.Reader) (*Submissions, error) {
	var subs Submissions
	if err := json.NewDecoder(r).Decode(&subs); err != nil {
		return nil, fmt.Errorf("failed to parse submissions JSON: %w", err)
	}
	return &subs, nil
}

// GetFilings converts the parallel arrays into records. Optional arrays
// shorter than the accession list leave their fields empty.
func (fa *FilingArrays) GetFilings(cik string) []FilingRecord {
	count := len(fa.AccessionNumber)
	records := make([]FilingRecord, count)

	at := func(values []string, i int) string {
		if i < len(values) {
			return values[i]
		}
		return ""
	}

	for i := 0; i < count; i++ {
		rec := FilingRecord{
			CIK:                   cik,
			AccessionNumber:       fa.AccessionNumber[i],
			FilingDate:            at(fa.FilingDate, i),
			ReportDate:            at(fa.ReportDate, i),
			AcceptanceDateTime:    at(fa.AcceptanceDateTime, i),
			Form:                  at(fa.Form, i),
			PrimaryDocument:       at(fa.PrimaryDocument, i),
			PrimaryDocDescription: at(fa.PrimaryDocDescription, i),
		}
		if i < len(fa.IsXBRL) {
			rec.IsXBRL = fa.IsXBRL[i] != 0
		}
		rec.URL = rec.BuildURL()
		records[i] = rec
	}
	return records
}

// BuildURL constructs the URL of the filing's primary document
func (f *FilingRecord) BuildURL() string {
	// Primary documents rendered through a stylesheet look like
	// "xslF345X05/doc4.xml"; the archive holds "doc4.xml"
	doc := f.PrimaryDocument
	if i := strings.LastIndex(doc, "/"); i >= 0 {
		doc = doc[i+1:]
	}

	// https://www.sec.gov/Archives/edgar/data/{CIK}/{ACCESSION}/{PRIMARY_DOCUMENT}
	return fmt.Sprintf("%sedgar/data/%s/%s/%s",
		ArchivesURL,
		strings.TrimLeft(f.CIK, "0"),
		strings.ReplaceAll(f.AccessionNumber, "-", ""),
		doc,
	)
}

// SubmissionURL is the full submission text file, the input of ParseFiling:
// https://www.sec.gov/Archives/edgar/data/{CIK}/{ACCESSION-WITH-DASHES}.txt
func (f *FilingRecord) SubmissionURL() string {
	return fmt.Sprintf("%sedgar/data/%s/%s.txt", ArchivesURL, strings.TrimLeft(f.CIK, "0"), f.AccessionNumber)
}

// GetRecentFilings returns all recent filings as a slice
func (s *Submissions) GetRecentFilings() []FilingRecord {
	return s.Filings.Recent.GetFilings(s.CIK)
}

// FilterByForm keeps filings whose form is one of forms (exact match, so
// amendments such as "10-K/A" must be listed explicitly)
func FilterByForm(filings []FilingRecord, forms ...string) []FilingRecord {
	normalized := make([]string, len(forms))
	for i, f := range forms {
		normalized[i] = strings.ToUpper(strings.TrimSpace(f))
	}

	var filtered []FilingRecord
	for _, f := range filings {
		if slices.Contains(normalized, strings.ToUpper(f.Form)) {
			filtered = append(filtered, f)
		}
	}
	return filtered
}

// FilterByPeriod keeps the annual or quarterly report filings
func FilterByPeriod(filings []FilingRecord, period Period) []FilingRecord {
	return FilterByForm(filings, FinancialForms[period]...)
}

// FilterByDateRange filters filings by date range (inclusive).
// Dates should be in YYYY-MM-DD format; an empty bound is open.
func FilterByDateRange(filings []FilingRecord, from, to string) []FilingRecord {
	var filtered []FilingRecord
	for _, f := range filings {
		if from != "" && f.FilingDate < from {
			continue
		}
		if to != "" && f.FilingDate > to {
			continue
		}
		filtered = append(filtered, f)
	}
	return filtered
}

// FetchPaginatedFilings fetches and parses a paginated filings file
func FetchPaginatedFilings(ctx context.Context, r Retriever, filename string) (*FilingArrays, error) {
	text, err := r.Fetch(ctx, SubmissionsURL+filename)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch paginated filings: %w", err)
	}

	// Paginated files only contain the FilingArrays
	var filings FilingArrays
	if err := json.Unmarshal([]byte(text), &filings); err != nil {
		return nil, fmt.Errorf("failed to parse paginated filings JSON: %w", err)
	}
	return &filings, nil
}

// GetAllFilings returns recent filings followed by every paginated file.
// Requests are spaced by the Retriever.
func (s *Submissions) GetAllFilings(ctx context.Context, r Retriever) ([]FilingRecord, error) {
	all := s.GetRecentFilings()

	for _, file := range s.Filings.Files {
		page, err := FetchPaginatedFilings(ctx, r, file.Name)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch %s: %w", file.Name, err)
		}
		all = append(all, page.GetFilings(s.CIK)...)
	}
	return all, nil
}
