package edgar

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const (
	ArchivesURL  = "https://www.sec.gov/Archives/"
	FullIndexURL = ArchivesURL + "edgar/full-index/"

	// CompanyIndex lists every filing of a quarter, sorted by company name
	CompanyIndex = "company.idx"

	// EdgarMinYear is the first year with full-index data
	EdgarMinYear = 1993
)

// Period selects annual or quarterly financial reports
type Period string

const (
	Annual    Period = "annual"
	Quarterly Period = "quarterly"
)

// FinancialForms maps a period to the form types that carry its statements
var FinancialForms = map[Period][]string{
	Annual:    {"10-K", "10-K/A"},
	Quarterly: {"10-Q", "10-Q/A"},
}

// OwnershipForms carry issuerTradingSymbol
var OwnershipForms = []string{"3", "4", "5"}

// SupportedForms are the form types an index query may filter on
var SupportedForms = slices.Concat(FinancialForms[Annual], FinancialForms[Quarterly], OwnershipForms)

// ParsePeriod accepts "annual" or "quarterly", case-insensitively
func ParsePeriod(s string) (Period, error) {
	p := Period(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := FinancialForms[p]; !ok {
		return "", &InvalidInputError{Field: "period", Value: s, Reason: `must be "annual" or "quarterly"`}
	}
	return p, nil
}

// InvalidInputError reports a caller-supplied argument outside its domain
type InvalidInputError struct {
	Field  string
	Value  string
	Reason string
}

func (e *InvalidInputError) Error() string {
	return fmt.Sprintf("invalid %s %q: %s", e.Field, e.Value, e.Reason)
}

// ValidateYearQuarter checks an index year and quarter. Zero means "latest"
// for either. A quarter without a year is rejected because the full index
// only has quarter directories below a year.
func ValidateYearQuarter(year, quarter int, now time.Time) error {
	if year != 0 && (year < EdgarMinYear || year > now.Year()) {
		return &InvalidInputError{
			Field:  "year",
			Value:  strconv.Itoa(year),
			Reason: fmt.Sprintf("must be between %d and %d", EdgarMinYear, now.Year()),
		}
	}
	if quarter < 0 || quarter > 4 {
		return &InvalidInputError{
			Field:  "quarter",
			Value:  strconv.Itoa(quarter),
			Reason: "must be 1, 2, 3, or 4; 0 selects the latest",
		}
	}
	if year == 0 && quarter != 0 {
		return &InvalidInputError{Field: "quarter", Value: strconv.Itoa(quarter), Reason: "requires a year"}
	}
	return nil
}

// CompanyIndexURL returns the company.idx location for a year and quarter;
// zero values select the current quarter's index
func CompanyIndexURL(year, quarter int) string {
	var b strings.Builder
	b.WriteString(FullIndexURL)
	if year != 0 {
		fmt.Fprintf(&b, "%d/", year)
	}
	if quarter != 0 {
		fmt.Fprintf(&b, "QTR%d/", quarter)
	}
	b.WriteString(CompanyIndex)
	return b.String()
}

// FilingInfo is one row of a full-index listing
type FilingInfo struct {
	Company   string `json:"company"`
	Form      string `json:"form"`
	CIK       string `json:"cik"`
	DateFiled string `json:"dateFiled"` // YYYY-MM-DD
	URL       string `json:"url"`       // Full submission text file
}

// IndexFilter narrows index rows; empty fields match everything
type IndexFilter struct {
	CIK   string
	Forms []string
}

func (f IndexFilter) matches(info FilingInfo) bool {
	if f.CIK != "" && strings.TrimLeft(info.CIK, "0") != strings.TrimLeft(f.CIK, "0") {
		return false
	}
	return len(f.Forms) == 0 || slices.Contains(f.Forms, info.Form)
}

var indexColumns = []string{"Company Name", "Form Type", "CIK", "Date Filed", "File Name"}

// ParseCompanyIndex reads a company.idx listing. Columns are fixed width;
// their offsets come from the "Company Name ... File Name" header line,
// which is followed by a dashed separator.
func ParseCompanyIndex(r io.Reader, filter IndexFilter) ([]FilingInfo, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var offsets []int
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, indexColumns[0]) {
			continue
		}
		for _, col := range indexColumns {
			i := strings.Index(line, col)
			if i < 0 {
				return nil, fmt.Errorf("index header is missing column %q", col)
			}
			offsets = append(offsets, i)
		}
		break
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read index: %w", err)
	}
	if offsets == nil {
		return nil, fmt.Errorf("index has no %q header line", indexColumns[0])
	}

	var infos []FilingInfo
	for scanner.Scan() {
		line := scanner.Text()
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.Trim(trimmed, "-") == "" {
			continue
		}

		info := FilingInfo{
			Company:   column(line, offsets, 0),
			Form:      column(line, offsets, 1),
			CIK:       column(line, offsets, 2),
			DateFiled: column(line, offsets, 3),
		}
		file := column(line, offsets, 4)
		if file == "" {
			continue
		}
		info.URL = ArchivesURL + file

		if filter.matches(info) {
			infos = append(infos, info)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read index: %w", err)
	}
	return infos, nil
}

// column slices field i out of a fixed-width line; the last field runs to
// the end of the line
func column(line string, offsets []int, i int) string {
	start := offsets[i]
	if start >= len(line) {
		return ""
	}
	end := len(line)
	if i+1 < len(offsets) && offsets[i+1] < end {
		end = offsets[i+1]
	}
	return strings.TrimSpace(line[start:end])
}

// IndexClient queries the EDGAR full index
type IndexClient struct {
	retriever Retriever
	now       func() time.Time
	logger    zerolog.Logger
}

// NewIndexClient returns an IndexClient reading through r
func NewIndexClient(r Retriever, logger zerolog.Logger) *IndexClient {
	return &IndexClient{retriever: r, now: time.Now, logger: logger}
}

// FilingInfo lists the filings of a year and quarter that pass filter
func (c *IndexClient) FilingInfo(ctx context.Context, filter IndexFilter, year, quarter int) ([]FilingInfo, error) {
	if err := ValidateYearQuarter(year, quarter, c.now()); err != nil {
		return nil, err
	}
	for _, form := range filter.Forms {
		if !slices.Contains(SupportedForms, form) {
			return nil, &InvalidInputError{Field: "form", Value: form, Reason: "not a supported form"}
		}
	}

	url := CompanyIndexURL(year, quarter)
	c.logger.Info().Str("url", url).Msg("getting filing info")

	text, err := c.retriever.Fetch(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", url, err)
	}
	return ParseCompanyIndex(strings.NewReader(text), filter)
}

// FinancialFilingInfo lists the annual or quarterly report filings of cik
func (c *IndexClient) FinancialFilingInfo(ctx context.Context, period Period, cik string, year, quarter int) ([]FilingInfo, error) {
	forms, ok := FinancialForms[period]
	if !ok {
		return nil, &InvalidInputError{Field: "period", Value: string(period), Reason: `must be "annual" or "quarterly"`}
	}
	return c.FilingInfo(ctx, IndexFilter{CIK: cik, Forms: forms}, year, quarter)
}
