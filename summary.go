package edgar

import (
	"encoding/xml"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"
)

// ErrNotFound is returned (wrapped) when a lookup has no match
var ErrNotFound = errors.New("not found")

// FilingSummaryFilename is the generated catalog of rendered reports
const FilingSummaryFilename = "FilingSummary.xml"

// Statement short names as they appear in FilingSummary.xml, lowercased.
// Issuers word their statements differently, so each statement has a list
// of phrasings checked in order.
var (
	IncomeStatementNames = []string{
		"consolidated statements of income",
		"consolidated statements of operations",
		"consolidated statement of earnings",
		"condensed consolidated statements of income (unaudited)",
		"condensed consolidated statements of income",
		"condensed consolidated statements of operations (unaudited)",
		"condensed consolidated statements of operations",
		"condensed consolidated statement of earnings (unaudited)",
		"condensed consolidated statement of earnings",
		"condensed statements of income",
		"condensed statements of operations",
		"condensed statements of operations and comprehensive loss",
	}

	BalanceSheetNames = []string{
		"consolidated balance sheets",
		"consolidated statement of financial position",
		"condensed consolidated statement of financial position (current period unaudited)",
		"condensed consolidated statement of financial position (unaudited)",
		"condensed consolidated statement of financial position",
		"condensed consolidated balance sheets (current period unaudited)",
		"condensed consolidated balance sheets (unaudited)",
		"condensed consolidated balance sheets",
		"condensed balance sheets",
	}

	CashFlowNames = []string{
		"consolidated statements of cash flows",
		"condensed consolidated statements of cash flows (unaudited)",
		"condensed consolidated statements of cash flows",
		"condensed statements of cash flows",
	}
)

// AllStatementNames returns the income, balance sheet and cash flow
// catalogs concatenated in that order
func AllStatementNames() []string {
	all := make([]string, 0, len(IncomeStatementNames)+len(BalanceSheetNames)+len(CashFlowNames))
	all = append(all, IncomeStatementNames...)
	all = append(all, BalanceSheetNames...)
	all = append(all, CashFlowNames...)
	return all
}

// ReportEntry is one <Report> of a filing summary
type ReportEntry struct {
	ShortName    string `json:"shortName"`
	LongName     string `json:"longName,omitempty"`
	HTMLFileName string `json:"htmlFileName"`
	MenuCategory string `json:"menuCategory,omitempty"`
	Position     int    `json:"position,omitempty"`
}

// FilingSummary is the XML catalog of rendered reports, FilingSummary.xml
type FilingSummary struct {
	XMLName   xml.Name `xml:"FilingSummary"`
	MyReports struct {
		Report []summaryReport `xml:"Report"`
	} `xml:"MyReports"`
}

type summaryReport struct {
	ShortName    string `xml:"ShortName"`
	LongName     string `xml:"LongName"`
	HTMLFileName string `xml:"HtmlFileName"`
	MenuCategory string `xml:"MenuCategory"`
	Position     string `xml:"Position"`
}

// Reports lists the report entries of a filing summary body.
// Reports without a ShortName are skipped.
func Reports(summary *Body) ([]ReportEntry, error) {
	if summary == nil {
		return nil, fmt.Errorf("filing summary: %w", ErrNotFound)
	}
	var fs FilingSummary
	if err := summary.Unmarshal(&fs); err != nil {
		return nil, fmt.Errorf("failed to read filing summary: %w", err)
	}

	var reports []ReportEntry
	for _, r := range fs.MyReports.Report {
		short := strings.TrimSpace(r.ShortName)
		if short == "" {
			continue
		}
		entry := ReportEntry{
			ShortName:    short,
			LongName:     strings.TrimSpace(r.LongName),
			HTMLFileName: strings.TrimSpace(r.HTMLFileName),
			MenuCategory: strings.TrimSpace(r.MenuCategory),
		}
		if pos, err := strconv.Atoi(strings.TrimSpace(r.Position)); err == nil {
			entry.Position = pos
		}
		reports = append(reports, entry)
	}
	return reports, nil
}

// normalizeShortName lowercases and collapses whitespace
func normalizeShortName(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// FindReportFilename returns the HtmlFileName of the first report whose
// short name equals one of the candidates. Candidates are tried in order,
// so earlier names take priority. The match is case-insensitive and
// ignores repeated whitespace. When nothing matches the returned error
// wraps ErrNotFound and lists the closest short names in the summary.
func FindReportFilename(summary *Body, candidates []string) (string, error) {
	reports, err := Reports(summary)
	if err != nil {
		return "", err
	}

	byName := make(map[string]string, len(reports))
	for _, r := range reports {
		key := normalizeShortName(r.ShortName)
		if _, seen := byName[key]; !seen {
			byName[key] = r.HTMLFileName
		}
	}

	for _, c := range candidates {
		if filename, ok := byName[normalizeShortName(c)]; ok {
			return filename, nil
		}
	}

	near := nearMisses(reports, candidates, 3)
	if len(near) > 0 {
		return "", fmt.Errorf("no report matches %d candidate names (closest: %s): %w",
			len(candidates), strings.Join(near, "; "), ErrNotFound)
	}
	return "", fmt.Errorf("no report matches %d candidate names: %w", len(candidates), ErrNotFound)
}

// SearchReports ranks report short names that contain the query as a
// fuzzy subsequence, best match first
func SearchReports(summary *Body, query string) ([]ReportEntry, error) {
	reports, err := Reports(summary)
	if err != nil {
		return nil, err
	}

	names := make([]string, len(reports))
	for i, r := range reports {
		names[i] = normalizeShortName(r.ShortName)
	}

	ranks := fuzzy.RankFindFold(normalizeShortName(query), names)
	sort.Sort(ranks)

	out := make([]ReportEntry, 0, len(ranks))
	for _, r := range ranks {
		out = append(out, reports[r.OriginalIndex])
	}
	return out, nil
}

// nearMisses returns up to limit short names within a small edit distance
// of any candidate, closest first
func nearMisses(reports []ReportEntry, candidates []string, limit int) []string {
	type scored struct {
		name string
		dist int
	}
	var found []scored
	seen := make(map[string]bool)

	for _, r := range reports {
		name := normalizeShortName(r.ShortName)
		if seen[name] {
			continue
		}
		seen[name] = true

		best := -1
		for _, c := range candidates {
			c = normalizeShortName(c)
			d := fuzzy.LevenshteinDistance(name, c)
			threshold := len(c) / 5
			if threshold < 3 {
				threshold = 3
			}
			if d <= threshold && (best < 0 || d < best) {
				best = d
			}
		}
		if best >= 0 {
			found = append(found, scored{name: r.ShortName, dist: best})
		}
	}

	sort.SliceStable(found, func(i, j int) bool { return found[i].dist < found[j].dist })

	var out []string
	for i := 0; i < len(found) && i < limit; i++ {
		out = append(out, found[i].name)
	}
	return out
}
