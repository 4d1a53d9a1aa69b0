package edgar

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog"
	"golang.org/x/net/html"
)

// Fact is a single value of a financial statement line item
type Fact struct {
	Key           string    `json:"key"`   // Accounting element, e.g. "us-gaap_Revenues"
	Label         string    `json:"label"` // Row label as rendered
	StandardLabel string    `json:"standardLabel,omitempty"`
	Date          time.Time `json:"date"`
	PeriodMonths  *int      `json:"periodMonths,omitempty"` // nil for balance sheet snapshots
	Value         float64   `json:"value"`                  // Already multiplied by Scale
	Scale         float64   `json:"scale"`
}

// StatementSnapshot holds the facts of one column of a statement.
// Each key appears at most once; the first value seen for a key is kept.
type StatementSnapshot struct {
	Date         time.Time
	PeriodMonths *int

	facts map[string]Fact
	order []string
}

func newSnapshot(date time.Time, months *int) *StatementSnapshot {
	return &StatementSnapshot{
		Date:         date,
		PeriodMonths: months,
		facts:        make(map[string]Fact),
	}
}

// add stores f unless its key is already present
func (s *StatementSnapshot) add(f Fact) bool {
	if _, exists := s.facts[f.Key]; exists {
		return false
	}
	s.facts[f.Key] = f
	s.order = append(s.order, f.Key)
	return true
}

// Len returns the number of facts
func (s *StatementSnapshot) Len() int { return len(s.order) }

// Fact returns the fact stored for key
func (s *StatementSnapshot) Fact(key string) (Fact, bool) {
	f, ok := s.facts[key]
	return f, ok
}

// Facts returns the facts in table row order
func (s *StatementSnapshot) Facts() []Fact {
	out := make([]Fact, 0, len(s.order))
	for _, k := range s.order {
		out = append(out, s.facts[k])
	}
	return out
}

// Keys returns the accounting keys in table row order
func (s *StatementSnapshot) Keys() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

func (s *StatementSnapshot) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Date         string `json:"date"`
		PeriodMonths *int   `json:"periodMonths,omitempty"`
		Facts        []Fact `json:"facts"`
	}{
		Date:         s.Date.Format("2006-01-02"),
		PeriodMonths: s.PeriodMonths,
		Facts:        s.Facts(),
	})
}

// FinancialReport is one rendered financial statement (R*.htm)
type FinancialReport struct {
	Company    string               `json:"company,omitempty"`
	DateFiled  time.Time            `json:"-"` // Zero when the filing has no FILED date
	Title      string               `json:"title"`
	UnitText   string               `json:"unitText,omitempty"`
	IsSnapshot bool                 `json:"isSnapshot"`
	Snapshots  []*StatementSnapshot `json:"snapshots"`
}

// MarshalJSON writes dateFiled as YYYY-MM-DD and leaves it out when unknown
func (r *FinancialReport) MarshalJSON() ([]byte, error) {
	type plain FinancialReport
	out := struct {
		*plain
		DateFiled string `json:"dateFiled,omitempty"`
	}{plain: (*plain)(r)}
	if !r.DateFiled.IsZero() {
		out.DateFiled = r.DateFiled.Format("2006-01-02")
	}
	return json.Marshal(out)
}

// LayoutError means the table does not follow the rendered report layout
type LayoutError struct {
	Reason  string
	Dates   []string
	Periods int
}

func (e *LayoutError) Error() string {
	if e.Dates != nil || e.Periods > 0 {
		return fmt.Sprintf("unexpected report layout: %s (%d dates %v, %d periods)", e.Reason, len(e.Dates), e.Dates, e.Periods)
	}
	return fmt.Sprintf("unexpected report layout: %s", e.Reason)
}

// MissingKeyPolicy decides what happens to numeric cells in a row whose
// label cell carries no accounting key
type MissingKeyPolicy int

const (
	// MissingKeySkip logs a warning and drops the row's values (default)
	MissingKeySkip MissingKeyPolicy = iota
	// MissingKeyCarryPrior files the values under the last key seen in any
	// earlier row, or under "" when there is none
	MissingKeyCarryPrior
)

// ExtractOption configures ExtractReport
type ExtractOption func(*extractor)

// WithMissingKeyPolicy overrides MissingKeySkip
func WithMissingKeyPolicy(p MissingKeyPolicy) ExtractOption {
	return func(e *extractor) {
		e.missingKey = p
	}
}

// WithExtractLogger sets the logger for extraction warnings
func WithExtractLogger(logger zerolog.Logger) ExtractOption {
	return func(e *extractor) {
		e.logger = logger
	}
}

type extractor struct {
	logger     zerolog.Logger
	missingKey MissingKeyPolicy
}

// header is what the first two rows of a report table describe
type header struct {
	title      string
	unitText   string
	isSnapshot bool
	dates      []string
	periods    []*int
}

var (
	nonAmountRe   = regexp.MustCompile(`[^0-9.]`)
	footnoteRefRe = regexp.MustCompile(`\[\d+\]`)
	digitsRe      = regexp.MustCompile(`[^0-9]`)
	headerDateRe  = regexp.MustCompile(`[A-Za-z]{3,9}\.? \d{1,2}, \d{4}`)
)

// dateLayouts are tried in order against header dates
var dateLayouts = []string{
	"Jan. 2, 2006",
	"Jan 2, 2006",
	"January 2, 2006",
}

// ExtractReport parses the rendered statement table (table.report) of an
// R*.htm document into a FinancialReport.
func ExtractReport(tableHTML string, opts ...ExtractOption) (*FinancialReport, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(tableHTML))
	if err != nil {
		return nil, fmt.Errorf("failed to parse report HTML: %w", err)
	}
	return newExtractor(opts).extract(doc)
}

// ExtractReportBody is ExtractReport for a document body, reusing the
// body's cached HTML tree
func ExtractReportBody(body *Body, opts ...ExtractOption) (*FinancialReport, error) {
	if body == nil || body.Kind != BodyTabular {
		return nil, &LayoutError{Reason: "no table with class \"report\""}
	}
	doc, err := body.Markup()
	if err != nil {
		return nil, err
	}
	return newExtractor(opts).extract(doc)
}

func newExtractor(opts []ExtractOption) *extractor {
	ex := &extractor{logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(ex)
	}
	return ex
}

func (ex *extractor) extract(doc *goquery.Document) (*FinancialReport, error) {
	table := doc.Find("table.report").First()
	if table.Length() == 0 {
		return nil, &LayoutError{Reason: "no table with class \"report\""}
	}

	// Rows of this table only, not of nested footnote tables
	rows := table.Find("tr").FilterFunction(func(_ int, s *goquery.Selection) bool {
		return s.Closest("table").IsSelection(table)
	})

	h, err := scanHeader(rows)
	if err != nil {
		return nil, err
	}

	snapshots := make([]*StatementSnapshot, len(h.dates))
	for i, raw := range h.dates {
		date, err := parseHeaderDate(raw)
		if err != nil {
			return nil, err
		}
		snapshots[i] = newSnapshot(date, h.periods[i])
	}

	ex.scanRows(rows, h, snapshots)

	report := &FinancialReport{
		Title:      h.title,
		UnitText:   h.unitText,
		IsSnapshot: h.isSnapshot,
	}
	for _, s := range snapshots {
		if s.Len() > 0 {
			report.Snapshots = append(report.Snapshots, s)
		}
	}
	return report, nil
}

// scanHeader reads the title, unit text, dates and periods from the first
// two rows. A title cell spanning several columns pushes the extra span
// onto the first period cell of row 0 and the first date cell of row 1.
func scanHeader(rows *goquery.Selection) (*header, error) {
	h := &header{}
	titleRepeat := 0

	for rowNum := 0; rowNum < 2 && rowNum < rows.Length(); rowNum++ {
		cells := rows.Eq(rowNum).ChildrenFiltered("th")

		var scanErr error
		cells.EachWithBreak(func(index int, cell *goquery.Selection) bool {
			text := cleanCellText(cell.Text())
			repeat := colspan(cell)

			switch {
			case rowNum == 0 && cell.HasClass("tl"):
				if repeat > 1 {
					titleRepeat = repeat - 1
				}
				h.title, h.unitText = titleAndUnits(cell, text)
				lower := strings.ToLower(h.title)
				if strings.Contains(lower, "balance") || strings.Contains(lower, "financial position") {
					h.isSnapshot = true
				}

			case rowNum == 0 && cell.HasClass("th"):
				if index == 1 {
					repeat += titleRepeat
				}
				if h.isSnapshot {
					for i := 0; i < repeat; i++ {
						h.periods = append(h.periods, nil)
						h.dates = append(h.dates, text)
					}
					return true
				}
				months, err := parsePeriodMonths(text)
				if err != nil {
					scanErr = err
					return false
				}
				for i := 0; i < repeat; i++ {
					m := months
					h.periods = append(h.periods, &m)
				}

			case rowNum == 1 && cell.HasClass("th") && !h.isSnapshot:
				if index == 0 {
					repeat += titleRepeat
				}
				for i := 0; i < repeat; i++ {
					h.dates = append(h.dates, text)
				}
			}
			return true
		})
		if scanErr != nil {
			return nil, scanErr
		}
	}

	if len(h.dates) != len(h.periods) {
		return nil, &LayoutError{
			Reason:  "header date count does not match period count",
			Dates:   h.dates,
			Periods: len(h.periods),
		}
	}
	return h, nil
}

// titleAndUnits splits the title cell at its first <br>: the text before
// is the statement title, the text after is the unit text, e.g.
// "shares in Thousands, $ in Millions". Without a <br> there is no unit text.
func titleAndUnits(cell *goquery.Selection, cellText string) (title, unitText string) {
	var (
		before, after strings.Builder
		seenBreak     bool
	)
	var f func(*html.Node)
	f = func(n *html.Node) {
		switch {
		case n.Type == html.ElementNode && n.Data == "br":
			seenBreak = true
		case n.Type == html.TextNode && seenBreak:
			after.WriteString(n.Data + " ")
		case n.Type == html.TextNode:
			before.WriteString(n.Data + " ")
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			f(c)
		}
	}
	for _, n := range cell.Nodes {
		f(n)
	}

	if !seenBreak {
		return cellText, ""
	}
	return cleanCellText(before.String()), cleanCellText(after.String())
}

func colspan(cell *goquery.Selection) int {
	n, err := strconv.Atoi(strings.TrimSpace(cell.AttrOr("colspan", "1")))
	if err != nil || n < 1 {
		return 1
	}
	return n
}

// parsePeriodMonths reads "12 Months Ended" as 12
func parsePeriodMonths(text string) (int, error) {
	digits := digitsRe.ReplaceAllString(text, "")
	if digits == "" {
		return 0, &LayoutError{Reason: fmt.Sprintf("period %q has no month count", text)}
	}
	n, err := strconv.Atoi(digits)
	if err != nil {
		return 0, &LayoutError{Reason: fmt.Sprintf("period %q: %v", text, err)}
	}
	return n, nil
}

// parseHeaderDate parses column dates such as "Sep. 29, 2018"
func parseHeaderDate(text string) (time.Time, error) {
	candidate := strings.Join(strings.Fields(text), " ")
	if m := headerDateRe.FindString(candidate); m != "" {
		candidate = m
	}
	candidate = strings.Replace(candidate, "Sept.", "Sep.", 1)

	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, candidate); err == nil {
			return t, nil
		}
	}
	return time.Time{}, &LayoutError{Reason: fmt.Sprintf("unrecognized column date %q", text)}
}

// scanRows assigns every numeric cell to the snapshot of its column
func (ex *extractor) scanRows(rows *goquery.Selection, h *header, snapshots []*StatementSnapshot) {
	var priorKey string

	rows.Each(func(rowNum int, row *goquery.Selection) {
		var (
			key, label string
			haveKey    bool
			numeric    bool
		)

		row.ChildrenFiltered("td").Each(func(index int, cell *goquery.Selection) {
			if _, ok := cell.Attr("class"); !ok {
				return
			}
			text := cleanCellText(cell.Text())

			var isValue bool
			switch {
			case cell.HasClass("pl"):
				label = text
				if k, ok := accountingKey(cell); ok {
					key, haveKey = k, true
					priorKey = k
				} else if ex.missingKey == MissingKeyCarryPrior {
					key, haveKey = priorKey, true
				}
			case cell.HasClass("nump") || cell.HasClass("num"):
				numeric = true
				isValue = true
			case cell.HasClass("text"):
				isValue = numeric
			}
			if !isValue {
				return
			}

			if !haveKey {
				if ex.missingKey == MissingKeyCarryPrior {
					key, haveKey = priorKey, true
				} else {
					ex.logger.Warn().Int("row", rowNum).Str("label", label).Str("cell", text).
						Msg("value without accounting key, skipping")
					return
				}
			}

			amount, ok := ex.parseAmount(text, key)
			if !ok {
				return
			}

			col := index - 1
			if col < 0 || col >= len(snapshots) {
				ex.logger.Warn().Int("row", rowNum).Int("column", index).Str("key", key).
					Msg("value outside of header columns, skipping")
				return
			}

			scale := unitScale(key, h.unitText)
			snapshots[col].add(Fact{
				Key:           key,
				Label:         label,
				StandardLabel: StandardLabel(key),
				Date:          snapshots[col].Date,
				PeriodMonths:  snapshots[col].PeriodMonths,
				Value:         amount * scale,
				Scale:         scale,
			})
		})
	})
}

// accountingKey reads the element name from the label's anchor:
// onclick="top.Show.showAR( this, 'defref_us-gaap_Revenues', window );"
func accountingKey(cell *goquery.Selection) (string, bool) {
	onclick, ok := cell.Find("a[onclick]").First().Attr("onclick")
	if !ok {
		return "", false
	}
	const marker = "defref_"
	i := strings.Index(onclick, marker)
	if i < 0 {
		return "", false
	}
	rest := onclick[i+len(marker):]
	if j := strings.Index(rest, "'"); j >= 0 {
		rest = rest[:j]
	}
	rest = strings.TrimSpace(rest)
	return rest, rest != ""
}

// parseAmount turns "$ (1,234.5)" into -1234.5. Blank cells yield no value
// silently; anything else that is not numeric is logged.
func (ex *extractor) parseAmount(text, key string) (float64, bool) {
	negative := strings.Contains(text, "(")
	amount := nonAmountRe.ReplaceAllString(footnoteRefRe.ReplaceAllString(text, ""), "")
	if amount == "" {
		if strings.TrimSpace(text) != "" {
			ex.logger.Warn().Str("key", key).Str("text", text).Msg("value is not numeric, ignoring")
		}
		return 0, false
	}

	v, err := strconv.ParseFloat(amount, 64)
	if err != nil {
		ex.logger.Warn().Err(err).Str("key", key).Str("text", text).Msg("value is not numeric, ignoring")
		return 0, false
	}
	if negative {
		v = -v
	}
	return v, true
}

// unitScale returns the multiplier implied by the unit text for key.
// Per-share amounts are never scaled; share counts follow the "shares in"
// fragment and everything else the "$ in" fragment.
func unitScale(key, unitText string) float64 {
	if strings.Contains(key, "PerShare") {
		return 1
	}
	units := strings.ToLower(unitText)
	prefix := "$ in "
	if strings.Contains(key, "Shares") {
		prefix = "shares in "
	}
	switch {
	case strings.Contains(units, prefix+"billions"):
		return 1e9
	case strings.Contains(units, prefix+"millions"):
		return 1e6
	case strings.Contains(units, prefix+"thousands"):
		return 1e3
	}
	return 1
}
