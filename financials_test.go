package edgar

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadReport(t *testing.T, name string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("testdata", "reports", name))
	require.NoError(t, err, "failed to read %s", name)
	return string(data)
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func intPtr(n int) *int { return &n }

func mustRows(t *testing.T, tableHTML string) *goquery.Selection {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(tableHTML))
	require.NoError(t, err)
	rows := doc.Find("table.report tr")
	require.NotZero(t, rows.Length())
	return rows
}

func TestExtractIncomeStatement(t *testing.T) {
	report, err := ExtractReport(loadReport(t, "income_statement.htm"))
	require.NoError(t, err)

	assert.Equal(t, "CONSOLIDATED STATEMENTS OF OPERATIONS - USD ($)", report.Title)
	assert.Equal(t, "shares in Thousands, $ in Millions", report.UnitText)
	assert.False(t, report.IsSnapshot)
	require.Len(t, report.Snapshots, 3)

	wantDates := []time.Time{day(2018, time.September, 29), day(2017, time.September, 30), day(2016, time.September, 24)}
	for i, s := range report.Snapshots {
		assert.Equal(t, wantDates[i], s.Date)
		require.NotNil(t, s.PeriodMonths)
		assert.Equal(t, 12, *s.PeriodMonths)
	}

	latest := report.Snapshots[0]

	tests := []struct {
		key   string
		value float64
		scale float64
	}{
		{"us-gaap_SalesRevenueNet", 265595e6, 1e6},
		{"us-gaap_CostOfGoodsAndServicesSold", 163756e6, 1e6},
		{"us-gaap_ForeignCurrencyTransactionGainLossBeforeTax", -1234500000, 1e6},
		{"us-gaap_EarningsPerShareBasic", 12.01, 1},
		{"us-gaap_WeightedAverageNumberOfSharesOutstandingBasic", 4955377e3, 1e3},
		{"us-gaap_CommonStockDividendsPerShareDeclared", 2.72, 1},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			f, ok := latest.Fact(tt.key)
			require.True(t, ok)
			assert.Equal(t, tt.value, f.Value)
			assert.Equal(t, tt.scale, f.Scale)
			assert.Equal(t, latest.Date, f.Date)
		})
	}

	// Abstract rows carry no values
	_, ok := latest.Fact("us-gaap_OperatingExpensesAbstract")
	assert.False(t, ok)

	// Sparse row: only the first column has a dividend
	_, ok = report.Snapshots[1].Fact("us-gaap_CommonStockDividendsPerShareDeclared")
	assert.False(t, ok)

	f, _ := report.Snapshots[1].Fact("us-gaap_ForeignCurrencyTransactionGainLossBeforeTax")
	assert.Equal(t, -500e6, f.Value)

	revenue, _ := latest.Fact("us-gaap_SalesRevenueNet")
	assert.Equal(t, "Net sales", revenue.Label)
	assert.Equal(t, "Revenue", revenue.StandardLabel)

	assert.Equal(t, []string{
		"us-gaap_SalesRevenueNet",
		"us-gaap_CostOfGoodsAndServicesSold",
		"us-gaap_GrossProfit",
		"us-gaap_ResearchAndDevelopmentExpense",
		"us-gaap_ForeignCurrencyTransactionGainLossBeforeTax",
		"us-gaap_NetIncomeLoss",
		"us-gaap_EarningsPerShareBasic",
		"us-gaap_WeightedAverageNumberOfSharesOutstandingBasic",
		"us-gaap_CommonStockDividendsPerShareDeclared",
	}, latest.Keys(), "facts keep row order")
}

func TestExtractBalanceSheet(t *testing.T) {
	report, err := ExtractReport(loadReport(t, "balance_sheet.htm"))
	require.NoError(t, err)

	assert.True(t, report.IsSnapshot)
	assert.Equal(t, "$ in Millions", report.UnitText)
	require.Len(t, report.Snapshots, 2)

	assert.Equal(t, day(2018, time.September, 29), report.Snapshots[0].Date)
	assert.Equal(t, day(2017, time.September, 30), report.Snapshots[1].Date, "Sept. is accepted")
	for _, s := range report.Snapshots {
		assert.Nil(t, s.PeriodMonths)
	}

	cash, ok := report.Snapshots[0].Fact("us-gaap_CashAndCashEquivalentsAtCarryingValue")
	require.True(t, ok)
	assert.Equal(t, 25913e6, cash.Value)
	assert.Nil(t, cash.PeriodMonths)

	// Share counts follow the "shares in" fragment, which is absent here
	shares, ok := report.Snapshots[0].Fact("us-gaap_CommonStockSharesOutstanding")
	require.True(t, ok)
	assert.Equal(t, 4754986.0, shares.Value)
	assert.Equal(t, 1.0, shares.Scale)

	// First write wins for a key repeated further down the table
	assets, ok := report.Snapshots[1].Fact("us-gaap_Assets")
	require.True(t, ok)
	assert.Equal(t, 375319e6, assets.Value)
	assert.Equal(t, "Total assets", assets.Label)
}

func TestExtractTitleColspanAbsorption(t *testing.T) {
	report, err := ExtractReport(loadReport(t, "quarterly_colspan.htm"))
	require.NoError(t, err)

	assert.Equal(t, "$ in Thousands", report.UnitText)

	// Header describes four columns: (Jun 30, 3), (Jun 30, 3), (Jun 30, 9),
	// (Jul 1, 9). The rows only fill the first three, so the last is dropped.
	require.Len(t, report.Snapshots, 3)

	wantMonths := []int{3, 3, 9}
	for i, s := range report.Snapshots {
		assert.Equal(t, day(2018, time.June, 30), s.Date)
		require.NotNil(t, s.PeriodMonths)
		assert.Equal(t, wantMonths[i], *s.PeriodMonths)
	}

	rev, _ := report.Snapshots[2].Fact("us-gaap_Revenues")
	assert.Equal(t, 3400e3, rev.Value)
	loss, _ := report.Snapshots[0].Fact("us-gaap_OperatingIncomeLoss")
	assert.Equal(t, -10500.0, loss.Value)
}

func TestScanHeaderColspan(t *testing.T) {
	const table = `<table class="report">
<tr><th class="tl" colspan="2"><div><strong>Statement - USD ($)<br></strong>$ in Millions</div></th><th class="th" colspan="1">12 Months Ended</th></tr>
<tr><th class="th">Dec. 31, 2019</th></tr>
</table>`

	rows := mustRows(t, table)
	h, err := scanHeader(rows)
	require.NoError(t, err)

	assert.Equal(t, []*int{intPtr(12), intPtr(12)}, h.periods, "period cell absorbs the title's extra column")
	assert.Equal(t, []string{"Dec. 31, 2019", "Dec. 31, 2019"}, h.dates, "first date cell absorbs it too")
}

func TestExtractLayoutErrors(t *testing.T) {
	tests := []struct {
		name  string
		html  string
		match string
	}{
		{
			name:  "no report table",
			html:  `<table class="other"><tr><td>x</td></tr></table>`,
			match: "no table",
		},
		{
			name: "date and period counts differ",
			html: `<table class="report">
<tr><th class="tl"><div>Statement of Income</div></th><th class="th" colspan="3">12 Months Ended</th></tr>
<tr><th class="th">Dec. 31, 2019</th><th class="th">Dec. 31, 2018</th></tr>
</table>`,
			match: "does not match",
		},
		{
			name: "period without months",
			html: `<table class="report">
<tr><th class="tl"><div>Statement of Income</div></th><th class="th">Months Ended</th></tr>
<tr><th class="th">Dec. 31, 2019</th></tr>
</table>`,
			match: "no month count",
		},
		{
			name: "unreadable date",
			html: `<table class="report">
<tr><th class="tl"><div>Balance Sheet</div></th><th class="th">Q4 2019</th></tr>
</table>`,
			match: "unrecognized column date",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ExtractReport(tt.html)
			require.Error(t, err)

			var layoutErr *LayoutError
			require.True(t, errors.As(err, &layoutErr))
			assert.Contains(t, layoutErr.Error(), tt.match)
		})
	}
}

const missingKeyTable = `<table class="report">
<tr><th class="tl"><div><strong>Balance Sheet - USD ($)</strong></div></th><th class="th">Dec. 31, 2019</th></tr>
<tr><td class="pl"><a onclick="top.Show.showAR( this, 'defref_us-gaap_AssetsAbstract', window );">Assets</a></td><td class="text">&#160;</td></tr>
<tr><td class="pl">Unlinked line</td><td class="nump">42</td></tr>
<tr><td class="pl"><a onclick="top.Show.showAR( this, 'defref_us-gaap_Assets', window );">Total assets</a></td><td class="nump">100</td></tr>
</table>`

func TestExtractMissingKeyPolicies(t *testing.T) {
	t.Run("skip", func(t *testing.T) {
		var buf bytes.Buffer
		report, err := ExtractReport(missingKeyTable, WithExtractLogger(zerolog.New(&buf)))
		require.NoError(t, err)
		require.Len(t, report.Snapshots, 1)

		assert.Equal(t, []string{"us-gaap_Assets"}, report.Snapshots[0].Keys())
		assert.Contains(t, buf.String(), "value without accounting key")
	})

	t.Run("carry prior key", func(t *testing.T) {
		report, err := ExtractReport(missingKeyTable, WithMissingKeyPolicy(MissingKeyCarryPrior))
		require.NoError(t, err)
		require.Len(t, report.Snapshots, 1)

		carried, ok := report.Snapshots[0].Fact("us-gaap_AssetsAbstract")
		require.True(t, ok, "unlinked value lands under the previous row's key")
		assert.Equal(t, 42.0, carried.Value)
		assert.Equal(t, "Unlinked line", carried.Label)
	})
}

func TestExtractNonNumericCells(t *testing.T) {
	const table = `<table class="report">
<tr><th class="tl"><div><strong>Balance Sheet - USD ($)</strong></div></th><th class="th">Dec. 31, 2019</th><th class="th">Dec. 31, 2018</th></tr>
<tr><td class="pl"><a onclick="top.Show.showAR( this, 'defref_us-gaap_Goodwill', window );">Goodwill</a></td><td class="nump">1.2.3</td><td class="nump">7 [1]</td></tr>
<tr><td class="pl"><a onclick="top.Show.showAR( this, 'defref_us-gaap_Assets', window );">Assets</a></td><td class="nump">n/a</td><td class="nump">9</td><td class="nump">10</td></tr>
</table>`

	var buf bytes.Buffer
	report, err := ExtractReport(table, WithExtractLogger(zerolog.New(&buf)))
	require.NoError(t, err)

	// The 2019 column ends up empty and is removed
	require.Len(t, report.Snapshots, 1)
	s := report.Snapshots[0]
	assert.Equal(t, day(2018, time.December, 31), s.Date)

	goodwill, ok := s.Fact("us-gaap_Goodwill")
	require.True(t, ok)
	assert.Equal(t, 7.0, goodwill.Value, "footnote markers are not digits")

	assets, ok := s.Fact("us-gaap_Assets")
	require.True(t, ok)
	assert.Equal(t, 9.0, assets.Value)

	logs := buf.String()
	assert.Contains(t, logs, "value is not numeric")
	assert.Contains(t, logs, "value outside of header columns")
}

func TestUnitScale(t *testing.T) {
	tests := []struct {
		key   string
		units string
		want  float64
	}{
		{"us-gaap_Revenues", "$ in Millions", 1e6},
		{"us-gaap_Revenues", "shares in Thousands, $ in Billions", 1e9},
		{"us-gaap_Revenues", "shares in Millions", 1},
		{"us-gaap_WeightedAverageNumberOfDilutedSharesOutstanding", "shares in Millions, $ in Thousands", 1e6},
		{"us-gaap_CommonStockSharesIssued", "$ in Thousands", 1},
		{"us-gaap_EarningsPerShareDiluted", "$ in Millions", 1},
		{"us-gaap_CommonStockDividendsPerShareDeclared", "shares in Thousands", 1},
		{"us-gaap_Revenues", "", 1},
	}

	for _, tt := range tests {
		t.Run(tt.key+"/"+tt.units, func(t *testing.T) {
			assert.Equal(t, tt.want, unitScale(tt.key, tt.units))
		})
	}
}

func TestParseHeaderDate(t *testing.T) {
	tests := []struct {
		in   string
		want time.Time
	}{
		{"Sep. 29, 2018", day(2018, time.September, 29)},
		{"Sept. 29, 2018", day(2018, time.September, 29)},
		{"May 31, 2019", day(2019, time.May, 31)},
		{"June 30, 2020", day(2020, time.June, 30)},
		{"Jul. 01, 2017", day(2017, time.July, 1)},
		{" Dec. 31,  2019 \n", day(2019, time.December, 31)},
		{"Dec. 31, 2019 [1]", day(2019, time.December, 31)},
	}
	for _, tt := range tests {
		got, err := parseHeaderDate(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestReportJSON(t *testing.T) {
	report, err := ExtractReport(loadReport(t, "quarterly_colspan.htm"))
	require.NoError(t, err)

	data, err := json.Marshal(report)
	require.NoError(t, err)

	var decoded struct {
		Title     string `json:"title"`
		Snapshots []struct {
			Date         string `json:"date"`
			PeriodMonths int    `json:"periodMonths"`
			Facts        []Fact `json:"facts"`
		} `json:"snapshots"`
	}
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.Len(t, decoded.Snapshots, 3)
	assert.Equal(t, "2018-06-30", decoded.Snapshots[0].Date)
	assert.Equal(t, 9, decoded.Snapshots[2].PeriodMonths)
	assert.Equal(t, "us-gaap_Revenues", decoded.Snapshots[0].Facts[0].Key)
}

func TestExtractTextCellsFollowNumericCells(t *testing.T) {
	const table = `<table class="report">
<tr><th class="tl"><div><strong>Balance Sheet - USD ($)<br></strong>$ in Millions</div></th><th class="th">Dec. 31, 2019</th><th class="th">Dec. 31, 2018</th><th class="th">Dec. 31, 2017</th></tr>
<tr><td class="pl"><a onclick="top.Show.showAR( this, 'defref_us-gaap_Goodwill', window );">Goodwill</a></td><td class="text">12</td><td class="nump">5</td><td class="text">7</td></tr>
<tr><td class="pl"><a onclick="top.Show.showAR( this, 'defref_us-gaap_OtherAssets', window );">Other assets</a></td><td class="text">3</td><td class="text">4</td><td class="text">5</td></tr>
</table>`

	report, err := ExtractReport(table)
	require.NoError(t, err)

	// A text cell counts only after a numeric cell in the same row, so the
	// 2019 column and the all-text row yield nothing
	require.Len(t, report.Snapshots, 2)
	assert.Equal(t, day(2018, time.December, 31), report.Snapshots[0].Date)
	assert.Equal(t, day(2017, time.December, 31), report.Snapshots[1].Date)

	for i, want := range []float64{5e6, 7e6} {
		assert.Equal(t, []string{"us-gaap_Goodwill"}, report.Snapshots[i].Keys())
		goodwill, _ := report.Snapshots[i].Fact("us-gaap_Goodwill")
		assert.Equal(t, want, goodwill.Value)
	}
}

func TestTitleAndUnits(t *testing.T) {
	tests := []struct {
		name      string
		cell      string
		wantTitle string
		wantUnits string
	}{
		{
			name:      "unit after break",
			cell:      `<div><strong>Statements of Income - USD ($)<br></strong> shares in Thousands, $ in Millions</div>`,
			wantTitle: "Statements of Income - USD ($)",
			wantUnits: "shares in Thousands, $ in Millions",
		},
		{
			name:      "no break",
			cell:      `<div><strong>Balance Sheet - USD ($)</strong></div>`,
			wantTitle: "Balance Sheet - USD ($)",
		},
		{
			name:      "styled title without break",
			cell:      `<div><strong>Balance Sheet</strong> <em>(Unaudited)</em></div>`,
			wantTitle: "Balance Sheet (Unaudited)",
		},
		{
			name:      "nothing after break",
			cell:      `<div><strong>Balance Sheet<br></strong></div>`,
			wantTitle: "Balance Sheet",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rows := mustRows(t, `<table class="report"><tr><th class="tl">`+tt.cell+`</th></tr></table>`)
			cell := rows.First().ChildrenFiltered("th").First()

			title, units := titleAndUnits(cell, cleanCellText(cell.Text()))
			assert.Equal(t, tt.wantTitle, title)
			assert.Equal(t, tt.wantUnits, units)
		})
	}
}

func TestReportJSONDateFiled(t *testing.T) {
	report, err := ExtractReport(loadReport(t, "balance_sheet.htm"))
	require.NoError(t, err)

	data, err := json.Marshal(report)
	require.NoError(t, err)
	var fields map[string]any
	require.NoError(t, json.Unmarshal(data, &fields))
	assert.NotContains(t, fields, "dateFiled", "unknown filing date is left out")
	assert.Equal(t, "CONSOLIDATED BALANCE SHEETS - USD ($)", fields["title"])

	report.DateFiled = day(2018, time.November, 5)
	data, err = json.Marshal(report)
	require.NoError(t, err)
	fields = nil
	require.NoError(t, json.Unmarshal(data, &fields))
	assert.Equal(t, "2018-11-05", fields["dateFiled"])
	assert.Contains(t, fields, "snapshots")
}
