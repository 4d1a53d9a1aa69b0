package edgar

import (
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const smallSummary = `<?xml version="1.0" encoding="utf-8"?>
<FilingSummary>
  <MyReports>
    <Report instance="acme-20231231.xml">
      <HtmlFileName>R2.htm</HtmlFileName>
      <LongName>0002 - Statement - Consolidated Balance Sheets</LongName>
      <ShortName>Consolidated Balance Sheets</ShortName>
      <MenuCategory>Statements</MenuCategory>
      <Position>2</Position>
    </Report>
    <Report instance="acme-20231231.xml">
      <HtmlFileName>R4.htm</HtmlFileName>
      <ShortName>CONSOLIDATED STATEMENTS OF   INCOME</ShortName>
      <MenuCategory>Statements</MenuCategory>
      <Position>4</Position>
    </Report>
    <Report instance="acme-20231231.xml">
      <HtmlFileName>R5.htm</HtmlFileName>
      <ShortName>Consolidated Statements of Operations</ShortName>
      <Position>5</Position>
    </Report>
    <Report>
      <HtmlFileName>R9.htm</HtmlFileName>
      <LongName>All Reports</LongName>
    </Report>
  </MyReports>
</FilingSummary>`

func TestReports(t *testing.T) {
	reports, err := Reports(NewBody(BodyMarkup, smallSummary))
	require.NoError(t, err)
	require.Len(t, reports, 3, "reports without a short name are skipped")

	assert.Equal(t, ReportEntry{
		ShortName:    "Consolidated Balance Sheets",
		LongName:     "0002 - Statement - Consolidated Balance Sheets",
		HTMLFileName: "R2.htm",
		MenuCategory: "Statements",
		Position:     2,
	}, reports[0])
	assert.Equal(t, 5, reports[2].Position)
}

func TestReportsEmptyElements(t *testing.T) {
	const summary = `<?xml version="1.0" encoding="utf-8"?>
<FilingSummary>
  <ProcessingTime />
  <MyReports>
    <Report instance="acme-20231231.xml">
      <IsDefault>false</IsDefault>
      <HasEmbeddedReports />
      <HtmlFileName>R2.htm</HtmlFileName>
      <ShortName>Consolidated Balance Sheets</ShortName>
      <Role />
      <Position>2</Position>
    </Report>
  </MyReports>
</FilingSummary>`

	body := NewBody(BodyMarkup, summary)
	reports, err := Reports(body)
	require.NoError(t, err)
	require.Len(t, reports, 1)
	assert.Equal(t, ReportEntry{ShortName: "Consolidated Balance Sheets", HTMLFileName: "R2.htm", Position: 2}, reports[0])

	filename, err := FindReportFilename(body, BalanceSheetNames)
	require.NoError(t, err)
	assert.Equal(t, "R2.htm", filename)
}

func TestReportsMalformedXML(t *testing.T) {
	_, err := Reports(NewBody(BodyMarkup, "<FilingSummary><MyReports>"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read filing summary")
}

func TestFindReportFilename(t *testing.T) {
	summary := NewBody(BodyMarkup, smallSummary)

	tests := []struct {
		name       string
		candidates []string
		want       string
	}{
		{"exact lowercase", []string{"consolidated balance sheets"}, "R2.htm"},
		{"extra whitespace in summary", []string{"consolidated statements of income"}, "R4.htm"},
		{"candidate order wins", []string{"consolidated statements of operations", "consolidated statements of income"}, "R5.htm"},
		{"skips unknown candidates", []string{"condensed balance sheets", "Consolidated  Balance Sheets "}, "R2.htm"},
		{"income catalog", IncomeStatementNames, "R4.htm"},
		{"balance catalog", BalanceSheetNames, "R2.htm"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FindReportFilename(summary, tt.candidates)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFindReportFilenameNotFound(t *testing.T) {
	summary := NewBody(BodyMarkup, smallSummary)

	_, err := FindReportFilename(summary, CashFlowNames)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))

	_, err = FindReportFilename(summary, []string{"consolidated balance sheet"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.Contains(t, err.Error(), "Consolidated Balance Sheets", "near misses are listed")
}

func TestFindReportFilenameNeedsMarkup(t *testing.T) {
	_, err := FindReportFilename(NewBody(BodyText, "plain"), BalanceSheetNames)
	assert.Error(t, err)

	_, err = FindReportFilename(nil, BalanceSheetNames)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestSearchReports(t *testing.T) {
	found, err := SearchReports(NewBody(BodyMarkup, smallSummary), "balance")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "R2.htm", found[0].HTMLFileName)

	found, err = SearchReports(NewBody(BodyMarkup, smallSummary), "consolidated statements")
	require.NoError(t, err)
	assert.Len(t, found, 2)
}

func TestAllStatementNames(t *testing.T) {
	all := AllStatementNames()
	assert.Len(t, all, len(IncomeStatementNames)+len(BalanceSheetNames)+len(CashFlowNames))
	assert.Equal(t, IncomeStatementNames[0], all[0])
	assert.Equal(t, CashFlowNames[len(CashFlowNames)-1], all[len(all)-1])
}

func TestFindReportFilenameInSubmission(t *testing.T) {
	data, err := os.ReadFile("testdata/submission_10k.txt")
	require.NoError(t, err)

	filing, err := ParseFiling(string(data))
	require.NoError(t, err)

	summary, err := filing.FilingSummary()
	require.NoError(t, err)
	assert.Equal(t, BodyMarkup, summary.Kind)

	got, err := FindReportFilename(summary, BalanceSheetNames)
	require.NoError(t, err)
	assert.Equal(t, "R4.htm", got)
}
