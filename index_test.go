package edgar

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openIndex(t *testing.T) *os.File {
	t.Helper()
	f, err := os.Open("testdata/index/company.idx")
	require.NoError(t, err)
	t.Cleanup(func() { f.Close() })
	return f
}

func TestParseCompanyIndex(t *testing.T) {
	infos, err := ParseCompanyIndex(openIndex(t), IndexFilter{})
	require.NoError(t, err)
	require.Len(t, infos, 7)

	assert.Equal(t, FilingInfo{
		Company:   "APPLE INC",
		Form:      "10-K",
		CIK:       "320193",
		DateFiled: "2018-11-05",
		URL:       "https://www.sec.gov/Archives/edgar/data/320193/0000320193-18-000145.txt",
	}, infos[1])
	assert.Equal(t, "1 800 FLOWERS COM INC", infos[0].Company)
	assert.Equal(t, "WAVE LIFE SCIENCES LTD.", infos[6].Company)
}

func TestParseCompanyIndexFilter(t *testing.T) {
	tests := []struct {
		name   string
		filter IndexFilter
		want   []string // accession file names
	}{
		{
			name:   "by cik",
			filter: IndexFilter{CIK: "0000320193"},
			want:   []string{"0000320193-18-000145", "0000320193-18-000140", "0000320193-18-000144"},
		},
		{
			name:   "annual forms for cik",
			filter: IndexFilter{CIK: "320193", Forms: FinancialForms[Annual]},
			want:   []string{"0000320193-18-000145"},
		},
		{
			name:   "quarterly forms",
			filter: IndexFilter{Forms: FinancialForms[Quarterly]},
			want:   []string{"0001437749-18-020166", "0000867773-18-000128", "0000867773-18-000140"},
		},
		{
			name:   "ownership forms",
			filter: IndexFilter{Forms: OwnershipForms},
			want:   []string{"0000320193-18-000140", "0001209191-18-052130"},
		},
		{
			name:   "no match",
			filter: IndexFilter{CIK: "1", Forms: []string{"10-K"}},
			want:   nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			infos, err := ParseCompanyIndex(openIndex(t), tt.filter)
			require.NoError(t, err)

			var got []string
			for _, info := range infos {
				name := info.URL[strings.LastIndex(info.URL, "/")+1:]
				got = append(got, strings.TrimSuffix(name, ".txt"))
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseCompanyIndexErrors(t *testing.T) {
	_, err := ParseCompanyIndex(strings.NewReader("no header here\n"), IndexFilter{})
	assert.Error(t, err)

	_, err = ParseCompanyIndex(strings.NewReader("Company Name   Form Type   CIK\n---\n"), IndexFilter{})
	assert.ErrorContains(t, err, "Date Filed")
}

func TestParseCompanyIndexShortRows(t *testing.T) {
	idx := "Company Name          Form Type   CIK         Date Filed  File Name\n" +
		"--------------------------------------------------------------------\n" +
		"TRUNCATED ROW\n" +
		"ACME CORP             10-K        42          2019-02-01  edgar/data/42/0000000042-19-000001.txt\n"

	infos, err := ParseCompanyIndex(strings.NewReader(idx), IndexFilter{})
	require.NoError(t, err)
	require.Len(t, infos, 1, "rows without a file name are dropped")
	assert.Equal(t, "ACME CORP", infos[0].Company)
	assert.Equal(t, "42", infos[0].CIK)
}

func TestValidateYearQuarter(t *testing.T) {
	now := time.Date(2020, time.June, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		year, quarter int
		field         string // "" when valid
	}{
		{0, 0, ""},
		{2018, 0, ""},
		{2018, 4, ""},
		{1993, 1, ""},
		{2020, 2, ""},
		{1992, 1, "year"},
		{2021, 1, "year"},
		{18, 1, "year"},
		{2018, 5, "quarter"},
		{2018, -1, "quarter"},
		{0, 2, "quarter"},
	}

	for _, tt := range tests {
		err := ValidateYearQuarter(tt.year, tt.quarter, now)
		if tt.field == "" {
			assert.NoError(t, err, "%d Q%d", tt.year, tt.quarter)
			continue
		}
		var inputErr *InvalidInputError
		require.True(t, errors.As(err, &inputErr), "%d Q%d", tt.year, tt.quarter)
		assert.Equal(t, tt.field, inputErr.Field)
	}
}

func TestCompanyIndexURL(t *testing.T) {
	assert.Equal(t, "https://www.sec.gov/Archives/edgar/full-index/company.idx", CompanyIndexURL(0, 0))
	assert.Equal(t, "https://www.sec.gov/Archives/edgar/full-index/2018/company.idx", CompanyIndexURL(2018, 0))
	assert.Equal(t, "https://www.sec.gov/Archives/edgar/full-index/2018/QTR4/company.idx", CompanyIndexURL(2018, 4))
}

func TestParsePeriod(t *testing.T) {
	p, err := ParsePeriod(" Quarterly")
	require.NoError(t, err)
	assert.Equal(t, Quarterly, p)

	_, err = ParsePeriod("monthly")
	var inputErr *InvalidInputError
	assert.True(t, errors.As(err, &inputErr))
}

func TestIndexClient(t *testing.T) {
	data, err := os.ReadFile("testdata/index/company.idx")
	require.NoError(t, err)

	r := &fakeRetriever{pages: map[string]string{CompanyIndexURL(2018, 4): string(data)}}
	client := NewIndexClient(r, zerolog.Nop())
	ctx := context.Background()

	infos, err := client.FinancialFilingInfo(ctx, Quarterly, "867773", 2018, 4)
	require.NoError(t, err)
	require.Len(t, infos, 2)
	assert.Equal(t, "10-Q", infos[0].Form)
	assert.Equal(t, "10-Q/A", infos[1].Form)

	_, err = client.FilingInfo(ctx, IndexFilter{Forms: []string{"S-1"}}, 2018, 4)
	var inputErr *InvalidInputError
	require.True(t, errors.As(err, &inputErr))
	assert.Equal(t, "form", inputErr.Field)

	_, err = client.FinancialFilingInfo(ctx, Period("monthly"), "867773", 2018, 4)
	assert.True(t, errors.As(err, &inputErr))

	_, err = client.FinancialFilingInfo(ctx, Annual, "867773", 2018, 3)
	var statusErr *StatusError
	assert.True(t, errors.As(err, &statusErr), "unknown index pages surface the fetch error")

	assert.Len(t, r.calls, 2, "invalid input never reaches the network")
}
