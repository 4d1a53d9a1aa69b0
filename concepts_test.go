package edgar

import (
	"errors"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStandardLabel(t *testing.T) {
	tests := []struct {
		key  string
		want string
	}{
		{"us-gaap_SalesRevenueNet", "Revenue"},
		{"us-gaap:Revenues", "Revenue"},
		{"US-GAAP_REVENUES", "Revenue"},
		{"us-gaap_NetIncomeLoss", "Net Income"},
		{"us-gaap_Assets", "Total Assets"},
		{"us-gaap_NetCashProvidedByUsedInOperatingActivities", "Operating Cash Flow"},
		{"aapl_CustomLineItem", ""},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			assert.Equal(t, tt.want, StandardLabel(tt.key))
		})
	}
}

func TestConceptsForLabel(t *testing.T) {
	got, err := ConceptsForLabel("Net Income")
	require.NoError(t, err)
	assert.Contains(t, got, "us-gaap:NetIncomeLoss")

	// Callers get a copy
	got[0] = "changed"
	again, _ := ConceptsForLabel("Net Income")
	assert.Equal(t, "us-gaap:NetIncomeLoss", again[0])

	_, err = ConceptsForLabel("Widgets Sold")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestStandardLabels(t *testing.T) {
	labels := StandardLabels()
	require.NotEmpty(t, labels)
	assert.True(t, sort.StringsAreSorted(labels))
	assert.Contains(t, labels, "Total Assets")

	for _, label := range labels {
		assert.Contains(t, []string{"income", "balance", "cashflow"}, StatementOf(label), label)
	}
}

func TestStatementOf(t *testing.T) {
	assert.Equal(t, "income", StatementOf("Revenue"))
	assert.Equal(t, "balance", StatementOf("Total Assets"))
	assert.Equal(t, "cashflow", StatementOf("Operating Cash Flow"))
	assert.Equal(t, "", StatementOf("Unknown"))
}

func TestLoadConceptMappingsErrors(t *testing.T) {
	_, err := loadConceptMappings([]byte(`{"mappings": `))
	assert.Error(t, err)

	_, err = loadConceptMappings([]byte(`{"mappings": {
		"A": {"statement": "income", "concepts": ["us-gaap:Revenues"]},
		"B": {"statement": "income", "concepts": ["us-gaap_revenues"]}
	}}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mapped to both")
}
