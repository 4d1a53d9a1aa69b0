package edgar

import (
	"fmt"
	"slices"
	"sort"
	"strings"
)

// FactQuery provides a fluent interface for querying report facts
type FactQuery struct {
	report       *FinancialReport
	keyPrefix    string
	keys         []string
	label        string
	snapshotOnly bool
	periodOnly   bool
	months       int
}

// Query returns a new FactQuery over all snapshots of the report
func (r *FinancialReport) Query() *FactQuery {
	return &FactQuery{report: r}
}

// ByKeyPrefix keeps facts whose key starts with prefix, e.g. "us-gaap_"
func (q *FactQuery) ByKeyPrefix(prefix string) *FactQuery {
	q.keyPrefix = prefix
	return q
}

// ByKey keeps facts whose key is one of keys
func (q *FactQuery) ByKey(keys ...string) *FactQuery {
	q.keys = keys
	return q
}

// ByLabel keeps facts with the given standard label, or row label when the
// key has no standard label
func (q *FactQuery) ByLabel(label string) *FactQuery {
	q.label = label
	return q
}

// SnapshotsOnly keeps point-in-time facts (balance sheet columns)
func (q *FactQuery) SnapshotsOnly() *FactQuery {
	q.snapshotOnly = true
	return q
}

// PeriodOnly keeps facts that cover a period (income and cash flow columns)
func (q *FactQuery) PeriodOnly() *FactQuery {
	q.periodOnly = true
	return q
}

// ForMonths keeps facts covering exactly n months, e.g. 3 or 12
func (q *FactQuery) ForMonths(n int) *FactQuery {
	q.months = n
	return q
}

// Get returns all matching facts, in snapshot then row order
func (q *FactQuery) Get() []Fact {
	var results []Fact
	if q.report == nil {
		return results
	}

	for _, s := range q.report.Snapshots {
		for _, fact := range s.Facts() {
			if q.keyPrefix != "" && !strings.HasPrefix(fact.Key, q.keyPrefix) {
				continue
			}
			if len(q.keys) > 0 && !slices.Contains(q.keys, fact.Key) {
				continue
			}
			if q.label != "" && fact.StandardLabel != q.label && fact.Label != q.label {
				continue
			}
			if q.snapshotOnly && fact.PeriodMonths != nil {
				continue
			}
			if q.periodOnly && fact.PeriodMonths == nil {
				continue
			}
			if q.months > 0 && (fact.PeriodMonths == nil || *fact.PeriodMonths != q.months) {
				continue
			}
			results = append(results, fact)
		}
	}
	return results
}

// First returns the first matching fact
func (q *FactQuery) First() (*Fact, error) {
	results := q.Get()
	if len(results) == 0 {
		return nil, fmt.Errorf("no facts found: %w", ErrNotFound)
	}
	return &results[0], nil
}

// MostRecent returns the matching fact with the latest date
func (q *FactQuery) MostRecent() (*Fact, error) {
	results := q.Get()
	if len(results) == 0 {
		return nil, fmt.Errorf("no facts found: %w", ErrNotFound)
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Date.After(results[j].Date)
	})
	return &results[0], nil
}

// KeysWithPrefix returns the distinct accounting keys starting with prefix
// across all snapshots, in first-seen order
func (r *FinancialReport) KeysWithPrefix(prefix string) []string {
	var keys []string
	seen := make(map[string]bool)
	for _, s := range r.Snapshots {
		for _, k := range s.Keys() {
			if strings.HasPrefix(k, prefix) && !seen[k] {
				seen[k] = true
				keys = append(keys, k)
			}
		}
	}
	return keys
}

// Snapshot returns the snapshot dated on the given day (YYYY-MM-DD)
func (r *FinancialReport) Snapshot(date string) (*StatementSnapshot, bool) {
	for _, s := range r.Snapshots {
		if s.Date.Format("2006-01-02") == date {
			return s, true
		}
	}
	return nil, false
}
