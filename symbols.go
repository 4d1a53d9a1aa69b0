package edgar

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
)

// IdentifierLookup resolves a trading symbol to a CIK
type IdentifierLookup interface {
	Lookup(symbol string) (string, error)
}

// SymbolRecord is one row of a symbols file: where a symbol was last seen
// for a CIK
type SymbolRecord struct {
	CIK       string
	Symbol    string
	Year      int
	Quarter   int
	FilingURL string
}

var symbolColumns = []string{"cik", "symbol", "year", "quarter", "filing_url"}

// SymbolTable is an in-memory symbols file. Lookups return the first
// record for a symbol, in file order.
type SymbolTable struct {
	mu      sync.RWMutex
	records []SymbolRecord
	first   map[string]int // upper-case symbol -> index of first record
}

// NewSymbolTable returns an empty table
func NewSymbolTable() *SymbolTable {
	return &SymbolTable{first: make(map[string]int)}
}

// LoadSymbols reads a CSV with the header cik,symbol,year,quarter,filing_url.
// Columns may appear in any order.
func LoadSymbols(r io.Reader) (*SymbolTable, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("symbols file is empty")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read symbols header: %w", err)
	}

	pos := make(map[string]int, len(header))
	for i, name := range header {
		pos[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, col := range symbolColumns {
		if _, ok := pos[col]; !ok {
			return nil, fmt.Errorf("symbols file is missing column %q", col)
		}
	}

	table := NewSymbolTable()
	for line := 2; ; line++ {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read symbols line %d: %w", line, err)
		}

		rec := SymbolRecord{
			CIK:       strings.TrimSpace(row[pos["cik"]]),
			Symbol:    strings.TrimSpace(row[pos["symbol"]]),
			FilingURL: strings.TrimSpace(row[pos["filing_url"]]),
		}
		if rec.Year, err = optionalInt(row[pos["year"]]); err != nil {
			return nil, fmt.Errorf("symbols line %d: year: %w", line, err)
		}
		if rec.Quarter, err = optionalInt(row[pos["quarter"]]); err != nil {
			return nil, fmt.Errorf("symbols line %d: quarter: %w", line, err)
		}
		table.Add(rec)
	}
	return table, nil
}

// OpenSymbols loads the symbols file at path
func OpenSymbols(path string) (*SymbolTable, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open symbols file: %w", err)
	}
	defer f.Close()
	return LoadSymbols(f)
}

// optionalInt reads "", "2018" or "2018.0" (files written by spreadsheet
// tools carry floats)
func optionalInt(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	return int(f), nil
}

// Add appends rec. Records without a CIK or symbol are ignored.
func (t *SymbolTable) Add(rec SymbolRecord) bool {
	if rec.CIK == "" || rec.Symbol == "" {
		return false
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	key := strings.ToUpper(rec.Symbol)
	if _, ok := t.first[key]; !ok {
		t.first[key] = len(t.records)
	}
	t.records = append(t.records, rec)
	return true
}

// Lookup returns the CIK of the first record for symbol
func (t *SymbolTable) Lookup(symbol string) (string, error) {
	rec, ok := t.Record(symbol)
	if !ok {
		return "", fmt.Errorf("could not find CIK for %s, add it to the symbols file: %w", symbol, ErrNotFound)
	}
	return rec.CIK, nil
}

// Record returns the first record for symbol
func (t *SymbolTable) Record(symbol string) (SymbolRecord, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	i, ok := t.first[strings.ToUpper(strings.TrimSpace(symbol))]
	if !ok {
		return SymbolRecord{}, false
	}
	return t.records[i], true
}

// Has reports whether a record for the CIK and symbol exists
func (t *SymbolTable) Has(cik, symbol string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for _, r := range t.records {
		if r.CIK == cik && strings.EqualFold(r.Symbol, symbol) {
			return true
		}
	}
	return false
}

// Records returns a copy of all records in file order
func (t *SymbolTable) Records() []SymbolRecord {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]SymbolRecord, len(t.records))
	copy(out, t.records)
	return out
}

// Len returns the number of records
func (t *SymbolTable) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.records)
}

// Write emits the table as CSV with a header row
func (t *SymbolTable) Write(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(symbolColumns); err != nil {
		return fmt.Errorf("failed to write symbols header: %w", err)
	}
	for _, r := range t.Records() {
		row := []string{r.CIK, r.Symbol, strconv.Itoa(r.Year), strconv.Itoa(r.Quarter), r.FilingURL}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write symbol %s: %w", r.Symbol, err)
		}
	}
	cw.Flush()
	return cw.Error()
}
