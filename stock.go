package edgar

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
)

// Stock is the latest annual or quarterly report filing of a listed company
type Stock struct {
	Symbol string
	CIK    string
	Period Period
	Info   FilingInfo
	Filing *Filing
}

func (s *Stock) IncomeStatement() (*FinancialReport, error) {
	return s.Filing.IncomeStatement()
}

func (s *Stock) BalanceSheet() (*FinancialReport, error) {
	return s.Filing.BalanceSheet()
}

func (s *Stock) CashFlowStatement() (*FinancialReport, error) {
	return s.Filing.CashFlowStatement()
}

// Statements returns every statement the filing's summary names
func (s *Stock) Statements() ([]*FinancialReport, error) {
	return s.Filing.AllStatements()
}

// StockClient resolves symbols and locates their report filings through
// the full index
type StockClient struct {
	retriever  Retriever
	lookup     IdentifierLookup
	index      *IndexClient
	logger     zerolog.Logger
	filingOpts []FilingOption
}

// StockOption configures a StockClient
type StockOption func(*StockClient)

// WithStockLogger sets the logger used by the client, its index queries
// and the filings it parses
func WithStockLogger(logger zerolog.Logger) StockOption {
	return func(c *StockClient) { c.logger = logger }
}

// WithStockFilingOptions passes options to every ParseFiling call
func WithStockFilingOptions(opts ...FilingOption) StockOption {
	return func(c *StockClient) { c.filingOpts = append(c.filingOpts, opts...) }
}

func NewStockClient(r Retriever, lookup IdentifierLookup, opts ...StockOption) *StockClient {
	c := &StockClient{retriever: r, lookup: lookup, logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(c)
	}
	c.index = NewIndexClient(r, c.logger)
	return c
}

// Stock finds the first report filing of symbol for the period in the given
// year and quarter (zero selects the current index) and parses it
func (c *StockClient) Stock(ctx context.Context, symbol string, period Period, year, quarter int) (*Stock, error) {
	cik, err := c.lookup.Lookup(symbol)
	if err != nil {
		return nil, err
	}
	c.logger.Info().Str("symbol", symbol).Str("cik", cik).Msg("resolved symbol")

	infos, err := c.index.FinancialFilingInfo(ctx, period, cik, year, quarter)
	if err != nil {
		return nil, err
	}
	if len(infos) == 0 {
		return nil, fmt.Errorf("no %s filing info for %s (CIK %s), try a different period, year or quarter: %w",
			period, symbol, cik, ErrNotFound)
	}
	info := infos[0]

	text, err := c.retriever.Fetch(ctx, info.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", info.URL, err)
	}

	opts := append([]FilingOption{
		WithCompany(symbol),
		WithSourceURL(info.URL),
		WithFilingLogger(c.logger),
	}, c.filingOpts...)
	filing, err := ParseFiling(text, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", info.URL, err)
	}

	return &Stock{
		Symbol: symbol,
		CIK:    cik,
		Period: period,
		Info:   info,
		Filing: filing,
	}, nil
}
