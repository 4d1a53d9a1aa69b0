package edgar

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Filing is a decoded full submission (the .txt file of an accession)
type Filing struct {
	URL                string
	Company            string // Identifier the caller knows the filer by, e.g. a ticker
	AcceptanceDateTime time.Time
	Documents          []*Document // Source order
	Tree               Tree

	byFilename  map[string]*Document
	extractOpts []ExtractOption
	logger      zerolog.Logger
}

// FilingOption configures ParseFiling
type FilingOption func(*filingConfig)

type filingConfig struct {
	url         string
	company     string
	decoder     *Decoder
	extractOpts []ExtractOption
	logger      zerolog.Logger
}

// WithCompany sets the identifier copied onto extracted reports
func WithCompany(company string) FilingOption {
	return func(c *filingConfig) { c.company = company }
}

// WithSourceURL records where the submission was fetched from
func WithSourceURL(url string) FilingOption {
	return func(c *filingConfig) { c.url = url }
}

// WithDecoder replaces the default decoder (DefaultGrammar, no options)
func WithDecoder(d *Decoder) FilingOption {
	return func(c *filingConfig) { c.decoder = d }
}

// WithExtractOptions passes options to every ExtractReport call
func WithExtractOptions(opts ...ExtractOption) FilingOption {
	return func(c *filingConfig) { c.extractOpts = append(c.extractOpts, opts...) }
}

// WithFilingLogger sets the logger for filing-level messages
func WithFilingLogger(logger zerolog.Logger) FilingOption {
	return func(c *filingConfig) { c.logger = logger }
}

// ParseFiling decodes a full submission and indexes its documents
func ParseFiling(text string, opts ...FilingOption) (*Filing, error) {
	cfg := &filingConfig{logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.decoder == nil {
		cfg.decoder = NewDecoder(DefaultGrammar(), WithLogger(cfg.logger))
	}

	tree, err := cfg.decoder.Decode(NormalizeSubmission(text))
	if err != nil {
		return nil, fmt.Errorf("failed to decode submission: %w", err)
	}

	docs, err := Documents(tree)
	if err != nil {
		return nil, fmt.Errorf("failed to read documents: %w", err)
	}

	f := &Filing{
		URL:         cfg.url,
		Company:     cfg.company,
		Documents:   docs,
		Tree:        tree,
		byFilename:  make(map[string]*Document, len(docs)),
		extractOpts: cfg.extractOpts,
		logger:      cfg.logger,
	}
	for _, d := range docs {
		if _, dup := f.byFilename[d.Filename]; dup {
			f.logger.Warn().Str("filename", d.Filename).Msg("duplicate document filename, keeping first")
			continue
		}
		f.byFilename[d.Filename] = d
	}

	if v, ok := tree.Path(TagSECDocument, TagSECHeader, TagAcceptanceDateTime); ok {
		accepted, err := parseAcceptanceDateTime(v.Text())
		if err != nil {
			f.logger.Warn().Err(err).Msg("could not read acceptance datetime")
		}
		f.AcceptanceDateTime = accepted
	}

	return f, nil
}

// parseAcceptanceDateTime reads YYYYMMDDhhmmss. Anything after the first
// field is header text that follows the tag and is ignored. When the time
// part is unreadable only the date is used.
func parseAcceptanceDateTime(raw string) (time.Time, error) {
	fields := strings.Fields(raw)
	if len(fields) == 0 {
		return time.Time{}, fmt.Errorf("empty acceptance datetime")
	}
	s := fields[0]
	if len(s) >= 14 {
		if t, err := time.Parse("20060102150405", s[:14]); err == nil {
			return t, nil
		}
	}
	if len(s) >= 8 {
		if t, err := time.Parse("20060102", s[:8]); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid acceptance datetime %q", s)
}

// DateFiled is the acceptance date without the time of day
func (f *Filing) DateFiled() time.Time {
	if f.AcceptanceDateTime.IsZero() {
		return time.Time{}
	}
	y, m, d := f.AcceptanceDateTime.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Document returns the document with the given FILENAME
func (f *Filing) Document(filename string) (*Document, bool) {
	d, ok := f.byFilename[filename]
	return d, ok
}

// FilingSummary returns the body of FilingSummary.xml
func (f *Filing) FilingSummary() (*Body, error) {
	d, ok := f.Document(FilingSummaryFilename)
	if !ok {
		return nil, fmt.Errorf("%s: %w", FilingSummaryFilename, ErrNotFound)
	}
	return d.Body, nil
}

// StatementFilename returns the R file rendering the first matching statement
func (f *Filing) StatementFilename(candidates []string) (string, error) {
	summary, err := f.FilingSummary()
	if err != nil {
		return "", err
	}
	return FindReportFilename(summary, candidates)
}

// Statement extracts the first statement whose short name matches one of
// the candidates
func (f *Filing) Statement(candidates []string) (*FinancialReport, error) {
	filename, err := f.StatementFilename(candidates)
	if err != nil {
		return nil, err
	}
	return f.reportFromFile(filename)
}

func (f *Filing) reportFromFile(filename string) (*FinancialReport, error) {
	d, ok := f.Document(filename)
	if !ok {
		return nil, fmt.Errorf("report document %s: %w", filename, ErrNotFound)
	}

	f.logger.Debug().Str("filename", filename).Msg("extracting statement")
	report, err := ExtractReportBody(d.Body, f.extractOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to extract %s: %w", filename, err)
	}
	report.Company = f.Company
	report.DateFiled = f.DateFiled()
	return report, nil
}

func (f *Filing) IncomeStatement() (*FinancialReport, error) {
	return f.Statement(IncomeStatementNames)
}

func (f *Filing) BalanceSheet() (*FinancialReport, error) {
	return f.Statement(BalanceSheetNames)
}

func (f *Filing) CashFlowStatement() (*FinancialReport, error) {
	return f.Statement(CashFlowNames)
}

// AllStatements extracts every statement named in the income, balance
// sheet and cash flow catalogs. Names that are not in the summary are
// skipped; ErrNotFound is returned only if none matched.
func (f *Filing) AllStatements() ([]*FinancialReport, error) {
	summary, err := f.FilingSummary()
	if err != nil {
		return nil, err
	}

	var reports []*FinancialReport
	seen := make(map[string]bool)
	for _, name := range AllStatementNames() {
		filename, err := FindReportFilename(summary, []string{name})
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if seen[filename] {
			continue
		}
		seen[filename] = true

		report, err := f.reportFromFile(filename)
		if err != nil {
			return nil, err
		}
		reports = append(reports, report)
	}

	if len(reports) == 0 {
		return nil, fmt.Errorf("no financial statements in filing: %w", ErrNotFound)
	}
	return reports, nil
}
