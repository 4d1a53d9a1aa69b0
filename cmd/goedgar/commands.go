package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	edgar "github.com/RxDataLab/go-edgar-financials"
	"github.com/spf13/cobra"
)

// outputFlags mirror the save behaviour shared by every command
type outputFlags struct {
	saveOriginal bool
	outputPath   string
	outputDir    string
}

func (o *outputFlags) register(cmd *cobra.Command) {
	cmd.Flags().BoolVarP(&o.saveOriginal, "save-original", "s", false, "Save the original submission file")
	cmd.Flags().StringVarP(&o.outputPath, "output", "o", "", "Output JSON file path (default: stdout)")
	cmd.Flags().StringVar(&o.outputDir, "output-dir", "./output", "Directory for saved files")
}

// emit saves raw and the JSON of v as requested, or prints the JSON
func (o *outputFlags) emit(raw string, v any, meta *edgar.FilingMetadata, suffix string) error {
	if !o.saveOriginal && o.outputPath == "" {
		data, err := edgar.FormatJSON(v)
		if err != nil {
			return fmt.Errorf("failed to format JSON: %w", err)
		}
		fmt.Println(string(data))
		return nil
	}

	if meta == nil {
		meta = &edgar.FilingMetadata{}
	}
	opts := edgar.SaveOptions{
		SaveOriginal: o.saveOriginal,
		OutputPath:   o.outputPath,
		OutputDir:    o.outputDir,
	}
	// Saving the original also saves the JSON under a generated name
	if opts.OutputPath == "" {
		opts.OutputPath = edgar.GenerateFilename(meta, suffix, "json")
	}

	result, err := edgar.SaveFiles([]byte(raw), v, meta, opts)
	if err != nil {
		return fmt.Errorf("failed to save files: %w", err)
	}
	if result.OriginalPath != "" {
		fmt.Fprintf(os.Stderr, "Saved original submission: %s\n", result.OriginalPath)
	}
	if result.OutputPath != "" {
		fmt.Fprintf(os.Stderr, "Saved JSON output: %s\n", result.OutputPath)
	}
	return nil
}

func newSGMLCmd(a *app) *cobra.Command {
	var out outputFlags
	cmd := &cobra.Command{
		Use:   "sgml <source>",
		Short: "Decode a submission into its SGML tag tree",
		Long: `Decode the SGML structure of a full submission and print the tag tree
as JSON. Document bodies appear as the raw text of their <TEXT> element.`,
		Example: `  goedgar sgml https://www.sec.gov/Archives/edgar/data/320193/0000320193-18-000145.txt
  goedgar sgml ./0000320193-18-000145.txt`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, meta, err := a.readSource(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			dec, err := a.decoder()
			if err != nil {
				return err
			}
			tree, err := dec.Decode(edgar.NormalizeSubmission(text))
			if err != nil {
				return err
			}
			return out.emit(text, tree, meta, "sgml")
		},
	}
	out.register(cmd)
	return cmd
}

func newDocumentsCmd(a *app) *cobra.Command {
	var (
		out     outputFlags
		reports bool
		search  string
	)
	cmd := &cobra.Command{
		Use:   "documents <source>",
		Short: "List the documents of a submission",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			filing, text, meta, err := a.parseSource(cmd.Context(), args[0], "")
			if err != nil {
				return err
			}
			fmt.Fprintf(os.Stderr, "Found %d documents\n", len(filing.Documents))

			if !reports && search == "" {
				return out.emit(text, filing.Documents, meta, "documents")
			}

			summary, err := filing.FilingSummary()
			if err != nil {
				return err
			}
			var entries []edgar.ReportEntry
			if search != "" {
				entries, err = edgar.SearchReports(summary, search)
			} else {
				entries, err = edgar.Reports(summary)
			}
			if err != nil {
				return err
			}
			return out.emit(text, entries, meta, "reports")
		},
	}
	cmd.Flags().BoolVar(&reports, "reports", false, "List the rendered reports named in FilingSummary.xml instead")
	cmd.Flags().StringVar(&search, "search", "", "Fuzzy search report short names")
	out.register(cmd)
	return cmd
}

// statementFor extracts one statement kind, or every statement for "all"
func statementFor(f interface {
	IncomeStatement() (*edgar.FinancialReport, error)
	BalanceSheet() (*edgar.FinancialReport, error)
	CashFlowStatement() (*edgar.FinancialReport, error)
}, all func() ([]*edgar.FinancialReport, error), kind string) (any, error) {
	switch strings.ToLower(kind) {
	case "income":
		return f.IncomeStatement()
	case "balance":
		return f.BalanceSheet()
	case "cashflow", "cash-flow":
		return f.CashFlowStatement()
	case "all", "":
		return all()
	}
	return nil, fmt.Errorf("unknown statement %q (want income, balance, cashflow or all)", kind)
}

func newFinancialsCmd(a *app) *cobra.Command {
	var (
		out       outputFlags
		statement string
		company   string
	)
	cmd := &cobra.Command{
		Use:   "financials <source>",
		Short: "Extract financial statements from a submission",
		Long: `Extract the income statement, balance sheet and cash flow statement
rendered in a 10-K or 10-Q full submission.`,
		Example: `  goedgar financials --statement balance https://www.sec.gov/Archives/edgar/data/320193/0000320193-18-000145.txt
  goedgar financials -s ./0000320193-18-000145.txt`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			filing, text, meta, err := a.parseSource(cmd.Context(), args[0], company)
			if err != nil {
				return err
			}
			result, err := statementFor(filing, filing.AllStatements, statement)
			if err != nil {
				return err
			}
			return out.emit(text, result, meta, statement)
		},
	}
	cmd.Flags().StringVar(&statement, "statement", "all", "Statement to extract: income, balance, cashflow or all")
	cmd.Flags().StringVar(&company, "company", "", "Identifier copied onto the reports")
	out.register(cmd)
	return cmd
}

func newStockCmd(a *app) *cobra.Command {
	var (
		out       outputFlags
		period    string
		year      int
		quarter   int
		statement string
	)
	cmd := &cobra.Command{
		Use:   "stock <symbol>",
		Short: "Find and extract the latest report filing of a ticker symbol",
		Long: `Resolve a ticker symbol to its CIK through the symbols file, locate its
annual or quarterly report in the EDGAR full index and extract statements.`,
		Example: `  goedgar stock AAPL --period annual --year 2018 --quarter 4
  goedgar stock spwr --period quarterly --statement income`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := edgar.ParsePeriod(period)
			if err != nil {
				return err
			}
			symbols, err := edgar.OpenSymbols(a.cfg.Symbols)
			if err != nil {
				return err
			}
			f, err := a.fetcher()
			if err != nil {
				return err
			}
			dec, err := a.decoder()
			if err != nil {
				return err
			}

			client := edgar.NewStockClient(f, symbols,
				edgar.WithStockLogger(a.log),
				edgar.WithStockFilingOptions(
					edgar.WithDecoder(dec),
					edgar.WithExtractOptions(edgar.WithExtractLogger(a.log)),
				),
			)
			stock, err := client.Stock(cmd.Context(), args[0], p, year, quarter)
			if err != nil {
				return err
			}
			fmt.Fprintf(os.Stderr, "%s (CIK %s): %s filed %s\n", stock.Symbol, stock.CIK, stock.Info.Form, stock.Info.DateFiled)

			result, err := statementFor(stock, stock.Statements, statement)
			if err != nil {
				return err
			}

			var raw string
			if out.saveOriginal {
				// Cached by the fetcher when a cache is configured
				if raw, err = f.Fetch(cmd.Context(), stock.Info.URL); err != nil {
					return err
				}
			}
			meta, err := edgar.ExtractMetadataFromURL(stock.Info.URL)
			if err != nil {
				meta = &edgar.FilingMetadata{CIK: stock.CIK}
			}
			meta.FormType = stock.Info.Form
			return out.emit(raw, result, meta, stock.Symbol+" "+statement)
		},
	}
	cmd.Flags().StringVar(&period, "period", string(edgar.Annual), "Report period: annual or quarterly")
	cmd.Flags().IntVar(&year, "year", 0, "Index year (0 selects the current index)")
	cmd.Flags().IntVar(&quarter, "quarter", 0, "Index quarter 1-4 (requires --year)")
	cmd.Flags().StringVar(&statement, "statement", "all", "Statement to extract: income, balance, cashflow or all")
	out.register(cmd)
	return cmd
}

func newSymbolsCmd(a *app) *cobra.Command {
	var (
		year    int
		quarter int
	)
	cmd := &cobra.Command{
		Use:   "symbols",
		Short: "Add ticker symbols found in ownership filings to the symbols file",
		Long: `Read forms 3, 4 and 5 of an index quarter, take the issuer trading symbol
of each and append unseen CIK/symbol pairs to the symbols file.
This makes one request per ownership filing and is slow.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			table, err := edgar.OpenSymbols(a.cfg.Symbols)
			if errors.Is(err, os.ErrNotExist) {
				table, err = edgar.NewSymbolTable(), nil
			}
			if err != nil {
				return err
			}
			f, err := a.fetcher()
			if err != nil {
				return err
			}

			index := edgar.NewIndexClient(f, a.log)
			infos, err := index.FilingInfo(cmd.Context(), edgar.IndexFilter{Forms: edgar.OwnershipForms}, year, quarter)
			if err != nil {
				return err
			}
			a.log.Info().Int("filings", len(infos)).Msg("reading ownership filings")

			added, errs := edgar.CollectSymbols(cmd.Context(), f, infos, table, year, quarter, a.log)
			for _, err := range errs {
				a.log.Warn().Err(err).Msg("skipped filing")
			}

			file, err := os.Create(a.cfg.Symbols)
			if err != nil {
				return fmt.Errorf("failed to create symbols file: %w", err)
			}
			defer file.Close()
			if err := table.Write(file); err != nil {
				return err
			}
			fmt.Fprintf(os.Stderr, "Added %d symbols, %d total in %s\n", added, table.Len(), a.cfg.Symbols)
			return cmd.Context().Err()
		},
	}
	cmd.Flags().IntVar(&year, "year", 0, "Index year (0 selects the current index)")
	cmd.Flags().IntVar(&quarter, "quarter", 0, "Index quarter 1-4 (requires --year)")
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("goedgar %s\n", edgar.VERSION)
		},
	}
}
