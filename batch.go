package edgar

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/rs/zerolog"
)

// BatchOptions configures batch download and parsing
type BatchOptions struct {
	CIK              string   // Required: CIK to fetch filings for
	Forms            []string // Required: Form types to keep, e.g. FinancialForms[Annual]
	DateFrom         string   // Optional: Start date (YYYY-MM-DD), empty = no limit
	DateTo           string   // Optional: End date (YYYY-MM-DD), empty = no limit
	Company          string   // Optional: copied onto every report
	IncludePaginated bool     // If true, fetch all paginated filings (can be slow)
	Limit            int      // Optional: stop after this many filings, 0 = all
	Logger           zerolog.Logger
}

// BatchFiling is one filing of a batch with the statements it yielded
type BatchFiling struct {
	Record  FilingRecord
	Filing  *Filing
	Reports []*FinancialReport
}

// BatchResult contains the results of a batch operation
type BatchResult struct {
	Filings    []*BatchFiling
	TotalFound int     // Total filings matching criteria
	Fetched    int     // Number actually downloaded and parsed
	Errors     []error // Any errors encountered during processing
}

// FetchAndParseBatch fetches every filing of a CIK matching the criteria and
// extracts its statements. Per-filing failures are collected in Errors.
func FetchAndParseBatch(ctx context.Context, r Retriever, opts BatchOptions) (*BatchResult, error) {
	if opts.CIK == "" {
		return nil, fmt.Errorf("CIK is required")
	}
	if len(opts.Forms) == 0 {
		return nil, fmt.Errorf("at least one form type is required")
	}
	log := opts.Logger

	log.Info().Str("cik", opts.CIK).Msg("fetching submissions")
	subs, err := FetchSubmissions(ctx, r, opts.CIK)
	if err != nil {
		return nil, err
	}

	var all []FilingRecord
	if opts.IncludePaginated {
		log.Info().Int("files", len(subs.Filings.Files)).Msg("fetching paginated filings")
		all, err = subs.GetAllFilings(ctx, r)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch paginated filings: %w", err)
		}
	} else {
		all = subs.GetRecentFilings()
	}

	records := FilterByDateRange(FilterByForm(all, opts.Forms...), opts.DateFrom, opts.DateTo)
	if opts.Limit > 0 && len(records) > opts.Limit {
		records = records[:opts.Limit]
	}

	result := &BatchResult{TotalFound: len(records)}
	log.Info().Int("filings", len(records)).Strs("forms", opts.Forms).Msg("downloading and parsing")

	for i, rec := range records {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if (i+1)%10 == 0 || i == 0 {
			log.Info().Msgf("progress: %d/%d", i+1, len(records))
		}

		url := rec.SubmissionURL()
		text, err := r.Fetch(ctx, url)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Errorf("failed to fetch %s: %w", rec.AccessionNumber, err))
			continue
		}

		filing, err := ParseFiling(text, WithCompany(opts.Company), WithSourceURL(url), WithFilingLogger(log))
		if err != nil {
			result.Errors = append(result.Errors, fmt.Errorf("failed to parse %s: %w", rec.AccessionNumber, err))
			continue
		}

		reports, err := filing.AllStatements()
		if err != nil && !errors.Is(err, ErrNotFound) {
			result.Errors = append(result.Errors, fmt.Errorf("failed to extract %s: %w", rec.AccessionNumber, err))
			continue
		}

		result.Filings = append(result.Filings, &BatchFiling{Record: rec, Filing: filing, Reports: reports})
		result.Fetched++
	}

	log.Info().Int("parsed", result.Fetched).Int("found", result.TotalFound).Int("errors", len(result.Errors)).
		Msg("batch complete")
	return result, nil
}

// CollectSymbols reads the issuer trading symbol from ownership filings
// (forms 3, 4 and 5) listed in infos and adds unseen CIK/symbol pairs to
// table, tagged with year and quarter. It returns how many records were added.
func CollectSymbols(ctx context.Context, r Retriever, infos []FilingInfo, table *SymbolTable, year, quarter int, log zerolog.Logger) (int, []error) {
	var (
		added int
		errs  []error
	)

	for i, info := range infos {
		if err := ctx.Err(); err != nil {
			return added, append(errs, err)
		}
		if !slices.Contains(OwnershipForms, info.Form) {
			continue
		}
		if (i+1)%50 == 0 {
			log.Info().Msgf("progress: %d/%d", i+1, len(infos))
		}

		text, err := r.Fetch(ctx, info.URL)
		if err != nil {
			errs = append(errs, fmt.Errorf("failed to fetch %s: %w", info.URL, err))
			continue
		}
		filing, err := ParseFiling(text, WithSourceURL(info.URL), WithFilingLogger(log))
		if err != nil {
			errs = append(errs, fmt.Errorf("failed to parse %s: %w", info.URL, err))
			continue
		}

		for _, doc := range filing.Documents {
			cik, symbol, err := doc.IssuerTradingSymbol()
			if err != nil || cik == "" || symbol == "" {
				continue
			}
			if !table.Has(cik, symbol) {
				table.Add(SymbolRecord{CIK: cik, Symbol: symbol, Year: year, Quarter: quarter, FilingURL: info.URL})
				added++
				log.Debug().Str("cik", cik).Str("symbol", symbol).Msg("new symbol")
			}
			break
		}
	}
	return added, errs
}
