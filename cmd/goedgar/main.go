package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	edgar "github.com/RxDataLab/go-edgar-financials"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// config is read from flags, GOEDGAR_* variables and an optional goedgar.yaml
type config struct {
	Email       string        `mapstructure:"email"`
	Symbols     string        `mapstructure:"symbols"`
	Cache       string        `mapstructure:"cache"`
	CacheMaxAge time.Duration `mapstructure:"cache_max_age"`
	MaxDepth    int           `mapstructure:"max_depth"`
	RateLimit   time.Duration `mapstructure:"rate_limit"`
	Grammar     string        `mapstructure:"grammar"`
	Verbose     bool          `mapstructure:"verbose"`
}

// app carries what every subcommand needs once configuration is loaded
type app struct {
	cfg   config
	log   zerolog.Logger
	cache *edgar.Cache
}

func main() {
	a := &app{}
	root := newRootCmd(a)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := root.ExecuteContext(ctx)
	stop()
	a.close()

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd(a *app) *cobra.Command {
	v := viper.New()

	root := &cobra.Command{
		Use:   "goedgar",
		Short: "Decode SEC EDGAR submissions and extract financial statements",
		Long: `goedgar splits EDGAR full submission files (.txt) into their documents
and extracts the rendered income statement, balance sheet and cash flow
statement into structured facts.

Sources are URLs on sec.gov or local files.`,
		Version:       edgar.VERSION,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.load(v)
		},
	}

	flags := root.PersistentFlags()
	flags.StringP("email", "e", "", "Email for SEC User-Agent header (or use SEC_EMAIL env var)")
	flags.String("symbols", "symbols.csv", "CSV file mapping ticker symbols to CIKs")
	flags.String("cache", "", "SQLite file caching fetched documents (empty disables caching)")
	flags.Duration("cache-max-age", 0, "Refetch cached documents older than this (0 keeps them forever)")
	flags.Int("max-depth", edgar.DefaultMaxDepth, "Maximum SGML nesting depth")
	flags.Duration("rate-limit", edgar.RateLimit, "Minimum delay between SEC requests")
	flags.String("grammar", "", "YAML grammar file replacing the built-in EDGAR grammar")
	flags.BoolP("verbose", "v", false, "Enable debug logging")

	for key, name := range map[string]string{
		"email":         "email",
		"symbols":       "symbols",
		"cache":         "cache",
		"cache_max_age": "cache-max-age",
		"max_depth":     "max-depth",
		"rate_limit":    "rate-limit",
		"grammar":       "grammar",
		"verbose":       "verbose",
	} {
		// Only fails for a nil flag
		_ = v.BindPFlag(key, flags.Lookup(name))
	}

	root.AddCommand(
		newSGMLCmd(a),
		newDocumentsCmd(a),
		newFinancialsCmd(a),
		newStockCmd(a),
		newSymbolsCmd(a),
		newVersionCmd(),
	)
	return root
}

// load resolves configuration. Precedence: flags, GOEDGAR_* environment
// (a .env file is read first), goedgar.yaml, defaults.
func (a *app) load(v *viper.Viper) error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to load .env: %w", err)
	}

	v.SetConfigName("goedgar")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if dir, err := os.UserConfigDir(); err == nil {
		v.AddConfigPath(filepath.Join(dir, "goedgar"))
	}
	v.SetEnvPrefix("GOEDGAR")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("failed to read config file: %w", err)
		}
	}
	if err := v.Unmarshal(&a.cfg); err != nil {
		return fmt.Errorf("failed to unmarshal config: %w", err)
	}

	level := zerolog.InfoLevel
	if a.cfg.Verbose {
		level = zerolog.DebugLevel
	}
	a.log = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}).
		Level(level).
		With().Timestamp().Logger()

	if f := v.ConfigFileUsed(); f != "" {
		a.log.Debug().Str("file", f).Msg("loaded config")
	}
	return nil
}

func (a *app) close() {
	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			a.log.Warn().Err(err).Msg("failed to close cache")
		}
	}
}

// fetcher builds a rate-limited SEC client. The email is only required
// once something actually has to be fetched.
func (a *app) fetcher() (*edgar.Fetcher, error) {
	var (
		email string
		err   error
	)
	if a.cfg.Email == "" {
		email, err = edgar.GetSecEmail()
	} else {
		email, err = edgar.ValidateEmail(a.cfg.Email)
	}
	if err != nil {
		return nil, err
	}

	opts := []edgar.FetcherOption{
		edgar.WithRateLimit(a.cfg.RateLimit),
		edgar.WithFetchLogger(a.log),
	}
	if a.cfg.Cache != "" && a.cache == nil {
		cache, err := edgar.OpenCache(a.cfg.Cache, a.cfg.CacheMaxAge)
		if err != nil {
			return nil, err
		}
		a.cache = cache
	}
	if a.cache != nil {
		opts = append(opts, edgar.WithCache(a.cache))
	}
	return edgar.NewFetcher(email, opts...)
}

// decoder applies the grammar and depth settings
func (a *app) decoder() (*edgar.Decoder, error) {
	grammar := edgar.ExtendedGrammar()
	if a.cfg.Grammar != "" {
		f, err := os.Open(a.cfg.Grammar)
		if err != nil {
			return nil, fmt.Errorf("failed to open grammar: %w", err)
		}
		defer f.Close()
		if grammar, err = edgar.LoadGrammar(f); err != nil {
			return nil, err
		}
	}
	return edgar.NewDecoder(grammar, edgar.WithMaxDepth(a.cfg.MaxDepth), edgar.WithLogger(a.log)), nil
}

// readSource returns the submission text of a URL or file path and any
// metadata its URL carries
func (a *app) readSource(ctx context.Context, source string) (string, *edgar.FilingMetadata, error) {
	isURL := strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://")
	if !isURL {
		fmt.Fprintf(os.Stderr, "Reading from file: %s\n", source)
		data, err := os.ReadFile(source)
		if err != nil {
			return "", nil, fmt.Errorf("failed to read file: %w", err)
		}
		return string(data), nil, nil
	}

	urlMeta, err := edgar.ExtractMetadataFromURL(source)
	if err != nil {
		a.log.Warn().Err(err).Str("url", source).Msg("no metadata in URL")
	}

	f, err := a.fetcher()
	if err != nil {
		return "", nil, err
	}
	fmt.Fprintf(os.Stderr, "Fetching from SEC: %s\n", source)
	text, err := f.Fetch(ctx, source)
	if err != nil {
		return "", nil, fmt.Errorf("failed to fetch submission: %w", err)
	}
	return text, urlMeta, nil
}

// parseSource reads and decodes a full submission
func (a *app) parseSource(ctx context.Context, source, company string) (*edgar.Filing, string, *edgar.FilingMetadata, error) {
	text, urlMeta, err := a.readSource(ctx, source)
	if err != nil {
		return nil, "", nil, err
	}
	dec, err := a.decoder()
	if err != nil {
		return nil, "", nil, err
	}

	opts := []edgar.FilingOption{
		edgar.WithDecoder(dec),
		edgar.WithFilingLogger(a.log),
		edgar.WithCompany(company),
		edgar.WithExtractOptions(edgar.WithExtractLogger(a.log)),
	}
	if urlMeta != nil {
		opts = append(opts, edgar.WithSourceURL(source))
	}

	fmt.Fprintf(os.Stderr, "Parsing submission...\n")
	filing, err := edgar.ParseFiling(text, opts...)
	if err != nil {
		return nil, "", nil, fmt.Errorf("failed to parse submission: %w", err)
	}
	return filing, text, edgar.MergeMetadata(urlMeta, edgar.ExtractMetadataFromFiling(filing)), nil
}
