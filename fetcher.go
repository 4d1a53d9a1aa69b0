package edgar

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const (
	VERSION = "0.2.0"

	// RateLimit delays between requests (SEC requires 10 requests/second max)
	RateLimit = 100 * time.Millisecond

	// SecEmailEnvVar is the environment variable name for SEC email
	SecEmailEnvVar = "SEC_EMAIL"
)

var emailRe = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

// GetSecEmail retrieves email from environment variable or returns error
func GetSecEmail() (string, error) {
	return ValidateEmail(os.Getenv(SecEmailEnvVar))
}

// ValidateEmail checks that email is usable in the SEC User-Agent header
func ValidateEmail(email string) (string, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return "", fmt.Errorf("SEC email required: set %s environment variable or use --email flag", SecEmailEnvVar)
	}
	if !emailRe.MatchString(email) {
		return "", fmt.Errorf("invalid email format: %s", email)
	}
	if strings.HasSuffix(email, "example.com") {
		return "", fmt.Errorf("use a real email address, not example.com: %s", email)
	}
	return email, nil
}

// BuildUserAgent creates a proper SEC User-Agent string
func BuildUserAgent(email string) string {
	return fmt.Sprintf("go-edgar-financials/%s (%s)", VERSION, email)
}

// Retriever returns the text found at a URL
type Retriever interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// StatusError is returned for any non-200 response
type StatusError struct {
	URL        string
	StatusCode int
	Body       string // First bytes of the response, for diagnostics
}

func (e *StatusError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("SEC returned status %d for %s: %s", e.StatusCode, e.URL, e.Body)
	}
	return fmt.Sprintf("SEC returned status %d for %s", e.StatusCode, e.URL)
}

// Fetcher retrieves EDGAR documents over HTTP, spacing requests by the
// rate limit and optionally reading through a Cache
type Fetcher struct {
	client    *http.Client
	userAgent string
	rateLimit time.Duration
	cache     *Cache
	logger    zerolog.Logger

	mu   sync.Mutex
	last time.Time
}

// FetcherOption configures a Fetcher
type FetcherOption func(*Fetcher)

// WithHTTPClient replaces the default client (30s timeout)
func WithHTTPClient(c *http.Client) FetcherOption {
	return func(f *Fetcher) { f.client = c }
}

// WithRateLimit overrides RateLimit
func WithRateLimit(d time.Duration) FetcherOption {
	return func(f *Fetcher) { f.rateLimit = d }
}

// WithCache stores every successful response in c and serves repeats from it
func WithCache(c *Cache) FetcherOption {
	return func(f *Fetcher) { f.cache = c }
}

// WithFetchLogger sets the logger for request tracing
func WithFetchLogger(logger zerolog.Logger) FetcherOption {
	return func(f *Fetcher) { f.logger = logger }
}

// NewFetcher returns a Fetcher identifying itself with email.
// Email is required by SEC - must be a valid email address
func NewFetcher(email string, opts ...FetcherOption) (*Fetcher, error) {
	if strings.TrimSpace(email) == "" {
		return nil, fmt.Errorf("email is required for SEC requests")
	}

	f := &Fetcher{
		client:    &http.Client{Timeout: 30 * time.Second},
		userAgent: BuildUserAgent(email),
		rateLimit: RateLimit,
		logger:    zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f, nil
}

// Fetch returns the body at url as text
func (f *Fetcher) Fetch(ctx context.Context, url string) (string, error) {
	if f.cache != nil {
		body, ok, err := f.cache.Get(ctx, url)
		if err != nil {
			f.logger.Warn().Err(err).Str("url", url).Msg("cache read failed")
		} else if ok {
			f.logger.Debug().Str("url", url).Msg("cache hit")
			return body, nil
		}
	}

	data, err := f.FetchBytes(ctx, url)
	if err != nil {
		return "", err
	}
	body := string(data)

	if f.cache != nil {
		if err := f.cache.Put(ctx, url, body); err != nil {
			f.logger.Warn().Err(err).Str("url", url).Msg("cache write failed")
		}
	}
	return body, nil
}

// FetchBytes performs the rate-limited GET without consulting the cache
func (f *Fetcher) FetchBytes(ctx context.Context, url string) ([]byte, error) {
	if err := f.wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)

	f.logger.Debug().Str("url", url).Msg("fetching")
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 200))
		return nil, &StatusError{URL: url, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(snippet))}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	return body, nil
}

// wait blocks until the rate limit allows another request. The slot is
// claimed under the lock so concurrent callers queue up behind each other.
func (f *Fetcher) wait(ctx context.Context) error {
	f.mu.Lock()
	now := time.Now()
	next := f.last.Add(f.rateLimit)
	if next.Before(now) {
		next = now
	}
	f.last = next
	f.mu.Unlock()

	delay := time.Until(next)
	if delay <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
