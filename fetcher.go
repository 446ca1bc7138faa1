package insider

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

	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"
)

const (
	VERSION = "0.1.0"

	// MinRequestInterval paces all outbound requests process-wide
	// (SEC requires 10 requests/second max)
	MinRequestInterval = 100 * time.Millisecond

	// SecEmailEnvVar is the environment variable name for SEC email
	SecEmailEnvVar = "SEC_EMAIL"

	defaultArchivesBaseURL = "https://www.sec.gov/Archives/edgar/data"
	defaultDataBaseURL     = "https://data.sec.gov"
	defaultTickerURL       = "https://www.sec.gov/files/company_tickers.json"
)

// GetSecEmail retrieves email from environment variable or returns error
func GetSecEmail() (string, error) {
	email := os.Getenv(SecEmailEnvVar)
	if email == "" {
		return "", fmt.Errorf("SEC email required: set %s environment variable or use --email flag", SecEmailEnvVar)
	}
	if err := ValidateEmail(email); err != nil {
		return "", err
	}
	return email, nil
}

// ValidateEmail checks that an email satisfies the SEC User-Agent policy
func ValidateEmail(email string) error {
	emailRegex := regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)
	if !emailRegex.MatchString(email) {
		return fmt.Errorf("invalid email format: %s", email)
	}
	if strings.HasSuffix(email, "example.com") {
		return fmt.Errorf("Use a real email address, not example.com: %s", email)
	}
	return nil
}

// BuildUserAgent creates a proper SEC User-Agent string
func BuildUserAgent(email string) string {
	return fmt.Sprintf("go-insider/%s (%s)", VERSION, email)
}

// StatusError is returned when the SEC responds with a non-2xx status.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("SEC returned status %d for %s", e.StatusCode, e.URL)
}

// Client is a rate-limited HTTP client for SEC EDGAR endpoints.
// A single pacing limiter serializes every outbound request the client
// makes, regardless of which lookup triggered it.
type Client struct {
	userAgent  string
	httpClient *http.Client
	limiter    *rate.Limiter

	archivesBaseURL string
	dataBaseURL     string
	tickerURL       string

	dirGroup singleflight.Group
	dirMu    sync.RWMutex
	dir      map[string]string
}

// ClientOption allows for customization of the client
type ClientOption func(*Client)

// WithHTTPClient overrides the underlying http.Client
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = hc }
}

// WithRequestInterval overrides the minimum interval between outbound requests
func WithRequestInterval(interval time.Duration) ClientOption {
	return func(c *Client) { c.limiter = rate.NewLimiter(rate.Every(interval), 1) }
}

// WithBaseURLs overrides the SEC endpoints, mainly for tests
func WithBaseURLs(archives, data, tickers string) ClientOption {
	return func(c *Client) {
		c.archivesBaseURL = strings.TrimRight(archives, "/")
		c.dataBaseURL = strings.TrimRight(data, "/")
		c.tickerURL = tickers
	}
}

// NewClient creates a new EDGAR client.
// Email is required by SEC - must be a valid email address.
func NewClient(email string, options ...ClientOption) (*Client, error) {
	if email == "" {
		return nil, fmt.Errorf("email is required for SEC requests")
	}
	if err := ValidateEmail(email); err != nil {
		return nil, err
	}

	c := &Client{
		userAgent:       BuildUserAgent(email),
		httpClient:      &http.Client{Timeout: 30 * time.Second},
		limiter:         rate.NewLimiter(rate.Every(MinRequestInterval), 1),
		archivesBaseURL: defaultArchivesBaseURL,
		dataBaseURL:     defaultDataBaseURL,
		tickerURL:       defaultTickerURL,
	}
	for _, option := range options {
		option(c)
	}
	return c, nil
}

// get issues a single rate-limited GET and returns the response body.
// Non-2xx responses become a *StatusError.
func (c *Client) get(ctx context.Context, url, accept string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", accept)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{URL: url, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	return body, nil
}
