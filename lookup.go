package insider

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"
)

// ErrTickerNotFound is returned when a ticker is absent from the SEC
// directory. It means "no insider data available", not a system fault.
var ErrTickerNotFound = errors.New("ticker not found in SEC directory")

const (
	// DefaultMaxFilings bounds the rate-limited document fetches per lookup
	DefaultMaxFilings = 3

	// DefaultResultTTL is the in-process cache window for lookup results
	DefaultResultTTL = 5 * time.Minute

	// DefaultIndexTTL is the cache window for a company's filing index.
	// Indices change infrequently but new filings do appear.
	DefaultIndexTTL = 15 * time.Minute
)

// Config tunes a Service. Zero values select the defaults above.
type Config struct {
	MaxFilings int
	ResultTTL  time.Duration
	IndexTTL   time.Duration
}

// Service composes the fetcher, ticker resolver, parsers, and cache
// tiers into the single ticker -> LookupResult operation.
type Service struct {
	client     *Client
	store      Store // optional persisted tier, may be nil
	results    *memoryCache
	indices    *memoryCache
	maxFilings int
	flight     singleflight.Group
}

// NewService creates a lookup service. store may be nil to run with
// only the in-process cache tier.
func NewService(client *Client, store Store, cfg Config) *Service {
	if cfg.MaxFilings <= 0 {
		cfg.MaxFilings = DefaultMaxFilings
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = DefaultResultTTL
	}
	if cfg.IndexTTL <= 0 {
		cfg.IndexTTL = DefaultIndexTTL
	}
	return &Service{
		client:     client,
		store:      store,
		results:    newMemoryCache(cfg.ResultTTL),
		indices:    newMemoryCache(cfg.IndexTTL),
		maxFilings: cfg.MaxFilings,
	}
}

// Lookup returns the insider transaction summary for a ticker. Callers
// always receive either a complete result (possibly containing
// placeholder rows for individual filings that could not be read) or
// ErrTickerNotFound.
//
// Concurrent lookups for the same uncached ticker share one
// fetch-and-parse pass.
func (s *Service) Lookup(ctx context.Context, ticker string) (*LookupResult, error) {
	key := strings.ToUpper(strings.TrimSpace(ticker))
	if key == "" {
		return nil, ErrTickerNotFound
	}

	if v, ok := s.results.get(key); ok {
		return v.(*LookupResult), nil
	}

	v, err, _ := s.flight.Do(key, func() (interface{}, error) {
		return s.lookupMiss(ctx, key)
	})
	if err != nil {
		return nil, err
	}
	return v.(*LookupResult), nil
}

func (s *Service) lookupMiss(ctx context.Context, ticker string) (*LookupResult, error) {
	// Persisted tier. Failures degrade to a miss: the cache is an
	// optimization, never a correctness dependency.
	if s.store != nil {
		result, ok, err := s.store.Get(ctx, ticker)
		if err != nil {
			log.Printf("insider: persisted cache read for %s failed: %v", ticker, err)
		}
		if ok {
			s.results.set(ticker, result)
			return result, nil
		}
	}

	cik, ok, err := s.client.ResolveCIK(ctx, ticker)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrTickerNotFound
	}

	filings, err := s.ownershipFilings(ctx, cik)
	if err != nil {
		return nil, err
	}

	SortFilingsByDateDesc(filings)
	if len(filings) > s.maxFilings {
		filings = filings[:s.maxFilings]
	}

	transactions := make([]Transaction, 0)
	for _, f := range filings {
		transactions = append(transactions, s.filingTransactions(ctx, f)...)
	}

	result := &LookupResult{
		Ticker:       ticker,
		CIK:          cik,
		Summary:      Summarize(transactions),
		Transactions: transactions,
	}

	s.results.set(ticker, result)
	if s.store != nil {
		if err := s.store.Put(ctx, ticker, result); err != nil {
			log.Printf("insider: persisted cache write for %s failed: %v", ticker, err)
		}
	}
	return result, nil
}

// ownershipFilings returns the company's normalized Form 3/4/5 index,
// cached independently of lookup results.
func (s *Service) ownershipFilings(ctx context.Context, cik string) ([]Filing, error) {
	if v, ok := s.indices.get(cik); ok {
		cached := v.([]Filing)
		filings := make([]Filing, len(cached))
		copy(filings, cached)
		return filings, nil
	}

	subs, err := s.client.FetchSubmissions(ctx, cik)
	if err != nil {
		return nil, err
	}
	filings := subs.OwnershipFilings(cik)
	s.indices.set(cik, filings)

	out := make([]Filing, len(filings))
	copy(out, filings)
	return out, nil
}

// filingTransactions fetches and parses one filing's document. A fetch
// failure or an empty parse degrades to a single placeholder row so the
// filing's existence stays visible in the result.
func (s *Service) filingTransactions(ctx context.Context, f Filing) []Transaction {
	source := s.client.DocumentURL(f)

	data, err := s.client.FetchOwnershipDocument(ctx, f)
	if err != nil {
		return []Transaction{PlaceholderTransaction(f, source)}
	}

	txns := ParseFilingTransactions(data, f, source)
	if len(txns) == 0 {
		return []Transaction{PlaceholderTransaction(f, source)}
	}
	return txns
}
