package insider_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	insider "github.com/RxDataLab/go-insider"
)

// fakeSEC is an httptest server standing in for the three SEC surfaces
// the pipeline consumes, recording every request path
type fakeSEC struct {
	mux *http.ServeMux
	srv *httptest.Server

	mu       sync.Mutex
	requests []string
}

func newFakeSEC(t *testing.T) *fakeSEC {
	t.Helper()
	f := &fakeSEC{mux: http.NewServeMux()}
	f.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.requests = append(f.requests, r.URL.Path)
		f.mu.Unlock()
		f.mux.ServeHTTP(w, r)
	}))
	t.Cleanup(f.srv.Close)

	f.handleString("/files/company_tickers.json", tickerDirectoryJSON)
	return f
}

func (f *fakeSEC) handleString(path, body string) {
	f.mux.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(body))
	})
}

func (f *fakeSEC) requestCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

func (f *fakeSEC) requestsMatching(substr string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, p := range f.requests {
		if strings.Contains(p, substr) {
			out = append(out, p)
		}
	}
	return out
}

// fiveFilingsJSON indexes five Form 4 filings filed 2025-01-01..05
// plus a 10-K that must never reach the parser
const fiveFilingsJSON = `{
	"cik": "320193",
	"filings": {"recent": {
		"accessionNumber": ["0001-25-000099", "0001-25-000005", "0001-25-000004", "0001-25-000003", "0001-25-000002", "0001-25-000001"],
		"filingDate": ["2025-01-06", "2025-01-05", "2025-01-04", "2025-01-03", "2025-01-02", "2025-01-01"],
		"reportDate": ["2025-01-05", "2025-01-04", "2025-01-03", "2025-01-02", "2025-01-01", "2024-12-31"],
		"form": ["10-K", "4", "4", "4", "4", "4"],
		"primaryDocument": ["aapl-10k.htm", "xslF345X05/doc5.xml", "xslF345X05/doc4.xml", "xslF345X05/doc3.xml", "xslF345X05/doc2.xml", "xslF345X05/doc1.xml"]
	}}
}`

func newLookupService(t *testing.T, f *fakeSEC, store insider.Store, cfg insider.Config) *insider.Service {
	t.Helper()
	client := newTestClient(t, f.srv)
	return insider.NewService(client, store, cfg)
}

// TestLookupSelectsMostRecentFilings is the end-to-end happy path:
// with five Form 4 filings and MaxFilings=2, exactly the two most
// recent documents are fetched and aggregated
func TestLookupSelectsMostRecentFilings(t *testing.T) {
	f := newFakeSEC(t)
	f.handleString("/submissions/CIK0000320193.json", fiveFilingsJSON)
	f.handleString("/Archives/edgar/data/320193/000125000005/doc5.xml",
		string(ownershipXML(singleOwner, "",
			nonDerivRow("Common Stock", "2025-01-04", "S", "500", "245.89", "D", ""), "")))
	f.handleString("/Archives/edgar/data/320193/000125000004/doc4.xml",
		string(ownershipXML(singleOwner, "",
			nonDerivRow("Common Stock", "2025-01-03", "P", "1000", "10", "A", ""), "")))

	service := newLookupService(t, f, nil, insider.Config{MaxFilings: 2})

	result, err := service.Lookup(context.Background(), "aapl")
	require.NoError(t, err)

	assert.Equal(t, "AAPL", result.Ticker)
	assert.Equal(t, "0000320193", result.CIK)

	require.Len(t, result.Transactions, 2)
	assert.Equal(t, insider.TypeSell, result.Transactions[0].Type, "most recent filing first")
	assert.Equal(t, 500.0, result.Transactions[0].Shares)
	assert.Equal(t, insider.TypeBuy, result.Transactions[1].Type)
	assert.Equal(t, 1000.0, result.Transactions[1].Shares)

	assert.Equal(t, 1000.0, result.Summary.TotalBuyShares)
	assert.Equal(t, 500.0, result.Summary.TotalSellShares)
	assert.Equal(t, 500.0, result.Summary.NetShares)

	docFetches := f.requestsMatching("/Archives/")
	require.Len(t, docFetches, 2, "lookup is bounded to MaxFilings document fetches")
	assert.Contains(t, docFetches[0], "doc5.xml")
	assert.Contains(t, docFetches[1], "doc4.xml")

	// Every transaction cites the filing it came from
	for _, txn := range result.Transactions {
		assert.Contains(t, txn.Source, "/Archives/edgar/data/320193/")
	}
}

// TestLookupCached verifies the second lookup for a ticker is served
// from the in-process tier with zero additional network calls
func TestLookupCached(t *testing.T) {
	f := newFakeSEC(t)
	f.handleString("/submissions/CIK0000320193.json", fiveFilingsJSON)
	f.handleString("/Archives/edgar/data/320193/000125000005/doc5.xml",
		string(ownershipXML(singleOwner, "",
			nonDerivRow("Common Stock", "2025-01-04", "S", "500", "245.89", "D", ""), "")))

	service := newLookupService(t, f, nil, insider.Config{MaxFilings: 1})
	ctx := context.Background()

	first, err := service.Lookup(ctx, "AAPL")
	require.NoError(t, err)
	afterFirst := f.requestCount()

	second, err := service.Lookup(ctx, "AAPL")
	require.NoError(t, err)

	assert.Equal(t, afterFirst, f.requestCount(), "cached lookup makes no network calls")
	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("cached result differs (-first +second):\n%s", diff)
	}
}

// TestLookupNotFound: an unknown ticker yields ErrTickerNotFound after
// only the directory load, with zero further network calls
func TestLookupNotFound(t *testing.T) {
	f := newFakeSEC(t)

	service := newLookupService(t, f, nil, insider.Config{})

	_, err := service.Lookup(context.Background(), "ZZZZ")
	require.ErrorIs(t, err, insider.ErrTickerNotFound)
	assert.Equal(t, 1, f.requestCount(), "only the directory load")
}

// TestLookupPlaceholderOnFetchFailure: a failing document fetch
// degrades that filing to a placeholder row instead of failing the
// whole lookup
func TestLookupPlaceholderOnFetchFailure(t *testing.T) {
	f := newFakeSEC(t)
	f.handleString("/submissions/CIK0000320193.json", fiveFilingsJSON)
	f.mux.HandleFunc("/Archives/edgar/data/320193/000125000005/doc5.xml",
		func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "boom", http.StatusInternalServerError)
		})
	f.handleString("/Archives/edgar/data/320193/000125000004/doc4.xml",
		string(ownershipXML(singleOwner, "",
			nonDerivRow("Common Stock", "2025-01-03", "P", "1000", "10", "A", ""), "")))

	service := newLookupService(t, f, nil, insider.Config{MaxFilings: 2})

	result, err := service.Lookup(context.Background(), "AAPL")
	require.NoError(t, err)

	require.Len(t, result.Transactions, 2)
	placeholder := result.Transactions[0]
	assert.True(t, placeholder.Placeholder)
	assert.Equal(t, insider.TypeOther, placeholder.Type)
	assert.Zero(t, placeholder.Shares)
	assert.Equal(t, "Transaction details unavailable", placeholder.Note)
	assert.Equal(t, "4", placeholder.FormType)

	// The healthy filing still contributes, and the placeholder does
	// not skew totals
	assert.Equal(t, 1000.0, result.Summary.TotalBuyShares)
	assert.Equal(t, 0.0, result.Summary.TotalSellShares)
}

// TestLookupPlaceholderOnEmptyDocument: a filing whose document parses
// to zero transactions also degrades to a placeholder
func TestLookupPlaceholderOnEmptyDocument(t *testing.T) {
	f := newFakeSEC(t)
	f.handleString("/submissions/CIK0000320193.json", fiveFilingsJSON)
	f.handleString("/Archives/edgar/data/320193/000125000005/doc5.xml",
		`<ownershipDocument><documentType>4</documentType></ownershipDocument>`)

	service := newLookupService(t, f, nil, insider.Config{MaxFilings: 1})

	result, err := service.Lookup(context.Background(), "AAPL")
	require.NoError(t, err)

	require.Len(t, result.Transactions, 1)
	assert.True(t, result.Transactions[0].Placeholder)
}

// TestLookupIndexPageFallback: when the derived document URL 404s, the
// filing index page is scanned for the raw ownership XML
func TestLookupIndexPageFallback(t *testing.T) {
	f := newFakeSEC(t)
	f.handleString("/submissions/CIK0000320193.json", `{
		"cik": "320193",
		"filings": {"recent": {
			"accessionNumber": ["0001-25-000009"],
			"filingDate": ["2025-01-05"],
			"reportDate": ["2025-01-04"],
			"form": ["4"],
			"primaryDocument": ["xslF345X05/doc9.xml"]
		}}
	}`)
	// doc9.xml is not served, so the derived URL 404s; only the index
	// page itself responds under this prefix
	indexPath := "/Archives/edgar/data/320193/000125000009/"
	f.mux.HandleFunc(indexPath, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != indexPath {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(`<html><body>
			<a href="xslF345X05/doc9.xml">rendered</a>
			<a href="ownership.xml">raw</a>
		</body></html>`))
	})
	f.handleString("/Archives/edgar/data/320193/000125000009/ownership.xml",
		string(ownershipXML(singleOwner, "",
			nonDerivRow("Common Stock", "2025-01-04", "S", "500", "245.89", "D", ""), "")))

	service := newLookupService(t, f, nil, insider.Config{MaxFilings: 1})

	result, err := service.Lookup(context.Background(), "AAPL")
	require.NoError(t, err)

	require.Len(t, result.Transactions, 1)
	assert.False(t, result.Transactions[0].Placeholder)
	assert.Equal(t, 500.0, result.Transactions[0].Shares)
	assert.NotEmpty(t, f.requestsMatching("ownership.xml"))
}

// fakeStore is an in-memory Store recording call counts
type fakeStore struct {
	mu      sync.Mutex
	entries map[string]*insider.LookupResult
	gets    int
	puts    int
	failAll bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{entries: make(map[string]*insider.LookupResult)}
}

func (s *fakeStore) Get(ctx context.Context, ticker string) (*insider.LookupResult, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gets++
	if s.failAll {
		return nil, false, fmt.Errorf("store down")
	}
	r, ok := s.entries[ticker]
	return r, ok, nil
}

func (s *fakeStore) Put(ctx context.Context, ticker string, result *insider.LookupResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.puts++
	if s.failAll {
		return fmt.Errorf("store down")
	}
	s.entries[ticker] = result
	return nil
}

func (s *fakeStore) Close() error { return nil }

// TestLookupPromotesFromStore: a persisted hit is returned without any
// network call and promoted into the in-process tier
func TestLookupPromotesFromStore(t *testing.T) {
	f := newFakeSEC(t)
	store := newFakeStore()
	seeded := sampleResult("AAPL", 500)
	require.NoError(t, store.Put(context.Background(), "AAPL", seeded))
	store.puts = 0

	service := newLookupService(t, f, store, insider.Config{})
	ctx := context.Background()

	result, err := service.Lookup(ctx, "AAPL")
	require.NoError(t, err)
	if diff := cmp.Diff(seeded, result); diff != "" {
		t.Errorf("persisted result mismatch (-want +got):\n%s", diff)
	}
	assert.Zero(t, f.requestCount(), "tier-2 hit needs no network")
	assert.Equal(t, 1, store.gets)

	// Promoted: the next call avoids even the store round trip
	_, err = service.Lookup(ctx, "AAPL")
	require.NoError(t, err)
	assert.Equal(t, 1, store.gets)
}

// TestLookupWritesThroughStore: a full miss writes the fresh result to
// the persisted tier
func TestLookupWritesThroughStore(t *testing.T) {
	f := newFakeSEC(t)
	f.handleString("/submissions/CIK0000320193.json", fiveFilingsJSON)
	f.handleString("/Archives/edgar/data/320193/000125000005/doc5.xml",
		string(ownershipXML(singleOwner, "",
			nonDerivRow("Common Stock", "2025-01-04", "S", "500", "245.89", "D", ""), "")))

	store := newFakeStore()
	service := newLookupService(t, f, store, insider.Config{MaxFilings: 1})

	result, err := service.Lookup(context.Background(), "AAPL")
	require.NoError(t, err)

	assert.Equal(t, 1, store.puts)
	stored, ok, err := store.Get(context.Background(), "AAPL")
	require.NoError(t, err)
	require.True(t, ok)
	if diff := cmp.Diff(result, stored); diff != "" {
		t.Errorf("write-through mismatch (-returned +stored):\n%s", diff)
	}
}

// TestLookupSurvivesStoreFailure: a broken persisted tier degrades to
// a cache miss and a dropped write, never a failed lookup
func TestLookupSurvivesStoreFailure(t *testing.T) {
	f := newFakeSEC(t)
	f.handleString("/submissions/CIK0000320193.json", fiveFilingsJSON)
	f.handleString("/Archives/edgar/data/320193/000125000005/doc5.xml",
		string(ownershipXML(singleOwner, "",
			nonDerivRow("Common Stock", "2025-01-04", "S", "500", "245.89", "D", ""), "")))

	store := newFakeStore()
	store.failAll = true
	service := newLookupService(t, f, store, insider.Config{MaxFilings: 1})

	result, err := service.Lookup(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.Equal(t, 500.0, result.Summary.TotalSellShares)
}

// TestLookupConcurrentSameTicker: concurrent lookups for one uncached
// ticker share a single fetch-and-parse pass
func TestLookupConcurrentSameTicker(t *testing.T) {
	f := newFakeSEC(t)
	f.handleString("/submissions/CIK0000320193.json", fiveFilingsJSON)
	f.handleString("/Archives/edgar/data/320193/000125000005/doc5.xml",
		string(ownershipXML(singleOwner, "",
			nonDerivRow("Common Stock", "2025-01-04", "S", "500", "245.89", "D", ""), "")))

	service := newLookupService(t, f, nil, insider.Config{MaxFilings: 1})
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := service.Lookup(ctx, "AAPL")
			assert.NoError(t, err)
			assert.Equal(t, 500.0, result.Summary.TotalSellShares)
		}()
	}
	wg.Wait()

	// directory + submissions + one document
	assert.Equal(t, 3, f.requestCount())
}
