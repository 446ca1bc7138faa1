package insider

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// tickerEntry is one row of the SEC company_tickers.json directory
type tickerEntry struct {
	CIK    int64  `json:"cik_str"`
	Ticker string `json:"ticker"`
	Title  string `json:"title"`
}

// ResolveCIK maps a ticker symbol to its zero-padded 10-digit CIK.
// The full directory is downloaded once per client lifetime; concurrent
// first callers share a single in-flight load. A ticker absent from the
// directory is not an error - the second return is false.
func (c *Client) ResolveCIK(ctx context.Context, ticker string) (string, bool, error) {
	dir, err := c.tickerDirectory(ctx)
	if err != nil {
		return "", false, err
	}
	cik, ok := dir[strings.ToUpper(strings.TrimSpace(ticker))]
	return cik, ok, nil
}

// tickerDirectory returns the memoized ticker directory, loading it on
// first use. The directory is only cached on a successful load, so a
// failed download can be retried by the next caller.
func (c *Client) tickerDirectory(ctx context.Context) (map[string]string, error) {
	c.dirMu.RLock()
	dir := c.dir
	c.dirMu.RUnlock()
	if dir != nil {
		return dir, nil
	}

	v, err, _ := c.dirGroup.Do("tickers", func() (interface{}, error) {
		body, err := c.get(ctx, c.tickerURL, "application/json")
		if err != nil {
			return nil, fmt.Errorf("failed to fetch ticker directory: %w", err)
		}

		// The directory is keyed by row index, not by ticker
		var entries map[string]tickerEntry
		if err := json.Unmarshal(body, &entries); err != nil {
			return nil, fmt.Errorf("failed to parse ticker directory: %w", err)
		}

		loaded := make(map[string]string, len(entries))
		for _, e := range entries {
			if e.Ticker == "" {
				continue
			}
			loaded[strings.ToUpper(e.Ticker)] = fmt.Sprintf("%010d", e.CIK)
		}

		c.dirMu.Lock()
		c.dir = loaded
		c.dirMu.Unlock()
		return loaded, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(map[string]string), nil
}
