// Package mtgjson implements the bulk dump provider adapter.
//
// MTGJSON publishes AllPricesToday as a gzip-compressed JSON object keyed by
// card UUID, refreshed on a roughly weekly cadence. The client downloads the
// dump into a disk cache and only re-downloads once the cached copy is older
// than the publisher's update cadence. Parsing is incremental: one card
// record is decoded at a time, so peak memory is independent of dump size.
//
// Live price and listing operations are not supported; the dump feeds the
// bulk importer, and per-card history reads come from an in-memory index
// built on first use so the disk file is not re-read within one process.
package mtgjson

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/cardledger/price-data/internal/model"
	"github.com/cardledger/price-data/internal/resilience"
	"github.com/cardledger/price-data/internal/sources"
)

// SourceName identifies this adapter in the registry and in logs.
const SourceName = "mtgjson"

// dumpFile is the dataset this client consumes.
const dumpFile = "AllPricesToday.json.gz"

// Client is the MTGJSON bulk dump adapter.
type Client struct {
	baseURL     string
	cacheDir    string
	maxCacheAge time.Duration
	httpClient  *http.Client
	exec        *resilience.Executor
	logger      *slog.Logger

	mu    sync.Mutex
	fresh string            // path already validated this process
	index map[string]Record // lazy per-UUID index for history reads
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// New creates an MTGJSON adapter caching dumps under cacheDir.
func New(baseURL, cacheDir string, maxCacheAge time.Duration, exec *resilience.Executor, opts ...Option) *Client {
	c := &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		cacheDir:    cacheDir,
		maxCacheAge: maxCacheAge,
		httpClient:  &http.Client{},
		exec:        exec,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Name implements sources.Source.
func (c *Client) Name() string { return SourceName }

// CircuitOpen implements sources.Source.
func (c *Client) CircuitOpen() bool { return c.exec.CircuitOpen() }

// FetchPrice implements sources.Source. The dump is not a live source.
func (c *Client) FetchPrice(ctx context.Context, id model.CardIdentity) ([]model.PriceQuote, error) {
	return nil, sources.ErrNotSupported
}

// FetchListings implements sources.Source. The dump has no listings.
func (c *Client) FetchListings(ctx context.Context, id model.CardIdentity, limit int) ([]model.Listing, error) {
	return nil, sources.ErrNotSupported
}

// FetchPriceHistory returns the card's trailing retail price series from the
// dump, one quote per provider, date, and foil variant.
func (c *Client) FetchPriceHistory(ctx context.Context, id model.CardIdentity, days int) ([]model.PriceQuote, error) {
	if id.MTGJSONID == "" {
		return nil, sources.ErrNotFound
	}

	idx, err := c.loadIndex(ctx)
	if err != nil {
		return nil, err
	}

	rec, ok := idx[id.MTGJSONID]
	if !ok {
		return nil, sources.ErrNotFound
	}

	cutoff := time.Now().UTC().AddDate(0, 0, -days)
	quotes := rec.Quotes()
	filtered := quotes[:0]
	for _, q := range quotes {
		if !q.AsOf.Before(cutoff) {
			filtered = append(filtered, q)
		}
	}
	return filtered, nil
}

// Meta holds the dump's publication metadata.
type Meta struct {
	Date    string `json:"date"`
	Version string `json:"version"`
}

// FetchMeta returns the publisher's metadata for the current dump.
func (c *Client) FetchMeta(ctx context.Context) (Meta, error) {
	var resp struct {
		Data Meta `json:"data"`
		Meta Meta `json:"meta"`
	}
	err := c.exec.Do(ctx, func(ctx context.Context) error {
		return sources.GetJSON(ctx, c.httpClient, c.baseURL+"/Meta.json", nil, &resp)
	})
	if err != nil {
		return Meta{}, err
	}
	if resp.Data.Date != "" {
		return resp.Data, nil
	}
	return resp.Meta, nil
}

// EnsureDump returns the path of a sufficiently fresh local copy of the
// dump, downloading one if the cache is missing or stale.
func (c *Client) EnsureDump(ctx context.Context) (string, error) {
	path := filepath.Join(c.cacheDir, dumpFile)

	c.mu.Lock()
	if c.fresh == path {
		c.mu.Unlock()
		return path, nil
	}
	c.mu.Unlock()

	if info, err := os.Stat(path); err == nil {
		age := time.Since(info.ModTime())
		if age < c.maxCacheAge {
			c.logger.Info("using cached dump",
				"source", SourceName,
				"path", path,
				"age", age.Round(time.Minute),
			)
			c.markFresh(path)
			return path, nil
		}
	}

	if err := c.download(ctx, path); err != nil {
		return "", err
	}
	c.markFresh(path)
	return path, nil
}

func (c *Client) markFresh(path string) {
	c.mu.Lock()
	c.fresh = path
	c.mu.Unlock()
}

// download streams the dump to a temp file and renames it into place, so a
// failed download never clobbers a usable cached copy.
func (c *Client) download(ctx context.Context, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}

	return c.exec.Do(ctx, func(ctx context.Context) error {
		url := c.baseURL + "/" + dumpFile
		c.logger.Info("downloading dump", "source", SourceName, "url", url)

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("do request: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 400 {
			return &resilience.StatusError{StatusCode: resp.StatusCode}
		}

		tmp, err := os.CreateTemp(filepath.Dir(path), dumpFile+".tmp-*")
		if err != nil {
			return fmt.Errorf("create temp file: %w", err)
		}
		defer os.Remove(tmp.Name())

		n, err := io.Copy(tmp, resp.Body)
		if cerr := tmp.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			return fmt.Errorf("write dump: %w", err)
		}

		if err := os.Rename(tmp.Name(), path); err != nil {
			return fmt.Errorf("move dump into cache: %w", err)
		}

		c.logger.Info("dump downloaded",
			"source", SourceName,
			"path", path,
			"bytes", n,
		)
		return nil
	})
}

// loadIndex builds the per-UUID record index on first use.
func (c *Client) loadIndex(ctx context.Context) (map[string]Record, error) {
	c.mu.Lock()
	if c.index != nil {
		idx := c.index
		c.mu.Unlock()
		return idx, nil
	}
	c.mu.Unlock()

	idx := make(map[string]Record)
	malformed, err := c.StreamPrices(ctx, func(rec Record) error {
		idx[rec.UUID] = rec
		return nil
	})
	if err != nil {
		return nil, err
	}
	if malformed > 0 {
		c.logger.Warn("skipped malformed dump records",
			"source", SourceName,
			"count", malformed,
		)
	}

	c.mu.Lock()
	c.index = idx
	c.mu.Unlock()
	return idx, nil
}
