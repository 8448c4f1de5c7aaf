package mtgjson

import (
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cardledger/price-data/internal/model"
	"github.com/cardledger/price-data/internal/resilience"
	"github.com/cardledger/price-data/internal/sources"
)

const dumpJSON = `{
	"meta": {"date": "2026-08-17", "version": "5.2.2"},
	"data": {
		"uuid-bolt": {
			"paper": {
				"tcgplayer": {
					"currency": "USD",
					"retail": {
						"normal": {"2026-08-15": 1.10, "2026-08-16": 1.25, "2026-08-17": 0},
						"foil": {"2026-08-17": 5.50}
					},
					"buylist": {"normal": {"2026-08-17": 0.80}}
				},
				"cardmarket": {
					"currency": "EUR",
					"retail": {"normal": {"2026-08-17": 0.95}}
				}
			}
		},
		"uuid-dragon": {
			"paper": {
				"tcgplayer": {
					"currency": "USD",
					"retail": {"normal": {"2026-08-17": 12.00}}
				}
			}
		}
	}
}`

func gzipBytes(t *testing.T, s string) []byte {
	t.Helper()
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	if _, err := gz.Write([]byte(s)); err != nil {
		t.Fatalf("gzip write: %v", err)
	}
	if err := gz.Close(); err != nil {
		t.Fatalf("gzip close: %v", err)
	}
	return buf.Bytes()
}

func writeCachedDump(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, dumpFile)
	if err := os.WriteFile(path, gzipBytes(t, content), 0o644); err != nil {
		t.Fatalf("write cached dump: %v", err)
	}
	return path
}

func testExecutor() *resilience.Executor {
	cfg := resilience.DefaultConfig()
	cfg.MaxRetries = 0
	cfg.Timeout = 5 * time.Second
	return resilience.NewExecutor(SourceName, cfg, nil)
}

func TestStreamPrices_FromCache(t *testing.T) {
	dir := t.TempDir()
	writeCachedDump(t, dir, dumpJSON)

	c := New("http://unused", dir, time.Hour, testExecutor())

	var uuids []string
	malformed, err := c.StreamPrices(context.Background(), func(rec Record) error {
		uuids = append(uuids, rec.UUID)
		return nil
	})
	if err != nil {
		t.Fatalf("StreamPrices() error = %v", err)
	}
	if malformed != 0 {
		t.Errorf("malformed = %d, want 0", malformed)
	}

	if len(uuids) != 2 {
		t.Fatalf("streamed %d records, want 2", len(uuids))
	}
	if uuids[0] != "uuid-bolt" || uuids[1] != "uuid-dragon" {
		t.Errorf("uuids = %v, want [uuid-bolt uuid-dragon]", uuids)
	}
}

func TestStreamPrices_MalformedRecordSkipped(t *testing.T) {
	dir := t.TempDir()
	// uuid-bad's paper section has the wrong shape; the records around it
	// must still come through.
	writeCachedDump(t, dir, `{
		"data": {
			"uuid-bad": {"paper": "not-an-object"},
			"uuid-good": {"paper": {"tcgplayer": {"currency": "USD", "retail": {"normal": {"2026-08-17": 2.00}}}}},
			"uuid-worse": 7
		}
	}`)

	c := New("http://unused", dir, time.Hour, testExecutor())

	var uuids []string
	malformed, err := c.StreamPrices(context.Background(), func(rec Record) error {
		uuids = append(uuids, rec.UUID)
		return nil
	})
	if err != nil {
		t.Fatalf("StreamPrices() error = %v", err)
	}

	if malformed != 2 {
		t.Errorf("malformed = %d, want 2", malformed)
	}
	if len(uuids) != 1 || uuids[0] != "uuid-good" {
		t.Errorf("uuids = %v, want [uuid-good]", uuids)
	}
}

func TestStreamPrices_CallbackErrorAborts(t *testing.T) {
	dir := t.TempDir()
	writeCachedDump(t, dir, dumpJSON)

	c := New("http://unused", dir, time.Hour, testExecutor())

	sentinel := errors.New("stop")
	count := 0
	_, err := c.StreamPrices(context.Background(), func(rec Record) error {
		count++
		return sentinel
	})
	if !errors.Is(err, sentinel) {
		t.Errorf("StreamPrices() error = %v, want sentinel", err)
	}
	if count != 1 {
		t.Errorf("callback ran %d times, want 1", count)
	}
}

func TestEnsureDump_DownloadsWhenMissing(t *testing.T) {
	var downloads atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/"+dumpFile {
			http.NotFound(w, r)
			return
		}
		downloads.Add(1)
		w.Write(gzipBytes(t, dumpJSON))
	}))
	defer server.Close()

	dir := t.TempDir()
	c := New(server.URL, dir, time.Hour, testExecutor(), WithHTTPClient(server.Client()))

	path, err := c.EnsureDump(context.Background())
	if err != nil {
		t.Fatalf("EnsureDump() error = %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("downloaded dump missing: %v", err)
	}

	// Second call hits the in-process hot flag: no download, no stat games.
	if _, err := c.EnsureDump(context.Background()); err != nil {
		t.Fatalf("EnsureDump() second call error = %v", err)
	}
	if got := downloads.Load(); got != 1 {
		t.Errorf("downloads = %d, want 1", got)
	}
}

func TestEnsureDump_FreshCacheSkipsDownload(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("unexpected download with a fresh cache")
	}))
	defer server.Close()

	dir := t.TempDir()
	writeCachedDump(t, dir, dumpJSON)

	c := New(server.URL, dir, time.Hour, testExecutor(), WithHTTPClient(server.Client()))
	if _, err := c.EnsureDump(context.Background()); err != nil {
		t.Fatalf("EnsureDump() error = %v", err)
	}
}

func TestEnsureDump_StaleCacheRedownloads(t *testing.T) {
	var downloads atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		downloads.Add(1)
		w.Write(gzipBytes(t, dumpJSON))
	}))
	defer server.Close()

	dir := t.TempDir()
	path := writeCachedDump(t, dir, `{"data":{}}`)
	old := time.Now().Add(-8 * 24 * time.Hour)
	if err := os.Chtimes(path, old, old); err != nil {
		t.Fatalf("age cache file: %v", err)
	}

	c := New(server.URL, dir, 7*24*time.Hour, testExecutor(), WithHTTPClient(server.Client()))
	if _, err := c.EnsureDump(context.Background()); err != nil {
		t.Fatalf("EnsureDump() error = %v", err)
	}
	if got := downloads.Load(); got != 1 {
		t.Errorf("downloads = %d, want 1 (stale cache replaced)", got)
	}
}

func TestRecordQuotes(t *testing.T) {
	dir := t.TempDir()
	writeCachedDump(t, dir, dumpJSON)

	c := New("http://unused", dir, time.Hour, testExecutor())

	var bolt Record
	_, err := c.StreamPrices(context.Background(), func(rec Record) error {
		if rec.UUID == "uuid-bolt" {
			bolt = rec
		}
		return nil
	})
	if err != nil {
		t.Fatalf("StreamPrices() error = %v", err)
	}

	quotes := bolt.Quotes()

	// tcgplayer normal 08-15 and 08-16, tcgplayer foil 08-17, cardmarket
	// normal 08-17. The zero price on 08-17 is dropped; buylist is ignored.
	if len(quotes) != 4 {
		t.Fatalf("len(quotes) = %d, want 4", len(quotes))
	}

	if quotes[0].Price != 1.10 || quotes[0].MarketplaceSlug != "tcgplayer" {
		t.Errorf("first quote = %+v, want tcgplayer 1.10", quotes[0])
	}
	if !quotes[0].AsOf.Before(quotes[1].AsOf) {
		t.Error("quotes not sorted by time")
	}

	last := quotes[len(quotes)-1]
	if !last.IsFoil || last.Price != 5.50 {
		t.Errorf("last quote = %+v, want tcgplayer foil 5.50", last)
	}
	for _, q := range quotes {
		if q.Source != model.SourceBulk {
			t.Errorf("quote source = %v, want bulk", q.Source)
		}
	}
}

func TestFetchPriceHistory(t *testing.T) {
	dir := t.TempDir()
	writeCachedDump(t, dir, dumpJSON)

	c := New("http://unused", dir, time.Hour, testExecutor())

	// All fixture dates are in the past; a huge window keeps them in range.
	quotes, err := c.FetchPriceHistory(context.Background(), model.CardIdentity{MTGJSONID: "uuid-bolt"}, 365*100)
	if err != nil {
		t.Fatalf("FetchPriceHistory() error = %v", err)
	}
	if len(quotes) != 4 {
		t.Errorf("len(quotes) = %d, want 4", len(quotes))
	}

	if _, err := c.FetchPriceHistory(context.Background(), model.CardIdentity{MTGJSONID: "no-such"}, 30); !errors.Is(err, sources.ErrNotFound) {
		t.Errorf("unknown uuid error = %v, want ErrNotFound", err)
	}
	if _, err := c.FetchPriceHistory(context.Background(), model.CardIdentity{Name: "Bolt"}, 30); !errors.Is(err, sources.ErrNotFound) {
		t.Errorf("missing uuid error = %v, want ErrNotFound", err)
	}
}

func TestLiveOperationsUnsupported(t *testing.T) {
	c := New("http://unused", t.TempDir(), time.Hour, testExecutor())

	if _, err := c.FetchPrice(context.Background(), model.CardIdentity{}); !errors.Is(err, sources.ErrNotSupported) {
		t.Errorf("FetchPrice() error = %v, want ErrNotSupported", err)
	}
	if _, err := c.FetchListings(context.Background(), model.CardIdentity{}, 5); !errors.Is(err, sources.ErrNotSupported) {
		t.Errorf("FetchListings() error = %v, want ErrNotSupported", err)
	}
}
