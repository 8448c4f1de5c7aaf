package mtgjson

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"github.com/cardledger/price-data/internal/model"
)

// Record is one card's paper price data from the dump.
type Record struct {
	UUID  string
	Paper map[string]ProviderPrices
}

// ProviderPrices holds one provider's series for a card.
type ProviderPrices struct {
	Currency string       `json:"currency"`
	Retail   *PriceSeries `json:"retail"`
	Buylist  *PriceSeries `json:"buylist"`
}

// PriceSeries maps ISO dates (YYYY-MM-DD) to prices, per foil variant.
type PriceSeries struct {
	Normal map[string]float64 `json:"normal"`
	Foil   map[string]float64 `json:"foil"`
}

// StreamPrices ensures a fresh dump and feeds every card record to fn, one
// at a time. Structurally malformed records are skipped and counted, never
// fatal. A fn error aborts the stream and is returned unchanged.
func (c *Client) StreamPrices(ctx context.Context, fn func(Record) error) (malformed int, err error) {
	path, err := c.EnsureDump(ctx)
	if err != nil {
		return 0, err
	}

	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open dump: %w", err)
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return 0, fmt.Errorf("open gzip stream: %w", err)
	}
	defer gz.Close()

	return streamRecords(ctx, gz, fn)
}

// streamRecords walks {"meta": ..., "data": {"<uuid>": {...}, ...}}
// incrementally. Memory is bounded by one record regardless of input size.
// A record whose value has the wrong shape is counted and skipped; only
// syntax errors, which leave the decoder unpositioned, abort the walk.
func streamRecords(ctx context.Context, r io.Reader, fn func(Record) error) (malformed int, err error) {
	dec := json.NewDecoder(r)

	if err := expectDelim(dec, '{'); err != nil {
		return 0, fmt.Errorf("dump root: %w", err)
	}

	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return malformed, fmt.Errorf("dump key: %w", err)
		}
		key, _ := keyTok.(string)

		if key != "data" {
			// Skip meta and any unknown sections wholesale.
			var skip json.RawMessage
			if err := dec.Decode(&skip); err != nil {
				return malformed, fmt.Errorf("skip %q section: %w", key, err)
			}
			continue
		}

		if err := expectDelim(dec, '{'); err != nil {
			return malformed, fmt.Errorf("data section: %w", err)
		}

		for dec.More() {
			if err := ctx.Err(); err != nil {
				return malformed, err
			}

			uuidTok, err := dec.Token()
			if err != nil {
				return malformed, fmt.Errorf("record key: %w", err)
			}
			uuid, _ := uuidTok.(string)

			var entry struct {
				Paper map[string]ProviderPrices `json:"paper"`
			}
			if err := dec.Decode(&entry); err != nil {
				// A type mismatch consumes the whole value, so the
				// stream stays positioned on the next record.
				var typeErr *json.UnmarshalTypeError
				if errors.As(err, &typeErr) {
					malformed++
					continue
				}
				return malformed, fmt.Errorf("record %s: %w", uuid, err)
			}

			if err := fn(Record{UUID: uuid, Paper: entry.Paper}); err != nil {
				return malformed, err
			}
		}

		if err := expectDelim(dec, '}'); err != nil {
			return malformed, fmt.Errorf("data section end: %w", err)
		}
	}

	return malformed, nil
}

func expectDelim(dec *json.Decoder, want json.Delim) error {
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != want {
		return fmt.Errorf("expected %q, got %v", want, tok)
	}
	return nil
}

// Quotes flattens the record's retail series into quotes, one per provider,
// date, and foil variant, sorted by time. Non-positive and undated prices
// are dropped.
func (r Record) Quotes() []model.PriceQuote {
	var quotes []model.PriceQuote

	for provider, pp := range r.Paper {
		if pp.Retail == nil {
			continue
		}
		currency := pp.Currency
		if currency == "" {
			currency = "USD"
		}

		appendSeries := func(series map[string]float64, foil bool) {
			for date, price := range series {
				if price <= 0 {
					continue
				}
				ts, err := time.Parse("2006-01-02", date)
				if err != nil {
					continue
				}
				quotes = append(quotes, model.PriceQuote{
					MarketplaceSlug: provider,
					Price:           price,
					Currency:        currency,
					Condition:       model.DefaultCondition,
					IsFoil:          foil,
					Language:        model.DefaultLanguage,
					Source:          model.SourceBulk,
					AsOf:            ts.UTC(),
				})
			}
		}
		appendSeries(pp.Retail.Normal, false)
		appendSeries(pp.Retail.Foil, true)
	}

	sort.Slice(quotes, func(i, j int) bool {
		if !quotes[i].AsOf.Equal(quotes[j].AsOf) {
			return quotes[i].AsOf.Before(quotes[j].AsOf)
		}
		if quotes[i].MarketplaceSlug != quotes[j].MarketplaceSlug {
			return quotes[i].MarketplaceSlug < quotes[j].MarketplaceSlug
		}
		return !quotes[i].IsFoil && quotes[j].IsFoil
	})
	return quotes
}
