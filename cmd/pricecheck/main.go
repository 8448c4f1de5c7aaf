// pricecheck fetches one card's quotes from every configured source and
// prints them. No database required.
// Usage: go run ./cmd/pricecheck --config configs/ingestd.local.yaml \
//
//	--name "Lightning Bolt" --set lea --number 161
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/cardledger/price-data/internal/config"
	"github.com/cardledger/price-data/internal/model"
	"github.com/cardledger/price-data/internal/sources"
	"github.com/cardledger/price-data/internal/sources/factory"
)

func main() {
	configPath := flag.String("config", "configs/ingestd.example.yaml", "path to config file")
	name := flag.String("name", "", "card name")
	set := flag.String("set", "", "set code")
	number := flag.String("number", "", "collector number")
	scryfallID := flag.String("scryfall-id", "", "scryfall UUID (optional)")
	mtgjsonID := flag.String("mtgjson-id", "", "bulk dump UUID (optional, enables history)")
	historyDays := flag.Int("history-days", 0, "also fetch N days of price history")
	listings := flag.Int("listings", 0, "also fetch up to N listings per source")
	verbose := flag.Bool("verbose", false, "print full quote JSON")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	}))
	slog.SetDefault(logger)

	godotenv.Load()

	if *name == "" && *scryfallID == "" {
		fmt.Fprintln(os.Stderr, "need at least --name or --scryfall-id")
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.LoadWithDefaults(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	registry, _ := factory.BuildRegistry(cfg, logger)
	if len(registry.All()) == 0 {
		fmt.Fprintln(os.Stderr, "no sources enabled in config")
		os.Exit(1)
	}

	identity := model.CardIdentity{
		Name:            *name,
		SetCode:         *set,
		CollectorNumber: *number,
		ScryfallID:      *scryfallID,
		MTGJSONID:       *mtgjsonID,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	for _, src := range registry.All() {
		fmt.Printf("== %s ==\n", src.Name())

		quotes, err := src.FetchPrice(ctx, identity)
		printQuotes("price", quotes, err, *verbose)

		if *historyDays > 0 {
			quotes, err := src.FetchPriceHistory(ctx, identity, *historyDays)
			printQuotes(fmt.Sprintf("history (%dd)", *historyDays), quotes, err, *verbose)
		}

		if *listings > 0 {
			got, err := src.FetchListings(ctx, identity, *listings)
			switch {
			case errors.Is(err, sources.ErrNotSupported):
				fmt.Println("  listings: not supported")
			case errors.Is(err, sources.ErrNotFound):
				fmt.Println("  listings: card not found")
			case err != nil:
				fmt.Printf("  listings: error: %v\n", err)
			default:
				for _, l := range got {
					fmt.Printf("  listing: %.2f %s %s %s foil=%v qty=%d\n",
						l.Price, l.Currency, l.Condition, l.Language, l.IsFoil, l.Quantity)
				}
			}
		}
		fmt.Println()
	}
}

func printQuotes(label string, quotes []model.PriceQuote, err error, verbose bool) {
	switch {
	case errors.Is(err, sources.ErrNotSupported):
		fmt.Printf("  %s: not supported\n", label)
		return
	case errors.Is(err, sources.ErrNotFound):
		fmt.Printf("  %s: card not found\n", label)
		return
	case err != nil:
		fmt.Printf("  %s: error: %v\n", label, err)
		return
	}

	for _, q := range quotes {
		if verbose {
			b, _ := json.Marshal(q)
			fmt.Printf("  %s: %s\n", label, b)
			continue
		}
		fmt.Printf("  %s: %s %.2f %s %s foil=%v source=%s asof=%s\n",
			label, q.MarketplaceSlug, q.Price, q.Currency, q.Condition,
			q.IsFoil, q.Source, q.AsOf.Format(time.RFC3339))
	}
}
