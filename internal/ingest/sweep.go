package ingest

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cardledger/price-data/internal/model"
)

// CardLister is the catalog surface a sweep iterates.
type CardLister interface {
	TrackedCards() []model.Card
}

// SweepReport summarizes one full pass over the tracked catalog.
type SweepReport struct {
	SweepID          uuid.UUID
	Cards            int
	CardsFailed      int
	QuotesCollected  int
	SnapshotsWritten int
	SnapshotsUpdated int
	SourceErrors     int
	Duration         time.Duration
}

// SweepAll refreshes every tracked card with bounded concurrency. A card
// whose database write fails is counted and skipped; the sweep always runs
// to completion unless the context is canceled.
func (o *Orchestrator) SweepAll(ctx context.Context, lister CardLister) SweepReport {
	report := SweepReport{SweepID: uuid.New()}
	cards := lister.TrackedCards()
	report.Cards = len(cards)
	start := time.Now()

	o.logger.Info("sweep started",
		"sweep_id", report.SweepID,
		"cards", len(cards),
		"card_concurrency", o.cfg.CardConcurrency,
	)

	var (
		mu  sync.Mutex
		wg  sync.WaitGroup
		sem = make(chan struct{}, o.cfg.CardConcurrency)
	)

	for _, card := range cards {
		if ctx.Err() != nil {
			break
		}

		wg.Add(1)
		go func(card model.Card) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			res, err := o.RefreshCard(ctx, card)

			mu.Lock()
			defer mu.Unlock()
			report.QuotesCollected += res.QuotesCollected
			report.SnapshotsWritten += res.SnapshotsWritten
			report.SnapshotsUpdated += res.SnapshotsUpdated
			report.SourceErrors += len(res.Errors)
			if err != nil {
				report.CardsFailed++
				o.logger.Error("card refresh failed",
					"sweep_id", report.SweepID,
					"card_id", card.ID,
					"error", err,
				)
			}
		}(card)
	}
	wg.Wait()

	report.Duration = time.Since(start)
	o.logger.Info("sweep finished",
		"sweep_id", report.SweepID,
		"cards", report.Cards,
		"cards_failed", report.CardsFailed,
		"quotes", report.QuotesCollected,
		"snapshots_written", report.SnapshotsWritten,
		"snapshots_updated", report.SnapshotsUpdated,
		"source_errors", report.SourceErrors,
		"duration", report.Duration.Round(time.Millisecond),
	)
	return report
}
