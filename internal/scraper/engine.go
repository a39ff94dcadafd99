// Package scraper runs the per-record status loop: claim a TODO coordinate,
// look it up, store the payload and mark the record DONE.
package scraper

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/AldinMesan/ParcelsScript/internal/events"
	"github.com/AldinMesan/ParcelsScript/internal/fetcher"
	"github.com/AldinMesan/ParcelsScript/internal/model"
)

// RecordStore is the part of store.Store the loop needs.
type RecordStore interface {
	LoadPending(ctx context.Context, limit int) ([]model.Coordinate, error)
	MarkProcessing(ctx context.Context, id int64) (bool, error)
	Complete(ctx context.Context, originID int64, data, logMsg string) (int64, error)
	ResetStale(ctx context.Context, olderThan time.Duration) (int64, error)
}

// Options configures one pass of the loop.
type Options struct {
	Limit      int           // max records to process; 0 = all pending
	StaleAfter time.Duration // reset PROCESSING rows older than this first; 0 = skip
}

// Summary reports what a pass did.
type Summary struct {
	RunID       string        `json:"run_id"`
	Reset       int64         `json:"reset"`
	Pending     int           `json:"pending"`
	Done        int           `json:"done"`
	Empty       int           `json:"empty"`
	Skipped     int           `json:"skipped"`
	FetchErrors int           `json:"fetch_errors"`
	Elapsed     time.Duration `json:"elapsed"`
	// Records holds one row per record completed in this pass, in order.
	Records []model.ScrapeRow `json:"-"`
}

// Engine drives the status loop. It is not safe for concurrent use.
type Engine struct {
	store     RecordStore
	fetcher   fetcher.Fetcher
	publisher events.Publisher
}

// NewEngine creates an engine. A nil publisher discards events.
func NewEngine(st RecordStore, f fetcher.Fetcher, pub events.Publisher) *Engine {
	if pub == nil {
		pub = events.Nop{}
	}
	return &Engine{store: st, fetcher: f, publisher: pub}
}

// Reconcile returns PROCESSING rows claimed more than olderThan ago to TODO.
func (e *Engine) Reconcile(ctx context.Context, olderThan time.Duration) (int64, error) {
	n, err := e.store.ResetStale(ctx, olderThan)
	if err != nil {
		return 0, eris.Wrap(err, "scraper: reconcile")
	}
	if n > 0 {
		zap.L().Warn("reset stale PROCESSING records",
			zap.String("component", "scraper.engine"),
			zap.Int64("count", n),
			zap.Duration("older_than", olderThan),
		)
	}
	return n, nil
}

// Run processes pending records in store order. Every claimed record ends
// DONE, whatever the lookup returned. Cancelling ctx stops the pass and may
// leave the in-flight record PROCESSING for the next Reconcile.
func (e *Engine) Run(ctx context.Context, opts Options) (*Summary, error) {
	start := time.Now()
	sum := &Summary{RunID: uuid.New().String()}
	log := zap.L().With(zap.String("component", "scraper.engine"), zap.String("run_id", sum.RunID))

	if opts.StaleAfter > 0 {
		n, err := e.Reconcile(ctx, opts.StaleAfter)
		if err != nil {
			return sum, err
		}
		sum.Reset = n
	}

	pending, err := e.store.LoadPending(ctx, opts.Limit)
	if err != nil {
		return sum, eris.Wrap(err, "scraper: load pending")
	}
	sum.Pending = len(pending)
	log.Info("starting scrape", zap.Int("pending", sum.Pending), zap.Int64("reset", sum.Reset))

	for _, rec := range pending {
		if err := ctx.Err(); err != nil {
			sum.Elapsed = time.Since(start)
			return sum, eris.Wrap(err, "scraper: run cancelled")
		}
		if err := e.process(ctx, log, sum, rec); err != nil {
			sum.Elapsed = time.Since(start)
			return sum, err
		}
	}

	sum.Elapsed = time.Since(start)
	log.Info("scrape complete",
		zap.Int("done", sum.Done),
		zap.Int("empty", sum.Empty),
		zap.Int("skipped", sum.Skipped),
		zap.Int("fetch_errors", sum.FetchErrors),
		zap.Duration("elapsed", sum.Elapsed),
	)
	return sum, nil
}

func (e *Engine) process(ctx context.Context, log *zap.Logger, sum *Summary, rec model.Coordinate) error {
	rlog := log.With(zap.Int64("input_id", rec.ID))

	claimed, err := e.store.MarkProcessing(ctx, rec.ID)
	if err != nil {
		return eris.Wrapf(err, "scraper: claim input %d", rec.ID)
	}
	if !claimed {
		rlog.Debug("skipping (already claimed)")
		sum.Skipped++
		return nil
	}

	resp, err := e.fetcher.Lookup(ctx, rec.Lat, rec.Lng)
	if err != nil {
		if ctx.Err() != nil {
			return eris.Wrapf(ctx.Err(), "scraper: run cancelled during input %d", rec.ID)
		}
		rlog.Warn("lookup failed, storing empty payload", zap.Error(err))
		sum.FetchErrors++
		resp = fetcher.Response{}
	}

	payload := resp.Parcels()
	msg := fmt.Sprintf("stored result for input %d (run %s)", rec.ID, sum.RunID)
	resultID, err := e.store.Complete(ctx, rec.ID, string(payload), msg)
	if err != nil {
		return eris.Wrapf(err, "scraper: complete input %d", rec.ID)
	}

	count := resp.ParcelCount()
	sum.Done++
	sum.Records = append(sum.Records, model.ScrapeRow{
		Lat:      rec.Lat,
		Lng:      rec.Lng,
		Status:   model.StatusDone,
		Response: string(payload),
	})
	if count == 0 {
		sum.Empty++
	}
	rlog.Debug("input done", zap.Int64("result_id", resultID), zap.Int("parcels", count))

	ev := model.ResultEvent{
		RunID:    sum.RunID,
		ResultID: resultID,
		OriginID: rec.ID,
		Lat:      rec.Lat,
		Lng:      rec.Lng,
		Parcels:  count,
	}
	if err := e.publisher.Publish(ctx, ev); err != nil {
		rlog.Warn("publish result event failed", zap.Error(err))
	}
	return nil
}
