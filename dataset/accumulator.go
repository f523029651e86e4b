package dataset

import (
	"context"
	"fmt"
	"time"

	"github.com/polylake/goldsky-mirror/logging"
	"github.com/polylake/goldsky-mirror/metrics"
	"github.com/polylake/goldsky-mirror/model"
)

// Store is the columnar-store capability the accumulator flushes into.
// Load returns the whole table (nil for an absent dataset); Store atomically
// overwrites it.
type Store interface {
	Load(ctx context.Context) ([]model.FillEvent, error)
	Store(ctx context.Context, rows []model.FillEvent) error
}

// Accumulator buffers fetched pages, deduplicates them by fill id against
// everything already seen, and periodically merges the buffer into the
// durable dataset. Flushing every N pages instead of every page keeps write
// amplification bounded on multi-GB datasets.
type Accumulator struct {
	logger    *logging.ComponentLogger
	collector *metrics.Collector
	store     Store

	flushEvery int

	existing    []model.FillEvent
	seen        map[string]struct{}
	buffer      []model.FillEvent
	stagedPages int
}

// NewAccumulator creates an accumulator flushing to store every flushEvery
// buffered pages (or earlier, see MaybeFlush).
func NewAccumulator(logger *logging.ComponentLogger, collector *metrics.Collector, store Store, flushEvery int) *Accumulator {
	if flushEvery <= 0 {
		flushEvery = 10
	}
	return &Accumulator{
		logger:     logger,
		collector:  collector,
		store:      store,
		flushEvery: flushEvery,
		seen:       make(map[string]struct{}),
	}
}

// LoadExisting seeds the in-memory state from the durable dataset. Called
// once at loop start; the dataset is never re-read mid-run.
func (a *Accumulator) LoadExisting(ctx context.Context) error {
	rows, err := a.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("seed accumulator: %w", err)
	}
	a.existing = rows
	a.seen = make(map[string]struct{}, len(rows))
	for _, f := range rows {
		a.seen[f.ID] = struct{}{}
	}
	a.collector.RecordFlush(len(rows), 0)
	return nil
}

// MaxTimestamp returns the largest timestamp in the loaded dataset, or 0.
// Used to bootstrap a starting cursor when no checkpoint exists.
func (a *Accumulator) MaxTimestamp() int64 {
	return model.MaxTimestamp(a.existing)
}

// Total returns the number of unique fills known, persisted or buffered.
func (a *Accumulator) Total() int {
	return len(a.seen)
}

// StagedPages returns the number of pages buffered since the last flush.
func (a *Accumulator) StagedPages() int {
	return a.stagedPages
}

// Add stages one page, dropping rows whose id was already seen. Returns the
// number of rows actually staged.
func (a *Accumulator) Add(page []model.FillEvent) int {
	added := 0
	for _, f := range page {
		if _, dup := a.seen[f.ID]; dup {
			continue
		}
		a.seen[f.ID] = struct{}{}
		a.buffer = append(a.buffer, f)
		added++
	}
	if dropped := len(page) - added; dropped > 0 {
		a.collector.RecordDuplicates(dropped)
		a.logger.Debug().
			Int("duplicates", dropped).
			Msg("Dropped duplicate fills from page")
	}
	a.stagedPages++
	a.collector.UpdateBufferedPages(a.stagedPages)
	return added
}

// MaybeFlush merges the buffer into the dataset when the flush policy says
// so: enough pages accumulated, the current page was short (the stream is at
// its head, so bound the loss window), or force. Reports whether a flush
// happened.
func (a *Accumulator) MaybeFlush(ctx context.Context, shortPage, force bool) (bool, error) {
	if a.stagedPages == 0 {
		return false, nil
	}
	if !force && !shortPage && a.stagedPages < a.flushEvery {
		return false, nil
	}
	if err := a.flush(ctx); err != nil {
		return false, err
	}
	return true, nil
}

// Flush unconditionally persists any buffered rows. Used at loop end.
func (a *Accumulator) Flush(ctx context.Context) error {
	if a.stagedPages == 0 {
		return nil
	}
	return a.flush(ctx)
}

func (a *Accumulator) flush(ctx context.Context) error {
	start := time.Now()

	merged := make([]model.FillEvent, 0, len(a.existing)+len(a.buffer))
	merged = append(merged, a.existing...)
	merged = append(merged, a.buffer...)
	model.SortFills(merged)

	if err := a.store.Store(ctx, merged); err != nil {
		return fmt.Errorf("flush dataset: %w", err)
	}

	flushed := len(a.buffer)
	a.existing = merged
	a.buffer = nil
	a.stagedPages = 0

	a.collector.RecordFlush(len(merged), time.Since(start))
	a.collector.UpdateBufferedPages(0)
	a.logger.LogFlush(flushed, len(merged), time.Since(start))

	return nil
}
