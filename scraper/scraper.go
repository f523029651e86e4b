package scraper

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/polylake/goldsky-mirror/cursor"
	"github.com/polylake/goldsky-mirror/dataset"
	"github.com/polylake/goldsky-mirror/logging"
	"github.com/polylake/goldsky-mirror/metrics"
	"github.com/polylake/goldsky-mirror/model"
)

// PageFetcher is the query capability the loop paginates with.
type PageFetcher interface {
	FetchPage(ctx context.Context, cur cursor.Cursor, pageSize int) ([]model.FillEvent, error)
}

// Stats is a point-in-time snapshot of loop progress for the health endpoint.
type Stats struct {
	PagesProcessed  int
	RowsFetched     int
	TotalRows       int
	CursorTimestamp int64
	Pinned          bool
}

// Scraper drives the scrape loop: fetch a page, advance the cursor, buffer
// the page, persist the cursor, flush per policy, until the stream is
// exhausted. Single-threaded and synchronous; the only recovery mechanism
// across restarts is the persisted cursor plus dataset deduplication.
type Scraper struct {
	logger    *logging.ComponentLogger
	collector *metrics.Collector
	fetcher   PageFetcher
	cursors   *cursor.Store
	acc       *dataset.Accumulator

	pageSize  int
	startedAt time.Time

	mu    sync.Mutex
	stats Stats
}

// New creates a scraper. startedAt identifies this run in logs and is
// threaded through explicitly rather than read from ambient process state.
func New(logger *logging.ComponentLogger, collector *metrics.Collector, fetcher PageFetcher, cursors *cursor.Store, acc *dataset.Accumulator, pageSize int, startedAt time.Time) *Scraper {
	if pageSize <= 0 {
		pageSize = 1000
	}
	return &Scraper{
		logger:    logger,
		collector: collector,
		fetcher:   fetcher,
		cursors:   cursors,
		acc:       acc,
		pageSize:  pageSize,
		startedAt: startedAt,
	}
}

// GetStats returns a snapshot of loop progress.
func (s *Scraper) GetStats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

func (s *Scraper) updateStats(cur cursor.Cursor, pageRows int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats.PagesProcessed++
	s.stats.RowsFetched += pageRows
	s.stats.TotalRows = s.acc.Total()
	s.stats.CursorTimestamp = cur.LastTimestamp
	s.stats.Pinned = cur.Pinned()
}

// Run executes the loop to completion. It returns nil on clean stream
// exhaustion; anything else left the cursor at the last successfully
// processed page, where the next run resumes.
func (s *Scraper) Run(ctx context.Context) error {
	if err := s.acc.LoadExisting(ctx); err != nil {
		return err
	}

	cur, err := s.startCursor()
	if err != nil {
		return err
	}

	batch := 0
	fetched := 0

	for {
		page, err := s.fetcher.FetchPage(ctx, cur, s.pageSize)
		if err != nil {
			return err
		}

		next, signal := cursor.Advance(cur, page, s.pageSize)

		switch signal {
		case cursor.Exhausted:
			return s.finish(ctx, batch, fetched)

		case cursor.Drained:
			s.logger.Info().
				Int64("timestamp", next.LastTimestamp).
				Msg("Pinned timestamp drained, resuming timestamp pagination")
			cur = next
			continue
		}

		// Continue or CaughtUp: the page carries rows.
		cur = next
		s.acc.Add(page)

		if err := s.cursors.Save(cur); err != nil {
			return fmt.Errorf("persist cursor: %w", err)
		}
		s.collector.RecordCursorSave(cur.LastTimestamp)

		shortPage := signal == cursor.CaughtUp
		if _, err := s.acc.MaybeFlush(ctx, shortPage, false); err != nil {
			return err
		}

		batch++
		fetched += len(page)
		s.updateStats(cur, len(page))
		s.logger.LogPage(batch, len(page), page[0].Timestamp, page[len(page)-1].Timestamp, cur.Pinned())

		if shortPage {
			return s.finish(ctx, batch, fetched)
		}
	}
}

// startCursor loads the checkpoint, falling back to the dataset's maximum
// timestamp minus one second when no checkpoint exists. The one-second
// margin re-fetches boundary rows on purpose; deduplication absorbs them.
func (s *Scraper) startCursor() (cursor.Cursor, error) {
	cur, found, err := s.cursors.Load()
	if err != nil {
		return cursor.Cursor{}, err
	}
	if found {
		return cur, nil
	}

	if maxTS := s.acc.MaxTimestamp(); maxTS > 0 {
		s.logger.Info().
			Int64("dataset_max_timestamp", maxTS).
			Int64("resume_timestamp", maxTS-1).
			Msg("No cursor checkpoint, resuming from dataset")
		return cursor.Advancing(maxTS - 1), nil
	}

	s.logger.Info().
		Msg("No cursor checkpoint and no dataset, starting from the beginning of time")
	return cursor.Cursor{}, nil
}

// finish flushes whatever is still buffered, clears the checkpoint, and
// reports run totals.
func (s *Scraper) finish(ctx context.Context, batches, fetched int) error {
	if err := s.acc.Flush(ctx); err != nil {
		return err
	}
	if err := s.cursors.Clear(); err != nil {
		return err
	}

	s.logger.Info().
		Int("batches", batches).
		Int("rows_fetched", fetched).
		Int("dataset_rows", s.acc.Total()).
		Dur("run_time", time.Since(s.startedAt)).
		Msg("Fill stream exhausted, scrape complete")

	return nil
}
