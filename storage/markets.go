package storage

import (
	"context"
	"fmt"

	"github.com/apache/arrow/go/v17/arrow/array"

	"github.com/polylake/goldsky-mirror/logging"
	"github.com/polylake/goldsky-mirror/memory"
	"github.com/polylake/goldsky-mirror/model"
)

// ParquetMarketStore persists a market reference dataset as a single Parquet
// file, same overwrite semantics as the fill store.
type ParquetMarketStore struct {
	logger *logging.ComponentLogger
	alloc  *memory.TrackedAllocator
	path   string
}

// NewParquetMarketStore creates a market store backed by the Parquet file at
// path.
func NewParquetMarketStore(logger *logging.ComponentLogger, path string) *ParquetMarketStore {
	return &ParquetMarketStore{
		logger: logger,
		alloc:  memory.NewTrackedAllocator(),
		path:   path,
	}
}

// Path returns the dataset file location.
func (s *ParquetMarketStore) Path() string {
	return s.path
}

// Load reads the full market dataset. A missing file yields an empty dataset.
func (s *ParquetMarketStore) Load(ctx context.Context) ([]model.Market, error) {
	tbl, err := readTable(ctx, s.path, s.alloc)
	if err != nil {
		return nil, fmt.Errorf("load markets: %w", err)
	}
	if tbl == nil {
		return nil, nil
	}
	defer tbl.Release()

	negRisk, err := boolColumn(tbl, "neg_risk")
	if err != nil {
		return nil, fmt.Errorf("load markets: %w", err)
	}
	cols := make(map[string][]string, 12)
	for _, name := range []string{
		"createdAt", "id", "question", "answer1", "answer2", "market_slug",
		"token1", "token2", "condition_id", "volume", "ticker", "closedTime",
	} {
		vals, err := stringColumn(tbl, name)
		if err != nil {
			return nil, fmt.Errorf("load markets: %w", err)
		}
		cols[name] = vals
	}

	markets := make([]model.Market, len(negRisk))
	for i := range markets {
		markets[i] = model.Market{
			CreatedAt:   cols["createdAt"][i],
			ID:          cols["id"][i],
			Question:    cols["question"][i],
			Answer1:     cols["answer1"][i],
			Answer2:     cols["answer2"][i],
			NegRisk:     negRisk[i],
			MarketSlug:  cols["market_slug"][i],
			Token1:      cols["token1"][i],
			Token2:      cols["token2"][i],
			ConditionID: cols["condition_id"][i],
			Volume:      cols["volume"][i],
			Ticker:      cols["ticker"][i],
			ClosedTime:  cols["closedTime"][i],
		}
	}

	s.logger.Info().
		Str("path", s.path).
		Int("rows", len(markets)).
		Msg("Loaded market dataset")

	return markets, nil
}

// Store atomically overwrites the dataset with markets.
func (s *ParquetMarketStore) Store(ctx context.Context, markets []model.Market) error {
	schema := MarketSchema()
	b := array.NewRecordBuilder(s.alloc, schema)
	defer b.Release()

	createdB := b.Field(0).(*array.StringBuilder)
	idB := b.Field(1).(*array.StringBuilder)
	questionB := b.Field(2).(*array.StringBuilder)
	answer1B := b.Field(3).(*array.StringBuilder)
	answer2B := b.Field(4).(*array.StringBuilder)
	negRiskB := b.Field(5).(*array.BooleanBuilder)
	slugB := b.Field(6).(*array.StringBuilder)
	token1B := b.Field(7).(*array.StringBuilder)
	token2B := b.Field(8).(*array.StringBuilder)
	conditionB := b.Field(9).(*array.StringBuilder)
	volumeB := b.Field(10).(*array.StringBuilder)
	tickerB := b.Field(11).(*array.StringBuilder)
	closedB := b.Field(12).(*array.StringBuilder)

	for _, m := range markets {
		createdB.Append(m.CreatedAt)
		idB.Append(m.ID)
		questionB.Append(m.Question)
		answer1B.Append(m.Answer1)
		answer2B.Append(m.Answer2)
		negRiskB.Append(m.NegRisk)
		slugB.Append(m.MarketSlug)
		token1B.Append(m.Token1)
		token2B.Append(m.Token2)
		conditionB.Append(m.ConditionID)
		volumeB.Append(m.Volume)
		tickerB.Append(m.Ticker)
		closedB.Append(m.ClosedTime)
	}

	rec := b.NewRecord()
	defer rec.Release()

	if err := writeRecordAtomic(s.path, schema, rec); err != nil {
		return fmt.Errorf("store markets: %w", err)
	}

	s.logger.Debug().
		Str("path", s.path).
		Int("rows", len(markets)).
		Msg("Wrote market dataset")

	return nil
}
