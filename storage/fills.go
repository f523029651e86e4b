package storage

import (
	"context"
	"fmt"

	"github.com/apache/arrow/go/v17/arrow/array"

	"github.com/polylake/goldsky-mirror/logging"
	"github.com/polylake/goldsky-mirror/memory"
	"github.com/polylake/goldsky-mirror/model"
)

// ParquetFillStore persists the fill dataset as a single Parquet file with
// atomic full-table overwrite semantics.
type ParquetFillStore struct {
	logger *logging.ComponentLogger
	alloc  *memory.TrackedAllocator
	path   string
}

// NewParquetFillStore creates a fill store backed by the Parquet file at path.
func NewParquetFillStore(logger *logging.ComponentLogger, path string) *ParquetFillStore {
	return &ParquetFillStore{
		logger: logger,
		alloc:  memory.NewTrackedAllocator(),
		path:   path,
	}
}

// Path returns the dataset file location.
func (s *ParquetFillStore) Path() string {
	return s.path
}

// Load reads the full fill dataset. A missing file yields an empty dataset.
func (s *ParquetFillStore) Load(ctx context.Context) ([]model.FillEvent, error) {
	tbl, err := readTable(ctx, s.path, s.alloc)
	if err != nil {
		return nil, fmt.Errorf("load fills: %w", err)
	}
	if tbl == nil {
		return nil, nil
	}
	defer tbl.Release()

	timestamps, err := int64Column(tbl, "timestamp")
	if err != nil {
		return nil, fmt.Errorf("load fills: %w", err)
	}
	cols := make(map[string][]string, 8)
	for _, name := range []string{
		"id", "maker", "makerAssetId", "makerAmountFilled",
		"taker", "takerAssetId", "takerAmountFilled", "transactionHash",
	} {
		vals, err := stringColumn(tbl, name)
		if err != nil {
			return nil, fmt.Errorf("load fills: %w", err)
		}
		cols[name] = vals
	}

	fills := make([]model.FillEvent, len(timestamps))
	for i := range fills {
		fills[i] = model.FillEvent{
			Timestamp:         timestamps[i],
			ID:                cols["id"][i],
			Maker:             cols["maker"][i],
			MakerAssetID:      cols["makerAssetId"][i],
			MakerAmountFilled: cols["makerAmountFilled"][i],
			Taker:             cols["taker"][i],
			TakerAssetID:      cols["takerAssetId"][i],
			TakerAmountFilled: cols["takerAmountFilled"][i],
			TransactionHash:   cols["transactionHash"][i],
		}
	}

	s.logger.Info().
		Str("path", s.path).
		Int("rows", len(fills)).
		Msg("Loaded fill dataset")

	return fills, nil
}

// Store atomically overwrites the dataset with rows.
func (s *ParquetFillStore) Store(ctx context.Context, rows []model.FillEvent) error {
	schema := FillSchema()
	b := array.NewRecordBuilder(s.alloc, schema)
	defer b.Release()

	tsB := b.Field(0).(*array.Int64Builder)
	idB := b.Field(1).(*array.StringBuilder)
	makerB := b.Field(2).(*array.StringBuilder)
	makerAssetB := b.Field(3).(*array.StringBuilder)
	makerAmountB := b.Field(4).(*array.StringBuilder)
	takerB := b.Field(5).(*array.StringBuilder)
	takerAssetB := b.Field(6).(*array.StringBuilder)
	takerAmountB := b.Field(7).(*array.StringBuilder)
	txHashB := b.Field(8).(*array.StringBuilder)

	for _, f := range rows {
		tsB.Append(f.Timestamp)
		idB.Append(f.ID)
		makerB.Append(f.Maker)
		makerAssetB.Append(f.MakerAssetID)
		makerAmountB.Append(f.MakerAmountFilled)
		takerB.Append(f.Taker)
		takerAssetB.Append(f.TakerAssetID)
		takerAmountB.Append(f.TakerAmountFilled)
		txHashB.Append(f.TransactionHash)
	}

	rec := b.NewRecord()
	defer rec.Release()

	if err := writeRecordAtomic(s.path, schema, rec); err != nil {
		return fmt.Errorf("store fills: %w", err)
	}

	s.logger.Debug().
		Str("path", s.path).
		Int("rows", len(rows)).
		Int64("peak_alloc_bytes", s.alloc.GetStats().PeakBytes).
		Msg("Wrote fill dataset")

	return nil
}
