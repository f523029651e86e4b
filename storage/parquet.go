package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/apache/arrow/go/v17/arrow"
	"github.com/apache/arrow/go/v17/arrow/array"
	"github.com/apache/arrow/go/v17/arrow/memory"
	"github.com/apache/arrow/go/v17/parquet"
	"github.com/apache/arrow/go/v17/parquet/compress"
	"github.com/apache/arrow/go/v17/parquet/file"
	"github.com/apache/arrow/go/v17/parquet/pqarrow"
)

// writeRecordAtomic writes a single Arrow record as a complete Parquet file,
// replacing path via temp file + rename so readers never observe a partial
// table.
func writeRecordAtomic(path string, schema *arrow.Schema, rec arrow.Record) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create dataset directory: %w", err)
	}

	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}

	props := parquet.NewWriterProperties(
		parquet.WithCompression(compress.Codecs.Zstd),
		parquet.WithDictionaryDefault(true),
		parquet.WithCreatedBy("goldsky-mirror"),
	)
	arrowProps := pqarrow.NewArrowWriterProperties(
		pqarrow.WithStoreSchema(),
	)

	writer, err := pqarrow.NewFileWriter(schema, f, props, arrowProps)
	if err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("create parquet writer: %w", err)
	}

	if err := writer.Write(rec); err != nil {
		writer.Close()
		os.Remove(tmp)
		return fmt.Errorf("write parquet record: %w", err)
	}

	// Close also closes the underlying file.
	if err := writer.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("close parquet writer: %w", err)
	}

	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename dataset file: %w", err)
	}

	return nil
}

// readTable loads a whole Parquet file as an Arrow table. A missing path
// returns (nil, nil): an absent dataset means an empty dataset.
func readTable(ctx context.Context, path string, alloc memory.Allocator) (arrow.Table, error) {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}

	rdr, err := file.OpenParquetFile(path, false)
	if err != nil {
		return nil, fmt.Errorf("open parquet file: %w", err)
	}

	fr, err := pqarrow.NewFileReader(rdr, pqarrow.ArrowReadProperties{BatchSize: 64 * 1024}, alloc)
	if err != nil {
		rdr.Close()
		return nil, fmt.Errorf("create parquet reader: %w", err)
	}

	tbl, err := fr.ReadTable(ctx)
	if err != nil {
		rdr.Close()
		return nil, fmt.Errorf("read parquet table: %w", err)
	}

	if err := rdr.Close(); err != nil {
		tbl.Release()
		return nil, fmt.Errorf("close parquet file: %w", err)
	}

	return tbl, nil
}

func stringColumn(tbl arrow.Table, name string) ([]string, error) {
	idx := tbl.Schema().FieldIndices(name)
	if len(idx) == 0 {
		return nil, fmt.Errorf("column %q not found", name)
	}

	out := make([]string, 0, tbl.NumRows())
	for _, chunk := range tbl.Column(idx[0]).Data().Chunks() {
		arr, ok := chunk.(*array.String)
		if !ok {
			return nil, fmt.Errorf("column %q is %s, want utf8", name, chunk.DataType())
		}
		for i := 0; i < arr.Len(); i++ {
			out = append(out, arr.Value(i))
		}
	}
	return out, nil
}

func int64Column(tbl arrow.Table, name string) ([]int64, error) {
	idx := tbl.Schema().FieldIndices(name)
	if len(idx) == 0 {
		return nil, fmt.Errorf("column %q not found", name)
	}

	out := make([]int64, 0, tbl.NumRows())
	for _, chunk := range tbl.Column(idx[0]).Data().Chunks() {
		arr, ok := chunk.(*array.Int64)
		if !ok {
			return nil, fmt.Errorf("column %q is %s, want int64", name, chunk.DataType())
		}
		for i := 0; i < arr.Len(); i++ {
			out = append(out, arr.Value(i))
		}
	}
	return out, nil
}

func boolColumn(tbl arrow.Table, name string) ([]bool, error) {
	idx := tbl.Schema().FieldIndices(name)
	if len(idx) == 0 {
		return nil, fmt.Errorf("column %q not found", name)
	}

	out := make([]bool, 0, tbl.NumRows())
	for _, chunk := range tbl.Column(idx[0]).Data().Chunks() {
		arr, ok := chunk.(*array.Boolean)
		if !ok {
			return nil, fmt.Errorf("column %q is %s, want bool", name, chunk.DataType())
		}
		for i := 0; i < arr.Len(); i++ {
			out = append(out, arr.Value(i))
		}
	}
	return out, nil
}
