package filestore

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/apache/arrow/go/v14/arrow"
	"github.com/apache/arrow/go/v14/arrow/array"
	"github.com/apache/arrow/go/v14/arrow/memory"
	"github.com/apache/arrow/go/v14/parquet"
	"github.com/apache/arrow/go/v14/parquet/pqarrow"
)

// TickRow is one exported tick. The csv tags drive the compressed CSV
// export; the parquet writer maps the same fields onto the arrow schema.
type TickRow struct {
	Timestamp    time.Time `csv:"timestamp"`
	Token        string    `csv:"token"`
	ContractType string    `csv:"contract_type"`
	LTP          float64   `csv:"ltp"`
	Volume       int64     `csv:"volume"`
	OI           int64     `csv:"oi"`
	OpenPrice    float64   `csv:"open_price"`
	HighPrice    float64   `csv:"high_price"`
	LowPrice     float64   `csv:"low_price"`
	ChangePct    float64   `csv:"change_pct"`
}

func tickSchema() *arrow.Schema {
	return arrow.NewSchema([]arrow.Field{
		{Name: "timestamp", Type: arrow.FixedWidthTypes.Timestamp_us},
		{Name: "token", Type: arrow.BinaryTypes.String},
		{Name: "contract_type", Type: arrow.BinaryTypes.String},
		{Name: "ltp", Type: arrow.PrimitiveTypes.Float64},
		{Name: "volume", Type: arrow.PrimitiveTypes.Int64},
		{Name: "oi", Type: arrow.PrimitiveTypes.Int64},
		{Name: "open_price", Type: arrow.PrimitiveTypes.Float64},
		{Name: "high_price", Type: arrow.PrimitiveTypes.Float64},
		{Name: "low_price", Type: arrow.PrimitiveTypes.Float64},
		{Name: "change_pct", Type: arrow.PrimitiveTypes.Float64},
	}, nil)
}

// tickParquetWriter streams tick rows into one parquet file.
type tickParquetWriter struct {
	file    *os.File
	writer  *pqarrow.FileWriter
	builder *array.RecordBuilder
	pending int
}

const parquetChunkRows = 10000

func newTickParquetWriter(path string) (*tickParquetWriter, error) {
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create parquet file: %w", err)
	}

	schema := tickSchema()
	props := parquet.NewWriterProperties(
		parquet.WithDictionaryDefault(false),
		parquet.WithDataPageSize(1024*1024),
		parquet.WithBatchSize(1000),
	)
	arrProps := pqarrow.NewArrowWriterProperties(pqarrow.WithStoreSchema())

	writer, err := pqarrow.NewFileWriter(schema, file, props, arrProps)
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to create parquet writer: %w", err)
	}

	return &tickParquetWriter{
		file:    file,
		writer:  writer,
		builder: array.NewRecordBuilder(memory.NewGoAllocator(), schema),
	}, nil
}

func (w *tickParquetWriter) append(row TickRow) error {
	w.builder.Field(0).(*array.TimestampBuilder).Append(arrow.Timestamp(row.Timestamp.UnixMicro()))
	w.builder.Field(1).(*array.StringBuilder).Append(row.Token)
	w.builder.Field(2).(*array.StringBuilder).Append(row.ContractType)
	w.builder.Field(3).(*array.Float64Builder).Append(row.LTP)
	w.builder.Field(4).(*array.Int64Builder).Append(row.Volume)
	w.builder.Field(5).(*array.Int64Builder).Append(row.OI)
	w.builder.Field(6).(*array.Float64Builder).Append(row.OpenPrice)
	w.builder.Field(7).(*array.Float64Builder).Append(row.HighPrice)
	w.builder.Field(8).(*array.Float64Builder).Append(row.LowPrice)
	w.builder.Field(9).(*array.Float64Builder).Append(row.ChangePct)

	w.pending++
	if w.pending >= parquetChunkRows {
		return w.flushChunk()
	}
	return nil
}

func (w *tickParquetWriter) flushChunk() error {
	if w.pending == 0 {
		return nil
	}
	rec := w.builder.NewRecord()
	defer rec.Release()

	if err := w.writer.Write(rec); err != nil {
		return fmt.Errorf("failed to write parquet record: %w", err)
	}
	w.pending = 0
	return nil
}

func (w *tickParquetWriter) Close() error {
	flushErr := w.flushChunk()
	w.builder.Release()

	if err := w.writer.Close(); err != nil {
		w.file.Close()
		return fmt.Errorf("failed to close parquet writer: %w", err)
	}
	// The pqarrow writer closes the underlying sink, so the file is
	// usually already closed by the time we get here.
	if err := w.file.Close(); err != nil && !errors.Is(err, os.ErrClosed) {
		return fmt.Errorf("failed to close parquet file: %w", err)
	}
	return flushErr
}
