package filestore

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"tickstore/logger"
	"tickstore/questdb"

	"github.com/gocarina/gocsv"
	"github.com/klauspost/pgzip"
)

// TickQuerier is the slice of the tick store the exporter needs.
type TickQuerier interface {
	Query(sql string) *questdb.RowSet
}

// Exporter archives a day of tick data out of the column store into
// parquet and compressed CSV files for cold storage.
type Exporter struct {
	querier TickQuerier
	dir     string
	log     *logger.Logger
}

const exportPageSize = 50000

func NewExporter(querier TickQuerier, dir string) *Exporter {
	return &Exporter{
		querier: querier,
		dir:     dir,
		log:     logger.GetLogger(),
	}
}

// ExportDayToParquet writes every tick of one UTC day to
// <dir>/tick_data_YYYYMMDD.parquet and returns the path.
func (e *Exporter) ExportDayToParquet(day time.Time) (string, error) {
	path := filepath.Join(e.dir, fmt.Sprintf("tick_data_%s.parquet", day.Format("20060102")))
	if err := os.MkdirAll(e.dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create export directory: %w", err)
	}

	writer, err := newTickParquetWriter(path)
	if err != nil {
		return "", err
	}

	total := 0
	err = e.eachRow(day, func(row TickRow) error {
		total++
		return writer.append(row)
	})
	if closeErr := writer.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(path)
		return "", err
	}

	e.log.Info("Exported parquet archive", map[string]interface{}{
		"path": path,
		"rows": total,
	})
	return path, nil
}

// ExportDayToCSV writes the same day as a gzip-compressed CSV to
// <dir>/tick_data_YYYYMMDD.csv.gz.
func (e *Exporter) ExportDayToCSV(day time.Time) (string, error) {
	path := filepath.Join(e.dir, fmt.Sprintf("tick_data_%s.csv.gz", day.Format("20060102")))
	if err := os.MkdirAll(e.dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create export directory: %w", err)
	}

	var rows []TickRow
	if err := e.eachRow(day, func(row TickRow) error {
		rows = append(rows, row)
		return nil
	}); err != nil {
		return "", err
	}

	file, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create export file: %w", err)
	}

	gz := pgzip.NewWriter(file)
	if err := gocsv.Marshal(&rows, gz); err != nil {
		gz.Close()
		file.Close()
		os.Remove(path)
		return "", fmt.Errorf("failed to write CSV export: %w", err)
	}
	if err := gz.Close(); err != nil {
		file.Close()
		os.Remove(path)
		return "", fmt.Errorf("failed to finish compression: %w", err)
	}
	if err := file.Close(); err != nil {
		return "", fmt.Errorf("failed to close export file: %w", err)
	}

	e.log.Info("Exported CSV archive", map[string]interface{}{
		"path": path,
		"rows": len(rows),
	})
	return path, nil
}

// eachRow pages through one day of tick_data in timestamp order.
func (e *Exporter) eachRow(day time.Time, fn func(TickRow) error) error {
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	end := start.Add(24 * time.Hour)

	offset := 0
	for {
		sql := fmt.Sprintf(
			"SELECT timestamp, token, contract_type, ltp, volume, oi, open_price, high_price, low_price, change_pct "+
				"FROM tick_data WHERE timestamp >= '%s' AND timestamp < '%s' "+
				"ORDER BY timestamp LIMIT %d, %d",
			start.Format(exportTimeFormat),
			end.Format(exportTimeFormat),
			offset,
			offset+exportPageSize,
		)

		rs := e.querier.Query(sql)
		if rs == nil {
			return fmt.Errorf("tick query failed at offset %d", offset)
		}
		if len(rs.Rows) == 0 {
			return nil
		}

		for _, raw := range rs.Rows {
			row, err := rowFromColumns(rs.Columns, raw)
			if err != nil {
				return err
			}
			if err := fn(row); err != nil {
				return err
			}
		}

		offset += len(rs.Rows)
		if len(rs.Rows) < exportPageSize {
			return nil
		}
	}
}

const exportTimeFormat = "2006-01-02T15:04:05.000000Z"

func rowFromColumns(columns []string, values []interface{}) (TickRow, error) {
	var row TickRow
	for i, name := range columns {
		if i >= len(values) {
			break
		}
		v := values[i]
		switch name {
		case "timestamp":
			ts, err := time.Parse(time.RFC3339Nano, toString(v))
			if err != nil {
				return row, fmt.Errorf("bad timestamp %q: %w", toString(v), err)
			}
			row.Timestamp = ts
		case "token":
			row.Token = toString(v)
		case "contract_type":
			row.ContractType = toString(v)
		case "ltp":
			row.LTP = toFloat(v)
		case "volume":
			row.Volume = toInt64(v)
		case "oi":
			row.OI = toInt64(v)
		case "open_price":
			row.OpenPrice = toFloat(v)
		case "high_price":
			row.HighPrice = toFloat(v)
		case "low_price":
			row.LowPrice = toFloat(v)
		case "change_pct":
			row.ChangePct = toFloat(v)
		}
	}
	return row, nil
}

func toString(v interface{}) string {
	s, _ := v.(string)
	return s
}

func toFloat(v interface{}) float64 {
	f, _ := v.(float64)
	return f
}

func toInt64(v interface{}) int64 {
	// JSON numbers decode as float64
	f, _ := v.(float64)
	return int64(f)
}
