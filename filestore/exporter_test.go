package filestore

import (
	"io"
	"os"
	"strings"
	"testing"
	"time"

	"tickstore/questdb"

	"github.com/klauspost/pgzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var tickColumns = []string{
	"timestamp", "token", "contract_type", "ltp", "volume", "oi",
	"open_price", "high_price", "low_price", "change_pct",
}

// stubQuerier replays canned pages and records the SQL it was asked for.
type stubQuerier struct {
	pages   []*questdb.RowSet
	queries []string
}

func (s *stubQuerier) Query(sql string) *questdb.RowSet {
	s.queries = append(s.queries, sql)
	if len(s.pages) == 0 {
		return &questdb.RowSet{Columns: tickColumns}
	}
	page := s.pages[0]
	s.pages = s.pages[1:]
	return page
}

func tickRowValues(ts string, token string, seq float64) []interface{} {
	return []interface{}{
		ts, token, "FUT", 6250.5 + seq, 100.0 + seq, 200.0 + seq,
		6200.0, 6280.0, 6190.0, 0.81,
	}
}

func pageOf(rows ...[]interface{}) *questdb.RowSet {
	return &questdb.RowSet{Columns: tickColumns, Rows: rows}
}

func TestRowFromColumnsMapsEveryField(t *testing.T) {
	row, err := rowFromColumns(tickColumns, tickRowValues("2025-08-22T10:15:30.000000Z", "424961", 1))
	require.NoError(t, err)

	assert.Equal(t, time.Date(2025, 8, 22, 10, 15, 30, 0, time.UTC), row.Timestamp)
	assert.Equal(t, "424961", row.Token)
	assert.Equal(t, "FUT", row.ContractType)
	assert.Equal(t, 6251.5, row.LTP)
	assert.Equal(t, int64(101), row.Volume)
	assert.Equal(t, int64(201), row.OI)
	assert.Equal(t, 6200.0, row.OpenPrice)
	assert.Equal(t, 0.81, row.ChangePct)
}

func TestRowFromColumnsRejectsBadTimestamp(t *testing.T) {
	_, err := rowFromColumns(tickColumns, tickRowValues("not-a-time", "424961", 0))
	assert.Error(t, err)
}

func TestEachRowPagesUntilExhausted(t *testing.T) {
	q := &stubQuerier{pages: []*questdb.RowSet{
		pageOf(tickRowValues("2025-08-22T10:00:00.000000Z", "424961", 0)),
	}}
	e := NewExporter(q, t.TempDir())

	var rows []TickRow
	err := e.eachRow(time.Date(2025, 8, 22, 0, 0, 0, 0, time.UTC), func(r TickRow) error {
		rows = append(rows, r)
		return nil
	})
	require.NoError(t, err)
	require.Len(t, rows, 1)

	// A short page ends the walk without another round trip
	require.Len(t, q.queries, 1)
	assert.Contains(t, q.queries[0], "timestamp >= '2025-08-22T00:00:00.000000Z'")
	assert.Contains(t, q.queries[0], "timestamp < '2025-08-23T00:00:00.000000Z'")
	assert.Contains(t, q.queries[0], "ORDER BY timestamp")
}

func TestEachRowFailsWhenQueryFails(t *testing.T) {
	q := &failingQuerier{}
	e := NewExporter(q, t.TempDir())

	err := e.eachRow(time.Now().UTC(), func(TickRow) error { return nil })
	assert.Error(t, err)
}

type failingQuerier struct{}

func (failingQuerier) Query(string) *questdb.RowSet { return nil }

func TestExportDayToCSVWritesCompressedRows(t *testing.T) {
	q := &stubQuerier{pages: []*questdb.RowSet{
		pageOf(
			tickRowValues("2025-08-22T10:00:00.000000Z", "424961", 0),
			tickRowValues("2025-08-22T10:00:01.000000Z", "424961", 1),
		),
	}}
	dir := t.TempDir()
	e := NewExporter(q, dir)

	path, err := e.ExportDayToCSV(time.Date(2025, 8, 22, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(path, "tick_data_20250822.csv.gz"))

	file, err := os.Open(path)
	require.NoError(t, err)
	defer file.Close()

	gz, err := pgzip.NewReader(file)
	require.NoError(t, err)
	raw, err := io.ReadAll(gz)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], "token")
	assert.Contains(t, lines[0], "change_pct")
	assert.Contains(t, lines[1], "424961")
	assert.Contains(t, lines[1], "6250.5")
}

func TestExportDayToParquetCreatesFile(t *testing.T) {
	q := &stubQuerier{pages: []*questdb.RowSet{
		pageOf(tickRowValues("2025-08-22T10:00:00.000000Z", "424961", 0)),
	}}
	dir := t.TempDir()
	e := NewExporter(q, dir)

	path, err := e.ExportDayToParquet(time.Date(2025, 8, 22, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(path, "tick_data_20250822.parquet"))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))
}
