package questdb

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const queryTimeout = 30 * time.Second

// RowSet is a parsed tabular response from the query endpoint.
type RowSet struct {
	Columns []string
	Rows    [][]interface{}
}

type execResponse struct {
	Query   string `json:"query"`
	Columns []struct {
		Name string `json:"name"`
		Type string `json:"type"`
	} `json:"columns"`
	Dataset [][]interface{} `json:"dataset"`
}

// Query runs SQL against the active query endpoint. Returns nil on any
// failure: endpoint disabled, non-200 status, or a malformed response.
func (m *Manager) Query(sql string) *RowSet {
	if m.endpoint == nil {
		return nil
	}

	client := http.Client{Timeout: queryTimeout}
	resp, err := client.PostForm(m.endpoint.execURL(), url.Values{"query": {sql}})
	if err != nil {
		m.log.Error("Query request failed", map[string]interface{}{
			"error": err.Error(),
		})
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		m.log.Error("Query returned non-success status", map[string]interface{}{
			"status": resp.StatusCode,
		})
		return nil
	}

	var parsed execResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		m.log.Error("Failed to parse query response", map[string]interface{}{
			"error": err.Error(),
		})
		return nil
	}

	rs := &RowSet{
		Columns: make([]string, len(parsed.Columns)),
		Rows:    parsed.Dataset,
	}
	for i, col := range parsed.Columns {
		rs.Columns[i] = col.Name
	}
	return rs
}

// GetLatestTicks returns the most recent rows for a token, newest first.
func (m *Manager) GetLatestTicks(token string, limit int) *RowSet {
	if limit <= 0 {
		limit = 100
	}
	sql := fmt.Sprintf(
		`SELECT * FROM tick_data WHERE token = '%s' ORDER BY timestamp DESC LIMIT %d`,
		escapeSQLString(token), limit,
	)
	return m.Query(sql)
}

// GetOHLC aggregates open/high/low/close of ltp and summed volume per
// sampling interval, optionally restricted to [start, end].
func (m *Manager) GetOHLC(token, timeframe string, start, end *time.Time) *RowSet {
	if timeframe == "" {
		timeframe = "1m"
	}

	timeFilter := ""
	if start != nil && end != nil {
		timeFilter = fmt.Sprintf(
			" AND timestamp BETWEEN '%s' AND '%s'",
			start.UTC().Format("2006-01-02T15:04:05.000000Z"),
			end.UTC().Format("2006-01-02T15:04:05.000000Z"),
		)
	}

	sql := fmt.Sprintf(`SELECT
		timestamp,
		first(ltp) AS open_price,
		max(ltp) AS high_price,
		min(ltp) AS low_price,
		last(ltp) AS close_price,
		sum(volume) AS volume
	FROM tick_data
	WHERE token = '%s'%s
	SAMPLE BY %s
	ORDER BY timestamp DESC`,
		escapeSQLString(token), timeFilter, timeframe,
	)
	return m.Query(sql)
}

func escapeSQLString(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}
