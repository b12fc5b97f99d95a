package questdb

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const schemaExecTimeout = 10 * time.Second

// tickTables are the idempotent table definitions issued on every start.
var tickTables = []string{
	`CREATE TABLE IF NOT EXISTS tick_data (
		timestamp TIMESTAMP,
		token SYMBOL,
		contract_type SYMBOL,
		ltp DOUBLE,
		volume LONG,
		oi LONG,
		open_price DOUBLE,
		high_price DOUBLE,
		low_price DOUBLE,
		change_pct DOUBLE
	) TIMESTAMP(timestamp) PARTITION BY DAY;`,

	`CREATE TABLE IF NOT EXISTS ohlc_1min (
		timestamp TIMESTAMP,
		token SYMBOL,
		contract_type SYMBOL,
		open_price DOUBLE,
		high_price DOUBLE,
		low_price DOUBLE,
		close_price DOUBLE,
		volume LONG,
		trades LONG
	) TIMESTAMP(timestamp) PARTITION BY DAY;`,

	`CREATE TABLE IF NOT EXISTS trades (
		timestamp TIMESTAMP,
		token SYMBOL,
		side SYMBOL,
		quantity LONG,
		price DOUBLE,
		pnl DOUBLE,
		strategy SYMBOL
	) TIMESTAMP(timestamp) PARTITION BY DAY;`,
}

// createTables is best effort: each statement logs its own failure and the
// rest still run. Startup never aborts on schema setup.
func (m *Manager) createTables() {
	for _, stmt := range tickTables {
		if err := m.execStatement(stmt); err != nil {
			m.log.Warn("Failed to create table", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}
	m.log.Info("QuestDB tables created/verified")
}

func (m *Manager) execStatement(stmt string) error {
	client := http.Client{Timeout: schemaExecTimeout}
	resp, err := client.PostForm(m.endpoint.execURL(), url.Values{"query": {stmt}})
	if err != nil {
		return fmt.Errorf("exec request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("exec returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	io.Copy(io.Discard, resp.Body)
	return nil
}
