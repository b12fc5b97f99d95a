package db

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Trade is one executed order leg logged for PnL accounting.
type Trade struct {
	ID        string    `json:"trade_id"`
	Timestamp time.Time `json:"timestamp"`
	Token     string    `json:"token"`
	Side      string    `json:"side"` // BUY or SELL
	Quantity  int64     `json:"quantity"`
	Price     float64   `json:"price"`
	PnL       float64   `json:"pnl"`
	Strategy  string    `json:"strategy"`
}

// withDefaults assigns a trade ID and timestamp when the caller left them
// empty.
func (t Trade) withDefaults() Trade {
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	if t.Timestamp.IsZero() {
		t.Timestamp = time.Now()
	}
	return t
}

const createTradesTable = `
CREATE TABLE IF NOT EXISTS trades (
	trade_id TEXT PRIMARY KEY,
	timestamp TIMESTAMPTZ NOT NULL,
	token TEXT NOT NULL,
	side TEXT NOT NULL,
	quantity BIGINT NOT NULL DEFAULT 0,
	price NUMERIC(12, 4) NOT NULL DEFAULT 0,
	pnl NUMERIC(12, 2) NOT NULL DEFAULT 0,
	strategy TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_trades_timestamp ON trades(timestamp);
CREATE INDEX IF NOT EXISTS idx_trades_strategy ON trades(strategy);
`

// CreateTables sets up the trade-log schema; idempotent and safe to repeat
// on every start.
func (p *PostgresDB) CreateTables(ctx context.Context) error {
	if _, err := p.pool.Exec(ctx, createTradesTable); err != nil {
		return fmt.Errorf("failed to create trades table: %w", err)
	}
	p.log.Info("Postgres tables created/verified")
	return nil
}

// InsertTrade logs one trade. Replayed trade IDs are ignored.
func (p *PostgresDB) InsertTrade(ctx context.Context, trade Trade) error {
	trade = trade.withDefaults()

	query := `INSERT INTO trades (
		trade_id, timestamp, token, side, quantity, price, pnl, strategy
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	ON CONFLICT (trade_id) DO NOTHING`

	_, err := p.pool.Exec(ctx, query,
		trade.ID,
		trade.Timestamp,
		trade.Token,
		trade.Side,
		trade.Quantity,
		trade.Price,
		trade.PnL,
		trade.Strategy,
	)
	if err != nil {
		return fmt.Errorf("failed to insert trade: %w", err)
	}
	return nil
}

// GetTradesByStrategy returns the most recent trades for a strategy,
// newest first.
func (p *PostgresDB) GetTradesByStrategy(ctx context.Context, strategy string, limit int) ([]Trade, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `SELECT trade_id, timestamp, token, side, quantity, price, pnl, strategy
		FROM trades
		WHERE strategy = $1
		ORDER BY timestamp DESC
		LIMIT $2`

	rows, err := p.pool.Query(ctx, query, strategy, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query trades: %w", err)
	}
	defer rows.Close()

	var trades []Trade
	for rows.Next() {
		var t Trade
		if err := rows.Scan(
			&t.ID,
			&t.Timestamp,
			&t.Token,
			&t.Side,
			&t.Quantity,
			&t.Price,
			&t.PnL,
			&t.Strategy,
		); err != nil {
			return nil, fmt.Errorf("failed to scan trade: %w", err)
		}
		trades = append(trades, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read trades: %w", err)
	}
	return trades, nil
}
