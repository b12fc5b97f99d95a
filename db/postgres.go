package db

import (
	"context"
	"fmt"

	"tickstore/config"
	"tickstore/logger"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresDB holds the trade-log and metadata connection pool. Tick data
// never goes through here; that is the QuestDB manager's job.
type PostgresDB struct {
	pool *pgxpool.Pool
	log  *logger.Logger
}

// InitDB initializes the database connection pool and verifies it with a
// ping.
func InitDB(cfg *config.PostgresConfig) (*PostgresDB, error) {
	log := logger.GetLogger()
	ctx := context.Background()

	connString := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName,
	)

	poolConfig, err := pgxpool.ParseConfig(connString)
	if err != nil {
		log.Error("Failed to parse database config", map[string]interface{}{
			"error": err.Error(),
		})
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}

	poolConfig.MaxConns = int32(cfg.MaxConnections)
	poolConfig.MinConns = int32(cfg.MinConnections)
	poolConfig.MaxConnLifetime = cfg.GetMaxConnLifetime()
	poolConfig.MaxConnIdleTime = cfg.GetMaxConnIdleTime()

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		log.Error("Failed to create database pool", map[string]interface{}{
			"error": err.Error(),
		})
		return nil, fmt.Errorf("failed to create database pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		log.Error("Failed to ping database", map[string]interface{}{
			"error": err.Error(),
		})
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Info("Successfully connected to database", map[string]interface{}{
		"host":      cfg.Host,
		"port":      cfg.Port,
		"db":        cfg.DBName,
		"max_conns": cfg.MaxConnections,
		"min_conns": cfg.MinConnections,
	})

	return &PostgresDB{
		pool: pool,
		log:  log,
	}, nil
}

// GetPool returns the connection pool
func (p *PostgresDB) GetPool() *pgxpool.Pool {
	return p.pool
}

// Close closes the database connection
func (p *PostgresDB) Close() {
	if p.pool != nil {
		p.pool.Close()
	}
}
