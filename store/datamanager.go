package store

import (
	"context"
	"time"

	"tickstore/cache"
	"tickstore/db"
	"tickstore/logger"
	"tickstore/questdb"
)

// DataManager ties the hot path together: every tick goes into the
// in-memory OHLC cache, the QuestDB ingest queue and, when Redis is
// available, the LTP distributor. Trades are logged to Postgres.
// Redis and Postgres are optional; the tick path works without them.
type DataManager struct {
	ticks       *questdb.Manager
	ohlc        *cache.OHLCCache
	distributor *cache.LTPDistributor
	postgres    *db.PostgresDB
	log         *logger.Logger
}

func NewDataManager(ticks *questdb.Manager, ohlc *cache.OHLCCache, distributor *cache.LTPDistributor, postgres *db.PostgresDB) *DataManager {
	return &DataManager{
		ticks:       ticks,
		ohlc:        ohlc,
		distributor: distributor,
		postgres:    postgres,
		log:         logger.GetLogger(),
	}
}

// Start brings up the ingest worker and the LTP distributor. Returns
// false when the tick store is unreachable and ingestion is disabled;
// the in-memory cache keeps working either way.
func (dm *DataManager) Start() bool {
	if dm.distributor != nil {
		dm.distributor.Start()
	}

	ok := dm.ticks.Start()
	if !ok {
		dm.log.Warn("Tick store disabled, serving from in-memory cache only")
	}
	return ok
}

// ProcessTick folds one tick into every consumer. The return value is
// whether the tick made it into the ingest queue.
func (dm *DataManager) ProcessTick(tick questdb.TickEvent) bool {
	dm.ohlc.Update(tick)

	if dm.distributor != nil {
		ts := tick.Timestamp
		if ts.IsZero() {
			ts = time.Now()
		}
		dm.distributor.Publish(tick.Token, tick.LTP, ts)
	}

	return dm.ticks.AddTick(tick)
}

// LogTrade records an executed trade in Postgres.
func (dm *DataManager) LogTrade(ctx context.Context, trade db.Trade) error {
	if dm.postgres == nil {
		dm.log.Warn("Trade log skipped, Postgres not configured", map[string]interface{}{
			"token": trade.Token,
		})
		return nil
	}
	return dm.postgres.InsertTrade(ctx, trade)
}

// GetLatestTicks reads recent ticks back from the column store.
func (dm *DataManager) GetLatestTicks(token string, limit int) *questdb.RowSet {
	return dm.ticks.GetLatestTicks(token, limit)
}

// GetOHLC runs a SAMPLE BY aggregation on the column store.
func (dm *DataManager) GetOHLC(token, timeframe string, start, end *time.Time) *questdb.RowSet {
	return dm.ticks.GetOHLC(token, timeframe, start, end)
}

// GetCachedBars serves OHLC bars from memory without touching the store.
func (dm *DataManager) GetCachedBars(token, contractType string, interval time.Duration, limit int) []cache.OHLCBar {
	return dm.ohlc.GetBars(token, contractType, interval, limit)
}

// Stats reports the ingest counters.
func (dm *DataManager) Stats() questdb.Stats {
	return dm.ticks.Stats()
}

// Status summarizes component health for the ops API.
func (dm *DataManager) Status() map[string]interface{} {
	stats := dm.ticks.Stats()
	return map[string]interface{}{
		"ingest_running":  dm.ticks.Running(),
		"ticks_written":   stats.TicksWritten,
		"batches_written": stats.BatchesWritten,
		"ticks_dropped":   stats.TicksDropped,
		"cached_bars":     dm.ohlc.Size(),
		"redis_enabled":   dm.distributor != nil,
		"postgres":        dm.postgres != nil,
	}
}

// Stop drains and shuts down the ingest worker, then the distributor
// and the Postgres pool.
func (dm *DataManager) Stop() {
	dm.ticks.Stop()
	if dm.distributor != nil {
		dm.distributor.Stop()
	}
	if dm.postgres != nil {
		dm.postgres.Close()
	}
}
