package store

import (
	"context"
	"net"
	"testing"
	"time"

	"tickstore/cache"
	"tickstore/db"
	"tickstore/questdb"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func closedPort(t *testing.T) int {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())
	return port
}

// newOfflineManager builds a DataManager whose tick store cannot be
// reached, leaving only the in-memory path alive.
func newOfflineManager(t *testing.T) *DataManager {
	t.Helper()

	ticks := questdb.NewManager(questdb.Config{
		Host:               "127.0.0.1",
		ILPPort:            closedPort(t),
		HTTPPort:           closedPort(t),
		AltILPPort:         closedPort(t),
		AltHTTPPort:        closedPort(t),
		HealthCheckTimeout: 50 * time.Millisecond,
	})

	dm := NewDataManager(ticks, cache.NewOHLCCache(0), nil, nil)
	t.Cleanup(dm.Stop)
	return dm
}

func TestOfflineStartReportsDisabled(t *testing.T) {
	dm := newOfflineManager(t)
	assert.False(t, dm.Start())
}

func TestProcessTickCachesEvenWhenStoreIsDown(t *testing.T) {
	dm := newOfflineManager(t)
	require.False(t, dm.Start())

	ts := time.Date(2025, 8, 22, 10, 0, 0, 0, time.UTC)
	accepted := dm.ProcessTick(questdb.TickEvent{
		Timestamp: ts,
		Token:     "424961",
		LTP:       6250.5,
		Volume:    100,
	})

	assert.False(t, accepted)

	bars := dm.GetCachedBars("424961", "", time.Second, 10)
	require.Len(t, bars, 1)
	assert.Equal(t, 6250.5, bars[0].Close)
}

func TestStatusReflectsComponentWiring(t *testing.T) {
	dm := newOfflineManager(t)
	require.False(t, dm.Start())

	status := dm.Status()
	assert.Equal(t, false, status["ingest_running"])
	assert.Equal(t, false, status["redis_enabled"])
	assert.Equal(t, false, status["postgres"])
	assert.Equal(t, uint64(0), status["ticks_written"])
}

func TestLogTradeWithoutPostgresIsNoop(t *testing.T) {
	dm := newOfflineManager(t)

	err := dm.LogTrade(context.Background(), db.Trade{Token: "424961", Side: "BUY"})
	assert.NoError(t, err)
}
