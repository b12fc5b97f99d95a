package questdb

import (
	"bufio"
	"net"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ilpCollector accepts ILP connections and records every received line.
type ilpCollector struct {
	ln    net.Listener
	mu    sync.Mutex
	lines []string
}

func newILPCollector(t *testing.T) *ilpCollector {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	c := &ilpCollector{ln: ln}
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func(conn net.Conn) {
				defer conn.Close()
				scanner := bufio.NewScanner(conn)
				for scanner.Scan() {
					c.mu.Lock()
					c.lines = append(c.lines, scanner.Text())
					c.mu.Unlock()
				}
			}(conn)
		}
	}()

	t.Cleanup(func() { ln.Close() })
	return c
}

func (c *ilpCollector) lineCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.lines)
}

func TestStartIngestsEndToEnd(t *testing.T) {
	rec := &queryRecorder{status: http.StatusOK, body: `{}`}
	srv := httptest.NewServer(rec)
	t.Cleanup(srv.Close)

	ilp := newILPCollector(t)

	cfg := Config{
		Host:        "127.0.0.1",
		ILPPort:     listenerPort(t, ilp.ln.Addr()),
		HTTPPort:    listenerPort(t, srv.Listener.Addr()),
		AltILPPort:  unusedPort(t),
		AltHTTPPort: unusedPort(t),

		MaxBatchSize: 5,
		MaxBatchAge:  20 * time.Millisecond,
	}

	m := NewManager(cfg)
	require.True(t, m.Start())
	t.Cleanup(m.Stop)

	assert.True(t, m.Running())

	for i := 0; i < 5; i++ {
		require.True(t, m.AddTick(tick("CRUDEOIL24AUGFUT", int64(i))))
	}

	require.Eventually(t, func() bool {
		return ilp.lineCount() == 5
	}, 3*time.Second, 10*time.Millisecond)

	assert.Equal(t, uint64(5), m.Stats().TicksWritten)
	assert.Equal(t, uint64(1), m.Stats().BatchesWritten)

	m.Stop()
	assert.False(t, m.Running())
	assert.False(t, m.AddTick(tick("CRUDEOIL24AUGFUT", 99)))
}

func TestStartDisablesWhenNoEndpointAnswers(t *testing.T) {
	cfg := Config{
		Host:               "127.0.0.1",
		HTTPPort:           unusedPort(t),
		AltHTTPPort:        unusedPort(t),
		HealthCheckTimeout: 300 * time.Millisecond,
	}

	m := NewManager(cfg)
	require.False(t, m.Start())
	assert.False(t, m.Running())
	assert.False(t, m.AddTick(tick("CRUDEOIL24AUGFUT", 1)))
}
