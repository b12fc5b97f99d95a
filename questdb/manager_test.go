package questdb

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubBatchWriter records flushed batches and can fail on demand.
type stubBatchWriter struct {
	mu       sync.Mutex
	batches  [][]TickEvent
	failures int
	closed   bool
}

func (s *stubBatchWriter) writeBatch(batch []TickEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failures > 0 {
		s.failures--
		return errors.New("connection reset by peer")
	}

	cp := make([]TickEvent, len(batch))
	copy(cp, batch)
	s.batches = append(s.batches, cp)
	return nil
}

func (s *stubBatchWriter) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *stubBatchWriter) batchSizes() []int {
	s.mu.Lock()
	defer s.mu.Unlock()

	sizes := make([]int, len(s.batches))
	for i, b := range s.batches {
		sizes[i] = len(b)
	}
	return sizes
}

func (s *stubBatchWriter) totalTicks() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	total := 0
	for _, b := range s.batches {
		total += len(b)
	}
	return total
}

func (s *stubBatchWriter) allTicks() []TickEvent {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []TickEvent
	for _, b := range s.batches {
		out = append(out, b...)
	}
	return out
}

// newStubManager wires a manager to a stub writer without touching the
// network. The returned start func launches the drain worker; tests that
// never call it keep the queue frozen at whatever they enqueued.
func newStubManager(t *testing.T, cfg Config, w batchWriter) (*Manager, func()) {
	t.Helper()

	m := NewManager(cfg)
	m.writer = w
	m.done = make(chan struct{})
	m.workerDone = make(chan struct{})
	m.running.Store(true)

	started := false
	start := func() {
		started = true
		go m.drainLoop()
	}

	t.Cleanup(func() {
		if started {
			m.Stop()
		} else {
			m.running.Store(false)
		}
	})
	return m, start
}

func tick(token string, seq int64) TickEvent {
	return TickEvent{
		Token:        token,
		ContractType: ContractFuture,
		LTP:          6250.5,
		Volume:       seq,
		Timestamp:    time.Now(),
	}
}

func TestTicksFlushInEnqueueOrder(t *testing.T) {
	w := &stubBatchWriter{}
	m, start := newStubManager(t, Config{MaxBatchSize: 30, MaxBatchAge: 20 * time.Millisecond}, w)
	start()

	const n = 100
	for i := 0; i < n; i++ {
		require.True(t, m.AddTick(tick("CRUDEOIL24AUGFUT", int64(i))))
	}

	require.Eventually(t, func() bool {
		return w.totalTicks() == n
	}, 2*time.Second, 5*time.Millisecond)

	flushed := w.allTicks()
	for i, tk := range flushed {
		assert.Equal(t, int64(i), tk.Volume, "tick %d out of order", i)
	}
}

func TestBatchSplitsAtMaxSize(t *testing.T) {
	w := &stubBatchWriter{}
	m, start := newStubManager(t, Config{
		QueueCapacity: 2000,
		MaxBatchSize:  1000,
		MaxBatchAge:   200 * time.Millisecond,
	}, w)

	// Queue everything before the worker runs so the first flush is a
	// clean size trigger and the remainder is an age trigger.
	for i := 0; i < 1500; i++ {
		require.True(t, m.AddTick(tick("CRUDEOIL24AUGFUT", int64(i))))
	}
	start()

	require.Eventually(t, func() bool {
		return w.totalTicks() == 1500
	}, 3*time.Second, 10*time.Millisecond)

	assert.Equal(t, []int{1000, 500}, w.batchSizes())

	stats := m.Stats()
	assert.Equal(t, uint64(1500), stats.TicksWritten)
	assert.Equal(t, uint64(2), stats.BatchesWritten)
}

func TestAgeTriggerFlushesPartialBatch(t *testing.T) {
	w := &stubBatchWriter{}
	m, start := newStubManager(t, Config{MaxBatchSize: 1000, MaxBatchAge: 50 * time.Millisecond}, w)
	start()

	require.True(t, m.AddTick(tick("NATURALGAS24AUGFUT", 1)))

	require.Eventually(t, func() bool {
		return w.totalTicks() == 1
	}, 2*time.Second, 5*time.Millisecond)

	// No second flush appears for a lone tick
	time.Sleep(150 * time.Millisecond)
	assert.Equal(t, []int{1}, w.batchSizes())
}

func TestQueueFullDropsTick(t *testing.T) {
	w := &stubBatchWriter{}
	m, _ := newStubManager(t, Config{QueueCapacity: 10}, w)
	// Worker deliberately not started: the queue stays at capacity.

	for i := 0; i < 10; i++ {
		require.True(t, m.AddTick(tick("CRUDEOIL24AUGFUT", int64(i))))
	}

	assert.False(t, m.AddTick(tick("CRUDEOIL24AUGFUT", 10)))
	assert.Equal(t, 10, len(m.queue))
	assert.Equal(t, uint64(1), m.Stats().TicksDropped)
}

func TestDisabledManagerRejectsTicks(t *testing.T) {
	m := NewManager(Config{})

	assert.False(t, m.AddTick(tick("CRUDEOIL24AUGFUT", 1)))
	assert.False(t, m.Running())
	assert.Nil(t, m.Query("SELECT 1"))
	assert.Equal(t, Stats{}, m.Stats())

	// Stop on a never-started manager is a no-op
	m.Stop()
}

func TestRejectsTickWithoutToken(t *testing.T) {
	w := &stubBatchWriter{}
	m, _ := newStubManager(t, Config{}, w)

	assert.False(t, m.AddTick(TickEvent{LTP: 100}))
	assert.Equal(t, 0, len(m.queue))
}

func TestFlushFailureDoesNotHaltWorker(t *testing.T) {
	w := &stubBatchWriter{failures: 1}
	m, start := newStubManager(t, Config{MaxBatchSize: 10, MaxBatchAge: 20 * time.Millisecond}, w)

	for i := 0; i < 10; i++ {
		require.True(t, m.AddTick(tick("GOLD24AUGFUT", int64(i))))
	}
	start()

	// First batch hits the injected failure and is discarded
	require.Eventually(t, func() bool {
		w.mu.Lock()
		defer w.mu.Unlock()
		return w.failures == 0
	}, 2*time.Second, 5*time.Millisecond)

	// The worker keeps accepting and a later flush succeeds
	for i := 10; i < 20; i++ {
		require.True(t, m.AddTick(tick("GOLD24AUGFUT", int64(i))))
	}

	require.Eventually(t, func() bool {
		return w.totalTicks() == 10
	}, 2*time.Second, 5*time.Millisecond)

	stats := m.Stats()
	assert.Equal(t, uint64(10), stats.TicksWritten)
	assert.Equal(t, uint64(1), stats.BatchesWritten)
}

func TestCountersMatchFlushedBatches(t *testing.T) {
	w := &stubBatchWriter{}
	m, start := newStubManager(t, Config{MaxBatchSize: 100, MaxBatchAge: 30 * time.Millisecond}, w)
	start()

	for i := 0; i < 250; i++ {
		require.True(t, m.AddTick(tick("SILVER24AUGFUT", int64(i))))
	}

	require.Eventually(t, func() bool {
		return w.totalTicks() == 250
	}, 2*time.Second, 5*time.Millisecond)

	stats := m.Stats()
	assert.Equal(t, uint64(250), stats.TicksWritten)
	assert.Equal(t, uint64(len(w.batchSizes())), stats.BatchesWritten)
	assert.Equal(t, uint64(0), stats.TicksDropped)
}

func TestNormalizeFillsTimestampAndClampsNegatives(t *testing.T) {
	n := TickEvent{Token: "X", Volume: -5, OI: -1}.normalize()

	assert.False(t, n.Timestamp.IsZero())
	assert.Equal(t, int64(0), n.Volume)
	assert.Equal(t, int64(0), n.OI)
}
