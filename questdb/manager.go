package questdb

import (
	"sync/atomic"
	"time"

	"tickstore/logger"
)

const (
	pollInterval = 10 * time.Millisecond
	errorBackoff = 1 * time.Millisecond
	stopTimeout  = 5 * time.Second
)

// Config is the full startup surface of the manager. Zero values fall back
// to the defaults of the original deployment.
type Config struct {
	Host        string
	ILPPort     int
	HTTPPort    int
	AltILPPort  int
	AltHTTPPort int

	QueueCapacity      int
	MaxBatchSize       int
	MaxBatchAge        time.Duration
	HealthCheckTimeout time.Duration
	FlushTimeout       time.Duration
	StatsLogInterval   time.Duration
}

func (c *Config) applyDefaults() {
	if c.Host == "" {
		c.Host = "localhost"
	}
	if c.ILPPort == 0 {
		c.ILPPort = 9009
	}
	if c.HTTPPort == 0 {
		c.HTTPPort = 9000
	}
	if c.AltILPPort == 0 {
		c.AltILPPort = 19009
	}
	if c.AltHTTPPort == 0 {
		c.AltHTTPPort = 19000
	}
	if c.QueueCapacity == 0 {
		c.QueueCapacity = 100000
	}
	if c.MaxBatchSize == 0 {
		c.MaxBatchSize = 1000
	}
	if c.MaxBatchAge == 0 {
		c.MaxBatchAge = 100 * time.Millisecond
	}
	if c.HealthCheckTimeout == 0 {
		c.HealthCheckTimeout = 2 * time.Second
	}
	if c.FlushTimeout == 0 {
		c.FlushTimeout = 500 * time.Millisecond
	}
	if c.StatsLogInterval == 0 {
		c.StatsLogInterval = 60 * time.Second
	}
}

// Manager owns the bounded tick queue, the single drain worker and the ILP
// sender. Producers only ever touch AddTick; everything else belongs to the
// worker goroutine.
type Manager struct {
	cfg Config
	log *logger.Logger

	endpoint *EndpointSet
	writer   batchWriter
	queue    chan TickEvent

	running    atomic.Bool
	done       chan struct{}
	workerDone chan struct{}

	ticksWritten   atomic.Uint64
	batchesWritten atomic.Uint64
	ticksDropped   atomic.Uint64
}

func NewManager(cfg Config) *Manager {
	cfg.applyDefaults()
	return &Manager{
		cfg:   cfg,
		log:   logger.GetLogger(),
		queue: make(chan TickEvent, cfg.QueueCapacity),
	}
}

// Start resolves the active endpoint, creates tables and launches the drain
// worker. When neither endpoint pair answers the manager stays disabled:
// AddTick becomes a fast no-op and no worker runs.
func (m *Manager) Start() bool {
	ep := &EndpointSet{
		Host:        m.cfg.Host,
		ILPPort:     m.cfg.ILPPort,
		HTTPPort:    m.cfg.HTTPPort,
		AltILPPort:  m.cfg.AltILPPort,
		AltHTTPPort: m.cfg.AltHTTPPort,
	}

	if !ep.resolve(m.cfg.HealthCheckTimeout) {
		m.log.Warn("QuestDB not detected on any endpoint - ingestion disabled", map[string]interface{}{
			"host":          ep.Host,
			"http_port":     ep.HTTPPort,
			"alt_http_port": ep.AltHTTPPort,
		})
		return false
	}
	m.endpoint = ep

	m.log.Info("QuestDB detected", map[string]interface{}{
		"host":      ep.Host,
		"ilp_port":  ep.ActiveILPPort,
		"http_port": ep.ActiveHTTPPort,
	})

	// Best effort, idempotent, safe to repeat on every start
	m.createTables()

	writer, err := newLineSender(ep.ilpAddr(), m.cfg.HealthCheckTimeout, m.cfg.FlushTimeout)
	if err != nil {
		m.log.Error("Failed to connect ILP sender", map[string]interface{}{
			"error": err.Error(),
			"addr":  ep.ilpAddr(),
		})
		return false
	}
	m.writer = writer

	m.done = make(chan struct{})
	m.workerDone = make(chan struct{})
	m.running.Store(true)
	go m.drainLoop()

	m.log.Info("QuestDB manager started", map[string]interface{}{
		"queue_capacity": m.cfg.QueueCapacity,
		"max_batch_size": m.cfg.MaxBatchSize,
		"max_batch_age":  m.cfg.MaxBatchAge.String(),
	})
	return true
}

// AddTick queues one tick without ever blocking the caller. Returns false
// when the manager is disabled, the tick carries no token, or the queue is
// full; a false means dropped, no retry.
func (m *Manager) AddTick(tick TickEvent) bool {
	if !m.running.Load() {
		return false
	}
	if tick.Token == "" {
		m.log.Warn("Rejecting tick without token")
		return false
	}

	select {
	case m.queue <- tick.normalize():
		return true
	default:
		m.ticksDropped.Add(1)
		m.log.Warn("Tick queue full - dropping tick", map[string]interface{}{
			"token":         tick.Token,
			"total_dropped": m.ticksDropped.Load(),
		})
		return false
	}
}

// drainLoop is the single consumer. It owns the in-progress batch and the
// sender connection, so ticks flush strictly in enqueue order.
func (m *Manager) drainLoop() {
	defer close(m.workerDone)

	poll := time.NewTicker(pollInterval)
	defer poll.Stop()

	batch := make([]TickEvent, 0, m.cfg.MaxBatchSize)
	var batchStart time.Time
	lastStatsLog := time.Now()

	for {
		select {
		case <-m.done:
			return
		case tick := <-m.queue:
			if len(batch) == 0 {
				batchStart = time.Now()
			}
			batch = append(batch, tick)
		case <-poll.C:
		}

		shouldFlush := len(batch) >= m.cfg.MaxBatchSize ||
			(len(batch) > 0 && time.Since(batchStart) >= m.cfg.MaxBatchAge)

		if shouldFlush {
			m.flush(batch)
			batch = make([]TickEvent, 0, m.cfg.MaxBatchSize)
		}

		lastStatsLog = m.maybeLogStats(lastStatsLog)
	}
}

// flush hands the batch to the sender. Failures are logged and the batch is
// discarded either way; the worker never dies on a bad flush.
func (m *Manager) flush(batch []TickEvent) {
	if len(batch) == 0 || m.writer == nil {
		return
	}

	if err := m.writer.writeBatch(batch); err != nil {
		m.log.Error("Failed to flush batch to QuestDB", map[string]interface{}{
			"error":      err.Error(),
			"batch_size": len(batch),
		})
		time.Sleep(errorBackoff)
		return
	}

	m.ticksWritten.Add(uint64(len(batch)))
	m.batchesWritten.Add(1)
}

func (m *Manager) maybeLogStats(last time.Time) time.Time {
	elapsed := time.Since(last)
	if elapsed < m.cfg.StatsLogInterval {
		return last
	}

	stats := m.Stats()
	rate := float64(stats.TicksWritten) / elapsed.Seconds()
	m.log.Info("QuestDB throughput", map[string]interface{}{
		"ticks_per_sec":   int64(rate),
		"ticks_written":   stats.TicksWritten,
		"batches_written": stats.BatchesWritten,
		"ticks_dropped":   stats.TicksDropped,
	})
	return time.Now()
}

// Stop signals the worker, joins it with a bounded wait and closes the
// sender. Anything still queued or batched is accepted data loss.
func (m *Manager) Stop() {
	if !m.running.CompareAndSwap(true, false) {
		return
	}

	close(m.done)
	select {
	case <-m.workerDone:
	case <-time.After(stopTimeout):
		m.log.Warn("Drain worker did not stop within timeout")
	}

	if m.writer != nil {
		if err := m.writer.Close(); err != nil {
			m.log.Error("Failed to close ILP sender", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}

	stats := m.Stats()
	m.log.Info("QuestDB manager stopped", map[string]interface{}{
		"ticks_written":   stats.TicksWritten,
		"batches_written": stats.BatchesWritten,
		"ticks_dropped":   stats.TicksDropped,
	})
}

// Running reports whether ingestion is enabled.
func (m *Manager) Running() bool {
	return m.running.Load()
}
