package cache

import (
	"context"
	"time"

	"tickstore/logger"
)

const (
	distributorQueueSize = 1024
	ltpWriteTimeout      = 100 * time.Millisecond
)

type ltpUpdate struct {
	token string
	ltp   float64
	ts    time.Time
}

// LTPDistributor decouples the tick path from Redis: publishes are a
// non-blocking channel send and a single background worker does the writes.
// A full queue drops the update; the store already has the tick.
type LTPDistributor struct {
	cache *RedisCache
	log   *logger.Logger

	queue      chan ltpUpdate
	done       chan struct{}
	workerDone chan struct{}
}

func NewLTPDistributor(cache *RedisCache) *LTPDistributor {
	return &LTPDistributor{
		cache: cache,
		log:   logger.GetLogger(),
		queue: make(chan ltpUpdate, distributorQueueSize),
	}
}

func (d *LTPDistributor) Start() {
	d.done = make(chan struct{})
	d.workerDone = make(chan struct{})
	go d.run()
}

// Publish never blocks; returns false when the update was dropped.
func (d *LTPDistributor) Publish(token string, ltp float64, ts time.Time) bool {
	select {
	case d.queue <- ltpUpdate{token: token, ltp: ltp, ts: ts}:
		return true
	default:
		return false
	}
}

func (d *LTPDistributor) run() {
	defer close(d.workerDone)

	for {
		select {
		case <-d.done:
			return
		case upd := <-d.queue:
			ctx, cancel := context.WithTimeout(context.Background(), ltpWriteTimeout)
			if err := d.cache.StoreLTP(ctx, upd.token, upd.ltp, upd.ts); err != nil {
				d.log.Debug("LTP cache write failed", map[string]interface{}{
					"error": err.Error(),
					"token": upd.token,
				})
			}
			cancel()
		}
	}
}

func (d *LTPDistributor) Stop() {
	if d.done == nil {
		return
	}
	close(d.done)
	<-d.workerDone
}
