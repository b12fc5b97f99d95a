package cache

import (
	"sort"
	"sync"
	"time"

	"tickstore/questdb"
)

const defaultMaxBars = 3600 // one hour of 1-second bars per instrument

// OHLCBar is a single aggregated bar. Volume and OI carry the last observed
// value since the feed reports them cumulatively.
type OHLCBar struct {
	Timestamp time.Time `json:"timestamp"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    int64     `json:"volume"`
	OI        int64     `json:"oi"`
}

// OHLCCache keeps a bounded window of 1-second bars per (token, contract
// type) for fast chart reads without touching the store.
type OHLCCache struct {
	mu      sync.RWMutex
	bars    map[string]map[int64]*OHLCBar
	maxBars int
}

func NewOHLCCache(maxBars int) *OHLCCache {
	if maxBars <= 0 {
		maxBars = defaultMaxBars
	}
	return &OHLCCache{
		bars:    make(map[string]map[int64]*OHLCBar),
		maxBars: maxBars,
	}
}

func barKey(token, contractType string) string {
	return token + "_" + contractType
}

// Update folds one tick into its 1-second bar.
func (c *OHLCCache) Update(tick questdb.TickEvent) {
	key := barKey(tick.Token, tick.ContractType)
	sec := tick.Timestamp.Unix()

	c.mu.Lock()
	defer c.mu.Unlock()

	series, ok := c.bars[key]
	if !ok {
		series = make(map[int64]*OHLCBar)
		c.bars[key] = series
	}

	bar, ok := series[sec]
	if !ok {
		series[sec] = &OHLCBar{
			Timestamp: time.Unix(sec, 0),
			Open:      tick.LTP,
			High:      tick.LTP,
			Low:       tick.LTP,
			Close:     tick.LTP,
			Volume:    tick.Volume,
			OI:        tick.OI,
		}
		c.evictOldLocked(series)
		return
	}

	if tick.LTP > bar.High {
		bar.High = tick.LTP
	}
	if tick.LTP < bar.Low {
		bar.Low = tick.LTP
	}
	bar.Close = tick.LTP
	bar.Volume = tick.Volume
	bar.OI = tick.OI
}

func (c *OHLCCache) evictOldLocked(series map[int64]*OHLCBar) {
	if len(series) <= c.maxBars {
		return
	}

	secs := make([]int64, 0, len(series))
	for s := range series {
		secs = append(secs, s)
	}
	sort.Slice(secs, func(i, j int) bool { return secs[i] < secs[j] })

	for _, s := range secs[:len(secs)-c.maxBars] {
		delete(series, s)
	}
}

// GetBars returns up to limit bars resampled to the given interval, oldest
// first. Interval must be a whole number of seconds; anything below one
// second falls back to the native 1s bars.
func (c *OHLCCache) GetBars(token, contractType string, interval time.Duration, limit int) []OHLCBar {
	if interval < time.Second {
		interval = time.Second
	}
	step := int64(interval / time.Second)

	c.mu.RLock()
	series, ok := c.bars[barKey(token, contractType)]
	if !ok || len(series) == 0 {
		c.mu.RUnlock()
		return nil
	}

	secs := make([]int64, 0, len(series))
	for s := range series {
		secs = append(secs, s)
	}
	sort.Slice(secs, func(i, j int) bool { return secs[i] < secs[j] })

	var out []OHLCBar
	var current *OHLCBar
	var currentBucket int64 = -1
	for _, s := range secs {
		bar := series[s]
		bucket := s - s%step
		if bucket != currentBucket {
			if current != nil {
				out = append(out, *current)
			}
			cp := *bar
			cp.Timestamp = time.Unix(bucket, 0)
			current = &cp
			currentBucket = bucket
			continue
		}
		if bar.High > current.High {
			current.High = bar.High
		}
		if bar.Low < current.Low {
			current.Low = bar.Low
		}
		current.Close = bar.Close
		current.Volume = bar.Volume
		current.OI = bar.OI
	}
	if current != nil {
		out = append(out, *current)
	}
	c.mu.RUnlock()

	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out
}

// Size reports the total number of cached bars across all instruments.
func (c *OHLCCache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	total := 0
	for _, series := range c.bars {
		total += len(series)
	}
	return total
}
