package questdb

// Stats is a point-in-time snapshot of the cumulative throughput counters.
// Counters only ever grow; the periodic rate log resets its timer, never
// the counters themselves.
type Stats struct {
	TicksWritten   uint64 `json:"ticks_written"`
	BatchesWritten uint64 `json:"batches_written"`
	TicksDropped   uint64 `json:"ticks_dropped"`
}

func (m *Manager) Stats() Stats {
	return Stats{
		TicksWritten:   m.ticksWritten.Load(),
		BatchesWritten: m.batchesWritten.Load(),
		TicksDropped:   m.ticksDropped.Load(),
	}
}
