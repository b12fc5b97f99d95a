package questdb

import "time"

// Contract types carried as the contract_type symbol column.
const (
	ContractFuture = "FUT"
	ContractCall   = "CE"
	ContractPut    = "PE"
)

// TickEvent is a single market quote for one instrument. It is normalized
// once when accepted by AddTick and never mutated afterwards.
type TickEvent struct {
	Timestamp    time.Time
	Token        string
	ContractType string
	LTP          float64
	Open         float64
	High         float64
	Low          float64
	Volume       int64
	OI           int64
	ChangePct    float64
}

// normalize resolves defaults at the producer boundary so that the
// serialization path never has to guess.
func (t TickEvent) normalize() TickEvent {
	if t.Timestamp.IsZero() {
		t.Timestamp = time.Now()
	}
	if t.Volume < 0 {
		t.Volume = 0
	}
	if t.OI < 0 {
		t.OI = 0
	}
	return t
}
