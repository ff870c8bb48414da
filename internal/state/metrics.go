package state

import (
	"time"

	"ledgerseed/internal/client"
)

// Metrics is a read-only snapshot of generation progress. Counters are
// accumulated incrementally so a report can be produced even after a
// partial failure.
type Metrics struct {
	Created   map[client.EntityKind]int64 `json:"created"`
	Errors    map[client.EntityKind]int64 `json:"errors"`
	Retries   int64                       `json:"retries"`
	StartTime time.Time                   `json:"start_time"`
	EndTime   time.Time                   `json:"end_time,omitempty"`
}

// Duration returns wall time from start to end, or to now for a run still
// in flight.
func (m Metrics) Duration() time.Duration {
	if m.StartTime.IsZero() {
		return 0
	}
	end := m.EndTime
	if end.IsZero() {
		end = time.Now()
	}
	return end.Sub(m.StartTime)
}

// TotalCreated sums created entities across all kinds.
func (m Metrics) TotalCreated() int64 {
	var total int64
	for _, n := range m.Created {
		total += n
	}
	return total
}

// TotalErrors sums errors across all kinds.
func (m Metrics) TotalErrors() int64 {
	var total int64
	for _, n := range m.Errors {
		total += n
	}
	return total
}

// SuccessRate returns created/(created+errors) in [0,1]. A run with no
// attempts reports 1.
func (m Metrics) SuccessRate() float64 {
	created := m.TotalCreated()
	attempts := created + m.TotalErrors()
	if attempts == 0 {
		return 1
	}
	return float64(created) / float64(attempts)
}

// Throughput returns created entities per second.
func (m Metrics) Throughput() float64 {
	d := m.Duration()
	if d <= 0 {
		return 0
	}
	return float64(m.TotalCreated()) / d.Seconds()
}
