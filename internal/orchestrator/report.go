package orchestrator

import (
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"ledgerseed/internal/client"
	"ledgerseed/internal/state"
)

// Summary is the human-facing report of one generation run.
type Summary struct {
	Duration     time.Duration
	Created      map[client.EntityKind]int64
	Errors       map[client.EntityKind]int64
	TotalCreated int64
	TotalErrors  int64
	Retries      int64
	SuccessRate  float64
	Throughput   float64
}

// NewSummary derives a report from final metrics.
func NewSummary(m state.Metrics) Summary {
	return Summary{
		Duration:     m.Duration().Round(time.Millisecond),
		Created:      m.Created,
		Errors:       m.Errors,
		TotalCreated: m.TotalCreated(),
		TotalErrors:  m.TotalErrors(),
		Retries:      m.Retries,
		SuccessRate:  m.SuccessRate(),
		Throughput:   m.Throughput(),
	}
}

// String renders the per-kind table printed at the end of a run.
func (s Summary) String() string {
	var b strings.Builder
	b.WriteString("Generation summary\n")
	fmt.Fprintf(&b, "  duration:     %s\n", s.Duration)
	fmt.Fprintf(&b, "  created:      %d\n", s.TotalCreated)
	fmt.Fprintf(&b, "  errors:       %d\n", s.TotalErrors)
	fmt.Fprintf(&b, "  retries:      %d\n", s.Retries)
	fmt.Fprintf(&b, "  success rate: %.1f%%\n", s.SuccessRate*100)
	fmt.Fprintf(&b, "  throughput:   %.1f entities/s\n", s.Throughput)
	for _, kind := range client.Kinds() {
		created, errs := s.Created[kind], s.Errors[kind]
		if created == 0 && errs == 0 {
			continue
		}
		fmt.Fprintf(&b, "  %-13s %d created, %d errors\n", string(kind)+":", created, errs)
	}
	return b.String()
}

// logReport emits the structured end-of-run report.
func (o *Orchestrator) logReport(m state.Metrics) {
	fields := []zap.Field{
		zap.Duration("duration", m.Duration()),
		zap.Int64("total_created", m.TotalCreated()),
		zap.Int64("total_errors", m.TotalErrors()),
		zap.Int64("retries", m.Retries),
		zap.Float64("success_rate", m.SuccessRate()),
		zap.Float64("throughput_per_sec", m.Throughput()),
	}
	for _, kind := range client.Kinds() {
		if n := m.Created[kind]; n > 0 {
			fields = append(fields, zap.Int64("created_"+string(kind), n))
		}
	}
	o.logger.Info("generation complete", fields...)

	for kind, stats := range o.BreakerStats() {
		if stats.Failures > 0 || stats.OpenCount > 0 {
			o.logger.Info("breaker activity",
				zap.String("operation", string(kind)),
				zap.String("state", stats.State.String()),
				zap.Int("failures", stats.Failures),
				zap.Int64("times_opened", stats.OpenCount))
		}
	}
}
