package kitelog

import (
	"time"

	"go.uber.org/zap"
)

type duration struct {
	name     string
	duration time.Duration
}

// Durations tracks named phase durations
type Durations []duration

// Record records a duration
func (t *Durations) Record(name string, d time.Duration) {
	*t = append(*t, duration{name, d})
}

// Since records the time elapsed since start under name.
func (t *Durations) Since(name string, start time.Time) {
	t.Record(name, time.Since(start))
}

// Total sums every recorded duration.
func (t Durations) Total() time.Duration {
	var total time.Duration
	for _, d := range t {
		total += d.duration
	}
	return total
}

// Flush writes the recorded durations as a single log entry and resets the tracker.
func (t *Durations) Flush(l *zap.Logger, msg string, fields ...zap.Field) {
	for _, entry := range *t {
		fields = append(fields, zap.Duration(entry.name, entry.duration))
	}
	OrNop(l).Info(msg, fields...)
	*t = (*t)[:0]
}
