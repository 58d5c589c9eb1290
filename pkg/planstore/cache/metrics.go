package cache

import "time"

// Metrics receives cache instrumentation events. The Prometheus
// implementation lives in pkg/metrics; passing nil to New selects a
// built-in no-op with zero overhead.
type Metrics interface {
	// RecordHit is called when a request is served from a valid record.
	RecordHit()

	// RecordMiss is called when a record is absent, expired or
	// invalidated by a modification-time change.
	RecordMiss()

	// RecordLoad is called after a filesystem load attempt.
	RecordLoad(duration time.Duration, err error)

	// SetEntries reports the current record count.
	SetEntries(count int)
}

type noopMetrics struct{}

func (noopMetrics) RecordHit()                                   {}
func (noopMetrics) RecordMiss()                                  {}
func (noopMetrics) RecordLoad(duration time.Duration, err error) {}
func (noopMetrics) SetEntries(count int)                         {}
