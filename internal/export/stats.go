package export

import (
	"sync/atomic"
	"time"
)

// Stats accumulates per-strategy counters. All fields are updated atomically
// so concurrent completions never lose increments.
type Stats struct {
	attempts   atomic.Int64
	successes  atomic.Int64
	failures   atomic.Int64
	totalNanos atomic.Int64
	totalBytes atomic.Int64
}

// StatsSnapshot is a point-in-time copy of a Stats counter set.
type StatsSnapshot struct {
	Attempts        int64
	Successes       int64
	Failures        int64
	TotalExportTime time.Duration
	TotalBytes      int64
}

func (s *Stats) record(result Result, elapsed time.Duration) {
	s.attempts.Add(1)
	if result.Success {
		s.successes.Add(1)
		s.totalNanos.Add(int64(elapsed))
		s.totalBytes.Add(result.SizeBytes)
		return
	}
	s.failures.Add(1)
}

// Snapshot returns a consistent-enough copy for reporting. Individual fields
// are read atomically; the set as a whole is not a transaction.
func (s *Stats) Snapshot() StatsSnapshot {
	return StatsSnapshot{
		Attempts:        s.attempts.Load(),
		Successes:       s.successes.Load(),
		Failures:        s.failures.Load(),
		TotalExportTime: time.Duration(s.totalNanos.Load()),
		TotalBytes:      s.totalBytes.Load(),
	}
}
