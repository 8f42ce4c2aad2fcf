package store

import (
	"sync"

	"github.com/samber/lo"
)

// BatchSummary accumulates the peak count written per frame across a
// batch run and reports summary statistics over it. It is safe for
// concurrent use by the same worker pool that calls PeakWriter.WriteFrame
// from multiple goroutines (spec §5 "no global/process state" still
// holds: a caller owns one BatchSummary per batch, not a package global).
type BatchSummary struct {
	mu     sync.Mutex
	counts []int
}

// Observe records the number of peaks written for one frame.
func (s *BatchSummary) Observe(peakCount int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counts = append(s.counts, peakCount)
}

// Report returns the number of frames observed, the mean peak count per
// frame, and the largest peak count seen in any single frame. It returns
// n == 0 if Observe was never called.
func (s *BatchSummary) Report() (n int, mean float64, max int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n = len(s.counts)
	if n == 0 {
		return 0, 0, 0
	}
	mean = lo.Mean(s.counts)
	max = lo.Max(s.counts)
	return n, mean, max
}
