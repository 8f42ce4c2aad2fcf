// Package peak implements the fixed-capacity peak list both detection
// algorithms fill in scan order (spec §3 "PeakList"). Capacity is fixed
// at construction; once Len reaches the configured cap, further
// appends are silently dropped (spec §7.2 "capacity saturation").
package peak

import "github.com/xrd-imaging/peakscan/errs"

// Record is a single accepted peak. Panel is only meaningful for RBPF;
// LWPF leaves it at zero (LWPF's per-ASIC loop does not track a global
// panel index, and spec §4.E never mentions one).
type Record struct {
	ComFs       float64 // fractional centroid, fast-scan
	ComSs       float64 // fractional centroid, slow-scan
	LinearIndex int     // RBPF: linear index nearest the centroid; LWPF: the seed pixel's index
	Intensity   float64 // background-subtracted integrated intensity
	MaxIntensity float64 // maximum pixel intensity contributing to the peak
	Sigma       float64 // background sigma used for this peak
	SNR         float64 // Intensity / Sigma
	PixelCount  int     // number of pixels accumulated into this peak
	Panel       int     // RBPF only: ASIC/panel index
}

// List is a caller-owned, fixed-capacity accumulator. Arrays-of-structs
// layout is an implementation choice unspecified by the contract (spec
// §3); this implementation keeps it simple as a single slice of Record.
type List struct {
	cap     int
	records []Record
}

// NewList constructs an empty list with the given capacity (Kmax).
func NewList(capacity int) (*List, error) {
	if capacity <= 0 {
		return nil, errs.ErrPeakListCap
	}
	return &List{
		cap:     capacity,
		records: make([]Record, 0, capacity),
	}, nil
}

// Len returns the current number of accepted peaks (K).
func (l *List) Len() int { return len(l.records) }

// Cap returns the fixed capacity (Kmax).
func (l *List) Cap() int { return l.cap }

// Full reports whether the list has reached capacity.
func (l *List) Full() bool { return len(l.records) >= l.cap }

// Add appends r if there is remaining capacity and reports whether it
// was accepted. Scan-order callers must stop scanning once Full
// reports true and the global cap is meant to end the whole search
// (spec §4.D step 9, §9 RBPF termination note), but Add itself never
// panics on overflow; it just declines silently, matching "peaks
// after capacity are dropped in scan order" (spec §7.2).
func (l *List) Add(r Record) bool {
	if l.Full() {
		return false
	}
	l.records = append(l.records, r)
	return true
}

// Reset clears the list for reuse on the next frame, keeping the
// backing array (no per-frame allocation, spec §5).
func (l *List) Reset() {
	l.records = l.records[:0]
}

// Records returns a read-only view over the accepted peaks, in
// scan-discovery order (spec §9 "Model PeakList as ... the
// collaborators may expose a read-only view").
func (l *List) Records() []Record {
	return l.records
}
