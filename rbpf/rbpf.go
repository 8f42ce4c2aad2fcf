// Package rbpf implements the radial-background flood-fill peak finder
// (spec component D): a per-ASIC scan that flood-fills 8-connected
// clusters of above-threshold pixels, re-estimates a local background
// ring around each cluster's centroid, and accepts or rejects the
// cluster based on SNR and local-background dominance.
package rbpf

import (
	"math"

	"github.com/xrd-imaging/peakscan/errs"
	"github.com/xrd-imaging/peakscan/layout"
	"github.com/xrd-imaging/peakscan/peak"
	"github.com/xrd-imaging/peakscan/radial"
)

// Config bundles the per-frame RBPF parameters (spec §4.D).
type Config struct {
	MinSNR        float32
	ADCThreshold  float32
	MinPixCount   int
	MaxPixCount   int
	LocalBgRadius int
	MaxNumPeaks   int
}

// Scratch is per-frame working storage owned by the caller and reused
// across frames: the peak-membership mask that prevents re-scanning an
// already-found cluster, and the flood-fill work list. Neither is
// reallocated once warmed up (spec §9 "work-list storage belongs to the
// per-frame scratch buffer").
type Scratch struct {
	peakMask []byte
	queue    []int
	pixFs    []int
	pixSs    []int
	pixIdx   []int
}

// NewScratch allocates a Scratch sized for the given layout.
func NewScratch(l layout.Detector) *Scratch {
	return &Scratch{
		peakMask: make([]byte, l.PixN),
		queue:    make([]int, 0, 256),
		pixFs:    make([]int, 0, 256),
		pixSs:    make([]int, 0, 256),
		pixIdx:   make([]int, 0, 256),
	}
}

// Reset clears peak-membership state before the next frame.
func (s *Scratch) Reset() {
	for i := range s.peakMask {
		s.peakMask[i] = 0
	}
}

// Run scans every ASIC in layout order and fills out with accepted
// peaks. data and mask are never mutated (spec §3 lifecycle: RBPF must
// not mutate inputs). mask uses the RBPF convention: zero == invalid.
func Run(data, radiusMap []float32, mask []byte, l layout.Detector, stats *radial.Stats, cfg Config, scratch *Scratch, out *peak.List) error {
	if uint32(len(data)) != l.PixN || uint32(len(mask)) != l.PixN {
		return errs.ErrBufferSize
	}
	if radiusMap == nil {
		return errs.ErrMissingRadius
	}
	if uint32(len(radiusMap)) != l.PixN {
		return errs.ErrBufferSize
	}

	for panelIdx, a := range l.Asics() {
		fsLo, fsHi, ssLo, ssHi := l.Bounds(a)

		for ss := ssLo + 1; ss <= ssHi-2; ss++ {
			for fs := fsLo + 1; fs <= fsHi-2; fs++ {
				p := l.Linear(fs, ss)
				b := radial.BinIndex(radiusMap[p])
				if data[p] <= stats.Bins[b].Threshold {
					continue
				}
				if scratch.peakMask[p] != 0 {
					continue
				}
				if mask[p] == 0 {
					continue
				}

				accepted, rec := evaluateCandidate(data, radiusMap, mask, l, stats, cfg, scratch, a, fs, ss, fsLo, fsHi, ssLo, ssHi, panelIdx)
				if accepted {
					out.Add(rec)
					if out.Full() {
						return nil // global cap hit; subsequent ASICs are not processed (spec §9)
					}
				}
			}
		}
	}

	return nil
}

// evaluateCandidate runs the flood-fill -> size-check -> ring-estimate
// -> reintegrate -> accept/reject state machine for one seed pixel
// (spec §4.D "state machine per candidate": INITIAL -> FLOODED ->
// SIZE-CHECKED -> RING-ESTIMATED -> REINTEGRATED -> {ACCEPTED,REJECTED}).
// Rejection at any stage leaves scratch.peakMask entries set but adds
// nothing to the output list.
func evaluateCandidate(
	data, radiusMap []float32, mask []byte, l layout.Detector, stats *radial.Stats, cfg Config,
	scratch *Scratch, a layout.Asic, seedFs, seedSs, fsLo, fsHi, ssLo, ssHi, panelIdx int,
) (bool, peak.Record) {
	scratch.queue = scratch.queue[:0]
	scratch.pixFs = scratch.pixFs[:0]
	scratch.pixSs = scratch.pixSs[:0]
	scratch.pixIdx = scratch.pixIdx[:0]

	// FLOODED: 8-connected region growth bounded to this ASIC.
	seedIdx := l.Linear(seedFs, seedSs)
	scratch.peakMask[seedIdx] = 1
	scratch.queue = append(scratch.queue, seedIdx)
	scratch.pixFs = append(scratch.pixFs, seedFs)
	scratch.pixSs = append(scratch.pixSs, seedSs)
	scratch.pixIdx = append(scratch.pixIdx, seedIdx)

	var sumI, sumIFs, sumISs float64

	head := 0
	for head < len(scratch.queue) {
		qIdx := scratch.queue[head]
		head++
		qFs, qSs := l.Coords(qIdx)

		b := radial.BinIndex(radiusMap[qIdx])
		sumI += float64(data[qIdx]) - float64(stats.Bins[b].Offset)
		sumIFs += (float64(data[qIdx]) - float64(stats.Bins[b].Offset)) * float64(qFs)
		sumISs += (float64(data[qIdx]) - float64(stats.Bins[b].Offset)) * float64(qSs)

		for dss := -1; dss <= 1; dss++ {
			for dfs := -1; dfs <= 1; dfs++ {
				if dfs == 0 && dss == 0 {
					continue
				}
				nfs, nss := qFs+dfs, qSs+dss
				if nfs < fsLo || nfs >= fsHi || nss < ssLo || nss >= ssHi {
					continue
				}
				nIdx := l.Linear(nfs, nss)
				if scratch.peakMask[nIdx] != 0 {
					continue
				}
				if mask[nIdx] == 0 {
					continue
				}
				nb := radial.BinIndex(radiusMap[nIdx])
				if data[nIdx] <= stats.Bins[nb].Threshold {
					continue
				}

				scratch.peakMask[nIdx] = 1
				scratch.queue = append(scratch.queue, nIdx)
				scratch.pixFs = append(scratch.pixFs, nfs)
				scratch.pixSs = append(scratch.pixSs, nss)
				scratch.pixIdx = append(scratch.pixIdx, nIdx)
			}
		}
	}

	// SIZE-CHECKED
	n := len(scratch.pixIdx)
	if n < cfg.MinPixCount || n > cfg.MaxPixCount {
		return false, peak.Record{}
	}

	absSumI := math.Abs(sumI)
	if absSumI == 0 {
		absSumI = 1e-12 // numerical guard against a zero/tiny sum_i (spec §7.4)
	}
	comFs := sumIFs / absSumI
	comSs := sumISs / absSumI

	// RING-ESTIMATED: local background over a square/disc ring around
	// the rounded preliminary COM.
	localOffset, localSigma, ringMax := localBackground(data, radiusMap, mask, l, stats, scratch, a, fsLo, fsHi, ssLo, ssHi, comFs, comSs, cfg.LocalBgRadius)

	// REINTEGRATED: re-sum using the local background estimate. The
	// accumulation loop strictly bounds itself to MaxPixCount entries
	// (spec §9 off-by-one resolution: "peak_idx" must stay < max_pix_count).
	limit := n
	if limit > cfg.MaxPixCount {
		limit = cfg.MaxPixCount
	}

	var peakTot, rawTot, sumAdjFs, sumAdjSs, peakMax, rawMax float64
	for i := 0; i < limit; i++ {
		idx := scratch.pixIdx[i]
		fs := scratch.pixFs[i]
		ss := scratch.pixSs[i]
		raw := float64(data[idx])
		adj := raw - localOffset

		peakTot += adj
		rawTot += raw
		sumAdjFs += adj * float64(fs)
		sumAdjSs += adj * float64(ss)

		if i == 0 || adj > peakMax {
			peakMax = adj
		}
		if i == 0 || raw > rawMax {
			rawMax = raw
		}
	}

	absPeakTot := math.Abs(peakTot)
	if absPeakTot == 0 {
		absPeakTot = 1e-12
	}
	finalComFs := sumAdjFs / absPeakTot
	finalComSs := sumAdjSs / absPeakTot

	snr := peakTot / localSigma

	// ACCEPTED / REJECTED
	if snr < float64(cfg.MinSNR) {
		return false, peak.Record{}
	}
	if peakMax < ringMax-localOffset {
		return false, peak.Record{}
	}
	if !l.InsideAsic(a, finalComFs, finalComSs) {
		return false, peak.Record{}
	}

	linearIdx := l.Linear(int(math.Round(finalComFs)), int(math.Round(finalComSs)))

	rec := peak.Record{
		ComFs:        finalComFs,
		ComSs:        finalComSs,
		LinearIndex:  linearIdx,
		Intensity:    peakTot,
		MaxIntensity: rawMax,
		Sigma:        localSigma,
		SNR:          snr,
		PixelCount:   limit,
		Panel:        panelIdx,
	}
	return true, rec
}

// localBackground implements spec §4.D step 5: a square region of
// half-width 2*localBgRadius centered on the rounded COM, restricted to
// pixels within Euclidean distance 2*localBgRadius of that center and
// within the current ASIC, accumulating background (sub-threshold,
// unclaimed, valid) pixels.
func localBackground(
	data, radiusMap []float32, mask []byte, l layout.Detector, stats *radial.Stats,
	scratch *Scratch, a layout.Asic, fsLo, fsHi, ssLo, ssHi int, comFs, comSs float64, localBgRadius int,
) (offset, sigma, ringMax float64) {
	cx := int(math.Round(comFs))
	cy := int(math.Round(comSs))
	r := 2 * localBgRadius

	var sum, sqsum float64
	var count int
	first := true

	for dss := -r; dss <= r; dss++ {
		for dfs := -r; dfs <= r; dfs++ {
			if dfs*dfs+dss*dss > r*r {
				continue
			}
			fs, ss := cx+dfs, cy+dss
			if fs < fsLo || fs >= fsHi || ss < ssLo || ss >= ssHi {
				continue
			}
			idx := l.Linear(fs, ss)
			if scratch.peakMask[idx] != 0 {
				continue
			}
			if mask[idx] == 0 {
				continue
			}
			b := radial.BinIndex(radiusMap[idx])
			v := float64(data[idx])
			if v >= float64(stats.Bins[b].Threshold) {
				continue
			}

			sum += v
			sqsum += v * v
			count++
			if first || v > ringMax {
				ringMax = v
				first = false
			}
		}
	}

	if count == 0 {
		comIdx := l.Linear(clamp(cx, fsLo, fsHi-1), clamp(cy, ssLo, ssHi-1))
		b := radial.BinIndex(radiusMap[comIdx])
		return float64(stats.Bins[b].Offset), 0.01, 0
	}

	mean := sum / float64(count)
	variance := sqsum/float64(count) - mean*mean
	if variance < 0 {
		variance = 0
	}
	return mean, math.Sqrt(variance), ringMax
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
