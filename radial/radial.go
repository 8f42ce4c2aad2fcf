// Package radial builds the per-radial-bin background model RBPF
// thresholds against (spec component C). It iteratively refines an
// offset/sigma/threshold per bin, excluding pixels already well above
// threshold from the next pass's background estimate.
package radial

import (
	"math"

	"github.com/samber/lo"
	"github.com/xrd-imaging/peakscan/errs"
	"github.com/xrd-imaging/peakscan/layout"
)

// Bin holds one radial ring's running background statistics.
type Bin struct {
	Offset    float32 // mean of accepted pixel values in this ring
	Sigma     float32 // stddev of accepted pixel values in this ring
	Count     uint32  // number of pixels that contributed this pass
	Threshold float32 // max(ADCThreshold, Offset + MinSNR*Sigma), or +Inf if Count==0
}

// Config bundles the RadialStats construction parameters (spec §4.C).
type Config struct {
	MinSNR       float32
	ADCThreshold float32
	Iterations   int // default 5 when zero
}

// Stats is the calibrated radial background model: one Bin per integer
// radius up to ceil(max(radius))+1, computed over `Iterations` passes.
// Once built it is read-only and may be shared across frame-processing
// goroutines as an immutable snapshot (spec §5).
type Stats struct {
	Bins []Bin
}

// Build runs the five-pass (by default) radial background calibration
// described in spec §4.C. mask uses the RBPF convention (nonzero ==
// valid). radius and data must be the same length as layout.PixN.
func Build(data, radius []float32, mask []byte, l layout.Detector, cfg Config) (*Stats, error) {
	if uint32(len(data)) != l.PixN || uint32(len(radius)) != l.PixN || uint32(len(mask)) != l.PixN {
		return nil, errs.ErrBufferSize
	}

	iterations := cfg.Iterations
	if iterations <= 0 {
		iterations = 5
	}

	nbins := binCount(radius)
	if nbins <= 0 {
		return nil, errs.ErrBinCount
	}

	threshold := make([]float32, nbins)
	for b := range threshold {
		threshold[b] = float32(math.Inf(1))
	}

	offset := make([]float64, nbins) // running sum, then mean
	sqsum := make([]float64, nbins)  // running sum of squares
	sigma := make([]float64, nbins)  // stddev, filled at end of each pass
	count := make([]uint32, nbins)

	for pass := 0; pass < iterations; pass++ {
		for b := range offset {
			offset[b] = 0
			sqsum[b] = 0
			count[b] = 0
		}

		for p := 0; p < len(data); p++ {
			if mask[p] == 0 {
				continue
			}
			b := BinIndex(radius[p])
			v := data[p]
			if v < threshold[b] {
				vf := float64(v)
				offset[b] += vf
				sqsum[b] += vf * vf
				count[b]++
			}
		}

		for b := 0; b < nbins; b++ {
			if count[b] == 0 {
				offset[b] = 0
				sigma[b] = 0
				threshold[b] = float32(math.Inf(1))
				continue
			}
			mean := offset[b] / float64(count[b])
			variance := sqsum[b]/float64(count[b]) - mean*mean
			if variance < 0 {
				// guard tiny negative variance from floating-point
				// cancellation in sqsum/count - mean^2
				variance = 0
			}
			sd := math.Sqrt(variance)
			offset[b] = mean
			sigma[b] = sd
			threshold[b] = float32(math.Max(float64(cfg.ADCThreshold), mean+float64(cfg.MinSNR)*sd))
		}
	}

	bins := make([]Bin, nbins)
	for b := 0; b < nbins; b++ {
		bins[b] = Bin{
			Offset:    float32(offset[b]),
			Sigma:     float32(sigma[b]),
			Count:     count[b],
			Threshold: threshold[b],
		}
	}

	return &Stats{Bins: bins}, nil
}

// BinIndex returns the radial bin index for a given radius value.
func BinIndex(radius float32) int {
	return int(math.Round(float64(radius)))
}

func binCount(radius []float32) int {
	if len(radius) == 0 {
		return 0
	}
	maxR := lo.Max(radius)
	return int(math.Ceil(float64(maxR))) + 1
}
