// Package lwpf implements the local-window peak finder (spec component
// E): a per-ASIC local-maximum test over a fixed window, a border-ring
// background estimate, and a radial-growth accumulator that integrates
// the peak outward until a whole ring contributes nothing new.
//
// LWPF expects data to already carry the in-band Invalid sentinel
// (package mask) for excluded pixels; the caller, typically via
// mask.FuseMask, stamps those in before calling Run.
package lwpf

import (
	"math"

	"github.com/xrd-imaging/peakscan/errs"
	"github.com/xrd-imaging/peakscan/layout"
	"github.com/xrd-imaging/peakscan/mask"
	"github.com/xrd-imaging/peakscan/peak"
)

// Config bundles the per-frame LWPF parameters (spec §4.E).
type Config struct {
	WindowRadius          int // must be >= 2
	SigmaBiggest          float64
	SigmaPeakPixel        float64
	SigmaWholePeak        float64
	MinSigma              float64
	MinOversizeNeighbours float64
	MaxNumPeaks           int

	// DoubleBgWindow additionally samples the background ring at
	// WindowRadius+1, trading a larger sample size for reduced border
	// reach. The source gated this at compile time; spec §9 resolves it
	// as a runtime field since the tradeoff is workload-dependent.
	DoubleBgWindow bool
}

// New validates cfg and returns it, or a configuration error (spec §4.E
// "Constructor rejects window_radius < 2 with a configuration error").
func New(cfg Config) (Config, error) {
	if cfg.WindowRadius < 2 {
		return Config{}, errs.ErrWindowRadius
	}
	return cfg, nil
}

// farRingOffsets are the 12 far-ring sample points used by the
// candidate test (spec §4.E step 1): the four cardinal border points at
// distance WindowRadius, plus the eight points one step to either side
// of each cardinal point.
func farRingOffsets(r int) [][2]int {
	return [][2]int{
		{r, 0}, {-r, 0}, {0, r}, {0, -r},
		{r, 1}, {r, -1}, {-r, 1}, {-r, -1},
		{1, r}, {-1, r}, {1, -r}, {-1, -r},
	}
}

// Run scans every ASIC in layout order for local-maximum candidates and
// fills out with accepted peaks. data must already have invalid pixels
// stamped to mask.Invalid.
func Run(data []float32, l layout.Detector, cfg Config, out *peak.List) error {
	if uint32(len(data)) != l.PixN {
		return errs.ErrBufferSize
	}
	wr := cfg.WindowRadius
	far := farRingOffsets(wr)

	// The background-ring sample reaches one pixel further when
	// DoubleBgWindow is set, so the safely-scannable interior shrinks by
	// one pixel of margin in that mode.
	margin := wr
	if cfg.DoubleBgWindow {
		margin = wr + 1
	}

	for _, a := range l.Asics() {
		fsLo, fsHi, ssLo, ssHi := l.Bounds(a)

		for ss := ssLo + margin; ss < ssHi-margin; ss++ {
			for fs := fsLo + margin; fs < fsHi-margin; fs++ {
				p := l.Linear(fs, ss)
				v := data[p]
				if v == mask.Invalid {
					continue
				}

				if !isFarRingCandidate(data, l, fs, ss, v, far, cfg.MinOversizeNeighbours) {
					continue
				}
				if !isImmediateMaximum(data, l, fs, ss, v) {
					continue
				}

				bgMean, bgSigma := backgroundEstimate(data, l, fs, ss, wr, cfg)
				if float64(v) <= bgMean+cfg.SigmaBiggest*bgSigma {
					continue
				}

				total, wx, wy, maxVal, count := growPeak(data, l, fs, ss, v, wr, bgMean, bgSigma, cfg.SigmaPeakPixel)

				if total <= bgMean+cfg.SigmaWholePeak*bgSigma {
					continue
				}

				rec := peak.Record{
					ComFs:        wx / total,
					ComSs:        wy / total,
					LinearIndex:  l.Linear(fs, ss),
					Intensity:    total - float64(count)*bgMean,
					MaxIntensity: maxVal,
					Sigma:        bgSigma,
					SNR:          (total - float64(count)*bgMean) / bgSigma,
					PixelCount:   count,
				}
				out.Add(rec)
				if out.Full() {
					return nil
				}
			}
		}
	}

	return nil
}

// isFarRingCandidate implements spec §4.E step 1's far-ring test: v
// minus MinOversizeNeighbours must strictly exceed all 12 far-ring
// samples.
func isFarRingCandidate(data []float32, l layout.Detector, fs, ss int, v float32, far [][2]int, minOversize float64) bool {
	threshold := float64(v) - minOversize
	for _, off := range far {
		nv := data[l.Linear(fs+off[0], ss+off[1])]
		if !(threshold > float64(nv)) {
			return false
		}
	}
	return true
}

// isImmediateMaximum checks the eight immediate 8-neighbors.
func isImmediateMaximum(data []float32, l layout.Detector, fs, ss int, v float32) bool {
	for dss := -1; dss <= 1; dss++ {
		for dfs := -1; dfs <= 1; dfs++ {
			if dfs == 0 && dss == 0 {
				continue
			}
			nv := data[l.Linear(fs+dfs, ss+dss)]
			if !(v > nv) {
				return false
			}
		}
	}
	return true
}

// backgroundEstimate implements spec §4.E step 2: samples the 5-pixel
// runs along the top/bottom/left/right borders of the window (and,
// when DoubleBgWindow is set, the corresponding strips one pixel
// further out), skipping Invalid samples, and returns mean/sigma (or
// +Inf/+Inf when fewer than 4 valid samples were found).
func backgroundEstimate(data []float32, l layout.Detector, fs, ss, wr int, cfg Config) (mean, sigma float64) {
	var sum, sqsum float64
	var n int

	sampleStrip := func(radius int) {
		for d := -2; d <= 2; d++ {
			top := data[l.Linear(fs+d, ss-radius)]
			bottom := data[l.Linear(fs+d, ss+radius)]
			left := data[l.Linear(fs-radius, ss+d)]
			right := data[l.Linear(fs+radius, ss+d)]
			for _, v := range []float32{top, bottom, left, right} {
				if v == mask.Invalid {
					continue
				}
				fv := float64(v)
				sum += fv
				sqsum += fv * fv
				n++
			}
		}
	}

	sampleStrip(wr)
	if cfg.DoubleBgWindow {
		sampleStrip(wr + 1)
	}

	if n < 4 {
		return math.Inf(1), math.Inf(1)
	}

	mean = sum / float64(n)
	variance := sqsum/float64(n-1) - mean*mean*float64(n)/float64(n-1)
	if variance < 0 {
		variance = 0
	}
	sigma = math.Sqrt(variance)
	if sigma < cfg.MinSigma {
		sigma = cfg.MinSigma
	}
	return mean, sigma
}

// growPeak implements spec §4.E step 4: radial-growth accumulation
// starting from the seed pixel, walking square rings of increasing
// Chebyshev radius up to WindowRadius-1 and stopping the moment an
// entire ring contributes no new pixels.
func growPeak(data []float32, l layout.Detector, fs, ss int, seedVal float32, wr int, bgMean, bgSigma, sigmaPeakPixel float64) (total, wx, wy, maxVal float64, count int) {
	total = float64(seedVal)
	wx = float64(fs) * total
	wy = float64(ss) * total
	maxVal = float64(seedVal)
	count = 1

	pixelThreshold := bgMean + sigmaPeakPixel*bgSigma

	for radius := 1; radius <= wr-1; radius++ {
		added := 0
		for _, p := range ringPixels(fs, ss, radius) {
			v := data[l.Linear(p[0], p[1])]
			if v == mask.Invalid {
				continue
			}
			if float64(v) <= pixelThreshold {
				continue
			}
			fv := float64(v)
			total += fv
			wx += fv * float64(p[0])
			wy += fv * float64(p[1])
			count++
			added++
			if fv > maxVal {
				maxVal = fv
			}
		}
		if added == 0 {
			break
		}
	}

	return total, wx, wy, maxVal, count
}

// ringPixels returns the Chebyshev ring of the given radius around
// (cx, cy): the square perimeter at that distance.
func ringPixels(cx, cy, radius int) [][2]int {
	out := make([][2]int, 0, 8*radius)
	for dfs := -radius; dfs <= radius; dfs++ {
		out = append(out, [2]int{cx + dfs, cy - radius})
		out = append(out, [2]int{cx + dfs, cy + radius})
	}
	for dss := -radius + 1; dss <= radius-1; dss++ {
		out = append(out, [2]int{cx - radius, cy + dss})
		out = append(out, [2]int{cx + radius, cy + dss})
	}
	return out
}
