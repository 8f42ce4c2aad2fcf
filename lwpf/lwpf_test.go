package lwpf

import (
	"math"
	"testing"

	"github.com/xrd-imaging/peakscan/layout"
	"github.com/xrd-imaging/peakscan/mask"
	"github.com/xrd-imaging/peakscan/peak"
)

func TestNewRejectsSmallWindowRadius(t *testing.T) {
	if _, err := New(Config{WindowRadius: 1}); err == nil {
		t.Fatalf("expected an error for window_radius < 2")
	}
	if _, err := New(Config{WindowRadius: 0}); err == nil {
		t.Fatalf("expected an error for window_radius 0")
	}
	if _, err := New(Config{WindowRadius: 2}); err != nil {
		t.Fatalf("New(WindowRadius=2): unexpected error: %v", err)
	}
}

func baseLWPFConfig() Config {
	return Config{
		WindowRadius:          3,
		SigmaBiggest:          2,
		SigmaPeakPixel:        1,
		SigmaWholePeak:        3,
		MinSigma:              0.1,
		MinOversizeNeighbours: 0,
		MaxNumPeaks:           10,
	}
}

// gaussianFrame stamps a 2D Gaussian bump of the given amplitude/sigma
// centered at (cx, cy) onto a constant background, across the whole
// detector plane.
func gaussianFrame(l layout.Detector, background, amplitude float32, cx, cy, sigma float64) []float32 {
	n := int(l.PixN)
	data := make([]float32, n)
	for p := 0; p < n; p++ {
		fs, ss := l.Coords(p)
		dx := float64(fs) - cx
		dy := float64(ss) - cy
		g := amplitude * float32(math.Exp(-(dx*dx+dy*dy)/(2*sigma*sigma)))
		data[p] = background + g
	}
	return data
}

// TestRunFindsSingleGaussianPeak is the scenario-1 shape: a single
// well-separated Gaussian bump well clear of every ASIC border must be
// found as exactly one accepted peak near its true center.
func TestRunFindsSingleGaussianPeak(t *testing.T) {
	l, err := layout.New(20, 20, 1, 1)
	if err != nil {
		t.Fatalf("layout.New: %v", err)
	}
	data := gaussianFrame(l, 10, 200, 10, 10, 1.5)

	cfg, err := New(baseLWPFConfig())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	out, err := peak.NewList(cfg.MaxNumPeaks)
	if err != nil {
		t.Fatalf("peak.NewList: %v", err)
	}

	if err := Run(data, l, cfg, out); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if out.Len() != 1 {
		t.Fatalf("Len() = %d, want 1 (records: %+v)", out.Len(), out.Records())
	}
	r := out.Records()[0]
	if math.Abs(r.ComFs-10) > 1 || math.Abs(r.ComSs-10) > 1 {
		t.Fatalf("centroid = (%v,%v), want near (10,10)", r.ComFs, r.ComSs)
	}
}

// TestRunRejectsPeakTooCloseToBorder is the scenario-2 shape: a Gaussian
// bump placed so its window would read outside the ASIC must never be
// scanned as a candidate at all (the interior margin excludes it), so it
// contributes no accepted peak.
func TestRunRejectsPeakTooCloseToBorder(t *testing.T) {
	l, err := layout.New(20, 20, 1, 1)
	if err != nil {
		t.Fatalf("layout.New: %v", err)
	}
	// center the bump one pixel inside the ASIC edge -- well within the
	// window_radius=3 margin the scan loop excludes, and narrow enough
	// that its tail has decayed to background noise by the time it
	// reaches the first scannable pixel.
	data := gaussianFrame(l, 10, 200, 1, 1, 0.5)

	cfg, err := New(baseLWPFConfig())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	out, err := peak.NewList(cfg.MaxNumPeaks)
	if err != nil {
		t.Fatalf("peak.NewList: %v", err)
	}

	if err := Run(data, l, cfg, out); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out.Len() != 0 {
		t.Fatalf("Len() = %d, want 0 (border-adjacent peak must never be scanned as a candidate)", out.Len())
	}
}

// TestScenario1SingleGaussianPeak seeds the literal spec scenario: a
// 64x64 single-ASIC detector, background 100, a Gaussian bump of
// amplitude 1000 and sigma 1.5 centered at (32, 32), scanned with
// window_radius=4, sigma_biggest=5, sigma_peak_pixel=4,
// sigma_whole_peak=6, min_sigma=1, min_oversize_neighbours=0. Exactly
// one peak must be found, centroid within 0.1 px of (32, 32),
// pixel_count in [5, 25], max_intensity approximately 1100.
func TestScenario1SingleGaussianPeak(t *testing.T) {
	l, err := layout.New(64, 64, 1, 1)
	if err != nil {
		t.Fatalf("layout.New: %v", err)
	}
	data := gaussianFrame(l, 100, 1000, 32, 32, 1.5)

	cfg, err := New(Config{
		WindowRadius:          4,
		SigmaBiggest:          5,
		SigmaPeakPixel:        4,
		SigmaWholePeak:        6,
		MinSigma:              1,
		MinOversizeNeighbours: 0,
		MaxNumPeaks:           10,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	out, err := peak.NewList(cfg.MaxNumPeaks)
	if err != nil {
		t.Fatalf("peak.NewList: %v", err)
	}

	if err := Run(data, l, cfg, out); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if out.Len() != 1 {
		t.Fatalf("Len() = %d, want 1 (records: %+v)", out.Len(), out.Records())
	}
	r := out.Records()[0]
	if math.Abs(r.ComFs-32) > 0.1 || math.Abs(r.ComSs-32) > 0.1 {
		t.Fatalf("centroid = (%v,%v), want within 0.1px of (32,32)", r.ComFs, r.ComSs)
	}
	if r.PixelCount < 5 || r.PixelCount > 25 {
		t.Fatalf("pixel_count = %d, want in [5,25]", r.PixelCount)
	}
	if math.Abs(r.MaxIntensity-1100) > 10 {
		t.Fatalf("max_intensity = %v, want approximately 1100", r.MaxIntensity)
	}
}

// TestScenario2BorderRejection is the literal spec scenario: the same
// detector and bump as scenario 1, but moved to (3, 32), inside the
// window_radius=4 margin. No peak may be reported.
func TestScenario2BorderRejection(t *testing.T) {
	l, err := layout.New(64, 64, 1, 1)
	if err != nil {
		t.Fatalf("layout.New: %v", err)
	}
	data := gaussianFrame(l, 100, 1000, 3, 32, 1.5)

	cfg, err := New(Config{
		WindowRadius:          4,
		SigmaBiggest:          5,
		SigmaPeakPixel:        4,
		SigmaWholePeak:        6,
		MinSigma:              1,
		MinOversizeNeighbours: 0,
		MaxNumPeaks:           10,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	out, err := peak.NewList(cfg.MaxNumPeaks)
	if err != nil {
		t.Fatalf("peak.NewList: %v", err)
	}

	if err := Run(data, l, cfg, out); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out.Len() != 0 {
		t.Fatalf("Len() = %d, want 0 (peak lies inside the window_radius margin)", out.Len())
	}
}

func TestRunSkipsInvalidSentinelPixels(t *testing.T) {
	l, err := layout.New(20, 20, 1, 1)
	if err != nil {
		t.Fatalf("layout.New: %v", err)
	}
	data := gaussianFrame(l, 10, 200, 10, 10, 1.5)
	data[l.Linear(10, 10)] = mask.Invalid

	cfg, err := New(baseLWPFConfig())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	out, err := peak.NewList(cfg.MaxNumPeaks)
	if err != nil {
		t.Fatalf("peak.NewList: %v", err)
	}

	if err := Run(data, l, cfg, out); err != nil {
		t.Fatalf("Run: %v", err)
	}
	// with the true maximum stamped invalid, the candidate test must
	// never accept that pixel as a local maximum seed.
	for _, r := range out.Records() {
		if r.ComFs == 10 && r.ComSs == 10 {
			t.Fatalf("the invalid-stamped pixel must not seed a peak")
		}
	}
}

func TestRunRejectsFlatBackground(t *testing.T) {
	l, err := layout.New(20, 20, 1, 1)
	if err != nil {
		t.Fatalf("layout.New: %v", err)
	}
	n := int(l.PixN)
	data := make([]float32, n)
	for p := range data {
		data[p] = 10
	}

	cfg, err := New(baseLWPFConfig())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	out, err := peak.NewList(cfg.MaxNumPeaks)
	if err != nil {
		t.Fatalf("peak.NewList: %v", err)
	}

	if err := Run(data, l, cfg, out); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out.Len() != 0 {
		t.Fatalf("Len() = %d, want 0 (a flat frame has no local maxima)", out.Len())
	}
}

func TestRunWithDoubleBgWindowStaysInBounds(t *testing.T) {
	l, err := layout.New(20, 20, 1, 1)
	if err != nil {
		t.Fatalf("layout.New: %v", err)
	}
	data := gaussianFrame(l, 10, 200, 10, 10, 1.5)

	cfg := baseLWPFConfig()
	cfg.DoubleBgWindow = true
	built, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	out, err := peak.NewList(built.MaxNumPeaks)
	if err != nil {
		t.Fatalf("peak.NewList: %v", err)
	}

	if err := Run(data, l, built, out); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", out.Len())
	}
}
