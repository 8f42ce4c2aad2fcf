// Package layout describes the fixed geometry of a detector frame: ASIC
// tile size, the ASIC grid, and the resulting pixel plane. It carries no
// per-frame state, only the immutable descriptor and the bounds/iteration
// helpers the rest of the core needs.
package layout

import (
	"fmt"

	"github.com/xrd-imaging/peakscan/errs"
)

// Detector describes a single detector frame's geometry. It is built
// once per session (or per geometry change) and reused across frames.
type Detector struct {
	AsicFs   uint16 // pixels per ASIC, fast-scan axis
	AsicSs   uint16 // pixels per ASIC, slow-scan axis
	NAsicsFs uint8  // ASIC grid width
	NAsicsSs uint8  // ASIC grid height
	PixFs    uint16 // pix_fs = asic_fs * nasics_fs
	PixSs    uint16 // pix_ss = asic_ss * nasics_ss
	PixN     uint32 // pix_n = pix_fs * pix_ss
}

// New validates the ASIC dimensions and derives the pixel-plane size.
func New(asicFs, asicSs uint16, nasicsFs, nasicsSs uint8) (Detector, error) {
	if asicFs == 0 || asicSs == 0 || nasicsFs == 0 || nasicsSs == 0 {
		return Detector{}, fmt.Errorf("%w: asic_fs=%d asic_ss=%d nasics_fs=%d nasics_ss=%d",
			errs.ErrLayout, asicFs, asicSs, nasicsFs, nasicsSs)
	}

	pixFs := asicFs * uint16(nasicsFs)
	pixSs := asicSs * uint16(nasicsSs)

	return Detector{
		AsicFs:   asicFs,
		AsicSs:   asicSs,
		NAsicsFs: nasicsFs,
		NAsicsSs: nasicsSs,
		PixFs:    pixFs,
		PixSs:    pixSs,
		PixN:     uint32(pixFs) * uint32(pixSs),
	}, nil
}

// Linear returns the row-major linear index of pixel (fs, ss).
func (d Detector) Linear(fs, ss int) int {
	return ss*int(d.PixFs) + fs
}

// Coords is the inverse of Linear.
func (d Detector) Coords(p int) (fs, ss int) {
	fs = p % int(d.PixFs)
	ss = p / int(d.PixFs)
	return fs, ss
}

// Asic identifies an ASIC tile by its grid coordinates.
type Asic struct {
	Ax, Ay int // grid position
}

// Bounds returns the half-open pixel range [fsLo, fsHi) x [ssLo, ssHi)
// owned by the ASIC at grid position (ax, ay).
func (d Detector) Bounds(a Asic) (fsLo, fsHi, ssLo, ssHi int) {
	fsLo = a.Ax * int(d.AsicFs)
	fsHi = fsLo + int(d.AsicFs)
	ssLo = a.Ay * int(d.AsicSs)
	ssHi = ssLo + int(d.AsicSs)
	return
}

// Asics returns every ASIC in the grid, row-major (ay outer, ax inner),
// the scan order RBPF and LWPF both rely on for deterministic,
// reproducible peak ordering (spec §8, scenario 6).
func (d Detector) Asics() []Asic {
	out := make([]Asic, 0, int(d.NAsicsFs)*int(d.NAsicsSs))
	for ay := 0; ay < int(d.NAsicsSs); ay++ {
		for ax := 0; ax < int(d.NAsicsFs); ax++ {
			out = append(out, Asic{Ax: ax, Ay: ay})
		}
	}
	return out
}

// InsideAsic reports whether the fractional coordinate (fs, ss) lies
// strictly inside the ASIC's pixel bounds. Used by RBPF's acceptance
// test (spec §4.D step 8) and by the "centroid lies strictly inside an
// ASIC" invariant (spec §8).
func (d Detector) InsideAsic(a Asic, fs, ss float64) bool {
	fsLo, fsHi, ssLo, ssHi := d.Bounds(a)
	return fs > float64(fsLo) && fs < float64(fsHi-1) && ss > float64(ssLo) && ss < float64(ssHi-1)
}
