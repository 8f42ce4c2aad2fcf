// Package mask implements the dense/sparse pixel-validity plane shared by
// both detection algorithms (spec component A). It owns the single
// definition of the in-band invalid-pixel sentinel so LWPF's sentinel
// stamping and RBPF's direct mask reads never drift apart, and it
// normalizes the two source algorithms' opposite mask-polarity
// conventions at this one boundary (spec §3, §9).
package mask

import (
	"math"

	"github.com/xrd-imaging/peakscan/errs"
	"github.com/xrd-imaging/peakscan/layout"
)

// Invalid is the in-band sentinel LWPF stamps into the data plane for
// excluded pixels: the smallest finite float32. It is deliberately not
// -Inf or NaN, since MaskFromData relies on an ordered isfinite test, and
// plain "<" comparisons against Invalid must behave like any other
// comparison (spec §6).
const Invalid float32 = -math.MaxFloat32

// FuseMask stamps Invalid into data wherever mask[p] != 0, the LWPF
// convention (nonzero == invalid). Use FuseInvertedMask for a mask in
// the opposite, RBPF convention (zero == invalid). mask is a
// byte-per-pixel plane the same length as data. Complexity O(pix_n),
// one pass, no allocation.
func FuseMask(data []float32, mask []byte, l layout.Detector) error {
	if err := checkLen(len(data), l); err != nil {
		return err
	}
	if len(mask) != len(data) {
		return errs.ErrBufferSize
	}
	for p, m := range mask {
		if m != 0 {
			data[p] = Invalid
		}
	}
	return nil
}

// FuseInvertedMask is FuseMask with the predicate inverted: it stamps
// Invalid wherever mask[p] == 0. This is the adapter RBPF's "zero means
// invalid" convention needs to reuse the same fuse machinery as LWPF's
// "nonzero means invalid" convention (spec §3).
func FuseInvertedMask(data []float32, mask []byte, l layout.Detector) error {
	if err := checkLen(len(data), l); err != nil {
		return err
	}
	if len(mask) != len(data) {
		return errs.ErrBufferSize
	}
	for p, m := range mask {
		if m == 0 {
			data[p] = Invalid
		}
	}
	return nil
}

// FuseSparse stamps Invalid at each linear index in sparse. sparse need
// not be sorted for correctness, though BuildSparse always returns it
// ascending.
func FuseSparse(data []float32, sparse []uint32) error {
	for _, idx := range sparse {
		if int(idx) >= len(data) {
			return errs.ErrBufferSize
		}
		data[idx] = Invalid
	}
	return nil
}

// FuseMaskIntoCopy is FuseMask but writes into dataCopy, leaving data
// untouched. This is the shape RBPF needs since it must never mutate
// its inputs (spec §3 lifecycle).
func FuseMaskIntoCopy(data, dataCopy []float32, mask []byte, l layout.Detector) error {
	if err := checkLen(len(data), l); err != nil {
		return err
	}
	if len(dataCopy) != len(data) || len(mask) != len(data) {
		return errs.ErrBufferSize
	}
	copy(dataCopy, data)
	return FuseMask(dataCopy, mask, l)
}

// MaskFromData reconstructs a mask from data: outMask[p] = 0 iff data[p]
// is finite and not the Invalid sentinel, else 1. This is the round-trip inverse of
// FuseMask/FuseSparse (spec §8 round-trip laws).
func MaskFromData(data []float32, outMask []byte, l layout.Detector) error {
	if err := checkLen(len(data), l); err != nil {
		return err
	}
	if len(outMask) != len(data) {
		return errs.ErrBufferSize
	}
	for p, v := range data {
		if isValid(v) {
			outMask[p] = 0
		} else {
			outMask[p] = 1
		}
	}
	return nil
}

// BuildSparse collects the ascending linear indices where mask != 0.
func BuildSparse(mask []byte, l layout.Detector) ([]uint32, error) {
	if err := checkLen(len(mask), l); err != nil {
		return nil, err
	}
	out := make([]uint32, 0)
	for p, m := range mask {
		if m != 0 {
			out = append(out, uint32(p))
		}
	}
	return out, nil
}

func checkLen(n int, l layout.Detector) error {
	if uint32(n) != l.PixN {
		return errs.ErrBufferSize
	}
	return nil
}

// isValid reports whether v is an ordinary, usable pixel value: not the
// Invalid sentinel, and not a genuinely non-finite IEEE value (NaN/Inf)
// that raw detector data sometimes carries for dead pixels before a
// mask has ever been fused in. Both cases round-trip through
// MaskFromData the same way (spec §8 round-trip law).
func isValid(v float32) bool {
	if v == Invalid {
		return false
	}
	f := float64(v)
	return !math.IsInf(f, 0) && !math.IsNaN(f)
}
