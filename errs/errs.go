// Package errs collects the sentinel errors shared across the
// peak-detection core and its ambient collaborators. Construction-time
// failures are reported through these values (wrapped with context via
// fmt.Errorf("%w: ...")) rather than ad-hoc strings, so callers can use
// errors.Is against a stable identity.
package errs

import "errors"

// Configuration errors (spec §7.1). Fatal to the affected pipeline;
// always reported at construction time, never mid-frame.
var (
	ErrWindowRadius   = errors.New("lwpf: window_radius must be >= 2")
	ErrLayout         = errors.New("layout: asic/panel dimensions are inconsistent")
	ErrBinCount       = errors.New("radial: bin count must be positive")
	ErrBufferSize     = errors.New("mask: buffer length does not match layout.PixN")
	ErrPeakListCap    = errors.New("peak: capacity must be positive")
	ErrMissingRadius  = errors.New("rbpf: radius map is required")
	ErrConfigRequired = errors.New("config: required field is missing or invalid")
)

// Store/TileDB errors (§ domain stack). Mirrors the teacher's flat
// sentinel-per-failure-mode style.
var (
	ErrCreatePeakArray  = errors.New("store: error creating peak TileDB array")
	ErrWritePeakArray   = errors.New("store: error writing peak TileDB array")
	ErrCreateSchema     = errors.New("store: error creating TileDB schema")
	ErrCreateDim        = errors.New("store: error creating TileDB dimension")
	ErrCreateAttribute  = errors.New("store: error creating TileDB attribute")
	ErrCreateFilterList = errors.New("store: error creating TileDB filter list")
	ErrCreateFilter     = errors.New("store: error creating TileDB filter")
	ErrAddFilter        = errors.New("store: error adding filter to filter list")
	ErrAddAttribute     = errors.New("store: error adding attribute to schema")
	ErrUnsupportedDtype = errors.New("store: unsupported attribute dtype for tag")
	ErrSetBuffer        = errors.New("store: error setting TileDB query data buffer")
)

// Frame-pool errors.
var (
	ErrPoolClosed = errors.New("frame: pool already stopped")
)
