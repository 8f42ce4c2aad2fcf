package frame

import (
	"encoding/binary"
	"fmt"
	"math"
	"os"
)

// ReadFloat32File reads a raw little-endian float32 buffer from disk, the
// on-disk shape a bare detector frame takes once it has left a facility's
// own acquisition format (spec §6 "Frame source" leaves that parsing to
// the caller; this is the trivial reference case: one flat binary dump per
// frame, already laid out in layout.Detector's row-major order, fs
// varying fastest).
func ReadFloat32File(path string, n int) ([]float32, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("frame: read %s: %w", path, err)
	}
	if len(raw) != n*4 {
		return nil, fmt.Errorf("frame: %s: expected %d bytes, got %d", path, n*4, len(raw))
	}

	out := make([]float32, n)
	for i := range out {
		bits := binary.LittleEndian.Uint32(raw[i*4 : i*4+4])
		out[i] = math.Float32frombits(bits)
	}
	return out, nil
}

// ReadByteMaskFile reads a raw one-byte-per-pixel mask from disk.
func ReadByteMaskFile(path string, n int) ([]byte, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("frame: read %s: %w", path, err)
	}
	if len(raw) != n {
		return nil, fmt.Errorf("frame: %s: expected %d bytes, got %d", path, n, len(raw))
	}
	return raw, nil
}
