package store

import (
	"fmt"

	tiledb "github.com/TileDB-Inc/TileDB-Go"

	"github.com/xrd-imaging/peakscan/errs"
	"github.com/xrd-imaging/peakscan/peak"
)

// PeakWriter persists PeakLists into a single TileDB sparse array, one
// frame at a time. It is the reference "downstream consumer" of spec
// §6, a thin wrapper the monitor runtime (out of scope) would replace
// with its own GUI/broadcast sink.
type PeakWriter struct {
	ctx *tiledb.Context
	uri string

	maxFrames        int32
	maxPeaksPerFrame int32
}

// NewPeakWriter creates (or opens, if it already exists) the backing
// TileDB sparse array at uri, sized for up to maxFrames frames of up to
// maxPeaksPerFrame peaks each.
func NewPeakWriter(configURI, uri string, maxFrames, maxPeaksPerFrame int) (*PeakWriter, error) {
	var config *tiledb.Config
	var err error

	if configURI == "" {
		config, err = tiledb.NewConfig()
	} else {
		config, err = tiledb.LoadConfig(configURI)
	}
	if err != nil {
		return nil, fmt.Errorf("store: load tiledb config: %w", err)
	}
	defer config.Free()

	ctx, err := tiledb.NewContext(config)
	if err != nil {
		return nil, fmt.Errorf("store: new tiledb context: %w", err)
	}

	w := &PeakWriter{
		ctx:              ctx,
		uri:              uri,
		maxFrames:        int32(maxFrames),
		maxPeaksPerFrame: int32(maxPeaksPerFrame),
	}

	if err := w.ensureArray(); err != nil {
		return nil, err
	}

	return w, nil
}

// ensureArray creates the backing array on first use. Probing for
// existence is just an open-in-read-mode attempt: TileDB returns an error
// when nothing is there yet, which is the signal to create the schema.
func (w *PeakWriter) ensureArray() error {
	probe, err := tiledb.NewArray(w.ctx, w.uri)
	if err != nil {
		return fmt.Errorf("%w: %v", errs.ErrCreatePeakArray, err)
	}
	openErr := probe.Open(tiledb.TILEDB_READ)
	if openErr == nil {
		probe.Close()
	}
	probe.Free()
	if openErr == nil {
		return nil
	}

	schema, err := peakSparseSchema(w.ctx, w.maxFrames, w.maxPeaksPerFrame)
	if err != nil {
		return fmt.Errorf("%w: %v", errs.ErrCreateSchema, err)
	}
	defer schema.Free()

	array, err := tiledb.NewArray(w.ctx, w.uri)
	if err != nil {
		return fmt.Errorf("%w: %v", errs.ErrCreatePeakArray, err)
	}
	defer array.Free()

	if err := array.Create(schema); err != nil {
		return fmt.Errorf("%w: %v", errs.ErrCreatePeakArray, err)
	}

	return nil
}

// WriteFrame flattens every record in list into PeakRow coordinates and
// writes them as one unordered TileDB write query.
func (w *PeakWriter) WriteFrame(frameIndex int, list *peak.List) error {
	records := list.Records()
	n := len(records)
	if n == 0 {
		return nil
	}

	frameIdx := make([]int32, n)
	peakIdx := make([]int32, n)
	comFs := make([]float64, n)
	comSs := make([]float64, n)
	linearIdx := make([]int32, n)
	intensity := make([]float64, n)
	maxIntensity := make([]float64, n)
	sigma := make([]float64, n)
	snr := make([]float64, n)
	pixelCount := make([]int32, n)
	panel := make([]int32, n)

	for i, r := range records {
		frameIdx[i] = int32(frameIndex)
		peakIdx[i] = int32(i)
		comFs[i] = r.ComFs
		comSs[i] = r.ComSs
		linearIdx[i] = int32(r.LinearIndex)
		intensity[i] = r.Intensity
		maxIntensity[i] = r.MaxIntensity
		sigma[i] = r.Sigma
		snr[i] = r.SNR
		pixelCount[i] = int32(r.PixelCount)
		panel[i] = int32(r.Panel)
	}

	array, err := tiledb.NewArray(w.ctx, w.uri)
	if err != nil {
		return fmt.Errorf("%w: %v", errs.ErrWritePeakArray, err)
	}
	defer array.Free()

	if err := array.Open(tiledb.TILEDB_WRITE); err != nil {
		return fmt.Errorf("%w: %v", errs.ErrWritePeakArray, err)
	}
	defer array.Close()

	query, err := tiledb.NewQuery(w.ctx, array)
	if err != nil {
		return fmt.Errorf("%w: %v", errs.ErrWritePeakArray, err)
	}
	defer query.Free()

	if err := query.SetLayout(tiledb.TILEDB_UNORDERED); err != nil {
		return fmt.Errorf("%w: %v", errs.ErrWritePeakArray, err)
	}

	fields := []struct {
		name string
		buf  any
	}{
		{"frame_index", frameIdx},
		{"peak_index", peakIdx},
		{"ComFs", comFs},
		{"ComSs", comSs},
		{"LinearIndex", linearIdx},
		{"Intensity", intensity},
		{"MaxIntensity", maxIntensity},
		{"Sigma", sigma},
		{"SNR", snr},
		{"PixelCount", pixelCount},
		{"Panel", panel},
	}

	for _, f := range fields {
		if _, err := query.SetDataBuffer(f.name, f.buf); err != nil {
			return fmt.Errorf("%w: field %s: %v", errs.ErrSetBuffer, f.name, err)
		}
	}

	if err := query.Submit(); err != nil {
		return fmt.Errorf("%w: %v", errs.ErrWritePeakArray, err)
	}

	return nil
}

// Close releases the TileDB context.
func (w *PeakWriter) Close() {
	w.ctx.Free()
}
