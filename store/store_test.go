package store_test

import (
	"path/filepath"
	"testing"

	"github.com/xrd-imaging/peakscan/peak"
	"github.com/xrd-imaging/peakscan/store"
)

func TestNewPeakWriterCreatesArrayOnFirstUse(t *testing.T) {
	uri := filepath.Join(t.TempDir(), "peaks")

	w, err := store.NewPeakWriter("", uri, 16, 8)
	if err != nil {
		t.Fatalf("NewPeakWriter: %v", err)
	}
	defer w.Close()
}

func TestWriteFrameWritesPopulatedList(t *testing.T) {
	uri := filepath.Join(t.TempDir(), "peaks")

	w, err := store.NewPeakWriter("", uri, 16, 8)
	if err != nil {
		t.Fatalf("NewPeakWriter: %v", err)
	}
	defer w.Close()

	list, err := peak.NewList(4)
	if err != nil {
		t.Fatalf("peak.NewList: %v", err)
	}
	list.Add(peak.Record{ComFs: 1.5, ComSs: 2.5, LinearIndex: 42, Intensity: 100, MaxIntensity: 50, Sigma: 4, SNR: 25, PixelCount: 9, Panel: 1})
	list.Add(peak.Record{ComFs: 3.5, ComSs: 4.5, LinearIndex: 84, Intensity: 200, MaxIntensity: 80, Sigma: 5, SNR: 40, PixelCount: 12, Panel: 2})

	if err := w.WriteFrame(0, list); err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}
}

func TestWriteFrameWithNoPeaksIsANoOp(t *testing.T) {
	uri := filepath.Join(t.TempDir(), "peaks")

	w, err := store.NewPeakWriter("", uri, 16, 8)
	if err != nil {
		t.Fatalf("NewPeakWriter: %v", err)
	}
	defer w.Close()

	empty, err := peak.NewList(4)
	if err != nil {
		t.Fatalf("peak.NewList: %v", err)
	}

	if err := w.WriteFrame(0, empty); err != nil {
		t.Fatalf("WriteFrame with an empty list: unexpected error: %v", err)
	}
}

func TestReopeningExistingArraySucceeds(t *testing.T) {
	uri := filepath.Join(t.TempDir(), "peaks")

	first, err := store.NewPeakWriter("", uri, 16, 8)
	if err != nil {
		t.Fatalf("NewPeakWriter (first): %v", err)
	}
	first.Close()

	second, err := store.NewPeakWriter("", uri, 16, 8)
	if err != nil {
		t.Fatalf("NewPeakWriter (reopen): %v", err)
	}
	defer second.Close()
}
