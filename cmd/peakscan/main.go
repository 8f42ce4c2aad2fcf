// Command peakscan runs the RBPF or LWPF peak finder over one or more raw
// detector frames and writes the results to a TileDB sparse array. It is
// the reference wiring of config+frame+store+rbpf/lwpf described in the
// package layout; a facility's own monitor runtime would replace the
// frame.Source and store.PeakWriter with its own acquisition and display
// layers and reuse the core untouched.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"

	"github.com/urfave/cli/v2"

	"github.com/xrd-imaging/peakscan/config"
	"github.com/xrd-imaging/peakscan/frame"
	"github.com/xrd-imaging/peakscan/lwpf"
	"github.com/xrd-imaging/peakscan/mask"
	"github.com/xrd-imaging/peakscan/peak"
	"github.com/xrd-imaging/peakscan/radial"
	"github.com/xrd-imaging/peakscan/rbpf"
	"github.com/xrd-imaging/peakscan/store"
)

// runRBPF processes a single raw frame with the radial-background
// flood-fill finder and writes its peaks to the array at storeURI. summary
// may be nil; when set (batch runs), the frame's peak count is recorded
// into it for the end-of-batch report.
func runRBPF(cfgPath, dataURI, radiusURI, maskURI, storeURI, tiledbConfigURI string, frameIndex int, summary *store.BatchSummary) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}

	l, err := cfg.BuildLayout()
	if err != nil {
		return err
	}
	n := int(l.PixN)

	log.Println("Reading frame:", dataURI)
	data, err := frame.ReadFloat32File(dataURI, n)
	if err != nil {
		return err
	}
	radiusMap, err := frame.ReadFloat32File(radiusURI, n)
	if err != nil {
		return err
	}
	rawMask, err := frame.ReadByteMaskFile(maskURI, n)
	if err != nil {
		return err
	}

	log.Println("Calibrating radial background")
	stats, err := radial.Build(data, radiusMap, rawMask, l, cfg.BuildRadial())
	if err != nil {
		return err
	}

	out, err := peak.NewList(cfg.RBPF.MaxNumPeaks)
	if err != nil {
		return err
	}
	scratch := rbpf.NewScratch(l)

	log.Println("Running RBPF")
	if err := rbpf.Run(data, radiusMap, rawMask, l, stats, cfg.BuildRBPF(), scratch, out); err != nil {
		return err
	}
	log.Println("Peaks found:", out.Len())

	if summary != nil {
		summary.Observe(out.Len())
	}

	return writePeaks(tiledbConfigURI, storeURI, cfg.RBPF.MaxNumPeaks, frameIndex, out)
}

// runLWPF processes a single raw frame with the local-window finder and
// writes its peaks to the array at storeURI. The mask, if provided, is
// fused into the frame with RBPF polarity (zero == invalid) before
// scanning; LWPF itself only ever looks for the in-band invalid sentinel.
func runLWPF(cfgPath, dataURI, maskURI, storeURI, tiledbConfigURI string, frameIndex int) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}

	l, err := cfg.BuildLayout()
	if err != nil {
		return err
	}
	n := int(l.PixN)

	log.Println("Reading frame:", dataURI)
	data, err := frame.ReadFloat32File(dataURI, n)
	if err != nil {
		return err
	}

	if maskURI != "" {
		rawMask, err := frame.ReadByteMaskFile(maskURI, n)
		if err != nil {
			return err
		}
		if err := mask.FuseInvertedMask(data, rawMask, l); err != nil {
			return err
		}
	}

	lwpfCfg, err := cfg.BuildLWPF()
	if err != nil {
		return err
	}

	out, err := peak.NewList(cfg.LWPF.MaxNumPeaks)
	if err != nil {
		return err
	}

	log.Println("Running LWPF")
	if err := lwpf.Run(data, l, lwpfCfg, out); err != nil {
		return err
	}
	log.Println("Peaks found:", out.Len())

	return writePeaks(tiledbConfigURI, storeURI, cfg.LWPF.MaxNumPeaks, frameIndex, out)
}

func writePeaks(tiledbConfigURI, storeURI string, maxPeaks, frameIndex int, out *peak.List) error {
	w, err := store.NewPeakWriter(tiledbConfigURI, storeURI, 1<<20, maxPeaks)
	if err != nil {
		return err
	}
	defer w.Close()

	log.Println("Writing peaks:", storeURI)
	return w.WriteFrame(frameIndex, out)
}

// runBatch fans a directory of raw frames out across a bounded worker
// pool, one RBPF run per frame, mirroring the teacher's convert_gsf_list
// sizing (2*NumCPU workers) and Ctrl+C-aware context.
func runBatch(cfgPath, dataDir, radiusURI, maskURI, storeURI, tiledbConfigURI string) error {
	entries, err := os.ReadDir(dataDir)
	if err != nil {
		return fmt.Errorf("peakscan: read %s: %w", dataDir, err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	pool := frame.NewPool(ctx, runtime.NumCPU()*2)

	var frames []frame.Frame
	frameIndex := make(map[string]int)
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		frameIndex[e.Name()] = len(frames)
		frames = append(frames, frame.Frame{ID: e.Name()})
	}
	src := frame.NewSliceSource(frames)

	summary := &store.BatchSummary{}
	failures := pool.Run(src, func(f frame.Frame) error {
		return runRBPF(cfgPath, filepath.Join(dataDir, f.ID), radiusURI, maskURI, storeURI, tiledbConfigURI, frameIndex[f.ID], summary)
	})
	for _, e := range failures {
		log.Println("peakscan: frame failed:", e)
	}

	if n, mean, max := summary.Report(); n > 0 {
		log.Printf("Batch done: %d frames, %.2f peaks/frame mean, %d max", n, mean, max)
	}

	return nil
}

func main() {
	app := &cli.App{
		Commands: []*cli.Command{
			{
				Name:  "rbpf",
				Usage: "run the radial-background flood-fill finder over one raw frame",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "config", Required: true, Usage: "path to the YAML pipeline config"},
					&cli.StringFlag{Name: "data", Required: true, Usage: "path to the raw float32 frame"},
					&cli.StringFlag{Name: "radius", Required: true, Usage: "path to the raw float32 radius map"},
					&cli.StringFlag{Name: "mask", Required: true, Usage: "path to the raw byte mask (RBPF polarity: zero == invalid)"},
					&cli.StringFlag{Name: "store-uri", Required: true, Usage: "URI of the TileDB sparse array to write peaks to"},
					&cli.StringFlag{Name: "tiledb-config", Usage: "URI or pathname to a TileDB config file"},
					&cli.IntFlag{Name: "frame-index", Value: 0},
				},
				Action: func(cCtx *cli.Context) error {
					return runRBPF(
						cCtx.String("config"), cCtx.String("data"), cCtx.String("radius"), cCtx.String("mask"),
						cCtx.String("store-uri"), cCtx.String("tiledb-config"), cCtx.Int("frame-index"), nil,
					)
				},
			},
			{
				Name:  "lwpf",
				Usage: "run the local-window finder over one raw frame",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "config", Required: true, Usage: "path to the YAML pipeline config"},
					&cli.StringFlag{Name: "data", Required: true, Usage: "path to the raw float32 frame"},
					&cli.StringFlag{Name: "mask", Usage: "path to the raw byte mask (RBPF polarity: zero == invalid); optional"},
					&cli.StringFlag{Name: "store-uri", Required: true, Usage: "URI of the TileDB sparse array to write peaks to"},
					&cli.StringFlag{Name: "tiledb-config", Usage: "URI or pathname to a TileDB config file"},
					&cli.IntFlag{Name: "frame-index", Value: 0},
				},
				Action: func(cCtx *cli.Context) error {
					return runLWPF(
						cCtx.String("config"), cCtx.String("data"), cCtx.String("mask"),
						cCtx.String("store-uri"), cCtx.String("tiledb-config"), cCtx.Int("frame-index"),
					)
				},
			},
			{
				Name:  "rbpf-batch",
				Usage: "run the radial-background flood-fill finder over every frame in a directory",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "config", Required: true},
					&cli.StringFlag{Name: "data-dir", Required: true},
					&cli.StringFlag{Name: "radius", Required: true},
					&cli.StringFlag{Name: "mask", Required: true},
					&cli.StringFlag{Name: "store-uri", Required: true},
					&cli.StringFlag{Name: "tiledb-config"},
				},
				Action: func(cCtx *cli.Context) error {
					return runBatch(
						cCtx.String("config"), cCtx.String("data-dir"), cCtx.String("radius"), cCtx.String("mask"),
						cCtx.String("store-uri"), cCtx.String("tiledb-config"),
					)
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
