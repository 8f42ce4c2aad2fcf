// Package frame provides the reference "frame source" and
// frame-level-parallelism collaborators described in spec §6 and §5.
// Neither belongs to the detection core itself: rbpf and lwpf remain
// synchronous and single-threaded per frame, and it is this package,
// not them, that is responsible for fanning a batch of frames out
// across goroutines, each with its own scratch state (spec §5 "distinct
// frames may be processed on distinct threads concurrently, each with
// its own PeakList, its own MaskPlane scratch").
package frame

import (
	"context"
	"runtime"
	"sync"

	"github.com/alitto/pond"
)

// Frame is one caller-supplied (data, radius, mask) tuple plus an
// identifier for logging/store keys (spec §6 "Frame source").
type Frame struct {
	ID     string
	Data   []float32
	Radius []float32 // nil is valid for LWPF-only sources
	Mask   []byte
}

// Source yields frames to a Pool. Implementations decide how frames
// arrive (disk, network, a ring buffer); the core never performs I/O.
type Source interface {
	// Next returns the next frame, or ok=false when the source is
	// exhausted.
	Next() (f Frame, ok bool, err error)
}

// SliceSource adapts an in-memory slice of frames into a Source, useful
// for tests and batch reprocessing.
type SliceSource struct {
	frames []Frame
	pos    int
}

// NewSliceSource wraps frames as a Source.
func NewSliceSource(frames []Frame) *SliceSource {
	return &SliceSource{frames: frames}
}

// Next implements Source.
func (s *SliceSource) Next() (Frame, bool, error) {
	if s.pos >= len(s.frames) {
		return Frame{}, false, nil
	}
	f := s.frames[s.pos]
	s.pos++
	return f, true, nil
}

// Pool runs a per-frame function across every frame a Source yields,
// using a bounded worker pool (spec §5's caller-side frame-level
// parallelism). Each submitted task is expected to allocate its own
// PeakList/scratch. Pool only ever hands it a Frame; threading a shared,
// read-only RadialStats snapshot through the closure if RBPF is in use
// is the caller's responsibility.
type Pool struct {
	workers int
	inner   *pond.WorkerPool
}

// NewPool constructs a Pool. workers <= 0 defaults to 2*NumCPU, mirroring
// the teacher's convert_gsf_list sizing.
func NewPool(ctx context.Context, workers int) *Pool {
	if workers <= 0 {
		workers = runtime.NumCPU() * 2
	}
	return &Pool{
		workers: workers,
		inner:   pond.New(workers, 0, pond.MinWorkers(workers), pond.Context(ctx)),
	}
}

// Run drains src, submitting process(frame) to the pool for every frame,
// and blocks until every submitted task has completed. Errors from
// process are collected and returned together; a single frame's failure
// never stops the others (spec §5 "no global/process state", each frame
// is independent).
func (p *Pool) Run(src Source, process func(Frame) error) []error {
	var sink errSink

	for {
		f, ok, err := src.Next()
		if err != nil {
			sink.add(err)
			continue
		}
		if !ok {
			break
		}
		frame := f
		p.inner.Submit(func() {
			if err := process(frame); err != nil {
				sink.add(err)
			}
		})
	}

	p.inner.StopAndWait()
	return sink.errs
}

// Stop releases pool resources without waiting for queued work;
// callers that already called Run need not call this.
func (p *Pool) Stop() {
	p.inner.Stop()
}

// errSink collects errors from concurrent goroutines behind a mutex.
type errSink struct {
	mu   sync.Mutex
	errs []error
}

func (s *errSink) add(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errs = append(s.errs, err)
}
