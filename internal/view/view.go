package view

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/ironsheep/edgeview/internal/detect"
	"github.com/ironsheep/edgeview/internal/handle"
	"github.com/ironsheep/edgeview/internal/imagefile"
)

// ErrClosed is returned by operations on a view after Close.
var ErrClosed = errors.New("view closed")

// Detector sends an image to the edge service.
type Detector interface {
	Detect(ctx context.Context, f *imagefile.File) (*detect.Result, error)
}

// Option configures a View.
type Option func(*View)

// WithTimeout bounds each detection request. Zero means no bound.
func WithTimeout(d time.Duration) Option {
	return func(v *View) {
		v.timeout = d
	}
}

// WithClock replaces the wall clock used to measure elapsed time.
func WithClock(now func() time.Time) Option {
	return func(v *View) {
		if now != nil {
			v.now = now
		}
	}
}

// WithLogger sets the logger for request outcomes.
func WithLogger(l *log.Logger) Option {
	return func(v *View) {
		if l != nil {
			v.logger = l
		}
	}
}

// View is the upload-and-detect component. It is safe for concurrent use.
type View struct {
	detector Detector
	handles  *handle.Registry
	timeout  time.Duration
	now      func() time.Time
	logger   *log.Logger

	mu      sync.Mutex
	phase   Phase
	file    *imagefile.File
	preview *handle.Scope
	result  *handle.Scope
	elapsed time.Duration
	err     error
	version uint64
	closed  bool
	task    *Task

	subs    map[int]func(Snapshot)
	nextSub int
}

// New creates an idle view that detects with d and publishes display
// handles into reg.
func New(d Detector, reg *handle.Registry, opts ...Option) *View {
	v := &View{
		detector: d,
		handles:  reg,
		now:      time.Now,
		logger:   log.Default(),
		preview:  handle.NewScope(reg),
		result:   handle.NewScope(reg),
		subs:     make(map[int]func(Snapshot)),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// SelectFile replaces the selected file and its preview, and clears any
// previous result. A request still in flight is cancelled and its outcome
// discarded. The file is not validated.
func (v *View) SelectFile(f *imagefile.File) (Snapshot, error) {
	if f == nil {
		return Snapshot{}, detect.ErrNoFile
	}

	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return Snapshot{}, ErrClosed
	}

	v.abandonTaskLocked()
	v.file = f
	v.preview.Replace(f.Data, f.ContentType)
	v.result.Release()
	v.phase = PhaseSelecting
	v.err = nil
	v.elapsed = 0

	snap, subs := v.changedLocked()
	v.mu.Unlock()

	v.notify(subs, snap)
	return snap, nil
}

// RequestDetection starts a detection request for the selected file.
//
// Returns nil without touching the network or the state when no file is
// selected, a request is already in flight, or the view is closed.
// Otherwise the view moves to PhaseInFlight and the returned Task completes
// once the view has left it again, whatever the outcome.
func (v *View) RequestDetection(ctx context.Context) *Task {
	v.mu.Lock()
	if v.closed || v.file == nil || v.phase == PhaseInFlight {
		v.mu.Unlock()
		return nil
	}

	var taskCtx context.Context
	var cancel context.CancelFunc
	if v.timeout > 0 {
		taskCtx, cancel = context.WithTimeout(ctx, v.timeout)
	} else {
		taskCtx, cancel = context.WithCancel(ctx)
	}

	t := &Task{
		file:   v.file,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	v.task = t
	v.result.Release()
	v.phase = PhaseInFlight
	v.err = nil
	v.elapsed = 0
	start := v.now()

	snap, subs := v.changedLocked()
	v.mu.Unlock()

	v.notify(subs, snap)
	go v.run(taskCtx, t, start)
	return t
}

// run performs the request and applies its continuation.
func (v *View) run(ctx context.Context, t *Task, start time.Time) {
	res, err := v.detector.Detect(ctx, t.file)
	elapsed := v.now().Sub(start)
	if elapsed < 0 {
		elapsed = 0
	}
	t.cancel()

	v.mu.Lock()
	if v.task != t {
		// Superseded by a new selection or by Close.
		snap := v.snapshotLocked()
		v.mu.Unlock()
		t.finish(snap)
		return
	}
	v.task = nil

	if err != nil {
		v.phase = PhaseFailed
		v.err = err
		v.logger.Printf("edge detection failed for %s after %s: %v", t.file.Name, elapsed, err)
	} else {
		v.result.Replace(res.Data, res.ContentType)
		v.phase = PhaseSucceeded
		v.elapsed = elapsed
	}

	snap, subs := v.changedLocked()
	v.mu.Unlock()

	v.notify(subs, snap)
	t.finish(snap)
}

// Cancel aborts the request in flight. Reports whether there was one.
func (v *View) Cancel() bool {
	v.mu.Lock()
	t := v.task
	v.mu.Unlock()

	if t == nil {
		return false
	}
	t.Cancel()
	return true
}

// Close tears the view down: the request in flight is cancelled, every
// display handle the view owns is revoked and subscribers are dropped.
// Close is idempotent.
func (v *View) Close() {
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return
	}
	v.closed = true
	v.abandonTaskLocked()
	v.preview.Release()
	v.result.Release()
	v.file = nil
	v.phase = PhaseIdle
	v.err = nil
	v.elapsed = 0

	snap, subs := v.changedLocked()
	v.subs = nil
	v.mu.Unlock()

	v.notify(subs, snap)
}

// Snapshot returns the current state.
func (v *View) Snapshot() Snapshot {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.snapshotLocked()
}

// File returns the selected file, or nil.
func (v *View) File() *imagefile.File {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.file
}

// ResultData returns the bytes of the current result.
func (v *View) ResultData() ([]byte, string, bool) {
	v.mu.Lock()
	h, ok := v.result.Current()
	v.mu.Unlock()
	if !ok {
		return nil, "", false
	}
	return v.handles.Lookup(h.ID)
}

// Subscribe registers fn to receive a snapshot after every change. The
// returned function removes the subscription. Callbacks run outside the
// view's lock and may arrive concurrently; use Snapshot.Version to order
// them.
func (v *View) Subscribe(fn func(Snapshot)) func() {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return func() {}
	}
	id := v.nextSub
	v.nextSub++
	v.subs[id] = fn

	return func() {
		v.mu.Lock()
		defer v.mu.Unlock()
		delete(v.subs, id)
	}
}

// abandonTaskLocked cancels the running task so its outcome is discarded.
func (v *View) abandonTaskLocked() {
	if v.task == nil {
		return
	}
	v.task.cancel()
	v.task = nil
}

func (v *View) changedLocked() (Snapshot, []func(Snapshot)) {
	v.version++
	subs := make([]func(Snapshot), 0, len(v.subs))
	for _, fn := range v.subs {
		subs = append(subs, fn)
	}
	return v.snapshotLocked(), subs
}

func (v *View) snapshotLocked() Snapshot {
	snap := Snapshot{
		Phase:   v.phase,
		Loading: v.phase == PhaseInFlight,
		Closed:  v.closed,
		Version: v.version,
	}

	if v.file != nil {
		preview, _ := v.preview.Current()
		snap.Input = inputFrom(v.file, preview)
	}

	if h, ok := v.result.Current(); ok && v.phase == PhaseSucceeded {
		snap.Output = &Output{
			URL:         h.URL,
			ContentType: h.ContentType,
			Size:        h.Size,
		}
		snap.ElapsedMS = float64(v.elapsed) / float64(time.Millisecond)
	}

	if v.err != nil {
		snap.Error = v.err.Error()
		snap.Canceled = errors.Is(v.err, context.Canceled)
	}

	return snap
}

func (v *View) notify(subs []func(Snapshot), snap Snapshot) {
	for _, fn := range subs {
		fn(snap)
	}
}
