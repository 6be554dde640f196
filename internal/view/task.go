package view

import (
	"context"
	"sync"

	"github.com/ironsheep/edgeview/internal/imagefile"
)

// Task is one detection request started by RequestDetection.
type Task struct {
	file   *imagefile.File
	cancel context.CancelFunc

	once sync.Once
	done chan struct{}
	snap Snapshot
}

// Done is closed once the request has finished and the view has applied
// its outcome.
func (t *Task) Done() <-chan struct{} {
	return t.done
}

// Cancel aborts the request. The view then moves to PhaseFailed with a
// cancellation reason.
func (t *Task) Cancel() {
	t.cancel()
}

// Wait blocks until the task is done and returns the view state it left.
func (t *Task) Wait() Snapshot {
	<-t.done
	return t.snap
}

func (t *Task) finish(snap Snapshot) {
	t.once.Do(func() {
		t.snap = snap
		close(t.done)
	})
}
