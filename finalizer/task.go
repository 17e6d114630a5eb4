package finalizer

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Task is a body scheduled for a specific point in the future. It executes
// automatically at that point, or can be triggered early or cancelled. The
// body runs at most once.
type Task struct {
	timer     *time.Timer
	signal    chan struct{}
	stop      chan struct{}
	stopOnce  sync.Once
	done      chan struct{}
	completed atomic.Bool
	result    error
}

// NewTask schedules run to execute at runAt. A runAt in the past executes
// immediately.
func NewTask(run func(ctx context.Context) error, runAt time.Time) *Task {
	delay := time.Until(runAt)
	if delay < 0 {
		delay = 0
	}
	t := &Task{
		timer:  time.NewTimer(delay),
		signal: make(chan struct{}, 1),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	go func() {
		defer close(t.done)
		select {
		case <-t.timer.C:
		case <-t.signal:
		case <-t.stop:
			return
		}
		t.result = run(context.Background())
		t.completed.Store(true)
	}()
	return t
}

// TriggerNow fires the task immediately instead of waiting for its scheduled
// time, and waits for the body to complete. It returns the body's result; if
// the body had already run, the earlier result is returned.
func (t *Task) TriggerNow() error {
	t.timer.Stop()
	select {
	case t.signal <- struct{}{}:
	default:
	}
	<-t.done
	return t.result
}

// Cancel aborts the timer and, if the body has not started, the task itself.
// It reports whether the body had already completed.
func (t *Task) Cancel() bool {
	t.timer.Stop()
	t.stopOnce.Do(func() { close(t.stop) })
	<-t.done
	return t.completed.Load()
}
