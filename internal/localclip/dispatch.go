package localclip

import (
	"context"
	"runtime"
	"sync"
)

// Dispatcher runs fn on the execution context the native clipboard requires
// and blocks until fn returns.
type Dispatcher interface {
	Run(ctx context.Context, fn func() error) error
}

// Inline runs fn on the calling goroutine. It suits backends without thread
// affinity, such as clip.Memory.
type Inline struct{}

func (Inline) Run(ctx context.Context, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return fn()
}

// Thread is a single goroutine locked to one OS thread. Every job submitted
// through Run executes there, one at a time, in submission order.
type Thread struct {
	jobs chan func()
	quit chan struct{}
	once sync.Once
}

// NewThread starts the owning thread. Call Close to stop it.
func NewThread() *Thread {
	t := &Thread{
		jobs: make(chan func()),
		quit: make(chan struct{}),
	}
	go t.loop()
	return t
}

func (t *Thread) loop() {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	for {
		select {
		case <-t.quit:
			return
		case job := <-t.jobs:
			job()
		}
	}
}

// Run hands fn to the owning thread and waits for it. Cancellation only
// applies before fn starts; a started write always completes.
func (t *Thread) Run(ctx context.Context, fn func() error) error {
	select {
	case <-t.quit:
		return ErrClosed
	default:
	}
	done := make(chan error, 1)
	job := func() { done <- fn() }
	select {
	case t.jobs <- job:
	case <-t.quit:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	return <-done
}

// Close stops the thread after the running job, if any.
func (t *Thread) Close() {
	t.once.Do(func() { close(t.quit) })
}
