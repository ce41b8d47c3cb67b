package syncer

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// Run drives the controller until ctx is done. Every receive on watch starts
// a local-change cycle when Push is enabled; every Poll tick starts a
// remote-change cycle when Pull is enabled and no cycle is in flight, so
// polling never cancels a transfer. Run returns after all cycles unwound.
func (c *Controller) Run(ctx context.Context, watch <-chan struct{}) error {
	var wg sync.WaitGroup
	defer wg.Wait()

	trigger := func(dir Direction, fn func(context.Context) error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := fn(ctx); err != nil && !errors.Is(err, ErrSuperseded) && ctx.Err() == nil {
				slog.Debug("cycle ended with error", "direction", dir, "err", err)
			}
		}()
	}

	var tick <-chan time.Time
	if c.cfg.Pull && c.cfg.Poll > 0 {
		t := time.NewTicker(c.cfg.Poll)
		defer t.Stop()
		tick = t.C
		trigger(Down, c.RemoteChanged)
	}
	if !c.cfg.Push {
		watch = nil
	}

	slog.Info("sync running", "push", c.cfg.Push, "pull", c.cfg.Pull, "poll", c.cfg.Poll)
	for {
		select {
		case <-ctx.Done():
			return nil
		case _, ok := <-watch:
			if !ok {
				watch = nil
				continue
			}
			trigger(Up, c.LocalChanged)
		case <-tick:
			if c.idle() {
				trigger(Down, c.RemoteChanged)
			}
		}
	}
}

// idle reports whether no cycle is running or waiting to run.
func (c *Controller) idle() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.done == nil {
		return true
	}
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}
