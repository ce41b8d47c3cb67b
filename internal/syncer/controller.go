// Package syncer is the Remote Sync Controller. It runs one sync cycle at a
// time: a local change captures, compares and uploads; a remote change
// downloads, compares and applies. A new trigger cancels the cycle in flight
// and starts over, since only the latest clipboard state matters.
//
// The last-known-synced profile is a field of the Controller, touched only
// by the running cycle.
package syncer

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"go.klb.dev/cliprelay/internal/message"
	"go.klb.dev/cliprelay/internal/metrics"
	"go.klb.dev/cliprelay/internal/notify"
	"go.klb.dev/cliprelay/internal/profile"
	"go.klb.dev/cliprelay/internal/remote"
	"go.klb.dev/cliprelay/internal/retry"
	"go.klb.dev/cliprelay/internal/snapshot"
	"go.klb.dev/cliprelay/internal/webimage"
)

// Defaults for Config fields left zero.
const (
	DefaultProfilePath = "SyncClipboard.json"
	DefaultPayloadDir  = "file"
	DefaultMaxPayload  = 64 << 20
	DefaultPoll        = 3 * time.Second
)

// DefaultRetry runs a transfer three times with growing delay.
var DefaultRetry = retry.Exponential(2, time.Second, 10*time.Second)

// Capturer reads the local clipboard.
type Capturer interface {
	Capture(ctx context.Context) *snapshot.Snapshot
}

// Applier writes profiles to the local clipboard and recognizes its own
// writes. *localclip.Writer implements it.
type Applier interface {
	Apply(ctx context.Context, p profile.Profile) error
	ApplyQuiet(ctx context.Context, p profile.Profile) error
	IsEcho(ctx context.Context, p profile.Profile) bool
}

// Config holds the sync settings.
type Config struct {
	ProfilePath string
	PayloadDir  string
	// TempDir receives downloaded files.
	TempDir    string
	MaxPayload int64
	Retry      retry.Policy

	// Run loop only.
	Push bool
	Pull bool
	Poll time.Duration

	DownloadWebImage bool
	// RemoteName is shown by Status.
	RemoteName string
}

func (c Config) withDefaults() Config {
	if c.ProfilePath == "" {
		c.ProfilePath = DefaultProfilePath
	}
	if c.PayloadDir == "" {
		c.PayloadDir = DefaultPayloadDir
	}
	if c.TempDir == "" {
		c.TempDir = filepath.Join(os.TempDir(), "cliprelay")
	}
	if c.MaxPayload == 0 {
		c.MaxPayload = DefaultMaxPayload
	}
	if c.Retry == (retry.Policy{}) {
		c.Retry = DefaultRetry
	}
	return c
}

// Deps are the collaborators a Controller drives. Capture, Writer and Store
// are required.
type Deps struct {
	Capture  Capturer
	Writer   Applier
	Store    remote.Store
	Notifier notify.Notifier
	Metrics  *metrics.Metrics
	Fetcher  *webimage.Fetcher
}

// Status is a point-in-time view for the status command.
type Status struct {
	State    State
	Current  *message.Descriptor
	Remote   string
	LastSync time.Time
	LastErr  string
}

// Controller is the Remote Sync Controller.
type Controller struct {
	cfg  Config
	deps Deps

	state atomic.Int32

	mu     sync.Mutex
	cancel context.CancelCauseFunc
	done   chan struct{}

	// current is the last-known-synced profile and currentDesc the remote
	// descriptor it was synced as.
	current     profile.Profile
	currentDesc *message.Descriptor

	statusMu sync.Mutex
	status   Status
}

// New returns a Controller in the Idle state with no synced profile.
func New(cfg Config, deps Deps) *Controller {
	if deps.Notifier == nil {
		deps.Notifier = notify.Nop{}
	}
	cfg = cfg.withDefaults()
	return &Controller{
		cfg:    cfg,
		deps:   deps,
		status: Status{Remote: cfg.RemoteName},
	}
}

// State returns the current cycle state.
func (c *Controller) State() State { return State(c.state.Load()) }

func (c *Controller) setState(s State) { c.state.Store(int32(s)) }

// Status returns the current state, the last synced descriptor and the
// outcome of the last finished cycle.
func (c *Controller) Status() Status {
	c.statusMu.Lock()
	defer c.statusMu.Unlock()
	s := c.status
	s.State = c.State()
	if s.Current != nil {
		d := *s.Current
		s.Current = &d
	}
	return s
}

func (c *Controller) payloadPath(name string) string {
	return path.Join(c.cfg.PayloadDir, name)
}

type cycleFunc func(ctx context.Context) (outcome string, err error)

// schedule cancels the cycle in flight, waits for it to unwind and runs fn.
// Cycles therefore never overlap, and the latest trigger always runs.
func (c *Controller) schedule(parent context.Context, dir Direction, fn cycleFunc) error {
	ctx, cancel := context.WithCancelCause(parent)
	done := make(chan struct{})

	c.mu.Lock()
	if c.cancel != nil {
		c.cancel(ErrSuperseded)
	}
	prev := c.done
	c.cancel, c.done = cancel, done
	c.mu.Unlock()

	defer func() {
		cancel(nil)
		c.setState(StateIdle)
		close(done)
	}()

	if prev != nil {
		<-prev
	}
	if ctx.Err() != nil {
		c.deps.Metrics.ObserveCycle(string(dir), metrics.OutcomeCanceled, 0)
		return context.Cause(ctx)
	}

	start := time.Now()
	outcome, err := fn(ctx)
	elapsed := time.Since(start)

	switch {
	case err != nil && ctx.Err() != nil:
		outcome = metrics.OutcomeCanceled
		err = context.Cause(ctx)
		slog.Debug("sync cycle canceled", "direction", dir, "cause", err)
	case err != nil:
		outcome = metrics.OutcomeFailed
		c.finish(nil, err)
		slog.Error("sync cycle failed", "direction", dir, "err", err)
		c.deps.Notifier.SendText("Clipboard sync failed", err.Error())
	default:
		slog.Debug("sync cycle done", "direction", dir, "outcome", outcome, "elapsed", elapsed)
	}
	c.deps.Metrics.ObserveCycle(string(dir), outcome, elapsed)
	return err
}

// synced makes p, described by d, the last-known-synced profile.
func (c *Controller) synced(p profile.Profile, d message.Descriptor) {
	c.current, c.currentDesc = p, &d
	c.finish(&d, nil)
}

// finish records a cycle outcome for Status. A nil d keeps the previous
// descriptor.
func (c *Controller) finish(d *message.Descriptor, err error) {
	c.statusMu.Lock()
	defer c.statusMu.Unlock()
	if d != nil {
		c.status.Current = d
	}
	if err != nil {
		c.status.LastErr = err.Error()
		return
	}
	c.status.LastErr = ""
	c.status.LastSync = time.Now()
}

// transfer runs fn under the cycle retry policy. Exhaustion is a *CycleError.
func (c *Controller) transfer(ctx context.Context, dir Direction, fn func(ctx context.Context) error) error {
	attempts := 0
	err := c.cfg.Retry.Do(ctx, func(a int) error {
		attempts = a
		return fn(ctx)
	}, func(attempt int, err error, wait time.Duration) {
		slog.Warn("remote transfer failed, retrying", "direction", dir, "attempt", attempt, "wait", wait, "err", err)
	})
	if err == nil || ctx.Err() != nil {
		return err
	}
	var ce *CycleError
	if errors.As(err, &ce) {
		return err
	}
	return &CycleError{Direction: dir, Attempts: attempts, Err: err}
}
