// Package localclip applies profiles to the local clipboard.
//
// Writer holds the single write mutex for the native clipboard: every
// mutation, from the sync engine or any other caller, goes through Apply or
// Mutate so multi-format writes are never interleaved. After a successful
// Apply the profile is tagged as self-originated, and IsEcho recognizes the
// clipboard notification that write causes.
package localclip

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.klb.dev/cliprelay/internal/clip"
	"go.klb.dev/cliprelay/internal/logging"
	"go.klb.dev/cliprelay/internal/message"
	"go.klb.dev/cliprelay/internal/metrics"
	"go.klb.dev/cliprelay/internal/notify"
	"go.klb.dev/cliprelay/internal/profile"
	"go.klb.dev/cliprelay/internal/retry"
)

// DefaultRetry is an initial write plus two retries, 50ms apart.
var DefaultRetry = retry.Fixed(2, 50*time.Millisecond)

// ErrClosed is returned by writes after Close.
var ErrClosed = errors.New("local clipboard writer closed")

// ApplyError reports a clipboard write that kept failing.
type ApplyError struct {
	Attempts int
	Err      error
}

func (e *ApplyError) Error() string {
	return fmt.Sprintf("apply to clipboard failed after %d attempts: %v", e.Attempts, e.Err)
}

func (e *ApplyError) Unwrap() error { return e.Err }

// Writer is the Local Clipboard Writer.
type Writer struct {
	w        clip.Writer
	dispatch Dispatcher
	retry    retry.Policy
	notifier notify.Notifier
	metrics  *metrics.Metrics

	// mu is the only serialization point for native clipboard mutation.
	mu     sync.Mutex
	closed bool

	// tags are the profiles a capture may yield after our last write;
	// gen counts tag changes.
	tagMu sync.Mutex
	tags  []profile.Profile
	gen   uint64
}

// Option configures a Writer.
type Option func(*Writer)

func WithRetry(p retry.Policy) Option { return func(w *Writer) { w.retry = p } }

// WithNotifier enables a "Clipboard synced" confirmation after each Apply.
func WithNotifier(n notify.Notifier) Option { return func(w *Writer) { w.notifier = n } }

func WithMetrics(m *metrics.Metrics) Option { return func(w *Writer) { w.metrics = m } }

// New returns a Writer that writes to w on the context d provides. A nil d
// runs writes inline.
func New(w clip.Writer, d Dispatcher, opts ...Option) *Writer {
	if d == nil {
		d = Inline{}
	}
	lw := &Writer{w: w, dispatch: d, retry: DefaultRetry}
	for _, o := range opts {
		o(lw)
	}
	return lw
}

// Apply writes p to the clipboard and tags it as self-originated. Transient
// write failures are retried; a persistent one returns *ApplyError and
// leaves the previous tag in place.
func (w *Writer) Apply(ctx context.Context, p profile.Profile) error {
	if err := w.apply(ctx, p); err != nil {
		return err
	}
	if w.notifier != nil {
		w.notifier.SendText("Clipboard synced", logging.Preview(p.Display(), logging.PreviewRunes))
	}
	return nil
}

// ApplyQuiet is Apply without the user confirmation.
func (w *Writer) ApplyQuiet(ctx context.Context, p profile.Profile) error {
	return w.apply(ctx, p)
}

func (w *Writer) apply(ctx context.Context, p profile.Profile) error {
	items, err := profile.Items(p)
	if err != nil {
		return fmt.Errorf("apply %s: %w", p.Kind(), err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrClosed
	}

	attempts := 0
	err = w.retry.Do(ctx, func(attempt int) error {
		attempts = attempt
		err := w.dispatch.Run(ctx, func() error { return w.w.Write(items) })
		if errors.Is(err, ErrClosed) {
			return retry.Permanent(err)
		}
		return err
	}, func(attempt int, err error, wait time.Duration) {
		w.metrics.IncApplyRetry()
		slog.Warn("clipboard write failed, retrying", "attempt", attempt, "wait", wait, "err", err)
	})
	if err != nil {
		if ctx.Err() != nil || errors.Is(err, ErrClosed) {
			return err
		}
		return &ApplyError{Attempts: attempts, Err: err}
	}

	w.setTags(echoesOf(p, items))

	slog.Debug("clipboard applied", "kind", p.Kind(), "formats", len(items))
	return nil
}

// IsEcho reports whether p is the content this Writer last put on the
// clipboard, either as written or as the text fallback a single-format
// backend keeps. A non-matching p means someone else has written since, so
// the tag is dropped and later copies of the same content propagate again.
func (w *Writer) IsEcho(ctx context.Context, p profile.Profile) bool {
	w.tagMu.Lock()
	tags, gen := w.tags, w.gen
	w.tagMu.Unlock()
	if len(tags) == 0 {
		return false
	}

	for _, tag := range tags {
		eq, err := profile.Equal(ctx, tag, p)
		if err != nil {
			slog.Debug("echo check failed", "err", err)
			return false
		}
		if eq {
			return true
		}
	}

	w.tagMu.Lock()
	if w.gen == gen {
		w.tags = nil
		w.gen++
	}
	w.tagMu.Unlock()
	return false
}

func (w *Writer) setTags(tags []profile.Profile) {
	w.tagMu.Lock()
	w.tags = tags
	w.gen++
	w.tagMu.Unlock()
}

// echoesOf lists what a capture may read back after items for p were
// written. Backends that keep one format per write drop everything but the
// image or the text, so a File comes back as the text of its paths.
func echoesOf(p profile.Profile, items []clip.Item) []profile.Profile {
	tags := []profile.Profile{p}
	if p.Kind() == message.KindText {
		return tags
	}
	for _, it := range items {
		if it.Format == clip.FormatText {
			tags = append(tags, profile.NewText(string(it.Data)))
		}
	}
	return tags
}

// Mutate runs fn under the write mutex on the owning context. The echo tag
// is cleared since fn may change the clipboard.
func (w *Writer) Mutate(ctx context.Context, fn func(clip.Writer) error) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrClosed
	}
	err := w.dispatch.Run(ctx, func() error { return fn(w.w) })
	w.setTags(nil)
	return err
}

// Close rejects further writes and waits for the one in progress.
func (w *Writer) Close() {
	w.mu.Lock()
	w.closed = true
	w.mu.Unlock()
}
