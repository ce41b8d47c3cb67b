package snapshot

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"time"

	"go.klb.dev/cliprelay/internal/clip"
	"go.klb.dev/cliprelay/internal/retry"
)

var errNoFormats = errors.New("clipboard lists no formats")

// Default retry policies: an initial listing plus ten retries while another
// process owns the clipboard, and three attempts per format.
var (
	DefaultCaptureRetry = retry.Fixed(10, 200*time.Millisecond)
	DefaultFormatRetry  = retry.Fixed(2, 200*time.Millisecond)
)

// Assembler captures Snapshots from a clip.Reader.
type Assembler struct {
	reader       clip.Reader
	resolvers    []Resolver
	captureRetry retry.Policy
	formatRetry  retry.Policy
	onRetry      func()
}

// Option configures an Assembler.
type Option func(*Assembler)

// WithCaptureRetry sets the policy used while the clipboard lists no formats.
func WithCaptureRetry(p retry.Policy) Option {
	return func(a *Assembler) { a.captureRetry = p }
}

// WithFormatRetry sets the per-format resolve policy.
func WithFormatRetry(p retry.Policy) Option {
	return func(a *Assembler) { a.formatRetry = p }
}

// WithResolvers replaces the resolver list. Order is priority: earlier
// resolvers fill fields first and later ones never overwrite them.
func WithResolvers(rs ...Resolver) Option {
	return func(a *Assembler) { a.resolvers = slices.Clone(rs) }
}

// WithResolverOrder moves the named formats to the front of the resolver
// list, in the given order. Formats not named keep their relative order.
// Unknown format ids are ignored.
func WithResolverOrder(formats ...string) Option {
	return func(a *Assembler) { a.resolvers = reorder(a.resolvers, formats) }
}

// WithRetryHook registers fn to be called on every capture or format retry.
func WithRetryHook(fn func()) Option {
	return func(a *Assembler) { a.onRetry = fn }
}

// NewAssembler returns an Assembler reading from r with the default resolvers
// and retry policies.
func NewAssembler(r clip.Reader, opts ...Option) *Assembler {
	a := &Assembler{
		reader:       r,
		resolvers:    DefaultResolvers(),
		captureRetry: DefaultCaptureRetry,
		formatRetry:  DefaultFormatRetry,
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

// Capture reads the clipboard once. It never fails: a clipboard that stays
// empty (or a canceled ctx) yields EmptyText, and formats that cannot be
// resolved are simply absent.
func (a *Assembler) Capture(ctx context.Context) *Snapshot {
	var formats []string
	err := a.captureRetry.Do(ctx, func(int) error {
		f, err := a.reader.AvailableFormats()
		if err != nil {
			return err
		}
		if len(f) == 0 {
			return errNoFormats
		}
		formats = f
		return nil
	}, func(attempt int, err error, wait time.Duration) {
		a.retried()
		slog.Debug("clipboard capture retry", "attempt", attempt, "err", err, "wait", wait)
	})
	if err != nil {
		slog.Info("clipboard has no available formats", "attempts", a.captureRetry.Attempts(), "err", err)
		return EmptyText()
	}

	available := make(map[string]struct{}, len(formats))
	for _, f := range formats {
		available[f] = struct{}{}
	}

	s := &Snapshot{}
	for _, r := range a.resolvers {
		if _, ok := available[r.Format]; !ok {
			continue
		}
		if r.Skip != nil && r.Skip(s) {
			slog.Debug("format skipped, field already resolved", "format", r.Format)
			continue
		}
		if err := a.resolve(ctx, r, s); err != nil {
			if ctx.Err() != nil {
				slog.Debug("clipboard capture canceled", "format", r.Format)
				return s
			}
			slog.Warn("clipboard format unresolved", "err", &FormatError{Format: r.Format, Err: err})
		}
	}
	return s
}

func (a *Assembler) resolve(ctx context.Context, r Resolver, s *Snapshot) error {
	return a.formatRetry.Do(ctx, func(int) error {
		raw, err := a.reader.GetRaw(r.Format)
		if err != nil {
			return err
		}
		if err := r.Apply(raw, s); err != nil {
			return retry.Permanent(err)
		}
		return nil
	}, func(attempt int, err error, _ time.Duration) {
		a.retried()
		slog.Debug("clipboard format retry", "format", r.Format, "attempt", attempt, "err", err)
	})
}

func (a *Assembler) retried() {
	if a.onRetry != nil {
		a.onRetry()
	}
}

func reorder(rs []Resolver, formats []string) []Resolver {
	out := make([]Resolver, 0, len(rs))
	used := make([]bool, len(rs))
	for _, f := range formats {
		for i, r := range rs {
			if !used[i] && r.Format == f {
				out = append(out, r)
				used[i] = true
			}
		}
	}
	for i, r := range rs {
		if !used[i] {
			out = append(out, r)
		}
	}
	return out
}
