package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/viper"

	"go.klb.dev/cliprelay/internal/clip"
	"go.klb.dev/cliprelay/internal/localclip"
	"go.klb.dev/cliprelay/internal/metrics"
	"go.klb.dev/cliprelay/internal/notify"
	"go.klb.dev/cliprelay/internal/remote"
	"go.klb.dev/cliprelay/internal/snapshot"
	"go.klb.dev/cliprelay/internal/syncer"
	"go.klb.dev/cliprelay/internal/webimage"
)

// engine is everything a sync cycle needs, wired from flags.
type engine struct {
	backend clip.Backend
	thread  *localclip.Thread
	writer  *localclip.Writer
	ctrl    *syncer.Controller
}

// newEngine opens the clipboard and the remote store. m may be nil.
func newEngine(v *viper.Viper, m *metrics.Metrics) (*engine, error) {
	store, err := remote.Open(remoteConfig(v))
	if err != nil {
		return nil, err
	}

	var n notify.Notifier = notify.Nop{}
	if v.GetBool("notify") {
		n = &notify.Log{Logger: slog.Default().With("component", "notify")}
	}

	backend := clip.New()
	thread := localclip.NewThread()
	writer := localclip.New(backend, thread,
		localclip.WithNotifier(n),
		localclip.WithMetrics(m),
	)

	opts := []snapshot.Option{snapshot.WithRetryHook(m.IncCaptureRetry)}
	if order := resolverOrder(v); len(order) > 0 {
		opts = append(opts, snapshot.WithResolverOrder(order...))
	}
	assembler := snapshot.NewAssembler(backend, opts...)

	cfg := syncConfig(v)
	if cfg.TempDir != "" {
		if err := os.MkdirAll(cfg.TempDir, 0o700); err != nil {
			return nil, fmt.Errorf("temp dir: %w", err)
		}
	}

	ctrl := syncer.New(cfg, syncer.Deps{
		Capture:  assembler,
		Writer:   writer,
		Store:    store,
		Notifier: n,
		Metrics:  m,
		Fetcher:  &webimage.Fetcher{MaxSize: cfg.MaxPayload},
	})

	slog.Debug("engine ready", "clipboard", backend.Name(), "remote", cfg.RemoteName)
	return &engine{backend: backend, thread: thread, writer: writer, ctrl: ctrl}, nil
}

func (e *engine) Close() {
	e.writer.Close()
	e.thread.Close()
	e.backend.Close()
}

func resolverOrder(v *viper.Viper) []string {
	var out []string
	for _, f := range v.GetStringSlice("resolver-order") {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}
