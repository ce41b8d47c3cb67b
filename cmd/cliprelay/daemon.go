package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"go.klb.dev/cliprelay/internal/ipc"
	"go.klb.dev/cliprelay/internal/message"
	"go.klb.dev/cliprelay/internal/metrics"
	"go.klb.dev/cliprelay/internal/profile"
	"go.klb.dev/cliprelay/internal/syncer"
)

func newDaemonCmd() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Watch the local clipboard and sync it with the remote",
		Long: `Starts the sync engine. Local clipboard changes are uploaded to the
remote; the remote descriptor is polled and new content is applied locally.

Config file search order:
  /etc/cliprelay/cliprelay.toml
  $HOME/.config/cliprelay/cliprelay.toml
  path supplied via --config

Precedence (lowest → highest): defaults → config file → CLIPRELAY_* env vars → flags`,
		Args:    cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error { return bindViper(cmd, v) },
		RunE:    func(cmd *cobra.Command, _ []string) error { return runDaemon(cmd.Context(), v) },
	}

	f := cmd.Flags()
	addRemoteFlags(cmd)
	f.Duration("poll", syncer.DefaultPoll, "remote poll interval (0 disables polling)")
	f.Bool("push", true, "upload local clipboard changes")
	f.Bool("pull", true, "apply remote clipboard changes")
	f.Bool("download-web-image", false, "replace a copied web <img> with the image itself")
	f.StringSlice("resolver-order", nil, "clipboard formats to prefer, e.g. image/png,image/bmp")
	f.String("metrics-addr", "", "serve Prometheus metrics on this address, e.g. 127.0.0.1:9464")
	f.Bool("notify", true, "log user notifications (sync confirmations, download progress)")
	addLoggingFlags(cmd)
	addConfigFlag(cmd)

	return cmd
}

func runDaemon(parent context.Context, v *viper.Viper) error {
	setupLogging(v)
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	eng, err := newEngine(v, m)
	if err != nil {
		return err
	}
	defer eng.Close()

	slog.Info("cliprelay daemon starting",
		"version", Version,
		"remote", redactURL(v.GetString("remote")),
		"clipboard", eng.backend.Name(),
		"push", v.GetBool("push"),
		"pull", v.GetBool("pull"),
		"sealed", v.GetString("token") != "",
	)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return eng.ctrl.Run(ctx, eng.backend.Watch()) })

	// Control socket for push/pull/status.
	if ln, err := ipc.Listen(); err != nil {
		slog.Warn("IPC socket unavailable", "err", err)
	} else {
		slog.Info("IPC socket listening", "path", ipc.SocketPath())
		g.Go(func() error { return ipc.Serve(ctx, ln, controlHandler(eng.ctrl)) })
	}

	if addr := v.GetString("metrics-addr"); addr != "" {
		g.Go(func() error { return serveMetrics(ctx, addr, reg) })
	}

	err = g.Wait()
	slog.Info("cliprelay daemon stopped")
	return err
}

func serveMetrics(ctx context.Context, addr string, reg *prometheus.Registry) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler(reg))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdown, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdown)
	}()

	slog.Info("metrics listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("metrics: %w", err)
	}
	return nil
}

// controlHandler answers PUSH, PULL and STATUS requests from the CLI.
func controlHandler(ctrl *syncer.Controller) ipc.Handler {
	return func(ctx context.Context, req *message.Message) *message.Message {
		slog.Debug("ipc request", "type", req.Type, "source", req.Source)
		switch req.Type {
		case message.TypePush:
			var err error
			if req.Text != nil {
				err = ctrl.Push(ctx, profile.NewText(*req.Text))
			} else {
				err = ctrl.LocalChanged(ctx)
			}
			if err != nil {
				return errorMsg(err)
			}
			return &message.Message{Type: message.TypeOK, Applied: ctrl.Status().Current}

		case message.TypePull:
			if err := ctrl.RemoteChanged(ctx); err != nil {
				return errorMsg(err)
			}
			return &message.Message{Type: message.TypeOK, Applied: ctrl.Status().Current}

		case message.TypeStatus:
			return statusMsg(ctrl.Status())
		}
		return errorMsg(fmt.Errorf("unknown request %q", req.Type))
	}
}

func statusMsg(s syncer.Status) *message.Message {
	return &message.Message{
		Type:     message.TypeStatusResponse,
		State:    s.State.String(),
		Current:  s.Current,
		Remote:   s.Remote,
		LastSync: s.LastSync,
		LastErr:  s.LastErr,
	}
}

func errorMsg(err error) *message.Message {
	return &message.Message{Type: message.TypeError, Error: err.Error()}
}
