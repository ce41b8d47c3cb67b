package syncer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"go.klb.dev/cliprelay/internal/logging"
	"go.klb.dev/cliprelay/internal/message"
	"go.klb.dev/cliprelay/internal/metrics"
	"go.klb.dev/cliprelay/internal/profile"
	"go.klb.dev/cliprelay/internal/remote"
	"go.klb.dev/cliprelay/internal/retry"
)

// RemoteChanged runs a remote-change cycle: fetch the descriptor, and when
// it differs from the last synced profile fetch its payload and apply it.
// A missing descriptor is a no-op.
func (c *Controller) RemoteChanged(ctx context.Context) error {
	return c.schedule(ctx, Down, c.download)
}

func (c *Controller) download(ctx context.Context) (string, error) {
	c.setState(StateDownloading)
	var desc message.Descriptor
	err := c.transfer(ctx, Down, func(ctx context.Context) error {
		data, err := c.deps.Store.Get(ctx, c.cfg.ProfilePath)
		if err != nil {
			if errors.Is(err, remote.ErrNotFound) {
				return retry.Permanent(err)
			}
			return fmt.Errorf("download descriptor: %w", err)
		}
		desc, err = message.DecodeDescriptor(data)
		if err != nil {
			return retry.Permanent(err)
		}
		return nil
	})
	if errors.Is(err, remote.ErrNotFound) {
		slog.Debug("no remote descriptor yet")
		return metrics.OutcomeNoOp, nil
	}
	if err != nil {
		return "", err
	}

	if c.currentDesc != nil && *c.currentDesc == desc {
		// Descriptors without a hash cannot be compared by content before
		// their payload is fetched; an unchanged one needs no fetch.
		return metrics.OutcomeNoOp, nil
	}

	rp, err := profile.FromDescriptor(desc)
	if err != nil {
		return "", err
	}

	c.setState(StateComparing)
	same, err := profile.Equal(ctx, c.current, rp)
	if err != nil {
		return "", err
	}
	if same {
		return metrics.OutcomeNoOp, nil
	}

	var dir string
	if profile.NeedsPayload(rp) {
		c.setState(StateDownloading)
		var data []byte
		err := c.transfer(ctx, Down, func(ctx context.Context) error {
			var err error
			data, err = c.deps.Store.Get(ctx, c.payloadPath(desc.File))
			if err != nil {
				return fmt.Errorf("download payload: %w", err)
			}
			return nil
		})
		if err != nil {
			return "", err
		}
		c.deps.Metrics.AddPayloadBytes(string(Down), len(data))

		dir = filepath.Join(c.cfg.TempDir, uuid.NewString())
		rp, err = profile.Materialize(rp, data, dir)
		if err != nil {
			removeDir(dir)
			return "", fmt.Errorf("materialize %s: %w", desc.File, err)
		}

		// Descriptors without a hash can only be compared once materialized.
		c.setState(StateComparing)
		same, err := profile.Equal(ctx, c.current, rp)
		if err != nil {
			removeDir(dir)
			return "", err
		}
		if same {
			removeDir(dir)
			c.currentDesc = &desc
			return metrics.OutcomeNoOp, nil
		}
	}

	if err := c.deps.Writer.Apply(ctx, rp); err != nil {
		removeDir(dir)
		return "", fmt.Errorf("apply remote %s: %w", rp.Kind(), err)
	}
	// The write happened: record it even if a newer trigger is waiting.
	c.synced(rp, desc)
	slog.Info("clipboard downloaded", "kind", rp.Kind(), "content", logging.Preview(rp.Display(), logging.PreviewRunes))
	return metrics.OutcomeSynced, nil
}

// removeDir drops a materialized payload that will not reach the clipboard.
func removeDir(dir string) {
	if dir == "" {
		return
	}
	if err := os.RemoveAll(dir); err != nil {
		slog.Warn("could not remove downloaded payload", "dir", dir, "err", err)
	}
}
