package syncer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.klb.dev/cliprelay/internal/logging"
	"go.klb.dev/cliprelay/internal/metrics"
	"go.klb.dev/cliprelay/internal/profile"
	"go.klb.dev/cliprelay/internal/snapshot"
	"go.klb.dev/cliprelay/internal/webimage"
)

// LocalChanged runs a local-change cycle: capture the clipboard, and upload
// it unless it is an echo of our own write or already synced.
func (c *Controller) LocalChanged(ctx context.Context) error {
	return c.schedule(ctx, Up, func(ctx context.Context) (string, error) {
		c.setState(StateCapturing)
		snap := c.deps.Capture.Capture(ctx)
		if err := ctx.Err(); err != nil {
			return "", err
		}
		p := profile.Derive(snap)

		c.setState(StateComparing)
		if c.deps.Writer.IsEcho(ctx, p) {
			slog.Debug("local change is our own write", "kind", p.Kind())
			return metrics.OutcomeEcho, nil
		}
		img := c.webImage(ctx, snap, p)
		if img == nil {
			return c.upload(ctx, p)
		}

		// The image goes on the clipboard only once it is synced: the watch
		// signal of that write then ends as an echo instead of superseding
		// the upload.
		outcome, err := c.upload(ctx, img)
		if err != nil {
			return "", err
		}
		if err := ctx.Err(); err != nil {
			return "", err
		}
		if err := c.deps.Writer.ApplyQuiet(ctx, img); err != nil {
			slog.Warn("could not put web image on clipboard", "err", err)
		}
		return outcome, nil
	})
}

// Push uploads p as if it had been copied locally, skipping capture and the
// echo check.
func (c *Controller) Push(ctx context.Context, p profile.Profile) error {
	return c.schedule(ctx, Up, func(ctx context.Context) (string, error) {
		c.setState(StateComparing)
		return c.upload(ctx, p)
	})
}

// upload compares p with the last synced profile and, when it differs,
// writes the payload and then the descriptor. A reader that sees the new
// descriptor can always fetch its payload; a payload without a descriptor
// is never referenced.
func (c *Controller) upload(ctx context.Context, p profile.Profile) (string, error) {
	same, err := profile.Equal(ctx, c.current, p)
	if err != nil {
		return "", err
	}
	if same {
		slog.Debug("local content already synced", "kind", p.Kind())
		return metrics.OutcomeNoOp, nil
	}

	desc, err := profile.ToDescriptor(ctx, p)
	if err != nil {
		return "", fmt.Errorf("describe %s: %w", p.Kind(), err)
	}
	descBytes, err := desc.Encode()
	if err != nil {
		return "", err
	}
	payload, err := profile.BuildPayload(ctx, p, c.cfg.MaxPayload)
	if err != nil {
		return "", fmt.Errorf("build payload: %w", err)
	}

	c.setState(StateUploading)
	err = c.transfer(ctx, Up, func(ctx context.Context) error {
		if payload != nil {
			if err := c.deps.Store.Put(ctx, c.payloadPath(payload.Name), payload.Data); err != nil {
				return fmt.Errorf("upload payload: %w", err)
			}
			c.deps.Metrics.AddPayloadBytes(string(Up), len(payload.Data))
		}
		if err := c.deps.Store.Put(ctx, c.cfg.ProfilePath, descBytes); err != nil {
			return fmt.Errorf("upload descriptor: %w", err)
		}
		return nil
	})
	if err != nil {
		return "", err
	}

	c.synced(p, desc)
	slog.Info("clipboard uploaded", "kind", p.Kind(), "content", logging.Preview(p.Display(), logging.PreviewRunes))
	return metrics.OutcomeSynced, nil
}

// webImage returns the downloaded image when p is a Text profile whose HTML
// is a single remote image, and nil otherwise. Any failure keeps the text.
func (c *Controller) webImage(ctx context.Context, snap *snapshot.Snapshot, p profile.Profile) *profile.Image {
	if !c.cfg.DownloadWebImage || c.deps.Fetcher == nil {
		return nil
	}
	t, ok := p.(*profile.Text)
	if !ok || t.HTML() == "" {
		return nil
	}
	if len(snap.Files) > 1 || snap.EffectOr(snapshot.EffectNone) == snapshot.EffectMove {
		return nil
	}
	src, ok := webimage.Extract(t.HTML())
	if !ok {
		return nil
	}

	slog.Info("downloading web image", "url", src)
	img, mime, err := c.deps.Fetcher.Fetch(ctx, src, c.deps.Notifier)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			slog.Warn("web image download failed, keeping text", "url", src, "err", err)
		}
		return nil
	}
	slog.Debug("web image downloaded", "url", src, "mime", mime)
	return profile.NewImage(img)
}
