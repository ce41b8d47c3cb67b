//go:build darwin || linux || windows

package clip

import (
	"bytes"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.design/x/clipboard"
)

const nativePollInterval = 250 * time.Millisecond

type nativeBackend struct {
	watchCh chan struct{}
	done    chan struct{}
	once    sync.Once

	lastText []byte
	lastImg  []byte
}

// New returns the native clipboard backend, or a headless in-memory backend
// if the display environment is unavailable (e.g. a headless server without
// X11 or Wayland). clipboard.Init is called here rather than in init() so
// that CLI sub-commands that never construct a Backend don't log warnings.
func New() Backend {
	if err := clipboard.Init(); err != nil {
		slog.Warn("clipboard unavailable, running headless", "err", err)
		return NewMemory()
	}
	b := &nativeBackend{
		watchCh: make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
	b.lastText = clipboard.Read(clipboard.FmtText)
	b.lastImg = clipboard.Read(clipboard.FmtImage)
	go b.poll()
	return b
}

func (b *nativeBackend) Name() string { return "native clipboard (poll)" }

func (b *nativeBackend) poll() {
	t := time.NewTicker(nativePollInterval)
	defer t.Stop()
	for {
		select {
		case <-b.done:
			return
		case <-t.C:
			text := clipboard.Read(clipboard.FmtText)
			img := clipboard.Read(clipboard.FmtImage)
			if !bytes.Equal(text, b.lastText) || !bytes.Equal(img, b.lastImg) {
				b.lastText = text
				b.lastImg = img
				notify(b.watchCh)
			}
		}
	}
}

func (b *nativeBackend) AvailableFormats() ([]string, error) {
	var formats []string
	if clipboard.Read(clipboard.FmtText) != nil {
		formats = append(formats, FormatText)
	}
	if clipboard.Read(clipboard.FmtImage) != nil {
		formats = append(formats, FormatPNG)
	}
	return formats, nil
}

func (b *nativeBackend) GetRaw(format string) ([]byte, error) {
	var data []byte
	switch format {
	case FormatText:
		data = clipboard.Read(clipboard.FmtText)
	case FormatPNG:
		data = clipboard.Read(clipboard.FmtImage)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
	if data == nil {
		return nil, fmt.Errorf("%w: %s", ErrFormatUnavailable, format)
	}
	return data, nil
}

// Write keeps a single representation: the native library replaces the whole
// clipboard on every write, so an image wins over its text fallback.
func (b *nativeBackend) Write(items []Item) error {
	var text, img []byte
	for _, it := range items {
		switch it.Format {
		case FormatPNG:
			img = it.Data
		case FormatText:
			text = it.Data
		default:
			slog.Debug("native clipboard skips format", "format", it.Format)
		}
	}
	switch {
	case img != nil:
		clipboard.Write(clipboard.FmtImage, img)
	case text != nil:
		clipboard.Write(clipboard.FmtText, text)
	default:
		return fmt.Errorf("%w: none of %d items writable", ErrUnsupportedFormat, len(items))
	}
	return nil
}

func (b *nativeBackend) Watch() <-chan struct{} { return b.watchCh }
func (b *nativeBackend) Close()                 { b.once.Do(func() { close(b.done) }) }
