// Package clip provides a unified interface to the system clipboard across
// platforms. Build constraints select the appropriate implementation:
//
//	clip_native.go: macOS, Windows and Linux via golang.design/x/clipboard, polling watch
//	clip_other.go:  headless / container fallback backed by Memory
//
// The clipboard is modelled as a set of named formats, each carrying raw bytes.
// Reading is split in two steps (list formats, fetch one format) so callers can
// retry each step independently while another application owns the clipboard.
package clip

import "errors"

// Format identifiers understood by the capture and apply paths.
const (
	FormatText       = "text/plain"
	FormatHTML       = "text/html"
	FormatPNG        = "image/png"
	FormatDIB        = "image/bmp"
	FormatFiles      = "text/uri-list"
	FormatDropEffect = "application/x-preferred-dropeffect"
)

var (
	// ErrUnsupportedFormat is returned for formats a backend cannot read or write.
	ErrUnsupportedFormat = errors.New("unsupported clipboard format")
	// ErrFormatUnavailable is returned when a listed format vanished before it was read.
	ErrFormatUnavailable = errors.New("clipboard format unavailable")
)

// Item is one clipboard representation: a format id and its raw payload.
type Item struct {
	Format string
	Data   []byte
}

// Reader enumerates and fetches raw clipboard formats.
type Reader interface {
	// AvailableFormats lists the format ids currently on the clipboard.
	// An empty result is not an error: the clipboard may be transiently owned
	// by another writer.
	AvailableFormats() ([]string, error)

	// GetRaw returns the payload for one format id.
	GetRaw(format string) ([]byte, error)
}

// Writer replaces the clipboard contents.
type Writer interface {
	// Write sets the clipboard to exactly the provided items. Backends that
	// cannot hold several formats at once keep the richest one they support.
	Write(items []Item) error
}

// Backend is the interface that all platform clipboard implementations satisfy.
type Backend interface {
	Reader
	Writer

	// Name returns a human-readable name for the backend.
	Name() string

	// Watch returns a channel that receives a signal whenever the clipboard
	// changes. The channel is never closed. Signals coalesce: a burst of
	// changes may be delivered as a single receive.
	Watch() <-chan struct{}

	// Close releases any resources held by the backend.
	Close()
}

// notify performs a non-blocking send on a 1-buffered watch channel.
func notify(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}
