// Package profile holds the typed, synchronizable unit of clipboard content.
//
// A Profile is exactly one of *Text, *Image or *File. The set is closed: the
// interface has an unexported method, and every operation (Equal,
// ToDescriptor, BuildPayload, Materialize, Items) switches over the three
// variants. A Profile's kind never changes after construction.
package profile

import (
	"errors"
	"image"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"go.klb.dev/cliprelay/internal/message"
)

var (
	// ErrUnknownKind is returned for descriptors of an unknown type.
	ErrUnknownKind = errors.New("unknown profile kind")
	// ErrPayloadTooLarge is returned when a payload exceeds the configured limit.
	ErrPayloadTooLarge = errors.New("payload too large")
	// ErrNoPayload is returned when a profile that needs a payload has none.
	ErrNoPayload = errors.New("profile has no payload")
	// ErrUnsafeBundle is returned for a file bundle entry that would land
	// outside the bundle directory.
	ErrUnsafeBundle = errors.New("unsafe file bundle")
)

// Profile is a single typed unit of clipboard content.
type Profile interface {
	// Kind reports the variant: Text, Image or File.
	Kind() message.Kind
	// Display returns the text shown to the user (tooltip, notification).
	Display() string

	sealed()
}

// Text is plain text, optionally with the HTML fragment it was derived from.
type Text struct {
	text string
	html string
}

// NewText returns a Text profile. An empty string is a valid profile meaning
// "the clipboard was cleared".
func NewText(text string) *Text { return &Text{text: text} }

// NewHTMLText returns a Text profile that also carries the markup it came from.
func NewHTMLText(text, html string) *Text { return &Text{text: text, html: html} }

func (t *Text) Kind() message.Kind { return message.KindText }
func (t *Text) Display() string    { return t.text }
func (t *Text) Text() string       { return t.text }
func (t *Text) HTML() string       { return t.html }
func (*Text) sealed()              {}

// Image is a decoded bitmap. Images built from a descriptor carry only the
// payload name and hash until Materialize decodes the downloaded payload.
type Image struct {
	img     image.Image
	encoded []byte
	name    string

	mu   sync.Mutex
	hash string
}

// NewImage returns an Image profile for a decoded bitmap.
func NewImage(img image.Image) *Image { return &Image{img: img} }

func (i *Image) Kind() message.Kind { return message.KindImage }

func (i *Image) Display() string {
	if i.name != "" {
		return i.name
	}
	if i.img != nil {
		b := i.img.Bounds()
		return "image " + itoa(b.Dx()) + "x" + itoa(b.Dy())
	}
	return "image"
}

// Image returns the decoded bitmap, or nil before Materialize.
func (i *Image) Image() image.Image { return i.img }
func (*Image) sealed()              {}

// File is an ordered list of local file paths. Files built from a descriptor
// carry the payload name, display text and content hash until Materialize
// writes the payload to disk.
type File struct {
	paths   []string
	name    string
	display string

	mu   sync.Mutex
	hash string
}

// NewFile returns a File profile for the given paths, in order.
func NewFile(paths ...string) *File { return &File{paths: slices.Clone(paths)} }

func (f *File) Kind() message.Kind { return message.KindFile }

func (f *File) Display() string {
	if len(f.paths) == 0 {
		return f.display
	}
	names := make([]string, len(f.paths))
	for i, p := range f.paths {
		names[i] = filepath.Base(p)
	}
	return strings.Join(names, ", ")
}

// Paths returns the local paths, empty before Materialize.
func (f *File) Paths() []string { return slices.Clone(f.paths) }
func (*File) sealed()           {}
