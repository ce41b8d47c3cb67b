// Package snapshot assembles one normalized view of the clipboard out of the
// raw formats a clip.Reader exposes.
//
// A Snapshot is partial by nature: every field is optional and several may be
// present at once (an image copied from a browser usually arrives as image,
// html and text). Choosing between them is the profile package's job.
package snapshot

import (
	"fmt"
	"image"
)

// Effect is the drag-drop effect a file list was offered with.
type Effect uint8

const (
	EffectNone Effect = iota
	EffectCopy
	EffectMove
)

func (e Effect) String() string {
	switch e {
	case EffectCopy:
		return "copy"
	case EffectMove:
		return "move"
	default:
		return "none"
	}
}

// Snapshot is the normalized bag of clipboard fields captured in one pass.
// A nil field was not offered or could not be resolved.
type Snapshot struct {
	Text   *string
	HTML   *string
	Image  image.Image
	Files  []string
	Effect *Effect
}

// EmptyText returns the snapshot of a cleared clipboard.
func EmptyText() *Snapshot {
	empty := ""
	return &Snapshot{Text: &empty}
}

// IsEmpty reports whether no content field is populated. The drop effect
// alone does not count as content.
func (s *Snapshot) IsEmpty() bool {
	return (s.Text == nil || *s.Text == "") &&
		(s.HTML == nil || *s.HTML == "") &&
		s.Image == nil &&
		len(s.Files) == 0
}

// EffectOr returns the drop effect, or def when none was offered.
func (s *Snapshot) EffectOr(def Effect) Effect {
	if s.Effect == nil {
		return def
	}
	return *s.Effect
}

// FormatError records a single format that could not be resolved.
// It is logged and never aborts sibling resolvers.
type FormatError struct {
	Format string
	Err    error
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("resolve %s: %v", e.Format, e.Err)
}

func (e *FormatError) Unwrap() error { return e.Err }
