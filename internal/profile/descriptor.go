package profile

import (
	"context"
	"fmt"
	"path/filepath"

	"go.klb.dev/cliprelay/internal/message"
)

const multiFilePrefix = "cliprelay-files-"

// ToDescriptor returns the remote commit record for p. Image and File
// profiles are hashed to name their payload, which may read files.
func ToDescriptor(ctx context.Context, p Profile) (message.Descriptor, error) {
	switch v := p.(type) {
	case *Text:
		return message.Descriptor{Clipboard: v.text, Type: message.KindText}, nil

	case *Image:
		h, err := v.Hash(ctx)
		if err != nil {
			return message.Descriptor{}, err
		}
		name := v.payloadName(h)
		return message.Descriptor{File: name, Clipboard: name, Type: message.KindImage, Hash: h}, nil

	case *File:
		h, err := v.Hash(ctx)
		if err != nil {
			return message.Descriptor{}, err
		}
		return message.Descriptor{File: v.payloadName(h), Clipboard: v.Display(), Type: message.KindFile, Hash: h}, nil
	}
	return message.Descriptor{}, fmt.Errorf("%w: %T", ErrUnknownKind, p)
}

// FromDescriptor builds the profile a remote descriptor describes. Image and
// File profiles need Materialize with the downloaded payload before they can
// be applied to the clipboard.
func FromDescriptor(d message.Descriptor) (Profile, error) {
	switch d.Type {
	case message.KindText:
		return NewText(d.Clipboard), nil
	case message.KindImage:
		if d.File == "" {
			return nil, fmt.Errorf("image descriptor: %w", ErrNoPayload)
		}
		return &Image{name: filepath.Base(d.File), hash: d.Hash}, nil
	case message.KindFile:
		if d.File == "" {
			return nil, fmt.Errorf("file descriptor: %w", ErrNoPayload)
		}
		return &File{name: filepath.Base(d.File), display: d.Clipboard, hash: d.Hash}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownKind, d.Type)
}

// NeedsPayload reports whether p must be materialized from a payload before
// it can be applied.
func NeedsPayload(p Profile) bool {
	switch v := p.(type) {
	case *Image:
		return v.img == nil
	case *File:
		return len(v.paths) == 0
	}
	return false
}

func (i *Image) payloadName(hash string) string {
	if i.name != "" {
		return i.name
	}
	return "image_" + shortHash(hash) + ".png"
}

func (f *File) payloadName(hash string) string {
	if f.name != "" {
		return f.name
	}
	if len(f.paths) == 1 {
		return filepath.Base(f.paths[0])
	}
	return multiFilePrefix + shortHash(hash) + ".zip"
}

func isMultiFile(name string) bool {
	return len(name) > len(multiFilePrefix) && name[:len(multiFilePrefix)] == multiFilePrefix && filepath.Ext(name) == ".zip"
}
