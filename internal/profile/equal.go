package profile

import (
	"context"
	"slices"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Equal reports whether a and b hold the same content. It is the single
// check deciding whether a change propagates in either direction.
//
// Profiles of different kinds are never equal. Text compares normalized
// strings; Image compares pixel hashes; File compares the path list and, when
// the paths differ (as they do across devices), content hashes. Hashing may
// read files, so Equal honours ctx and returns its error if canceled.
func Equal(ctx context.Context, a, b Profile) (bool, error) {
	if a == nil || b == nil {
		return a == nil && b == nil, nil
	}
	if a.Kind() != b.Kind() {
		return false, nil
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}

	switch x := a.(type) {
	case *Text:
		y := b.(*Text)
		return normalizeText(x.text) == normalizeText(y.text), nil

	case *Image:
		y := b.(*Image)
		if x == y {
			return true, nil
		}
		return sameHash(ctx, x.Hash, y.Hash)

	case *File:
		y := b.(*File)
		if x == y {
			return true, nil
		}
		if len(x.paths) > 0 && slices.Equal(x.paths, y.paths) {
			return true, nil
		}
		return sameHash(ctx, x.Hash, y.Hash)
	}
	return false, nil
}

func sameHash(ctx context.Context, a, b func(context.Context) (string, error)) (bool, error) {
	ha, err := a(ctx)
	if err != nil {
		return false, err
	}
	hb, err := b(ctx)
	if err != nil {
		return false, err
	}
	return ha != "" && ha == hb, nil
}

// normalizeText folds line endings and Unicode composition so the same text
// copied on different platforms compares equal.
func normalizeText(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return norm.NFC.String(s)
}
