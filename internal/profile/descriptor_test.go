package profile

import (
	"context"
	"image/color"
	"testing"

	"github.com/stretchr/testify/require"

	"go.klb.dev/cliprelay/internal/message"
	"go.klb.dev/cliprelay/internal/snapshot"
)

func TestTextDescriptorWireForm(t *testing.T) {
	p := Derive(&snapshot.Snapshot{Text: str("hello")})
	d, err := ToDescriptor(context.Background(), p)
	require.NoError(t, err)

	b, err := d.Encode()
	require.NoError(t, err)
	require.JSONEq(t, `{"File":"","Clipboard":"hello","Type":"Text"}`, string(b))
}

func TestDescriptorRoundTripText(t *testing.T) {
	ctx := context.Background()
	for _, p := range []Profile{NewText(""), NewText("hi there"), NewHTMLText("x", "<i>x</i>")} {
		d, err := ToDescriptor(ctx, p)
		require.NoError(t, err)
		q, err := FromDescriptor(d)
		require.NoError(t, err)
		require.True(t, mustEqual(t, p, q))
	}
}

func TestDescriptorRoundTripFile(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	single := NewFile(writeFile(t, dir, "notes.txt", "n"))
	multi := NewFile(writeFile(t, dir, "a.txt", "a"), writeFile(t, dir, "b.txt", "b"))

	for _, p := range []*File{single, multi} {
		d, err := ToDescriptor(ctx, p)
		require.NoError(t, err)
		require.Equal(t, message.KindFile, d.Type)
		require.NotEmpty(t, d.Hash)

		q, err := FromDescriptor(d)
		require.NoError(t, err)
		require.True(t, NeedsPayload(q))
		require.True(t, mustEqual(t, p, q))
		require.Equal(t, p.Display(), q.Display())
	}

	d, _ := ToDescriptor(ctx, single)
	require.Equal(t, "notes.txt", d.File)
	d, _ = ToDescriptor(ctx, multi)
	require.True(t, isMultiFile(d.File), d.File)
}

func TestImageDescriptor(t *testing.T) {
	p := NewImage(solid(2, 2, color.White))
	d, err := ToDescriptor(context.Background(), p)
	require.NoError(t, err)
	require.Equal(t, message.KindImage, d.Type)
	require.Regexp(t, `^image_[0-9a-f]{12}\.png$`, d.File)

	q, err := FromDescriptor(d)
	require.NoError(t, err)
	require.True(t, mustEqual(t, p, q), "descriptor hash identifies the pixels")
}

func TestFromDescriptorErrors(t *testing.T) {
	_, err := FromDescriptor(message.Descriptor{Type: message.KindImage})
	require.ErrorIs(t, err, ErrNoPayload)
	_, err = FromDescriptor(message.Descriptor{Type: message.KindFile})
	require.ErrorIs(t, err, ErrNoPayload)
	_, err = FromDescriptor(message.Descriptor{Type: "Group", File: "x"})
	require.ErrorIs(t, err, ErrUnknownKind)
}
