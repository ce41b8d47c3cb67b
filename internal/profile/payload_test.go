package profile

import (
	"archive/zip"
	"bytes"
	"context"
	"image/color"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"go.klb.dev/cliprelay/internal/clip"
	"go.klb.dev/cliprelay/internal/message"
)

func TestTextHasNoPayload(t *testing.T) {
	pl, err := BuildPayload(context.Background(), NewText("x"), 0)
	require.NoError(t, err)
	require.Nil(t, pl)
}

func TestSingleFilePayloadMaterializes(t *testing.T) {
	ctx := context.Background()
	src := NewFile(writeFile(t, t.TempDir(), "notes.txt", "remember the milk"))
	d, err := ToDescriptor(ctx, src)
	require.NoError(t, err)
	pl, err := BuildPayload(ctx, src, 0)
	require.NoError(t, err)
	require.Equal(t, d.File, pl.Name)

	remote, err := FromDescriptor(d)
	require.NoError(t, err)
	dst := t.TempDir()
	local, err := Materialize(remote, pl.Data, dst)
	require.NoError(t, err)

	paths := local.(*File).Paths()
	require.Len(t, paths, 1)
	require.True(t, strings.HasPrefix(paths[0], dst))
	content, err := os.ReadFile(paths[0])
	require.NoError(t, err)
	require.Equal(t, "remember the milk", string(content))
	require.True(t, mustEqual(t, src, local))
}

func TestMultiFilePayloadMaterializes(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	src := NewFile(writeFile(t, dir, "one.txt", "1"), writeFile(t, t.TempDir(), "one.txt", "uno"))
	d, err := ToDescriptor(ctx, src)
	require.NoError(t, err)
	pl, err := BuildPayload(ctx, src, 0)
	require.NoError(t, err)

	remote, _ := FromDescriptor(d)
	local, err := Materialize(remote, pl.Data, t.TempDir())
	require.NoError(t, err)

	paths := local.(*File).Paths()
	require.Len(t, paths, 2)
	got0, _ := os.ReadFile(paths[0])
	got1, _ := os.ReadFile(paths[1])
	require.Equal(t, "1", string(got0))
	require.Equal(t, "uno", string(got1))
	require.True(t, mustEqual(t, src, local))
}

func TestBundleEntryOutsideRootIsRejected(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	fw, err := zw.Create("../escaped.txt")
	require.NoError(t, err)
	_, err = fw.Write([]byte("x"))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	remote, err := FromDescriptor(message.Descriptor{Type: message.KindFile, File: "cliprelay-files-0123456789ab.zip"})
	require.NoError(t, err)
	parent := t.TempDir()
	dst := filepath.Join(parent, "dl")
	_, err = Materialize(remote, buf.Bytes(), dst)
	require.ErrorIs(t, err, ErrUnsafeBundle)
	require.NoFileExists(t, filepath.Join(parent, "escaped.txt"))
	require.NoFileExists(t, filepath.Join(dst, "escaped.txt"))
}

func TestPayloadTooLarge(t *testing.T) {
	f := NewFile(writeFile(t, t.TempDir(), "big.bin", strings.Repeat("x", 100)))
	_, err := BuildPayload(context.Background(), f, 10)
	require.ErrorIs(t, err, ErrPayloadTooLarge)

	img := NewImage(solid(64, 64, color.White))
	_, err = BuildPayload(context.Background(), img, 10)
	require.ErrorIs(t, err, ErrPayloadTooLarge)
}

func TestImagePayloadMaterializes(t *testing.T) {
	ctx := context.Background()
	src := NewImage(solid(5, 3, color.NRGBA{B: 200, A: 255}))
	d, err := ToDescriptor(ctx, src)
	require.NoError(t, err)
	pl, err := BuildPayload(ctx, src, 0)
	require.NoError(t, err)

	remote, _ := FromDescriptor(d)
	local, err := Materialize(remote, pl.Data, t.TempDir())
	require.NoError(t, err)
	require.NotNil(t, local.(*Image).Image())
	require.True(t, mustEqual(t, src, local))

	_, err = Materialize(remote, []byte("garbage"), t.TempDir())
	require.Error(t, err)
}

func TestItems(t *testing.T) {
	items, err := Items(NewHTMLText("hi", "<b>hi</b>"))
	require.NoError(t, err)
	require.Equal(t, []clip.Item{
		{Format: clip.FormatText, Data: []byte("hi")},
		{Format: clip.FormatHTML, Data: []byte("<b>hi</b>")},
	}, items)

	items, err = Items(NewFile("/tmp/a b.txt"))
	require.NoError(t, err)
	require.Equal(t, clip.FormatFiles, items[0].Format)
	require.Equal(t, "file:///tmp/a%20b.txt\r\n", string(items[0].Data))

	items, err = Items(NewImage(solid(1, 1, color.White)))
	require.NoError(t, err)
	require.Equal(t, clip.FormatPNG, items[0].Format)

	_, err = Items(&File{name: "remote.txt"})
	require.ErrorIs(t, err, ErrNoPayload)
}
