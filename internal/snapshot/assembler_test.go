package snapshot

import (
	"bytes"
	"context"
	"encoding/binary"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/image/bmp"

	"go.klb.dev/cliprelay/internal/clip"
	"go.klb.dev/cliprelay/internal/retry"
)

func fastAssembler(r clip.Reader, opts ...Option) *Assembler {
	opts = append([]Option{
		WithCaptureRetry(retry.Fixed(10, 0)),
		WithFormatRetry(retry.Fixed(2, 0)),
	}, opts...)
	return NewAssembler(r, opts...)
}

func testImage(c color.Color) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, 3, 2))
	for y := range 2 {
		for x := range 3 {
			img.Set(x, y, c)
		}
	}
	return img
}

func pngBytes(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func dibBytes(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, bmp.Encode(&buf, img))
	return buf.Bytes()[bmpFileHeaderLen:]
}

func TestCaptureText(t *testing.T) {
	m := clip.NewMemory()
	m.Set(clip.Item{Format: clip.FormatText, Data: []byte("hello\x00")})

	s := fastAssembler(m).Capture(context.Background())
	require.NotNil(t, s.Text)
	require.Equal(t, "hello", *s.Text)
	require.Nil(t, s.HTML)
	require.Nil(t, s.Image)
}

func TestCaptureEmptyAfterRetries(t *testing.T) {
	m := clip.NewMemory()
	m.Set(clip.Item{Format: clip.FormatText, Data: []byte("late")})
	m.EmptyFor(11)

	retries := 0
	s := fastAssembler(m, WithRetryHook(func() { retries++ })).Capture(context.Background())

	require.Equal(t, 11, m.ListCalls())
	require.Equal(t, 10, retries)
	require.NotNil(t, s.Text)
	require.Equal(t, "", *s.Text)
	require.Nil(t, s.HTML)
	require.Nil(t, s.Image)
	require.Nil(t, s.Files)
	require.Nil(t, s.Effect)
	require.Zero(t, m.ReadCalls(clip.FormatText))
}

func TestCaptureRecoversWithinRetries(t *testing.T) {
	m := clip.NewMemory()
	m.Set(clip.Item{Format: clip.FormatText, Data: []byte("eventually")})
	m.EmptyFor(4)

	s := fastAssembler(m).Capture(context.Background())
	require.Equal(t, 5, m.ListCalls())
	require.Equal(t, "eventually", *s.Text)
}

func TestResolverRetriedIndependently(t *testing.T) {
	m := clip.NewMemory()
	m.Set(
		clip.Item{Format: clip.FormatText, Data: []byte("plain")},
		clip.Item{Format: clip.FormatHTML, Data: []byte("<b>rich</b>")},
	)
	m.FailReads(clip.FormatText, 3)

	s := fastAssembler(m).Capture(context.Background())
	require.Equal(t, 3, m.ReadCalls(clip.FormatText))
	require.Nil(t, s.Text, "text failed all attempts")
	require.NotNil(t, s.HTML, "html resolver still ran")
	require.Equal(t, "<b>rich</b>", *s.HTML)
}

func TestResolverTransientFailureRecovers(t *testing.T) {
	m := clip.NewMemory()
	m.Set(clip.Item{Format: clip.FormatText, Data: []byte("ok")})
	m.FailReads(clip.FormatText, 2)

	s := fastAssembler(m).Capture(context.Background())
	require.Equal(t, 3, m.ReadCalls(clip.FormatText))
	require.Equal(t, "ok", *s.Text)
}

func TestDecodeFailureIsNotRetried(t *testing.T) {
	m := clip.NewMemory()
	m.Set(
		clip.Item{Format: clip.FormatPNG, Data: []byte("not a png")},
		clip.Item{Format: clip.FormatText, Data: []byte("alt")},
	)

	s := fastAssembler(m).Capture(context.Background())
	require.Equal(t, 1, m.ReadCalls(clip.FormatPNG))
	require.Nil(t, s.Image)
	require.Equal(t, "alt", *s.Text)
}

func TestDIBWinsOverPNGByDefault(t *testing.T) {
	red := testImage(color.NRGBA{R: 255, A: 255})
	blue := testImage(color.NRGBA{B: 255, A: 255})
	m := clip.NewMemory()
	m.Set(
		clip.Item{Format: clip.FormatPNG, Data: pngBytes(t, blue)},
		clip.Item{Format: clip.FormatDIB, Data: dibBytes(t, red)},
	)

	s := fastAssembler(m).Capture(context.Background())
	require.NotNil(t, s.Image)
	require.Zero(t, m.ReadCalls(clip.FormatPNG), "png skipped once the bitmap is decoded")
	r, _, b, _ := s.Image.At(1, 1).RGBA()
	require.NotZero(t, r)
	require.Zero(t, b)
}

// The tie-break between two bitmap formats is policy, not a fixed rule.
func TestResolverOrderIsConfigurable(t *testing.T) {
	red := testImage(color.NRGBA{R: 255, A: 255})
	blue := testImage(color.NRGBA{B: 255, A: 255})
	m := clip.NewMemory()
	m.Set(
		clip.Item{Format: clip.FormatPNG, Data: pngBytes(t, blue)},
		clip.Item{Format: clip.FormatDIB, Data: dibBytes(t, red)},
	)

	s := fastAssembler(m, WithResolverOrder(clip.FormatPNG, "unknown/format")).Capture(context.Background())
	require.Zero(t, m.ReadCalls(clip.FormatDIB))
	_, _, b, _ := s.Image.At(0, 0).RGBA()
	require.NotZero(t, b)
}

func TestCaptureFilesAndEffect(t *testing.T) {
	effect := make([]byte, 4)
	binary.LittleEndian.PutUint32(effect, 2)
	m := clip.NewMemory()
	m.Set(
		clip.Item{Format: clip.FormatFiles, Data: []byte("# comment\r\nfile:///tmp/a%20b.png\r\n/tmp/c.txt\r\n")},
		clip.Item{Format: clip.FormatDropEffect, Data: effect},
	)

	s := fastAssembler(m).Capture(context.Background())
	require.Equal(t, []string{"/tmp/a b.png", "/tmp/c.txt"}, s.Files)
	require.NotNil(t, s.Effect)
	require.Equal(t, EffectMove, *s.Effect)
}

func TestCaptureCanceled(t *testing.T) {
	m := clip.NewMemory()
	m.Set(clip.Item{Format: clip.FormatText, Data: []byte("x")})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := fastAssembler(m).Capture(ctx)
	require.NotNil(t, s.Text)
	require.Equal(t, "", *s.Text)
}
