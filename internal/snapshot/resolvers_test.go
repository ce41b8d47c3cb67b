package snapshot

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHTMLFragmentMarkers(t *testing.T) {
	raw := "Version:0.9\r\nStartHTML:0000000105\r\n<html><body>\r\n<!--StartFragment--><img src=\"https://x/y.png\"/><!--EndFragment-->\r\n</body></html>"
	require.Equal(t, `<img src="https://x/y.png"/>`, HTMLFragment(raw))
}

func TestHTMLFragmentOffsets(t *testing.T) {
	body := "<html><body><i>frag</i></body></html>"
	header := "Version:0.9\r\nStartFragment:%010d\r\nEndFragment:%010d\r\n"
	headerLen := len(fmt.Sprintf(header, 0, 0))
	start := headerLen + len("<html><body>")
	end := start + len("<i>frag</i>")
	raw := fmt.Sprintf(header, start, end) + body
	require.Equal(t, "<i>frag</i>", HTMLFragment(raw))
}

func TestHTMLFragmentPlain(t *testing.T) {
	require.Equal(t, "<p>hi</p>", HTMLFragment("<p>hi</p>"))
}

func TestDropEffectValues(t *testing.T) {
	for _, tc := range []struct {
		raw  []byte
		want Effect
	}{
		{[]byte{1, 0, 0, 0}, EffectCopy},
		{[]byte{2, 0, 0, 0}, EffectMove},
		{[]byte{5, 0, 0, 0}, EffectCopy},
		{[]byte{0}, EffectNone},
	} {
		s := &Snapshot{}
		require.NoError(t, resolveDropEffect(tc.raw, s))
		require.Equal(t, tc.want, *s.Effect, "raw %v", tc.raw)
	}
	require.Error(t, resolveDropEffect(nil, &Snapshot{}))
}

func TestFileURIWindowsDrive(t *testing.T) {
	p, err := fileURIPath("file:///C:/Users/me/a.txt")
	require.NoError(t, err)
	require.Equal(t, "C:/Users/me/a.txt", p)

	p, err = fileURIPath("file://server/share/a.txt")
	require.NoError(t, err)
	require.Equal(t, "//server/share/a.txt", p)
}

func TestDIBRejectsShortHeader(t *testing.T) {
	_, err := dibToBMP([]byte{1, 2, 3})
	require.Error(t, err)
}

func TestSnapshotIsEmpty(t *testing.T) {
	require.True(t, EmptyText().IsEmpty())
	e := EffectCopy
	require.True(t, (&Snapshot{Effect: &e}).IsEmpty())
	require.False(t, (&Snapshot{Files: []string{"/a"}}).IsEmpty())
	require.Equal(t, EffectCopy, (&Snapshot{Effect: &e}).EffectOr(EffectNone))
	require.Equal(t, EffectNone, (&Snapshot{}).EffectOr(EffectNone))
}
