package message

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDescriptorEncodeText(t *testing.T) {
	b, err := Descriptor{Clipboard: "hello", Type: KindText}.Encode()
	require.NoError(t, err)
	require.JSONEq(t, `{"File":"","Clipboard":"hello","Type":"Text"}`, string(b))
	require.NotContains(t, string(b), "Hash")
}

func TestDecodeDescriptorIgnoresUnknownFields(t *testing.T) {
	d, err := DecodeDescriptor([]byte(`{"Type":"File","File":"a.txt","Clipboard":"a.txt","Extra":42}`))
	require.NoError(t, err)
	require.Equal(t, Descriptor{File: "a.txt", Clipboard: "a.txt", Type: KindFile}, d)
}

func TestDecodeDescriptorStripsBOM(t *testing.T) {
	raw := append([]byte{0xEF, 0xBB, 0xBF}, []byte(`{"File":"","Clipboard":"x","Type":"Text"}`)...)
	d, err := DecodeDescriptor(raw)
	require.NoError(t, err)
	require.Equal(t, "x", d.Clipboard)
}

func TestDecodeDescriptorRejectsUnknownType(t *testing.T) {
	_, err := DecodeDescriptor([]byte(`{"File":"","Clipboard":"x","Type":"Group"}`))
	require.Error(t, err)

	_, err = DecodeDescriptor([]byte(`not json`))
	require.Error(t, err)
}

func TestMessageDecode(t *testing.T) {
	text := "hi"
	m := &Message{Type: TypePush, Source: "cli", Text: &text}
	b, err := m.Encode()
	require.NoError(t, err)

	got, err := Decode(b)
	require.NoError(t, err)
	require.Equal(t, TypePush, got.Type)
	require.NotNil(t, got.Text)
	require.Equal(t, "hi", *got.Text)
}
