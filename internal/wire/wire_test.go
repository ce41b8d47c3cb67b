package wire

import (
	"net"
	"testing"

	"github.com/stretchr/testify/require"

	"go.klb.dev/cliprelay/internal/message"
)

func TestRoundTrip(t *testing.T) {
	a, b := net.Pipe()
	ca, cb := New(a), New(b)
	defer ca.Close()
	defer cb.Close()

	text := "multi\nline"
	go func() {
		_ = ca.WriteMsg(&message.Message{Type: message.TypePush, Text: &text})
		_ = ca.WriteMsg(&message.Message{Type: message.TypeStatus})
	}()

	m, err := cb.ReadMsg()
	require.NoError(t, err)
	require.Equal(t, message.TypePush, m.Type)
	require.Equal(t, text, *m.Text)

	m, err = cb.ReadMsg()
	require.NoError(t, err)
	require.Equal(t, message.TypeStatus, m.Type)
}

func TestReadMalformed(t *testing.T) {
	a, b := net.Pipe()
	defer a.Close()
	defer b.Close()
	go func() { _, _ = a.Write([]byte("not json\n")) }()

	_, err := New(b).ReadMsg()
	require.Error(t, err)
}
