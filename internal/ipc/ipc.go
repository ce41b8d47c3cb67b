// Package ipc is the local control channel between cliprelay CLI commands
// and a running daemon: newline-delimited JSON over a Unix domain socket
// (a named pipe on Windows). One request and one response per connection.
package ipc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"sync"
	"time"

	"go.klb.dev/cliprelay/internal/message"
	"go.klb.dev/cliprelay/internal/wire"
)

const requestTimeout = 5 * time.Second

// SocketPath returns the control socket path, $CLIPRELAY_SOCKET if set.
func SocketPath() string {
	if s := os.Getenv("CLIPRELAY_SOCKET"); s != "" {
		return s
	}
	return socketPath()
}

// IsRunning reports whether a daemon appears to be listening. It does a
// cheap dial-and-close; no data is exchanged.
func IsRunning() bool {
	c, err := dialIPC(SocketPath())
	if err != nil {
		return false
	}
	_ = c.Close()
	return true
}

// Listen creates a listener on the control socket, removing a stale socket
// left by a crashed run.
func Listen() (net.Listener, error) {
	path := SocketPath()
	_ = os.Remove(path)
	return listenIPC(path)
}

// Handler answers one control request.
type Handler func(ctx context.Context, req *message.Message) *message.Message

// Serve accepts connections on ln until ctx is done and answers each
// request with h. It closes ln on return.
func Serve(ctx context.Context, ln net.Listener, h Handler) error {
	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()

	var wg sync.WaitGroup
	defer wg.Wait()
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			serveConn(ctx, wire.New(conn), h)
		}()
	}
}

func serveConn(ctx context.Context, c *wire.Conn, h Handler) {
	defer c.Close()
	c.SetReadDeadline(requestTimeout)
	req, err := c.ReadMsg()
	if err != nil {
		slog.Debug("ipc read failed", "err", err)
		return
	}
	c.SetReadDeadline(0)

	resp := h(ctx, req)
	if resp == nil {
		resp = &message.Message{Type: message.TypeOK}
	}
	if err := c.WriteMsg(resp); err != nil {
		slog.Debug("ipc write failed", "err", err)
	}
}

// Call sends req to the daemon and waits for its response. An ERROR
// response is returned as an error.
func Call(ctx context.Context, req *message.Message) (*message.Message, error) {
	conn, err := dialIPC(SocketPath())
	if err != nil {
		return nil, fmt.Errorf("cliprelay daemon not reachable at %s: %w", SocketPath(), err)
	}
	c := wire.New(conn)
	defer c.Close()

	stop := context.AfterFunc(ctx, func() { _ = conn.SetDeadline(time.Now()) })
	defer stop()

	if err := c.WriteMsg(req); err != nil {
		return nil, fmt.Errorf("ipc send: %w", err)
	}
	resp, err := c.ReadMsg()
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("ipc receive: %w", err)
	}
	if resp.Type == message.TypeError {
		return resp, errors.New(resp.Error)
	}
	return resp, nil
}
