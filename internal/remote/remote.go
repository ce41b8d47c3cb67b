// Package remote is the Remote Store Client: a flat object store addressed
// by slash-separated paths. The descriptor and the payloads it points at are
// ordinary objects.
package remote

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"go.klb.dev/cliprelay/internal/crypto"
)

// ErrNotFound is returned by Get when the object does not exist.
var ErrNotFound = errors.New("remote object not found")

// Store reads and writes whole objects.
type Store interface {
	Put(ctx context.Context, path string, data []byte) error
	Get(ctx context.Context, path string) ([]byte, error)
}

// Config selects and authenticates a Store.
type Config struct {
	// URL is https://… (WebDAV), file:///dir or mem://.
	URL      string
	User     string
	Password string
	// Token, when set, seals every object with a key derived from it.
	Token   string
	Timeout time.Duration
}

// Open returns the Store described by cfg.
func Open(cfg Config) (Store, error) {
	if cfg.URL == "" {
		return nil, errors.New("remote: no URL configured")
	}
	u, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("remote: %w", err)
	}

	var s Store
	switch u.Scheme {
	case "http", "https":
		s, err = NewHTTP(HTTPConfig{
			BaseURL:  cfg.URL,
			User:     cfg.User,
			Password: cfg.Password,
			Timeout:  cfg.Timeout,
		})
	case "file":
		s, err = NewDir(u.Path)
	case "mem":
		s = NewMemory()
	default:
		return nil, fmt.Errorf("remote: unsupported scheme %q", u.Scheme)
	}
	if err != nil {
		return nil, err
	}

	if cfg.Token != "" {
		box, err := crypto.NewBox(cfg.Token)
		if err != nil {
			return nil, err
		}
		s = NewSealed(s, box)
	}
	return s, nil
}
