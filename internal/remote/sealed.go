package remote

import (
	"context"
	"fmt"

	"go.klb.dev/cliprelay/internal/crypto"
)

// Sealed encrypts objects before they reach the wrapped store, so the
// server only ever holds ciphertext.
type Sealed struct {
	inner Store
	box   *crypto.Box
}

func NewSealed(inner Store, box *crypto.Box) *Sealed {
	return &Sealed{inner: inner, box: box}
}

func (s *Sealed) Put(ctx context.Context, p string, data []byte) error {
	sealed, err := s.box.Seal(data)
	if err != nil {
		return fmt.Errorf("seal %s: %w", p, err)
	}
	return s.inner.Put(ctx, p, sealed)
}

func (s *Sealed) Get(ctx context.Context, p string) ([]byte, error) {
	sealed, err := s.inner.Get(ctx, p)
	if err != nil {
		return nil, err
	}
	data, err := s.box.Open(sealed)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", p, err)
	}
	return data, nil
}
