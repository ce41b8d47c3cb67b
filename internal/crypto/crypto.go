// Package crypto seals objects written to the remote store with NaCl secretbox.
//
// A 32-byte symmetric key is derived from the shared token using HKDF-SHA256.
// Every object is sealed with a random 24-byte nonce prepended to the
// ciphertext:
//
//	[ 24-byte nonce ][ ciphertext ]
//
// Devices sharing a remote store must share the token; an object sealed with
// another token fails to open rather than decoding to garbage.
package crypto

import (
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
	"golang.org/x/crypto/nacl/secretbox"
)

const (
	keySize   = 32
	nonceSize = 24
)

var hkdfInfo = []byte("cliprelay-remote-v1")

// ErrOpen is returned when an object cannot be authenticated with the key.
var ErrOpen = errors.New("decryption failed (wrong token?)")

// Box seals and opens objects with one derived key. The zero value is not usable.
type Box struct {
	key [keySize]byte
}

// NewBox derives a Box from token. Both sides must use the same token.
func NewBox(token string) (*Box, error) {
	if token == "" {
		return nil, errors.New("crypto: empty token")
	}
	h := hkdf.New(sha256.New, []byte(token), nil, hkdfInfo)
	b := &Box{}
	if _, err := io.ReadFull(h, b.key[:]); err != nil {
		return nil, fmt.Errorf("key derivation: %w", err)
	}
	return b, nil
}

// Seal encrypts plaintext, returning nonce+ciphertext.
func (b *Box) Seal(plaintext []byte) ([]byte, error) {
	var nonce [nonceSize]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return nil, fmt.Errorf("nonce generation: %w", err)
	}
	return secretbox.Seal(nonce[:], plaintext, &nonce, &b.key), nil
}

// Open decrypts nonce+ciphertext produced by Seal.
func (b *Box) Open(sealed []byte) ([]byte, error) {
	if len(sealed) < nonceSize+secretbox.Overhead {
		return nil, fmt.Errorf("%w: object too short", ErrOpen)
	}
	var nonce [nonceSize]byte
	copy(nonce[:], sealed[:nonceSize])
	plain, ok := secretbox.Open(nil, sealed[nonceSize:], &nonce, &b.key)
	if !ok {
		return nil, ErrOpen
	}
	return plain, nil
}
