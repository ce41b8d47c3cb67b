// Package message defines the cliprelay wire formats.
//
// Two formats live here:
//
//   - Descriptor, the small JSON commit record stored next to a payload in the
//     remote store. Field names are fixed for compatibility with other clients:
//     {"File": "...", "Clipboard": "...", "Type": "Text|Image|File"}.
//   - Message, the newline-delimited JSON envelope spoken on the daemon's
//     local control socket by the push/pull/status sub-commands.
package message

import (
	"encoding/json"
	"fmt"
	"time"
)

// Kind identifies the kind of clipboard content a descriptor refers to.
type Kind string

const (
	KindText  Kind = "Text"
	KindImage Kind = "Image"
	KindFile  Kind = "File"
)

// Valid reports whether k is one of the known kinds.
func (k Kind) Valid() bool {
	switch k {
	case KindText, KindImage, KindFile:
		return true
	default:
		return false
	}
}

// Descriptor is the remote commit record for one clipboard profile.
//
// File names a payload object under the payload directory and must be
// uploaded before the descriptor. Hash is an optional hex SHA-256 content
// identity; readers that do not know it ignore it.
type Descriptor struct {
	File      string `json:"File"`
	Clipboard string `json:"Clipboard"`
	Type      Kind   `json:"Type"`
	Hash      string `json:"Hash,omitempty"`
}

// Encode serialises the descriptor to JSON without a trailing newline.
func (d Descriptor) Encode() ([]byte, error) {
	return json.Marshal(d)
}

// DecodeDescriptor parses a descriptor. Unknown fields are ignored; a leading
// UTF-8 byte order mark, as written by some clients, is tolerated.
func DecodeDescriptor(b []byte) (Descriptor, error) {
	if len(b) >= 3 && b[0] == 0xEF && b[1] == 0xBB && b[2] == 0xBF {
		b = b[3:]
	}
	var d Descriptor
	if err := json.Unmarshal(b, &d); err != nil {
		return Descriptor{}, fmt.Errorf("descriptor decode: %w", err)
	}
	if !d.Type.Valid() {
		return Descriptor{}, fmt.Errorf("descriptor decode: unknown type %q", d.Type)
	}
	return d, nil
}

// Type identifies a control message.
type Type string

const (
	TypePush           Type = "PUSH"
	TypePull           Type = "PULL"
	TypeStatus         Type = "STATUS"
	TypeStatusResponse Type = "STATUS_RESPONSE"
	TypeOK             Type = "OK"
	TypeError          Type = "ERROR"
)

// Message is the control-socket envelope.
type Message struct {
	Type   Type   `json:"type"`
	Source string `json:"source,omitempty"`

	// PUSH: optional text to publish instead of capturing the clipboard.
	Text *string `json:"text,omitempty"`

	// STATUS_RESPONSE
	State    string      `json:"state,omitempty"`
	Current  *Descriptor `json:"current,omitempty"`
	Remote   string      `json:"remote,omitempty"`
	LastSync time.Time   `json:"last_sync,omitzero"`
	LastErr  string      `json:"last_error,omitempty"`

	// OK (pull) carries the applied descriptor; ERROR carries the reason.
	Applied *Descriptor `json:"applied,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// Encode serialises the message to JSON without a trailing newline.
func (m *Message) Encode() ([]byte, error) {
	return json.Marshal(m)
}

// Decode deserialises a message from raw JSON bytes.
func Decode(b []byte) (*Message, error) {
	var m Message
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("message decode: %w", err)
	}
	return &m, nil
}
