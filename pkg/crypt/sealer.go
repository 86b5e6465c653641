// Package crypt seals broker credentials before they are stored. A sealed credential can only be
// opened by the holder of the identity it was sealed for.
package crypt

import (
	"bytes"
	"fmt"
	"io"

	"filippo.io/age"
)

type Sealer struct {
	identity  *age.X25519Identity
	recipient *age.X25519Recipient
}

// NewSealer parses an age X25519 secret key ("AGE-SECRET-KEY-1...").
func NewSealer(identity string) (*Sealer, error) {
	id, err := age.ParseX25519Identity(identity)
	if err != nil {
		return nil, fmt.Errorf("failed to parse credential identity: %v", err)
	}

	return &Sealer{
		identity:  id,
		recipient: id.Recipient(),
	}, nil
}

func (s Sealer) Seal(plaintext string) ([]byte, error) {
	var buf bytes.Buffer
	w, err := age.Encrypt(&buf, s.recipient)
	if err != nil {
		return nil, fmt.Errorf("failed to seal credential: %v", err)
	}

	if _, err := io.WriteString(w, plaintext); err != nil {
		return nil, fmt.Errorf("failed to seal credential: %v", err)
	}

	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("failed to seal credential: %v", err)
	}

	return buf.Bytes(), nil
}

func (s Sealer) Open(sealed []byte) (string, error) {
	r, err := age.Decrypt(bytes.NewReader(sealed), s.identity)
	if err != nil {
		return "", fmt.Errorf("failed to open credential: %v", err)
	}

	plaintext, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("failed to open credential: %v", err)
	}

	return string(plaintext), nil
}
