// Package shadow seals server-only recovery state stored next to a revision.
//
// Sealed bytes are nonce || XChaCha20-Poly1305 ciphertext. The game id and
// revision index are bound as associated data, so a shadow copied onto a
// different revision fails to open.
package shadow

import (
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

const keyInfo = "gamerev shadow state v1"

var ErrCorrupt = errors.New("shadow: sealed state is corrupt or belongs to another revision")

type Sealer struct {
	aead cipher.AEAD
}

// NewSealer derives the sealing key from secret with HKDF-SHA256.
func NewSealer(secret []byte) (*Sealer, error) {
	if len(secret) == 0 {
		return nil, errors.New("shadow: empty secret")
	}
	h := hkdf.New(sha256.New, secret, nil, []byte(keyInfo))
	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := io.ReadFull(h, key); err != nil {
		return nil, fmt.Errorf("derive key: %w", err)
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, err
	}
	return &Sealer{aead: aead}, nil
}

// Seal encrypts plaintext for revision index of game.
func (s *Sealer) Seal(game uuid.UUID, index int, plaintext []byte) ([]byte, error) {
	nonce := make([]byte, s.aead.NonceSize(), s.aead.NonceSize()+len(plaintext)+s.aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("nonce: %w", err)
	}
	return s.aead.Seal(nonce, nonce, plaintext, associatedData(game, index)), nil
}

func (s *Sealer) Open(game uuid.UUID, index int, sealed []byte) ([]byte, error) {
	n := s.aead.NonceSize()
	if len(sealed) < n+s.aead.Overhead() {
		return nil, ErrCorrupt
	}
	out, err := s.aead.Open(nil, sealed[:n], sealed[n:], associatedData(game, index))
	if err != nil {
		return nil, ErrCorrupt
	}
	return out, nil
}

func associatedData(game uuid.UUID, index int) []byte {
	ad := make([]byte, 0, len(game)+8)
	ad = append(ad, game[:]...)
	return binary.BigEndian.AppendUint64(ad, uint64(index))
}
