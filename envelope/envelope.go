/*
Package envelope wraps a Store with a symmetric-cipher confidentiality layer.

PURPOSE:
  Collection documents can carry personal data (names, phone numbers), so
  deployments may opt into encrypting them at rest. The envelope is a Store
  decorator: Write seals the document, Read opens it.

FORMAT:
  "enc1:" + base64( salt[16] || nonce[24] || ciphertext )

  The key is derived from the operator passphrase with scrypt (fresh salt
  per write), the payload sealed with XChaCha20-Poly1305. The prefix tags
  the format so plaintext documents remain recognizable.

MIGRATION:
  Read passes documents without the prefix through untouched. Existing
  unencrypted data keeps working the day encryption is switched on and is
  re-sealed on its next write. A document WITH the prefix that fails to
  open returns an error; the codec above substitutes an empty collection
  and logs the anomaly instead of crashing.
*/
package envelope

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/scrypt"

	"github.com/allcare/points-engine/store"
)

const (
	prefix   = "enc1:"
	saltSize = 16

	// scrypt parameters (interactive-grade; documents are small and
	// written on every mutation).
	scryptN = 1 << 15
	scryptR = 8
	scryptP = 1
)

// Store seals documents written through it and opens documents read
// through it.
type Store struct {
	inner      store.Store
	passphrase []byte
}

// Wrap returns an encrypting decorator around inner.
func Wrap(inner store.Store, passphrase string) *Store {
	return &Store{inner: inner, passphrase: []byte(passphrase)}
}

func (s *Store) deriveKey(salt []byte) ([]byte, error) {
	return scrypt.Key(s.passphrase, salt, scryptN, scryptR, scryptP, chacha20poly1305.KeySize)
}

// Write seals data and stores the envelope.
func (s *Store) Write(ctx context.Context, collection string, data []byte) error {
	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return fmt.Errorf("envelope: salt: %w", err)
	}
	key, err := s.deriveKey(salt)
	if err != nil {
		return fmt.Errorf("envelope: derive key: %w", err)
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return fmt.Errorf("envelope: cipher: %w", err)
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return fmt.Errorf("envelope: nonce: %w", err)
	}

	sealed := aead.Seal(nil, nonce, data, []byte(collection))

	payload := make([]byte, 0, len(salt)+len(nonce)+len(sealed))
	payload = append(payload, salt...)
	payload = append(payload, nonce...)
	payload = append(payload, sealed...)

	doc := prefix + base64.StdEncoding.EncodeToString(payload)
	return s.inner.Write(ctx, collection, []byte(doc))
}

// Read opens an enveloped document. Documents without the envelope prefix
// are returned as-is (pre-encryption data). A document with the prefix
// that cannot be opened returns an error.
func (s *Store) Read(ctx context.Context, collection string) ([]byte, error) {
	doc, err := s.inner.Read(ctx, collection)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, nil
	}
	if !bytes.HasPrefix(doc, []byte(prefix)) {
		return doc, nil
	}

	payload, err := base64.StdEncoding.DecodeString(string(doc[len(prefix):]))
	if err != nil {
		return nil, fmt.Errorf("envelope: decode %s: %w", collection, err)
	}
	minLen := saltSize + chacha20poly1305.NonceSizeX
	if len(payload) < minLen {
		return nil, fmt.Errorf("envelope: %s: truncated envelope", collection)
	}

	salt := payload[:saltSize]
	nonce := payload[saltSize:minLen]
	sealed := payload[minLen:]

	key, err := s.deriveKey(salt)
	if err != nil {
		return nil, fmt.Errorf("envelope: derive key: %w", err)
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("envelope: cipher: %w", err)
	}
	plain, err := aead.Open(nil, nonce, sealed, []byte(collection))
	if err != nil {
		return nil, fmt.Errorf("envelope: open %s: %w", collection, err)
	}
	return plain, nil
}
