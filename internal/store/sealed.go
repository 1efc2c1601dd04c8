package store

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
)

var errCiphertextTooShort = errors.New("ciphertext shorter than nonce")

// SealedStore encrypts values at rest with ChaCha20-Poly1305 under a
// device-scoped key. Keys stay in the clear; only values are sealed. The
// nonce is prepended to each ciphertext.
type SealedStore struct {
	inner Store
	key   []byte
}

func NewSealedStore(inner Store, key []byte) (*SealedStore, error) {
	if len(key) != chacha20poly1305.KeySize {
		return nil, fmt.Errorf("sealed store key must be %d bytes, got %d", chacha20poly1305.KeySize, len(key))
	}
	k := make([]byte, len(key))
	copy(k, key)
	return &SealedStore{inner: inner, key: k}, nil
}

func (s *SealedStore) Get(ctx context.Context, key string) (string, error) {
	sealed, err := s.inner.Get(ctx, key)
	if err != nil {
		return "", err
	}
	raw, err := base64.StdEncoding.DecodeString(sealed)
	if err != nil {
		return "", fmt.Errorf("decode sealed value: %w", err)
	}
	aead, err := chacha20poly1305.New(s.key)
	if err != nil {
		return "", err
	}
	if len(raw) < aead.NonceSize() {
		return "", errCiphertextTooShort
	}
	nonce, ciphertext := raw[:aead.NonceSize()], raw[aead.NonceSize():]
	plain, err := aead.Open(nil, nonce, ciphertext, []byte(key))
	if err != nil {
		return "", fmt.Errorf("unseal value: %w", err)
	}
	return string(plain), nil
}

func (s *SealedStore) Set(ctx context.Context, key, value string) error {
	aead, err := chacha20poly1305.New(s.key)
	if err != nil {
		return err
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return fmt.Errorf("generate nonce: %w", err)
	}
	sealed := aead.Seal(nonce, nonce, []byte(value), []byte(key))
	return s.inner.Set(ctx, key, base64.StdEncoding.EncodeToString(sealed))
}

func (s *SealedStore) Remove(ctx context.Context, key string) error {
	return s.inner.Remove(ctx, key)
}

func (s *SealedStore) Clear(ctx context.Context) error {
	return s.inner.Clear(ctx)
}
