package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/shiftsense/client-core/internal/domain"
)

const (
	keyToken        = "auth_token"
	keyUser         = "auth_user"
	keyVerification = "face_verification"
)

var ErrNoCredentials = errors.New("no stored credentials")

// CredentialStore layers typed accessors over the raw key-value Store.
type CredentialStore struct {
	store Store
}

func NewCredentialStore(s Store) *CredentialStore {
	return &CredentialStore{store: s}
}

func (c *CredentialStore) Token(ctx context.Context) (string, error) {
	token, err := c.store.Get(ctx, keyToken)
	if errors.Is(err, ErrKeyNotFound) {
		return "", ErrNoCredentials
	}
	if err != nil {
		return "", err
	}
	if token == "" {
		return "", ErrNoCredentials
	}
	return token, nil
}

func (c *CredentialStore) SetToken(ctx context.Context, token string) error {
	return c.store.Set(ctx, keyToken, token)
}

func (c *CredentialStore) User(ctx context.Context) (*domain.User, error) {
	raw, err := c.store.Get(ctx, keyUser)
	if errors.Is(err, ErrKeyNotFound) {
		return nil, ErrNoCredentials
	}
	if err != nil {
		return nil, err
	}
	var user domain.User
	if err := json.Unmarshal([]byte(raw), &user); err != nil {
		return nil, fmt.Errorf("decode cached user: %w", err)
	}
	return &user, nil
}

func (c *CredentialStore) SetUser(ctx context.Context, user *domain.User) error {
	raw, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("encode cached user: %w", err)
	}
	return c.store.Set(ctx, keyUser, string(raw))
}

func (c *CredentialStore) Verification(ctx context.Context) (*domain.VerificationRecord, error) {
	raw, err := c.store.Get(ctx, keyVerification)
	if errors.Is(err, ErrKeyNotFound) {
		return nil, ErrKeyNotFound
	}
	if err != nil {
		return nil, err
	}
	var record domain.VerificationRecord
	if err := json.Unmarshal([]byte(raw), &record); err != nil {
		return nil, fmt.Errorf("decode verification record: %w", err)
	}
	return &record, nil
}

func (c *CredentialStore) SetVerification(ctx context.Context, record *domain.VerificationRecord) error {
	raw, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encode verification record: %w", err)
	}
	return c.store.Set(ctx, keyVerification, string(raw))
}

// Clear wipes every stored credential. Used on logout and on expiry.
func (c *CredentialStore) Clear(ctx context.Context) error {
	return c.store.Clear(ctx)
}
