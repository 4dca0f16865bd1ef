package shared

import (
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"
)

const keyringUser = "plex-token"

// CredentialStore persists the Plex account token.
type CredentialStore interface {
	Token() (string, error)
	SetToken(token string) error
	ClearToken() error
}

// KeyringStore keeps the token in the OS keyring, falling back to a static token from config.
type KeyringStore struct {
	service  string
	fallback string
}

// NewKeyringStore creates a [KeyringStore]. fallback is returned when the keyring holds no token.
func NewKeyringStore(service, fallback string) *KeyringStore {
	if service == "" {
		service = AppName
	}
	return &KeyringStore{service: service, fallback: fallback}
}

// Token returns the stored token or [ErrNotAuthenticated].
func (k *KeyringStore) Token() (string, error) {
	token, err := keyring.Get(k.service, keyringUser)
	switch {
	case err == nil && token != "":
		return token, nil
	case err == nil, errors.Is(err, keyring.ErrNotFound):
		if k.fallback != "" {
			return k.fallback, nil
		}
		return "", ErrNotAuthenticated
	default:
		if k.fallback != "" {
			return k.fallback, nil
		}
		return "", fmt.Errorf("%w: keyring: %v", ErrNotAuthenticated, err)
	}
}

// SetToken stores token in the keyring.
func (k *KeyringStore) SetToken(token string) error {
	if token == "" {
		return fmt.Errorf("%w: empty token", ErrInvalidArgument)
	}
	if err := keyring.Set(k.service, keyringUser, token); err != nil {
		return fmt.Errorf("failed to store token: %w", err)
	}
	return nil
}

// ClearToken removes the keyring entry and forgets the config fallback.
func (k *KeyringStore) ClearToken() error {
	k.fallback = ""
	if err := keyring.Delete(k.service, keyringUser); err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("failed to clear token: %w", err)
	}
	return nil
}
