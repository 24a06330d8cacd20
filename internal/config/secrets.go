package config

import (
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"
)

// Keyring coordinates.
const (
	KeyringService = AppName
	OpenAIKeyUser  = "openai-api-key"
)

// ErrNoSecret is returned when a secret is not stored.
var ErrNoSecret = errors.New("secret not found")

// SecretStore keeps secrets outside the config files.
type SecretStore interface {
	Get(name string) (string, error)
	Set(name, value string) error
	Delete(name string) error
}

// KeyringStore implements SecretStore using the OS keyring.
type KeyringStore struct {
	service string
}

// NewKeyringStore creates a keyring-based secret store.
func NewKeyringStore() *KeyringStore {
	return &KeyringStore{service: KeyringService}
}

// Get retrieves a secret.
func (s *KeyringStore) Get(name string) (string, error) {
	value, err := keyring.Get(s.service, name)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return "", ErrNoSecret
		}
		return "", fmt.Errorf("failed to load %s from keyring: %w", name, err)
	}
	return value, nil
}

// Set stores a secret.
func (s *KeyringStore) Set(name, value string) error {
	if err := keyring.Set(s.service, name, value); err != nil {
		return fmt.Errorf("failed to save %s to keyring: %w", name, err)
	}
	return nil
}

// Delete removes a secret. Deleting a missing secret is not an error.
func (s *KeyringStore) Delete(name string) error {
	err := keyring.Delete(s.service, name)
	if err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("failed to delete %s from keyring: %w", name, err)
	}
	return nil
}
