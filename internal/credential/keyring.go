// Package credential retrieves SMTP passwords from the system keyring so
// they never have to live in the config file.
package credential

import (
	"fmt"

	"github.com/99designs/keyring"
)

const serviceName = "ackmail"

// Store looks up secrets by key. The keyring implementation is the default;
// tests substitute a StaticStore.
type Store interface {
	Get(key string) (string, error)
}

// KeyringStore reads secrets from the platform keyring (Keychain, Secret
// Service, wincred, pass, or an encrypted file fallback).
type KeyringStore struct{}

func openKeyring() (keyring.Keyring, error) {
	ring, err := keyring.Open(keyring.Config{
		ServiceName: serviceName,
		AllowedBackends: []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.SecretServiceBackend,
			keyring.WinCredBackend,
			keyring.PassBackend,
			keyring.FileBackend,
		},
		FileDir:                  "~/.config/ackmail/credentials",
		FilePasswordFunc:         keyring.FixedStringPrompt("ackmail-file-key"),
		KeychainTrustApplication: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening keyring: %w", err)
	}
	return ring, nil
}

// Get retrieves a secret by key from the system keyring.
func (KeyringStore) Get(key string) (string, error) {
	ring, err := openKeyring()
	if err != nil {
		return "", err
	}

	item, err := ring.Get(key)
	if err != nil {
		return "", fmt.Errorf("getting credential %q: %w", key, err)
	}

	return string(item.Data), nil
}

// Set stores a secret by key in the system keyring. Used by `ackmail
// set-password`.
func (KeyringStore) Set(key, value string) error {
	ring, err := openKeyring()
	if err != nil {
		return err
	}

	err = ring.Set(keyring.Item{
		Key:  key,
		Data: []byte(value),
	})
	if err != nil {
		return fmt.Errorf("setting credential %q: %w", key, err)
	}

	return nil
}

// StaticStore is a fixed-map Store for tests.
type StaticStore map[string]string

// Get implements Store.
func (s StaticStore) Get(key string) (string, error) {
	v, ok := s[key]
	if !ok {
		return "", fmt.Errorf("credential %q not found", key)
	}
	return v, nil
}
