// Package keychain is amoca's secret store: passkey credentials and the wallet
// master secret live here, in the OS keychain where one is available and in an
// encrypted file under the config directory otherwise.
package keychain

import (
	"errors"
	"fmt"
	"runtime"
	"sort"
	"strings"

	"github.com/99designs/keyring"
)

const serviceName = "amoca"

// ErrNotFound is returned when a key has no stored item.
var ErrNotFound = errors.New("keychain: item not found")

// Store wraps keyring access.
type Store struct {
	ring keyring.Keyring
}

// Open returns a store backed by the OS keychain, falling back to an encrypted
// file keyring in dir. password unlocks the file backend; empty uses the
// service name.
func Open(dir, password string) (*Store, error) {
	if password == "" {
		password = serviceName
	}
	cfg := keyring.Config{
		ServiceName:              serviceName,
		KeychainTrustApplication: true,
		FileDir:                  dir,
		FilePasswordFunc:         keyring.FixedStringPrompt(password),
	}

	// On Linux without a GUI, fall back to file-based storage.
	if runtime.GOOS == "linux" {
		cfg.AllowedBackends = []keyring.BackendType{
			keyring.SecretServiceBackend,
			keyring.KWalletBackend,
			keyring.FileBackend,
		}
	}

	ring, err := keyring.Open(cfg)
	if err != nil {
		cfg.AllowedBackends = []keyring.BackendType{keyring.FileBackend}
		ring, err = keyring.Open(cfg)
		if err != nil {
			return nil, fmt.Errorf("keychain open: %w", err)
		}
	}
	return &Store{ring: ring}, nil
}

// InMemory returns a store that keeps items in process memory (for tests and
// --ephemeral runs).
func InMemory() *Store {
	return &Store{ring: keyring.NewArrayKeyring(nil)}
}

// Get returns the data stored under key.
func (s *Store) Get(key string) ([]byte, error) {
	item, err := s.ring.Get(key)
	if errors.Is(err, keyring.ErrKeyNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	if err != nil {
		return nil, fmt.Errorf("keychain get: %w", err)
	}
	return item.Data, nil
}

// Set stores data under key, replacing any existing item.
func (s *Store) Set(key string, data []byte, label string) error {
	err := s.ring.Set(keyring.Item{
		Key:         key,
		Data:        data,
		Label:       label,
		Description: serviceName,
	})
	if err != nil {
		return fmt.Errorf("keychain set: %w", err)
	}
	return nil
}

// Remove deletes the item stored under key.
func (s *Store) Remove(key string) error {
	err := s.ring.Remove(key)
	if errors.Is(err, keyring.ErrKeyNotFound) {
		return fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	if err != nil {
		return fmt.Errorf("keychain remove: %w", err)
	}
	return nil
}

// Keys lists stored keys with the given prefix, sorted.
func (s *Store) Keys(prefix string) ([]string, error) {
	all, err := s.ring.Keys()
	if err != nil {
		return nil, fmt.Errorf("keychain keys: %w", err)
	}
	var out []string
	for _, k := range all {
		if strings.HasPrefix(k, prefix) {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out, nil
}
