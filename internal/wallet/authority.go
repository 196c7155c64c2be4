package wallet

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"github.com/gagliardetto/solana-go"
	"golang.org/x/crypto/hkdf"

	"github.com/amoca-labs/amoca/internal/keychain"
)

const (
	masterKey     = "wallet.master"
	masterSize    = 32
	authorityInfo = "amoca/smart-wallet-authority"
)

// Secrets is the keychain surface the wallet needs.
type Secrets interface {
	Get(key string) ([]byte, error)
	Set(key string, data []byte, label string) error
}

var _ Secrets = (*keychain.Store)(nil)

// masterSecret returns the per-install master secret, creating it on first
// use.
func masterSecret(s Secrets) ([]byte, error) {
	secret, err := s.Get(masterKey)
	if err == nil {
		if len(secret) != masterSize {
			return nil, fmt.Errorf("wallet master secret has %d bytes, want %d", len(secret), masterSize)
		}
		return secret, nil
	}
	if !errors.Is(err, keychain.ErrNotFound) {
		return nil, err
	}

	secret = make([]byte, masterSize)
	if _, err := rand.Read(secret); err != nil {
		return nil, fmt.Errorf("generate master secret: %w", err)
	}
	if err := s.Set(masterKey, secret, "amoca wallet master secret"); err != nil {
		return nil, err
	}
	return secret, nil
}

// deriveAuthority derives the authority key bound to one passkey:
// HKDF-SHA256(master, salt = credential id, info = authorityInfo).
func deriveAuthority(master, credentialID []byte) (solana.PrivateKey, error) {
	seed := make([]byte, ed25519.SeedSize)
	r := hkdf.New(sha256.New, master, credentialID, []byte(authorityInfo))
	if _, err := io.ReadFull(r, seed); err != nil {
		return nil, fmt.Errorf("derive authority: %w", err)
	}
	return solana.PrivateKey(ed25519.NewKeyFromSeed(seed)), nil
}
