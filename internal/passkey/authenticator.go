package passkey

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/go-webauthn/webauthn/protocol"

	"github.com/amoca-labs/amoca/internal/keychain"
)

const keyPrefix = "passkey."

// UserVerifier asks the user to approve use of cred. Returning an error
// (typically ErrUserCancelled) refuses the request.
type UserVerifier func(ctx context.Context, cred Credential) error

// Store is the secret storage the authenticator needs.
type Store interface {
	Get(key string) ([]byte, error)
	Set(key string, data []byte, label string) error
	Remove(key string) error
	Keys(prefix string) ([]string, error)
}

var _ Store = (*keychain.Store)(nil)

// AuthenticatorOption configures a KeyringAuthenticator.
type AuthenticatorOption func(*KeyringAuthenticator)

// WithUserVerifier installs the prompt run for non-silent requests and for
// credential creation.
func WithUserVerifier(v UserVerifier) AuthenticatorOption {
	return func(a *KeyringAuthenticator) { a.verify = v }
}

// WithClock overrides time.Now (tests).
func WithClock(now func() time.Time) AuthenticatorOption {
	return func(a *KeyringAuthenticator) { a.now = now }
}

// KeyringAuthenticator keeps passkeys in a keychain Store.
type KeyringAuthenticator struct {
	store  Store
	verify UserVerifier
	now    func() time.Time
}

// NewKeyringAuthenticator returns an authenticator over store.
func NewKeyringAuthenticator(store Store, opts ...AuthenticatorOption) *KeyringAuthenticator {
	a := &KeyringAuthenticator{store: store, now: time.Now}
	for _, o := range opts {
		o(a)
	}
	return a
}

// CreateOptions describes a new passkey.
type CreateOptions struct {
	RPID       string
	Attachment protocol.AuthenticatorAttachment
	Label      string
}

// Create registers a new passkey after user verification.
func (a *KeyringAuthenticator) Create(ctx context.Context, opts CreateOptions) (Credential, error) {
	if opts.RPID == "" {
		return Credential{}, errors.New("relying party id is required")
	}
	if opts.Attachment == "" {
		opts.Attachment = Local
	}

	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return Credential{}, fmt.Errorf("generate key: %w", err)
	}
	rawID := make([]byte, 16)
	if _, err := rand.Read(rawID); err != nil {
		return Credential{}, fmt.Errorf("credential id: %w", err)
	}
	cred := Credential{
		ID:         base64.RawURLEncoding.EncodeToString(rawID),
		RPID:       opts.RPID,
		Attachment: opts.Attachment,
		Label:      opts.Label,
		PublicKey:  pub,
		PrivateKey: priv,
		CreatedAt:  a.now().UTC(),
	}
	if cred.Label == "" {
		cred.Label = "amoca " + cred.ID[:8]
	}

	if err := a.userVerify(ctx, cred); err != nil {
		return Credential{}, err
	}

	data, err := json.Marshal(cred)
	if err != nil {
		return Credential{}, err
	}
	if err := a.store.Set(storeKey(cred.RPID, cred.ID), data, cred.Label); err != nil {
		return Credential{}, err
	}
	return cred.Public(), nil
}

// Get answers req with an assertion from the newest matching passkey. It
// honours the request timeout and ctx.
func (a *KeyringAuthenticator) Get(ctx context.Context, req Request) (Assertion, error) {
	if d := req.Timeout(); d > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}

	creds, err := a.load(req.Options.RelyingPartyID)
	if err != nil {
		return Assertion{}, err
	}
	cred, ok := pick(creds, req)
	if !ok {
		return Assertion{}, ErrNoCredential
	}

	if !req.Silent {
		if err := a.userVerify(ctx, cred); err != nil {
			return Assertion{}, err
		}
	}
	if ctx.Err() != nil {
		return Assertion{}, ErrTimeout
	}

	challenge := []byte(req.Options.Challenge)
	return Assertion{
		CredentialID: cred.ID,
		Attachment:   cred.Attachment,
		RPID:         cred.RPID,
		Challenge:    challenge,
		Signature:    ed25519.Sign(cred.PrivateKey, signedData(cred.RPID, challenge)),
		PublicKey:    cred.PublicKey,
	}, nil
}

// List returns the passkeys for rpID (all relying parties when empty), newest
// first, without private keys.
func (a *KeyringAuthenticator) List(rpID string) ([]Credential, error) {
	creds, err := a.load(rpID)
	if err != nil {
		return nil, err
	}
	out := make([]Credential, len(creds))
	for i, c := range creds {
		out[i] = c.Public()
	}
	return out, nil
}

// Lookup returns one passkey by ID (or unique ID prefix).
func (a *KeyringAuthenticator) Lookup(id string) (Credential, error) {
	creds, err := a.load("")
	if err != nil {
		return Credential{}, err
	}
	var found []Credential
	for _, c := range creds {
		if c.ID == id {
			return c.Public(), nil
		}
		if strings.HasPrefix(c.ID, id) {
			found = append(found, c)
		}
	}
	switch len(found) {
	case 0:
		return Credential{}, fmt.Errorf("%w: %s", ErrNoCredential, id)
	case 1:
		return found[0].Public(), nil
	}
	return Credential{}, fmt.Errorf("passkey id %q is ambiguous", id)
}

// Remove deletes a passkey.
func (a *KeyringAuthenticator) Remove(id string) error {
	cred, err := a.Lookup(id)
	if err != nil {
		return err
	}
	return a.store.Remove(storeKey(cred.RPID, cred.ID))
}

// --- internal ---

func (a *KeyringAuthenticator) userVerify(ctx context.Context, cred Credential) error {
	if a.verify == nil {
		return nil
	}
	if err := a.verify(ctx, cred.Public()); err != nil {
		if ctx.Err() != nil {
			return ErrTimeout
		}
		return err
	}
	return nil
}

func (a *KeyringAuthenticator) load(rpID string) ([]Credential, error) {
	prefix := keyPrefix
	if rpID != "" {
		prefix += rpID + "."
	}
	keys, err := a.store.Keys(prefix)
	if err != nil {
		return nil, err
	}
	creds := make([]Credential, 0, len(keys))
	for _, k := range keys {
		data, err := a.store.Get(k)
		if err != nil {
			return nil, err
		}
		var c Credential
		if err := json.Unmarshal(data, &c); err != nil {
			return nil, fmt.Errorf("decode passkey %s: %w", k, err)
		}
		// Key prefixes overlap across dotted ids ("amoca" and "amoca.dev").
		if rpID != "" && c.RPID != rpID {
			continue
		}
		creds = append(creds, c)
	}
	sort.SliceStable(creds, func(i, j int) bool { return creds[i].CreatedAt.After(creds[j].CreatedAt) })
	return creds, nil
}

func pick(creds []Credential, req Request) (Credential, bool) {
	for _, c := range creds {
		if c.RPID != req.Options.RelyingPartyID {
			continue
		}
		if req.Attachment != "" && c.Attachment != req.Attachment {
			continue
		}
		if len(req.Options.AllowedCredentials) > 0 && !allowed(c, req.Options.AllowedCredentials) {
			continue
		}
		return c, true
	}
	return Credential{}, false
}

func allowed(c Credential, list []protocol.CredentialDescriptor) bool {
	raw := c.RawID()
	return slices.ContainsFunc(list, func(d protocol.CredentialDescriptor) bool {
		return string(d.CredentialID) == string(raw)
	})
}

func storeKey(rpID, id string) string {
	return keyPrefix + rpID + "." + id
}
