// Package passkey is amoca's credential API: it creates passkeys, answers
// credential requests with signed assertions, and discovers which kinds of
// passkey are available. Credentials are ed25519 key pairs kept in the OS
// keychain; requests and descriptors use WebAuthn's wire types.
package passkey

import (
	"bytes"
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/go-webauthn/webauthn/protocol"
)

// Errors.
var (
	ErrNoCredential  = errors.New("no matching passkey")
	ErrTimeout       = errors.New("passkey request timed out")
	ErrUserCancelled = errors.New("user cancelled")
	ErrBadAssertion  = errors.New("assertion signature invalid")
)

// Attachment says where a passkey lives.
type Attachment = protocol.AuthenticatorAttachment

// Attachments.
const (
	Local  = protocol.Platform      // bound to this device
	Remote = protocol.CrossPlatform // security key or another device
)

// Credential is a stored passkey. PrivateKey never leaves the keychain item.
type Credential struct {
	ID         string                           `json:"id"` // base64url, unpadded
	RPID       string                           `json:"rp_id"`
	Attachment protocol.AuthenticatorAttachment `json:"attachment"`
	Label      string                           `json:"label"`
	PublicKey  ed25519.PublicKey                `json:"public_key"`
	PrivateKey ed25519.PrivateKey               `json:"private_key,omitempty"`
	CreatedAt  time.Time                        `json:"created_at"`
}

// Public returns a copy of c without the private key.
func (c Credential) Public() Credential {
	c.PrivateKey = nil
	return c
}

// RawID decodes the credential ID.
func (c Credential) RawID() []byte {
	b, _ := base64.RawURLEncoding.DecodeString(c.ID)
	return b
}

// Descriptor returns the WebAuthn descriptor used in allow lists.
func (c Credential) Descriptor() protocol.CredentialDescriptor {
	transport := protocol.Internal
	if c.Attachment == Remote {
		transport = protocol.Hybrid
	}
	return protocol.CredentialDescriptor{
		Type:         protocol.PublicKeyCredentialType,
		CredentialID: protocol.URLEncodedBase64(c.RawID()),
		Transport:    []protocol.AuthenticatorTransport{transport},
	}
}

// Request is a credential request. Attachment restricts which passkeys may
// answer; empty means any device. Silent requests never prompt the user.
type Request struct {
	Options    protocol.PublicKeyCredentialRequestOptions
	Attachment protocol.AuthenticatorAttachment
	Silent     bool
}

// NewRequest builds a request with a fresh challenge and required user
// verification.
func NewRequest(rpID string, attachment protocol.AuthenticatorAttachment, timeout time.Duration) (Request, error) {
	challenge, err := protocol.CreateChallenge()
	if err != nil {
		return Request{}, fmt.Errorf("create challenge: %w", err)
	}
	return Request{
		Options: protocol.PublicKeyCredentialRequestOptions{
			Challenge:        challenge,
			Timeout:          int(timeout.Milliseconds()),
			RelyingPartyID:   rpID,
			UserVerification: protocol.VerificationRequired,
		},
		Attachment: attachment,
	}, nil
}

// Allow restricts the request to the given credentials.
func (r Request) Allow(creds ...Credential) Request {
	r.Options.AllowedCredentials = nil
	for _, c := range creds {
		r.Options.AllowedCredentials = append(r.Options.AllowedCredentials, c.Descriptor())
	}
	return r
}

// Timeout returns the request timeout, zero for none.
func (r Request) Timeout() time.Duration {
	return time.Duration(r.Options.Timeout) * time.Millisecond
}

// Assertion is a credential's answer to a request.
type Assertion struct {
	CredentialID string
	Attachment   protocol.AuthenticatorAttachment
	RPID         string
	Challenge    []byte
	Signature    []byte
	PublicKey    ed25519.PublicKey
}

// Verify checks that a answers req: same relying party, same challenge, and
// a valid signature over sha256(rpID) || challenge.
func (a Assertion) Verify(req Request) error {
	if a.RPID != req.Options.RelyingPartyID {
		return fmt.Errorf("%w: relying party %q, want %q", ErrBadAssertion, a.RPID, req.Options.RelyingPartyID)
	}
	if !bytes.Equal(a.Challenge, req.Options.Challenge) {
		return fmt.Errorf("%w: challenge mismatch", ErrBadAssertion)
	}
	if len(a.PublicKey) != ed25519.PublicKeySize {
		return fmt.Errorf("%w: bad public key", ErrBadAssertion)
	}
	if !ed25519.Verify(a.PublicKey, signedData(a.RPID, a.Challenge), a.Signature) {
		return ErrBadAssertion
	}
	return nil
}

func signedData(rpID string, challenge []byte) []byte {
	h := sha256.Sum256([]byte(rpID))
	return append(h[:], challenge...)
}
