// Package wallet is amoca's passkey smart wallet. Connecting asks a passkey
// for an assertion; each passkey unlocks its own authority key, derived from a
// keychain-held master secret. The authority signs and pays for transactions.
package wallet

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/sirupsen/logrus"

	"github.com/amoca-labs/amoca/internal/passkey"
)

// Errors.
var (
	ErrNotConnected  = errors.New("wallet not connected")
	ErrUserCancelled = passkey.ErrUserCancelled
)

const defaultRequestTimeout = 60 * time.Second

// ConnectOptions selects which passkey connects.
type ConnectOptions struct {
	// UseExistingCredentials asks an existing passkey; false registers a new one.
	UseExistingCredentials bool
	// PreferLocalDevice tries (or creates) a passkey on this device first.
	PreferLocalDevice bool
}

// Authenticator is the credential API the wallet needs.
type Authenticator interface {
	Get(ctx context.Context, req passkey.Request) (passkey.Assertion, error)
	Create(ctx context.Context, opts passkey.CreateOptions) (passkey.Credential, error)
}

var _ Authenticator = (*passkey.KeyringAuthenticator)(nil)

// Option configures a PasskeyWallet.
type Option func(*PasskeyWallet)

// WithRequestTimeout bounds each passkey request made by Connect and
// SignTransaction.
func WithRequestTimeout(d time.Duration) Option {
	return func(w *PasskeyWallet) { w.timeout = d }
}

// WithLogger sets the logger.
func WithLogger(l *logrus.Logger) Option {
	return func(w *PasskeyWallet) { w.log = l }
}

// PasskeyWallet connects with passkeys and signs with the derived authority.
// It is safe for concurrent use.
type PasskeyWallet struct {
	auth    Authenticator
	secrets Secrets
	rpID    string
	timeout time.Duration
	log     *logrus.Logger

	mu         sync.Mutex
	credential string // base64url id of the connected passkey
	authority  solana.PrivateKey
}

// New returns a disconnected wallet.
func New(auth Authenticator, secrets Secrets, rpID string, opts ...Option) *PasskeyWallet {
	w := &PasskeyWallet{
		auth:    auth,
		secrets: secrets,
		rpID:    rpID,
		timeout: defaultRequestTimeout,
		log:     logrus.StandardLogger(),
	}
	for _, o := range opts {
		o(w)
	}
	return w
}

// Connect authenticates with a passkey and returns the authority address.
// Local-first connections fall back to any device when this device holds no
// passkey.
func (w *PasskeyWallet) Connect(ctx context.Context, opts ConnectOptions) (solana.PublicKey, error) {
	credentialID, err := w.authenticate(ctx, opts)
	if err != nil {
		w.log.WithError(err).WithField("use_existing", opts.UseExistingCredentials).Warn("wallet connect failed")
		return solana.PublicKey{}, err
	}

	master, err := masterSecret(w.secrets)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("wallet secret: %w", err)
	}
	raw := passkey.Credential{ID: credentialID}.RawID()
	authority, err := deriveAuthority(master, raw)
	if err != nil {
		return solana.PublicKey{}, err
	}

	w.mu.Lock()
	w.credential = credentialID
	w.authority = authority
	w.mu.Unlock()

	pub := authority.PublicKey()
	w.log.WithFields(logrus.Fields{"authority": pub.String(), "credential": credentialID}).Info("wallet connected")
	return pub, nil
}

// Disconnect forgets the authority key.
func (w *PasskeyWallet) Disconnect() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.credential = ""
	w.authority = nil
	return nil
}

// IsConnected reports whether an authority is loaded.
func (w *PasskeyWallet) IsConnected() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.authority != nil
}

// Authority returns the connected authority address, zero when disconnected.
func (w *PasskeyWallet) Authority() solana.PublicKey {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.authority == nil {
		return solana.PublicKey{}
	}
	return w.authority.PublicKey()
}

// SignTransaction asks the connected passkey to approve, then signs tx with
// the authority key.
func (w *PasskeyWallet) SignTransaction(ctx context.Context, tx *solana.Transaction) error {
	w.mu.Lock()
	credentialID, authority := w.credential, w.authority
	w.mu.Unlock()
	if authority == nil {
		return ErrNotConnected
	}

	req, err := passkey.NewRequest(w.rpID, "", w.timeout)
	if err != nil {
		return err
	}
	req = req.Allow(passkey.Credential{ID: credentialID})
	assertion, err := w.auth.Get(ctx, req)
	if err != nil {
		return err
	}
	if err := assertion.Verify(req); err != nil {
		return err
	}

	pub := authority.PublicKey()
	_, err = tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		if key.Equals(pub) {
			return &authority
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("sign transaction: %w", err)
	}
	return nil
}

// authenticate returns the id of the passkey that approved the connection.
func (w *PasskeyWallet) authenticate(ctx context.Context, opts ConnectOptions) (string, error) {
	if !opts.UseExistingCredentials {
		att := passkey.Remote
		if opts.PreferLocalDevice {
			att = passkey.Local
		}
		cred, err := w.auth.Create(ctx, passkey.CreateOptions{RPID: w.rpID, Attachment: att})
		if err != nil {
			return "", err
		}
		return cred.ID, nil
	}

	var att passkey.Attachment
	if opts.PreferLocalDevice {
		att = passkey.Local
	}
	assertion, err := w.assert(ctx, att)
	if errors.Is(err, passkey.ErrNoCredential) && att != "" {
		assertion, err = w.assert(ctx, "")
	}
	if err != nil {
		return "", err
	}
	return assertion.CredentialID, nil
}

func (w *PasskeyWallet) assert(ctx context.Context, att passkey.Attachment) (passkey.Assertion, error) {
	req, err := passkey.NewRequest(w.rpID, att, w.timeout)
	if err != nil {
		return passkey.Assertion{}, err
	}
	a, err := w.auth.Get(ctx, req)
	if err != nil {
		return passkey.Assertion{}, err
	}
	if err := a.Verify(req); err != nil {
		return passkey.Assertion{}, err
	}
	return a, nil
}
