// Package invest runs the fixed-amount investment pipeline behind a project
// card: build, stamp, sign, submit once, confirm.
package invest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/amoca-labs/amoca/internal/catalog"
	"github.com/amoca-labs/amoca/internal/chain"
	"github.com/amoca-labs/amoca/internal/format"
	"github.com/amoca-labs/amoca/internal/telemetry"
	"github.com/amoca-labs/amoca/internal/transfer"
)

// ErrInFlight is returned when another investment is still running.
var ErrInFlight = errors.New("an investment is already in flight")

const defaultConfirmTimeout = 90 * time.Second

// SigningError reports that the wallet declined or failed to sign.
type SigningError struct {
	Err error
}

func (e *SigningError) Error() string { return "sign transaction: " + e.Err.Error() }

func (e *SigningError) Unwrap() error { return e.Err }

// SubmissionError reports a ledger-side failure. Signature is zero when the
// transaction never reached the ledger.
type SubmissionError struct {
	Stage     string // "blockhash", "submit" or "confirm"
	Signature solana.Signature
	Err       error
}

func (e *SubmissionError) Error() string {
	if e.Signature.IsZero() {
		return fmt.Sprintf("%s: %v", e.Stage, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Stage, e.Signature, e.Err)
}

func (e *SubmissionError) Unwrap() error { return e.Err }

// Signer is the connected wallet's signing handle.
type Signer interface {
	Authority() solana.PublicKey
	Sign(ctx context.Context, tx *solana.Transaction) error
}

// Ledger is the part of the network client the pipeline needs.
type Ledger interface {
	LatestBlockhash(ctx context.Context) (solana.Hash, error)
	Submit(ctx context.Context, tx *solana.Transaction) (solana.Signature, error)
	Confirm(ctx context.Context, sig solana.Signature) error
}

// Receipt describes a confirmed investment.
type Receipt struct {
	ID          uuid.UUID
	ProjectID   string
	Signature   solana.Signature
	ExplorerURL string
	Amount      float64
	AmountText  string // amount with unit, as AmountText renders it
	Asset       transfer.Asset
	Recipient   solana.PublicKey
}

// Option configures an Action.
type Option func(*Action)

// WithAmount sets the fixed amount and asset (default 1 SOL).
func WithAmount(amount float64, asset transfer.Asset) Option {
	return func(a *Action) { a.amount, a.asset = amount, asset }
}

// WithTreasury sets the recipient used for projects without their own.
func WithTreasury(pk solana.PublicKey) Option {
	return func(a *Action) { a.treasury = pk }
}

// WithCluster sets the cluster used for explorer links.
func WithCluster(c chain.Cluster) Option {
	return func(a *Action) { a.cluster = c }
}

// WithTokenSymbol sets the label used for token amounts.
func WithTokenSymbol(s string) Option {
	return func(a *Action) { a.symbol = s }
}

// WithLogger sets the logger.
func WithLogger(l *logrus.Logger) Option {
	return func(a *Action) { a.log = l }
}

// WithMetrics counts outcomes.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(a *Action) { a.metrics = m }
}

// WithConfirmTimeout bounds confirmation polling.
func WithConfirmTimeout(d time.Duration) Option {
	return func(a *Action) { a.confirmTimeout = d }
}

// Action invests a fixed amount into a project. At most one investment runs
// at a time; a concurrent call returns ErrInFlight without touching the
// ledger.
type Action struct {
	builder *transfer.Builder
	ledger  Ledger

	amount         float64
	asset          transfer.Asset
	symbol         string
	treasury       solana.PublicKey
	cluster        chain.Cluster
	confirmTimeout time.Duration
	log            *logrus.Logger
	metrics        *telemetry.Metrics

	inFlight atomic.Bool
}

// New returns an Action investing 1 SOL on devnet unless configured
// otherwise.
func New(b *transfer.Builder, l Ledger, opts ...Option) *Action {
	devnet, _ := chain.ClusterByName("devnet")
	a := &Action{
		builder:        b,
		ledger:         l,
		amount:         1,
		asset:          transfer.AssetNative,
		symbol:         "USDC",
		cluster:        devnet,
		confirmTimeout: defaultConfirmTimeout,
		log:            logrus.StandardLogger(),
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

// InFlight reports whether an investment is running.
func (a *Action) InFlight() bool { return a.inFlight.Load() }

// Label is the button text for an enabled card, e.g. "Invest 1 SOL".
func (a *Action) Label() string {
	return "Invest " + a.AmountText()
}

// AmountText renders the configured amount with its unit.
func (a *Action) AmountText() string {
	if a.asset == transfer.AssetToken {
		return format.Token(a.amount, a.builder.Decimals()) + " " + a.symbol
	}
	return format.Token(a.amount, 9) + " SOL"
}

// Recipient resolves where an investment into p is sent.
func (a *Action) Recipient(p catalog.Project) (solana.PublicKey, error) {
	if strings.TrimSpace(p.Treasury) == "" {
		if a.treasury.IsZero() {
			return solana.PublicKey{}, fmt.Errorf("project %s has no treasury and no default is configured", p.ID)
		}
		return a.treasury, nil
	}
	pk, err := solana.PublicKeyFromBase58(p.Treasury)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("project %s treasury: %w", p.ID, err)
	}
	return pk, nil
}

// Invest transfers the configured amount from the signer's authority to the
// project's treasury and waits for confirmation. The transaction is
// submitted at most once.
func (a *Action) Invest(ctx context.Context, p catalog.Project, s Signer) (*Receipt, error) {
	if !a.inFlight.CompareAndSwap(false, true) {
		return nil, ErrInFlight
	}
	defer a.inFlight.Store(false)

	id := uuid.New()
	log := a.log.WithFields(logrus.Fields{
		"investment": id.String(),
		"project":    p.ID,
		"amount":     a.amount,
		"asset":      string(a.asset),
	})

	r, err := a.run(ctx, id, p, s, log)
	if err != nil {
		a.metrics.Invest(string(a.asset), outcome(err))
		log.WithError(err).Warn("investment failed")
		return nil, err
	}
	a.metrics.Invest(string(a.asset), "confirmed")
	log.WithField("signature", r.Signature.String()).Info("investment confirmed")
	return r, nil
}

func (a *Action) run(ctx context.Context, id uuid.UUID, p catalog.Project, s Signer, log *logrus.Entry) (*Receipt, error) {
	if s == nil || s.Authority().IsZero() {
		return nil, errors.New("no connected wallet")
	}
	from := s.Authority()
	to, err := a.Recipient(p)
	if err != nil {
		return nil, err
	}

	unsigned, err := a.builder.Build(from, to, a.amount, a.asset)
	if err != nil {
		return nil, err
	}

	hash, err := a.ledger.LatestBlockhash(ctx)
	if err != nil {
		return nil, &SubmissionError{Stage: "blockhash", Err: err}
	}
	tx, err := unsigned.Stamp(hash, from)
	if err != nil {
		return nil, err
	}

	if err := s.Sign(ctx, tx); err != nil {
		return nil, &SigningError{Err: err}
	}

	sig, err := a.ledger.Submit(ctx, tx)
	if err != nil {
		return nil, &SubmissionError{Stage: "submit", Err: err}
	}
	log.WithField("signature", sig.String()).Info("investment submitted")

	cctx, cancel := context.WithTimeout(ctx, a.confirmTimeout)
	defer cancel()
	if err := a.ledger.Confirm(cctx, sig); err != nil {
		return nil, &SubmissionError{Stage: "confirm", Signature: sig, Err: err}
	}

	return &Receipt{
		ID:          id,
		ProjectID:   p.ID,
		Signature:   sig,
		ExplorerURL: a.cluster.TxURL(sig),
		Amount:      a.amount,
		AmountText:  a.AmountText(),
		Asset:       a.asset,
		Recipient:   to,
	}, nil
}

func outcome(err error) string {
	var se *SigningError
	var sub *SubmissionError
	switch {
	case errors.As(err, &se):
		return "signing_failed"
	case errors.As(err, &sub):
		return sub.Stage + "_failed"
	default:
		return "build_failed"
	}
}
