// Package session owns the wallet session: passkey discovery, connect and
// disconnect, balance refresh and signing. Every operation returns a tea.Cmd
// whose result comes back through Update, so all state changes happen on the
// Bubble Tea event loop. Results carry the request token they were issued
// with and are dropped when it no longer matches.
package session

import (
	"context"
	"errors"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/gagliardetto/solana-go"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/amoca-labs/amoca/internal/chain"
	"github.com/amoca-labs/amoca/internal/passkey"
	"github.com/amoca-labs/amoca/internal/telemetry"
	"github.com/amoca-labs/amoca/internal/transfer"
	"github.com/amoca-labs/amoca/internal/wallet"
)

const defaultBalanceTimeout = 20 * time.Second

// Wallet is the wallet SDK surface the controller drives.
type Wallet interface {
	Connect(ctx context.Context, opts wallet.ConnectOptions) (solana.PublicKey, error)
	Disconnect() error
	SignTransaction(ctx context.Context, tx *solana.Transaction) error
}

// Discoverer reports which passkeys are available.
type Discoverer interface {
	Discover(ctx context.Context) (passkey.Outcome, error)
}

// Ledger reads balances.
type Ledger interface {
	Balance(ctx context.Context, owner solana.PublicKey) (uint64, error)
	TokenBalance(ctx context.Context, owner, mint solana.PublicKey) (chain.TokenAmount, error)
}

// Messages returned by the controller's commands.
type (
	DiscoveredMsg struct {
		token   uint64
		Outcome passkey.Outcome
		Err     error
	}
	ConnectedMsg struct {
		token     uint64
		Authority solana.PublicKey
		Err       error
	}
	BalancesMsg struct {
		generation uint64
		token      uint64
		Native     float64
		Token      float64
		Err        error
		TokenErr   error // token read failed; Token is unknown
	}
)

// Option configures a Controller.
type Option func(*Controller)

// WithMint sets the token whose balance is shown.
func WithMint(mint solana.PublicKey) Option {
	return func(c *Controller) { c.mint = mint }
}

// WithLogger sets the logger.
func WithLogger(l *logrus.Logger) Option {
	return func(c *Controller) { c.log = l }
}

// WithMetrics counts state transitions.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(c *Controller) { c.metrics = m }
}

// WithBalanceTimeout bounds one balance refresh.
func WithBalanceTimeout(d time.Duration) Option {
	return func(c *Controller) { c.balanceTimeout = d }
}

// Controller is the single writer of the wallet session. It is not safe for
// concurrent use: call it from the Bubble Tea event loop only.
type Controller struct {
	wallet     Wallet
	discoverer Discoverer
	ledger     Ledger
	mint       solana.PublicKey

	log            *logrus.Logger
	metrics        *telemetry.Metrics
	balanceTimeout time.Duration

	session  Session
	avail    Availability
	balances BalanceSnapshot
	lastErr  error

	prior       State  // restored when a connect attempt fails
	generation  uint64 // bumped on every disconnect
	discoverSeq uint64
	connectSeq  uint64
	refreshSeq  uint64
}

// New returns a controller in the Disconnected state.
func New(w Wallet, d Discoverer, l Ledger, opts ...Option) *Controller {
	c := &Controller{
		wallet:         w,
		discoverer:     d,
		ledger:         l,
		log:            logrus.StandardLogger(),
		balanceTimeout: defaultBalanceTimeout,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// --- read accessors ---

// Session returns a snapshot of the session.
func (c *Controller) Session() Session { return c.session }

// State returns the current state.
func (c *Controller) State() State { return c.session.State }

// Availability returns what the last discovery found.
func (c *Controller) Availability() Availability { return c.avail }

// Balances returns the balance snapshot.
func (c *Controller) Balances() BalanceSnapshot { return c.balances }

// Err returns the last recorded failure, nil if none.
func (c *Controller) Err() error { return c.lastErr }

// CanConnect reports whether a connect attempt may start now.
func (c *Controller) CanConnect() bool {
	switch c.session.State {
	case StateChecking, StateConnecting, StateConnected:
		return false
	}
	return true
}

// CanDisconnect reports whether a disconnect is possible.
func (c *Controller) CanDisconnect() bool { return c.session.State == StateConnected }

// CanRefresh reports whether a balance refresh may start now.
func (c *Controller) CanRefresh() bool {
	return c.session.State == StateConnected && !c.balances.Loading
}

// CanInvest reports whether the connected wallet can fund an investment.
func (c *Controller) CanInvest() bool {
	return c.session.State == StateConnected && !c.session.Authority.IsZero()
}

// DefaultPreference picks the connect preference matching availability.
func (c *Controller) DefaultPreference() Preference {
	switch c.session.State {
	case StateHasRemotePasskeyOnly:
		return PreferAnyDevice
	case StateNoPasskey:
		return PreferForceNew
	default:
		return PreferLocalFirst
	}
}

// Signer returns a signing handle bound to the connected authority.
func (c *Controller) Signer() (*Signer, error) {
	if !c.CanInvest() {
		return nil, ErrNotConnected
	}
	return &Signer{wallet: c.wallet, authority: c.session.Authority}, nil
}

// --- operations ---

// Init starts passkey discovery unless a wallet is connected or connecting.
func (c *Controller) Init() tea.Cmd {
	switch c.session.State {
	case StateChecking, StateConnecting, StateConnected:
		return nil
	}
	return c.startDiscovery()
}

// Connect starts a connect attempt with the given preference. It is a no-op
// when CanConnect is false.
func (c *Controller) Connect(pref Preference) tea.Cmd {
	if !c.CanConnect() {
		return nil
	}
	c.prior = c.session.State
	c.session.LastError = ""
	c.lastErr = nil
	c.transition(StateConnecting)
	c.connectSeq++

	token, w, opts := c.connectSeq, c.wallet, pref.Options()
	c.log.WithFields(logrus.Fields{"preference": pref.String(), "token": token}).Info("wallet connect requested")
	return func() tea.Msg {
		pk, err := w.Connect(context.Background(), opts)
		return ConnectedMsg{token: token, Authority: pk, Err: err}
	}
}

// Disconnect tears the session down synchronously and re-runs discovery. It
// is a no-op unless connected.
func (c *Controller) Disconnect() tea.Cmd {
	if c.session.State != StateConnected {
		return nil
	}
	err := c.wallet.Disconnect()

	c.generation++
	c.session.Authority = solana.PublicKey{}
	c.session.LastError = ""
	c.lastErr = nil
	c.balances = BalanceSnapshot{}
	c.transition(StateDisconnected)

	if err != nil {
		c.fail("disconnect", err)
	}
	return c.startDiscovery()
}

// Refresh fetches native and token balances. It is a no-op unless connected
// and idle.
func (c *Controller) Refresh() tea.Cmd {
	if !c.CanRefresh() {
		return nil
	}
	return c.startRefresh()
}

// Update applies a command result. Results whose token is stale, or that
// arrive in a state that no longer expects them, are dropped.
func (c *Controller) Update(msg tea.Msg) tea.Cmd {
	switch msg := msg.(type) {
	case DiscoveredMsg:
		if msg.token != c.discoverSeq || c.session.State != StateChecking {
			c.dropped("discovery", msg.token)
			return nil
		}
		c.applyDiscovery(msg.Outcome, msg.Err)

	case ConnectedMsg:
		if msg.token != c.connectSeq || c.session.State != StateConnecting {
			c.dropped("connect", msg.token)
			return nil
		}
		if msg.Err != nil {
			c.transition(c.prior)
			c.fail("connect", msg.Err)
			return nil
		}
		if msg.Authority.IsZero() {
			c.transition(c.prior)
			c.fail("connect", errors.New("wallet returned no authority"))
			return nil
		}
		c.session.Authority = msg.Authority
		c.transition(StateConnected)
		return c.startRefresh()

	case BalancesMsg:
		if msg.generation != c.generation || msg.token != c.refreshSeq || c.session.State != StateConnected {
			c.dropped("balances", msg.token)
			return nil
		}
		c.balances.Loading = false
		if msg.Err != nil {
			c.fail("refresh", msg.Err)
			return nil
		}
		native, tok := msg.Native, msg.Token
		c.balances.Native = &native
		c.balances.Token = &tok
		if msg.TokenErr != nil {
			c.balances.Token = nil
			c.log.WithError(msg.TokenErr).WithField("mint", c.mint.String()).Warn("token balance unavailable")
		}
	}
	return nil
}

// --- internal ---

func (c *Controller) startDiscovery() tea.Cmd {
	c.transition(StateChecking)
	c.avail = Availability{Local: PresenceUnknown, Checking: true}
	c.discoverSeq++

	token, d := c.discoverSeq, c.discoverer
	return func() tea.Msg {
		out, err := d.Discover(context.Background())
		return DiscoveredMsg{token: token, Outcome: out, Err: err}
	}
}

func (c *Controller) applyDiscovery(out passkey.Outcome, err error) {
	c.metrics.Discovery(out.String())
	switch out {
	case passkey.OutcomeLocal:
		c.avail = Availability{Local: PresencePresent}
		c.transition(StateHasLocalPasskey)
	case passkey.OutcomeRemoteOnly:
		c.avail = Availability{Local: PresenceAbsent, Remote: true}
		c.transition(StateHasRemotePasskeyOnly)
	default:
		c.avail = Availability{Local: PresenceAbsent}
		c.transition(StateNoPasskey)
	}
	if err != nil {
		c.fail("discover", err)
	}
}

func (c *Controller) startRefresh() tea.Cmd {
	c.balances.Loading = true
	c.refreshSeq++

	gen, token := c.generation, c.refreshSeq
	owner, mint, ledger, timeout := c.session.Authority, c.mint, c.ledger, c.balanceTimeout
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		var lamports uint64
		var tok chain.TokenAmount
		var tokErr error
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			var err error
			lamports, err = ledger.Balance(gctx, owner)
			return err
		})
		g.Go(func() error {
			if mint.IsZero() {
				return nil
			}
			tok, tokErr = ledger.TokenBalance(gctx, owner, mint)
			return nil
		})
		if err := g.Wait(); err != nil {
			return BalancesMsg{generation: gen, token: token, Err: err}
		}
		return BalancesMsg{
			generation: gen,
			token:      token,
			Native:     float64(lamports) / transfer.LamportsPerSOL,
			Token:      tok.UI(),
			TokenErr:   tokErr,
		}
	}
}

func (c *Controller) transition(to State) {
	from := c.session.State
	c.session.State = to
	if from == to {
		return
	}
	c.metrics.Transition(from.String(), to.String())
	c.log.WithFields(logrus.Fields{
		"from":       from.String(),
		"to":         to.String(),
		"generation": c.generation,
	}).Debug("session transition")
}

func (c *Controller) fail(op string, err error) {
	c.lastErr = &ConnectionError{Op: op, Err: err}
	c.session.LastError = err.Error()
	c.log.WithError(err).WithField("op", op).Warn("wallet session error")
}

func (c *Controller) dropped(kind string, token uint64) {
	c.log.WithFields(logrus.Fields{
		"kind":  kind,
		"token": token,
		"state": c.session.State.String(),
	}).Debug("stale result dropped")
}

// Signer signs with the authority that was connected when it was issued.
type Signer struct {
	wallet    Wallet
	authority solana.PublicKey
}

// Authority returns the signing authority (sender and fee payer).
func (s *Signer) Authority() solana.PublicKey { return s.authority }

// Sign asks the wallet to sign tx.
func (s *Signer) Sign(ctx context.Context, tx *solana.Transaction) error {
	return s.wallet.SignTransaction(ctx, tx)
}
