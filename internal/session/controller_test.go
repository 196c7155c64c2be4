package session

import (
	"context"
	"errors"
	"sync"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amoca-labs/amoca/internal/chain"
	"github.com/amoca-labs/amoca/internal/passkey"
	"github.com/amoca-labs/amoca/internal/telemetry"
	"github.com/amoca-labs/amoca/internal/wallet"
)

// ---------------------------------------------------------------------------
// fakes
// ---------------------------------------------------------------------------

type fakeWallet struct {
	mu          sync.Mutex
	authority   solana.PublicKey
	connectErr  error
	connects    []wallet.ConnectOptions
	disconnects int
	signed      int
}

func (w *fakeWallet) Connect(_ context.Context, opts wallet.ConnectOptions) (solana.PublicKey, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.connects = append(w.connects, opts)
	if w.connectErr != nil {
		return solana.PublicKey{}, w.connectErr
	}
	return w.authority, nil
}

func (w *fakeWallet) Disconnect() error {
	w.disconnects++
	return nil
}

func (w *fakeWallet) SignTransaction(context.Context, *solana.Transaction) error {
	w.signed++
	return nil
}

type fakeDiscoverer struct {
	outcome passkey.Outcome
	err     error
	calls   int
}

func (d *fakeDiscoverer) Discover(context.Context) (passkey.Outcome, error) {
	d.calls++
	return d.outcome, d.err
}

type fakeLedger struct {
	lamports  uint64
	token     chain.TokenAmount
	nativeErr error
	tokenErr  error
}

func (l *fakeLedger) Balance(context.Context, solana.PublicKey) (uint64, error) {
	return l.lamports, l.nativeErr
}

func (l *fakeLedger) TokenBalance(context.Context, solana.PublicKey, solana.PublicKey) (chain.TokenAmount, error) {
	return l.token, l.tokenErr
}

type harness struct {
	c      *Controller
	wallet *fakeWallet
	disc   *fakeDiscoverer
	ledger *fakeLedger
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	k, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)
	mint, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)

	h := &harness{
		wallet: &fakeWallet{authority: k.PublicKey()},
		disc:   &fakeDiscoverer{outcome: passkey.OutcomeLocal},
		ledger: &fakeLedger{lamports: 2_500_000_000, token: chain.TokenAmount{Raw: 12_500_000, Decimals: 6}},
	}
	h.c = New(h.wallet, h.disc, h.ledger,
		WithMint(mint.PublicKey()),
		WithLogger(telemetry.Discard()),
		WithMetrics(telemetry.NewMetrics()),
	)
	return h
}

// run executes cmd and returns its message without applying it.
func run(t *testing.T, cmd tea.Cmd) tea.Msg {
	t.Helper()
	require.NotNil(t, cmd, "expected a command")
	return cmd()
}

// settle runs cmd and feeds every resulting message back through Update.
func (h *harness) settle(t *testing.T, cmd tea.Cmd) {
	t.Helper()
	for cmd != nil {
		cmd = h.c.Update(cmd())
	}
}

func (h *harness) connected(t *testing.T) {
	t.Helper()
	h.settle(t, h.c.Init())
	h.settle(t, h.c.Connect(PreferLocalFirst))
	require.Equal(t, StateConnected, h.c.State())
}

func assertNoBalances(t *testing.T, c *Controller) {
	t.Helper()
	if c.State() == StateConnected {
		return
	}
	b := c.Balances()
	assert.Nil(t, b.Native, "native balance in state %s", c.State())
	assert.Nil(t, b.Token, "token balance in state %s", c.State())
}

// ---------------------------------------------------------------------------
// Discovery
// ---------------------------------------------------------------------------

func TestInitEntersChecking(t *testing.T) {
	h := newHarness(t)
	cmd := h.c.Init()
	require.NotNil(t, cmd)
	assert.Equal(t, StateChecking, h.c.State())
	assert.True(t, h.c.Availability().Checking)
	assert.Equal(t, PresenceUnknown, h.c.Availability().Local)
	assert.False(t, h.c.CanConnect(), "connect must wait for discovery")
}

func TestDiscoveryOutcomesAreExclusive(t *testing.T) {
	cases := []struct {
		outcome passkey.Outcome
		state   State
		local   Presence
		remote  bool
	}{
		{passkey.OutcomeLocal, StateHasLocalPasskey, PresencePresent, false},
		{passkey.OutcomeRemoteOnly, StateHasRemotePasskeyOnly, PresenceAbsent, true},
		{passkey.OutcomeNone, StateNoPasskey, PresenceAbsent, false},
	}
	for _, tc := range cases {
		t.Run(tc.outcome.String(), func(t *testing.T) {
			h := newHarness(t)
			h.disc.outcome = tc.outcome
			h.settle(t, h.c.Init())

			assert.Equal(t, tc.state, h.c.State())
			a := h.c.Availability()
			assert.False(t, a.Checking)
			assert.Equal(t, tc.local, a.Local)
			assert.Equal(t, tc.remote, a.Remote)

			held := 0
			for _, s := range []State{StateHasLocalPasskey, StateHasRemotePasskeyOnly, StateNoPasskey} {
				if h.c.State() == s {
					held++
				}
			}
			assert.Equal(t, 1, held)
			assert.True(t, h.c.CanConnect())
		})
	}
}

func TestDiscoveryErrorRecorded(t *testing.T) {
	h := newHarness(t)
	h.disc.outcome, h.disc.err = passkey.OutcomeNone, errors.New("keychain locked")
	h.settle(t, h.c.Init())

	assert.Equal(t, StateNoPasskey, h.c.State())
	assert.Equal(t, "keychain locked", h.c.Session().LastError)
	var ce *ConnectionError
	require.True(t, errors.As(h.c.Err(), &ce))
	assert.Equal(t, "discover", ce.Op)
}

func TestInitNoopWhileChecking(t *testing.T) {
	h := newHarness(t)
	require.NotNil(t, h.c.Init())
	assert.Nil(t, h.c.Init())
}

func TestStaleDiscoveryDropped(t *testing.T) {
	h := newHarness(t)
	h.connected(t)

	h.disc.outcome = passkey.OutcomeNone
	first := h.c.Disconnect() // discovery #2
	require.NotNil(t, first)
	stale := first()

	// A fresh discovery is started before the first result lands.
	h.c.session.State = StateDisconnected
	second := h.c.Init()
	h.disc.outcome = passkey.OutcomeRemoteOnly
	h.c.Update(stale)
	assert.Equal(t, StateChecking, h.c.State(), "stale discovery result ignored")

	h.settle(t, second)
	assert.Equal(t, StateHasRemotePasskeyOnly, h.c.State())
}

// ---------------------------------------------------------------------------
// Connect
// ---------------------------------------------------------------------------

func TestConnectSuccessRefreshesBalances(t *testing.T) {
	h := newHarness(t)
	h.settle(t, h.c.Init())

	cmd := h.c.Connect(PreferLocalFirst)
	assert.Equal(t, StateConnecting, h.c.State())
	assert.Equal(t, Connecting, h.c.Session().ConnectionState())
	assert.False(t, h.c.CanConnect())
	assert.Nil(t, h.c.Connect(PreferAnyDevice), "no second connect while connecting")

	refresh := h.c.Update(run(t, cmd))
	assert.Equal(t, StateConnected, h.c.State())
	assert.Equal(t, h.wallet.authority, h.c.Session().Authority)
	require.NotNil(t, refresh, "connect triggers a balance refresh")
	assert.True(t, h.c.Balances().Loading)
	assert.False(t, h.c.CanRefresh())

	h.settle(t, refresh)
	b := h.c.Balances()
	require.NotNil(t, b.Native)
	require.NotNil(t, b.Token)
	assert.InDelta(t, 2.5, *b.Native, 1e-9)
	assert.InDelta(t, 12.5, *b.Token, 1e-9)
	assert.False(t, b.Loading)
	assert.True(t, h.c.CanInvest())

	require.Len(t, h.wallet.connects, 1)
	assert.Equal(t, wallet.ConnectOptions{UseExistingCredentials: true, PreferLocalDevice: true}, h.wallet.connects[0])
}

func TestConnectUserCancelledRestoresPriorState(t *testing.T) {
	h := newHarness(t)
	h.settle(t, h.c.Init())
	require.Equal(t, StateHasLocalPasskey, h.c.State())

	h.wallet.connectErr = errors.New("user cancelled")
	h.settle(t, h.c.Connect(PreferLocalFirst))

	assert.Equal(t, StateHasLocalPasskey, h.c.State())
	assert.Equal(t, Disconnected, h.c.Session().ConnectionState())
	assert.Equal(t, "user cancelled", h.c.Session().LastError)
	assert.False(t, h.c.CanInvest())
	assert.True(t, h.c.Session().Authority.IsZero())
	assertNoBalances(t, h.c)
	assert.Len(t, h.wallet.connects, 1, "no automatic retry")

	var ce *ConnectionError
	require.True(t, errors.As(h.c.Err(), &ce))
	assert.Equal(t, "connect", ce.Op)
}

func TestConnectClearsPreviousError(t *testing.T) {
	h := newHarness(t)
	h.settle(t, h.c.Init())
	h.wallet.connectErr = errors.New("user cancelled")
	h.settle(t, h.c.Connect(PreferLocalFirst))
	require.NotEmpty(t, h.c.Session().LastError)

	h.wallet.connectErr = nil
	h.c.Connect(PreferLocalFirst)
	assert.Empty(t, h.c.Session().LastError)
}

func TestConnectRefusedWhenConnected(t *testing.T) {
	h := newHarness(t)
	h.connected(t)
	assert.Nil(t, h.c.Connect(PreferForceNew))
}

func TestConnectZeroAuthorityIsFailure(t *testing.T) {
	h := newHarness(t)
	h.settle(t, h.c.Init())
	h.wallet.authority = solana.PublicKey{}
	h.settle(t, h.c.Connect(PreferLocalFirst))
	assert.Equal(t, StateHasLocalPasskey, h.c.State())
	assert.NotEmpty(t, h.c.Session().LastError)
}

// ---------------------------------------------------------------------------
// Disconnect
// ---------------------------------------------------------------------------

func TestDisconnectClearsAndRediscovers(t *testing.T) {
	h := newHarness(t)
	h.connected(t)

	cmd := h.c.Disconnect()
	assert.Equal(t, 1, h.wallet.disconnects)
	assert.Equal(t, StateChecking, h.c.State())
	assert.True(t, h.c.Session().Authority.IsZero())
	assertNoBalances(t, h.c)
	require.NotNil(t, cmd, "disconnect re-runs discovery")

	h.settle(t, cmd)
	assert.Equal(t, StateHasLocalPasskey, h.c.State())
	assert.Equal(t, 2, h.disc.calls)
}

func TestDisconnectNoopUnlessConnected(t *testing.T) {
	h := newHarness(t)
	assert.Nil(t, h.c.Disconnect())
	assert.Equal(t, 0, h.wallet.disconnects)
}

func TestDisconnectDuringRefreshDropsStaleBalances(t *testing.T) {
	h := newHarness(t)
	h.settle(t, h.c.Init())
	refresh := h.c.Update(run(t, h.c.Connect(PreferLocalFirst)))
	require.NotNil(t, refresh)

	late := run(t, refresh) // response still in flight
	h.settle(t, h.c.Disconnect())

	h.c.Update(late)
	assertNoBalances(t, h.c)
	assert.False(t, h.c.Balances().Loading)
}

func TestLateBalancesAfterReconnectDropped(t *testing.T) {
	h := newHarness(t)
	h.settle(t, h.c.Init())
	refresh := h.c.Update(run(t, h.c.Connect(PreferLocalFirst)))
	late := run(t, refresh)

	h.settle(t, h.c.Disconnect())
	h.ledger.lamports = 7_000_000_000
	h.settle(t, h.c.Connect(PreferLocalFirst))
	require.Equal(t, StateConnected, h.c.State())

	h.c.Update(late)
	require.NotNil(t, h.c.Balances().Native)
	assert.InDelta(t, 7.0, *h.c.Balances().Native, 1e-9, "previous generation must not overwrite")
}

// ---------------------------------------------------------------------------
// Refresh
// ---------------------------------------------------------------------------

func TestRefreshGuardedByLoading(t *testing.T) {
	h := newHarness(t)
	h.connected(t)

	cmd := h.c.Refresh()
	require.NotNil(t, cmd)
	assert.Nil(t, h.c.Refresh(), "second refresh refused while loading")
	h.settle(t, cmd)
	assert.True(t, h.c.CanRefresh())
}

func TestRefreshNoopWhenDisconnected(t *testing.T) {
	h := newHarness(t)
	assert.Nil(t, h.c.Refresh())
	h.settle(t, h.c.Init())
	assert.Nil(t, h.c.Refresh())
}

func TestRefreshErrorKeepsPreviousValues(t *testing.T) {
	h := newHarness(t)
	h.connected(t)

	h.ledger.nativeErr = errors.New("429 too many requests")
	h.settle(t, h.c.Refresh())

	b := h.c.Balances()
	require.NotNil(t, b.Native)
	assert.InDelta(t, 2.5, *b.Native, 1e-9)
	assert.False(t, b.Loading)
	assert.Contains(t, h.c.Session().LastError, "429")
	assert.Equal(t, StateConnected, h.c.State())
}

func TestTokenReadFailureKeepsNativeBalance(t *testing.T) {
	h := newHarness(t)
	h.ledger.tokenErr = errors.New("rpc: internal error")
	h.connected(t)

	b := h.c.Balances()
	require.NotNil(t, b.Native)
	assert.InDelta(t, 2.5, *b.Native, 1e-9)
	assert.Nil(t, b.Token, "token balance is unknown")
	assert.False(t, b.Loading)
	assert.Empty(t, h.c.Session().LastError)
	assert.Equal(t, StateConnected, h.c.State())
}

func TestFreshAddressTokenBalanceZero(t *testing.T) {
	h := newHarness(t)
	h.ledger.token = chain.TokenAmount{}
	h.connected(t)

	require.NotNil(t, h.c.Balances().Token)
	assert.Equal(t, 0.0, *h.c.Balances().Token)
	assert.Empty(t, h.c.Session().LastError)
}

// ---------------------------------------------------------------------------
// Invariants across a full cycle
// ---------------------------------------------------------------------------

func TestBalancesNilOutsideConnected(t *testing.T) {
	h := newHarness(t)
	assertNoBalances(t, h.c)

	steps := []func() tea.Cmd{
		h.c.Init,
		func() tea.Cmd { return h.c.Connect(PreferLocalFirst) },
		h.c.Refresh,
		h.c.Disconnect,
		func() tea.Cmd { return h.c.Connect(PreferAnyDevice) },
		h.c.Disconnect,
	}
	for _, step := range steps {
		cmd := step()
		assertNoBalances(t, h.c)
		for cmd != nil {
			cmd = h.c.Update(cmd())
			assertNoBalances(t, h.c)
		}
	}
}

// ---------------------------------------------------------------------------
// Signer / preferences
// ---------------------------------------------------------------------------

func TestSignerRequiresConnection(t *testing.T) {
	h := newHarness(t)
	_, err := h.c.Signer()
	assert.ErrorIs(t, err, ErrNotConnected)

	h.connected(t)
	s, err := h.c.Signer()
	require.NoError(t, err)
	assert.Equal(t, h.wallet.authority, s.Authority())
	require.NoError(t, s.Sign(context.Background(), &solana.Transaction{}))
	assert.Equal(t, 1, h.wallet.signed)
}

func TestPreferenceOptions(t *testing.T) {
	assert.Equal(t, wallet.ConnectOptions{UseExistingCredentials: true, PreferLocalDevice: true}, PreferLocalFirst.Options())
	assert.Equal(t, wallet.ConnectOptions{UseExistingCredentials: true}, PreferAnyDevice.Options())
	assert.Equal(t, wallet.ConnectOptions{PreferLocalDevice: true}, PreferForceNew.Options())
}

func TestDefaultPreference(t *testing.T) {
	for outcome, want := range map[passkey.Outcome]Preference{
		passkey.OutcomeLocal:      PreferLocalFirst,
		passkey.OutcomeRemoteOnly: PreferAnyDevice,
		passkey.OutcomeNone:       PreferForceNew,
	} {
		h := newHarness(t)
		h.disc.outcome = outcome
		h.settle(t, h.c.Init())
		assert.Equal(t, want, h.c.DefaultPreference(), outcome.String())
	}
}

func TestStateStrings(t *testing.T) {
	assert.Equal(t, "has-remote-passkey-only", StateHasRemotePasskeyOnly.String())
	assert.Equal(t, "unknown", State(42).String())
	assert.Equal(t, Connected, StateConnected.Connection())
	assert.Equal(t, Disconnected, StateNoPasskey.Connection())
	assert.Equal(t, "", Session{}.AuthorityAddress())
}
