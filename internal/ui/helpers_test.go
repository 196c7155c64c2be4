package ui

import (
	"context"
	"errors"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/require"

	"github.com/amoca-labs/amoca/internal/catalog"
	"github.com/amoca-labs/amoca/internal/chain"
	"github.com/amoca-labs/amoca/internal/invest"
	"github.com/amoca-labs/amoca/internal/passkey"
	"github.com/amoca-labs/amoca/internal/session"
	"github.com/amoca-labs/amoca/internal/telemetry"
	"github.com/amoca-labs/amoca/internal/wallet"
)

type stubWallet struct{ authority solana.PublicKey }

func (w *stubWallet) Connect(context.Context, wallet.ConnectOptions) (solana.PublicKey, error) {
	if w.authority.IsZero() {
		return solana.PublicKey{}, errors.New("user cancelled")
	}
	return w.authority, nil
}
func (w *stubWallet) Disconnect() error                                          { return nil }
func (w *stubWallet) SignTransaction(context.Context, *solana.Transaction) error { return nil }

type stubDiscoverer struct{}

func (stubDiscoverer) Discover(context.Context) (passkey.Outcome, error) {
	return passkey.OutcomeLocal, nil
}

type stubLedger struct{}

func (stubLedger) Balance(context.Context, solana.PublicKey) (uint64, error) {
	return 2_500_000_000, nil
}

func (stubLedger) TokenBalance(context.Context, solana.PublicKey, solana.PublicKey) (chain.TokenAmount, error) {
	return chain.TokenAmount{Raw: 12_500_000, Decimals: 6}, nil
}

type stubInvestor struct {
	calls    int
	inFlight bool
	receipt  *invest.Receipt
	err      error
}

func (s *stubInvestor) Invest(context.Context, catalog.Project, invest.Signer) (*invest.Receipt, error) {
	s.calls++
	return s.receipt, s.err
}
func (s *stubInvestor) InFlight() bool { return s.inFlight }
func (s *stubInvestor) Label() string  { return "Invest 1 SOL" }

// drive feeds cmd results back into the controller until it settles.
func drive(c *session.Controller, cmd tea.Cmd) {
	for cmd != nil {
		cmd = c.Update(cmd())
	}
}

func newController(t *testing.T, connected bool) (*session.Controller, solana.PublicKey) {
	t.Helper()
	k, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)
	c := session.New(&stubWallet{authority: k.PublicKey()}, stubDiscoverer{}, stubLedger{},
		session.WithLogger(telemetry.Discard()))
	drive(c, c.Init())
	if connected {
		drive(c, c.Connect(session.PreferLocalFirst))
		require.Equal(t, session.StateConnected, c.State())
	}
	return c, k.PublicKey()
}

func devnet(t *testing.T) chain.Cluster {
	t.Helper()
	c, err := chain.ClusterByName("devnet")
	require.NoError(t, err)
	return c
}

func keyPress(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func click(x, y int) tea.MouseMsg {
	return tea.MouseMsg{X: x, Y: y, Action: tea.MouseActionPress, Button: tea.MouseButtonLeft}
}
