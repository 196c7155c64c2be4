package ui

import (
	"errors"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amoca-labs/amoca/internal/catalog"
	"github.com/amoca-labs/amoca/internal/invest"
	"github.com/amoca-labs/amoca/internal/session"
	"github.com/amoca-labs/amoca/internal/telemetry"
	"github.com/amoca-labs/amoca/internal/transfer"
)

func newApp(t *testing.T, connected bool, inv *stubInvestor) (App, *session.Controller) {
	t.Helper()
	c, _ := newController(t, connected)
	cat, err := catalog.Default()
	require.NoError(t, err)
	a := NewApp(AppConfig{
		Controller:  c,
		Investor:    inv,
		Catalog:     cat,
		Cluster:     devnet(t),
		TokenSymbol: "USDC",
		Clipboard:   func(string) error { return nil },
		Browser:     func(string) error { return nil },
		Logger:      telemetry.Discard(),
	})
	return a, c
}

func press(t *testing.T, a App, key string) (App, tea.Cmd) {
	t.Helper()
	m, cmd := a.Update(keyPress(key))
	return m.(App), cmd
}

// ---------------------------------------------------------------------------
// Layout
// ---------------------------------------------------------------------------

func TestAppShowsEnergyProjects(t *testing.T) {
	a, _ := newApp(t, false, &stubInvestor{})
	v := a.View()
	assert.Contains(t, v, "Featured energy projects (3)")
	assert.Contains(t, v, "Solar Farm in Nevada Desert")
	assert.Contains(t, v, "Connect Wallet to Invest")
	assert.NotContains(t, v, "Invest 1 SOL")
}

func TestAppFilterToggle(t *testing.T) {
	a, _ := newApp(t, false, &stubInvestor{})
	a, _ = press(t, a, "f")
	assert.Contains(t, a.View(), "All projects (6)")
	a, _ = press(t, a, "f")
	assert.Contains(t, a.View(), "(3)")
}

func TestAppConnectedButton(t *testing.T) {
	a, _ := newApp(t, true, &stubInvestor{})
	assert.Contains(t, a.View(), "Invest 1 SOL")
}

func TestAppCursorBounds(t *testing.T) {
	a, _ := newApp(t, false, &stubInvestor{})
	a, _ = press(t, a, "h")
	assert.Equal(t, 0, a.cursor)
	for range 10 {
		a, _ = press(t, a, "l")
	}
	assert.Equal(t, 2, a.cursor)
}

// ---------------------------------------------------------------------------
// Mount / unmount
// ---------------------------------------------------------------------------

func TestAppInitStartsDiscovery(t *testing.T) {
	c := session.New(&stubWallet{}, stubDiscoverer{}, stubLedger{}, session.WithLogger(telemetry.Discard()))
	cat, err := catalog.Default()
	require.NoError(t, err)
	a := NewApp(AppConfig{Controller: c, Investor: &stubInvestor{}, Catalog: cat, Cluster: devnet(t)})

	require.NotNil(t, a.Init())
	assert.Equal(t, session.StateChecking, c.State())
}

func TestAppQuit(t *testing.T) {
	a, _ := newApp(t, false, &stubInvestor{})
	_, cmd := press(t, a, "q")
	assert.NotNil(t, cmd)
	_, cmd = a.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	assert.NotNil(t, cmd)
}

// ---------------------------------------------------------------------------
// Connect / disconnect
// ---------------------------------------------------------------------------

func TestAppConnectAndDisconnect(t *testing.T) {
	a, c := newApp(t, false, &stubInvestor{})

	a, cmd := press(t, a, "c")
	require.NotNil(t, cmd)
	assert.Equal(t, session.StateConnecting, c.State())
	for cmd != nil {
		var m tea.Model
		m, cmd = a.Update(cmd())
		a = m.(App)
	}
	assert.Equal(t, session.StateConnected, c.State())

	a, _ = press(t, a, "a")
	assert.True(t, a.header.Open())
	a, cmd = press(t, a, "d")
	assert.False(t, a.header.Open())
	assert.NotNil(t, cmd, "disconnect re-runs discovery")
	assert.Nil(t, c.Balances().Native)
}

// ---------------------------------------------------------------------------
// Invest
// ---------------------------------------------------------------------------

func TestInvestDisabledWhenDisconnected(t *testing.T) {
	inv := &stubInvestor{}
	a, _ := newApp(t, false, inv)
	_, cmd := press(t, a, "enter")
	assert.Nil(t, cmd)
	assert.Zero(t, inv.calls)
}

func TestInvestTwiceRunsOnce(t *testing.T) {
	inv := &stubInvestor{receipt: &invest.Receipt{ProjectID: "1", Amount: 1, ExplorerURL: "https://explorer.solana.com/tx/x?cluster=devnet"}}
	a, _ := newApp(t, true, inv)

	a, first := press(t, a, "enter")
	require.NotNil(t, first)
	assert.Contains(t, a.View(), "Investing…")

	a, second := press(t, a, "enter")
	assert.Nil(t, second, "button disabled while in flight")

	m, _ := a.Update(first())
	a = m.(App)
	assert.Equal(t, 1, inv.calls)
	require.NotNil(t, a.modal)
	assert.Equal(t, "Investment confirmed", a.modal.Title)
	assert.Empty(t, a.investing)
}

func TestSuccessModalShowsReceiptAmount(t *testing.T) {
	m := outcomeModal(investDoneMsg{project: "4", receipt: &invest.Receipt{
		ProjectID: "4", Amount: 1.2345, AmountText: "1.23 USDC", Asset: transfer.AssetToken,
	}})
	assert.Equal(t, "Investment confirmed", m.Title)
	assert.Contains(t, m.Body, "Invested 1.23 USDC in project 4")
	assert.False(t, m.Error)
}

func TestModalBlocksInput(t *testing.T) {
	inv := &stubInvestor{err: &invest.SigningError{Err: errors.New("user cancelled")}}
	a, c := newApp(t, true, inv)

	a, cmd := press(t, a, "enter")
	m, _ := a.Update(cmd())
	a = m.(App)
	require.NotNil(t, a.modal)
	assert.True(t, a.modal.Error)
	assert.Equal(t, "Signature declined", a.modal.Title)
	assert.Contains(t, a.View(), "user cancelled")

	a, cmd = press(t, a, "d")
	assert.Nil(t, cmd)
	assert.Equal(t, session.StateConnected, c.State(), "keys behind the modal are ignored")

	m, _ = a.Update(click(1, 0))
	a = m.(App)
	assert.False(t, a.header.Open())

	a, _ = press(t, a, "enter")
	assert.Nil(t, a.modal)
}

func TestOutcomeModalTitles(t *testing.T) {
	sub := &invest.SubmissionError{Stage: "confirm", Signature: solana.Signature{1}, Err: errors.New("timeout")}
	assert.Equal(t, "Transaction failed", outcomeModal(investDoneMsg{err: sub}).Title)
	assert.Equal(t, "Investment failed", outcomeModal(investDoneMsg{err: errors.New("boom")}).Title)
}

func TestInFlightResultIgnored(t *testing.T) {
	a, _ := newApp(t, true, &stubInvestor{})
	a.investing = "1"
	m, _ := a.Update(investDoneMsg{project: "1", err: invest.ErrInFlight})
	a = m.(App)
	assert.Nil(t, a.modal)
	assert.Equal(t, "1", a.investing)
}

func TestModalOpenExplorer(t *testing.T) {
	inv := &stubInvestor{receipt: &invest.Receipt{ProjectID: "1", Amount: 1, ExplorerURL: "https://explorer.solana.com/tx/abc?cluster=devnet"}}
	c, _ := newController(t, true)
	cat, err := catalog.Default()
	require.NoError(t, err)
	var opened string
	a := NewApp(AppConfig{
		Controller: c, Investor: inv, Catalog: cat, Cluster: devnet(t),
		Browser: func(u string) error { opened = u; return nil },
		Logger:  telemetry.Discard(),
	})

	a, cmd := press(t, a, "enter")
	m, _ := a.Update(cmd())
	a = m.(App)

	_, cmd = press(t, a, "o")
	require.NotNil(t, cmd)
	cmd()
	assert.Equal(t, inv.receipt.ExplorerURL, opened)
}
