package ui

import (
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/amoca-labs/amoca/internal/chain"
	"github.com/amoca-labs/amoca/internal/format"
	"github.com/amoca-labs/amoca/internal/session"
)

// CopiedFor is how long the "copied" indicator stays up.
const CopiedFor = 2 * time.Second

const headerGap = "   "

// SessionView is the read side of the session controller.
type SessionView interface {
	Session() session.Session
	Availability() session.Availability
	Balances() session.BalanceSnapshot
}

type (
	copiedMsg struct {
		seq int
		err error
	}
	copyResetMsg struct{ seq int }
)

// Header renders the wallet bar: address chip, balances, passkey hints and
// the address disclosure panel.
type Header struct {
	view    SessionView
	cluster chain.Cluster
	symbol  string
	copy    Clipboard

	open    bool
	copied  bool
	copyErr string
	copySeq int
}

// NewHeader returns a header reading from view.
func NewHeader(view SessionView, cluster chain.Cluster, tokenSymbol string, clip Clipboard) Header {
	return Header{view: view, cluster: cluster, symbol: tokenSymbol, copy: clip}
}

// Open reports whether the disclosure panel is shown.
func (h Header) Open() bool { return h.open && h.connected() }

// Copied reports whether the "copied" indicator is up.
func (h Header) Copied() bool { return h.copied }

func (h Header) connected() bool {
	return h.view.Session().State == session.StateConnected
}

// Toggle opens or closes the disclosure panel. It stays closed while no
// wallet is connected.
func (h Header) Toggle() Header {
	h.open = !h.open && h.connected()
	return h
}

// Close hides the disclosure panel.
func (h Header) Close() Header {
	h.open = false
	return h
}

// Copy writes the full authority address to the clipboard.
func (h Header) Copy() (Header, tea.Cmd) {
	addr := h.view.Session().AuthorityAddress()
	if addr == "" || h.copy == nil {
		return h, nil
	}
	h.copySeq++
	h.copyErr = ""
	seq, clip := h.copySeq, h.copy
	return h, func() tea.Msg {
		return copiedMsg{seq: seq, err: clip(addr)}
	}
}

// Update handles clipboard results, the indicator reset and mouse clicks.
func (h Header) Update(msg tea.Msg) (Header, tea.Cmd) {
	switch msg := msg.(type) {
	case copiedMsg:
		if msg.seq != h.copySeq {
			return h, nil
		}
		if msg.err != nil {
			h.copied = false
			h.copyErr = msg.err.Error()
			return h, nil
		}
		h.copied = true
		seq := msg.seq
		return h, tea.Tick(CopiedFor, func(time.Time) tea.Msg { return copyResetMsg{seq: seq} })

	case copyResetMsg:
		if msg.seq == h.copySeq {
			h.copied = false
		}

	case tea.MouseMsg:
		if msg.Action != tea.MouseActionPress || msg.Button != tea.MouseButtonLeft {
			return h, nil
		}
		return h.click(msg.X, msg.Y)
	}
	return h, nil
}

func (h Header) click(x, y int) (Header, tea.Cmd) {
	l := h.layout()
	if y == 0 && x >= l.chipStart && x < l.chipEnd && h.connected() {
		return h.Toggle(), nil
	}
	if !h.Open() {
		return h, nil
	}
	inside := y >= l.panelTop && y < l.panelTop+l.panelHeight && x < l.panelWidth
	if !inside {
		return h.Close(), nil
	}
	if y == l.copyRow {
		return h.Copy()
	}
	return h, nil
}

type headerLayout struct {
	lines       []string
	chipStart   int
	chipEnd     int
	panelTop    int
	panelHeight int
	panelWidth  int
	copyRow     int
}

func (h Header) layout() headerLayout {
	s := h.view.Session()
	left := StyleBrand.Render("🌱 amoca") + "  " + Meta(h.cluster.DisplayName)

	var l headerLayout
	var right string
	switch s.State {
	case session.StateConnected:
		caret := "▾"
		if h.open {
			caret = "▴"
		}
		chip := lipgloss.NewStyle().
			Foreground(ColorAddress).
			Bold(true).
			Render("[ " + TruncateAddr(s.AuthorityAddress()) + " " + caret + " ]")
		l.chipStart = lipgloss.Width(left + headerGap)
		l.chipEnd = l.chipStart + lipgloss.Width(chip)
		right = chip + "  " + h.balances()
	case session.StateChecking:
		right = Meta("checking for passkeys…")
	case session.StateConnecting:
		right = StyleWarning.Render("connecting…")
	default:
		right = Meta("not connected")
	}
	l.lines = append(l.lines, left+headerGap+right)

	if s.LastError != "" {
		l.lines = append(l.lines, Err(s.LastError))
	} else {
		l.lines = append(l.lines, Hint(h.hint()))
	}

	if h.Open() {
		panel := h.panel()
		l.panelTop = len(l.lines)
		l.panelHeight = lipgloss.Height(panel)
		l.panelWidth = lipgloss.Width(panel)
		l.copyRow = l.panelTop + l.panelHeight - 2 // last content row, above the border
		l.lines = append(l.lines, strings.Split(panel, "\n")...)
	}
	return l
}

func (h Header) balances() string {
	b := h.view.Balances()
	native, tok := "—", "—"
	if b.Native != nil {
		native = format.Decimal(*b.Native, 4)
	}
	if b.Token != nil {
		tok = format.Decimal(*b.Token, 2)
	}
	out := Val(native) + Meta(" SOL") + "  " + Val(tok) + Meta(" "+h.symbol)
	if b.Loading {
		out += "  " + Meta("↻")
	}
	return out
}

func (h Header) hint() string {
	s := h.view.Session()
	switch s.State {
	case session.StateChecking:
		return "looking for passkeys on this device and nearby devices"
	case session.StateHasLocalPasskey:
		return "passkey found on this device · c connect · p another device · n new passkey"
	case session.StateHasRemotePasskeyOnly:
		return "passkey available on another device · c connect · n new passkey"
	case session.StateNoPasskey:
		return "no passkey yet · c create one"
	case session.StateConnecting:
		return "approve the passkey prompt to continue"
	case session.StateConnected:
		if h.view.Balances().Loading {
			return "refreshing balances…"
		}
		return "a address · y copy · r refresh · d disconnect"
	default:
		return "c connect"
	}
}

func (h Header) panel() string {
	s := h.view.Session()
	addr := s.AuthorityAddress()
	pk := s.Authority

	copyLine := Hint("[y] copy address")
	switch {
	case h.copied:
		copyLine = Success("copied")
	case h.copyErr != "":
		copyLine = Err("copy failed: " + h.copyErr)
	}

	body := strings.Join([]string{
		Meta("Address   ") + Addr(addr),
		Meta("Explorer  ") + Meta(h.cluster.AddressURL(pk)),
		Meta("Balances  ") + h.balances(),
		copyLine,
	}, "\n")
	return StyleBorder.Render(body)
}

// View renders the header.
func (h Header) View() string {
	return strings.Join(h.layout().lines, "\n")
}

// Height is the number of terminal rows View occupies.
func (h Header) Height() int {
	return len(h.layout().lines)
}
