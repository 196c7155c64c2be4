package ui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// BalanceReading is one poll of an address's balances.
type BalanceReading struct {
	Address string
	Native  float64
	Token   float64
	Symbol  string
	Slot    uint64
}

type (
	watchTickMsg    time.Time
	watchReadingMsg BalanceReading
	watchErrMsg     string
)

// WatchModel polls an address's balances on an interval.
type WatchModel struct {
	interval   time.Duration
	fetch      func() (BalanceReading, error)
	reading    *BalanceReading
	previous   *BalanceReading
	lastUpdate time.Time
	err        string
	quitting   bool
}

// NewWatch returns a live balance view refreshing every interval.
func NewWatch(interval time.Duration, fetch func() (BalanceReading, error)) WatchModel {
	return WatchModel{interval: interval, fetch: fetch}
}

func (m WatchModel) Init() tea.Cmd {
	return tea.Batch(m.fetchCmd(), m.tick())
}

func (m WatchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			m.quitting = true
			return m, tea.Quit
		case "r":
			return m, m.fetchCmd()
		}

	case watchTickMsg:
		return m, tea.Batch(m.fetchCmd(), m.tick())

	case watchReadingMsg:
		r := BalanceReading(msg)
		m.previous, m.reading = m.reading, &r
		m.lastUpdate = time.Now()
		m.err = ""

	case watchErrMsg:
		m.err = string(msg)
	}
	return m, nil
}

func (m WatchModel) View() string {
	if m.quitting {
		return ""
	}
	var sb strings.Builder
	sb.WriteString(StyleTitle.Render("🌱 Live balances") + "\n")
	updated := "never"
	if !m.lastUpdate.IsZero() {
		updated = m.lastUpdate.Format("15:04:05")
	}
	sb.WriteString(Meta(fmt.Sprintf("updated %s · every %s · r refresh · q quit", updated, m.interval)) + "\n\n")

	if m.err != "" {
		sb.WriteString(Err(m.err) + "\n")
	}
	if m.reading == nil {
		sb.WriteString(Meta("loading…") + "\n")
		return sb.String()
	}

	r := m.reading
	t := NewTable([]Column{{Title: "Asset", Width: 8}, {Title: "Balance", Width: 18, Right: true}, {Title: "Change", Width: 14, Right: true}})
	t.AddRow(Row{"SOL", fmt.Sprintf("%.6f", r.Native), m.delta(r.Native, m.prevNative())})
	t.AddRow(Row{r.Symbol, fmt.Sprintf("%.2f", r.Token), m.delta(r.Token, m.prevToken())})
	sb.WriteString(Addr(r.Address) + "\n\n" + t.Render())
	if r.Slot > 0 {
		sb.WriteString(Meta(fmt.Sprintf("slot %d", r.Slot)) + "\n")
	}
	return sb.String()
}

func (m WatchModel) prevNative() *float64 {
	if m.previous == nil {
		return nil
	}
	return &m.previous.Native
}

func (m WatchModel) prevToken() *float64 {
	if m.previous == nil {
		return nil
	}
	return &m.previous.Token
}

func (m WatchModel) delta(now float64, before *float64) string {
	if before == nil || now == *before {
		return ""
	}
	d := now - *before
	if d > 0 {
		return StyleSuccess.Render(fmt.Sprintf("+%.4f", d))
	}
	return StyleError.Render(fmt.Sprintf("%.4f", d))
}

func (m WatchModel) fetchCmd() tea.Cmd {
	fetch := m.fetch
	return func() tea.Msg {
		r, err := fetch()
		if err != nil {
			return watchErrMsg(err.Error())
		}
		return watchReadingMsg(r)
	}
}

func (m WatchModel) tick() tea.Cmd {
	return tea.Tick(m.interval, func(t time.Time) tea.Msg { return watchTickMsg(t) })
}
