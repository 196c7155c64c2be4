package ui

import (
	"fmt"
	"sort"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/amoca-labs/amoca/internal/format"
	"github.com/amoca-labs/amoca/internal/rpc"
)

// ProbeStatus is the state of one endpoint probe.
type ProbeStatus int

const (
	ProbeRunning ProbeStatus = iota
	ProbeDone
	ProbeFailed
)

// ProbeRow is one endpoint in the live benchmark view.
type ProbeRow struct {
	URL     string
	Status  ProbeStatus
	Latency time.Duration
	Slot    uint64
	ErrMsg  string
}

// ProbeResultMsg carries one finished probe.
type ProbeResultMsg rpc.BenchmarkResult

type probeTickMsg struct{}

var spinFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

// ProbeModel streams endpoint benchmark results as they arrive and sorts
// them fastest first once all are in.
type ProbeModel struct {
	Cluster  string
	Rows     []ProbeRow
	index    map[string]int
	done     int
	frame    int
	sorted   bool
	quitting bool
	probe    func(url string) tea.Cmd
}

// NewProbeModel returns a view probing urls with probe.
func NewProbeModel(cluster string, urls []string, probe func(url string) tea.Cmd) ProbeModel {
	m := ProbeModel{Cluster: cluster, index: make(map[string]int, len(urls)), probe: probe}
	for i, u := range urls {
		m.Rows = append(m.Rows, ProbeRow{URL: u})
		m.index[u] = i
	}
	return m
}

func probeTick() tea.Cmd {
	return tea.Tick(80*time.Millisecond, func(time.Time) tea.Msg { return probeTickMsg{} })
}

func (m ProbeModel) Init() tea.Cmd {
	cmds := []tea.Cmd{probeTick()}
	for _, r := range m.Rows {
		cmds = append(cmds, m.probe(r.URL))
	}
	return tea.Batch(cmds...)
}

// Finished reports whether every probe has answered.
func (m ProbeModel) Finished() bool { return m.done >= len(m.Rows) }

func (m ProbeModel) failures() int {
	n := 0
	for _, r := range m.Rows {
		if r.Status == ProbeFailed {
			n++
		}
	}
	return n
}

func (m ProbeModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			m.quitting = true
			return m, tea.Quit
		case "r":
			var cmds []tea.Cmd
			for i := range m.Rows {
				if m.Rows[i].Status == ProbeFailed {
					m.Rows[i] = ProbeRow{URL: m.Rows[i].URL}
					m.done--
					m.sorted = false
					cmds = append(cmds, m.probe(m.Rows[i].URL))
				}
			}
			return m, tea.Batch(cmds...)
		}

	case probeTickMsg:
		m.frame = (m.frame + 1) % len(spinFrames)
		if m.Finished() && !m.sorted {
			m.sortRows()
		}
		return m, probeTick()

	case ProbeResultMsg:
		i, ok := m.index[msg.URL]
		if !ok || m.Rows[i].Status != ProbeRunning {
			return m, nil
		}
		if msg.Err != nil {
			m.Rows[i].Status = ProbeFailed
			m.Rows[i].ErrMsg = trimErr(msg.Err.Error())
		} else {
			m.Rows[i].Status = ProbeDone
			m.Rows[i].Latency = msg.Latency
			m.Rows[i].Slot = msg.Slot
		}
		m.done++
	}
	return m, nil
}

// sortRows orders rows fastest first with failures last.
func (m *ProbeModel) sortRows() {
	sort.SliceStable(m.Rows, func(i, j int) bool {
		a, b := m.Rows[i], m.Rows[j]
		if (a.Status == ProbeFailed) != (b.Status == ProbeFailed) {
			return b.Status == ProbeFailed
		}
		return a.Latency < b.Latency
	})
	for i, r := range m.Rows {
		m.index[r.URL] = i
	}
	m.sorted = true
}

func (m ProbeModel) bestSlot() uint64 {
	var best uint64
	for _, r := range m.Rows {
		if r.Status == ProbeDone && r.Slot > best {
			best = r.Slot
		}
	}
	return best
}

func (m ProbeModel) View() string {
	if m.quitting {
		return ""
	}
	var sb strings.Builder
	spin := spinFrames[m.frame]

	sb.WriteString(StyleTitle.Render("⚡ RPC benchmark · "+m.Cluster) + "\n")
	if m.Finished() {
		label := fmt.Sprintf("✓ %d/%d endpoints probed", m.done, len(m.Rows))
		if m.sorted {
			label += " · fastest first"
		}
		sb.WriteString(StyleSuccess.Render(label) + "\n\n")
	} else {
		sb.WriteString(Info(fmt.Sprintf("%s %d/%d probing…", spin, m.done, len(m.Rows))) + "\n\n")
	}

	const wURL, wLat, wSlot = 44, 10, 14
	sb.WriteString(padR(StyleDim.Render("ENDPOINT"), wURL) + "  " +
		padR(StyleDim.Render("LATENCY"), wLat) + "  " +
		padR(StyleDim.Render("SLOT"), wSlot) + "  " +
		StyleDim.Render("STATUS") + "\n")
	sep := StyleMeta.Render(strings.Repeat("─", wURL+wLat+wSlot+14))
	sb.WriteString(sep + "\n")

	best := m.bestSlot()
	for _, r := range m.Rows {
		lat, slot, status := m.cells(r, best, spin)
		sb.WriteString(padR(Addr(clip(r.URL, wURL)), wURL) + "  " +
			padR(lat, wLat) + "  " + padR(slot, wSlot) + "  " + status + "\n")
	}
	sb.WriteString(sep + "\n\n")

	keys := "[ q ] quit"
	if m.failures() > 0 {
		keys = "[ r ] retry failed   " + keys
	}
	sb.WriteString(Hint(keys) + "\n")
	return sb.String()
}

func (m ProbeModel) cells(r ProbeRow, best uint64, spin string) (lat, slot, status string) {
	switch r.Status {
	case ProbeRunning:
		return StyleMeta.Render(spin), StyleMeta.Render("—"), StyleMeta.Render("⏳")
	case ProbeFailed:
		return StyleMeta.Render("—"), StyleMeta.Render("—"), StyleError.Render("✗ " + r.ErrMsg)
	}
	lat = StyleValue.Render(r.Latency.Truncate(time.Millisecond).String())
	slot = Meta(format.Number(float64(r.Slot)))
	ep := rpc.Endpoint{Slot: r.Slot}
	if lag := ep.Lag(best); lag > rpc.MaxSlotLag {
		return lat, slot, StyleWarning.Render(fmt.Sprintf("⚠ %d slots behind", lag))
	}
	return lat, slot, StyleSuccess.Render("✓")
}

// padR pads s to visible width n.
func padR(s string, n int) string {
	w := lipgloss.Width(s)
	if w >= n {
		return s
	}
	return s + strings.Repeat(" ", n-w)
}

func trimErr(s string) string {
	// Strip noisy transport prefixes from RPC error messages.
	for _, marker := range []string{"dial tcp", "connection refused", "context deadline", "429", "Post \""} {
		if idx := strings.Index(s, marker); idx >= 0 {
			s = s[idx:]
			break
		}
	}
	if len(s) > 30 {
		return s[:30] + "…"
	}
	return s
}
