package ui

import (
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ---------------------------------------------------------------------------
// ProbeModel
// ---------------------------------------------------------------------------

func newProbeModel(urls ...string) (ProbeModel, *[]string) {
	var probed []string
	m := NewProbeModel("devnet", urls, func(url string) tea.Cmd {
		probed = append(probed, url)
		return func() tea.Msg { return nil }
	})
	return m, &probed
}

func apply(t *testing.T, m ProbeModel, msg tea.Msg) ProbeModel {
	t.Helper()
	next, _ := m.Update(msg)
	return next.(ProbeModel)
}

func TestProbeModelInitProbesAll(t *testing.T) {
	m, probed := newProbeModel("https://a", "https://b")
	require.NotNil(t, m.Init())
	assert.Equal(t, []string{"https://a", "https://b"}, *probed)
	assert.False(t, m.Finished())
}

func TestProbeModelSortsFastestFirstWithFailuresLast(t *testing.T) {
	m, _ := newProbeModel("https://slow", "https://down", "https://fast")
	m = apply(t, m, ProbeResultMsg{URL: "https://slow", Latency: 300 * time.Millisecond, Slot: 1000})
	m = apply(t, m, ProbeResultMsg{URL: "https://down", Err: errors.New("dial tcp: connection refused")})
	m = apply(t, m, ProbeResultMsg{URL: "https://fast", Latency: 40 * time.Millisecond, Slot: 1000})
	require.True(t, m.Finished())

	m = apply(t, m, probeTickMsg{})
	assert.Equal(t, "https://fast", m.Rows[0].URL)
	assert.Equal(t, "https://slow", m.Rows[1].URL)
	assert.Equal(t, ProbeFailed, m.Rows[2].Status)
	assert.Contains(t, m.View(), "fastest first")
}

func TestProbeModelIgnoresUnknownAndDuplicate(t *testing.T) {
	m, _ := newProbeModel("https://a")
	m = apply(t, m, ProbeResultMsg{URL: "https://other", Latency: time.Millisecond})
	assert.False(t, m.Finished())
	m = apply(t, m, ProbeResultMsg{URL: "https://a", Latency: time.Millisecond})
	m = apply(t, m, ProbeResultMsg{URL: "https://a", Latency: time.Second})
	assert.Equal(t, time.Millisecond, m.Rows[0].Latency)
}

func TestProbeModelRetryFailed(t *testing.T) {
	m, probed := newProbeModel("https://ok", "https://down")
	m = apply(t, m, ProbeResultMsg{URL: "https://ok", Latency: time.Millisecond})
	m = apply(t, m, ProbeResultMsg{URL: "https://down", Err: errors.New("timeout")})
	require.Contains(t, m.View(), "retry failed")

	m = apply(t, m, keyPress("r"))
	assert.Equal(t, []string{"https://down"}, *probed)
	assert.False(t, m.Finished())
}

func TestProbeModelFlagsLaggingNode(t *testing.T) {
	m, _ := newProbeModel("https://a", "https://b")
	m = apply(t, m, ProbeResultMsg{URL: "https://a", Latency: time.Millisecond, Slot: 10_000})
	m = apply(t, m, ProbeResultMsg{URL: "https://b", Latency: time.Millisecond, Slot: 9_000})
	assert.Contains(t, m.View(), "1000 slots behind")
}

// ---------------------------------------------------------------------------
// padR / trimErr
// ---------------------------------------------------------------------------

func TestPadR(t *testing.T) {
	assert.Equal(t, "hi        ", padR("hi", 10))
	assert.Equal(t, "toolongstring", padR("toolongstring", 5))
	assert.Equal(t, "    ", padR("", 4))
}

func TestTrimErr(t *testing.T) {
	assert.Equal(t, "short error", trimErr("short error"))
	assert.True(t, strings.HasPrefix(trimErr("post: dial tcp 127.0.0.1:8899: connection refused"), "dial tcp"))
	assert.True(t, strings.HasPrefix(trimErr("rpc: context deadline exceeded"), "context deadline"))

	long := trimErr(strings.Repeat("x", 50))
	assert.Contains(t, long, "…")
	assert.LessOrEqual(t, len(long), 34)
}

// ---------------------------------------------------------------------------
// WatchModel
// ---------------------------------------------------------------------------

func TestWatchShowsReadingAndDelta(t *testing.T) {
	calls := 0
	m := NewWatch(time.Second, func() (BalanceReading, error) {
		calls++
		return BalanceReading{Address: "vines1", Native: float64(calls), Token: 5, Symbol: "USDC"}, nil
	})
	assert.Contains(t, m.View(), "loading")

	cmd := m.fetchCmd()
	next, _ := m.Update(cmd())
	next, _ = next.Update(cmd())
	v := next.View()
	assert.Contains(t, v, "2.000000")
	assert.Contains(t, v, "+1.0000")
	assert.Contains(t, v, "USDC")
}

func TestWatchShowsError(t *testing.T) {
	m := NewWatch(time.Second, func() (BalanceReading, error) { return BalanceReading{}, errors.New("429 too many requests") })
	next, _ := m.Update(m.fetchCmd()())
	assert.Contains(t, next.View(), "429")
}
