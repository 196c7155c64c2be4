// Package rpc chooses which Solana RPC endpoint amoca talks to. Endpoints are
// probed for latency, slot height and health, then picked by one of three
// algorithms.
package rpc

import (
	"cmp"
	"errors"
	"slices"
	"sync"
	"time"
)

// ErrNoHealthyRPC is returned when no healthy RPC endpoint is available.
var ErrNoHealthyRPC = errors.New("no healthy RPC endpoint available")

// Algorithm defines how an RPC endpoint is selected.
type Algorithm string

const (
	AlgorithmFastest    Algorithm = "fastest"
	AlgorithmRoundRobin Algorithm = "round-robin"
	AlgorithmFailover   Algorithm = "failover"
)

// MaxSlotLag is how far (in slots, roughly a minute) a node may trail the
// best one before it is treated as stale.
const MaxSlotLag = 150

// Endpoint is one RPC URL with its measured attributes.
type Endpoint struct {
	URL     string
	Latency time.Duration
	Slot    uint64
	Healthy bool // meaningful only when Checked == true
	Checked bool // true when the endpoint has been probed
}

// usable reports whether e may be selected at all.
func (e Endpoint) usable() bool { return !e.Checked || e.Healthy }

// Lag returns how many slots e trails best by.
func (e Endpoint) Lag(best uint64) uint64 {
	if best > e.Slot {
		return best - e.Slot
	}
	return 0
}

// Picker selects an endpoint according to its algorithm. Round-robin state
// is kept per Picker.
type Picker struct {
	algo Algorithm

	mu   sync.Mutex
	next int
}

// NewPicker creates a Picker. Unknown algorithms behave as fastest.
func NewPicker(algo Algorithm) *Picker {
	return &Picker{algo: algo}
}

// Pick selects an endpoint from endpoints.
func (p *Picker) Pick(endpoints []Endpoint) (*Endpoint, error) {
	var idx int
	switch p.algo {
	case AlgorithmRoundRobin:
		idx = p.roundRobin(endpoints)
	case AlgorithmFailover:
		idx = slices.IndexFunc(endpoints, Endpoint.usable)
	default:
		idx = fastest(endpoints)
	}
	if idx < 0 {
		return nil, ErrNoHealthyRPC
	}
	return &endpoints[idx], nil
}

func (p *Picker) roundRobin(endpoints []Endpoint) int {
	var usable []int
	for i, e := range endpoints {
		if e.usable() {
			usable = append(usable, i)
		}
	}
	if len(usable) == 0 {
		return -1
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	n := p.next % len(usable)
	p.next = n + 1
	return usable[n]
}

// Rank orders the usable, non-stale endpoints best first by score.
func Rank(endpoints []Endpoint) []Endpoint {
	best := BestSlot(endpoints)
	var out []Endpoint
	for _, e := range endpoints {
		if e.usable() && e.Lag(best) <= MaxSlotLag {
			out = append(out, e)
		}
	}
	slices.SortStableFunc(out, func(a, b Endpoint) int {
		return cmp.Compare(score(b, best), score(a, best))
	})
	return out
}

func fastest(endpoints []Endpoint) int {
	ranked := Rank(endpoints)
	if len(ranked) == 0 {
		return -1
	}
	return slices.IndexFunc(endpoints, func(e Endpoint) bool { return e.URL == ranked[0].URL })
}

// BestSlot is the highest slot reported by a usable endpoint. Unhealthy nodes
// are ignored so a misbehaving one cannot mark every other node stale.
func BestSlot(endpoints []Endpoint) uint64 {
	var best uint64
	for _, e := range endpoints {
		if e.usable() {
			best = max(best, e.Slot)
		}
	}
	return best
}

// score favours low latency and loses a point per 15 slots (~6s) behind.
func score(e Endpoint, best uint64) float64 {
	var s float64
	switch ms := e.Latency.Milliseconds(); {
	case ms > 0:
		s = 1000 / float64(ms)
	case e.Latency > 0:
		s = 1000
	}
	return s - float64(e.Lag(best))/15
}
