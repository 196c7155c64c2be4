package rpc

import "context"

// HealthCheck probes url once. The endpoint is healthy when it answers
// getHealth with "ok" and trails bestSlot by at most MaxSlotLag. A bestSlot of
// zero skips the lag check.
func HealthCheck(ctx context.Context, url string, bestSlot uint64) (Endpoint, error) {
	latency, slot, err := Probe(ctx, url)
	ep := Endpoint{URL: url, Latency: latency, Slot: slot, Checked: true}
	ep.Healthy = err == nil && ep.Lag(bestSlot) <= MaxSlotLag
	return ep, err
}
