package rpc

import (
	"context"
	"fmt"
	"time"

	gethrpc "github.com/ethereum/go-ethereum/rpc"
)

const probeTimeout = 5 * time.Second

// Probe measures one endpoint: getSlot latency and height, then getHealth.
// A node that answers getSlot but reports itself unhealthy returns its slot
// together with the health error.
func Probe(ctx context.Context, url string) (latency time.Duration, slot uint64, err error) {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	client, err := gethrpc.DialContext(ctx, url)
	if err != nil {
		return 0, 0, fmt.Errorf("dial %s: %w", url, err)
	}
	defer client.Close()

	start := time.Now()
	if err := client.CallContext(ctx, &slot, "getSlot"); err != nil {
		return time.Since(start), 0, fmt.Errorf("getSlot: %w", err)
	}
	latency = time.Since(start)

	var health string
	if err := client.CallContext(ctx, &health, "getHealth"); err != nil {
		return latency, slot, fmt.Errorf("getHealth: %w", err)
	}
	if health != "ok" {
		return latency, slot, fmt.Errorf("getHealth: %s", health)
	}
	return latency, slot, nil
}
