package rpc

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"
)

// maxParallelProbes bounds concurrent probes during a benchmark.
const maxParallelProbes = 8

// BenchmarkResult holds the result of a single endpoint benchmark.
type BenchmarkResult struct {
	URL     string
	Latency time.Duration
	Slot    uint64
	Err     error
}

// Benchmark probes all urls in parallel and returns results in input order.
func Benchmark(ctx context.Context, urls []string) []BenchmarkResult {
	results := make([]BenchmarkResult, len(urls))

	var g errgroup.Group
	g.SetLimit(maxParallelProbes)
	for i, url := range urls {
		g.Go(func() error {
			latency, slot, err := Probe(ctx, url)
			results[i] = BenchmarkResult{URL: url, Latency: latency, Slot: slot, Err: err}
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// ResultsToEndpoints converts benchmark results to picker endpoints. All of
// them are Checked since they were actively probed.
func ResultsToEndpoints(results []BenchmarkResult) []Endpoint {
	endpoints := make([]Endpoint, 0, len(results))
	for _, r := range results {
		endpoints = append(endpoints, Endpoint{
			URL:     r.URL,
			Latency: r.Latency,
			Slot:    r.Slot,
			Healthy: r.Err == nil,
			Checked: true,
		})
	}
	return endpoints
}

// Best benchmarks urls and returns the winner under algo.
func Best(ctx context.Context, urls []string, algo Algorithm) (string, error) {
	if len(urls) == 0 {
		return "", ErrNoHealthyRPC
	}
	if len(urls) == 1 {
		return urls[0], nil
	}

	winner, err := NewPicker(algo).Pick(ResultsToEndpoints(Benchmark(ctx, urls)))
	if err != nil {
		return "", err
	}
	return winner.URL, nil
}
