package rpc

import (
	"context"
	"fmt"
)

// ParseAlgorithm maps a configured name to an Algorithm. Empty means fastest.
func ParseAlgorithm(name string) (Algorithm, error) {
	switch a := Algorithm(name); a {
	case "":
		return AlgorithmFastest, nil
	case AlgorithmFastest, AlgorithmRoundRobin, AlgorithmFailover:
		return a, nil
	default:
		return "", fmt.Errorf("unknown RPC algorithm %q", name)
	}
}

// SelectBest benchmarks urls and returns the one the named algorithm picks.
func SelectBest(ctx context.Context, urls []string, algorithm string) (string, error) {
	algo, err := ParseAlgorithm(algorithm)
	if err != nil {
		return "", err
	}
	return Best(ctx, urls, algo)
}
