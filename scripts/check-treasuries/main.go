// check-treasuries: queries the SOL balance of every project treasury in the
// seed catalog (plus the default treasury) on devnet and testnet in parallel
// and prints a summary table.
//
// Run from the module root:
//
//	go run ./scripts/check-treasuries
package main

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
	"text/tabwriter"
	"time"

	"github.com/gagliardetto/solana-go"

	"github.com/amoca-labs/amoca/internal/catalog"
	"github.com/amoca-labs/amoca/internal/chain"
	"github.com/amoca-labs/amoca/internal/config"
	"github.com/amoca-labs/amoca/internal/format"
)

// ── config ────────────────────────────────────────────────────────────────────

var clusterNames = []string{"devnet", "testnet"}

const rpcTimeout = 12 * time.Second

// ── types ─────────────────────────────────────────────────────────────────────

type treasury struct {
	owner   string // project id, or "default"
	address string
}

type result struct {
	cluster string
	owner   string
	address string // short form
	balance string
	err     string
}

// ── main ──────────────────────────────────────────────────────────────────────

func main() {
	c, err := catalog.Default()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	targets := treasuries(c)

	var (
		mu      sync.Mutex
		wg      sync.WaitGroup
		results []result
	)

	for _, name := range clusterNames {
		cl, err := chain.ClusterByName(name)
		if err != nil {
			continue
		}
		client := chain.NewSolanaClient(cl.RPCs[0])

		for _, t := range targets {
			wg.Add(1)
			go func(cl chain.Cluster, t treasury) {
				defer wg.Done()
				r := check(client, cl, t)
				mu.Lock()
				results = append(results, r)
				mu.Unlock()
			}(cl, t)
		}
	}

	wg.Wait()

	printTable(results)
}

func treasuries(c *catalog.Catalog) []treasury {
	out := []treasury{{owner: "default", address: config.DefaultTreasury}}
	for _, p := range c.All() {
		if p.Treasury != "" {
			out = append(out, treasury{owner: p.ID, address: p.Treasury})
		}
	}
	return out
}

func check(client *chain.SolanaClient, cl chain.Cluster, t treasury) result {
	r := result{cluster: cl.Name, owner: t.owner, address: shortAddr(t.address), balance: "—"}

	pk, err := solana.PublicKeyFromBase58(t.address)
	if err != nil {
		r.err = "bad address"
		return r
	}

	ctx, cancel := context.WithTimeout(context.Background(), rpcTimeout)
	defer cancel()

	// Ping first and skip clusters that do not respond.
	if _, _, err := client.Ping(ctx); err != nil {
		r.err = "unreachable"
		return r
	}
	lamports, err := client.Balance(ctx, pk)
	if err != nil {
		r.err = shortErr(err)
		return r
	}
	r.balance = format.SOL(lamports)
	return r
}

// ── output ────────────────────────────────────────────────────────────────────

func printTable(results []result) {
	// Sort by cluster → owner.
	sort.Slice(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if a.cluster != b.cluster {
			return a.cluster < b.cluster
		}
		return a.owner < b.owner
	})

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)

	fmt.Fprintln(w, "CLUSTER\tPROJECT\tTREASURY\tSOL\tNOTE")
	fmt.Fprintln(w, strings.Repeat("-", 8)+"\t"+
		strings.Repeat("-", 8)+"\t"+
		strings.Repeat("-", 14)+"\t"+
		strings.Repeat("-", 16)+"\t"+
		strings.Repeat("-", 12))

	last := ""
	for _, r := range results {
		if r.cluster != last {
			if last != "" {
				fmt.Fprintln(w, "\t\t\t\t") // blank separator between clusters
			}
			last = r.cluster
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", r.cluster, r.owner, r.address, r.balance, r.err)
	}
	w.Flush()
}

// ── helpers ───────────────────────────────────────────────────────────────────

func shortAddr(addr string) string {
	if len(addr) < 10 {
		return addr
	}
	return addr[:4] + "…" + addr[len(addr)-4:]
}

func shortErr(err error) string {
	s := err.Error()
	if len(s) > 30 {
		return s[:30] + "…"
	}
	return s
}
