package cmd

import (
	"context"
	"fmt"
	"slices"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/amoca-labs/amoca/internal/chain"
	"github.com/amoca-labs/amoca/internal/config"
	"github.com/amoca-labs/amoca/internal/rpc"
	"github.com/amoca-labs/amoca/internal/ui"
)

var (
	rpcBenchLive bool
	rpcListCheck bool
)

var rpcCmd = &cobra.Command{
	Use:   "rpc",
	Short: "Manage RPC endpoints",
}

var rpcAddCmd = &cobra.Command{
	Use:   "add <url>",
	Short: "Add a fallback RPC URL",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return updateConfig(func(c *config.Config) error { return c.AddRPC(args[0]) },
			"Added RPC "+args[0])
	},
}

var rpcRemoveCmd = &cobra.Command{
	Use:   "remove <url>",
	Short: "Remove a fallback RPC URL",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return updateConfig(func(c *config.Config) error { return c.RemoveRPC(args[0]) },
			"Removed RPC "+args[0])
	},
}

var rpcListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the configured RPC endpoints",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Printf("%s\n", ui.StyleTitle.Render("RPC endpoints"))
		fmt.Println(ui.StyleHeader.Render("Primary:"))
		fmt.Printf("  %s\n", cfg.RPCURL)
		if len(cfg.CustomRPCs) > 0 {
			fmt.Println(ui.StyleHeader.Render("Fallbacks:"))
			for _, r := range cfg.CustomRPCs {
				fmt.Printf("  %s\n", r)
			}
		}
		fmt.Println(ui.Meta(fmt.Sprintf("Selection: %s · commitment: %s", algorithmName(cfg.RPCAlgorithm), cfg.Commitment)))
		if !rpcListCheck {
			return nil
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), 15*time.Second)
		defer cancel()
		fmt.Println()
		for _, url := range cfg.RPCEndpoints() {
			ep, err := rpc.HealthCheck(ctx, url, 0)
			switch {
			case err != nil:
				fmt.Println(ui.Err(fmt.Sprintf("%s: %v", url, err)))
			case ep.Healthy:
				fmt.Println(ui.Success(fmt.Sprintf("%s (%dms, slot %d)", url, ep.Latency.Milliseconds(), ep.Slot)))
			default:
				fmt.Println(ui.Warn(url + ": not healthy"))
			}
		}
		return nil
	},
}

var rpcClustersCmd = &cobra.Command{
	Use:   "clusters",
	Short: "List known Solana clusters",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		t := ui.NewTable([]ui.Column{
			{Title: "Name", Width: 14},
			{Title: "Display name", Width: 22},
			{Title: "Public RPC", Width: 40},
		})
		for _, c := range chain.Clusters() {
			name := c.Name
			if c.Name == cfg.Cluster {
				name += " *"
			}
			t.AddRow(ui.Row{name, c.DisplayName, c.RPCs[0]})
		}
		fmt.Println(t.Render())
		return nil
	},
}

var rpcBenchmarkCmd = &cobra.Command{
	Use:   "benchmark",
	Short: "Benchmark the configured RPCs and the cluster's public ones",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cluster, err := currentCluster()
		if err != nil {
			return err
		}
		urls := benchmarkTargets(cfg.RPCEndpoints(), cluster)

		if rpcBenchLive {
			probe := func(url string) tea.Cmd {
				return func() tea.Msg {
					latency, slot, err := rpc.Probe(context.Background(), url)
					return ui.ProbeResultMsg{URL: url, Latency: latency, Slot: slot, Err: err}
				}
			}
			_, err := tea.NewProgram(ui.NewProbeModel(cluster.DisplayName, urls, probe)).Run()
			return err
		}

		fmt.Printf("%s\n\n", ui.StyleTitle.Render(fmt.Sprintf("Benchmarking %s RPCs...", cluster.DisplayName)))

		ctx, cancel := context.WithTimeout(cmd.Context(), 15*time.Second)
		defer cancel()
		endpoints := rpc.ResultsToEndpoints(rpc.Benchmark(ctx, urls))
		fmt.Println(benchmarkTable(endpoints).Render())

		winner, err := rpc.NewPicker(rpc.Algorithm(algorithmName(cfg.RPCAlgorithm))).Pick(endpoints)
		if err != nil {
			return err
		}
		fmt.Println(ui.Success(fmt.Sprintf("Selected (%s): %s", algorithmName(cfg.RPCAlgorithm), winner.URL)))
		return nil
	},
}

var rpcAlgorithmCmd = &cobra.Command{
	Use:   "algorithm",
	Short: "Show or set the RPC selection algorithm",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Println(algorithmName(cfg.RPCAlgorithm))
		return nil
	},
}

var rpcAlgorithmSetCmd = &cobra.Command{
	Use:   "set <fastest|round-robin|failover>",
	Short: "Set the RPC selection algorithm",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		algo := args[0]
		if _, err := rpc.ParseAlgorithm(algo); err != nil || algo == "" {
			return fmt.Errorf("invalid algorithm %q (choose fastest, round-robin or failover)", algo)
		}
		return updateConfig(func(c *config.Config) error { return c.Set("rpc_algorithm", algo) },
			fmt.Sprintf("RPC algorithm set to %q", algo))
	},
}

// benchmarkTable lists endpoints with their fastest-first rank. Endpoints
// that are down or too far behind have no rank.
func benchmarkTable(endpoints []rpc.Endpoint) *ui.Table {
	rank := map[string]int{}
	for i, e := range rpc.Rank(endpoints) {
		rank[e.URL] = i + 1
	}
	best := rpc.BestSlot(endpoints)

	t := ui.NewTable([]ui.Column{
		{Title: "#", Width: 3},
		{Title: "RPC URL", Width: 40},
		{Title: "Latency", Width: 12},
		{Title: "Slot", Width: 14},
		{Title: "Status", Width: 12},
	})
	for _, e := range endpoints {
		pos, latency, slot := "—", "—", "—"
		status := ui.Err("down")
		if e.Healthy {
			latency = fmt.Sprintf("%dms", e.Latency.Milliseconds())
			slot = fmt.Sprintf("%d", e.Slot)
			status = ui.Success("healthy")
			if e.Lag(best) > rpc.MaxSlotLag {
				status = ui.Warn(fmt.Sprintf("%d behind", e.Lag(best)))
			}
		}
		if n, ok := rank[e.URL]; ok {
			pos = fmt.Sprint(n)
		}
		t.AddRow(ui.Row{pos, e.URL, latency, slot, status})
	}
	return t
}

// benchmarkTargets is the configured endpoints followed by the cluster's
// public RPCs, deduplicated.
func benchmarkTargets(configured []string, c chain.Cluster) []string {
	out := slices.Clone(configured)
	for _, u := range c.RPCs {
		if !slices.Contains(out, u) {
			out = append(out, u)
		}
	}
	return out
}

func algorithmName(a string) string {
	algo, err := rpc.ParseAlgorithm(a)
	if err != nil {
		return a
	}
	return string(algo)
}

func init() {
	rpcBenchmarkCmd.Flags().BoolVar(&rpcBenchLive, "live", false, "stream results in a live view")
	rpcListCmd.Flags().BoolVar(&rpcListCheck, "check", false, "probe each endpoint's health")
	rpcAlgorithmCmd.AddCommand(rpcAlgorithmSetCmd)
	rpcCmd.AddCommand(rpcAddCmd, rpcRemoveCmd, rpcListCmd, rpcClustersCmd, rpcBenchmarkCmd, rpcAlgorithmCmd)
}
