package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/amoca-labs/amoca/internal/config"
	"github.com/amoca-labs/amoca/internal/telemetry"
	"github.com/amoca-labs/amoca/internal/ui"
)

// Version is the current release. Overridable via build ldflags:
//
//	go build -ldflags "-X github.com/amoca-labs/amoca/cmd.Version=1.2.3" .
var Version = "0.1.0"

var (
	cfgDir      string
	cfg         *config.Config
	verbose     bool
	clusterFlag string
	rpcFlag     string

	log            = telemetry.Discard()
	metrics        *telemetry.Metrics
	logCloser      io.Closer
	stopTracing    func(context.Context) error
	stopBackground context.CancelFunc
)

// rootCmd is the top-level command.
var rootCmd = &cobra.Command{
	Use:   "amoca",
	Short: "Fund the green transition from your terminal",
	Long: `amoca — a green-energy crowdfunding dashboard on Solana devnet.

  Browse solar, wind and hydro projects, connect a passkey wallet and
  invest with one keypress. Every investment is a real devnet transfer
  with an explorer link.

Global flags --cluster and --rpc override the configured cluster and RPC
endpoint for a single invocation. Persist with: amoca config set <key> <value>`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Load config (skip for commands that don't need it).
		if cmd.Name() == "help" || cmd.Name() == "completion" {
			return nil
		}
		var err error
		cfg, err = config.Load(cfgDir)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		if clusterFlag != "" {
			cfg.Cluster = clusterFlag
		}
		if rpcFlag != "" {
			cfg.RPCURL = rpcFlag
			cfg.CustomRPCs = nil
		}
		if verbose {
			cfg.LogLevel = "debug"
		}
		return setupTelemetry(cmd.Context())
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Println(ui.Banner())
		return cmd.Help()
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		shutdownTelemetry()
		return nil
	},
}

// setupTelemetry opens the log file, starts tracing and, when configured, the
// metrics endpoint. Everything it starts is stopped by shutdownTelemetry.
func setupTelemetry(parent context.Context) error {
	if parent == nil {
		parent = context.Background()
	}
	l, closer, err := telemetry.NewLogger(cfg.LogPath(), cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("opening log: %w", err)
	}
	log, logCloser = l, closer

	ctx, cancel := context.WithCancel(parent)
	stopBackground = cancel

	stopTracing, err = telemetry.SetupTracing(ctx, cfg.OTelEndpoint, "amoca", Version)
	if err != nil {
		log.WithError(err).Warn("tracing disabled")
	}

	metrics = telemetry.NewMetrics()
	if addr := cfg.MetricsAddr; addr != "" {
		go func() {
			if err := metrics.Serve(ctx, addr); err != nil {
				log.WithError(err).WithField("addr", addr).Error("metrics endpoint failed")
			}
		}()
		log.WithField("addr", addr).Info("metrics endpoint listening")
	}
	log.WithFields(logrus.Fields{"version": Version, "cluster": cfg.Cluster}).Debug("amoca started")
	return nil
}

func shutdownTelemetry() {
	if stopTracing != nil {
		_ = stopTracing(context.Background())
		stopTracing = nil
	}
	if stopBackground != nil {
		stopBackground()
		stopBackground = nil
	}
	if logCloser != nil {
		_ = logCloser.Close()
		logCloser = nil
	}
}

// Execute runs the root command.
func Execute() {
	err := rootCmd.Execute()
	shutdownTelemetry()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	// AMOCA_CONFIG_DIR env var overrides --config flag.
	if envDir := os.Getenv("AMOCA_CONFIG_DIR"); envDir != "" {
		cfgDir = envDir
	}

	rootCmd.PersistentFlags().StringVar(&cfgDir, "config", cfgDir, "config directory (default: ~/.amoca)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
	rootCmd.PersistentFlags().StringVar(&clusterFlag, "cluster", "", "cluster override (devnet, testnet, mainnet-beta, localnet)")
	rootCmd.PersistentFlags().StringVar(&rpcFlag, "rpc", "", "RPC endpoint override")

	// Register all sub-commands.
	rootCmd.AddCommand(
		appCmd,
		projectsCmd,
		projectCmd,
		balanceCmd,
		investCmd,
		passkeyCmd,
		rpcCmd,
		configCmd,
	)
}
