package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/amoca-labs/amoca/internal/chain"
	"github.com/amoca-labs/amoca/internal/config"
	"github.com/amoca-labs/amoca/internal/passkey"
	"github.com/amoca-labs/amoca/internal/session"
	"github.com/amoca-labs/amoca/internal/ui"
)

var appShowAll bool

var appCmd = &cobra.Command{
	Use:     "app",
	Aliases: []string{"dashboard", "ui"},
	Short:   "Open the project dashboard",
	Long: `Open the interactive dashboard: the wallet header, the featured energy
projects and the Invest button on each card.

Keys:
  c connect (p any device, n new passkey)   d disconnect   r refresh balances
  a account panel   y copy address   ←↑↓→ / hjkl move   enter invest
  f all projects    q quit`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		cluster, err := currentCluster()
		if err != nil {
			return err
		}
		projects, err := loadCatalog()
		if err != nil {
			return err
		}
		mint, err := tokenMint()
		if err != nil {
			return err
		}

		auth, store, err := newAuthenticator(false)
		if err != nil {
			return err
		}
		w := newWallet(auth, store)
		discoverer := passkey.NewDiscoverer(auth, cfg.RelyingPartyID, cfg.DiscoveryTimeout())

		var client *chain.SolanaClient
		err = ui.Spin("Selecting RPC endpoint...", func() (err error) {
			client, err = newSolanaClient(ctx)
			return err
		})
		if err != nil {
			return err
		}

		action, err := newInvestAction(client, cluster)
		if err != nil {
			return err
		}

		ctl := session.New(w, discoverer, client,
			session.WithMint(mint),
			session.WithLogger(log),
			session.WithMetrics(metrics),
			session.WithBalanceTimeout(config.BalanceTimeout),
		)
		app := ui.NewApp(ui.AppConfig{
			Controller:  ctl,
			Investor:    action,
			Catalog:     projects,
			Cluster:     cluster,
			TokenSymbol: cfg.TokenSymbol,
			Clipboard:   ui.SystemClipboard(os.Stdout),
			Browser:     ui.OpenBrowser,
			Logger:      log,
			ShowAll:     appShowAll,
		})
		if err := ui.RunApp(app); err != nil {
			return fmt.Errorf("dashboard: %w", err)
		}
		return nil
	},
}

func init() {
	appCmd.Flags().BoolVar(&appShowAll, "all", false, "start with every project, not just energy projects")
}
