package cmd

import (
	"context"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/gagliardetto/solana-go"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/amoca-labs/amoca/internal/chain"
	"github.com/amoca-labs/amoca/internal/config"
	"github.com/amoca-labs/amoca/internal/format"
	"github.com/amoca-labs/amoca/internal/session"
	"github.com/amoca-labs/amoca/internal/transfer"
	"github.com/amoca-labs/amoca/internal/ui"
)

var (
	balanceWatch    bool
	balanceInterval time.Duration
)

var balanceCmd = &cobra.Command{
	Use:   "balance [address]",
	Short: "Show SOL and token balances",
	Long: `Show the native SOL balance and the configured token balance of an address.

Without an address, amoca connects your passkey wallet (this device first)
and shows the wallet's balances.

Examples:
  amoca balance                                  # your passkey wallet
  amoca balance vines1vzrYbzLMRdu58ou5XTby4qAqVRLmqo36NKPTg
  amoca balance --watch --interval 5s            # live view`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		var owner solana.PublicKey
		if len(args) == 1 {
			pk, err := parseAddress(args[0])
			if err != nil {
				return err
			}
			owner = pk
		} else {
			_, pk, err := connectWallet(ctx, session.PreferLocalFirst)
			if err != nil {
				return err
			}
			owner = pk
		}

		cluster, err := currentCluster()
		if err != nil {
			return err
		}
		mint, err := tokenMint()
		if err != nil {
			return err
		}
		client, err := newSolanaClient(ctx)
		if err != nil {
			return err
		}

		fetch := func() (ui.BalanceReading, error) {
			ctx, cancel := context.WithTimeout(ctx, config.BalanceTimeout)
			defer cancel()
			return readBalances(ctx, client, owner, mint, cfg.TokenSymbol)
		}

		if balanceWatch {
			_, err := tea.NewProgram(ui.NewWatch(balanceInterval, fetch)).Run()
			return err
		}

		var r ui.BalanceReading
		err = ui.Spin(fmt.Sprintf("Fetching balances on %s...", cluster.DisplayName), func() (err error) {
			r, err = fetch()
			return err
		})
		if err != nil {
			return err
		}
		fmt.Println(ui.KeyValueBlock(
			fmt.Sprintf("Balances on %s", cluster.DisplayName),
			[][2]string{
				{"Address", ui.Addr(r.Address)},
				{"SOL", format.Token(r.Native, 9)},
				{r.Symbol, format.Token(r.Token, cfg.TokenDecimals)},
				{"Slot", format.Number(float64(r.Slot))},
				{"Explorer", cluster.AddressURL(owner)},
			},
		))
		return nil
	},
}

// balanceReader is the ledger surface readBalances needs.
type balanceReader interface {
	Balance(ctx context.Context, owner solana.PublicKey) (uint64, error)
	TokenBalance(ctx context.Context, owner, mint solana.PublicKey) (chain.TokenAmount, error)
	Slot(ctx context.Context) (uint64, error)
}

// readBalances fetches both balances and the slot concurrently.
func readBalances(ctx context.Context, client balanceReader, owner, mint solana.PublicKey, symbol string) (ui.BalanceReading, error) {
	r := ui.BalanceReading{Address: owner.String(), Symbol: symbol}
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		lamports, err := client.Balance(ctx, owner)
		if err != nil {
			return fmt.Errorf("SOL balance: %w", err)
		}
		r.Native = float64(lamports) / transfer.LamportsPerSOL
		return nil
	})
	g.Go(func() error {
		amt, err := client.TokenBalance(ctx, owner, mint)
		if err != nil {
			return fmt.Errorf("%s balance: %w", symbol, err)
		}
		r.Token = amt.UI()
		return nil
	})
	g.Go(func() error {
		slot, err := client.Slot(ctx)
		if err != nil {
			return fmt.Errorf("slot: %w", err)
		}
		r.Slot = slot
		return nil
	})
	if err := g.Wait(); err != nil {
		return ui.BalanceReading{}, err
	}
	return r, nil
}

func parseAddress(s string) (solana.PublicKey, error) {
	pk, err := solana.PublicKeyFromBase58(s)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("invalid Solana address %q: %w", s, err)
	}
	return pk, nil
}

func init() {
	balanceCmd.Flags().BoolVarP(&balanceWatch, "watch", "w", false, "live view, refreshing on an interval")
	balanceCmd.Flags().DurationVar(&balanceInterval, "interval", 10*time.Second, "refresh interval for --watch")
}
