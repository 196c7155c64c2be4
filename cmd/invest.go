package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/amoca-labs/amoca/internal/catalog"
	"github.com/amoca-labs/amoca/internal/format"
	"github.com/amoca-labs/amoca/internal/invest"
	"github.com/amoca-labs/amoca/internal/ui"
)

var (
	investYes    bool
	investAnyDev bool
	investOpen   bool
)

var investCmd = &cobra.Command{
	Use:   "invest [project-id]",
	Short: "Invest in a project with your passkey wallet",
	Long: `Invest the configured amount (default 1 SOL) in a project.

Without a project id an interactive picker lists the featured energy projects.
The transfer is signed by your passkey wallet, submitted once, and confirmed
on the configured cluster.

Examples:
  amoca invest 1
  amoca invest 2 --yes
  AMOCA_INVEST_ASSET=token amoca invest 4`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		c, err := loadCatalog()
		if err != nil {
			return err
		}
		id := ""
		if len(args) == 1 {
			id = args[0]
		} else {
			id, err = ui.PickItem("Pick a project to fund", projectPickerItems(c.EnergyProjects()))
			if err != nil {
				return err
			}
			if id == "" {
				fmt.Println(ui.Meta("Cancelled."))
				return nil
			}
		}
		p, err := c.Get(id)
		if err != nil {
			return err
		}

		cluster, err := currentCluster()
		if err != nil {
			return err
		}
		client, err := newSolanaClient(ctx)
		if err != nil {
			return err
		}
		action, err := newInvestAction(client, cluster)
		if err != nil {
			return err
		}
		to, err := action.Recipient(p)
		if err != nil {
			return err
		}

		if !investYes {
			prompt := fmt.Sprintf("Invest %s in %q (treasury %s) on %s?",
				action.AmountText(), p.Title, ui.TruncateAddr(to.String()), cluster.DisplayName)
			if !ui.Confirm(prompt) {
				fmt.Println(ui.Meta("Cancelled."))
				return nil
			}
		}

		w, authority, err := connectWallet(ctx, preferenceFromFlags(investAnyDev, false))
		if err != nil {
			return err
		}
		defer func() { _ = w.Disconnect() }()
		fmt.Println(ui.Success("Wallet connected: " + ui.Addr(authority.String())))

		var receipt *invest.Receipt
		err = ui.Spin(fmt.Sprintf("Sending %s to %s...", action.AmountText(), p.Title), func() (err error) {
			receipt, err = action.Invest(ctx, p, walletSigner{w: w, authority: authority})
			return err
		})
		if err != nil {
			return explainInvestError(err)
		}

		fmt.Println(ui.Success("Investment confirmed"))
		fmt.Println(ui.KeyValueBlock("Receipt", receiptDetails(p, action, receipt)))
		if investOpen {
			if err := ui.OpenBrowser(receipt.ExplorerURL); err != nil {
				fmt.Println(ui.Warn("could not open browser: " + err.Error()))
			}
		}
		return nil
	},
}

func projectPickerItems(projects []catalog.Project) []ui.PickerItem {
	items := make([]ui.PickerItem, 0, len(projects))
	for _, p := range projects {
		items = append(items, ui.PickerItem{
			Label:    p.Title,
			SubLabel: fmt.Sprintf("%s · %s funded · %s", p.Category, format.Percent(p.Progress()), p.Location),
			Value:    p.ID,
		})
	}
	return items
}

func receiptDetails(p catalog.Project, action *invest.Action, r *invest.Receipt) [][2]string {
	return [][2]string{
		{"Project", p.Title},
		{"Amount", action.AmountText()},
		{"Recipient", ui.Addr(r.Recipient.String())},
		{"Signature", r.Signature.String()},
		{"Explorer", r.ExplorerURL},
		{"Receipt ID", r.ID.String()},
	}
}

// explainInvestError turns pipeline failures into messages that say what the
// user can do next.
func explainInvestError(err error) error {
	var se *invest.SigningError
	var sub *invest.SubmissionError
	switch {
	case errors.As(err, &se):
		return fmt.Errorf("signature declined: %w", se.Err)
	case errors.As(err, &sub) && sub.Stage == "confirm":
		return fmt.Errorf("transaction %s was submitted but not confirmed: %w", sub.Signature, sub.Err)
	case errors.As(err, &sub):
		return fmt.Errorf("transaction failed (%s): %w", sub.Stage, sub.Err)
	}
	return err
}

func init() {
	investCmd.Flags().BoolVarP(&investYes, "yes", "y", false, "skip the confirmation prompt")
	investCmd.Flags().BoolVar(&investAnyDev, "any-device", false, "use a passkey from any device")
	investCmd.Flags().BoolVar(&investOpen, "open", false, "open the transaction in the explorer")
}
