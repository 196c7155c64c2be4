package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/amoca-labs/amoca/internal/passkey"
	"github.com/amoca-labs/amoca/internal/session"
	"github.com/amoca-labs/amoca/internal/ui"
)

var (
	passkeyRemote bool
	passkeyLabel  string
	passkeyAllRPs bool
	passkeyYes    bool
	passkeyNew    bool
)

var passkeyCmd = &cobra.Command{
	Use:     "passkey",
	Aliases: []string{"passkeys"},
	Short:   "Manage the passkeys that unlock your wallet",
	Long: `Manage passkeys stored in the OS keychain (or the encrypted file keyring
under the config directory). Each passkey unlocks its own wallet address.`,
}

var passkeyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored passkeys",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		auth, _, err := newAuthenticator(false)
		if err != nil {
			return err
		}
		rp := cfg.RelyingPartyID
		if passkeyAllRPs {
			rp = ""
		}
		creds, err := auth.List(rp)
		if err != nil {
			return err
		}
		if len(creds) == 0 {
			fmt.Println(ui.Warn("No passkeys yet. Create one with: amoca passkey create"))
			return nil
		}
		fmt.Println(credentialTable(creds).Render())
		return nil
	},
}

var passkeyCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a passkey for this device (or --remote)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		auth, _, err := newAuthenticator(true)
		if err != nil {
			return err
		}
		att := passkey.Local
		if passkeyRemote {
			att = passkey.Remote
		}
		cred, err := auth.Create(cmd.Context(), passkey.CreateOptions{
			RPID:       cfg.RelyingPartyID,
			Attachment: att,
			Label:      passkeyLabel,
		})
		if err != nil {
			return err
		}
		fmt.Println(ui.Success("Passkey created"))
		fmt.Println(ui.KeyValueBlock("Passkey", credentialDetails(cred)))
		return nil
	},
}

var passkeyRemoveCmd = &cobra.Command{
	Use:     "remove <id>",
	Aliases: []string{"rm"},
	Short:   "Remove a passkey (the wallet it unlocks becomes unreachable)",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		auth, _, err := newAuthenticator(false)
		if err != nil {
			return err
		}
		cred, err := auth.Lookup(args[0])
		if err != nil {
			return err
		}
		if !passkeyYes && !ui.ConfirmDanger(fmt.Sprintf("Remove passkey %s? Funds held by its wallet become unreachable.", cred.ID)) {
			fmt.Println(ui.Meta("Cancelled."))
			return nil
		}
		if err := auth.Remove(cred.ID); err != nil {
			return err
		}
		fmt.Println(ui.Success("Removed passkey " + cred.ID))
		return nil
	},
}

var passkeyDiscoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Check which passkeys can connect, without prompting",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		auth, _, err := newAuthenticator(false)
		if err != nil {
			return err
		}
		d := passkey.NewDiscoverer(auth, cfg.RelyingPartyID, cfg.DiscoveryTimeout())

		var out passkey.Outcome
		err = ui.Spin("Looking for passkeys...", func() (err error) {
			out, err = d.Discover(cmd.Context())
			return err
		})
		metrics.Discovery(out.String())
		if err != nil {
			return err
		}
		fmt.Println(discoveryMessage(out))
		return nil
	},
}

var passkeyConnectCmd = &cobra.Command{
	Use:   "connect",
	Short: "Connect with a passkey and print the wallet address",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		pref := preferenceFromFlags(passkeyRemote, passkeyNew)
		_, pk, err := connectWallet(cmd.Context(), pref)
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, passkey.ErrTimeout) {
			return fmt.Errorf("passkey request timed out")
		}
		if err != nil {
			return err
		}
		cluster, err := currentCluster()
		if err != nil {
			return err
		}
		fmt.Println(ui.KeyValueBlock("Wallet", [][2]string{
			{"Address", ui.Addr(pk.String())},
			{"Explorer", cluster.AddressURL(pk)},
		}))
		if cluster.FaucetURL != "" {
			fmt.Println(ui.Hint("Fund it on " + cluster.DisplayName + ": " + cluster.FaucetURL))
		}
		return nil
	},
}

// preferenceFromFlags maps --remote / --new onto a connect preference; --new
// wins.
func preferenceFromFlags(anyDevice, forceNew bool) session.Preference {
	switch {
	case forceNew:
		return session.PreferForceNew
	case anyDevice:
		return session.PreferAnyDevice
	}
	return session.PreferLocalFirst
}

func discoveryMessage(out passkey.Outcome) string {
	switch out {
	case passkey.OutcomeLocal:
		return ui.Success("A passkey on this device can connect.")
	case passkey.OutcomeRemoteOnly:
		return ui.Info("Only a passkey on another device can connect. Use: amoca passkey connect --remote")
	default:
		return ui.Warn("No passkey found. Create one with: amoca passkey create")
	}
}

func credentialTable(creds []passkey.Credential) *ui.Table {
	t := ui.NewTable([]ui.Column{
		{Title: "ID", Width: 24},
		{Title: "Label", Width: 20},
		{Title: "Device", Width: 14},
		{Title: "Relying party", Width: 16},
		{Title: "Created", Width: 16},
	})
	for _, c := range creds {
		t.AddRow(ui.Row{c.ID, c.Label, attachmentName(c.Attachment), c.RPID, c.CreatedAt.Local().Format("2006-01-02 15:04")})
	}
	return t
}

func credentialDetails(c passkey.Credential) [][2]string {
	return [][2]string{
		{"ID", c.ID},
		{"Label", c.Label},
		{"Device", attachmentName(c.Attachment)},
		{"Relying party", c.RPID},
		{"Created", c.CreatedAt.Local().Format("2006-01-02 15:04:05")},
	}
}

func attachmentName(a passkey.Attachment) string {
	switch a {
	case passkey.Local:
		return "this device"
	case passkey.Remote:
		return "other device"
	}
	return string(a)
}

func init() {
	passkeyListCmd.Flags().BoolVar(&passkeyAllRPs, "all", false, "include passkeys of every relying party")
	passkeyCreateCmd.Flags().BoolVar(&passkeyRemote, "remote", false, "create a passkey held by another device")
	passkeyCreateCmd.Flags().StringVar(&passkeyLabel, "label", "", "name shown when the passkey is used")
	passkeyConnectCmd.Flags().BoolVar(&passkeyRemote, "remote", false, "use a passkey from any device")
	passkeyConnectCmd.Flags().BoolVar(&passkeyNew, "new", false, "register a new passkey and connect with it")
	passkeyRemoveCmd.Flags().BoolVarP(&passkeyYes, "yes", "y", false, "skip the confirmation prompt")
	passkeyCmd.AddCommand(passkeyListCmd, passkeyCreateCmd, passkeyRemoveCmd, passkeyDiscoverCmd, passkeyConnectCmd)
}
