package cmd

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/amoca-labs/amoca/internal/config"
	"github.com/amoca-labs/amoca/internal/ui"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configShowCmd = &cobra.Command{
	Use:     "show",
	Aliases: []string{"list"},
	Short:   "Show the effective configuration (file, .env and environment)",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := json.MarshalIndent(cfg, "", "  ")
		if err != nil {
			return err
		}
		fmt.Printf("%s\n\n", ui.StyleTitle.Render("Current Configuration"))
		fmt.Println(string(data))
		fmt.Println(ui.Meta("Config directory: " + cfg.Dir()))
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long: "Set a configuration value and save it.\n\nKeys:\n  " +
		strings.Join(config.Keys(), "\n  "),
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]
		return updateConfig(func(c *config.Config) error { return c.Set(key, value) },
			fmt.Sprintf("%s set to %q", key, value))
	},
}

var configKeysCmd = &cobra.Command{
	Use:   "keys",
	Short: "List the keys accepted by config set",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		for _, k := range config.Keys() {
			fmt.Println(k)
		}
		return nil
	},
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the config directory",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Println(cfg.Dir())
		return nil
	},
}

// updateConfig applies change to the persisted file only, so environment
// overrides are never written back, then reloads the effective config.
func updateConfig(change func(*config.Config) error, done string) error {
	stored, err := config.Read(cfg.Dir())
	if err != nil {
		return err
	}
	if err := change(stored); err != nil {
		return err
	}
	if err := stored.Save(); err != nil {
		return err
	}
	if err := change(cfg); err != nil {
		log.WithError(err).Debug("effective config differs from file")
	}
	fmt.Println(ui.Success(done))
	return nil
}

func init() {
	configCmd.AddCommand(configShowCmd, configSetCmd, configKeysCmd, configPathCmd)
}
