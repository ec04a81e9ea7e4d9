package cmd

import (
	"fmt"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"
)

var configOutput string

// configCmd groups configuration-related subcommands.
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage facetview configuration",
}

var configGetCmd = &cobra.Command{
	Use:   "get",
	Short: "Show the merged configuration",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		var out []byte
		switch configOutput {
		case "yaml":
			out, err = cfg.YAML()
		case "toml":
			out, err = toml.Marshal(cfg)
		default:
			return fmt.Errorf("invalid --output %q (expected yaml or toml)", configOutput)
		}
		if err != nil {
			return fmt.Errorf("encode config: %w", err)
		}
		_, err = cmd.OutOrStdout().Write(out)
		return err
	},
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the config file in effect",
	RunE: func(cmd *cobra.Command, _ []string) error {
		path := runSettings().ConfigFile
		if path == "" {
			path = "(embedded defaults)"
		}
		fmt.Fprintln(cmd.OutOrStdout(), path)
		return nil
	},
}

func init() {
	configGetCmd.Flags().StringVarP(&configOutput, "output", "o", "yaml", "output format: yaml|toml")
	configCmd.AddCommand(configGetCmd, configPathCmd)
}
