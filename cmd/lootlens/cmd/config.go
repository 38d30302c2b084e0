package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/lootlens/lootlens/internal/config"
)

// configCmd groups configuration management commands.
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage lootlens configuration",
	Long: `Inspect and generate configuration files.

Examples:
  lootlens config init
  lootlens config init --file /etc/lootlens/lootlens.yaml
  lootlens config show`,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default configuration file",
	RunE: func(cmd *cobra.Command, args []string) error {
		file, _ := cmd.Flags().GetString("file")
		if file == "" {
			file = config.ConfigFileName + ".yaml"
		}

		force, _ := cmd.Flags().GetBool("force")
		if !force {
			if _, err := os.Stat(file); err == nil {
				return fmt.Errorf("config file already exists: %s (use --force to overwrite)", file)
			}
		}

		defaults := config.DefaultConfig()
		data, err := yaml.Marshal(&defaults)
		if err != nil {
			return fmt.Errorf("marshal config: %w", err)
		}
		if err := os.WriteFile(file, data, 0o600); err != nil {
			return fmt.Errorf("write config: %w", err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "default configuration written to %s\n", file)
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration as YAML",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := GetConfig()
		data, err := yaml.Marshal(cfg)
		if err != nil {
			return fmt.Errorf("marshal config: %w", err)
		}
		if used := GetConfigLoader().GetConfigFileUsed(); used != "" {
			fmt.Fprintf(cmd.OutOrStdout(), "# loaded from %s\n", used)
		}
		fmt.Fprint(cmd.OutOrStdout(), string(data))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	configInitCmd.Flags().String("file", "", "target file (defaults to ./lootlens.yaml)")
	configInitCmd.Flags().Bool("force", false, "overwrite an existing file")
}
