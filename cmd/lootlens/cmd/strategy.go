package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lootlens/lootlens/internal/strategy"
)

// strategyCmd groups the preset inspection commands.
var strategyCmd = &cobra.Command{
	Use:   "strategy",
	Short: "Inspect and select detection strategy presets",
	Long: `List, show, and validate the built-in detection strategy presets.

Examples:
  lootlens strategy list
  lootlens strategy show accurate
  lootlens strategy set fast`,
}

var strategyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List available strategy presets",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := GetConfig()
		for _, name := range strategy.PresetNames() {
			marker := " "
			if name == cfg.Pipeline.Strategy {
				marker = "*"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", marker, name)
		}
		return nil
	},
}

var strategyShowCmd = &cobra.Command{
	Use:   "show [name]",
	Short: "Show a strategy preset as JSON",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := GetConfig().Pipeline.Strategy
		if len(args) == 1 {
			name = args[0]
		}
		s, err := strategy.Preset(name)
		if err != nil {
			return err
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(s)
	},
}

var strategySetCmd = &cobra.Command{
	Use:   "set <name>",
	Short: "Persist a strategy preset into the config file",
	Long: `Validate the named preset and write it to the configuration file so
subsequent runs use it by default.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]
		if _, err := strategy.Preset(name); err != nil {
			return err
		}

		loader := GetConfigLoader()
		loader.Set("pipeline.strategy", name)

		target := loader.GetConfigFileUsed()
		if cmd.Flags().Changed("file") {
			target, _ = cmd.Flags().GetString("file")
		}
		if target == "" {
			target = "lootlens.yaml"
		}
		if err := loader.WriteConfigToFile(target); err != nil {
			return fmt.Errorf("write config: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "strategy %q saved to %s\n", name, target)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(strategyCmd)
	strategyCmd.AddCommand(strategyListCmd)
	strategyCmd.AddCommand(strategyShowCmd)
	strategyCmd.AddCommand(strategySetCmd)
	strategySetCmd.Flags().String("file", "", "config file to write (defaults to the loaded config file)")
}
