package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/lootlens/lootlens/internal/feedback"
)

// defaultLedgerFile is where correction state persists between runs.
const defaultLedgerFile = "corrections.json"

// correctionsCmd groups ledger management commands.
var correctionsCmd = &cobra.Command{
	Use:   "corrections",
	Short: "Manage the detection correction ledger",
	Long: `Corrections record which entity was actually in a cell when detection
got it wrong. A populated ledger penalizes repeat misdetections; point
detect at it with --corrections.

Examples:
  lootlens corrections record garlic crown --confidence 0.9
  lootlens corrections export --file backup.json
  lootlens corrections import backup.json`,
}

// loadLedgerFile reads the persisted ledger, returning an empty one when
// the file does not exist yet.
func loadLedgerFile(path string) (*feedback.Ledger, error) {
	ledger := feedback.NewLedger()
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return ledger, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read ledger: %w", err)
	}
	if err := ledger.Import(data); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return ledger, nil
}

// saveLedgerFile persists the ledger to the given path.
func saveLedgerFile(path string, ledger *feedback.Ledger) error {
	data, err := ledger.Export()
	if err != nil {
		return fmt.Errorf("export ledger: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write ledger: %w", err)
	}
	return nil
}

var correctionsRecordCmd = &cobra.Command{
	Use:   "record <detected-id> <actual-id>",
	Short: "Record one detected-vs-actual correction",
	Long: `Append a correction to the ledger file. The first argument is the
entity id detection reported, the second the entity that was actually
in the cell.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ledgerPath, _ := cmd.Flags().GetString("ledger")
		ledger, err := loadLedgerFile(ledgerPath)
		if err != nil {
			return err
		}

		confidence, _ := cmd.Flags().GetFloat64("confidence")
		imageHash, _ := cmd.Flags().GetString("image-hash")
		ledger.RecordCorrection(args[0], args[1], confidence, imageHash)

		if err := saveLedgerFile(ledgerPath, ledger); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: %d corrections\n", ledgerPath, ledger.Len())
		return nil
	},
}

var correctionsExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the correction ledger",
	Long: `Write the persisted correction ledger as JSON to a file or stdout,
for backup or for piping between machines.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ledgerPath, _ := cmd.Flags().GetString("ledger")
		ledger, err := loadLedgerFile(ledgerPath)
		if err != nil {
			return err
		}
		data, err := ledger.Export()
		if err != nil {
			return fmt.Errorf("export ledger: %w", err)
		}

		file, _ := cmd.Flags().GetString("file")
		if file == "" {
			fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return nil
		}
		if err := os.WriteFile(file, data, 0o600); err != nil {
			return fmt.Errorf("write export: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%d corrections written to %s\n", ledger.Len(), file)
		return nil
	},
}

var correctionsImportCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import a corrections file into the ledger",
	Long: `Parse a corrections JSON file and replace the persisted ledger with
its contents. Import fails on malformed data without partial effects.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("read corrections: %w", err)
		}

		ledger := feedback.NewLedger()
		if err := ledger.Import(data); err != nil {
			if errors.Is(err, feedback.ErrInvalidFormat) {
				return fmt.Errorf("%s: %w", args[0], err)
			}
			return err
		}

		ledgerPath, _ := cmd.Flags().GetString("ledger")
		if err := saveLedgerFile(ledgerPath, ledger); err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "%s: %d corrections\n", ledgerPath, ledger.Len())
		for _, rec := range ledger.Records() {
			fmt.Fprintf(cmd.OutOrStdout(), "  %s -> %s (confidence %.2f)\n", rec.Detected, rec.Actual, rec.Confidence)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(correctionsCmd)
	correctionsCmd.AddCommand(correctionsRecordCmd)
	correctionsCmd.AddCommand(correctionsExportCmd)
	correctionsCmd.AddCommand(correctionsImportCmd)
	correctionsCmd.PersistentFlags().String("ledger", defaultLedgerFile, "ledger file holding persisted corrections")
	correctionsRecordCmd.Flags().Float64("confidence", 1.0, "confidence the wrong detection reported")
	correctionsRecordCmd.Flags().String("image-hash", "", "fingerprint of the screenshot the correction applies to")
	correctionsExportCmd.Flags().String("file", "", "output file (defaults to stdout)")
}
