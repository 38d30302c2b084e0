package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	_ "golang.org/x/image/bmp"

	"github.com/lootlens/lootlens/internal/catalog"
	"github.com/lootlens/lootlens/internal/match"
	"github.com/lootlens/lootlens/internal/ocr"
	"github.com/lootlens/lootlens/internal/pipeline"
)

const (
	outputFormatJSON = "json"
	outputFormatText = "text"
)

// fileDetection pairs an input path with its detection outcome.
type fileDetection struct {
	File      string              `json:"file"`
	Detection *pipeline.Detection `json:"detection,omitempty"`
	Error     string              `json:"error,omitempty"`
}

// detectCmd represents the detect command.
var detectCmd = &cobra.Command{
	Use:   "detect [images...]",
	Short: "Recognize entities in inventory cell screenshots",
	Long: `Run the recognition pipeline over one or more inventory cell images.

Each image is fingerprinted, OCRed, color-profiled, and matched against the
entity catalog. Results are ranked by confidence.

Examples:
  lootlens detect cell.png
  lootlens detect *.png --kind weapon,tome
  lootlens detect cell.png --strategy accurate --format json`,
	Args:         cobra.ArbitraryArgs,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 {
			return errors.New("no input files provided")
		}

		cfg := GetConfig()

		format := cfg.Output.Format
		if cmd.Flags().Changed("format") {
			format, _ = cmd.Flags().GetString("format")
		}
		if format != outputFormatText && format != outputFormatJSON {
			return fmt.Errorf("invalid output format: %s", format)
		}

		strategyName := cfg.Pipeline.Strategy
		if cmd.Flags().Changed("strategy") {
			strategyName, _ = cmd.Flags().GetString("strategy")
		}

		kindsCSV, _ := cmd.Flags().GetString("kind")
		kinds, err := parseKindList(kindsCSV)
		if err != nil {
			return err
		}

		detector, err := pipeline.NewBuilder().
			WithCatalogPath(cfg.CatalogPath).
			WithStrategy(strategyName).
			WithOCRConfig(ocr.TesseractConfig{
				Language: cfg.Pipeline.OCR.Language,
				DataPath: cfg.Pipeline.OCR.DataPath,
			}).
			WithCacheTTL(cfg.CacheTTL()).
			WithCleanupInterval(cfg.CleanupInterval()).
			WithTimeout(cfg.OCRTimeout()).
			WithMaxRetries(cfg.Pipeline.OCR.MaxRetries).
			Build()
		if err != nil {
			return fmt.Errorf("failed to build pipeline: %w", err)
		}
		defer detector.Close()

		if ledgerPath, _ := cmd.Flags().GetString("corrections"); ledgerPath != "" {
			data, err := os.ReadFile(ledgerPath)
			if err != nil {
				return fmt.Errorf("read corrections: %w", err)
			}
			if err := detector.Ledger.Import(data); err != nil {
				return fmt.Errorf("%s: %w", ledgerPath, err)
			}
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), time.Duration(len(args))*cfg.OCRTimeout())
		defer cancel()

		outcomes := make([]fileDetection, 0, len(args))
		for _, path := range args {
			outcome := fileDetection{File: path}
			img, err := loadImage(path)
			if err != nil {
				outcome.Error = err.Error()
			} else {
				det, err := detector.Detect(ctx, img, kinds...)
				outcome.Detection = det
				if err != nil {
					outcome.Error = err.Error()
				}
			}
			outcomes = append(outcomes, outcome)
		}

		return writeDetections(cmd, outcomes, format, cfg.Output.ConfidencePrecision)
	},
}

func init() {
	rootCmd.AddCommand(detectCmd)
	detectCmd.Flags().StringP("format", "f", "text", "output format (text, json)")
	detectCmd.Flags().StringP("kind", "k", "", "comma-separated entity kinds to match (item, weapon, tome, character)")
	detectCmd.Flags().StringP("strategy", "s", "", "strategy preset to use for this run")
	detectCmd.Flags().String("corrections", "", "corrections ledger file to apply during detection")
}

// loadImage reads and decodes one image file.
func loadImage(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open image: %w", err)
	}
	defer func() { _ = f.Close() }()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode image %s: %w", path, err)
	}
	return img, nil
}

// parseKindList converts a comma-separated kind list into catalog kinds.
func parseKindList(csv string) ([]catalog.Kind, error) {
	if strings.TrimSpace(csv) == "" {
		return nil, nil
	}
	parts := strings.Split(csv, ",")
	kinds := make([]catalog.Kind, 0, len(parts))
	for _, p := range parts {
		k, err := catalog.ParseKind(strings.TrimSpace(p))
		if err != nil {
			return nil, err
		}
		kinds = append(kinds, k)
	}
	return kinds, nil
}

// writeDetections renders detection outcomes in the requested format.
func writeDetections(cmd *cobra.Command, outcomes []fileDetection, format string, precision int) error {
	out := cmd.OutOrStdout()

	if format == outputFormatJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(outcomes)
	}

	if precision <= 0 {
		precision = 2
	}
	for _, o := range outcomes {
		fmt.Fprintf(out, "%s:\n", o.File)
		if o.Error != "" {
			fmt.Fprintf(out, "  error: %s\n", o.Error)
		}
		if o.Detection == nil {
			continue
		}
		if len(o.Detection.Results) == 0 {
			fmt.Fprintln(out, "  no entities recognized")
			continue
		}
		for _, r := range o.Detection.Results {
			line := fmt.Sprintf("  %-24s %s  %.*f", r.Entity.Name, r.Kind, precision, r.Confidence)
			if count, ok := o.Detection.Counts[match.Normalize(r.Entity.Name)]; ok {
				line += fmt.Sprintf("  x%d", count)
			}
			fmt.Fprintln(out, line)
		}
	}
	return nil
}
