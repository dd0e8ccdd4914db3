package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/MeKo-Tech/cellgrid/internal/blocks"
	"github.com/MeKo-Tech/cellgrid/internal/grid"
	"github.com/MeKo-Tech/cellgrid/internal/ocr"
)

// analyzeCmd represents the analyze command.
var analyzeCmd = &cobra.Command{
	Use:   "analyze [file]",
	Short: "Reconstruct the table grids of a document",
	Long: `Analyze an image or single-page PDF with the configured OCR backend and print
the reconstructed table grids. With --blocks a saved block response is read
instead and no backend is contacted.

Examples:
  cellgrid analyze scan.png
  cellgrid analyze scan.jpg --format csv --output tables.csv
  cellgrid analyze scan.png --save-blocks response.json
  cellgrid analyze --blocks response.json --format yaml`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := GetConfig()

		format := cfg.Output.Format
		if cmd.Flags().Changed("format") {
			format, _ = cmd.Flags().GetString("format")
		}
		blocksFile, _ := cmd.Flags().GetString("blocks")
		saveBlocks, _ := cmd.Flags().GetString("save-blocks")
		outputFile, _ := cmd.Flags().GetString("output")

		if (len(args) == 0) == (blocksFile == "") {
			return errors.New("provide either a document or --blocks")
		}

		var (
			list []blocks.Block
			err  error
		)
		if blocksFile != "" {
			list, err = readBlocks(blocksFile)
		} else {
			timeout := time.Duration(cfg.OCR.TimeoutSec) * time.Second
			ctx, cancel := context.WithTimeout(context.Background(), timeout)
			defer cancel()
			list, err = analyzeFile(ctx, args[0])
		}
		if err != nil {
			return err
		}

		if saveBlocks != "" {
			if err := writeBlocks(saveBlocks, list); err != nil {
				return err
			}
		}

		tables := grid.BuildAll(blocks.Build(list))
		slog.Debug("Reconstructed tables", "blocks", len(list), "tables", len(tables))

		rendered, err := renderTables(tables, format)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if outputFile != "" {
			f, err := os.Create(outputFile) //nolint:gosec // G304: output path is user-provided
			if err != nil {
				return fmt.Errorf("failed to create output file: %w", err)
			}
			defer func() { _ = f.Close() }()
			out = f
		}
		_, err = io.WriteString(out, rendered)
		return err
	},
}

// analyzeFile validates a document and runs it through the OCR backend.
func analyzeFile(ctx context.Context, path string) ([]blocks.Block, error) {
	cfg := GetConfig()

	data, err := os.ReadFile(path) //nolint:gosec // G304: reading user-provided document path is expected
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	validator := ocr.Validator{
		MaxBytes:   cfg.Server.MaxUploadMB << 20,
		Extensions: cfg.OCR.AllowedExtensions,
	}
	doc, err := validator.Validate(filepath.Base(path), "", data)
	if err != nil {
		return nil, err
	}

	analyzer, err := newAnalyzer(ctx, cfg.OCR)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize OCR backend: %w", err)
	}
	return analyzer.Analyze(ctx, doc)
}

func readBlocks(path string) ([]blocks.Block, error) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: reading user-provided response path is expected
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return blocks.ParseResponse(data)
}

func writeBlocks(path string, list []blocks.Block) error {
	data, err := json.MarshalIndent(blocks.Response{Blocks: list}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode blocks: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// renderTables formats tables for output. CSV output separates tables with
// a blank line.
func renderTables(tables []*grid.Table, format string) (string, error) {
	switch format {
	case "text", "":
		return grid.ToPlainText(tables), nil
	case "json":
		s, err := grid.ToJSON(tables)
		return s + "\n", err
	case "yaml":
		return grid.ToYAML(tables)
	case "csv":
		parts := make([]string, 0, len(tables))
		for _, t := range tables {
			s, err := grid.ToCSV(t)
			if err != nil {
				return "", err
			}
			parts = append(parts, s)
		}
		return strings.Join(parts, "\n"), nil
	default:
		return "", fmt.Errorf("unsupported format %q (use text, json, yaml or csv)", format)
	}
}

func init() {
	rootCmd.AddCommand(analyzeCmd)
	analyzeCmd.Flags().StringP("format", "f", "text", "output format: text, json, yaml or csv")
	analyzeCmd.Flags().StringP("output", "o", "", "write output to a file instead of stdout")
	analyzeCmd.Flags().String("blocks", "", "read a saved block response instead of analyzing a document")
	analyzeCmd.Flags().String("save-blocks", "", "write the block response to a file")
}
