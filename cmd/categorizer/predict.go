package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"github.com/xaenox/ledger-categorizer/internal/models"
)

func predictCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "predict [description]...",
		Short: "Categorize transaction descriptions from the terminal",
		Example: `  categorizer predict "Netflix monthly subscription"
  categorizer predict "Shell gas station" "UBER EATS order"
  categorizer predict --file descriptions.txt`,
		RunE: runPredict,
	}
	cmd.Flags().StringP("file", "f", "", "read descriptions from a file, one per line")
	return cmd
}

func runPredict(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	file, _ := cmd.Flags().GetString("file")
	descriptions := args
	if file != "" {
		fromFile, err := readDescriptions(file)
		if err != nil {
			return err
		}
		descriptions = append(descriptions, fromFile...)
	}
	if len(descriptions) == 0 {
		return errors.New("no descriptions given")
	}

	store := openStore(ctx, cfg.Database, logger)
	defer func() { _ = store.Close() }()

	predictor, _, err := buildPredictor(cfg, store, logger)
	if err != nil {
		return fmt.Errorf("invalid taxonomy: %w", err)
	}

	var bar *progressbar.ProgressBar
	if file != "" {
		bar = progressbar.NewOptions(len(descriptions),
			progressbar.OptionSetWriter(cmd.ErrOrStderr()),
			progressbar.OptionShowCount(),
			progressbar.OptionSetWidth(40),
			progressbar.OptionSetDescription("Categorizing transactions"))
	}

	results, err := predictAll(ctx, predictor, descriptions, bar)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(results)
}

type categorizer interface {
	Predict(ctx context.Context, description string) models.PredictionResult
}

func predictAll(ctx context.Context, predictor categorizer, descriptions []string, bar *progressbar.ProgressBar) ([]models.PredictionResult, error) {
	results := make([]models.PredictionResult, 0, len(descriptions))
	for _, description := range descriptions {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		results = append(results, predictor.Predict(ctx, description))
		if bar != nil {
			_ = bar.Add(1)
		}
	}
	if bar != nil {
		_ = bar.Finish()
	}
	return results, nil
}

func readDescriptions(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()
	return scanDescriptions(f)
}

// scanDescriptions returns the non-blank lines of r.
func scanDescriptions(r io.Reader) ([]string, error) {
	var out []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			out = append(out, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read descriptions: %w", err)
	}
	return out, nil
}
