package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/xaenox/ledger-categorizer/pkg/config"
	"go.uber.org/zap"
)

var (
	cfgFile string
	cfg     *config.Config
	logger  *zap.Logger

	rootCmd = &cobra.Command{
		Use:   "categorizer",
		Short: "AI transaction categorizer for the Firefly III ledger",
		Long: `categorizer receives transaction webhooks from Firefly III, predicts a
category with an OpenAI model blended with feedback history, and writes
confident predictions back to the ledger.`,
		SilenceUsage:       true,
		PersistentPreRunE:  initRuntime,
		PersistentPostRunE: syncLogger,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "config.yaml", "config file (optional)")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(predictCmd())
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	cancel()

	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func initRuntime(_ *cobra.Command, _ []string) error {
	// A missing .env is normal outside local development
	envErr := godotenv.Load()

	loaded, err := config.LoadConfig(cfgFile)
	if err != nil {
		return err
	}
	cfg = loaded

	logger, err = newLogger(cfg.Log)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	if envErr != nil {
		logger.Debug("No .env file found, relying on environment")
	}
	return nil
}

func newLogger(cfg config.LogConfig) (*zap.Logger, error) {
	zapConfig := zap.NewProductionConfig()
	if cfg.Development {
		zapConfig = zap.NewDevelopmentConfig()
	}
	if cfg.Level != "" {
		level, err := zap.ParseAtomicLevel(cfg.Level)
		if err != nil {
			return nil, err
		}
		zapConfig.Level = level
	}
	return zapConfig.Build()
}

func syncLogger(_ *cobra.Command, _ []string) error {
	if logger != nil {
		_ = logger.Sync()
	}
	return nil
}
