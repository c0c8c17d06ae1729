package main

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/xaenox/ledger-categorizer/internal/ledger"
	"github.com/xaenox/ledger-categorizer/internal/relay"
	"github.com/xaenox/ledger-categorizer/internal/server"
	"go.uber.org/zap"
)

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the webhook and prediction HTTP service",
		RunE:  runServe,
	}
	cmd.Flags().String("addr", "", "listen address (overrides server.addr)")
	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	addr, _ := cmd.Flags().GetString("addr")
	if addr == "" {
		addr = cfg.Server.Addr
	}
	if !cfg.Log.Development {
		gin.SetMode(gin.ReleaseMode)
	}

	store := openStore(ctx, cfg.Database, logger)
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("Failed to close storage", zap.Error(err))
		}
	}()

	predictor, openAI, err := buildPredictor(cfg, store, logger)
	if err != nil {
		return fmt.Errorf("invalid taxonomy: %w", err)
	}

	if cfg.Ledger.Token == "" {
		logger.Warn("FIREFLY_TOKEN not set, ledger writes will be rejected")
	}
	ledgerClient := ledger.NewFireflyClient(ledger.Config{
		BaseURL: cfg.Ledger.BaseURL,
		Token:   cfg.Ledger.Token,
		Timeout: cfg.Ledger.Timeout,
	}, logger)

	deps := server.Dependencies{
		Relay:       relay.New(predictor, ledgerClient, cfg.Relay.Threshold, logger),
		Predictor:   predictor,
		Corrections: relay.NewCorrections(ledgerClient, store, predictor.Taxonomy(), logger),
		Taxonomy:    predictor.Taxonomy(),
		Store:       store,
		Ledger:      ledgerClient,
	}
	if openAI != nil {
		deps.Provider = openAI
	}

	logger.Info("Starting categorizer",
		zap.String("addr", addr),
		zap.Float64("threshold", cfg.Relay.Threshold),
		zap.Bool("provider_enabled", openAI != nil))

	return server.New(deps, cfg.Server.RequestTimeout, logger).Run(ctx, addr)
}
