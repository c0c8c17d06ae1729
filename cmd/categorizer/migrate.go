package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/xaenox/ledger-categorizer/internal/storage"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the feedback schema in PostgreSQL",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			store, err := storage.NewPostgresStorage(ctx, storage.DatabaseConfig{
				DSN:          cfg.Database.DSN(),
				MaxOpenConns: 1,
			}, logger)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			if err := store.Migrate(ctx); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "feedback schema is up to date")
			return nil
		},
	}
}
