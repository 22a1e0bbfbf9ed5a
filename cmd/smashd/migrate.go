package main

import (
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the store schema and indexes",
	Args:  cobra.NoArgs,
	RunE:  runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	b, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer b.close()

	if err := b.migrate(ctx); err != nil {
		return err
	}
	log.Info().Str("store", cfg.Store.Backend).Msg("Migrations applied")
	return nil
}
