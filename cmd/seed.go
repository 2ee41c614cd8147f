package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/okian/surgitrack/internal/adapters/repository/sqlite"
	"github.com/okian/surgitrack/internal/domain/catalog"
	"github.com/okian/surgitrack/pkg/logger"
)

func newSeedCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load the task and error type catalog into the database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			cat, err := readCatalog(file)
			if err != nil {
				return err
			}
			store, err := sqlite.Open(ctx, cfg.DatabaseURL)
			if err != nil {
				return fmt.Errorf("failed to open database: %w", err)
			}
			defer func() { _ = store.Close() }()

			res, err := cat.Seed(ctx, store)
			if err != nil {
				return fmt.Errorf("seed failed: %w", err)
			}
			logger.Get().Info(ctx, "catalog seeded",
				logger.String("database", cfg.DatabaseURL),
				logger.Int("tasks", res.Tasks),
				logger.Int("standards", res.Standards),
				logger.Int("errorTypes", res.ErrorTypes))
			return nil
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "YAML catalog to load instead of the built-in one")
	return cmd
}

// readCatalog returns the catalog at path, or the built-in one when path is
// empty.
func readCatalog(path string) (*catalog.Catalog, error) {
	if path == "" {
		return catalog.Default()
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog: %w", err)
	}
	defer func() { _ = f.Close() }()
	return catalog.Decode(f)
}
