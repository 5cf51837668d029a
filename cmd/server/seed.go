package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"customers/internal/customer/seed"
	"customers/internal/platform/config"
	"customers/internal/platform/logger"
)

func newSeedCmd(load func() (config.Config, error)) *cobra.Command {
	var count int

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Register generated sample customers",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("count") {
				count = cfg.Seed.Count
			}
			if count < 1 {
				return fmt.Errorf("--count must be at least 1")
			}
			if cfg.Store.Driver == config.StoreMemory {
				return fmt.Errorf("seed needs a persistent store: set store.driver to %q or %q",
					config.StorePostgres, config.StoreSQLite)
			}

			ctx := cmd.Context()
			log := logger.New(cfg.Log)
			a, err := buildApp(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer a.Close()

			created, err := seed.New(a.service, seed.WithLogger(log)).Seed(ctx, count)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "seeded %d customers\n", created)
			return nil
		},
	}
	cmd.Flags().IntVar(&count, "count", 1, "number of customers to register")
	return cmd
}
