package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"customers/internal/platform/config"
)

// main hands off to cobra. Business logic lives in internal packages; this
// package only wires dependencies and owns the process lifecycle.
func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "customers",
		Short:         "Customer directory service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to a TOML config file (environment variables override it)")

	load := func() (config.Config, error) {
		return config.Load(configPath)
	}

	serve := newServeCmd(load)
	root.AddCommand(serve, newSeedCmd(load))
	// running the binary without a subcommand serves
	root.RunE = serve.RunE
	return root
}
