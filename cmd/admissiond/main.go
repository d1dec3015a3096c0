package main

import (
	"fmt"
	"os"

	"gate-admission/internal/config"

	"github.com/spf13/cobra"
)

// Set with -ldflags "-X main.version=... -X main.commit=...".
var (
	version = "dev"
	commit  = "none"
)

type rootFlags struct {
	configPath string
	dev        bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}
	root := &cobra.Command{
		Use:           "admissiond",
		Short:         "Gate admission and credential lifecycle service",
		Version:       version + " (" + commit + ")",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&flags.configPath, "config", "", "path to YAML config file (env only when empty)")
	root.PersistentFlags().BoolVar(&flags.dev, "dev", false, "developer mode: console logs, unredacted tokens")

	root.AddCommand(newServeCmd(flags), newMigrateCmd(flags), newTokenCmd(flags))
	return root
}

func (f *rootFlags) load() (*config.Config, error) {
	cfg, err := config.LoadConfig(f.configPath, f.dev)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}
