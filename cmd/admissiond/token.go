package main

import (
	"fmt"
	"time"

	"gate-admission/internal/infra/api"

	"github.com/spf13/cobra"
)

func newTokenCmd(flags *rootFlags) *cobra.Command {
	var (
		role string
		ttl  time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token <subject>",
		Short: "Mint an operator bearer token for the lifecycle API",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := flags.load()
			if err != nil {
				return err
			}
			tok, err := api.NewAuthManager(cfg.Auth.JWTSecret, cfg.Auth.Issuer).Mint(args[0], role, ttl)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), tok)
			return err
		},
	}
	cmd.Flags().StringVar(&role, "role", "operator", "role claim")
	cmd.Flags().DurationVar(&ttl, "ttl", 12*time.Hour, "token lifetime")
	return cmd
}
