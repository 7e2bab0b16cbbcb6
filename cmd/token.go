package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"hr-toolkit/internal/auth"
	"hr-toolkit/internal/config"
)

var tokenTTL = auth.DefaultTTL

var tokenCmd = &cobra.Command{
	Use:   "token <operator>",
	Short: "Issue an API token for an operator",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := loadConfig()
		if err != nil {
			return err
		}
		if cfg.Auth.JWTSecret == "" {
			return errors.New(config.EnvJWTSecret + " is not set")
		}
		tok, err := auth.NewTokens(cfg.Auth.JWTSecret, tokenTTL).GenerateToken(args[0])
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), tok)
		return nil
	},
}

func init() {
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", auth.DefaultTTL, "Token lifetime")
}
