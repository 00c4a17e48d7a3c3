package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/sevenday/challenge/server/config"
	mw "github.com/sevenday/challenge/server/middleware"
	"github.com/spf13/cobra"
)

func newTokenCmd() *cobra.Command {
	var ttl time.Duration
	tokenCmd := &cobra.Command{
		Use:   "token <user-id>",
		Short: "Mint a bearer token for local testing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath(cmd))
			if err != nil {
				return fmt.Errorf("config: %w", err)
			}
			if cfg.Security.JWTSecret == "" {
				return errors.New("security.jwt_secret is not set")
			}
			tok, err := mw.GenerateToken(args[0], cfg.Security.JWTSecret, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}
	tokenCmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "Token lifetime")
	return tokenCmd
}
