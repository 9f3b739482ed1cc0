package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Veraticus/spice-ledger/internal/auth"
	"github.com/Veraticus/spice-ledger/internal/common"
)

func tokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token <external-id>",
		Short: "Issue an API bearer token",
		Long: `Sign a bearer token for the API with the configured auth.jwt_secret.
The subject is the caller's external id; the account is created on
its first request.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			verifier, err := auth.NewVerifier(cfg.JWTSecret, cfg.JWTIssuer)
			if err != nil {
				return common.NewUserError("Set auth.jwt_secret (SPICE_AUTH_JWT_SECRET) to issue tokens.", err)
			}

			ttl, _ := cmd.Flags().GetDuration("ttl")
			if ttl <= 0 {
				ttl = cfg.TokenTTL
			}

			token, err := verifier.Issue(args[0], ttl, time.Now())
			if err != nil {
				return fmt.Errorf("failed to issue token: %w", err)
			}

			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().Duration("ttl", 0, "token lifetime (default: auth.token_ttl)")

	return cmd
}
