package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jonathan/job-applier/internal/server"
)

var tokenSubject string

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue an API token for the server",
	Long:  `Signs a bearer token with JWT_SECRET for the given client name. Tokens expire after JWT_EXPIRATION_HOURS (default 24). The secret must be at least 32 bytes.`,
	RunE:  runToken,
}

func init() {
	tokenCmd.Flags().StringVar(&tokenSubject, "subject", "", "Client name recorded in the token")
	rootCmd.AddCommand(tokenCmd)
}

func runToken(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	jwtCfg, err := cfg.JWT()
	if err != nil {
		return err
	}
	if jwtCfg == nil {
		return fmt.Errorf("JWT_SECRET environment variable or jwt_secret config is required")
	}

	token, err := server.NewTokens(jwtCfg).Issue(tokenSubject)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), token)
	return err
}
