package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"smash-rewards/internal/server"
)

var tokenCmd = &cobra.Command{
	Use:   "token ACCOUNT_ID",
	Short: "Issue a bearer token for local testing",
	Long: `Signs a token with the configured auth.jwt_secret. Production tokens
come from the identity provider; this command is for development only.`,
	Args: cobra.ExactArgs(1),
	RunE: runToken,
}

func init() {
	rootCmd.AddCommand(tokenCmd)
	tokenCmd.Flags().String("email", "", "Email claim")
	tokenCmd.Flags().Duration("ttl", 24*time.Hour, "Token lifetime")
}

func runToken(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	email, _ := cmd.Flags().GetString("email")
	ttl, _ := cmd.Flags().GetDuration("ttl")

	auth, err := server.NewAuthenticator(cfg.Auth.JWTSecret)
	if err != nil {
		return err
	}
	tok, err := auth.Issue(server.Identity{AccountID: args[0], Email: email}, ttl)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), tok)
	return nil
}
