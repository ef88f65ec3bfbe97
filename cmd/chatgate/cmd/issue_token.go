package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/chat-gate/chatgate/internal/config"
	"github.com/chat-gate/chatgate/internal/domain/token"
)

var issueTokenTTL string

var issueTokenCmd = &cobra.Command{
	Use:   "issue-token [subject-id]",
	Short: "Mint a bearer token for a subject",
	Long: `Mint an HS256 bearer token for a subject, signed with the configured
JWT secret. Intended for testing and scripting against a running gateway.

Example:
  chatgate issue-token user-42
  chatgate issue-token user-42 --ttl 10m`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadConfig()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		cfg.SetDefaults()
		if cfg.DevMode {
			cfg.SetDevDefaults()
		}
		if cfg.Auth.JWTSecret == "" {
			return fmt.Errorf("auth.jwt_secret is not configured")
		}
		if issueTokenTTL != "" {
			cfg.Auth.TokenTTL = issueTokenTTL
		}

		issuer := token.NewIssuer(token.Config{
			Secret: []byte(cfg.Auth.JWTSecret),
			Issuer: cfg.Auth.Issuer,
			TTL:    cfg.Auth.GetTokenTTL(),
		})
		raw, err := issuer.Issue(args[0], "")
		if err != nil {
			return err
		}
		fmt.Println(raw)
		return nil
	},
}

func init() {
	issueTokenCmd.Flags().StringVar(&issueTokenTTL, "ttl", "", "token lifetime (default: auth.token_ttl)")
	rootCmd.AddCommand(issueTokenCmd)
}
