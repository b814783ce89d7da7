package cli

import (
	"errors"
	"fmt"
	"time"

	"certquiz-service/internal/auth"
	"certquiz-service/internal/config"
	"certquiz-service/internal/domain"
	"github.com/spf13/cobra"
)

// NewTokenCmd mints a bearer token signed with the configured secret, for
// exercising the API without the identity provider.
func NewTokenCmd(configPath *string) *cobra.Command {
	var who domain.Identity
	var ttl string

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a development access token",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			if cfg.Auth.JWTSecret == "" {
				return errors.New("auth.jwtSecret (JWT_SECRET) must be set")
			}
			lifetime := config.TTLDuration(ttl, config.TTLDuration(cfg.Auth.TokenTTL, 24*time.Hour))
			token, err := auth.NewTokenService(cfg.Auth.JWTSecret, cfg.Auth.Issuer, lifetime).Issue(who)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&who.UserID, "user", "", "user id (token subject)")
	cmd.Flags().StringVar(&who.UserName, "name", "", "display name")
	cmd.Flags().StringVar(&who.Email, "email", "", "email address")
	cmd.Flags().StringVar(&ttl, "ttl", "", "token lifetime, e.g. 2h")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}
