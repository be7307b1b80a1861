package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/nerrad567/gray-logic-facade/internal/auth"
)

func newTokenCmd(v *viper.Viper) *cobra.Command {
	var (
		subject string
		role    string
		ttl     time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a bearer token for the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(v)
			if err != nil {
				return err
			}
			if ttl == 0 {
				ttl = cfg.GetTokenTTL()
			}
			token, err := auth.GenerateToken(subject, auth.Role(role), cfg.API.Auth.JWTSecret, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&subject, "subject", "", "who the token is issued to")
	flags.StringVar(&role, "role", string(auth.RoleViewer), "viewer or operator")
	flags.DurationVar(&ttl, "ttl", 0, "token lifetime, api.auth.token_ttl when 0")
	_ = cmd.MarkFlagRequired("subject")
	return cmd
}
