package main

import (
	"fmt"
	"time"

	"github.com/damsblt/only-you-coaching-app-sub004/internal/pkg/jwt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newIssueTokenCmd() *cobra.Command {
	var (
		subject string
		email   string
		ttl     time.Duration
		super   bool
	)

	cmd := &cobra.Command{
		Use:   "issue-admin-token",
		Short: "Print a bearer token for the promo code admin API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := bootstrap()
			if err != nil {
				return err
			}
			defer logger.Sync()

			if ttl <= 0 {
				ttl = cfg.JWT.TTL
			}
			roles := []string{jwt.RoleAdmin}
			if super {
				roles = append(roles, jwt.RoleSuperAdmin)
			}

			token, jti, err := jwt.NewGenerator(cfg.JWT.Secret, cfg.JWT.Issuer, cfg.JWT.Audience, ttl).
				Generate(subject, email, roles)
			if err != nil {
				return err
			}

			logger.Info("admin token issued", zap.String("subject", subject), zap.String("jti", jti))
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().StringVar(&subject, "subject", "", "operator id stored in the token subject")
	cmd.Flags().StringVar(&email, "email", "", "operator email")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "token lifetime (defaults to JWT_TTL)")
	cmd.Flags().BoolVar(&super, "super", false, "also grant the super_admin role")
	_ = cmd.MarkFlagRequired("subject")
	return cmd
}
