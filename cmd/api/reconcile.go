package main

import (
	"fmt"

	"github.com/damsblt/only-you-coaching-app-sub004/internal/app"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newReconcileCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile-commitments",
		Short: "Re-assert the scheduled cancel of subscriptions inside their commitment",
		Long: `Walks every subscription whose commitment has not ended and makes sure the
processor still cancels it at the commitment end date. Uses the credentials of
this deployment (APP_ENV=production selects live keys).`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := bootstrap()
			if err != nil {
				return err
			}
			defer logger.Sync()

			container, err := app.NewContainer(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer container.Close()

			checked, corrected, err := container.Webhooks.ReconcileCommitments(cmd.Context())
			logger.Info("commitment reconciliation finished",
				zap.Int("checked", checked),
				zap.Int("corrected", corrected),
				zap.Error(err),
			)
			fmt.Fprintf(cmd.OutOrStdout(), "checked %d, corrected %d\n", checked, corrected)
			return err
		},
	}
}
