package main

import (
	"fmt"

	"github.com/damsblt/only-you-coaching-app-sub004/internal/config"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "api",
		Short:        "Only You Coaching subscription billing service",
		SilenceUsage: true,
	}

	root.AddCommand(
		newServeCmd(),
		newReconcileCmd(),
		newIssueTokenCmd(),
	)
	return root
}

// bootstrap loads configuration and builds the logger for a command.
func bootstrap() (config.AppConfig, *zap.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.AppConfig{}, nil, err
	}

	var logger *zap.Logger
	if cfg.IsProduction() {
		logger, err = zap.NewProduction()
	} else {
		logger, err = zap.NewDevelopment()
	}
	if err != nil {
		return config.AppConfig{}, nil, fmt.Errorf("failed to build logger: %w", err)
	}
	return cfg, logger, nil
}
