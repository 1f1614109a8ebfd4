// Package cli implements the skuctl commands.
package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"skuforge/internal/app"
	"skuforge/internal/config"
	"skuforge/pkg/logger"
)

// envDir is where .env is looked up. Set by the root command.
var envDir = "."

// BindGlobalFlags registers flags shared by all commands.
func BindGlobalFlags(root *cobra.Command) {
	root.PersistentFlags().StringVar(&envDir, "env-dir", ".", "directory containing the .env file")
}

// openApp loads configuration and wires the configured backends.
// The caller must call the returned cleanup.
func openApp(ctx context.Context) (*app.App, func(), error) {
	cfg, err := config.Load(envDir)
	if err != nil {
		return nil, nil, fmt.Errorf("load configuration: %w", err)
	}

	log, err := logger.New(logger.Config{Level: cfg.Log.Level, Development: true})
	if err != nil {
		return nil, nil, fmt.Errorf("init logger: %w", err)
	}

	a, err := app.New(logger.WithLogger(ctx, log), cfg, log)
	if err != nil {
		return nil, nil, err
	}
	return a, func() {
		a.Close()
		_ = log.Sync()
	}, nil
}

// withTimeout is used by commands that talk to remote backends.
func withTimeout(ctx context.Context, cmd *cobra.Command) (context.Context, context.CancelFunc) {
	timeout, _ := cmd.Flags().GetDuration("timeout")
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}
