package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vnikonov63/chair22/internal/logging"
	"github.com/vnikonov63/chair22/internal/session"
)

func runSession(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	logger := logging.New(cmd.ErrOrStderr(), cfg.LogLevel)
	a, err := newApp(cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if sessionReset {
		if err := a.kv.Delete(ctx, session.StorageKey); err != nil {
			return fmt.Errorf("reset session: %w", err)
		}
		logger.Info("persisted session cleared")
	}

	id, err := a.binder.Resolve(ctx)
	if err != nil {
		fmt.Fprintf(cmd.OutOrStdout(), "session: %s\n", a.binder.State())
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "session: %s\nrepl: %s\napi: %s\n", a.binder.State(), id, cfg.APIBaseURL())
	return nil
}
