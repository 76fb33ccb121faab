package main

import (
	"fmt"
	"log/slog"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/vnikonov63/chair22/internal/logging"
	"github.com/vnikonov63/chair22/internal/tui"
)

// runInteractive starts the notebook UI. The UI owns the terminal, so logs go
// to a file in the state directory.
func runInteractive(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	logger, logFile, err := logging.NewFile(cfg.LogPath(), cfg.LogLevel)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	a, err := newApp(cfg, logger, logFile)
	if err != nil {
		logFile.Close()
		return err
	}
	defer a.Close()

	logger.Info("notebook starting", "api_base", cfg.APIBaseURL(), "state", cfg.StatePath())

	p := tea.NewProgram(
		tui.NewRootModel(a.binder, a.dispatcher, tui.Options{
			APIBase: cfg.APIBaseURL(),
			Debug:   cfg.Debug,
			Logger:  logger,
		}),
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
	)

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("run notebook: %w", err)
	}

	logger.Info("notebook stopped")
	return nil
}
