package main

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	"github.com/desertthunder/annihilator/internal/models"
	"github.com/desertthunder/annihilator/internal/shared"
	"github.com/desertthunder/annihilator/internal/ui"
	"github.com/urfave/cli/v3"
)

// TUI launches the interactive terminal UI.
func (r *Runner) TUI(ctx context.Context, cmd *cli.Command) error {
	// Redirect logs to file to avoid interfering with TUI rendering
	fileLogger, err := shared.NewFileLogger(r.config.UI.LogFile)
	if err != nil {
		return fmt.Errorf("failed to create file logger: %w", err)
	}
	if cmd.Bool("debug") {
		shared.SetLogLevel(fileLogger, log.DebugLevel)
	}
	r.SetLogger(fileLogger)

	var themes ui.ThemeStore
	if store, db, err := r.openThemes(); err != nil {
		r.logger.Warn("theme preference unavailable", "error", err)
	} else {
		defer db.Close()
		themes = store
	}

	ctrl := r.newController()
	defer ctrl.RemoveFile()

	model := ui.NewModel(ctx, ctrl, themes, ui.Options{
		DownloadDir: r.config.Download.Dir,
		Theme:       models.Theme(r.config.UI.DefaultTheme),
		Logger:      r.logger,
	})
	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}

	return nil
}
