package main

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/kbx/internal/notify"
	"github.com/desertthunder/kbx/internal/shared"
	"github.com/desertthunder/kbx/internal/ui"
	"github.com/urfave/cli/v3"
)

const defaultTUILog = "./tmp/kbx-tui.log"

// TUI launches the interactive board view.
func (r *Runner) TUI(ctx context.Context, cmd *cli.Command) error {
	// Redirect logs to file to avoid interfering with TUI rendering
	path := r.config.Log.File
	if path == "" {
		path = defaultTUILog
	}
	fileLogger, f, err := shared.NewFileLogger(path)
	if err != nil {
		return fmt.Errorf("failed to create file logger: %w", err)
	}
	defer f.Close()
	shared.SetLogLevel(fileLogger, shared.ParseLogLevel(r.config.Log.Level))
	r.SetLogger(fileLogger)

	notices := notify.NewChannel(16)
	s, _, err := r.newSession(notices)
	if err != nil {
		return err
	}
	defer s.Close()

	model := ui.NewModel(ctx, s, notices.C)
	defer model.Close()

	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}
	return model.Err()
}
