package main

import (
	"context"
	"fmt"
	"io"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/plexaa/internal/shared"
	"github.com/desertthunder/plexaa/internal/ui"
	"github.com/urfave/cli/v3"
)

// TUI launches the interactive browser.
func (r *Runner) TUI(ctx context.Context, cmd *cli.Command) error {
	// Redirect logs to file to avoid interfering with TUI rendering
	fileLogger, err := shared.NewFileLogger(shared.CacheDir("tui.log"))
	if err != nil {
		return fmt.Errorf("failed to create file logger: %w", err)
	}
	r.SetLogger(fileLogger)
	r.player = newPrintPlayer(io.Discard, fileLogger)

	b, err := r.connectLibrary()
	if err != nil {
		return err
	}
	session, err := r.playback()
	if err != nil {
		return err
	}

	model := ui.NewModel(ctx, b, session, r.progress)
	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}

	return nil
}
