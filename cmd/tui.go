package main

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/animx/internal/models"
	"github.com/desertthunder/animx/internal/shared"
	"github.com/desertthunder/animx/internal/ui"
)

// tuiLogPath receives log output while a TUI owns the terminal.
const tuiLogPath = "./tmp/animx-tui.log"

// useFileLogger redirects logs to avoid interfering with TUI rendering.
func (r *Runner) useFileLogger() error {
	fileLogger, err := shared.NewFileLogger(tuiLogPath)
	if err != nil {
		return fmt.Errorf("failed to create file logger: %w", err)
	}
	fileLogger.SetLevel(r.logger.GetLevel())
	r.SetLogger(fileLogger)
	return nil
}

// runGenerationTUI runs req with a spinner and progress bar and returns the outcome.
func (r *Runner) runGenerationTUI(ctx context.Context, req models.GenerationRequest) (models.Outcome, error) {
	if err := r.useFileLogger(); err != nil {
		return models.Outcome{}, err
	}

	model := ui.NewModel(ctx, r.generator(), req)
	if _, err := tea.NewProgram(model).Run(); err != nil {
		return models.Outcome{}, fmt.Errorf("error running TUI: %w", err)
	}

	out, finished := model.Outcome()
	if !finished {
		return models.Failed(shared.ErrRequestCanceled, "", 0), nil
	}
	return out, nil
}

// runHistoryTUI browses records in a full-screen list.
func (r *Runner) runHistoryTUI(records []*models.GenerationRecord) error {
	if err := r.useFileLogger(); err != nil {
		return err
	}

	if _, err := tea.NewProgram(ui.NewHistoryModel(records), tea.WithAltScreen()).Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}
	return nil
}
