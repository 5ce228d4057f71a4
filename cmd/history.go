package main

import (
	"context"
	"fmt"
	"time"

	"github.com/desertthunder/animx/internal/formatter"
	"github.com/desertthunder/animx/internal/models"
	"github.com/desertthunder/animx/internal/repositories"
	"github.com/desertthunder/animx/internal/shared"
	"github.com/desertthunder/animx/internal/ui"
	"github.com/urfave/cli/v3"
)

func (r *Runner) historyRepository() (*repositories.GenerationRepository, error) {
	db, err := r.database()
	if err != nil {
		return nil, err
	}
	return repositories.NewGenerationRepository(db), nil
}

// HistoryList prints recent generations, newest first.
func (r *Runner) HistoryList(ctx context.Context, cmd *cli.Command) error {
	repo, err := r.historyRepository()
	if err != nil {
		return err
	}

	records, err := repo.List(ctx, cmd.Int("limit"))
	if err != nil {
		return err
	}

	if cmd.Bool("tui") {
		return r.runHistoryTUI(records)
	}

	if cmd.Bool("json") {
		entries := make([]formatter.Entry, len(records))
		for i, rec := range records {
			entries[i] = formatter.NewEntry(rec)
		}
		return r.writeJSON(entries, true)
	}

	if len(records) == 0 {
		return r.writePlain("No generations recorded yet.\n")
	}

	r.writePlainHeader(fmt.Sprintf("Generations (%d)", len(records)))
	for _, rec := range records {
		status := ui.OutcomeStyle(rec.Status == models.OutcomeSuccess, rec.Status == models.OutcomeTimeout, rec.Status.String())
		r.writePlain("#%-4d %s  %-11s %-8s %s\n",
			rec.Sequence, rec.CreatedAt.Local().Format(time.DateTime), rec.Mode, status, rec.Prompt)
		for _, u := range rec.ResultURLs {
			r.writePlain("      %s\n", u)
		}
		if rec.Error != "" {
			r.writePlain("      %s\n", ui.Hint(rec.Error))
		}
	}

	counts, err := repo.Count(ctx)
	if err != nil {
		return err
	}
	r.writePlainln("Total: %d succeeded, %d failed, %d timed out",
		counts[models.OutcomeSuccess], counts[models.OutcomeFailure], counts[models.OutcomeTimeout])
	return nil
}

// HistoryExport writes recent generations as CSV, Markdown or JSON.
func (r *Runner) HistoryExport(ctx context.Context, cmd *cli.Command) error {
	format, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}

	repo, err := r.historyRepository()
	if err != nil {
		return err
	}

	records, err := repo.List(ctx, cmd.Int("limit"))
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return fmt.Errorf("%w: no generations to export", shared.ErrRecordNotFound)
	}

	path, err := formatter.WriteExport(format, records, cmd.String("output"))
	if err != nil {
		return err
	}

	r.logger.Info("history exported", "path", path, "records", len(records), "format", format)
	return r.writePlain("%s\n", ui.Success(fmt.Sprintf("✓ Exported %d generation(s) to %s", len(records), path)))
}
