package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/desertthunder/animx/internal/formatter"
	"github.com/desertthunder/animx/internal/models"
	"github.com/desertthunder/animx/internal/shared"
	"github.com/desertthunder/animx/internal/tasks"
	"github.com/desertthunder/animx/internal/ui"
	"github.com/urfave/cli/v3"
)

// generationResult is the --json shape of one generation, matching the HTTP response body.
type generationResult struct {
	Success   bool     `json:"success"`
	ImageURL  string   `json:"imageUrl,omitempty"`
	ImageURLs []string `json:"imageUrls,omitempty"`
	TaskID    string   `json:"taskId,omitempty"`
	Attempts  int      `json:"attempts"`
	Error     string   `json:"error,omitempty"`
	Saved     []string `json:"saved,omitempty"`
}

// Convert restyles a source image from --image guided by --prompt.
func (r *Runner) Convert(ctx context.Context, cmd *cli.Command) error {
	req := models.GenerationRequest{
		Mode:      models.ModeEdit,
		ImageURL:  cmd.String("image"),
		Prompt:    cmd.String("prompt"),
		Function:  cmd.String("function"),
		OutputNum: cmd.Int("n"),
	}
	return r.generate(ctx, cmd, req)
}

// Text2Img synthesizes images from --prompt alone.
func (r *Runner) Text2Img(ctx context.Context, cmd *cli.Command) error {
	req := models.GenerationRequest{
		Mode:      models.ModeText,
		Prompt:    cmd.String("prompt"),
		Size:      cmd.String("size"),
		OutputNum: cmd.Int("n"),
	}
	return r.generate(ctx, cmd, req)
}

// generate runs req and reports the outcome; a non-success outcome is returned as the command error.
func (r *Runner) generate(ctx context.Context, cmd *cli.Command, req models.GenerationRequest) error {
	if err := req.Validate(); err != nil {
		return err
	}

	var out models.Outcome
	if cmd.Bool("tui") {
		var err error
		if out, err = r.runGenerationTUI(ctx, req); err != nil {
			return err
		}
	} else {
		out = r.runWithProgress(ctx, req, !cmd.Bool("json"))
	}

	var saved []string
	if dir := cmd.String("save"); dir != "" && out.OK() {
		prefix := out.TaskID
		if prefix == "" {
			prefix = "animx"
		}
		paths, err := formatter.SaveImages(ctx, r.httpClient, out.ImageURLs, dir, prefix)
		if err != nil {
			r.logger.Error("failed to save images", "dir", dir, "error", err)
		}
		saved = paths
	}

	if cmd.Bool("json") {
		if err := r.writeJSON(newGenerationResult(out, saved), true); err != nil {
			return err
		}
	} else if !cmd.Bool("tui") {
		r.printOutcome(out, saved)
	}

	if out.OK() && cmd.Bool("open") {
		if err := shared.OpenBrowser(out.ImageURLs...); err != nil {
			r.logger.Warn("failed to open browser", "error", err)
		}
	}

	if !out.OK() {
		return out.Err
	}
	return nil
}

// runWithProgress runs req and prints progress lines while it polls.
func (r *Runner) runWithProgress(ctx context.Context, req models.GenerationRequest, show bool) models.Outcome {
	progressCh := make(chan tasks.ProgressUpdate, 50)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for update := range progressCh {
			if !show {
				continue
			}
			switch update.Phase {
			case tasks.Submit:
				r.writePlain("📤 %s\n", update.Message)
			case tasks.Poll:
				r.writePlain("   %s\n", update.Message)
			}
		}
	}()

	out := r.generator().Run(ctx, req, progressCh)
	close(progressCh)
	<-done
	return out
}

func newGenerationResult(out models.Outcome, saved []string) generationResult {
	res := generationResult{Success: out.OK(), TaskID: out.TaskID, Attempts: out.Attempts, Saved: saved}
	switch {
	case !out.OK():
		res.Error = out.Error()
	case len(out.ImageURLs) > 1:
		res.ImageURLs = out.ImageURLs
	default:
		res.ImageURL = out.ImageURL()
	}
	return res
}

func (r *Runner) printOutcome(out models.Outcome, saved []string) {
	r.writePlain("\n")
	switch out.Kind {
	case models.OutcomeSuccess:
		r.writePlain("%s\n", ui.Success(fmt.Sprintf("✓ Generated %d image(s)", len(out.ImageURLs))))
		for _, u := range out.ImageURLs {
			r.writePlain("  %s\n", u)
		}
		for _, p := range saved {
			r.writePlain("  saved %s\n", p)
		}
	case models.OutcomeTimeout:
		r.writePlain("%s\n", ui.Warn("⧗ "+out.Error()))
		if out.TaskID != "" {
			r.writePlain("Check later with: animx task status %s\n", out.TaskID)
		}
	default:
		r.writePlain("%s\n", ui.Failure("✗ "+out.Error()))
	}
}

// TaskStatus performs one read-only status query for a task created earlier.
func (r *Runner) TaskStatus(ctx context.Context, cmd *cli.Command) error {
	taskID := strings.TrimSpace(cmd.StringArg("id"))
	if taskID == "" {
		return fmt.Errorf("%w: task id", shared.ErrMissingArgument)
	}

	status, err := r.providerService().Query(ctx, taskID)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(map[string]any{
			"taskId":    status.TaskID,
			"status":    status.State,
			"imageUrls": status.ResultURLs,
			"message":   status.Message,
		}, true)
	}

	r.writePlain("Task:   %s\n", status.TaskID)
	r.writePlain("Status: %s\n", status.State)
	if status.Message != "" {
		r.writePlain("Reason: %s\n", status.Message)
	}
	for _, u := range status.ResultURLs {
		r.writePlain("  %s\n", u)
	}
	return nil
}

// Batch runs a text2img generation for every non-empty line of --file.
func (r *Runner) Batch(ctx context.Context, cmd *cli.Command) error {
	prompts, err := readPrompts(cmd.String("file"))
	if err != nil {
		return err
	}

	reqs := make([]models.GenerationRequest, len(prompts))
	for i, p := range prompts {
		reqs[i] = models.GenerationRequest{Mode: models.ModeText, Prompt: p, Size: cmd.String("size")}
	}

	opts := tasks.BatchOpts{Workers: cmd.Int("workers"), RateLimit: cmd.Float("rate")}
	r.logger.Info("starting batch", "prompts", len(reqs), "workers", opts.Workers, "rate", opts.RateLimit)

	progressCh := make(chan tasks.ProgressUpdate, len(reqs)+1)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for update := range progressCh {
			r.writePlain("%s\n", update.Message)
		}
	}()

	summary, err := tasks.BatchRun(ctx, r.generator(), reqs, opts, progressCh)
	close(progressCh)
	<-done
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		results := make([]generationResult, len(summary.Results))
		for i, res := range summary.Results {
			results[i] = newGenerationResult(res.Outcome, nil)
		}
		return r.writeJSON(results, true)
	}

	r.writePlain("\n")
	r.writePlainHeader("Batch Complete")
	r.writePlain("Succeeded: %s  Failed: %s  Timed out: %s\n",
		ui.Success(fmt.Sprint(summary.Succeeded)), ui.Failure(fmt.Sprint(summary.Failed)), ui.Warn(fmt.Sprint(summary.TimedOut)))
	for _, res := range summary.Results {
		if res.Outcome.OK() {
			r.writePlain("  %d. %s\n", res.Index+1, strings.Join(res.Outcome.ImageURLs, " "))
		} else {
			r.writePlain("  %d. %s\n", res.Index+1, ui.Failure(res.Outcome.Error()))
		}
	}
	return nil
}

// readPrompts returns the trimmed non-empty lines of path; lines starting with # are comments.
func readPrompts(path string) ([]string, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: --file", shared.ErrMissingArgument)
	}

	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("failed to open prompt file: %w", err)
	}
	defer f.Close()

	var prompts []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		prompts = append(prompts, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read prompt file: %w", err)
	}
	if len(prompts) == 0 {
		return nil, fmt.Errorf("%w: no prompts in %s", shared.ErrMissingArgument, path)
	}
	return prompts, nil
}
