package tasks

import (
	"fmt"

	"github.com/desertthunder/animx/internal/models"
)

// ProgressUpdate represents a progress event during a long-running operation.
//
// Used to send real-time updates to the CLI or UI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data for advanced UIs
}

// Operation phase enumeration
type Phase int

const (
	Validate Phase = iota
	Submit
	Poll
	Complete
	Batch
)

func (p Phase) String() string {
	switch p {
	case Validate:
		return "validate"
	case Submit:
		return "submit"
	case Poll:
		return "poll"
	case Complete:
		return "complete"
	case Batch:
		return "batch"
	default:
		return ""
	}
}

func validateUpdate(req models.GenerationRequest) ProgressUpdate {
	return ProgressUpdate{Phase: Validate, Step: 1, Total: 1, Message: fmt.Sprintf("Checking %s request...", req.Mode)}
}

func submitUpdate(req models.GenerationRequest) ProgressUpdate {
	return ProgressUpdate{Phase: Submit, Step: 1, Total: 1, Message: fmt.Sprintf("Submitting %s task to provider...", req.Mode)}
}

func pollUpdate(attempt, total int, taskID string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Poll,
		Step:    attempt,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] Checking task %s...", attempt, total, taskID),
	}
}

func stateUpdate(attempt, total int, status *models.TaskStatus) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Poll,
		Step:    attempt,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] Task %s", attempt, total, status.State),
		Data:    status,
	}
}

func completeUpdate(out models.Outcome) ProgressUpdate {
	msg := fmt.Sprintf("✓ Generated %d image(s)", len(out.ImageURLs))
	if !out.OK() {
		msg = fmt.Sprintf("✗ %s", out.Error())
	}
	return ProgressUpdate{Phase: Complete, Step: 1, Total: 1, Message: msg, Data: out}
}

func batchUpdate(done, total int, res BatchResult) ProgressUpdate {
	mark := "✓"
	if !res.Outcome.OK() {
		mark = "✗"
	}
	return ProgressUpdate{
		Phase:   Batch,
		Step:    done,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] %s %s", done, total, mark, truncate(res.Request.Prompt, 40)),
		Data:    res,
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
