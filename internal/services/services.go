package services

import (
	"context"
	"fmt"

	"github.com/desertthunder/animx/internal/models"
)

// TaskClient is the provider surface used by the generation engine.
type TaskClient interface {
	// CreateTask submits req and returns either a task id or synchronous results.
	CreateTask(ctx context.Context, req models.GenerationRequest) (*models.Submission, error)

	// GetTask issues one read-only status query.
	GetTask(ctx context.Context, taskID string) (*models.TaskStatus, error)

	// Configured reports whether a credential is available.
	Configured() bool
}

// APIError carries the provider's rejection of a request.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = "unknown error"
	}
	if e.Code != "" {
		return fmt.Sprintf("%s (%s, HTTP %d)", msg, e.Code, e.StatusCode)
	}
	return fmt.Sprintf("%s (HTTP %d)", msg, e.StatusCode)
}
