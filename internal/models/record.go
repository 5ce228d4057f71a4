package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/desertthunder/animx/internal/shared"
)

// maxImageRefLen bounds how much of an image reference is kept in history; data references can be megabytes.
const maxImageRefLen = 256

// GenerationRecord is one stored generation outcome.
type GenerationRecord struct {
	ID         string
	Sequence   int
	Mode       Mode
	Prompt     string
	ImageRef   string
	TaskID     string
	Status     OutcomeKind
	ResultURLs []string
	Error      string
	Attempts   int
	CreatedAt  time.Time
}

// NewGenerationRecord captures req and its outcome.
func NewGenerationRecord(req GenerationRequest, out Outcome) *GenerationRecord {
	return &GenerationRecord{
		ID:         shared.GenerateID(),
		Mode:       req.Mode,
		Prompt:     req.Prompt,
		ImageRef:   TruncateImageRef(req.ImageURL),
		TaskID:     out.TaskID,
		Status:     out.Kind,
		ResultURLs: out.ImageURLs,
		Error:      out.Error(),
		Attempts:   out.Attempts,
		CreatedAt:  Stamp(),
	}
}

// Validate implements [Model].
func (r *GenerationRecord) Validate() error {
	if r.ID == "" {
		return fmt.Errorf("%w: id", shared.ErrMissingArgument)
	}
	if r.Mode != ModeEdit && r.Mode != ModeText {
		return fmt.Errorf("%w: unknown mode %q", shared.ErrInvalidInput, r.Mode)
	}
	if r.Status == OutcomeSuccess && len(r.ResultURLs) == 0 {
		return fmt.Errorf("%w: successful record without results", shared.ErrInvalidInput)
	}
	return nil
}

// TruncateImageRef shortens data references and overlong URLs for storage.
func TruncateImageRef(ref string) string {
	if IsDataRef(ref) {
		if idx := strings.Index(ref, ","); idx >= 0 {
			return ref[:idx+1] + "..."
		}
	}
	if len(ref) > maxImageRefLen {
		return ref[:maxImageRefLen] + "..."
	}
	return ref
}

// ParseOutcomeKind is the inverse of [OutcomeKind.String].
func ParseOutcomeKind(s string) (OutcomeKind, error) {
	switch s {
	case "success":
		return OutcomeSuccess, nil
	case "failure":
		return OutcomeFailure, nil
	case "timeout":
		return OutcomeTimeout, nil
	default:
		return 0, fmt.Errorf("%w: outcome %q", shared.ErrInvalidArgument, s)
	}
}
