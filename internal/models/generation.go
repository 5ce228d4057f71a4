package models

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/desertthunder/animx/internal/shared"
)

// Mode selects the provider operation for a generation.
type Mode string

const (
	ModeEdit Mode = "image2image" // description-guided edit of a base image
	ModeText Mode = "text2image"  // prompt-only synthesis
)

// MaxOutputNum is the largest image count the provider accepts per task.
const MaxOutputNum = 4

// GenerationRequest is the input to a single generation.
type GenerationRequest struct {
	Mode      Mode
	ImageURL  string // http(s) URL or data:image/...;base64 reference, edit mode only
	Prompt    string
	Function  string // edit function variant, e.g. description_edit
	OutputNum int    // 0 selects the configured default
	Size      string // text mode only, e.g. 1024*1024
}

// Validate checks the request before any network call is made.
//
// The prompt is checked first so that an empty prompt is reported regardless of the image reference.
func (r GenerationRequest) Validate() error {
	if strings.TrimSpace(r.Prompt) == "" {
		return fmt.Errorf("%w: prompt", shared.ErrMissingArgument)
	}

	switch r.Mode {
	case ModeEdit:
		if strings.TrimSpace(r.ImageURL) == "" {
			return fmt.Errorf("%w: imageUrl", shared.ErrMissingArgument)
		}
		if err := ValidateImageRef(r.ImageURL); err != nil {
			return err
		}
	case ModeText:
	default:
		return fmt.Errorf("%w: unknown mode %q", shared.ErrInvalidInput, r.Mode)
	}

	if r.OutputNum < 0 || r.OutputNum > MaxOutputNum {
		return fmt.Errorf("%w: outputNum must be between 1 and %d", shared.ErrInvalidInput, MaxOutputNum)
	}
	return nil
}

// IsDataRef reports whether ref is an embedded data:image reference.
func IsDataRef(ref string) bool {
	return strings.HasPrefix(strings.ToLower(ref), "data:image/")
}

// ValidateImageRef accepts absolute http(s) URLs and base64 data:image references.
func ValidateImageRef(ref string) error {
	if IsDataRef(ref) {
		idx := strings.Index(ref, ";base64,")
		if idx < 0 || idx+len(";base64,") == len(ref) {
			return fmt.Errorf("%w: imageUrl is not a valid base64 data reference", shared.ErrInvalidInput)
		}
		return nil
	}

	u, err := url.Parse(ref)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("%w: imageUrl must be a valid http(s) URL", shared.ErrInvalidInput)
	}
	return nil
}

// TaskState is the provider-reported state of an asynchronous task.
type TaskState string

const (
	StatePending   TaskState = "PENDING"
	StateRunning   TaskState = "RUNNING"
	StateSucceeded TaskState = "SUCCEEDED"
	StateFailed    TaskState = "FAILED"
	StateUnknown   TaskState = "UNKNOWN"
)

// ParseTaskState maps a raw provider status onto the known states.
func ParseTaskState(s string) TaskState {
	switch TaskState(strings.ToUpper(strings.TrimSpace(s))) {
	case StatePending:
		return StatePending
	case StateRunning:
		return StateRunning
	case StateSucceeded:
		return StateSucceeded
	case StateFailed:
		return StateFailed
	default:
		return StateUnknown
	}
}

// IsTerminal returns true if polling must stop at this state.
func (s TaskState) IsTerminal() bool {
	return s != StatePending && s != StateRunning
}

// TaskStatus is one snapshot returned by a status query.
type TaskStatus struct {
	TaskID     string
	State      TaskState
	Raw        string // status string as sent by the provider
	ResultURLs []string
	Code       string
	Message    string
}

// Submission is the normalized result of task creation.
//
// Exactly one of TaskID or ResultURLs is set.
type Submission struct {
	TaskID     string
	ResultURLs []string
}

// Synchronous reports whether the provider answered with results directly.
func (s Submission) Synchronous() bool {
	return len(s.ResultURLs) > 0
}
