package models

import (
	"fmt"

	"github.com/desertthunder/animx/internal/shared"
)

// OutcomeKind tags the variant held by an [Outcome].
type OutcomeKind int

const (
	OutcomeSuccess OutcomeKind = iota
	OutcomeFailure
	OutcomeTimeout
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeSuccess:
		return "success"
	case OutcomeFailure:
		return "failure"
	case OutcomeTimeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// Outcome is the single final result of a generation.
//
// Success carries ImageURLs, failure and timeout carry Err. Use the constructors so a value is never partially populated.
type Outcome struct {
	Kind      OutcomeKind
	ImageURLs []string
	Err       error
	TaskID    string
	Attempts  int // status queries issued, zero on the synchronous path
}

// Succeeded builds a success outcome.
func Succeeded(urls []string, taskID string, attempts int) Outcome {
	return Outcome{Kind: OutcomeSuccess, ImageURLs: urls, TaskID: taskID, Attempts: attempts}
}

// Failed builds a failure outcome around err.
func Failed(err error, taskID string, attempts int) Outcome {
	return Outcome{Kind: OutcomeFailure, Err: err, TaskID: taskID, Attempts: attempts}
}

// TimedOut builds the outcome for an exhausted attempt budget.
func TimedOut(taskID string, attempts int) Outcome {
	return Outcome{
		Kind:     OutcomeTimeout,
		Err:      fmt.Errorf("%w (%d status checks)", shared.ErrPollingTimeout, attempts),
		TaskID:   taskID,
		Attempts: attempts,
	}
}

// OK reports whether the outcome is a success.
func (o Outcome) OK() bool {
	return o.Kind == OutcomeSuccess
}

// ImageURL returns the first result URL or an empty string.
func (o Outcome) ImageURL() string {
	if len(o.ImageURLs) == 0 {
		return ""
	}
	return o.ImageURLs[0]
}

// Error returns the failure message, empty on success.
func (o Outcome) Error() string {
	if o.Err == nil {
		return ""
	}
	return o.Err.Error()
}
