package shared

import "fmt"

var (
	ErrNotImplemented = fmt.Errorf("not implemented")

	// Configuration errors
	ErrMissingConfig      = fmt.Errorf("configuration not found")
	ErrInvalidConfig      = fmt.Errorf("invalid configuration")
	ErrMissingCredentials = fmt.Errorf("missing credentials")

	// Authentication errors
	ErrInvalidCredentials = fmt.Errorf("invalid username or password")
	ErrNotAuthenticated   = fmt.Errorf("not authenticated")
	ErrForbidden          = fmt.Errorf("forbidden")
	ErrUserExists         = fmt.Errorf("username already registered")
	ErrUserNotFound       = fmt.Errorf("user not found")

	// Provider protocol errors
	ErrTaskCreation      = fmt.Errorf("task creation failed")
	ErrMalformedResponse = fmt.Errorf("unexpected provider response")
	ErrResultMissing     = fmt.Errorf("task succeeded but returned no result")
	ErrUnknownStatus     = fmt.Errorf("unrecognized task status")
	ErrProviderFailure   = fmt.Errorf("task failed")
	ErrTransientNetwork  = fmt.Errorf("provider unreachable")
	ErrPollingTimeout    = fmt.Errorf("task did not finish in time, please retry later")
	ErrRequestTimeout    = fmt.Errorf("request timed out")
	ErrRequestCanceled   = fmt.Errorf("request canceled")

	// Service errors
	ErrServiceUnavailable = fmt.Errorf("service unavailable")
	ErrRateLimited        = fmt.Errorf("too many requests")
	ErrRecordNotFound     = fmt.Errorf("record not found")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
)
