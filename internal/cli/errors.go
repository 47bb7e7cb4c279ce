package cli

import (
	"errors"
	"fmt"

	"github.com/AmazingeventParis/SEOproject-sub001/internal/lifecycle"
	"github.com/AmazingeventParis/SEOproject-sub001/internal/router"
	"github.com/AmazingeventParis/SEOproject-sub001/internal/workitem"
)

// Exit codes returned by seopipe.
const (
	// ExitOK indicates success.
	ExitOK = 0

	// ExitFailure indicates an infrastructure or usage error.
	ExitFailure = 1

	// ExitStepFailed indicates a step ran and failed, or a batch had failures.
	ExitStepFailed = 2

	// ExitIllegalTransition indicates the operation is not allowed from the
	// work item's current status.
	ExitIllegalTransition = 3

	// ExitNotFound indicates the work item or block does not exist.
	ExitNotFound = 4
)

// ExitError represents a command execution failure with a specific exit code.
//
// This error type allows Cobra RunE functions to signal non-zero exit codes
// without calling os.Exit() directly, enabling testable CLI behavior.
// When a command fails, it returns NewExitError(code), which propagates up
// to [RunWithConfig] where [IsExitError] extracts the code for [ExecuteResult].
//
// Testability benefit: Tests can assert on exit codes without process termination.
// The [Execute] function handles the actual os.Exit() call based on the code.
type ExitError struct {
	// Code is the exit code to return to the shell. See [ExitOK] and friends.
	Code int
}

// Error implements the error interface, returning a string in the format
// "exit status N" where N is the exit code. This format matches the standard
// os/exec ExitError format for consistency with subprocess exit messages.
func (e *ExitError) Error() string {
	return fmt.Sprintf("exit status %d", e.Code)
}

// NewExitError creates an [ExitError] with the given exit code.
//
// Use this in Cobra RunE functions to signal failure:
//
//	if !res.Success {
//	    return NewExitError(ExitStepFailed)
//	}
func NewExitError(code int) *ExitError {
	return &ExitError{Code: code}
}

// IsExitError checks if an error is an [ExitError] and extracts its exit code.
//
// Returns (code, true) if err is an *ExitError, allowing the caller to handle
// the specific exit code. Returns (0, false) for nil or non-ExitError errors.
//
// Typical usage in [RunWithConfig]:
//
//	if err := cmd.Execute(); err != nil {
//	    if code, ok := IsExitError(err); ok {
//	        return ExecuteResult{ExitCode: code, Err: err}
//	    }
//	    return ExecuteResult{ExitCode: 1, Err: err}  // generic error
//	}
func IsExitError(err error) (int, bool) {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code, true
	}
	return 0, false
}

// exitCode classifies an error returned by the orchestrator.
func exitCode(err error) int {
	var stepErr *lifecycle.StepFailedError
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, workitem.ErrNotFound), errors.Is(err, lifecycle.ErrBlockNotFound):
		return ExitNotFound
	case errors.Is(err, router.ErrIllegalTransition), errors.Is(err, workitem.ErrConflict):
		return ExitIllegalTransition
	case errors.As(err, &stepErr),
		errors.Is(err, lifecycle.ErrSEORulesFailed),
		errors.Is(err, lifecycle.ErrNoBlocks),
		errors.Is(err, lifecycle.ErrNoPendingBlocks),
		errors.Is(err, lifecycle.ErrNotImageBlock):
		return ExitStepFailed
	default:
		return ExitFailure
	}
}
