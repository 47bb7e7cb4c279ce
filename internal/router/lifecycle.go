package router

import (
	"github.com/AmazingeventParis/SEOproject-sub001/internal/status"
)

// LifecycleStep represents a single step in the work item lifecycle sequence.
//
// Each step contains the step to execute and the status the work item moves
// to after it completes successfully. The lifecycle executor uses these steps
// to drive a work item from its current status up to the review gate.
type LifecycleStep struct {
	// Step is the pipeline step to execute.
	Step Step

	// NextStatus is the status expected after this step completes successfully.
	NextStatus status.Status
}
