package execution

import "errors"

// Operational error kinds. Within the harness these are converted into
// terminal record states; they never escape as raised errors except
// ErrAgentNotFound, which is a precondition with no execution identity.
var (
	// ErrAgentNotFound is returned before any record exists: the name
	// is not in the registry, so there is nothing to mark failed.
	ErrAgentNotFound = errors.New("agent not found")

	// ErrPrecheckFailed marks a precondition failure; the execution
	// terminates STOPPED without contacting the collaborator.
	ErrPrecheckFailed = errors.New("precheck failed")

	// ErrScopeViolation marks a disallowed write attempt; the execution
	// terminates FAILED.
	ErrScopeViolation = errors.New("scope violation")

	// ErrValidationFailed marks input or output that does not conform
	// to the declared shape.
	ErrValidationFailed = errors.New("validation failed")
)

// Kind maps an operational error to its stable kind label for records
// and audit entries.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrAgentNotFound):
		return "agent_not_found"
	case errors.Is(err, ErrPrecheckFailed):
		return "precheck_failed"
	case errors.Is(err, ErrScopeViolation):
		return "scope_violation"
	case errors.Is(err, ErrValidationFailed):
		return "validation_failed"
	default:
		return "collaborator_failure"
	}
}
