package supervisor

import (
	"fmt"
	"strings"
)

// ExecutableNotFoundError is returned when the agent command cannot be
// resolved to an absolute path.
type ExecutableNotFoundError struct {
	Name        string
	Attempted   []string
	Remediation string
}

func (e *ExecutableNotFoundError) Error() string {
	msg := fmt.Sprintf("could not find %q (tried login shell lookup and %s)", e.Name, strings.Join(e.Attempted, ", "))
	if e.Remediation != "" {
		msg += "; install it with: " + e.Remediation
	}
	return msg
}

// RecorderUnavailableError reports that a capture strategy could not start.
// The supervisor logs it and moves on to the next strategy.
type RecorderUnavailableError struct {
	Strategy string
	Cause    error
}

func (e *RecorderUnavailableError) Error() string {
	return fmt.Sprintf("%s recorder unavailable: %v", e.Strategy, e.Cause)
}

func (e *RecorderUnavailableError) Unwrap() error { return e.Cause }

// StartError is returned when no strategy could start the agent.
type StartError struct {
	Path        string
	Remediation string
	Err         error
}

func (e *StartError) Error() string {
	msg := fmt.Sprintf("failed to start %s: %v", e.Path, e.Err)
	if e.Remediation != "" {
		msg += "; try: " + e.Remediation
	}
	return msg
}

func (e *StartError) Unwrap() error { return e.Err }
