package formula

import "fmt"

// SecurityViolation is a fatal, fail-closed rejection of a formula whose
// source reaches for a capability-escaping construct. A violating artifact
// is never stored and never executed.
type SecurityViolation struct {
	Construct string `json:"construct"`
	Message   string `json:"message"`
}

func (e *SecurityViolation) Error() string {
	return fmt.Sprintf("security violation: %s", e.Message)
}

// ExecutionError is a runtime failure inside the sandbox: a thrown
// exception, an exceeded time budget, or a non-finite result. It is caught
// per invocation and never propagates as an unhandled fault.
type ExecutionError struct {
	Message  string `json:"message"`
	TimedOut bool   `json:"timedOut,omitempty"`
}

func (e *ExecutionError) Error() string {
	return e.Message
}
