package swapit

import "fmt"

// QueryError reports a failed history or counterpart fetch. Callers keep the
// last-known-good timeline and surface a transient notice; nothing retries
// automatically.
type QueryError struct {
	Op  string
	Err error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *QueryError) Unwrap() error {
	return e.Err
}

// SendError reports a message insert rejected by the backend. The diagnostic
// is shown to the user; the input content is left intact for retry.
type SendError struct {
	Diagnostic string
	Err        error
}

func (e *SendError) Error() string {
	if e.Diagnostic != "" {
		return "send rejected: " + e.Diagnostic
	}
	return fmt.Sprintf("send failed: %v", e.Err)
}

func (e *SendError) Unwrap() error {
	return e.Err
}

// ValidationError is raised locally, before any network call.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

// PartialDeleteError reports a cascade delete that removed the item's messages
// but failed on the item row. The store is in an intermediate state; callers
// must warn explicitly instead of reporting success or clean failure.
type PartialDeleteError struct {
	Diagnostic string
}

func (e *PartialDeleteError) Error() string {
	return "messages deleted but item remains: " + e.Diagnostic
}
