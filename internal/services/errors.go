package services

import (
	"fmt"
	"time"
)

// Custom errors. Handlers map these to HTTP responses in one place.

type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string { return "Validation error" }

type ConflictError struct{ Message string }

func (e *ConflictError) Error() string { return e.Message }

type NotFoundError struct{ Message string }

func (e *NotFoundError) Error() string { return e.Message }

type UnauthorizedError struct{ Message string }

func (e *UnauthorizedError) Error() string { return e.Message }

type ForbiddenError struct{ Message string }

func (e *ForbiddenError) Error() string { return e.Message }

type RateLimitError struct{ Message string }

func (e *RateLimitError) Error() string { return e.Message }

// InvalidStateError marks an operation attempted from a state that does not
// allow it, such as ending a break that was never started.
type InvalidStateError struct{ Message string }

func (e *InvalidStateError) Error() string { return e.Message }

// EditWindowExpiredError rejects hourly-log edits after the post-creation
// correction window has passed.
type EditWindowExpiredError struct{ Window time.Duration }

func (e *EditWindowExpiredError) Error() string {
	return fmt.Sprintf("log can no longer be edited: the %d-minute correction window has passed", int(e.Window.Minutes()))
}

// SuspendedError blocks duty actions for a suspended user and carries the
// date the suspension lifts.
type SuspendedError struct{ Until time.Time }

func (e *SuspendedError) Error() string {
	return fmt.Sprintf("account suspended until %s", e.Until.Format("2006-01-02"))
}
