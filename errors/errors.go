package errors

import (
	"errors"
	"fmt"
)

// Validation and queue errors belong to the auth and transport classes.
var (
	ErrWorkerPanic        = fmt.Errorf("worker panic")
	ErrAuth               = fmt.Errorf("authentication rejected")
	ErrInvalidCredentials = fmt.Errorf("%w: invalid credentials", ErrAuth)
	ErrFetch              = fmt.Errorf("fetch failed")
	ErrTransport          = fmt.Errorf("transport unavailable")
	ErrOutboundQueueFull  = fmt.Errorf("%w: outbound queue is full", ErrTransport)
	ErrInvalidSession     = fmt.Errorf("invalid session")
	ErrInvalidPayload     = fmt.Errorf("invalid payload")
	ErrNoSelection        = fmt.Errorf("no counterpart selected")
)

// Is lets callers match sentinels without importing the standard package too.
func Is(err, target error) bool {
	return errors.Is(err, target)
}
