// internal/domain/errors.go
package domain

import (
	"context"
	"errors"
)

var (
	// ErrDecode is returned when a message payload is not valid UTF-8.
	ErrDecode = errors.New("message payload is not valid UTF-8")
	// ErrQueueService wraps failures of the receive call. Nothing was dequeued.
	ErrQueueService = errors.New("queue service error")
	// ErrProvisioning wraps failures of the create-or-update call. The
	// message has already been consumed and is lost.
	ErrProvisioning = errors.New("provisioning error")
)

// ErrorKind classifies an error coming out of a dispatch cycle.
type ErrorKind string

const (
	ErrorKindNone         ErrorKind = ""
	ErrorKindDecode       ErrorKind = "decode"
	ErrorKindQueue        ErrorKind = "queue"
	ErrorKindProvisioning ErrorKind = "provisioning"
	ErrorKindInterrupt    ErrorKind = "interrupt"
	ErrorKindUnexpected   ErrorKind = "unexpected"
)

// KindOf classifies err. Cancellation is only an interrupt when it is not
// wrapped by a queue or provisioning failure; callers that need to tell a
// cancelled loop apart from a cancelled request should also check their own
// context.
func KindOf(err error) ErrorKind {
	switch {
	case err == nil:
		return ErrorKindNone
	case errors.Is(err, ErrDecode):
		return ErrorKindDecode
	case errors.Is(err, ErrQueueService):
		return ErrorKindQueue
	case errors.Is(err, ErrProvisioning):
		return ErrorKindProvisioning
	case errors.Is(err, context.Canceled):
		return ErrorKindInterrupt
	default:
		return ErrorKindUnexpected
	}
}
