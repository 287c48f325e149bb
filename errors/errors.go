package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

var (
	ErrWorkerPanic         = fmt.Errorf("worker panic")
	ErrEmptyWords          = fmt.Errorf("no words have been found")
	ErrSessionNotFound     = fmt.Errorf("session not found")
	ErrSessionClosed       = fmt.Errorf("session closed")
	ErrParticipantNotFound = fmt.Errorf("participant not found")
	ErrParticipantExists   = fmt.Errorf("participant already joined")
	ErrMalformedMessage    = fmt.Errorf("malformed message")
	ErrUnknownMessageType  = fmt.Errorf("%w: unknown message type", ErrMalformedMessage)
	ErrMalformedOperation  = fmt.Errorf("malformed operation")
	ErrConnectionLost      = fmt.Errorf("connection lost")
	ErrSinkFull            = fmt.Errorf("connection send buffer full")
	ErrInvariantViolation  = fmt.Errorf("session invariant violated")
	ErrSnapshotNotFound    = fmt.Errorf("snapshot not found")
	ErrInvalidRequest      = fmt.Errorf("invalid request")
)

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return stderrors.Is(err, target)
}

// HTTPStatus maps domain errors onto the status code returned by the control plane.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case Is(err, ErrSessionNotFound), Is(err, ErrParticipantNotFound), Is(err, ErrSnapshotNotFound):
		return http.StatusNotFound
	case Is(err, ErrInvalidRequest), Is(err, ErrMalformedMessage), Is(err, ErrMalformedOperation):
		return http.StatusBadRequest
	case Is(err, ErrSessionClosed):
		return http.StatusGone
	default:
		return http.StatusInternalServerError
	}
}
