package errors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrInvalidRoomID rejects any room key that is not exactly
	// "{dispatcherId}_{driverId}" with two non-empty segments.
	ErrInvalidRoomID = fmt.Errorf("invalid room id")
	ErrEmptyBody     = fmt.Errorf("empty message body")
	ErrNotFound      = fmt.Errorf("not found")
	// ErrStoreUnavailable wraps transient backend failures. Retryable by the caller.
	ErrStoreUnavailable = fmt.Errorf("store unavailable")
	// ErrSubscriptionLost is reported when a live channel drops and the
	// consumer must resubscribe. The pull path stays available.
	ErrSubscriptionLost = fmt.Errorf("subscription lost")
	ErrWorkerPanic      = fmt.Errorf("worker panic")
)

// Is reports whether any error in err's chain matches target.
// Re-exported so callers don't juggle two errors imports.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// MapToHTTPStatus translates domain sentinels at the transport boundary.
// Unknown errors are treated as internal so nothing leaks to the client.
func MapToHTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrInvalidRoomID), errors.Is(err, ErrEmptyBody):
		return http.StatusBadRequest
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrStoreUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
