package recommend

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies engine failures so callers can map them to distinct responses.
type Kind string

const (
	KindEngineNotReady      Kind = "ENGINE_NOT_READY"
	KindSongNotFound        Kind = "SONG_NOT_FOUND"
	KindUserNotFound        Kind = "USER_NOT_FOUND"
	KindEmptyDataset        Kind = "EMPTY_DATASET"
	KindInvalidParameter    Kind = "INVALID_PARAMETER"
	KindUpstreamUnavailable Kind = "UPSTREAM_UNAVAILABLE"
	KindStopped             Kind = "ENGINE_STOPPED"
)

// HTTPStatus returns the status code the HTTP layer should answer with.
func (k Kind) HTTPStatus() int {
	switch k {
	case KindSongNotFound, KindUserNotFound:
		return http.StatusNotFound
	case KindInvalidParameter:
		return http.StatusBadRequest
	case KindEngineNotReady, KindEmptyDataset, KindUpstreamUnavailable, KindStopped:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Error is an engine error with a kind, a message and an optional cause.
type Error struct {
	Kind    Kind
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.cause }

// Is matches any *Error of the same kind.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Kind == t.Kind
	}
	return false
}

// Sentinel errors, compare with errors.Is.
var (
	ErrEngineNotReady      = &Error{Kind: KindEngineNotReady, Message: "recommendation engine not ready"}
	ErrSongNotFound        = &Error{Kind: KindSongNotFound, Message: "song not found"}
	ErrUserNotFound        = &Error{Kind: KindUserNotFound, Message: "user not found"}
	ErrEmptyDataset        = &Error{Kind: KindEmptyDataset, Message: "no qualifying data"}
	ErrInvalidParameter    = &Error{Kind: KindInvalidParameter, Message: "invalid parameter"}
	ErrUpstreamUnavailable = &Error{Kind: KindUpstreamUnavailable, Message: "storage unavailable"}
	ErrStopped             = &Error{Kind: KindStopped, Message: "recommendation engine stopped"}
)

func songNotFound(songID int64) error {
	return &Error{Kind: KindSongNotFound, Message: fmt.Sprintf("song %d not found", songID)}
}

func invalidParam(format string, args ...any) error {
	return &Error{Kind: KindInvalidParameter, Message: fmt.Sprintf(format, args...)}
}

func upstream(err error) error {
	return &Error{Kind: KindUpstreamUnavailable, Message: "storage unavailable", cause: err}
}

func emptyDataset(what string) error {
	return &Error{Kind: KindEmptyDataset, Message: "no qualifying " + what}
}

// KindOf extracts the engine error kind. Deadline and cancellation are
// reported with an empty kind and ok=false, as is any foreign error.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}

// HTTPStatus maps any error returned by the engine to a status code.
func HTTPStatus(err error) int {
	if kind, ok := KindOf(err); ok {
		return kind.HTTPStatus()
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return http.StatusGatewayTimeout
	}
	if errors.Is(err, context.Canceled) {
		return http.StatusRequestTimeout
	}
	return http.StatusInternalServerError
}
