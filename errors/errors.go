// Package errors implements streamwatch's HTTP error responses and the
// error-taxonomy helpers used across the job pipeline (see §7 of the spec).
package errors

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/streamwatch/streamwatch/log"
)

type APIError struct {
	Msg    string `json:"message"`
	Status int    `json:"status"`
	Err    error  `json:"-"`
}

func (e APIError) Error() string { return e.Msg }

func writeHTTPError(w http.ResponseWriter, msg string, status int, err error) APIError {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	var errorDetail string
	if err != nil {
		errorDetail = err.Error()
	}

	if err := json.NewEncoder(w).Encode(map[string]string{"error": msg, "error_detail": errorDetail}); err != nil {
		log.LogNoRequestID("error writing HTTP error", "http_error_msg", msg, "error", err)
	}
	return APIError{msg, status, err}
}

// HTTP Errors
func WriteHTTPUnauthorized(w http.ResponseWriter, msg string, err error) APIError {
	return writeHTTPError(w, msg, http.StatusUnauthorized, err)
}

func WriteHTTPBadRequest(w http.ResponseWriter, msg string, err error) APIError {
	return writeHTTPError(w, msg, http.StatusBadRequest, err)
}

func WriteHTTPNotFound(w http.ResponseWriter, msg string, err error) APIError {
	return writeHTTPError(w, msg, http.StatusNotFound, err)
}

func WriteHTTPConflict(w http.ResponseWriter, msg string, err error) APIError {
	return writeHTTPError(w, msg, http.StatusConflict, err)
}

func WriteHTTPTooManyRequests(w http.ResponseWriter, msg string, err error) APIError {
	return writeHTTPError(w, msg, http.StatusTooManyRequests, err)
}

func WriteHTTPInternalServerError(w http.ResponseWriter, msg string, err error) APIError {
	return writeHTTPError(w, msg, http.StatusInternalServerError, err)
}

// UnretriableError wraps an error that should never be retried automatically.
type UnretriableError struct{ error }

func Unretriable(err error) error {
	return UnretriableError{err}
}

func (e UnretriableError) Unwrap() error {
	return e.error
}

// IsUnretriable reports whether the given error is an unretriable error.
func IsUnretriable(err error) bool {
	return errors.As(err, &UnretriableError{})
}

// NotFoundError signals a scrape target page is absent (platforms.NotFoundStatus, §3).
type NotFoundError struct {
	msg   string
	cause error
}

func (e NotFoundError) Error() string { return e.msg }
func (e NotFoundError) Unwrap() error { return e.cause }

func NewNotFoundError(msg string, cause error) error {
	if cause != nil {
		msg = fmt.Sprintf("NotFoundError: %s: %s", msg, cause)
	} else {
		msg = fmt.Sprintf("NotFoundError: %s", msg)
	}
	return NotFoundError{msg: msg, cause: cause}
}

func IsNotFound(err error) bool {
	return errors.As(err, &NotFoundError{})
}

// ResolveError: no media-playlist URL obtained within budget (§4.4, §7).
type ResolveError struct {
	msg   string
	cause error
}

func (e ResolveError) Error() string { return e.msg }
func (e ResolveError) Unwrap() error { return e.cause }

func NewResolveError(msg string, cause error) error {
	return Unretriable(ResolveError{msg: msg, cause: cause})
}

func IsResolveError(err error) bool {
	return errors.As(err, &ResolveError{})
}

// TranscodeError: transcoder exit code != 0 or spawn failure (§7).
type TranscodeError struct {
	msg        string
	StderrTail string
	cause      error
}

func (e TranscodeError) Error() string { return e.msg }
func (e TranscodeError) Unwrap() error { return e.cause }

func NewTranscodeError(msg, stderrTail string, cause error) error {
	return Unretriable(TranscodeError{msg: msg, StderrTail: stderrTail, cause: cause})
}

// ErrInvalidRange: extract_clip() range validation failure (§4.6, programmer/client error).
var ErrInvalidRange = errors.New("InvalidRange")

// ErrInvalidTransition: job broker rejected a state transition (§4.8).
var ErrInvalidTransition = errors.New("InvalidTransition")

// UploadError: non-2xx or success=false from the upload host (§4.7).
type UploadError struct {
	msg    string
	Reason string
}

func (e UploadError) Error() string { return e.msg }

func NewUploadError(reason string) error {
	return UploadError{msg: fmt.Sprintf("upload failed: %s", reason), Reason: reason}
}

// ErrStalled / ErrCancelled: watchdog- and shutdown-induced job failures (§7).
var (
	ErrStalled   = Unretriable(errors.New("stalled"))
	ErrCancelled = Unretriable(errors.New("cancelled"))
)
