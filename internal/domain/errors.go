package domain

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a conversion failure. Each lifecycle step tags
// its own failures; the HTTP boundary maps kinds to status codes and
// user-facing messages exactly once.
type ErrorKind string

const (
	KindMissingParameter    ErrorKind = "missing_parameter"
	KindInvalidURL          ErrorKind = "invalid_url"
	KindUnsupportedFileType ErrorKind = "unsupported_file_type"
	KindPayloadTooLarge     ErrorKind = "payload_too_large"
	KindFatalStartup        ErrorKind = "fatal_startup"
	KindNavigationFailed    ErrorKind = "navigation_failed"
	KindNavigationTimeout   ErrorKind = "navigation_timeout"
	KindContentDecode       ErrorKind = "content_decode_error"
	KindRenderTimeout       ErrorKind = "render_timeout"
	KindRenderFailed        ErrorKind = "render_failed"
	KindInternal            ErrorKind = "internal"
)

// Error is a classified conversion error. Message is safe to show to
// callers; Err carries the underlying cause for server-side logs only.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// NewError builds a classified error wrapping cause (which may be nil).
func NewError(kind ErrorKind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Err: cause}
}

// KindOf extracts the classification from err, or KindInternal when the
// error was never classified.
func KindOf(err error) ErrorKind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindInternal
}

// UserMessage returns the caller-safe message for err. Unclassified
// errors get a generic message so internals never leak.
func UserMessage(err error) string {
	var de *Error
	if errors.As(err, &de) && de.Message != "" {
		return de.Message
	}
	return "conversion failed"
}

// IsValidation reports whether err belongs to the pre-session
// validation family (reported with 4xx status, no cleanup needed).
func IsValidation(err error) bool {
	switch KindOf(err) {
	case KindMissingParameter, KindInvalidURL, KindUnsupportedFileType, KindPayloadTooLarge:
		return true
	}
	return false
}
