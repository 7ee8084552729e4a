package capture

import (
	"errors"
	"fmt"
)

// ErrLoadTimeout is reported by a Surface whose load signal never fired.
var ErrLoadTimeout = errors.New("page load timed out")

// ErrorKind classifies capture failures.
type ErrorKind string

const (
	KindRender     ErrorKind = "render"
	KindTimeout    ErrorKind = "timeout"
	KindUnexpected ErrorKind = "unexpected"
)

// Reasons carried by Error.
const (
	ReasonLoadTimeout = "load timeout"
	ReasonBanner      = "error banner"
	ReasonConsole     = "console error"
	ReasonActions     = "action replay failed"
)

// Error is the failure of one capture.
type Error struct {
	URL      string
	Sequence string
	Kind     ErrorKind
	Reason   string
	Err      error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("capture %s", e.URL)
	if e.Sequence != "" {
		msg += fmt.Sprintf(" (%s)", e.Sequence)
	}
	msg += fmt.Sprintf(": %s: %s", e.Kind, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// IsRender reports whether err is a render failure, the kind a batch loop
// skips over.
func IsRender(err error) bool {
	var ce *Error
	return errors.As(err, &ce) && ce.Kind == KindRender
}

// IsTimeout reports whether err is a load timeout.
func IsTimeout(err error) bool {
	var ce *Error
	return errors.As(err, &ce) && ce.Kind == KindTimeout
}
