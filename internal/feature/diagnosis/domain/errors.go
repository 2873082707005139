// Package domain defines the error taxonomy of the diagnosis feature.
package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors. Every failure raised by the pipeline wraps exactly one of
// these, so callers can branch with errors.Is.
var (
	// ErrMissingInput indicates the request carried no image.
	ErrMissingInput = errors.New("no image provided")

	// ErrInvalidImage indicates the payload could not be decoded as an image
	// (bad base64, corrupt or unsupported format).
	ErrInvalidImage = errors.New("invalid image")

	// ErrFetch indicates the image URL could not be retrieved.
	ErrFetch = errors.New("failed to fetch image")

	// ErrModelInference is an opaque failure from the inference engine.
	ErrModelInference = errors.New("model inference failed")

	// ErrLabelIndexOutOfRange indicates the winning candidate block has no
	// entry in the configured label table.
	ErrLabelIndexOutOfRange = errors.New("label index out of range")
)

// Machine-readable error codes exposed to clients.
const (
	CodeMissingInput    = "missing_input"
	CodeInvalidImage    = "invalid_image"
	CodeFetchFailed     = "fetch_failed"
	CodeInferenceFailed = "inference_failed"
	CodeLabelOutOfRange = "label_out_of_range"
	CodeInternal        = "internal"
)

// Error tags a cause with one of the sentinel kinds.
type Error struct {
	Kind error  // one of the Err* sentinels
	Op   string // operation that failed, e.g. "fetch" or "decode"
	Err  error  // underlying cause, may be nil
}

// NewError wraps err with the given kind.
func NewError(kind error, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Kind.Error()
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

// Unwrap exposes both the kind and the cause to errors.Is / errors.As.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// Tagged reports whether err already carries a diagnosis error kind.
func Tagged(err error) bool {
	var de *Error
	return errors.As(err, &de)
}

// CodeOf maps err to its wire code. Unknown errors map to CodeInternal.
func CodeOf(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrMissingInput):
		return CodeMissingInput
	case errors.Is(err, ErrInvalidImage):
		return CodeInvalidImage
	case errors.Is(err, ErrFetch):
		return CodeFetchFailed
	case errors.Is(err, ErrModelInference):
		return CodeInferenceFailed
	case errors.Is(err, ErrLabelIndexOutOfRange):
		return CodeLabelOutOfRange
	default:
		return CodeInternal
	}
}
