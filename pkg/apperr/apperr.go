// Package apperr defines the error taxonomy shared by the voice packages.
//
// Every failure that reaches a user boundary is classified as one of a
// small set of kinds. The kind decides which fallback (if any) applies and
// the message shown to the user.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies a failure.
type Kind int

const (
	// KindUnknown is any error not produced by this package.
	KindUnknown Kind = iota
	// KindPrecondition means a required piece of state is missing,
	// e.g. no document has been uploaded yet.
	KindPrecondition
	// KindPermission means access to a device was denied.
	KindPermission
	// KindUnavailable means a capability or backend dependency is missing.
	KindUnavailable
	// KindNetwork means a request failed or returned a non-success status.
	KindNetwork
	// KindDecode means audio could not be parsed or played.
	KindDecode
	// KindNoInput means the capture mechanism heard nothing before timing out.
	KindNoInput
)

func (k Kind) String() string {
	switch k {
	case KindPrecondition:
		return "precondition"
	case KindPermission:
		return "permission"
	case KindUnavailable:
		return "unavailable"
	case KindNetwork:
		return "network"
	case KindDecode:
		return "decode"
	case KindNoInput:
		return "no_input"
	default:
		return "unknown"
	}
}

// Error is a classified error. Message is safe to show to a user; Err
// carries the underlying cause for logs.
type Error struct {
	Kind    Kind
	Op      string
	Message string
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	switch {
	case e.Op != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	case e.Op != "":
		return fmt.Sprintf("%s: %s: %s", e.Op, e.Kind, e.Message)
	default:
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error by kind and message, so sentinels declared
// with New can be compared through wrapping.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Message == e.Message && t.Op == "" && t.Err == nil
}

// New returns a classified error with a user-facing message.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap classifies err. A nil err yields nil.
func Wrap(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// WrapMessage classifies err and attaches a user-facing message.
func WrapMessage(kind Kind, op, message string, err error) error {
	return &Error{Kind: kind, Op: op, Message: message, Err: err}
}

// KindOf returns the kind of the outermost classified error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// IsKind reports whether err is classified as kind.
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// Message returns the text to show a user for err. It prefers the first
// explicit message in the chain, then a per-kind default, then err itself.
func Message(err error) string {
	if err == nil {
		return ""
	}
	for e := err; e != nil; e = errors.Unwrap(e) {
		if ae, ok := e.(*Error); ok && ae.Message != "" {
			return ae.Message
		}
		if m, ok := e.(interface{ UserMessage() string }); ok {
			if s := m.UserMessage(); s != "" {
				return s
			}
		}
	}
	if msg := defaultMessages[KindOf(err)]; msg != "" {
		return msg
	}
	return err.Error()
}

var defaultMessages = map[Kind]string{
	KindPrecondition: "Please upload a PDF first!",
	KindPermission:   "Microphone access denied. Please allow microphone access.",
	KindUnavailable:  "This feature is not available right now.",
	KindNetwork:      "Could not reach the server. Please try again.",
	KindDecode:       "Could not play audio.",
	KindNoInput:      "No speech detected. Please try again.",
}

// Common sentinel errors.
var (
	// ErrNoDocument is returned when an operation needs an uploaded document.
	ErrNoDocument = New(KindPrecondition, "Please upload a PDF first!")

	// ErrNoMicrophone is returned when no capture device exists.
	ErrNoMicrophone = New(KindUnavailable, "No microphone found. Please connect a microphone.")

	// ErrMicrophoneDenied is returned when the capture device refuses access.
	ErrMicrophoneDenied = New(KindPermission, "Microphone access denied. Please allow microphone access.")

	// ErrNoSpeech is returned when recognition ends without a transcript.
	ErrNoSpeech = New(KindNoInput, "No speech detected. Please try again.")
)
