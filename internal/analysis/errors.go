package analysis

import (
	"errors"
	"fmt"

	"github.com/fpang/cctv-guardian/internal/auth"
)

// ErrorKind classifies analysis failures.
type ErrorKind int

const (
	// KindValidation means the request was rejected before any external call.
	KindValidation ErrorKind = iota
	// KindTransport covers network failures, timeouts, rate limits and
	// server-side errors from the model API.
	KindTransport
	// KindAuth means the API key is missing or was rejected.
	KindAuth
	// KindDecode means the reply did not match the response schema.
	KindDecode
)

// String returns a human-readable name for the kind.
func (k ErrorKind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindTransport:
		return "transport"
	case KindAuth:
		return "auth"
	case KindDecode:
		return "decode"
	default:
		return "unknown"
	}
}

// Messages shown to users, one per kind.
const (
	MsgNoImages  = "Please upload at least one screenshot."
	MsgAuth      = "Authentication failed: the Gemini API key is missing or invalid. Check API_KEY and try again."
	MsgTransport = "Could not reach the analysis service. Check your connection and try again."
	MsgQuota     = "The analysis service is rate limited right now. Please wait a moment and try again."
	MsgDecode    = "The analysis service returned an unreadable response. Please try again."
)

// Error is returned by every failing Analyze call.
type Error struct {
	Kind ErrorKind
	// Message is safe to show to users.
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s error: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s error: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// UserMessage returns the message to display for this error.
func (e *Error) UserMessage() string {
	return e.Message
}

// NewValidationError reports input rejected before any external call.
func NewValidationError(msg string) *Error {
	return &Error{Kind: KindValidation, Message: msg}
}

func decodeError(err error) *Error {
	return &Error{Kind: KindDecode, Message: MsgDecode, Err: err}
}

// classifyCallError maps a model API failure onto the taxonomy.
func classifyCallError(err error) *Error {
	valErr := auth.ClassifyError(err)
	switch valErr.Type {
	case auth.ErrTypeNoKey, auth.ErrTypeInvalidKey:
		return &Error{Kind: KindAuth, Message: MsgAuth, Err: err}
	case auth.ErrTypeQuotaExceeded:
		return &Error{Kind: KindTransport, Message: MsgQuota, Err: err}
	default:
		return &Error{Kind: KindTransport, Message: MsgTransport, Err: err}
	}
}

// KindOf returns the kind of an analysis error and whether err is one.
func KindOf(err error) (ErrorKind, bool) {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind, true
	}
	return 0, false
}

// UserMessage returns a displayable message for any error.
func UserMessage(err error) string {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.UserMessage()
	}
	return "Analysis failed. Please try again."
}
