package cli

import (
	"errors"

	"github.com/fpang/cctv-guardian/internal/analysis"
	"github.com/fpang/cctv-guardian/internal/auth"
)

// Exit codes.
const (
	ExitOK         = 0
	ExitFailure    = 1
	ExitValidation = 2
	ExitAuth       = 3
	ExitTransport  = 4
	ExitDecode     = 5
)

// ExitCode maps an analysis failure to a process exit code.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	if kind, ok := analysis.KindOf(err); ok {
		switch kind {
		case analysis.KindValidation:
			return ExitValidation
		case analysis.KindAuth:
			return ExitAuth
		case analysis.KindTransport:
			return ExitTransport
		case analysis.KindDecode:
			return ExitDecode
		}
	}
	var valErr *auth.ValidationError
	if errors.As(err, &valErr) {
		switch valErr.Type {
		case auth.ErrTypeNoKey, auth.ErrTypeInvalidKey:
			return ExitAuth
		case auth.ErrTypeNetworkError, auth.ErrTypeQuotaExceeded:
			return ExitTransport
		}
	}
	if errors.Is(err, auth.ErrNoAPIKey) {
		return ExitAuth
	}
	return ExitFailure
}

// Hint returns a short remediation line for err, or "".
func Hint(err error) string {
	switch ExitCode(err) {
	case ExitAuth:
		return "Set API_KEY or GEMINI_API_KEY, or configure GUARDIAN_API_KEY_SSM_PARAM."
	case ExitTransport:
		return "Check your internet connection and quota, then retry."
	case ExitValidation:
		return "Pass one or more image files, or use --pick."
	}
	return ""
}
