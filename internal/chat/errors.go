package chat

import (
	"context"
	"errors"

	"github.com/yanmxa/finsight/internal/provider"
	"github.com/yanmxa/finsight/internal/resolver"
)

// Code is the machine-readable discriminator of a failed request.
type Code string

const (
	CodeInvalidRequest    Code = "invalid_request"
	CodeAuthRequired      Code = "auth_required"
	CodeNoProvider        Code = "no_provider"
	CodeModelIncompatible Code = "model_incompatible"
	CodeUnparseable       Code = "unparseable_output"
	CodeTimeout           Code = "timeout"
	CodeInternal          Code = "internal"
)

// Error is a request failure with its code.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func invalid(msg string) *Error {
	return &Error{Code: CodeInvalidRequest, Message: msg}
}

// CodeOf classifies err.
func CodeOf(err error) Code {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Code
	}
	var compat *provider.CompatibilityError
	switch {
	case errors.As(err, &compat):
		return CodeModelIncompatible
	case errors.Is(err, resolver.ErrNoProvider):
		return CodeNoProvider
	case errors.Is(err, context.DeadlineExceeded):
		return CodeTimeout
	default:
		return CodeInternal
	}
}

// Describe returns a user-facing message for err.
func Describe(err error) string {
	var compat *provider.CompatibilityError
	switch CodeOf(err) {
	case CodeModelIncompatible:
		if errors.As(err, &compat) {
			return "The selected model (" + compat.Model + ") does not support " + string(compat.Feature) +
				". Choose a model with " + string(compat.Feature) + " support."
		}
		return "The selected model cannot serve this request."
	case CodeNoProvider:
		return "No model provider is available. Start a local model server or configure a hosted API key."
	case CodeTimeout:
		return "The request took too long and was stopped."
	case CodeInternal:
		return "Something went wrong while generating the answer."
	default:
		var ce *Error
		if errors.As(err, &ce) {
			return ce.Message
		}
		return err.Error()
	}
}
