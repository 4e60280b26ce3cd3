package protocol

import (
	"errors"
	"fmt"
)

// Standard JSON-RPC 2.0 error codes.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
)

// MCP-specific error codes.
const (
	CodeUnauthorized     = -32001
	CodeResourceNotFound = -32002
	CodeRateLimited      = -32003
)

// Error represents a JSON-RPC 2.0 error.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("mcp: %s (code: %d)", e.Message, e.Code)
}

// Is implements errors.Is comparison by error code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// WithData returns a copy of the error with additional data attached.
func (e *Error) WithData(data any) *Error {
	return &Error{
		Code:    e.Code,
		Message: e.Message,
		Data:    data,
	}
}

// NewParseError creates a parse error (-32700).
func NewParseError(msg string) *Error {
	return &Error{Code: CodeParseError, Message: msg}
}

// NewInvalidRequest creates an invalid request error (-32600).
func NewInvalidRequest(msg string) *Error {
	return &Error{Code: CodeInvalidRequest, Message: msg}
}

// NewMethodNotFound creates a method not found error (-32601).
func NewMethodNotFound(msg string) *Error {
	return &Error{Code: CodeMethodNotFound, Message: msg}
}

// NewInvalidParams creates an invalid params error (-32602).
func NewInvalidParams(msg string) *Error {
	return &Error{Code: CodeInvalidParams, Message: msg}
}

// InvalidParamsf formats an invalid params error.
func InvalidParamsf(format string, args ...any) *Error {
	return NewInvalidParams(fmt.Sprintf(format, args...))
}

// NewInternalError creates an internal error (-32603).
func NewInternalError(msg string) *Error {
	return &Error{Code: CodeInternalError, Message: msg}
}

// NewUnauthorized creates an unauthorized error (-32001).
func NewUnauthorized(msg string) *Error {
	return &Error{Code: CodeUnauthorized, Message: msg}
}

// NewResourceNotFound creates a resource not found error (-32002).
func NewResourceNotFound(msg string) *Error {
	return &Error{Code: CodeResourceNotFound, Message: msg}
}

// NewRateLimited creates a rate limited error (-32003).
func NewRateLimited(msg string) *Error {
	return &Error{Code: CodeRateLimited, Message: msg}
}

// WrapHandlerError translates an error returned by a user handler into the
// protocol error taxonomy. Protocol errors pass through untouched; anything
// else becomes an internal error marked with "wrapped_error".
func WrapHandlerError(err error) error {
	if err == nil {
		return nil
	}
	var perr *Error
	if errors.As(err, &perr) {
		return perr
	}
	return &Error{
		Code:    CodeInternalError,
		Message: err.Error(),
		Data: map[string]any{
			"wrapped_error": true,
			"cause":         err.Error(),
		},
	}
}

// IsWrapped reports whether err was produced by WrapHandlerError from a
// non-protocol error.
func IsWrapped(err error) bool {
	var perr *Error
	if !errors.As(err, &perr) {
		return false
	}
	data, ok := perr.Data.(map[string]any)
	if !ok {
		return false
	}
	wrapped, _ := data["wrapped_error"].(bool)
	return wrapped
}

// AsError converts any error into a protocol error suitable for a response.
func AsError(err error) *Error {
	var perr *Error
	if errors.As(err, &perr) {
		return perr
	}
	return NewInternalError(err.Error())
}
