package common

import "fmt"

// ErrorCode is the stable discriminant for module failures. Codes double as
// the on-wire error taxonomy: callers match on the code, never on the display
// text, so codes must not change even when wording does.
type ErrorCode string

const (
	CodeUnauthorized        ErrorCode = "Unauthorized"
	CodeInvalidOriginator   ErrorCode = "InvalidOriginator"
	CodeInvalidInputToken   ErrorCode = "InvalidInputToken"
	CodeInvalidOutputToken  ErrorCode = "InvalidOutputToken"
	CodeInvalidToken        ErrorCode = "InvalidToken"
	CodeInvalidInputAmount  ErrorCode = "InvalidInputAmount"
	CodeInsufficientOutput  ErrorCode = "InsufficientOutput"
	CodeOracleNotReady      ErrorCode = "OracleNotReady"
	CodeMustNotBeBorrowable ErrorCode = "MustNotBeBorrowable"
	CodeNotImplemented      ErrorCode = "NotImplemented"
	CodeReentrantCall       ErrorCode = "ReentrantCall"
	CodeInvalidOrderData    ErrorCode = "InvalidOrderData"
	CodeModulePaused        ErrorCode = "ModulePaused"

	CodeInvalidRouterAddress     ErrorCode = "InvalidRouterAddress"
	CodeInvalidMarketAddress     ErrorCode = "InvalidMarketAddress"
	CodeInvalidOracleAddress     ErrorCode = "InvalidOracleAddress"
	CodeInvalidUnderlyingAddress ErrorCode = "InvalidUnderlyingTokenAddress"
)

// Error carries a stable code plus the human readable detail rendered in the
// contract-prefixed style used across the protocol surface.
type Error struct {
	Contract string
	Code     ErrorCode
	Detail   string
}

func (e *Error) Error() string {
	switch {
	case e == nil:
		return ""
	case e.Contract == "" && e.Detail == "":
		return string(e.Code)
	case e.Detail == "":
		return e.Contract + ": " + string(e.Code)
	case e.Contract == "":
		return string(e.Code) + ": " + e.Detail
	}
	return e.Contract + ": " + e.Detail
}

// Is matches on the error code so errors.Is(err, ErrUnauthorized) works
// regardless of which contract produced the failure.
func (e *Error) Is(target error) bool {
	other, ok := target.(*Error)
	if !ok || e == nil || other == nil {
		return false
	}
	if other.Contract != "" && other.Contract != e.Contract {
		return false
	}
	return other.Code == e.Code
}

// NewError builds a module error with a formatted detail string.
func NewError(contract string, code ErrorCode, format string, args ...interface{}) *Error {
	detail := format
	if len(args) > 0 {
		detail = fmt.Sprintf(format, args...)
	}
	return &Error{Contract: contract, Code: code, Detail: detail}
}

// Bare sentinels for errors.Is matching.
var (
	ErrUnauthorized        = &Error{Code: CodeUnauthorized}
	ErrInvalidOriginator   = &Error{Code: CodeInvalidOriginator}
	ErrInvalidInputToken   = &Error{Code: CodeInvalidInputToken}
	ErrInvalidOutputToken  = &Error{Code: CodeInvalidOutputToken}
	ErrInvalidToken        = &Error{Code: CodeInvalidToken}
	ErrInvalidInputAmount  = &Error{Code: CodeInvalidInputAmount}
	ErrInsufficientOutput  = &Error{Code: CodeInsufficientOutput}
	ErrOracleNotReady      = &Error{Code: CodeOracleNotReady}
	ErrMustNotBeBorrowable = &Error{Code: CodeMustNotBeBorrowable}
	ErrNotImplemented      = &Error{Code: CodeNotImplemented}
	ErrReentrantCall       = &Error{Code: CodeReentrantCall}
	ErrInvalidOrderData    = &Error{Code: CodeInvalidOrderData}
)
