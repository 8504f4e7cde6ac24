package models

import (
	"errors"
	"fmt"
)

// Error codes used in run reports, API responses and internal error handling.
const (
	ErrCodeTimeout         = "WALK_TIMEOUT"
	ErrCodeCanceled        = "WALK_CANCELED"
	ErrCodeNavigation      = "NAVIGATION_FAILED"
	ErrCodeBrowserCrash    = "BROWSER_CRASH"
	ErrCodeElementNotFound = "ELEMENT_NOT_FOUND"
	ErrCodeScript          = "SCRIPT_FAILED"
	ErrCodeScreenshot      = "SCREENSHOT_FAILED"
	ErrCodeUnsupported     = "UNSUPPORTED"
	ErrCodeLoopExhausted   = "LOOP_EXHAUSTED"
	ErrCodeInvalidInput    = "INVALID_INPUT"
	ErrCodeRateLimited     = "RATE_LIMITED"
	ErrCodeUnauthorized    = "UNAUTHORIZED"
	ErrCodeNotFound        = "NOT_FOUND"
	ErrCodeInternal        = "INTERNAL_ERROR"
)

// ErrorDetail is the structured error in reports and API responses.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// WalkError is the internal error type carrying an error code.
// It implements the error interface and supports error wrapping via Unwrap.
type WalkError struct {
	Code    string
	Message string
	Err     error // wrapped original error
}

func (e *WalkError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *WalkError) Unwrap() error {
	return e.Err
}

// NewWalkError creates a new WalkError.
func NewWalkError(code, message string, err error) *WalkError {
	return &WalkError{Code: code, Message: message, Err: err}
}

// ToDetail converts an internal error to an API-facing ErrorDetail.
func (e *WalkError) ToDetail() *ErrorDetail {
	return &ErrorDetail{Code: e.Code, Message: e.Message}
}

// CodeOf returns the code of the first WalkError in err's chain,
// or ErrCodeInternal when there is none.
func CodeOf(err error) string {
	var we *WalkError
	if errors.As(err, &we) {
		return we.Code
	}
	return ErrCodeInternal
}

// DetailOf converts any error into an ErrorDetail.
func DetailOf(err error) *ErrorDetail {
	if err == nil {
		return nil
	}
	var we *WalkError
	if errors.As(err, &we) {
		return we.ToDetail()
	}
	return &ErrorDetail{Code: ErrCodeInternal, Message: err.Error()}
}
