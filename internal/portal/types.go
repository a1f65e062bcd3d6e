package portal

import (
	"context"
	"errors"
	"fmt"
)

const (
	CodeValidation         = "VALIDATION"
	CodeElementNotFound    = "ELEMENT_NOT_FOUND"
	CodeTimeout            = "TIMEOUT"
	CodeFileAccess         = "FILE_ACCESS"
	CodeFileNotFound       = "FILE_NOT_FOUND"
	CodeDownloadIncomplete = "DOWNLOAD_INCOMPLETE"
	CodeBrowserUnavailable = "BROWSER_UNAVAILABLE"
)

// CodedError is a typed error used for per-vehicle classification and API mapping.
type CodedError struct {
	Code    string
	Message string
	Cause   error
}

func (e *CodedError) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
}

func (e *CodedError) Unwrap() error { return e.Cause }

// NewError builds a CodedError.
func NewError(code, msg string, cause error) error {
	return &CodedError{Code: code, Message: msg, Cause: cause}
}

// CodeOf returns the code of the first CodedError in err's chain, or "".
func CodeOf(err error) string {
	var coded *CodedError
	if errors.As(err, &coded) {
		return coded.Code
	}
	return ""
}

// waitErr classifies the result of a bounded wait. An expired deadline is a
// timeout and cancellation passes through untouched.
func waitErr(err error, what string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return NewError(CodeTimeout, what+" did not become visible in time", err)
	}
	return NewError(CodeBrowserUnavailable, what, err)
}

// Credentials identify one portal account.
type Credentials struct {
	Account  string
	Username string
	Password string
}

// Resolution pairs a vehicle's display name with the portal's internal
// option value for it. The internal ID is only valid for the current page.
type Resolution struct {
	DisplayName string `json:"display_name"`
	InternalID  string `json:"internal_id"`
}
