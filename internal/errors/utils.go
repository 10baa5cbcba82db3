package errors

import (
	"errors"

	"go.uber.org/multierr"
)

// ExitError carries an explicit process exit code.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	if e.Err == nil {
		return "exit"
	}
	return e.Err.Error()
}

func (e *ExitError) Unwrap() error { return e.Err }

// Wrap wraps an error with additional context, creating a PriError if the input is not already one
func Wrap(err error, errType ErrorType, code, message string) *PriError {
	if err == nil {
		return nil
	}

	// If it's already a PriError, preserve its properties but update the message
	var pe *PriError
	if errors.As(err, &pe) {
		return &PriError{
			Type:     errType,
			Code:     code,
			Message:  message,
			Cause:    pe,
			Context:  pe.Context,
			Plugin:   pe.Plugin,
			FilePath: pe.FilePath,
			Fatal:    pe.Fatal,
		}
	}

	return &PriError{
		Type:    errType,
		Code:    code,
		Message: message,
		Cause:   err,
		Fatal:   errType != ErrorTypeEnsure,
	}
}

// WrapIO wraps an error as an I/O error
func WrapIO(err error, code, message string) *PriError {
	return Wrap(err, ErrorTypeIO, code, message)
}

// WrapConfig wraps an error as a configuration error
func WrapConfig(err error, code, message string) *PriError {
	return Wrap(err, ErrorTypeConfig, code, message)
}

// WrapExec wraps an external process error
func WrapExec(err error, code, message string) *PriError {
	return Wrap(err, ErrorTypeExec, code, message)
}

// ExitCode maps an error returned to the top-level dispatcher to a process
// exit code.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}

	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}

	return 1
}

// FormatError formats an error for user display
func FormatError(err error) string {
	if err == nil {
		return ""
	}

	var exitErr *ExitError
	if errors.As(err, &exitErr) && exitErr.Err != nil {
		err = exitErr.Err
	}

	return err.Error()
}

// CombineErrors combines multiple errors into a single error. Nil entries are
// dropped; a single error is returned as-is.
func CombineErrors(errs ...error) error {
	return multierr.Combine(errs...)
}

// Errors returns the individual errors combined into err.
func Errors(err error) []error {
	return multierr.Errors(err)
}
