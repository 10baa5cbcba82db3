// Package errors provides the structured error type shared by every pri
// component and the helpers the top-level dispatcher uses to pick the final
// message and exit code.
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorType represents different categories of errors.
type ErrorType string

const (
	ErrorTypeValidation ErrorType = "validation"
	ErrorTypePlugin     ErrorType = "plugin"
	ErrorTypeCommand    ErrorType = "command"
	ErrorTypeEnsure     ErrorType = "ensure"
	ErrorTypeIO         ErrorType = "io"
	ErrorTypeExec       ErrorType = "exec"
	ErrorTypeConfig     ErrorType = "config"
	ErrorTypeInternal   ErrorType = "internal"
)

// PriError is a structured error type with context.
type PriError struct {
	Type     ErrorType
	Code     string
	Message  string
	Cause    error
	Context  map[string]interface{}
	Plugin   string
	FilePath string
	// Fatal errors abort the process; everything else is reported and
	// the caller decides whether to continue.
	Fatal bool
}

// Error implements the error interface.
func (e *PriError) Error() string {
	var parts []string

	if e.Code != "" {
		parts = append(parts, fmt.Sprintf("[%s]", e.Code))
	}

	if e.Plugin != "" {
		parts = append(parts, "plugin:"+e.Plugin)
	}

	if e.FilePath != "" {
		parts = append(parts, e.FilePath)
	}

	parts = append(parts, e.Message)

	result := strings.Join(parts, " ")

	if e.Cause != nil {
		result += fmt.Sprintf(": %v", e.Cause)
	}

	return result
}

// Unwrap returns the underlying cause error.
func (e *PriError) Unwrap() error {
	return e.Cause
}

// Is implements error comparison.
func (e *PriError) Is(target error) bool {
	var t *PriError
	if errors.As(target, &t) {
		return e.Type == t.Type && e.Code == t.Code
	}

	return false
}

// WithContext adds context information to the error.
func (e *PriError) WithContext(key string, value interface{}) *PriError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value

	return e
}

// WithPlugin attributes the error to a plugin.
func (e *PriError) WithPlugin(name string) *PriError {
	e.Plugin = name

	return e
}

// WithFile adds file location information.
func (e *PriError) WithFile(filePath string) *PriError {
	e.FilePath = filePath

	return e
}

// NewValidationError creates a validation error.
func NewValidationError(code, message string) *PriError {
	return &PriError{
		Type:    ErrorTypeValidation,
		Code:    code,
		Message: message,
		Fatal:   true,
	}
}

// NewPluginError creates a plugin loading error. Plugin errors always abort
// startup.
func NewPluginError(code, message string, cause error) *PriError {
	return &PriError{
		Type:    ErrorTypePlugin,
		Code:    code,
		Message: message,
		Cause:   cause,
		Fatal:   true,
	}
}

// NewCommandError creates a command registration or execution error.
func NewCommandError(code, message string, cause error) *PriError {
	return &PriError{
		Type:    ErrorTypeCommand,
		Code:    code,
		Message: message,
		Cause:   cause,
		Fatal:   true,
	}
}

// NewEnsureError creates a file-ensure error. These are isolated per path.
func NewEnsureError(code, message string, cause error) *PriError {
	return &PriError{
		Type:    ErrorTypeEnsure,
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// NewExecError creates an external process error.
func NewExecError(code, message string, cause error) *PriError {
	return &PriError{
		Type:    ErrorTypeExec,
		Code:    code,
		Message: message,
		Cause:   cause,
		Fatal:   true,
	}
}

// NewConfigError creates a configuration error.
func NewConfigError(code, message string) *PriError {
	return &PriError{
		Type:    ErrorTypeConfig,
		Code:    code,
		Message: message,
		Fatal:   true,
	}
}

// NewInternalError creates an internal error.
func NewInternalError(code, message string, cause error) *PriError {
	return &PriError{
		Type:    ErrorTypeInternal,
		Code:    code,
		Message: message,
		Cause:   cause,
		Fatal:   true,
	}
}

// IsFatal reports whether err must abort the process. Errors that are not
// PriErrors are treated as fatal.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}

	var pe *PriError
	if errors.As(err, &pe) {
		return pe.Fatal
	}

	return true
}

// Common error codes.
const (
	ErrCodeCommandConflict   = "ERR_COMMAND_CONFLICT"
	ErrCodeUnknownCommand    = "ERR_UNKNOWN_COMMAND"
	ErrCodeInvalidCommand    = "ERR_INVALID_COMMAND"
	ErrCodeCommandFailed     = "ERR_COMMAND_FAILED"
	ErrCodePluginLoad        = "ERR_PLUGIN_LOAD"
	ErrCodePluginManifest    = "ERR_PLUGIN_MANIFEST"
	ErrCodePluginUnsupported = "ERR_PLUGIN_UNSUPPORTED"
	ErrCodeEnsureFailed      = "ERR_ENSURE_FAILED"
	ErrCodeConfigInvalid     = "ERR_CONFIG_INVALID"
	ErrCodeFileNotFound      = "ERR_FILE_NOT_FOUND"
	ErrCodeFileExists        = "ERR_FILE_EXISTS"
	ErrCodeExecFailed        = "ERR_EXEC_FAILED"
	ErrCodeProjectType       = "ERR_PROJECT_TYPE"
	ErrCodeRuntimeVersion    = "ERR_RUNTIME_VERSION"
	ErrCodeInternalError     = "ERR_INTERNAL"
	ErrCodeValidationFailed  = "ERR_VALIDATION_FAILED"
)
