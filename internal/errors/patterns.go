package errors

import (
	"fmt"
	"strings"
)

// Sentinels for errors.Is checks across package boundaries.
var (
	ErrCommandConflict = &PriError{Type: ErrorTypeCommand, Code: ErrCodeCommandConflict}
	ErrUnknownCommand  = &PriError{Type: ErrorTypeCommand, Code: ErrCodeUnknownCommand}
	ErrPluginLoad      = &PriError{Type: ErrorTypePlugin, Code: ErrCodePluginLoad}
	ErrEnsureFailed    = &PriError{Type: ErrorTypeEnsure, Code: ErrCodeEnsureFailed}
	ErrExecFailed      = &PriError{Type: ErrorTypeExec, Code: ErrCodeExecFailed}
)

// CommandConflict reports a second primary registration at an existing path.
func CommandConflict(path []string, owner string) *PriError {
	return NewCommandError(
		ErrCodeCommandConflict,
		fmt.Sprintf("command %q is already registered", strings.Join(path, " ")),
		nil,
	).WithContext("path", path).WithPlugin(owner)
}

// UnknownCommand reports an expansion of a path nobody registered.
func UnknownCommand(path []string) *PriError {
	return NewCommandError(
		ErrCodeUnknownCommand,
		fmt.Sprintf("unknown command %q", strings.Join(path, " ")),
		nil,
	).WithContext("path", path)
}

// CommandFailed wraps a hook or action failure.
func CommandFailed(path []string, phase string, cause error) *PriError {
	return Wrap(cause, ErrorTypeCommand, ErrCodeCommandFailed,
		fmt.Sprintf("%s of %q failed", phase, strings.Join(path, " "))).
		WithContext("phase", phase)
}

// PluginLoad attributes a load failure to the plugin that caused it.
func PluginLoad(name, path string, cause error) *PriError {
	return NewPluginError(ErrCodePluginLoad, "failed to load plugin", cause).
		WithPlugin(name).
		WithFile(path)
}

// EnsureFailed reports a failed transform for one ensured file.
func EnsureFailed(path string, cause error) *PriError {
	return NewEnsureError(ErrCodeEnsureFailed, "failed to ensure file", cause).
		WithFile(path)
}

// FileOperationError creates file operation errors
func FileOperationError(operation, filePath string, cause error) *PriError {
	return WrapIO(cause, "ERR_FILE_"+strings.ToUpper(operation),
		fmt.Sprintf("%s failed", operation)).
		WithFile(filePath)
}

// ConfigurationError creates configuration-related errors
func ConfigurationError(setting, message string, value interface{}) *PriError {
	return NewConfigError(
		ErrCodeConfigInvalid,
		fmt.Sprintf("invalid configuration for %s: %s", setting, message),
	).WithContext("setting", setting).WithContext("value", value)
}

// UnsupportedProjectType rejects a command for the current project type.
func UnsupportedProjectType(command, projectType, hint string) *PriError {
	msg := fmt.Sprintf("%s is not supported for project type %q", command, projectType)
	if hint != "" {
		msg += ", " + hint
	}
	return NewValidationError(ErrCodeProjectType, msg)
}
