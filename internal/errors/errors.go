package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode represents stable error codes for all failure modes
type ErrorCode string

const (
	// NotARepository indicates the workspace root is not inside a git work tree
	NotARepository ErrorCode = "NOT_A_REPOSITORY"
	// ExecutionError indicates an external query terminated with a failure status
	ExecutionError ErrorCode = "EXECUTION_ERROR"
	// ValidationError indicates malformed data returned by an external query
	ValidationError ErrorCode = "VALIDATION_ERROR"
	// MissingEntry indicates a list entry that must be present was empty or absent
	MissingEntry ErrorCode = "MISSING_ENTRY"
	// ConfigInvalid indicates a configuration value failed validation
	ConfigInvalid ErrorCode = "CONFIG_INVALID"
	// InternalError indicates unexpected error
	InternalError ErrorCode = "INTERNAL_ERROR"
)

// FixActionType represents the type of fix action
type FixActionType string

const (
	// RunCommand suggests running a command
	RunCommand FixActionType = "run-command"
	// EditConfig suggests changing a configuration value
	EditConfig FixActionType = "edit-config"
)

// FixAction represents a suggested fix for an error
type FixAction struct {
	Type        FixActionType `json:"type"`
	Command     string        `json:"command,omitempty"`
	Safe        bool          `json:"safe,omitempty"`
	Description string        `json:"description,omitempty"`
}

// RelError is the error type returned by every relfiles component.
// Details carry the failing path, identifier or command arguments.
type RelError struct {
	Code           ErrorCode   `json:"code"`
	Message        string      `json:"message"`
	Details        interface{} `json:"details,omitempty"`
	SuggestedFixes []FixAction `json:"suggestedFixes,omitempty"`
	cause          error
}

// New creates a new RelError
func New(code ErrorCode, message string, cause error) *RelError {
	return &RelError{
		Code:           code,
		Message:        message,
		cause:          cause,
		SuggestedFixes: GetSuggestedFixes(code),
	}
}

// Error implements the error interface
func (e *RelError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *RelError) Unwrap() error {
	return e.cause
}

// WithDetails adds details to the error
func (e *RelError) WithDetails(details interface{}) *RelError {
	e.Details = details
	return e
}

// NewNotARepositoryError reports that root is not a git work tree.
func NewNotARepositoryError(root string, cause error) *RelError {
	return New(NotARepository, fmt.Sprintf("%s is not a git repository", root), cause).
		WithDetails(map[string]interface{}{"workspace": root})
}

// NewExecutionError reports a failed external command.
func NewExecutionError(command string, args []string, stderr string, cause error) *RelError {
	return New(ExecutionError, command+" command failed", cause).
		WithDetails(map[string]interface{}{
			"command": command,
			"args":    args,
			"stderr":  stderr,
		})
}

// NewValidationError reports a malformed value returned by an external query.
func NewValidationError(what, value string) *RelError {
	return New(ValidationError, fmt.Sprintf("malformed %s %q", what, value), nil).
		WithDetails(map[string]interface{}{what: value})
}

// NewMissingEntryError reports an empty or absent required entry.
func NewMissingEntryError(what string) *RelError {
	return New(MissingEntry, what+" is required", nil).
		WithDetails(map[string]interface{}{"entry": what})
}

// NewConfigError reports an invalid configuration value.
func NewConfigError(key string, reason string) *RelError {
	return New(ConfigInvalid, fmt.Sprintf("invalid %s: %s", key, reason), nil).
		WithDetails(map[string]interface{}{"key": key})
}

// CodeOf returns the code of the first RelError in err's chain,
// or InternalError when there is none.
func CodeOf(err error) ErrorCode {
	var relErr *RelError
	if stderrors.As(err, &relErr) {
		return relErr.Code
	}
	return InternalError
}

// Is reports whether err's chain contains a RelError with the given code.
func Is(err error, code ErrorCode) bool {
	if err == nil {
		return false
	}
	return CodeOf(err) == code
}

// ErrorActions maps error codes to suggested fix actions
var ErrorActions = map[ErrorCode][]FixAction{
	NotARepository: {
		{
			Type:        RunCommand,
			Command:     "git status",
			Safe:        true,
			Description: "Verify you're in a git repository",
		},
		{
			Type:        RunCommand,
			Command:     "git init",
			Safe:        false,
			Description: "Initialize a git repository",
		},
	},
	ConfigInvalid: {
		{
			Type:        RunCommand,
			Command:     "relfiles config show",
			Safe:        true,
			Description: "Inspect the effective configuration",
		},
	},
}

// GetSuggestedFixes returns suggested fixes for an error code
func GetSuggestedFixes(code ErrorCode) []FixAction {
	if fixes, ok := ErrorActions[code]; ok {
		return fixes
	}
	return nil
}
