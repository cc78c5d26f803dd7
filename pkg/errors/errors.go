package errors

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
	"time"
)

// ErrorCode represents a unique error code for categorizing errors
type ErrorCode string

const (
	// Connection errors (1xxx)
	ErrCodeConnectionFailed     ErrorCode = "VRE1001"
	ErrCodeConnectionTimeout    ErrorCode = "VRE1002"
	ErrCodeAuthenticationFailed ErrorCode = "VRE1003"
	ErrCodeNotConnected         ErrorCode = "VRE1004"

	// Configuration errors (2xxx)
	ErrCodeConfigNotFound ErrorCode = "VRE2001"
	ErrCodeConfigInvalid  ErrorCode = "VRE2002"
	ErrCodeConfigMissing  ErrorCode = "VRE2003"
	ErrCodeCredentials    ErrorCode = "VRE2004"

	// SQL execution errors (4xxx)
	ErrCodeSQLSyntax         ErrorCode = "VRE4001"
	ErrCodeSQLPermission     ErrorCode = "VRE4002"
	ErrCodeSQLTimeout        ErrorCode = "VRE4003"
	ErrCodeSQLTransaction    ErrorCode = "VRE4004"
	ErrCodeSQLObjectNotFound ErrorCode = "VRE4005"
	ErrCodeNoResults         ErrorCode = "VRE4008"

	// Reconciliation errors (5xxx)
	ErrCodeReconcileFailed ErrorCode = "VRE5001"
	ErrCodeRowsLost        ErrorCode = "VRE5002"
	ErrCodeReportFailed    ErrorCode = "VRE5003"
	ErrCodeHistoryFailed   ErrorCode = "VRE5004"

	// Validation errors (6xxx)
	ErrCodeValidationFailed ErrorCode = "VRE6001"
	ErrCodeInvalidInput     ErrorCode = "VRE6002"

	// System errors (9xxx)
	ErrCodeInternal           ErrorCode = "VRE9001"
	ErrCodeTimeout            ErrorCode = "VRE9002"
	ErrCodeResourceExhausted  ErrorCode = "VRE9003"
	ErrCodeServiceUnavailable ErrorCode = "VRE9004"
	ErrCodeResultParsing      ErrorCode = "VRE9005"
)

// ErrorSeverity represents the severity level of an error
type ErrorSeverity string

const (
	SeverityCritical ErrorSeverity = "CRITICAL"
	SeverityError    ErrorSeverity = "ERROR"
	SeverityWarning  ErrorSeverity = "WARNING"
	SeverityInfo     ErrorSeverity = "INFO"
)

// AppError represents a structured application error with context
type AppError struct {
	Code        ErrorCode
	Message     string
	Severity    ErrorSeverity
	Context     map[string]interface{}
	Cause       error
	Stack       string
	Timestamp   time.Time
	Recoverable bool
	Suggestions []string
}

// Error implements the error interface
func (e *AppError) Error() string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("[%s] %s: %s", e.Code, e.Severity, e.Message))

	if e.Cause != nil {
		b.WriteString(fmt.Sprintf("\nCaused by: %v", e.Cause))
	}

	if len(e.Suggestions) > 0 {
		b.WriteString("\nSuggestions:")
		for i, suggestion := range e.Suggestions {
			b.WriteString(fmt.Sprintf("\n  %d. %s", i+1, suggestion))
		}
	}

	return b.String()
}

// Unwrap returns the cause of the error
func (e *AppError) Unwrap() error {
	return e.Cause
}

// Is implements error comparison by code
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// New creates a new AppError
func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:      code,
		Message:   message,
		Severity:  SeverityError,
		Context:   make(map[string]interface{}),
		Stack:     captureStack(),
		Timestamp: time.Now(),
	}
}

// Wrap wraps an existing error with AppError
func Wrap(err error, code ErrorCode, message string) *AppError {
	if err == nil {
		return nil
	}

	appErr := New(code, message)
	appErr.Cause = err

	var inner *AppError
	if errors.As(err, &inner) {
		for k, v := range inner.Context {
			appErr.Context[k] = v
		}
	}

	return appErr
}

// WithContext adds context to the error
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// WithSeverity sets the error severity
func (e *AppError) WithSeverity(severity ErrorSeverity) *AppError {
	e.Severity = severity
	return e
}

// WithSuggestions adds recovery suggestions
func (e *AppError) WithSuggestions(suggestions ...string) *AppError {
	e.Suggestions = append(e.Suggestions, suggestions...)
	return e
}

// AsRecoverable marks the error as recoverable
func (e *AppError) AsRecoverable() *AppError {
	e.Recoverable = true
	return e
}

func captureStack() string {
	const depth = 32
	var pcs [depth]uintptr
	n := runtime.Callers(3, pcs[:])

	var b strings.Builder
	frames := runtime.CallersFrames(pcs[:n])

	for {
		frame, more := frames.Next()
		if !strings.Contains(frame.File, "runtime/") {
			b.WriteString(fmt.Sprintf("%s:%d %s\n", frame.File, frame.Line, frame.Function))
		}
		if !more {
			break
		}
	}

	return b.String()
}

// Common error constructors

// ConnectionError creates a connection-related error
func ConnectionError(message string, cause error) *AppError {
	return Wrap(cause, ErrCodeConnectionFailed, message).
		WithSeverity(SeverityError).
		WithSuggestions(
			"Check your network connection",
			"Verify the Snowflake account identifier",
			"Check firewall and proxy settings",
		)
}

// ConfigError creates a configuration-related error
func ConfigError(message string, field string) *AppError {
	return New(ErrCodeConfigInvalid, message).
		WithContext("field", field).
		WithSuggestions(
			fmt.Sprintf("Check the '%s' configuration value", field),
			"Run 'vaultrecon validate' to check the configuration",
		)
}

// SQLError creates an SQL execution error. The code is refined from the
// driver message so callers can branch on permission and timeout failures.
func SQLError(message string, query string, cause error) *AppError {
	err := Wrap(cause, ErrCodeSQLSyntax, message).
		WithContext("query", truncateString(query, 200))

	text := strings.ToLower(message)
	if cause != nil {
		text += " " + strings.ToLower(cause.Error())
	}

	switch {
	case strings.Contains(text, "permission") || strings.Contains(text, "access denied") ||
		strings.Contains(text, "insufficient privileges"):
		err.Code = ErrCodeSQLPermission
		_ = err.WithSuggestions(
			"Check the role's privileges on the source and vault objects",
			"Contact your Snowflake administrator",
		)
	case strings.Contains(text, "timeout") || strings.Contains(text, "deadline exceeded"):
		err.Code = ErrCodeSQLTimeout
		_ = err.WithSuggestions(
			"Increase reconcile.query_timeout",
			"Use a larger warehouse for the EXCEPT query",
		)
	case strings.Contains(text, "does not exist") || strings.Contains(text, "not found"):
		err.Code = ErrCodeSQLObjectNotFound
		_ = err.WithSuggestions(
			"Verify the table names in the configuration are fully qualified",
			"Ensure the role can see the database and schema",
		)
	}

	return err
}

// ValidationError creates a validation error
func ValidationError(field string, value interface{}, reason string) *AppError {
	return New(ErrCodeValidationFailed, fmt.Sprintf("Validation failed for %s: %s", field, reason)).
		WithContext("field", field).
		WithContext("value", value).
		WithSeverity(SeverityWarning)
}

// IsRecoverable checks if an error is recoverable
func IsRecoverable(err error) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Recoverable
	}
	return false
}

// GetErrorCode extracts the error code from an error
func GetErrorCode(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ErrCodeInternal
}

func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
