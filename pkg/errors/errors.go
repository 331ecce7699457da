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
	ErrCodeConnectionFailed     ErrorCode = "WSK1001"
	ErrCodeConnectionTimeout    ErrorCode = "WSK1002"
	ErrCodeAuthenticationFailed ErrorCode = "WSK1003"
	ErrCodeNetworkUnavailable   ErrorCode = "WSK1004"

	// Configuration errors (2xxx)
	ErrCodeConfigNotFound ErrorCode = "WSK2001"
	ErrCodeConfigInvalid  ErrorCode = "WSK2002"
	ErrCodeConfigMissing  ErrorCode = "WSK2003"

	// Commerce API errors (3xxx)
	ErrCodeAPIRequestFailed ErrorCode = "WSK3001"
	ErrCodeAPIRateLimited   ErrorCode = "WSK3002"
	ErrCodeAPIUnauthorized  ErrorCode = "WSK3003"
	ErrCodeAPIResponse      ErrorCode = "WSK3004"

	// SQL execution errors (4xxx)
	ErrCodeSQLSyntax         ErrorCode = "WSK4001"
	ErrCodeSQLPermission     ErrorCode = "WSK4002"
	ErrCodeSQLTimeout        ErrorCode = "WSK4003"
	ErrCodeSQLTransaction    ErrorCode = "WSK4004"
	ErrCodeSQLObjectNotFound ErrorCode = "WSK4005"
	ErrCodeSQLExecution      ErrorCode = "WSK4006"

	// Object storage errors (5xxx)
	ErrCodeStorageUpload   ErrorCode = "WSK5001"
	ErrCodeStorageAccess   ErrorCode = "WSK5002"
	ErrCodeStorageNotFound ErrorCode = "WSK5003"

	// Validation errors (6xxx)
	ErrCodeValidationFailed ErrorCode = "WSK6001"
	ErrCodeInvalidInput     ErrorCode = "WSK6002"
	ErrCodeRequiredField    ErrorCode = "WSK6003"

	// Transform errors (7xxx)
	ErrCodeModelNotFound ErrorCode = "WSK7001"
	ErrCodeModelCycle    ErrorCode = "WSK7002"
	ErrCodeModelInvalid  ErrorCode = "WSK7003"

	// Sync state errors (8xxx)
	ErrCodeCursorLoad ErrorCode = "WSK8001"
	ErrCodeCursorSave ErrorCode = "WSK8002"

	// System errors (9xxx)
	ErrCodeInternal           ErrorCode = "WSK9001"
	ErrCodeTimeout            ErrorCode = "WSK9002"
	ErrCodeResourceExhausted  ErrorCode = "WSK9003"
	ErrCodeServiceUnavailable ErrorCode = "WSK9004"
	ErrCodeSecretStore        ErrorCode = "WSK9005"
)

// ErrorSeverity represents the severity level of an error
type ErrorSeverity string

const (
	SeverityCritical ErrorSeverity = "CRITICAL" // System failure, requires immediate attention
	SeverityError    ErrorSeverity = "ERROR"    // Operation failed, but system continues
	SeverityWarning  ErrorSeverity = "WARNING"  // Operation succeeded with issues
	SeverityInfo     ErrorSeverity = "INFO"     // Informational, not an error
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

// Is implements error comparison
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
		Code:        code,
		Message:     message,
		Severity:    SeverityError,
		Context:     make(map[string]interface{}),
		Stack:       captureStack(),
		Timestamp:   time.Now(),
		Recoverable: false,
	}
}

// Wrap wraps an existing error with AppError
func Wrap(err error, code ErrorCode, message string) *AppError {
	if err == nil {
		return nil
	}

	appErr := New(code, message)
	appErr.Cause = err

	// If wrapping another AppError, inherit its context
	if ae, ok := err.(*AppError); ok {
		for k, v := range ae.Context {
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

// captureStack captures the current stack trace
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
			"Verify the warehouse endpoint is accessible",
			"Check firewall and network ACL settings",
		)
}

// ConfigError creates a configuration-related error
func ConfigError(message string, field string) *AppError {
	return New(ErrCodeConfigInvalid, message).
		WithContext("field", field).
		WithSuggestions(
			fmt.Sprintf("Check the '%s' configuration value", field),
			"Run 'whisk setup' to reconfigure",
		)
}

// APIError creates a commerce API error
func APIError(message string, endpoint string, status int, cause error) *AppError {
	err := Wrap(cause, ErrCodeAPIRequestFailed, message).
		WithContext("endpoint", endpoint).
		WithContext("status", status)

	switch {
	case status == 401 || status == 403:
		err.Code = ErrCodeAPIUnauthorized
		_ = err.WithSuggestions(
			"Verify the Admin API access token",
			"Check the token's API scopes include read_orders and read_customers",
		)
	case status == 429:
		err.Code = ErrCodeAPIRateLimited
		_ = err.AsRecoverable().WithSuggestions(
			"The platform is throttling requests; the sync will back off and retry",
		)
	case status >= 500:
		_ = err.AsRecoverable()
	}

	return err
}

// SQLError creates an SQL execution error
func SQLError(message string, query string, cause error) *AppError {
	err := Wrap(cause, ErrCodeSQLExecution, message).
		WithContext("query", truncateString(query, 200))

	if strings.Contains(message, "permission") || strings.Contains(message, "access denied") {
		err.Code = ErrCodeSQLPermission
		_ = err.WithSuggestions(
			"Check user permissions in the warehouse",
			"Verify the role has required privileges",
		)
	} else if strings.Contains(message, "timeout") {
		err.Code = ErrCodeSQLTimeout
		_ = err.WithSuggestions(
			"Increase the query timeout setting",
			"Check the warehouse size",
		)
	}

	return err
}

// StorageError creates an object storage error
func StorageError(message string, bucket, key string, cause error) *AppError {
	return Wrap(cause, ErrCodeStorageUpload, message).
		WithContext("bucket", bucket).
		WithContext("key", key).
		WithSuggestions(
			"Verify the bucket exists and the credentials can write to it",
			"Check the AWS region configuration",
		)
}

// ValidationError creates a validation error
func ValidationError(field string, value interface{}, reason string) *AppError {
	return New(ErrCodeValidationFailed, fmt.Sprintf("Validation failed for %s: %s", field, reason)).
		WithContext("field", field).
		WithContext("value", value).
		WithSeverity(SeverityWarning).
		AsRecoverable()
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

// truncateString truncates a string to maxLen characters
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
