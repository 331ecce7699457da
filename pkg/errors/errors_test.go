package errors

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	err := New(ErrCodeConnectionFailed, "connection refused")

	assert.Equal(t, ErrCodeConnectionFailed, err.Code)
	assert.Equal(t, "connection refused", err.Message)
	assert.Equal(t, SeverityError, err.Severity)
	assert.False(t, err.Recoverable)
	assert.NotEmpty(t, err.Stack)
}

func TestWrap(t *testing.T) {
	t.Run("wraps plain error", func(t *testing.T) {
		cause := fmt.Errorf("dial tcp: i/o timeout")
		err := Wrap(cause, ErrCodeConnectionTimeout, "warehouse unreachable")

		require.NotNil(t, err)
		assert.Equal(t, cause, err.Unwrap())
		assert.Contains(t, err.Error(), "warehouse unreachable")
		assert.Contains(t, err.Error(), "i/o timeout")
	})

	t.Run("nil cause returns nil", func(t *testing.T) {
		assert.Nil(t, Wrap(nil, ErrCodeInternal, "should not happen"))
	})

	t.Run("inherits context from wrapped AppError", func(t *testing.T) {
		inner := New(ErrCodeSQLExecution, "merge failed").WithContext("table", "RAW_ORDERS")
		outer := Wrap(inner, ErrCodeSQLTransaction, "transaction aborted")

		assert.Equal(t, "RAW_ORDERS", outer.Context["table"])
	})
}

func TestErrorFormatting(t *testing.T) {
	err := New(ErrCodeConfigInvalid, "missing account").
		WithSuggestions("Run 'whisk setup' to reconfigure")

	msg := err.Error()
	assert.Contains(t, msg, "WSK2002")
	assert.Contains(t, msg, "missing account")
	assert.Contains(t, msg, "Suggestions:")
	assert.Contains(t, msg, "whisk setup")
}

func TestAPIError(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		wantCode    ErrorCode
		recoverable bool
	}{
		{"unauthorized", 401, ErrCodeAPIUnauthorized, false},
		{"forbidden", 403, ErrCodeAPIUnauthorized, false},
		{"throttled", 429, ErrCodeAPIRateLimited, true},
		{"server error", 502, ErrCodeAPIRequestFailed, true},
		{"not found", 404, ErrCodeAPIRequestFailed, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := APIError("request failed", "/admin/api/orders.json", tt.status, fmt.Errorf("status %d", tt.status))
			assert.Equal(t, tt.wantCode, err.Code)
			assert.Equal(t, tt.recoverable, err.Recoverable)
			assert.Equal(t, tt.status, err.Context["status"])
		})
	}
}

func TestSQLErrorClassification(t *testing.T) {
	err := SQLError("permission denied for table", "SELECT 1", fmt.Errorf("denied"))
	assert.Equal(t, ErrCodeSQLPermission, err.Code)

	err = SQLError("statement timeout exceeded", "SELECT 1", fmt.Errorf("timeout"))
	assert.Equal(t, ErrCodeSQLTimeout, err.Code)

	err = SQLError("syntax problem", "SELEC 1", fmt.Errorf("bad sql"))
	assert.Equal(t, ErrCodeSQLExecution, err.Code)
}

func TestIsRecoverable(t *testing.T) {
	assert.True(t, IsRecoverable(New(ErrCodeTimeout, "slow").AsRecoverable()))
	assert.False(t, IsRecoverable(New(ErrCodeTimeout, "slow")))
	assert.False(t, IsRecoverable(fmt.Errorf("plain error")))
}

func TestGetErrorCode(t *testing.T) {
	assert.Equal(t, ErrCodeStorageUpload, GetErrorCode(StorageError("put failed", "bucket", "key", fmt.Errorf("x"))))
	assert.Equal(t, ErrCodeInternal, GetErrorCode(fmt.Errorf("plain")))
}

func TestRetry(t *testing.T) {
	fastConfig := &RetryConfig{
		MaxRetries:   3,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		Multiplier:   2.0,
		RetryableError: func(err error) bool {
			return IsRecoverable(err)
		},
	}

	t.Run("succeeds after transient failures", func(t *testing.T) {
		attempts := 0
		err := Retry(context.Background(), fastConfig, func(ctx context.Context) error {
			attempts++
			if attempts < 3 {
				return New(ErrCodeAPIRateLimited, "throttled").AsRecoverable()
			}
			return nil
		})

		require.NoError(t, err)
		assert.Equal(t, 3, attempts)
	})

	t.Run("stops on non-retryable error", func(t *testing.T) {
		attempts := 0
		err := Retry(context.Background(), fastConfig, func(ctx context.Context) error {
			attempts++
			return New(ErrCodeConfigInvalid, "bad config")
		})

		require.Error(t, err)
		assert.Equal(t, 1, attempts)
	})

	t.Run("exhausts retries", func(t *testing.T) {
		attempts := 0
		err := Retry(context.Background(), fastConfig, func(ctx context.Context) error {
			attempts++
			return New(ErrCodeTimeout, "slow").AsRecoverable()
		})

		require.Error(t, err)
		assert.Equal(t, 4, attempts)
		assert.Equal(t, ErrCodeResourceExhausted, GetErrorCode(err))
	})

	t.Run("respects context cancellation", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		err := Retry(ctx, fastConfig, func(ctx context.Context) error {
			return New(ErrCodeTimeout, "slow").AsRecoverable()
		})

		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestCircuitBreaker(t *testing.T) {
	cb := NewCircuitBreaker("test", 2, 50*time.Millisecond)
	ctx := context.Background()

	failing := func() error { return fmt.Errorf("boom") }

	// Two failures open the circuit
	_ = cb.Execute(ctx, failing)
	_ = cb.Execute(ctx, failing)
	assert.Equal(t, "open", cb.GetState())

	// Open circuit rejects immediately
	err := cb.Execute(ctx, func() error { return nil })
	require.Error(t, err)
	assert.Equal(t, ErrCodeServiceUnavailable, GetErrorCode(err))

	// After the reset timeout it half-opens, then a success closes it
	time.Sleep(60 * time.Millisecond)
	err = cb.Execute(ctx, func() error { return nil })
	require.NoError(t, err)
	assert.Equal(t, "closed", cb.GetState())
}
