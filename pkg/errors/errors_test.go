package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAppErrorString(t *testing.T) {
	tests := []struct {
		name     string
		err      *AppError
		expected string
	}{
		{
			name:     "basic error",
			err:      New(ErrCodeConnectionFailed, "Connection failed"),
			expected: "[VRE1001] ERROR: Connection failed",
		},
		{
			name: "error with suggestions",
			err: New(ErrCodeConnectionFailed, "Connection failed").
				WithSuggestions("Check network", "Verify credentials"),
			expected: "[VRE1001] ERROR: Connection failed\nSuggestions:\n  1. Check network\n  2. Verify credentials",
		},
		{
			name: "error with context only",
			err: New(ErrCodeConnectionFailed, "Connection failed").
				WithContext("account", "xy12345"),
			expected: "[VRE1001] ERROR: Connection failed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.err.Error())
		})
	}
}

func TestErrorWrapping(t *testing.T) {
	baseErr := fmt.Errorf("database connection refused")

	appErr := Wrap(baseErr, ErrCodeConnectionFailed, "Failed to connect to Snowflake")

	assert.Equal(t, baseErr, appErr.Cause)
	assert.Equal(t, ErrCodeConnectionFailed, appErr.Code)
	assert.True(t, stderrors.Is(appErr, baseErr))
	assert.Nil(t, Wrap(nil, ErrCodeInternal, "nothing"))
}

func TestWrapInheritsContext(t *testing.T) {
	inner := New(ErrCodeSQLSyntax, "bad query").WithContext("table", "ORDERS")
	outer := Wrap(fmt.Errorf("reconcile: %w", inner), ErrCodeReconcileFailed, "table failed")

	assert.Equal(t, "ORDERS", outer.Context["table"])
	assert.Equal(t, ErrCodeReconcileFailed, GetErrorCode(outer))
}

func TestSQLErrorClassification(t *testing.T) {
	tests := []struct {
		name  string
		cause error
		code  ErrorCode
	}{
		{"syntax", fmt.Errorf("SQL compilation error: syntax error line 1"), ErrCodeSQLSyntax},
		{"missing object", fmt.Errorf("Object 'DV_DB.RAWVAULT.H_X' does not exist or not authorized"), ErrCodeSQLObjectNotFound},
		{"privileges", fmt.Errorf("Insufficient privileges to operate on table"), ErrCodeSQLPermission},
		{"timeout", context.DeadlineExceeded, ErrCodeSQLTimeout},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := SQLError("Query failed", "SELECT 1", tt.cause)
			assert.Equal(t, tt.code, err.Code)
			assert.Equal(t, "SELECT 1", err.Context["query"])
		})
	}
}

func TestRetryLogic(t *testing.T) {
	attempts := 0
	maxAttempts := 3

	config := &RetryConfig{
		MaxRetries:   maxAttempts - 1,
		InitialDelay: 10 * time.Millisecond,
		MaxDelay:     100 * time.Millisecond,
		Multiplier:   2.0,
		Jitter:       false,
		RetryableError: func(err error) bool {
			return true
		},
	}

	err := Retry(context.Background(), config, func(ctx context.Context) error {
		attempts++
		if attempts < maxAttempts {
			return New(ErrCodeConnectionTimeout, "Timeout").AsRecoverable()
		}
		return nil
	})

	assert.NoError(t, err)
	assert.Equal(t, maxAttempts, attempts)
}

func TestRetryStopsOnPermanentError(t *testing.T) {
	attempts := 0
	err := Retry(context.Background(), DefaultRetryConfig(), func(ctx context.Context) error {
		attempts++
		return New(ErrCodeAuthenticationFailed, "bad password")
	})

	assert.Error(t, err)
	assert.Equal(t, 1, attempts)
	assert.Equal(t, ErrCodeAuthenticationFailed, GetErrorCode(err))
}

func TestRetryExhausted(t *testing.T) {
	config := &RetryConfig{
		MaxRetries:     1,
		InitialDelay:   time.Millisecond,
		MaxDelay:       time.Millisecond,
		Multiplier:     1,
		RetryableError: func(error) bool { return true },
	}

	err := Retry(context.Background(), config, func(ctx context.Context) error {
		return fmt.Errorf("still down")
	})

	assert.Equal(t, ErrCodeResourceExhausted, GetErrorCode(err))
}

func TestCircuitBreaker(t *testing.T) {
	cb := NewCircuitBreaker("test", 2, 100*time.Millisecond)
	ctx := context.Background()

	assert.Error(t, cb.Execute(ctx, func() error { return fmt.Errorf("failure 1") }))
	assert.Error(t, cb.Execute(ctx, func() error { return fmt.Errorf("failure 2") }))

	err := cb.Execute(ctx, func() error { return nil })
	assert.Error(t, err, "circuit should be open")
	assert.Equal(t, ErrCodeServiceUnavailable, GetErrorCode(err))
	assert.Equal(t, "open", cb.GetState())

	time.Sleep(150 * time.Millisecond)

	assert.NoError(t, cb.Execute(ctx, func() error { return nil }))
	assert.Equal(t, "closed", cb.GetState())
}

func TestErrorCodes(t *testing.T) {
	assert.Equal(t, ErrCodeConnectionFailed, GetErrorCode(New(ErrCodeConnectionFailed, "Test")))
	assert.Equal(t, ErrCodeInternal, GetErrorCode(fmt.Errorf("regular error")))
	assert.False(t, IsRecoverable(fmt.Errorf("plain")))
	assert.True(t, IsRecoverable(New(ErrCodeTimeout, "slow").AsRecoverable()))
}

func BenchmarkErrorCreation(b *testing.B) {
	for i := 0; i < b.N; i++ {
		_ = New(ErrCodeConnectionFailed, "Connection failed").
			WithContext("account", "xy12345").
			WithSuggestions("Check connection")
	}
}
