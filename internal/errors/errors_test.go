package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestError_Unwrap_PreservesOriginalError(t *testing.T) {
	// Given: an original error
	originalErr := errors.New("original error")

	// When: wrapping with Error
	err := New(ErrCodeFileNotFound, "file not found: test.txt", originalErr)

	// Then: unwrapping returns original error
	require.NotNil(t, err)
	assert.Equal(t, originalErr, errors.Unwrap(err))
	assert.True(t, errors.Is(err, originalErr))
}

func TestError_Error_ReturnsFormattedMessage(t *testing.T) {
	tests := []struct {
		name     string
		code     string
		message  string
		cause    error
		expected string
	}{
		{
			name:     "config error",
			code:     ErrCodeConfigNotFound,
			message:  "config file not found",
			expected: "[ERR_101_CONFIG_NOT_FOUND] config file not found",
		},
		{
			name:     "query error",
			code:     ErrCodeInvalidQuery,
			message:  "invalid regex",
			expected: "[ERR_403_INVALID_QUERY] invalid regex",
		},
		{
			name:     "with cause",
			code:     ErrCodeIndexFailed,
			message:  "commit failed",
			cause:    errors.New("disk gone"),
			expected: "[ERR_505_INDEX_FAILED] commit failed: disk gone",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := New(tt.code, tt.message, tt.cause)
			assert.Equal(t, tt.expected, err.Error())
		})
	}
}

func TestError_Is_MatchesByCode(t *testing.T) {
	// Given: two errors with same code
	err1 := New(ErrCodeInvalidQuery, "bad pattern a", nil)
	err2 := New(ErrCodeInvalidQuery, "bad pattern b", nil)

	// Then: they match by code
	assert.True(t, errors.Is(err1, err2))
}

func TestError_Is_DoesNotMatchDifferentCodes(t *testing.T) {
	err1 := New(ErrCodeFileNotFound, "file not found", nil)
	err2 := New(ErrCodeConfigNotFound, "config not found", nil)

	assert.False(t, errors.Is(err1, err2))
}

func TestError_Is_MatchesThroughFmtWrapping(t *testing.T) {
	// Given: a coded error wrapped by fmt.Errorf
	inner := New(ErrCodeIndexLocked, "locked", nil)
	outer := fmt.Errorf("sync: %w", inner)

	// Then: errors.Is and GetCode see through the wrapper
	assert.True(t, errors.Is(outer, New(ErrCodeIndexLocked, "", nil)))
	assert.Equal(t, ErrCodeIndexLocked, GetCode(outer))
	assert.Equal(t, CategoryIO, GetCategory(outer))
}

func TestError_WithDetails_AddsContext(t *testing.T) {
	err := New(ErrCodeFileNotFound, "file not found", nil).
		WithDetail("path", "/foo/bar.txt").
		WithDetail("size", "1024")

	assert.Equal(t, "/foo/bar.txt", err.Details["path"])
	assert.Equal(t, "1024", err.Details["size"])
}

func TestError_WithSuggestion_AddsSuggestion(t *testing.T) {
	err := New(ErrCodeIndexLocked, "index busy", nil).
		WithSuggestion("wait for the running sync to finish")

	assert.Equal(t, "wait for the running sync to finish", err.Suggestion)
}

func TestError_CategoryFromCode(t *testing.T) {
	tests := []struct {
		code         string
		wantCategory Category
	}{
		{ErrCodeConfigNotFound, CategoryConfig},
		{ErrCodeConfigInvalid, CategoryConfig},
		{ErrCodeFileNotFound, CategoryIO},
		{ErrCodeCorruptIndex, CategoryIO},
		{ErrCodeIndexLocked, CategoryIO},
		{ErrCodeInvalidQuery, CategoryValidation},
		{ErrCodeInvalidPath, CategoryValidation},
		{ErrCodeInternal, CategoryInternal},
		{ErrCodeSearchFailed, CategoryInternal},
		{ErrCodeIndexFailed, CategoryInternal},
		{"BAD", CategoryInternal},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			err := New(tt.code, "test message", nil)
			assert.Equal(t, tt.wantCategory, err.Category)
		})
	}
}

func TestError_SeverityAndRetryableFromCode(t *testing.T) {
	tests := []struct {
		code          string
		wantSeverity  Severity
		wantRetryable bool
	}{
		{ErrCodeCorruptIndex, SeverityFatal, false},
		{ErrCodeDiskFull, SeverityFatal, false},
		{ErrCodeIndexLocked, SeverityWarning, true},
		{ErrCodeFileNotFound, SeverityError, false},
		{ErrCodeInvalidQuery, SeverityError, false},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			err := New(tt.code, "test message", nil)
			assert.Equal(t, tt.wantSeverity, err.Severity)
			assert.Equal(t, tt.wantRetryable, err.Retryable)
		})
	}
}

func TestWrap_CreatesErrorFromError(t *testing.T) {
	// Given: a standard error
	originalErr := errors.New("something went wrong")

	// When: wrapping with a code
	err := Wrap(ErrCodeInternal, originalErr)

	// Then: creates proper Error
	require.NotNil(t, err)
	assert.Equal(t, ErrCodeInternal, err.Code)
	assert.Equal(t, "something went wrong", err.Message)
	assert.Equal(t, originalErr, err.Cause)
}

func TestWrap_KeepsExistingCode(t *testing.T) {
	inner := New(ErrCodeInvalidQuery, "bad regex", nil)

	err := Wrap(ErrCodeInternal, inner)

	assert.Same(t, inner, err)
	assert.Nil(t, Wrap(ErrCodeInternal, nil))
}

func TestConstructors_SetCategory(t *testing.T) {
	assert.Equal(t, CategoryConfig, ConfigError("invalid yaml syntax", nil).Category)
	assert.Equal(t, CategoryIO, IOError("cannot read file", nil).Category)
	assert.Equal(t, CategoryValidation, ValidationError("query cannot be empty", nil).Category)
	assert.Equal(t, CategoryInternal, InternalError("unexpected", nil).Category)
}

func TestIsRetryable_ChecksRetryableFlag(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"retryable error", New(ErrCodeIndexLocked, "locked", nil), true},
		{"non-retryable error", New(ErrCodeFileNotFound, "not found", nil), false},
		{"wrapped retryable error", fmt.Errorf("outer: %w", New(ErrCodeIndexLocked, "locked", nil)), true},
		{"standard error", errors.New("standard error"), false},
		{"nil error", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, IsRetryable(tt.err))
		})
	}
}

func TestIsFatal_ChecksFatalSeverity(t *testing.T) {
	assert.True(t, IsFatal(New(ErrCodeCorruptIndex, "index corrupt", nil)))
	assert.False(t, IsFatal(New(ErrCodeInvalidQuery, "bad", nil)))
	assert.False(t, IsFatal(errors.New("plain")))
	assert.False(t, IsFatal(nil))
}
