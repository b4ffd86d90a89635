package errors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppError(t *testing.T) {
	t.Run("Error returns formatted string", func(t *testing.T) {
		err := New(ErrCodeNotFound, "Image not found")
		assert.Equal(t, "NOT_FOUND: Image not found", err.Error())
	})

	t.Run("Error with cause includes cause", func(t *testing.T) {
		cause := errors.New("database connection failed")
		err := Wrap(ErrCodeDatabase, "Database error", cause)
		assert.Contains(t, err.Error(), "DATABASE_ERROR")
		assert.Contains(t, err.Error(), "Database error")
		assert.Contains(t, err.Error(), "database connection failed")
	})

	t.Run("WithCause adds cause to error", func(t *testing.T) {
		cause := errors.New("original error")
		err := New(ErrCodeInternal, "Something went wrong").WithCause(cause)
		assert.Equal(t, cause, err.Unwrap())
	})

	t.Run("WithDetails adds details to error", func(t *testing.T) {
		details := map[string]string{"field": "imageRef", "reason": "invalid format"}
		err := New(ErrCodeValidation, "Validation failed").WithDetails(details)
		assert.Equal(t, details, err.Details)
	})
}

func TestErrorConstructors(t *testing.T) {
	tests := []struct {
		name         string
		constructor  func() *AppError
		expectedCode ErrorCode
	}{
		{"Unauthorized", func() *AppError { return Unauthorized("test") }, ErrCodeUnauthorized},
		{"Forbidden", func() *AppError { return Forbidden("test") }, ErrCodeForbidden},
		{"InvalidToken", func() *AppError { return InvalidToken("test") }, ErrCodeInvalidToken},
		{"NotFound", func() *AppError { return NotFound("Image") }, ErrCodeNotFound},
		{"ValidationError", func() *AppError { return ValidationError("test") }, ErrCodeValidation},
		{"InvalidInput", func() *AppError { return InvalidInput("imageRef", "invalid") }, ErrCodeInvalidInput},
		{"MissingRequired", func() *AppError { return MissingRequired("token") }, ErrCodeMissingRequired},
		{"InvalidSession", func() *AppError { return InvalidSession() }, ErrCodeInvalidSession},
		{"PayloadTooLarge", func() *AppError { return PayloadTooLarge(1024) }, ErrCodePayloadTooLarge},
		{"RateLimitExceeded", func() *AppError { return RateLimitExceeded() }, ErrCodeRateLimitExceeded},
		{"Internal", func() *AppError { return Internal("test") }, ErrCodeInternal},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.constructor()
			assert.Equal(t, tc.expectedCode, err.Code)
			assert.NotEmpty(t, err.Message)
		})
	}
}

func TestInvalidSession(t *testing.T) {
	t.Run("unknown and expired tokens produce identical errors", func(t *testing.T) {
		unknown := InvalidSession()
		expired := InvalidSession()
		assert.Equal(t, unknown.Code, expired.Code)
		assert.Equal(t, unknown.Message, expired.Message)
	})
}

func TestInferenceErrors(t *testing.T) {
	t.Run("InferenceUnavailable carries stage and cause", func(t *testing.T) {
		cause := errors.New("connection refused")
		err := InferenceUnavailable(StageFoodDetection, cause)
		assert.Equal(t, ErrCodeInferenceUnavailable, err.Code)
		assert.Equal(t, StageFoodDetection, err.Stage)
		assert.Contains(t, err.Message, "food_detection")
		assert.Equal(t, cause, err.Unwrap())
	})

	t.Run("MalformedResponse carries stage and cause", func(t *testing.T) {
		cause := errors.New("unexpected end of JSON input")
		err := MalformedResponse(StageImpactPrediction, cause)
		assert.Equal(t, ErrCodeMalformedResponse, err.Code)
		assert.Equal(t, StageImpactPrediction, err.Stage)
		assert.Contains(t, err.Message, "impact_prediction")
		assert.Equal(t, cause, err.Unwrap())
	})
}

func TestStorageFailure(t *testing.T) {
	t.Run("wraps storage error", func(t *testing.T) {
		cause := errors.New("no space left on device")
		err := StorageFailure("save image", cause)
		assert.Equal(t, ErrCodeStorage, err.Code)
		assert.Contains(t, err.Message, "save image")
		assert.Equal(t, cause, err.Unwrap())
	})
}

func TestDatabase(t *testing.T) {
	t.Run("wraps database error", func(t *testing.T) {
		cause := errors.New("connection refused")
		err := Database(cause)
		assert.Equal(t, ErrCodeDatabase, err.Code)
		assert.Equal(t, cause, err.Unwrap())
	})
}

func TestIsAppError(t *testing.T) {
	t.Run("returns true for AppError", func(t *testing.T) {
		err := New(ErrCodeNotFound, "test")
		assert.True(t, IsAppError(err))
	})

	t.Run("returns false for standard error", func(t *testing.T) {
		err := errors.New("standard error")
		assert.False(t, IsAppError(err))
	})
}

func TestAsAppError(t *testing.T) {
	t.Run("extracts AppError", func(t *testing.T) {
		original := New(ErrCodeNotFound, "Image not found")
		extracted, ok := AsAppError(original)
		assert.True(t, ok)
		assert.Equal(t, original, extracted)
	})

	t.Run("returns false for non-AppError", func(t *testing.T) {
		err := errors.New("standard error")
		extracted, ok := AsAppError(err)
		assert.False(t, ok)
		assert.Nil(t, extracted)
	})
}

func TestGetCode(t *testing.T) {
	t.Run("returns code for AppError", func(t *testing.T) {
		err := New(ErrCodeNotFound, "test")
		assert.Equal(t, ErrCodeNotFound, GetCode(err))
	})

	t.Run("returns ErrCodeInternal for standard error", func(t *testing.T) {
		err := errors.New("standard error")
		assert.Equal(t, ErrCodeInternal, GetCode(err))
	})
}
