package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidationError_Creation(t *testing.T) {
	err := NewValidationError("validation failed",
		ValidationDetail{Field: "name", Message: "required"},
		ValidationDetail{Field: "price", Message: "must be >= 0"},
	)

	assert.Equal(t, "validation failed", err.Error())
	assert.Len(t, err.Details, 2)
}

func TestIsValidationError_SurvivesWrapping(t *testing.T) {
	wrapped := fmt.Errorf("add product: %w", NewValidationError("name is required"))

	ve, ok := IsValidationError(wrapped)
	assert.True(t, ok)
	assert.Equal(t, "name is required", ve.Message)
}

func TestIsValidationError_WithOtherError(t *testing.T) {
	ve, ok := IsValidationError(errors.New("boom"))
	assert.False(t, ok)
	assert.Nil(t, ve)
}

func TestInsufficientStockError_Fields(t *testing.T) {
	var err error = NewInsufficientStockError("Water", 2, 3)

	se, ok := IsInsufficientStockError(err)
	assert.True(t, ok)
	assert.Equal(t, "Water", se.Item)
	assert.Equal(t, 2, se.Available)
	assert.Equal(t, 3, se.Requested)
	assert.Contains(t, err.Error(), "available 2, requested 3")
}

func TestCreditLimitExceededError_Fields(t *testing.T) {
	err := fmt.Errorf("checkout: %w", NewCreditLimitExceededError("Jane", 5000, 6000))

	ce, ok := IsCreditLimitExceededError(err)
	assert.True(t, ok)
	assert.Equal(t, int64(5000), ce.Limit)
	assert.Equal(t, int64(6000), ce.Attempted)
}

func TestNotFoundError_Message(t *testing.T) {
	assert.Equal(t, "client c-1 not found", NewNotFoundError("client", "c-1").Error())
	assert.Equal(t, "open shift not found", NewNotFoundError("open shift", "").Error())
}

func TestIntegrityError_Unwrap(t *testing.T) {
	cause := errors.New("FOREIGN KEY constraint failed")
	err := NewIntegrityError("product has sale history", cause)

	assert.True(t, errors.Is(err, cause))
	_, ok := IsIntegrityError(err)
	assert.True(t, ok)
}

func TestKindsDoNotCrossMatch(t *testing.T) {
	err := NewShiftAlreadyOpenError("shift-1")

	_, isDup := IsDuplicateNameError(err)
	_, isNotFound := IsNotFoundError(err)
	_, isOpen := IsShiftAlreadyOpenError(err)

	assert.False(t, isDup)
	assert.False(t, isNotFound)
	assert.True(t, isOpen)
}

func TestInternalError_Creation(t *testing.T) {
	cause := errors.New("database error")
	err := NewInternalError("failed to query database", cause)

	assert.Equal(t, "failed to query database: database error", err.Error())
	assert.Equal(t, cause, err.Unwrap())
}
