package errors

import (
	stderrors "errors"
	"fmt"
)

type ValidationDetail struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

type ValidationError struct {
	Message string
	Details []ValidationDetail
}

func (e *ValidationError) Error() string {
	return e.Message
}

func NewValidationError(message string, details ...ValidationDetail) *ValidationError {
	return &ValidationError{
		Message: message,
		Details: details,
	}
}

func IsValidationError(err error) (*ValidationError, bool) {
	var ve *ValidationError
	if stderrors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}

// DuplicateNameError reports a unique-constraint violation on a named entity.
type DuplicateNameError struct {
	Entity string
	Name   string
}

func (e *DuplicateNameError) Error() string {
	return fmt.Sprintf("%s %q already exists", e.Entity, e.Name)
}

func NewDuplicateNameError(entity string, name string) *DuplicateNameError {
	return &DuplicateNameError{Entity: entity, Name: name}
}

func IsDuplicateNameError(err error) (*DuplicateNameError, bool) {
	var de *DuplicateNameError
	if stderrors.As(err, &de) {
		return de, true
	}
	return nil, false
}

type InsufficientStockError struct {
	Item      string
	Available int
	Requested int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %s: available %d, requested %d", e.Item, e.Available, e.Requested)
}

func NewInsufficientStockError(item string, available int, requested int) *InsufficientStockError {
	return &InsufficientStockError{Item: item, Available: available, Requested: requested}
}

func IsInsufficientStockError(err error) (*InsufficientStockError, bool) {
	var se *InsufficientStockError
	if stderrors.As(err, &se) {
		return se, true
	}
	return nil, false
}

// CreditLimitExceededError carries amounts in cents.
type CreditLimitExceededError struct {
	Client    string
	Limit     int64
	Attempted int64
}

func (e *CreditLimitExceededError) Error() string {
	return fmt.Sprintf("credit limit exceeded for %s: limit %d, balance after sale %d", e.Client, e.Limit, e.Attempted)
}

func NewCreditLimitExceededError(client string, limit int64, attempted int64) *CreditLimitExceededError {
	return &CreditLimitExceededError{Client: client, Limit: limit, Attempted: attempted}
}

func IsCreditLimitExceededError(err error) (*CreditLimitExceededError, bool) {
	var ce *CreditLimitExceededError
	if stderrors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}

type ShiftAlreadyOpenError struct {
	ShiftID string
}

func (e *ShiftAlreadyOpenError) Error() string {
	if e.ShiftID == "" {
		return "a shift is already open"
	}
	return fmt.Sprintf("shift %s is already open", e.ShiftID)
}

func NewShiftAlreadyOpenError(shiftID string) *ShiftAlreadyOpenError {
	return &ShiftAlreadyOpenError{ShiftID: shiftID}
}

func IsShiftAlreadyOpenError(err error) (*ShiftAlreadyOpenError, bool) {
	var se *ShiftAlreadyOpenError
	if stderrors.As(err, &se) {
		return se, true
	}
	return nil, false
}

type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("%s not found", e.Entity)
	}
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

func NewNotFoundError(entity string, id string) *NotFoundError {
	return &NotFoundError{Entity: entity, ID: id}
}

func IsNotFoundError(err error) (*NotFoundError, bool) {
	var ne *NotFoundError
	if stderrors.As(err, &ne) {
		return ne, true
	}
	return nil, false
}

// IntegrityError reports a referential violation, such as deleting a product
// that sale history still points to.
type IntegrityError struct {
	Message string
	Cause   error
}

func (e *IntegrityError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *IntegrityError) Unwrap() error {
	return e.Cause
}

func NewIntegrityError(message string, cause error) *IntegrityError {
	return &IntegrityError{Message: message, Cause: cause}
}

func IsIntegrityError(err error) (*IntegrityError, bool) {
	var ie *IntegrityError
	if stderrors.As(err, &ie) {
		return ie, true
	}
	return nil, false
}

type InternalError struct {
	Message string
	Cause   error
}

func (e *InternalError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *InternalError) Unwrap() error {
	return e.Cause
}

func NewInternalError(message string, cause error) *InternalError {
	return &InternalError{
		Message: message,
		Cause:   cause,
	}
}

func IsInternalError(err error) (*InternalError, bool) {
	var ie *InternalError
	if stderrors.As(err, &ie) {
		return ie, true
	}
	return nil, false
}
