package reservas

import (
	"errors"
	"fmt"
)

// Policy rejections: business rules refused the request and nothing changed.
var (
	ErrReservationsPaused      = errors.New("reservations paused")
	ErrSlotUnavailable         = errors.New("slot unavailable")
	ErrReservationLimitReached = errors.New("reservation limit reached")
	ErrPartyTooLarge           = errors.New("party too large")
	ErrReservationClosed       = errors.New("reservation closed")
)

// Lookup and authorization failures.
var (
	ErrReservationNotFound    = errors.New("reservation not found")
	ErrForbidden              = errors.New("forbidden")
	ErrReservationNotEditable = errors.New("reservation not editable")
)

// Validation failures for caller-supplied values.
var (
	ErrInvalidReservationID     = errors.New("invalid reservation id")
	ErrInvalidUserID            = errors.New("invalid user id")
	ErrInvalidRole              = errors.New("invalid role")
	ErrInvalidPartySize         = errors.New("invalid party size")
	ErrInvalidSlot              = errors.New("invalid slot")
	ErrInvalidContact           = errors.New("invalid contact")
	ErrInvalidReservationStatus = errors.New("invalid reservation status")
	ErrInvalidCapacity          = errors.New("invalid capacity")
	ErrInvalidSettingKey        = errors.New("invalid setting key")
	ErrInvalidSearchField       = errors.New("invalid search field")
	ErrInvalidReportPeriod      = errors.New("invalid report period")
	ErrInvalidServiceConfig     = errors.New("invalid service config")
)

// ErrorKind classifies failures for callers that translate them to a transport.
type ErrorKind string

const (
	ErrorKindPolicy    ErrorKind = "policy_rejection"
	ErrorKindNotFound  ErrorKind = "not_found"
	ErrorKindForbidden ErrorKind = "forbidden"
	ErrorKindInvalid   ErrorKind = "invalid"
	ErrorKindTransient ErrorKind = "transient_failure"
)

var errorKinds = []struct {
	kind    ErrorKind
	targets []error
}{
	{kind: ErrorKindNotFound, targets: []error{ErrReservationNotFound}},
	{kind: ErrorKindForbidden, targets: []error{ErrForbidden, ErrReservationNotEditable}},
	{kind: ErrorKindPolicy, targets: []error{
		ErrReservationsPaused,
		ErrSlotUnavailable,
		ErrReservationLimitReached,
		ErrPartyTooLarge,
		ErrReservationClosed,
	}},
	{kind: ErrorKindInvalid, targets: []error{
		ErrInvalidReservationID,
		ErrInvalidUserID,
		ErrInvalidRole,
		ErrInvalidPartySize,
		ErrInvalidSlot,
		ErrInvalidContact,
		ErrInvalidReservationStatus,
		ErrInvalidCapacity,
		ErrInvalidSettingKey,
		ErrInvalidSearchField,
		ErrInvalidReportPeriod,
	}},
}

// KindOf reports the category of err. Anything unrecognized is transient.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	for _, group := range errorKinds {
		for _, target := range group.targets {
			if errors.Is(err, target) {
				return group.kind
			}
		}
	}
	return ErrorKindTransient
}

// OperationError wraps a failure with a stable operation code.
type OperationError struct {
	operation string
	subject   string
	code      string
	err       error
}

// Error returns the formatted error message.
func (operationError OperationError) Error() string {
	return fmt.Sprintf("%s.%s.%s: %v", operationError.operation, operationError.subject, operationError.code, operationError.err)
}

// Unwrap returns the underlying error.
func (operationError OperationError) Unwrap() error {
	return operationError.err
}

// Operation returns the operation segment.
func (operationError OperationError) Operation() string {
	return operationError.operation
}

// Subject returns the subject segment.
func (operationError OperationError) Subject() string {
	return operationError.subject
}

// Code returns the stable error code segment.
func (operationError OperationError) Code() string {
	return operationError.code
}

// WrapError wraps an error with operation, subject, and code metadata.
func WrapError(operation string, subject string, code string, err error) error {
	if err == nil {
		return nil
	}
	return OperationError{
		operation: operation,
		subject:   subject,
		code:      code,
		err:       err,
	}
}
