package services

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a rejected operation for the transport layer.
type ErrorKind int

const (
	KindInternal ErrorKind = iota
	KindValidation
	KindNotFound
	KindConflict
	KindForbidden
	KindUnauthorized
)

func (k ErrorKind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindForbidden:
		return "forbidden"
	case KindUnauthorized:
		return "unauthorized"
	default:
		return "internal"
	}
}

// Machine-readable rejection reasons.
const (
	ReasonInvalidInput       = "invalid_input"
	ReasonEmptyItems         = "empty_items"
	ReasonInvalidItem        = "invalid_item"
	ReasonInvalidQuantity    = "invalid_quantity"
	ReasonInvalidStatus      = "invalid_status"
	ReasonLocationRequired   = "location_required"
	ReasonRiderRequired      = "rider_required"
	ReasonInvalidTransition  = "invalid_transition"
	ReasonCustomerRequired   = "customer_details_required"
	ReasonTenantNotFound     = "tenant_not_found"
	ReasonOrderNotFound      = "order_not_found"
	ReasonMenuItemNotFound   = "menu_item_not_found"
	ReasonInsufficientStock  = "insufficient_stock"
	ReasonOrderDelivered     = "order_delivered"
	ReasonRiderNotFound      = "rider_not_found"
	ReasonRiderBusy          = "rider_busy"
	ReasonRiderNotAuthorized = "rider_not_authorized_for_transition"
	ReasonActionNotPermitted = "action_not_permitted"
	ReasonInvalidCredentials = "invalid_credentials"
	ReasonTenantBlocked      = "tenant_blocked"
	ReasonPersistenceFailure = "persistence_failure"
)

// Error is returned by every service operation that rejects a request.
type Error struct {
	Kind    ErrorKind
	Reason  string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func validationError(reason, format string, args ...interface{}) *Error {
	return &Error{Kind: KindValidation, Reason: reason, Message: fmt.Sprintf(format, args...)}
}

func notFoundError(reason, format string, args ...interface{}) *Error {
	return &Error{Kind: KindNotFound, Reason: reason, Message: fmt.Sprintf(format, args...)}
}

func conflictError(reason, format string, args ...interface{}) *Error {
	return &Error{Kind: KindConflict, Reason: reason, Message: fmt.Sprintf(format, args...)}
}

func forbiddenError(reason, format string, args ...interface{}) *Error {
	return &Error{Kind: KindForbidden, Reason: reason, Message: fmt.Sprintf(format, args...)}
}

func unauthorizedError(reason, format string, args ...interface{}) *Error {
	return &Error{Kind: KindUnauthorized, Reason: reason, Message: fmt.Sprintf(format, args...)}
}

func internalError(message string, err error) *Error {
	return &Error{Kind: KindInternal, Reason: ReasonPersistenceFailure, Message: message, Err: err}
}

// AsError extracts a service error from err. Anything that is not one is reported as internal.
func AsError(err error) *Error {
	var svcErr *Error
	if errors.As(err, &svcErr) {
		return svcErr
	}
	return internalError("internal error", err)
}
