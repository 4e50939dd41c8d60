// Package apierror provides standardized error response structures for the API.
// All errors returned to clients go through this package to ensure consistency
// and to prevent leaking internal details (stack traces, DB errors, etc.).
package apierror

import (
	"errors"
	"fmt"
	"net/http"
)

// APIError is the canonical error envelope for all 4xx/5xx HTTP responses.
type APIError struct {
	Code   string            `json:"code,omitempty"`
	Detail string            `json:"detail"`
	Fields map[string]string `json:"fields,omitempty"`
}

func New(msg string) *APIError {
	return &APIError{Detail: msg}
}

// NewValidation wraps multiple field errors.
func NewValidation(fields map[string]string) *APIError {
	return &APIError{Code: CodeInvalidInput, Detail: "Error de validacion", Fields: fields}
}

// ── Domain errors ─────────────────────────────────────────────────────────────

// Kind groups error codes by how a caller should react to them.
type Kind string

const (
	KindValidation    Kind = "validation"
	KindConflict      Kind = "conflict"
	KindAuthorization Kind = "authorization"
	KindNotFound      Kind = "not_found"
	KindDomain        Kind = "domain"
)

const (
	CodeInvalidInput           = "INVALID_INPUT"
	CodeInvalidID              = "INVALID_ID"
	CodeInvalidAmount          = "INVALID_AMOUNT"
	CodeInvalidQuantity        = "INVALID_QUANTITY"
	CodeInvalidReasonCode      = "INVALID_REASON_CODE"
	CodeDirectionMismatch      = "DIRECTION_MISMATCH"
	CodeEmptySale              = "EMPTY_SALE"
	CodeOpenSessionExists      = "OPEN_SESSION_EXISTS"
	CodePaymentMismatch        = "PAYMENT_MISMATCH"
	CodeVarianceReasonRequired = "VARIANCE_REASON_REQUIRED"
	CodeConcurrentUpdate       = "CONCURRENT_UPDATE"
	CodeForbidden              = "FORBIDDEN"
	CodeNoOpenSession          = "NO_OPEN_SESSION"
	CodeNoStockRecord          = "NO_STOCK_RECORD"
	CodeSessionNotFound        = "SESSION_NOT_FOUND"
	CodeSaleNotFound           = "SALE_NOT_FOUND"
	CodeProductDisabled        = "PRODUCT_DISABLED"
	CodeProductNotSellable     = "PRODUCT_NOT_SELLABLE"
	CodeSessionNotOpen         = "SESSION_NOT_OPEN"
	CodeRegisterBranchMismatch = "REGISTER_BRANCH_MISMATCH"
	CodeRegisterInactive       = "REGISTER_INACTIVE"
	CodeBranchCodeMissing      = "BRANCH_CODE_MISSING"
)

// Error is a classified business error. Services return it; the HTTP layer
// maps Kind to a status code and Code/Detail/Fields to the envelope.
type Error struct {
	Kind   Kind
	Code   string
	Detail string
	Fields map[string]string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Detail)
}

// WithField attaches a key/value pair reported to the client.
func (e *Error) WithField(key, value string) *Error {
	if e.Fields == nil {
		e.Fields = make(map[string]string)
	}
	e.Fields[key] = value
	return e
}

// Envelope converts the error to the client-facing body.
func (e *Error) Envelope() *APIError {
	return &APIError{Code: e.Code, Detail: e.Detail, Fields: e.Fields}
}

func newError(kind Kind, code, detail string) *Error {
	return &Error{Kind: kind, Code: code, Detail: detail}
}

func Validation(code, detail string) *Error { return newError(KindValidation, code, detail) }
func Conflict(code, detail string) *Error   { return newError(KindConflict, code, detail) }
func NotFound(code, detail string) *Error   { return newError(KindNotFound, code, detail) }
func Domain(code, detail string) *Error     { return newError(KindDomain, code, detail) }

func Forbidden(detail string) *Error {
	return newError(KindAuthorization, CodeForbidden, detail)
}

// As extracts a *Error from err's chain.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// HasCode reports whether err carries the given business code.
func HasCode(err error, code string) bool {
	e, ok := As(err)
	return ok && e.Code == code
}

// Status maps an error to its HTTP status. Unclassified errors are 500.
func Status(err error) int {
	e, ok := As(err)
	if !ok {
		return http.StatusInternalServerError
	}
	switch e.Kind {
	case KindValidation:
		return http.StatusUnprocessableEntity
	case KindConflict:
		return http.StatusConflict
	case KindAuthorization:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusUnprocessableEntity
	}
}
