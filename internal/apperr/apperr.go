// Package apperr defines the error taxonomy shared by the OCR adapters, the
// session layer and the HTTP API.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind groups errors by how the caller should react.
type Kind int

const (
	KindInternal Kind = iota
	KindInput
	KindOCR
	KindHeaders
	KindNotFound
	KindConflict
)

func (k Kind) String() string {
	switch k {
	case KindInput:
		return "Validation Error"
	case KindOCR:
		return "OCR Error"
	case KindHeaders:
		return "Header Inference Error"
	case KindNotFound:
		return "Not Found"
	case KindConflict:
		return "Conflict"
	default:
		return "Server Error"
	}
}

// Code identifies the specific failure.
type Code string

const (
	CodeNoFile            Code = "NO_FILE"
	CodeEmptyFile         Code = "EMPTY_FILE"
	CodeInvalidFileType   Code = "INVALID_FILE_TYPE"
	CodeFileTooLarge      Code = "FILE_TOO_LARGE"
	CodeInvalidDocument   Code = "INVALID_DOCUMENT"
	CodeSelectionTooSmall Code = "SELECTION_TOO_SMALL"
	CodeInvalidRequest    Code = "INVALID_REQUEST"
	CodeOCRFailed         Code = "OCR_FAILED"
	CodeOCRMalformed      Code = "OCR_MALFORMED_RESPONSE"
	CodeHeadersFailed     Code = "HEADER_INFERENCE_FAILED"
	CodeHeadersShape      Code = "HEADER_RESPONSE_UNRECOGNIZED"
	CodeSessionNotFound   Code = "SESSION_NOT_FOUND"
	CodeDocumentNotFound  Code = "DOCUMENT_NOT_FOUND"
	CodeCellNotFound      Code = "CELL_NOT_FOUND"
	CodeNotTaggable       Code = "CELL_NOT_TAGGABLE"
	CodeFieldNotFound     Code = "FIELD_NOT_FOUND"
	CodeSuperseded        Code = "ANALYSIS_SUPERSEDED"
	CodeTooManySessions   Code = "TOO_MANY_SESSIONS"
	CodeStorageFailed     Code = "STORAGE_FAILED"
	CodeNotStored         Code = "PAYLOAD_NOT_STORED"
	CodeRateLimited       Code = "RATE_LIMITED"
	CodeQuotaExceeded     Code = "QUOTA_EXCEEDED"
	CodeInternal          Code = "INTERNAL"
)

// Error is a classified application error.
type Error struct {
	Kind    Kind
	Code    Code
	Message string
	Details map[string]any
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// WithDetail attaches a key/value pair and returns e for chaining.
func (e *Error) WithDetail(key string, value any) *Error {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// HTTPStatus maps the error to a response status.
func (e *Error) HTTPStatus() int {
	switch e.Kind {
	case KindInput:
		if e.Code == CodeFileTooLarge {
			return http.StatusRequestEntityTooLarge
		}
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindOCR, KindHeaders:
		return http.StatusBadGateway
	default:
		if e.Code == CodeTooManySessions {
			return http.StatusServiceUnavailable
		}
		return http.StatusInternalServerError
	}
}

// New builds an error of the given kind.
func New(kind Kind, code Code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

// Input reports a request rejected before any backend call.
func Input(code Code, message string) *Error {
	return New(KindInput, code, message)
}

// OCR reports a failed analysis call.
func OCR(code Code, message string, cause error) *Error {
	e := New(KindOCR, code, message)
	e.Cause = cause
	return e
}

// Headers reports a failed header inference call.
func Headers(code Code, message string, cause error) *Error {
	e := New(KindHeaders, code, message)
	e.Cause = cause
	return e
}

// NotFound reports a missing session, document, cell or field.
func NotFound(code Code, message string) *Error {
	return New(KindNotFound, code, message)
}

// Internal wraps an unexpected failure.
func Internal(code Code, message string, cause error) *Error {
	e := New(KindInternal, code, message)
	e.Cause = cause
	return e
}

// As extracts an *Error from err.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// KindOf returns the kind of err, KindInternal for unclassified errors.
func KindOf(err error) Kind {
	if e, ok := As(err); ok {
		return e.Kind
	}
	return KindInternal
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	e, ok := As(err)
	return ok && e.Kind == kind
}
