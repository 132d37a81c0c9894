package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/ahimsalabs/payloadwriter-go/payloadwriter"
	"github.com/ahimsalabs/payloadwriter-go/payloadwriter/document"
	"github.com/ahimsalabs/payloadwriter-go/storage/badgerstore"
)

// errorCode represents an internal error code for HTTP status mapping.
// This is not exported; clients see it as the "code" of an error body.
type errorCode string

const (
	codeBadRequest       errorCode = "bad_request"
	codeNotFound         errorCode = "not_found"
	codeMethodNotAllowed errorCode = "method_not_allowed"
	codePayloadTooLarge  errorCode = "payload_too_large"
	codeInvalidPayload   errorCode = "invalid_payload"
	codeUnavailable      errorCode = "unavailable"
	codeInternal         errorCode = "internal"
)

// httpStatus returns the HTTP status code for an error code.
func (c errorCode) httpStatus() int {
	switch c {
	case codeBadRequest:
		return http.StatusBadRequest
	case codeNotFound:
		return http.StatusNotFound
	case codeMethodNotAllowed:
		return http.StatusMethodNotAllowed
	case codePayloadTooLarge:
		return http.StatusRequestEntityTooLarge
	case codeInvalidPayload:
		return http.StatusUnprocessableEntity
	case codeUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// protoError is an internal error type for request failures.
// It implements error and is serialized to JSON for HTTP responses.
type protoError struct {
	Code    errorCode `json:"code"`
	Message string    `json:"message"`
}

func (e *protoError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func newError(code errorCode, message string) *protoError {
	return &protoError{
		Code:    code,
		Message: message,
	}
}

// toProtoError maps an error of the writer, the document parser or the
// store onto a protocol error.
func toProtoError(err error) *protoError {
	var pe *protoError
	if errors.As(err, &pe) {
		return pe
	}
	switch {
	case errors.Is(err, document.ErrInvalidDocument):
		return newError(codeBadRequest, err.Error())
	case payloadwriter.IsWriterError(err):
		return newError(codeInvalidPayload, err.Error())
	case errors.Is(err, badgerstore.ErrNotFound):
		return newError(codeNotFound, err.Error())
	case errors.Is(err, badgerstore.ErrTooLarge):
		return newError(codePayloadTooLarge, err.Error())
	case errors.Is(err, badgerstore.ErrBadRequest):
		return newError(codeBadRequest, err.Error())
	case errors.Is(err, badgerstore.ErrClosed):
		return newError(codeUnavailable, err.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return newError(codeUnavailable, err.Error())
	default:
		return newError(codeInternal, err.Error())
	}
}
