package payloadwriter

import (
	"errors"
	"fmt"
)

// Sentinel errors for writer failures.
// Use errors.Is() to check for these errors.
var (
	// ErrInvalidTransition indicates a call that is not legal in the
	// writer's current state.
	ErrInvalidTransition = errors.New("invalid transition")

	// ErrInvalidTopLevelShape indicates a top-level resource was written to a
	// writer constructed for a collection, or the other way around.
	ErrInvalidTopLevelShape = errors.New("invalid top-level shape")

	// ErrDuplicateField indicates a field name recurred in one resource body.
	ErrDuplicateField = errors.New("duplicate field")

	// ErrIncompatibleType indicates a resource type that is not assignable to
	// the type required by its enclosing scope.
	ErrIncompatibleType = errors.New("incompatible type")

	// ErrUnknownType indicates a type name the model cannot resolve.
	ErrUnknownType = errors.New("unknown type")

	// ErrMaxNestingDepthExceeded indicates too many nested resources.
	ErrMaxNestingDepthExceeded = errors.New("max nesting depth exceeded")

	// ErrDeferredReferenceInRequest indicates a nested reference without
	// content was ended while writing a request.
	ErrDeferredReferenceInRequest = errors.New("deferred reference in request")

	// ErrReferenceLinkInResponse indicates a reference link was written while
	// writing a response.
	ErrReferenceLinkInResponse = errors.New("reference link in response")

	// ErrMultipleItemsInNestedContent indicates a second item was written into
	// a nested reference that accepts only one.
	ErrMultipleItemsInNestedContent = errors.New("multiple items in nested content")

	// ErrNestedCardinalityMismatch indicates a nested item whose cardinality
	// contradicts the navigation member.
	ErrNestedCardinalityMismatch = errors.New("nested cardinality mismatch")

	// ErrCallModeMismatch indicates a blocking call on a suspension-mode
	// writer or a suspension call on a blocking writer.
	ErrCallModeMismatch = errors.New("call mode mismatch")

	// ErrSyncOnAsyncWriter is a blocking call on a suspension-mode writer.
	// It matches ErrCallModeMismatch.
	ErrSyncOnAsyncWriter = fmt.Errorf("synchronous call on asynchronous writer: %w", ErrCallModeMismatch)

	// ErrAsyncOnSyncWriter is a suspension call on a blocking writer.
	// It matches ErrCallModeMismatch.
	ErrAsyncOnSyncWriter = fmt.Errorf("asynchronous call on synchronous writer: %w", ErrCallModeMismatch)

	// ErrMissingPathForContainedMember indicates a contained navigation member
	// was entered without a path to the containing resource.
	ErrMissingPathForContainedMember = errors.New("missing path for contained member")

	// ErrCountInRequest indicates a collection count while writing a request.
	ErrCountInRequest = errors.New("collection count in request")

	// ErrNextLinkInRequest indicates a collection next link while writing a
	// request.
	ErrNextLinkInRequest = errors.New("collection next link in request")

	// ErrDeltaLinkNotTopLevel indicates a delta link on a nested collection.
	ErrDeltaLinkNotTopLevel = errors.New("delta link on non-top-level collection")

	// ErrInvalidItem indicates a malformed item such as a nested reference
	// without a name.
	ErrInvalidItem = errors.New("invalid item")

	// ErrClosed indicates the writer has been closed.
	ErrClosed = errors.New("writer closed")
)

// errorCode identifies a writer failure. It is not exported; use the
// sentinel errors for error checking.
type errorCode string

const (
	codeInvalidTransition       errorCode = "invalid_transition"
	codeInvalidTopLevelShape    errorCode = "invalid_top_level_shape"
	codeDuplicateField          errorCode = "duplicate_field"
	codeIncompatibleType        errorCode = "incompatible_type"
	codeUnknownType             errorCode = "unknown_type"
	codeMaxNestingDepth         errorCode = "max_nesting_depth"
	codeDeferredInRequest       errorCode = "deferred_reference_in_request"
	codeReferenceLinkInResponse errorCode = "reference_link_in_response"
	codeMultipleItems           errorCode = "multiple_items_in_nested_content"
	codeCardinality             errorCode = "nested_cardinality_mismatch"
	codeMissingContainedPath    errorCode = "missing_path_for_contained_member"
	codeCountInRequest          errorCode = "count_in_request"
	codeNextLinkInRequest       errorCode = "next_link_in_request"
	codeDeltaLinkNotTopLevel    errorCode = "delta_link_not_top_level"
	codeInvalidItem             errorCode = "invalid_item"
)

// sentinel returns the exported error a code maps to.
func (c errorCode) sentinel() error {
	switch c {
	case codeInvalidTransition:
		return ErrInvalidTransition
	case codeInvalidTopLevelShape:
		return ErrInvalidTopLevelShape
	case codeDuplicateField:
		return ErrDuplicateField
	case codeIncompatibleType:
		return ErrIncompatibleType
	case codeUnknownType:
		return ErrUnknownType
	case codeMaxNestingDepth:
		return ErrMaxNestingDepthExceeded
	case codeDeferredInRequest:
		return ErrDeferredReferenceInRequest
	case codeReferenceLinkInResponse:
		return ErrReferenceLinkInResponse
	case codeMultipleItems:
		return ErrMultipleItemsInNestedContent
	case codeCardinality:
		return ErrNestedCardinalityMismatch
	case codeMissingContainedPath:
		return ErrMissingPathForContainedMember
	case codeCountInRequest:
		return ErrCountInRequest
	case codeNextLinkInRequest:
		return ErrNextLinkInRequest
	case codeDeltaLinkNotTopLevel:
		return ErrDeltaLinkNotTopLevel
	case codeInvalidItem:
		return ErrInvalidItem
	default:
		return nil
	}
}

// writerError is the error type returned for state machine failures.
// State records the writer state the failing call was made in.
type writerError struct {
	Code    errorCode
	State   State
	Message string
}

func (e *writerError) Error() string {
	return fmt.Sprintf("payloadwriter: %s (state %s): %s", e.Code, e.State, e.Message)
}

// Is implements errors.Is for sentinel error matching.
func (e *writerError) Is(target error) bool {
	s := e.Code.sentinel()
	return s != nil && s == target
}

// newError creates a new writer error.
func newError(code errorCode, state State, format string, args ...any) *writerError {
	return &writerError{
		Code:    code,
		State:   state,
		Message: fmt.Sprintf(format, args...),
	}
}

// ErrorDetail describes an error reported in the middle of a payload.
type ErrorDetail struct {
	Code    string
	Message string
	Target  string
}

// IsWriterError reports whether err, or an error it wraps, was raised by the
// writer's own validation rather than by an encoder or a collaborator.
func IsWriterError(err error) bool {
	var we *writerError
	return errors.As(err, &we)
}
