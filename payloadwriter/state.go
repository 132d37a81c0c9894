// Package payloadwriter implements a streaming writer for resource-graph
// payloads.
//
// A Writer accepts an incremental sequence of write-intent calls (start a
// collection, start a resource, start a nested reference, end) and enforces
// the payload grammar over it. Every call is validated against the current
// scope, checked for duplicate fields, resolved against a structural Model,
// shaped by a Selection and then handed to an Encoder that produces the
// actual bytes.
//
//	w := payloadwriter.New(enc, &payloadwriter.Config{WritingCollection: true})
//	w.StartCollection(&payloadwriter.Collection{})
//	w.StartResource(&payloadwriter.Resource{Properties: props})
//	w.End()
//	w.End()
//
// Any failure moves the writer into StateError, after which every further
// call except NotifyInStreamError fails with ErrInvalidTransition. A Writer
// is not safe for concurrent use.
package payloadwriter

// State is the state of one writer scope.
type State int

const (
	// StateStart is the root state before anything was written.
	StateStart State = iota
	// StateResource is an open resource.
	StateResource
	// StateCollection is an open collection of resources.
	StateCollection
	// StateNestedReference is a nested member that has no content yet.
	StateNestedReference
	// StateNestedReferenceWithContent is a nested member with content.
	StateNestedReferenceWithContent
	// StateCompleted is the root state after the payload was finalized.
	StateCompleted
	// StateError is the terminal failure state.
	StateError
)

// String returns the name of the state.
func (s State) String() string {
	switch s {
	case StateStart:
		return "Start"
	case StateResource:
		return "Resource"
	case StateCollection:
		return "Collection"
	case StateNestedReference:
		return "NestedReference"
	case StateNestedReferenceWithContent:
		return "NestedReferenceWithContent"
	case StateCompleted:
		return "Completed"
	case StateError:
		return "Error"
	default:
		return "Unknown"
	}
}

// IsNested reports whether s is one of the nested reference states.
func (s State) IsNested() bool {
	return s == StateNestedReference || s == StateNestedReferenceWithContent
}
