package payloadwriter

import "context"

// Encoder produces the bytes of one payload format. The writer calls the
// hooks only for validated items in a legal order and never for scopes whose
// output is suppressed. Any hook error moves the writer into StateError and
// is returned to the caller.
type Encoder interface {
	StartPayload() error
	EndPayload() error

	// StartResource is called with a nil resource for a null nested
	// resource.
	StartResource(si ScopeInfo, r *Resource) error
	EndResource(si ScopeInfo, r *Resource) error

	StartCollection(si ScopeInfo, c *Collection) error
	EndCollection(si ScopeInfo, c *Collection) error

	// WriteDeferredNested writes a nested member that has no content.
	WriteDeferredNested(si ScopeInfo, n *NestedInfo) error
	StartNestedWithContent(si ScopeInfo, n *NestedInfo) error
	EndNestedWithContent(si ScopeInfo, n *NestedInfo) error

	// WriteReferenceLink writes a link inside the nested member parent.
	WriteReferenceLink(parent *NestedInfo, link *ReferenceLink) error

	Flush() error
}

// ContextFlusher is implemented by encoders whose flush may suspend. The
// AsyncWriter uses it in place of Flush.
type ContextFlusher interface {
	FlushContext(ctx context.Context) error
}

// InStreamErrorWriter is implemented by encoders that can report an error in
// the middle of a payload.
type InStreamErrorWriter interface {
	WriteInStreamError(detail *ErrorDetail) error
}
