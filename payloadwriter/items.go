package payloadwriter

// Property is one structural field of a resource body.
type Property struct {
	Name  string
	Value any
}

// Resource is one structured record in the payload graph.
type Resource struct {
	// TypeName is the payload-declared type. Empty means the type required
	// by the enclosing scope.
	TypeName string

	// ID is the canonical identity of the resource, if known.
	ID string

	// Key is used for the key segment when a member of this resource is
	// addressed. Empty means a placeholder key.
	Key string

	Properties []Property
}

// Collection is an ordered sequence of resources.
type Collection struct {
	// TypeName is the element type name. Empty means inherited.
	TypeName string

	// Count is the total number of resources, responses only.
	Count *int64

	// NextLink points to the next page, responses only.
	NextLink string

	// DeltaLink is allowed on top-level collections only.
	DeltaLink string
}

// NestedInfo announces a named member of a resource that links to another
// resource or collection.
type NestedInfo struct {
	Name string

	// URL is the link written when the member is deferred.
	URL string

	// IsCollection declares the member cardinality. Nil means the
	// cardinality is taken from the model.
	IsCollection *bool
}

// ReferenceLink is a link to an existing resource, written inside a nested
// reference of a request payload.
type ReferenceLink struct {
	URL string
}
