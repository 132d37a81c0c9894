package payloadwriter

// StructuredType is a resource type of the structural model.
type StructuredType interface {
	// Name returns the qualified type name.
	Name() string
}

// NavigationSource is a container of resources, such as an entity set, a
// singleton, or a contained member.
type NavigationSource interface {
	// Name returns the container name used in paths.
	Name() string
}

// NavigationMember is a declared member of a structured type that links to
// other resources.
type NavigationMember interface {
	Name() string
	// Target returns the element type of the linked resources.
	Target() StructuredType
	// IsCollection reports whether the member is multi-valued.
	IsCollection() bool
	// ContainsTarget reports whether the linked resources are contained in
	// the owning resource.
	ContainsTarget() bool
}

// Model answers the structural questions the writer needs. Implementations
// must be safe for concurrent use; the writer never mutates them.
type Model interface {
	// ResolveType returns the type with the given qualified name.
	ResolveType(name string) (StructuredType, bool)

	// ElementType returns the element type of a container.
	ElementType(source NavigationSource) StructuredType

	// NavigationMember returns the navigation member of owner (or one of its
	// base types) with the given name.
	NavigationMember(owner StructuredType, name string) (NavigationMember, bool)

	// NavigationTarget returns the container the member points into from
	// source. It returns false when no target can be determined.
	NavigationTarget(source NavigationSource, member NavigationMember) (NavigationSource, bool)

	// IsContained reports whether source is a contained container.
	IsContained(source NavigationSource) bool

	// IsAssignable reports whether derived is base or one of its subtypes.
	IsAssignable(base, derived StructuredType) bool
}

// Selection is a pre-parsed query-shaping tree. A nil Selection selects
// everything.
type Selection interface {
	// Sub returns the selection that applies beneath member.
	Sub(member string) Selection
	// Excludes reports whether member is left out by this selection.
	Excludes(member string) bool
}

// Listener is notified about terminal writer transitions.
type Listener interface {
	OnError(err error)
	OnCompleted()
}
