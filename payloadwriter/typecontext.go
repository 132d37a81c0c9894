package payloadwriter

// entitySuffix marks a context path that addresses a single resource of a
// collection-valued path.
const entitySuffix = "/$entity"

// TypeContext is the type information that applies to one scope.
type TypeContext struct {
	// SourceName is the name of the navigation source, if any.
	SourceName string
	// ExpectedTypeName is the type required by metadata, if known.
	ExpectedTypeName string
	// Contained reports whether the source is a contained container.
	Contained bool
	// FromCollection reports whether the context belongs to a collection and
	// is shared by its members.
	FromCollection bool
	// ContextPath is the canonical path the scope's items live at.
	ContextPath string
}

// typeContextCell computes a TypeContext on first access and keeps it for
// the lifetime of its scope. A collection hands its cell to members that
// have no explicit type.
type typeContextCell struct {
	compute func() TypeContext
	done    bool
	value   TypeContext
}

func newTypeContextCell(compute func() TypeContext) *typeContextCell {
	return &typeContextCell{compute: compute}
}

func (c *typeContextCell) get() TypeContext {
	if c == nil {
		return TypeContext{}
	}
	if !c.done {
		c.value = c.compute()
		c.done = true
		c.compute = nil
	}
	return c.value
}

// computeTypeContext builds the type context of a scope. singleResource is
// true for a resource that is not a member of a collection scope.
func computeTypeContext(model Model, source NavigationSource, typ StructuredType, path Path, fromCollection, singleResource bool) TypeContext {
	tc := TypeContext{FromCollection: fromCollection}
	if source != nil {
		tc.SourceName = source.Name()
		if model != nil {
			tc.Contained = model.IsContained(source)
		}
	}
	if typ != nil {
		tc.ExpectedTypeName = typ.Name()
	}
	switch {
	case !path.IsEmpty():
		tc.ContextPath = path.String()
		if singleResource && path.NeedsKey() {
			tc.ContextPath += entitySuffix
		}
	case tc.SourceName != "":
		tc.ContextPath = tc.SourceName
	default:
		tc.ContextPath = tc.ExpectedTypeName
	}
	return tc
}
