package payloadwriter

// topLevelShape is the kind of item a writer was constructed for.
type topLevelShape int

const (
	shapeResource topLevelShape = iota
	shapeCollection
)

func (s topLevelShape) String() string {
	if s == shapeCollection {
		return "collection"
	}
	return "resource"
}

// validateTransition reports whether a scope in state from may be followed by
// a scope in state to. nullItem tells whether the item of the current scope
// is a null resource. It depends on nothing but its arguments.
func validateTransition(from, to State, shape topLevelShape, nullItem bool) error {
	if from != StateError && to == StateError {
		return nil
	}

	switch from {
	case StateStart:
		switch to {
		case StateCollection:
			if shape != shapeCollection {
				return newError(codeInvalidTopLevelShape, from, "cannot write a top-level collection with a writer for a single %s", shape)
			}
			return nil
		case StateResource:
			if shape != shapeResource {
				return newError(codeInvalidTopLevelShape, from, "cannot write a top-level resource with a writer for a %s", shape)
			}
			return nil
		}
	case StateResource:
		if to == StateNestedReference {
			if nullItem {
				return newError(codeInvalidTransition, from, "a null resource cannot have nested members")
			}
			return nil
		}
	case StateCollection:
		if to == StateResource {
			return nil
		}
	case StateNestedReference:
		if to == StateNestedReferenceWithContent {
			return nil
		}
	case StateNestedReferenceWithContent:
		if to == StateCollection || to == StateResource {
			return nil
		}
	case StateCompleted:
		return newError(codeInvalidTransition, from, "cannot write after the payload was completed")
	case StateError:
		if to == StateError {
			return nil
		}
		return newError(codeInvalidTransition, from, "cannot write after the writer failed")
	}
	return newError(codeInvalidTransition, from, "cannot transition to %s", to)
}
