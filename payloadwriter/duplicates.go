package payloadwriter

// duplicatePolicy decides what happens when a field name recurs.
type duplicatePolicy int

const (
	duplicatesReject duplicatePolicy = iota
	duplicatesWarn
	duplicatesIgnore
)

// fieldKind tells structural fields and nested members apart so the error
// message can name both sides of a collision.
type fieldKind uint8

const (
	fieldStructural fieldKind = iota + 1
	fieldNested
)

func (k fieldKind) String() string {
	if k == fieldNested {
		return "nested member"
	}
	return "field"
}

// duplicateTracker records the field names written into one resource body.
type duplicateTracker struct {
	seen map[string]fieldKind
}

func newDuplicateTracker() *duplicateTracker {
	return &duplicateTracker{seen: make(map[string]fieldKind)}
}

// add records name and returns the kind it was first recorded as when it was
// already present.
func (t *duplicateTracker) add(name string, kind fieldKind) (fieldKind, bool) {
	if prev, ok := t.seen[name]; ok {
		return prev, true
	}
	t.seen[name] = kind
	return 0, false
}

// checkField records name in the tracker of rs and applies the writer's
// duplicate policy. Relaxed duplicates are kept as warnings.
func (w *Writer) checkField(rs *resourceScope, name string, kind fieldKind) error {
	if rs == nil || rs.fields == nil {
		return nil
	}
	prev, dup := rs.fields.add(name, kind)
	if !dup {
		return nil
	}
	err := newError(codeDuplicateField, w.State(), "%s %q already written as %s in this resource", kind, name, prev)
	if w.duplicates == duplicatesWarn {
		w.warn(err)
		return nil
	}
	return err
}
