package payloadwriter

import "slices"

// scope is the bookkeeping record for one open nesting level. The common
// fields are inherited from the parent when the scope is created; exactly
// one variant pointer matching state is set for resource, collection and
// nested reference scopes.
type scope struct {
	state State
	item  any

	// skip suppresses encoder output for this scope and every descendant.
	// A child never resets it.
	skip bool

	source    NavigationSource
	typ       StructuredType
	selection Selection
	path      Path

	resource   *resourceScope
	collection *collectionScope
	nested     *nestedScope
}

type resourceScope struct {
	// fields is nil when duplicate checking is disabled.
	fields *duplicateTracker

	// declaredType is the type required by metadata; actualType is the type
	// announced by the payload and may be a subtype of it.
	declaredType StructuredType
	actualType   StructuredType

	typeContext *typeContextCell

	// suppressBody skips the resource's own hooks while nested members are
	// still emitted.
	suppressBody bool

	// counted is set when entering the scope incremented the nesting depth.
	counted bool

	// processed lists the nested members that were ended.
	processed []string
}

type collectionScope struct {
	count       int
	typeContext *typeContextCell
}

type nestedScope struct {
	info *NestedInfo

	member   NavigationMember
	resolved bool

	// hasContent flips once, when the first item is written.
	hasContent bool
	items      int
}

func (s *scope) resourceItem() *Resource {
	r, _ := s.item.(*Resource)
	return r
}

func (s *scope) collectionItem() *Collection {
	c, _ := s.item.(*Collection)
	return c
}

// isNullResource reports whether the scope is a resource scope for a null
// resource.
func (s *scope) isNullResource() bool {
	return s.state == StateResource && s.resourceItem() == nil
}

// multiValued reports whether a nested scope accepts several items. The
// announced cardinality wins over the model.
func (n *nestedScope) multiValued() bool {
	if n.info != nil && n.info.IsCollection != nil {
		return *n.info.IsCollection
	}
	return n.member != nil && n.member.IsCollection()
}

// scopeStack is a slice-backed LIFO of scopes. Index 0 is the root.
type scopeStack struct {
	scopes []*scope
}

func (st *scopeStack) push(s *scope) {
	st.scopes = append(st.scopes, s)
}

func (st *scopeStack) pop() *scope {
	n := len(st.scopes) - 1
	s := st.scopes[n]
	st.scopes[n] = nil
	st.scopes = st.scopes[:n]
	return s
}

func (st *scopeStack) len() int {
	return len(st.scopes)
}

// at returns the scope depth levels below the top, or nil.
func (st *scopeStack) at(depth int) *scope {
	i := len(st.scopes) - 1 - depth
	if i < 0 {
		return nil
	}
	return st.scopes[i]
}

func (st *scopeStack) current() *scope {
	return st.at(0)
}

func (st *scopeStack) parent() *scope {
	return st.at(1)
}

// replaceRoot swaps the root scope. It is only valid when the root is the
// only scope left.
func (st *scopeStack) replaceRoot(s *scope) {
	st.scopes[0] = s
}

// ScopeInfo is the context an encoder receives with every hook.
type ScopeInfo struct {
	State State

	// Depth is the writer's resource nesting depth.
	Depth int

	// Level is the position of the scope in the scope stack, the root being
	// level zero.
	Level int

	// TopLevel reports whether the scope's parent is the root.
	TopLevel bool

	// SkipWriting reports whether the scope's output is suppressed.
	SkipWriting bool

	NavigationSource NavigationSource
	DeclaredType     StructuredType
	ActualType       StructuredType
	Path             Path
	Selection        Selection

	// MultiValued reports whether a nested reference accepts several items.
	MultiValued bool

	// Members lists the nested members of a resource that were ended so
	// far, in order.
	Members []string

	typeContext *typeContextCell
}

// TypeContext returns the memoized type context of the scope.
func (si ScopeInfo) TypeContext() TypeContext {
	return si.typeContext.get()
}

// info builds the ScopeInfo for the scope at level.
func (w *Writer) info(level int) ScopeInfo {
	s := w.scopes.scopes[level]
	si := ScopeInfo{
		State:            s.state,
		Depth:            w.depth,
		Level:            level,
		TopLevel:         level == 1,
		SkipWriting:      s.skip,
		NavigationSource: s.source,
		DeclaredType:     s.typ,
		ActualType:       s.typ,
		Path:             s.path,
		Selection:        s.selection,
	}
	switch {
	case s.resource != nil:
		si.SkipWriting = s.skip || s.resource.suppressBody
		si.DeclaredType = s.resource.declaredType
		si.ActualType = s.resource.actualType
		si.typeContext = s.resource.typeContext
		si.Members = slices.Clone(s.resource.processed)
	case s.collection != nil:
		si.typeContext = s.collection.typeContext
	case s.nested != nil:
		si.MultiValued = s.nested.multiValued()
	}
	return si
}

// currentInfo builds the ScopeInfo for the top of the stack.
func (w *Writer) currentInfo() ScopeInfo {
	return w.info(w.scopes.len() - 1)
}
