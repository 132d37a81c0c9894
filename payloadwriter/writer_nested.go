package payloadwriter

// checkForNestedContent runs before every write-intent call that adds an
// item. The first item of a nested reference promotes it to
// StateNestedReferenceWithContent; any further item is only accepted for a
// multi-valued member of a request.
func (w *Writer) checkForNestedContent() error {
	cur := w.scopes.current()
	switch cur.state {
	case StateNestedReference:
		return w.promoteNested(cur)
	case StateNestedReferenceWithContent:
		if w.request && cur.nested.multiValued() {
			return nil
		}
		return newError(codeMultipleItems, cur.state, "nested member %q already has content", cur.nested.info.Name)
	}
	return nil
}

// promoteNested turns an empty nested reference into one with content. It
// checks the member name against the owning resource, resolves the
// navigation member and extends the path before the encoder is told.
func (w *Writer) promoteNested(s *scope) error {
	if err := validateTransition(s.state, StateNestedReferenceWithContent, w.shape, false); err != nil {
		return err
	}
	parent := w.scopes.parent()
	info := s.nested.info

	if err := w.checkField(parent.resource, info.Name, fieldNested); err != nil {
		return err
	}
	if err := w.resolveMember(s, parent); err != nil {
		return err
	}
	if err := w.resolveTarget(s, parent); err != nil {
		return err
	}

	s.state = StateNestedReferenceWithContent
	s.nested.hasContent = true

	if s.skip {
		return nil
	}
	return w.enc.StartNestedWithContent(w.currentInfo(), info)
}

// resolveMember looks up the navigation member of a nested scope on the
// actual type of its owning resource and checks the announced cardinality.
// Undeclared members stay unresolved.
func (w *Writer) resolveMember(s, parent *scope) error {
	n := s.nested
	if n.resolved {
		return nil
	}
	n.resolved = true
	if w.model == nil || parent.typ == nil {
		return nil
	}
	member, ok := w.model.NavigationMember(parent.typ, n.info.Name)
	if !ok {
		return nil
	}
	if n.info.IsCollection != nil && *n.info.IsCollection != member.IsCollection() && !w.lenient {
		return newError(codeCardinality, s.state, "member %q is declared with collection=%t but announced with collection=%t",
			n.info.Name, member.IsCollection(), *n.info.IsCollection)
	}
	n.member = member
	return nil
}

// resolveTarget overrides the inherited type, navigation source and path of
// a nested scope with those of its navigation member.
func (w *Writer) resolveTarget(s, parent *scope) error {
	n := s.nested
	owner := parent.resourceItem()

	path := parent.path
	if n.member != nil && n.member.ContainsTarget() && path.IsEmpty() {
		return newError(codeMissingContainedPath, s.state, "contained member %q needs the path of its containing resource", n.info.Name)
	}
	if !path.IsEmpty() {
		if path.NeedsKey() {
			key := ""
			if owner != nil {
				key = owner.Key
			}
			path = path.WithKey(key)
		}
		path = path.WithNavigation(n.info.Name, n.multiValued())
	}
	s.path = path

	s.typ = nil
	s.source = nil
	if n.member == nil {
		return nil
	}
	s.typ = n.member.Target()
	if parent.source != nil {
		if target, ok := w.model.NavigationTarget(parent.source, n.member); ok {
			s.source = target
		}
	}
	return nil
}

// checkCollectionCardinality rejects a collection written into a
// single-valued member.
func (w *Writer) checkCollectionCardinality(s *scope) error {
	n := s.nested
	single := false
	switch {
	case n.info.IsCollection != nil:
		single = !*n.info.IsCollection
	case n.member != nil:
		single = !n.member.IsCollection()
	}
	if single {
		return newError(codeCardinality, s.state, "member %q is single-valued and cannot contain a collection", n.info.Name)
	}
	return nil
}
