package payloadwriter

import (
	"context"
	"fmt"
	"log/slog"
)

// Writer is the streaming payload writer. Create it with New.
//
// The blocking methods on Writer and the context-aware methods on the
// AsyncWriter returned by Async drive the same state machine; which of the
// two may be used is fixed by Config.Async.
type Writer struct {
	enc      Encoder
	model    Model
	listener Listener
	logger   *slog.Logger

	shape      topLevelShape
	request    bool
	delta      bool
	async      bool
	lenient    bool
	duplicates duplicatePolicy
	maxDepth   int

	scopes         scopeStack
	depth          int
	payloadStarted bool
	closed         bool
	warnings       []error
}

// New creates a writer that hands validated items to enc.
// Pass nil for cfg to write a single top-level response resource with no
// model.
func New(enc Encoder, cfg *Config) *Writer {
	if cfg == nil {
		cfg = &Config{}
	}

	w := &Writer{
		enc:      enc,
		model:    cfg.Model,
		listener: cfg.Listener,
		logger:   cfg.Logger,
		request:  cfg.WritingRequest,
		delta:    cfg.WritingDelta,
		async:    cfg.Async,
		lenient:  cfg.Lenient,
		maxDepth: defaultMaxNestingDepth,
	}
	if w.logger == nil {
		w.logger = slog.Default()
	}
	if cfg.WritingCollection {
		w.shape = shapeCollection
	}
	if cfg.MaxNestingDepth > 0 {
		w.maxDepth = cfg.MaxNestingDepth
	}
	switch {
	case cfg.Lenient:
		w.duplicates = duplicatesIgnore
	case cfg.AllowDuplicateFields:
		w.duplicates = duplicatesWarn
	default:
		w.duplicates = duplicatesReject
	}

	typ := cfg.ResourceType
	if typ == nil && cfg.Model != nil && cfg.NavigationSource != nil {
		typ = cfg.Model.ElementType(cfg.NavigationSource)
	}
	path := cfg.Path
	if path.IsEmpty() {
		path = sourcePath(cfg.NavigationSource)
	}

	w.scopes.push(&scope{
		state:     StateStart,
		source:    cfg.NavigationSource,
		typ:       typ,
		selection: cfg.Selection,
		path:      path,
	})
	return w
}

// State returns the state of the innermost scope.
func (w *Writer) State() State {
	return w.scopes.current().state
}

// Depth returns the current resource nesting depth.
func (w *Writer) Depth() int {
	return w.depth
}

// Warnings returns the relaxed validation failures reported so far.
func (w *Writer) Warnings() []error {
	out := make([]error, len(w.warnings))
	copy(out, w.warnings)
	return out
}

// StartCollection starts a collection, either at the top level or as the
// content of a nested reference.
func (w *Writer) StartCollection(c *Collection) error {
	return w.run(false, func() error { return w.startCollection(c) })
}

// StartResource starts a resource at the top level, inside a collection or
// as the content of a nested reference. r may be nil only directly inside a
// nested reference, to write a null single-valued member.
func (w *Writer) StartResource(r *Resource) error {
	return w.run(false, func() error { return w.startResource(r) })
}

// StartNested starts a nested member of the current resource. Whether the
// member is deferred or has content is decided by the next call.
func (w *Writer) StartNested(n *NestedInfo) error {
	return w.run(false, func() error { return w.startNested(n) })
}

// WriteReferenceLink writes a link to an existing resource into the current
// nested member. Only valid while writing a request.
func (w *Writer) WriteReferenceLink(l *ReferenceLink) error {
	return w.run(false, func() error { return w.writeReferenceLink(l) })
}

// End closes the innermost scope. Closing the last scope finalizes and
// flushes the payload.
func (w *Writer) End() error {
	return w.runEnd(false, w.enc.Flush)
}

// NotifyInStreamError moves the writer into StateError. Encoders
// implementing InStreamErrorWriter get the chance to report detail first.
// It may be repeated once the writer failed, but not called once the
// payload was completed.
func (w *Writer) NotifyInStreamError(detail *ErrorDetail) error {
	if err := w.verifyCanWrite(false); err != nil {
		return err
	}
	return w.notifyInStreamError(detail)
}

// Flush flushes the encoder. A failing flush moves the writer into
// StateError.
func (w *Writer) Flush() error {
	if err := w.verifyCanWrite(false); err != nil {
		return err
	}
	if err := w.verifyNotFaulted(); err != nil {
		return err
	}
	return w.intercept(w.enc.Flush)
}

// Close releases the writer. Every later call fails with ErrClosed.
// Close is safe to call multiple times.
func (w *Writer) Close() error {
	w.closed = true
	return nil
}

// verifyCanWrite checks disposal and the calling convention. It never
// changes the writer state.
func (w *Writer) verifyCanWrite(async bool) error {
	if w.closed {
		return ErrClosed
	}
	if async != w.async {
		if async {
			return ErrAsyncOnSyncWriter
		}
		return ErrSyncOnAsyncWriter
	}
	return nil
}

func (w *Writer) verifyNotFaulted() error {
	if w.State() == StateError {
		return newError(codeInvalidTransition, StateError, "cannot flush after the writer failed")
	}
	return nil
}

// run performs one write-intent operation with the uniform checks.
func (w *Writer) run(async bool, op func() error) error {
	if err := w.verifyCanWrite(async); err != nil {
		return err
	}
	return w.intercept(op)
}

// runEnd closes a scope and, if the payload is complete, finalizes it with
// flush.
func (w *Writer) runEnd(async bool, flush func() error) error {
	if err := w.verifyCanWrite(async); err != nil {
		return err
	}
	var completed bool
	err := w.intercept(func() error {
		var err error
		completed, err = w.end()
		return err
	})
	if err != nil || !completed {
		return err
	}
	return w.finish(flush)
}

// intercept runs fn and moves the writer into StateError if it fails.
func (w *Writer) intercept(fn func() error) error {
	err := fn()
	if err != nil {
		w.fail(err)
	}
	return err
}

// fail pushes an error scope. It is a no-op if the writer already failed.
func (w *Writer) fail(err error) {
	cur := w.scopes.current()
	if validateTransition(cur.state, StateError, w.shape, false) != nil || cur.state == StateError {
		return
	}
	w.scopes.push(&scope{
		state: StateError,
		item:  cur.item,
		skip:  cur.skip,
	})
	w.logger.Debug("payloadwriter: entering error state",
		"from", cur.state, "depth", w.depth, "error", err)
	if w.listener != nil {
		w.listener.OnError(err)
	}
}

func (w *Writer) warn(err error) {
	w.warnings = append(w.warnings, err)
	w.logger.Warn("payloadwriter: relaxed validation failure", "error", err)
}

// startPayload calls the encoder's StartPayload before the first item.
func (w *Writer) startPayload() error {
	if w.payloadStarted {
		return nil
	}
	w.payloadStarted = true
	return w.enc.StartPayload()
}

// childScope creates a scope inheriting the context of parent.
func childScope(parent *scope, state State, item any) *scope {
	return &scope{
		state:     state,
		item:      item,
		skip:      parent.skip,
		source:    parent.source,
		typ:       parent.typ,
		selection: parent.selection,
		path:      parent.path,
	}
}

// enter pushes s and counts it as an item of a nested parent.
func (w *Writer) enter(parent, s *scope) {
	if parent.nested != nil {
		parent.nested.items++
	}
	w.scopes.push(s)
}

func (w *Writer) startCollection(c *Collection) error {
	if c == nil {
		return newError(codeInvalidItem, w.State(), "collection must not be nil")
	}
	if err := w.checkForNestedContent(); err != nil {
		return err
	}
	parent := w.scopes.current()
	if err := validateTransition(parent.state, StateCollection, w.shape, parent.isNullResource()); err != nil {
		return err
	}
	if parent.nested != nil {
		if err := w.checkCollectionCardinality(parent); err != nil {
			return err
		}
	}
	if err := w.validateCollectionLinks(c); err != nil {
		return err
	}
	s := childScope(parent, StateCollection, c)
	if err := w.resolveCollectionType(s, c); err != nil {
		return err
	}
	if err := w.startPayload(); err != nil {
		return err
	}

	model, source, typ, path := w.model, s.source, s.typ, s.path
	s.collection = &collectionScope{
		typeContext: newTypeContextCell(func() TypeContext {
			return computeTypeContext(model, source, typ, path, true, false)
		}),
	}
	w.enter(parent, s)

	if s.skip {
		return nil
	}
	return w.enc.StartCollection(w.currentInfo(), c)
}

// validateCollectionLinks rejects response-only collection fields in
// requests.
func (w *Writer) validateCollectionLinks(c *Collection) error {
	if !w.request {
		return nil
	}
	if c.Count != nil {
		return newError(codeCountInRequest, w.State(), "a collection count is only allowed in responses")
	}
	if c.NextLink != "" {
		return newError(codeNextLinkInRequest, w.State(), "a collection next link is only allowed in responses")
	}
	return nil
}

func (w *Writer) resolveCollectionType(s *scope, c *Collection) error {
	if c.TypeName == "" || w.model == nil {
		return nil
	}
	t, err := w.resolveType(c.TypeName, s.typ)
	if err != nil {
		return err
	}
	if t != nil {
		s.typ = t
	}
	return nil
}

// resolveType resolves a payload type name and checks it against the
// constraint type. It returns nil without error when the name is unknown in
// lenient mode.
func (w *Writer) resolveType(name string, constraint StructuredType) (StructuredType, error) {
	t, ok := w.model.ResolveType(name)
	if !ok {
		if w.lenient {
			return nil, nil
		}
		return nil, newError(codeUnknownType, w.State(), "type %q is not defined in the model", name)
	}
	if constraint != nil && !w.lenient && !w.model.IsAssignable(constraint, t) {
		return nil, newError(codeIncompatibleType, w.State(), "type %q is not compatible with expected type %q", name, constraint.Name())
	}
	return t, nil
}

func (w *Writer) startResource(r *Resource) error {
	if r == nil && w.State() != StateNestedReference {
		return newError(codeInvalidTransition, w.State(), "a null resource can only be written into an empty nested member")
	}
	if err := w.checkForNestedContent(); err != nil {
		return err
	}
	parent := w.scopes.current()
	if err := validateTransition(parent.state, StateResource, w.shape, parent.isNullResource()); err != nil {
		return err
	}
	if r == nil && parent.nested.multiValued() {
		return newError(codeCardinality, parent.state, "member %q is multi-valued and cannot be null", parent.nested.info.Name)
	}

	s := childScope(parent, StateResource, r)
	rs := &resourceScope{}
	if w.duplicates != duplicatesIgnore {
		rs.fields = newDuplicateTracker()
	}

	declared := parent.typ
	actual := declared
	if r != nil && r.TypeName != "" && w.model != nil {
		t, err := w.resolveType(r.TypeName, declared)
		if err != nil {
			return err
		}
		if t != nil {
			actual = t
		}
	}
	if declared == nil {
		declared = actual
	}
	rs.declaredType = declared
	rs.actualType = actual
	s.typ = actual

	if parent.collection != nil && (r == nil || r.TypeName == "") {
		rs.typeContext = parent.collection.typeContext
	} else {
		model, source, path := w.model, s.source, s.path
		fromCollection := parent.collection != nil
		rs.typeContext = newTypeContextCell(func() TypeContext {
			return computeTypeContext(model, source, declared, path, false, !fromCollection)
		})
	}

	if w.delta && parent.state == StateStart {
		rs.suppressBody = true
	}

	if !s.skip && w.depth+1 > w.maxDepth {
		return newError(codeMaxNestingDepth, parent.state, "nesting depth would exceed the maximum of %d", w.maxDepth)
	}
	if r != nil {
		for _, p := range r.Properties {
			if err := w.checkField(rs, p.Name, fieldStructural); err != nil {
				return err
			}
		}
	}
	if err := w.startPayload(); err != nil {
		return err
	}

	// Validation is done; from here on the scope is entered.
	if parent.collection != nil {
		parent.collection.count++
	}
	if !s.skip {
		w.depth++
		rs.counted = true
	}
	s.resource = rs
	w.enter(parent, s)

	if s.skip || rs.suppressBody {
		return nil
	}
	return w.enc.StartResource(w.currentInfo(), r)
}

func (w *Writer) startNested(n *NestedInfo) error {
	parent := w.scopes.current()
	if err := validateTransition(parent.state, StateNestedReference, w.shape, parent.isNullResource()); err != nil {
		return err
	}
	if n == nil || n.Name == "" {
		return newError(codeInvalidItem, parent.state, "a nested member needs a name")
	}

	s := childScope(parent, StateNestedReference, n)
	sub, excluded := projectMember(parent.selection, n.Name)
	if excluded {
		s.skip = true
	}
	s.selection = sub
	s.nested = &nestedScope{info: n}
	w.scopes.push(s)
	return nil
}

func (w *Writer) writeReferenceLink(l *ReferenceLink) error {
	cur := w.scopes.current()
	if !cur.state.IsNested() {
		return newError(codeInvalidTransition, cur.state, "reference links can only be written inside a nested member")
	}
	if !w.request {
		return newError(codeReferenceLinkInResponse, cur.state, "reference links are only allowed in requests")
	}
	if l == nil || l.URL == "" {
		return newError(codeInvalidItem, cur.state, "a reference link needs a URL")
	}
	if err := w.checkForNestedContent(); err != nil {
		return err
	}
	cur.nested.items++
	if cur.skip {
		return nil
	}
	return w.enc.WriteReferenceLink(cur.nested.info, l)
}

// end closes the innermost scope. completed is true when the stack returned
// to the root and the root was replaced by the completed scope.
func (w *Writer) end() (completed bool, err error) {
	cur := w.scopes.current()
	switch cur.state {
	case StateResource:
		if err := w.endResource(cur); err != nil {
			return false, err
		}
	case StateCollection:
		if err := w.endCollection(cur); err != nil {
			return false, err
		}
	case StateNestedReference:
		if err := w.endDeferredNested(cur); err != nil {
			return false, err
		}
	case StateNestedReferenceWithContent:
		if !cur.skip {
			if err := w.enc.EndNestedWithContent(w.currentInfo(), cur.nested.info); err != nil {
				return false, err
			}
		}
		w.markProcessed(cur)
	default:
		return false, newError(codeInvalidTransition, cur.state, "there is no open scope to end")
	}

	w.scopes.pop()
	if w.scopes.len() > 1 {
		return false, nil
	}
	root := w.scopes.current()
	w.scopes.replaceRoot(&scope{
		state:     StateCompleted,
		source:    root.source,
		typ:       root.typ,
		selection: root.selection,
		path:      root.path,
	})
	return true, nil
}

func (w *Writer) endResource(s *scope) error {
	rs := s.resource
	if !s.skip && !rs.suppressBody {
		if err := w.enc.EndResource(w.currentInfo(), s.resourceItem()); err != nil {
			return err
		}
	}
	if rs.counted {
		w.depth--
	}
	return nil
}

func (w *Writer) endCollection(s *scope) error {
	c := s.collectionItem()
	if err := w.validateCollectionLinks(c); err != nil {
		return err
	}
	if c.DeltaLink != "" && w.scopes.len() > 2 {
		return newError(codeDeltaLinkNotTopLevel, s.state, "only top-level collections may carry a delta link")
	}
	if s.skip {
		return nil
	}
	return w.enc.EndCollection(w.currentInfo(), c)
}

func (w *Writer) endDeferredNested(s *scope) error {
	if w.request {
		return newError(codeDeferredInRequest, s.state, "nested member %q has no content; deferred members are only allowed in responses", s.nested.info.Name)
	}
	parent := w.scopes.parent()
	if err := w.resolveMember(s, parent); err != nil {
		return err
	}
	if err := w.checkField(parent.resource, s.nested.info.Name, fieldNested); err != nil {
		return err
	}
	if !s.skip {
		if err := w.enc.WriteDeferredNested(w.currentInfo(), s.nested.info); err != nil {
			return err
		}
	}
	w.markProcessed(s)
	return nil
}

// markProcessed records a finished nested member on its owning resource.
func (w *Writer) markProcessed(s *scope) {
	if parent := w.scopes.parent(); parent != nil && parent.resource != nil {
		parent.resource.processed = append(parent.resource.processed, s.nested.info.Name)
	}
}

// finish ends the payload once the root was completed. A failure moves the
// completed writer into StateError.
func (w *Writer) finish(flush func() error) error {
	err := w.intercept(func() error {
		if err := w.enc.EndPayload(); err != nil {
			return fmt.Errorf("payloadwriter: end payload: %w", err)
		}
		return flush()
	})
	if err != nil {
		return err
	}
	if w.listener != nil {
		w.listener.OnCompleted()
	}
	return nil
}

func (w *Writer) notifyInStreamError(detail *ErrorDetail) error {
	cur := w.scopes.current()
	switch cur.state {
	case StateCompleted:
		return newError(codeInvalidTransition, cur.state, "cannot report an error after the payload was completed")
	case StateError:
		return nil
	}
	if ew, ok := w.enc.(InStreamErrorWriter); ok && !cur.skip && w.payloadStarted {
		if err := ew.WriteInStreamError(detail); err != nil {
			w.fail(err)
			return err
		}
	}
	w.fail(inStreamError(detail))
	return nil
}

func inStreamError(detail *ErrorDetail) error {
	if detail == nil {
		return fmt.Errorf("payloadwriter: in-stream error")
	}
	return fmt.Errorf("payloadwriter: in-stream error %s: %s", detail.Code, detail.Message)
}

// flushContext flushes through ContextFlusher when the encoder supports it.
func (w *Writer) flushContext(ctx context.Context) error {
	if cf, ok := w.enc.(ContextFlusher); ok {
		return cf.FlushContext(ctx)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return w.enc.Flush()
}
