// Package cborenc encodes payloads as Core Deterministic CBOR.
//
// The encoder uses the same logical layout as jsonenc: maps keyed by member
// names and annotations, arrays for collections. Because deterministic
// encoding sorts map keys, the tree is built in memory and emitted as one
// CBOR data item when the payload ends.
package cborenc

import (
	"errors"
	"fmt"
	"io"
	"reflect"

	"github.com/ahimsalabs/payloadwriter-go/payloadwriter"
	"github.com/ahimsalabs/payloadwriter-go/payloadwriter/internal/protocol"
	"github.com/fxamacker/cbor/v2"
)

// ErrUnsupported indicates a hook sequence the layout cannot represent.
var ErrUnsupported = errors.New("cborenc: unsupported hook sequence")

var encMode cbor.EncMode

var decMode cbor.DecMode

func init() {
	var err error

	encOptions := cbor.CoreDetEncOptions()
	encOptions.TextMarshaler = cbor.TextMarshalerTextString
	encMode, err = encOptions.EncMode()
	if err != nil {
		panic("cborenc: CBOR encoder initialization failed: " + err.Error())
	}

	decMode, err = cbor.DecOptions{
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
	}.DecMode()
	if err != nil {
		panic("cborenc: CBOR decoder initialization failed: " + err.Error())
	}
}

// Options configures an Encoder.
type Options struct {
	// OmitContext leaves out "@context" annotations.
	OmitContext bool
}

type nodeKind uint8

const (
	nodeObject nodeKind = iota + 1
	nodeArray
	nodeMember
)

type node struct {
	kind nodeKind

	obj map[string]any
	arr []any

	// member nodes
	name     string
	multi    bool
	items    []any
	links    []any
	coll     *node
	collInfo *payloadwriter.Collection

	envelope bool
}

// Encoder builds one payload and writes it as CBOR on EndPayload.
type Encoder struct {
	w           io.Writer
	omitContext bool
	stack       []*node
	root        any
	hasRoot     bool
}

var (
	_ payloadwriter.Encoder             = (*Encoder)(nil)
	_ payloadwriter.InStreamErrorWriter = (*Encoder)(nil)
)

// New creates an encoder writing to w.
// Pass nil for opts to use defaults.
func New(w io.Writer, opts *Options) *Encoder {
	if opts == nil {
		opts = &Options{}
	}
	return &Encoder{w: w, omitContext: opts.OmitContext}
}

// ContentType returns the media type of the output.
func (e *Encoder) ContentType() string {
	return protocol.ContentTypeCBOR
}

func (e *Encoder) top() *node {
	if len(e.stack) == 0 {
		return nil
	}
	return e.stack[len(e.stack)-1]
}

func (e *Encoder) push(n *node) {
	e.stack = append(e.stack, n)
}

func (e *Encoder) pop() *node {
	n := e.top()
	e.stack = e.stack[:len(e.stack)-1]
	return n
}

// attach hands a finished value to the enclosing node.
func (e *Encoder) attach(v any) error {
	top := e.top()
	if top == nil {
		if e.hasRoot {
			return fmt.Errorf("%w: second top-level value", ErrUnsupported)
		}
		e.root, e.hasRoot = v, true
		return nil
	}
	switch top.kind {
	case nodeArray:
		top.arr = append(top.arr, v)
	case nodeMember:
		if len(top.links) > 0 {
			return fmt.Errorf("%w: cannot mix reference links and resources in member %q", ErrUnsupported, top.name)
		}
		top.items = append(top.items, v)
	default:
		return fmt.Errorf("%w: value inside an object without a member", ErrUnsupported)
	}
	return nil
}

// ensureObject opens an implicit root object for members of a suppressed
// resource.
func (e *Encoder) ensureObject() *node {
	if top := e.top(); top != nil && top.kind == nodeObject {
		return top
	}
	obj := &node{kind: nodeObject, obj: map[string]any{}}
	e.push(obj)
	return obj
}

// StartPayload implements payloadwriter.Encoder.
func (e *Encoder) StartPayload() error {
	return nil
}

// EndPayload encodes the tree to the writer.
func (e *Encoder) EndPayload() error {
	for len(e.stack) > 0 {
		n := e.pop()
		if n.kind != nodeObject {
			return fmt.Errorf("%w: payload ended with open nodes", ErrUnsupported)
		}
		if err := e.attach(n.obj); err != nil {
			return err
		}
	}
	data, err := encMode.Marshal(e.root)
	if err != nil {
		return fmt.Errorf("cborenc: %w", err)
	}
	_, err = e.w.Write(data)
	return err
}

// StartResource opens a resource map.
func (e *Encoder) StartResource(si payloadwriter.ScopeInfo, r *payloadwriter.Resource) error {
	if r == nil {
		return e.attach(nil)
	}
	obj := map[string]any{}
	if si.TopLevel && !e.omitContext {
		if ctx := si.TypeContext().ContextPath; ctx != "" {
			obj[protocol.AnnotationContext] = ctx
		}
	}
	if si.DeclaredType != nil && si.ActualType != nil && si.DeclaredType.Name() != si.ActualType.Name() {
		obj[protocol.AnnotationType] = "#" + si.ActualType.Name()
	}
	if r.ID != "" {
		obj[protocol.AnnotationID] = r.ID
	}
	for _, p := range r.Properties {
		obj[p.Name] = p.Value
	}
	e.push(&node{kind: nodeObject, obj: obj})
	return nil
}

// EndResource closes a resource map.
func (e *Encoder) EndResource(si payloadwriter.ScopeInfo, r *payloadwriter.Resource) error {
	if r == nil {
		return nil
	}
	if top := e.top(); top == nil || top.kind != nodeObject {
		return fmt.Errorf("%w: end of resource outside a map", ErrUnsupported)
	}
	return e.attach(e.pop().obj)
}

// StartCollection opens an array, wrapped in an envelope at the top level.
func (e *Encoder) StartCollection(si payloadwriter.ScopeInfo, c *payloadwriter.Collection) error {
	arr := &node{kind: nodeArray, arr: []any{}}
	top := e.top()
	switch {
	case top == nil:
		env := &node{kind: nodeObject, obj: map[string]any{}, envelope: true}
		if !e.omitContext {
			if ctx := si.TypeContext().ContextPath; ctx != "" {
				env.obj[protocol.AnnotationContext] = ctx
			}
		}
		if c.Count != nil {
			env.obj[protocol.AnnotationCount] = *c.Count
		}
		e.push(env)
	case top.kind == nodeMember:
		if top.coll != nil || len(top.items) > 0 || len(top.links) > 0 {
			return fmt.Errorf("%w: member %q already has a value", ErrUnsupported, top.name)
		}
		top.coll = arr
		top.collInfo = c
	case top.kind == nodeArray:
		return fmt.Errorf("%w: collection inside a collection", ErrUnsupported)
	}
	e.push(arr)
	return nil
}

// EndCollection closes an array.
func (e *Encoder) EndCollection(si payloadwriter.ScopeInfo, c *payloadwriter.Collection) error {
	if top := e.top(); top == nil || top.kind != nodeArray {
		return fmt.Errorf("%w: end of collection outside an array", ErrUnsupported)
	}
	arr := e.pop()
	top := e.top()
	if top == nil || !top.envelope {
		return nil
	}
	top.obj[protocol.ValueMember] = arr.arr
	if c.NextLink != "" {
		top.obj[protocol.AnnotationNextLink] = c.NextLink
	}
	if c.DeltaLink != "" {
		top.obj[protocol.AnnotationDeltaLink] = c.DeltaLink
	}
	return e.attach(e.pop().obj)
}

// WriteDeferredNested records the navigation link of a member without
// content.
func (e *Encoder) WriteDeferredNested(si payloadwriter.ScopeInfo, n *payloadwriter.NestedInfo) error {
	if n.URL == "" {
		return nil
	}
	e.ensureObject().obj[protocol.NavigationLinkName(n.Name)] = n.URL
	return nil
}

// StartNestedWithContent opens a member of the current resource.
func (e *Encoder) StartNestedWithContent(si payloadwriter.ScopeInfo, n *payloadwriter.NestedInfo) error {
	e.ensureObject()
	e.push(&node{kind: nodeMember, name: n.Name, multi: si.MultiValued})
	return nil
}

// EndNestedWithContent stores the member in its resource.
func (e *Encoder) EndNestedWithContent(si payloadwriter.ScopeInfo, n *payloadwriter.NestedInfo) error {
	m := e.top()
	if m == nil || m.kind != nodeMember {
		return fmt.Errorf("%w: end of member %q outside a member", ErrUnsupported, n.Name)
	}
	e.pop()
	obj := e.top()
	if obj == nil || obj.kind != nodeObject {
		return fmt.Errorf("%w: member %q outside a map", ErrUnsupported, n.Name)
	}

	switch {
	case m.coll != nil:
		obj.obj[m.name] = m.coll.arr
		if m.collInfo.Count != nil {
			obj.obj[m.name+protocol.AnnotationCount] = *m.collInfo.Count
		}
		if m.collInfo.NextLink != "" {
			obj.obj[m.name+protocol.AnnotationNextLink] = m.collInfo.NextLink
		}
	case len(m.links) > 0:
		if m.multi {
			obj.obj[protocol.BindName(m.name)] = m.links
		} else {
			obj.obj[protocol.BindName(m.name)] = m.links[0]
		}
	case len(m.items) > 0:
		if m.multi {
			obj.obj[m.name] = m.items
		} else {
			obj.obj[m.name] = m.items[0]
		}
	}
	return nil
}

// WriteReferenceLink adds a link to "Name@bind".
func (e *Encoder) WriteReferenceLink(parent *payloadwriter.NestedInfo, link *payloadwriter.ReferenceLink) error {
	m := e.top()
	if m == nil || m.kind != nodeMember {
		return fmt.Errorf("%w: reference link outside a member", ErrUnsupported)
	}
	if len(m.items) > 0 || m.coll != nil {
		return fmt.Errorf("%w: cannot mix reference links and resources in member %q", ErrUnsupported, m.name)
	}
	m.links = append(m.links, link.URL)
	return nil
}

// WriteInStreamError discards the partial tree and writes a map holding
// only "@error".
func (e *Encoder) WriteInStreamError(detail *payloadwriter.ErrorDetail) error {
	body := map[string]any{}
	if detail != nil {
		body["code"] = detail.Code
		body["message"] = detail.Message
		if detail.Target != "" {
			body["target"] = detail.Target
		}
	}
	e.stack = nil
	data, err := encMode.Marshal(map[string]any{protocol.AnnotationError: body})
	if err != nil {
		return fmt.Errorf("cborenc: %w", err)
	}
	_, err = e.w.Write(data)
	return err
}

// Flush implements payloadwriter.Encoder. Output is written as a whole on
// EndPayload.
func (e *Encoder) Flush() error {
	return nil
}

// Decode decodes one payload with maps as map[string]any.
func Decode(data []byte) (any, error) {
	var v any
	if err := decMode.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("cborenc: %w", err)
	}
	return v, nil
}

// Diagnose returns the extended diagnostic notation of a payload.
func Diagnose(data []byte) (string, error) {
	return cbor.Diagnose(data)
}
