// Package jsonenc streams payloads as JSON.
//
// A top-level collection is written as an envelope:
//
//	{"@context":"Customers","@count":2,"value":[{...},{...}],"@nextLink":"..."}
//
// Resources are objects carrying "@context" at the top level, "@type" when
// the actual type differs from the declared one, "@id" and their
// properties. Deferred nested members become "Name@navigationLink" and
// reference links become "Name@bind".
package jsonenc

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/ahimsalabs/payloadwriter-go/payloadwriter"
	"github.com/ahimsalabs/payloadwriter-go/payloadwriter/internal/protocol"
)

// ErrUnsupported indicates a hook sequence the JSON layout cannot
// represent.
var ErrUnsupported = errors.New("jsonenc: unsupported hook sequence")

const defaultBufferSize = 4096

// Options configures an Encoder.
type Options struct {
	// OmitContext leaves out "@context" annotations.
	OmitContext bool

	// BufferSize of the output buffer. Default: 4096.
	BufferSize int
}

type frameKind uint8

const (
	frameObject frameKind = iota + 1
	frameArray
	frameMember
)

// memberContent tracks what a nested member has opened in its owning object.
type memberContent uint8

const (
	memberEmpty memberContent = iota
	memberSingle
	memberItems
	memberLinks
	memberCollection
)

type frame struct {
	kind frameKind
	n    int

	// implicit objects are opened for members of a suppressed resource and
	// closed by EndPayload.
	implicit bool
	envelope bool

	// member frames
	name    string
	multi   bool
	content memberContent
}

// Encoder writes one JSON payload. It implements payloadwriter.Encoder,
// payloadwriter.ContextFlusher and payloadwriter.InStreamErrorWriter.
type Encoder struct {
	// Results of single-byte writes are not checked: bufio.Writer keeps
	// the first write error and returns it from every later write and
	// from Flush.
	w           *bufio.Writer
	omitContext bool
	frames      []*frame
}

var (
	_ payloadwriter.Encoder             = (*Encoder)(nil)
	_ payloadwriter.ContextFlusher      = (*Encoder)(nil)
	_ payloadwriter.InStreamErrorWriter = (*Encoder)(nil)
)

// New creates an encoder writing to w.
// Pass nil for opts to use defaults.
func New(w io.Writer, opts *Options) *Encoder {
	if opts == nil {
		opts = &Options{}
	}
	size := opts.BufferSize
	if size <= 0 {
		size = defaultBufferSize
	}
	return &Encoder{
		w:           bufio.NewWriterSize(w, size),
		omitContext: opts.OmitContext,
	}
}

// ContentType returns the media type of the output.
func (e *Encoder) ContentType() string {
	return protocol.ContentTypeJSON
}

func (e *Encoder) top() *frame {
	if len(e.frames) == 0 {
		return nil
	}
	return e.frames[len(e.frames)-1]
}

func (e *Encoder) push(f *frame) {
	e.frames = append(e.frames, f)
}

func (e *Encoder) pop() *frame {
	f := e.top()
	e.frames = e.frames[:len(e.frames)-1]
	return f
}

// owner returns the object a member frame writes its keys into.
func (e *Encoder) owner() *frame {
	if len(e.frames) < 2 {
		return nil
	}
	return e.frames[len(e.frames)-2]
}

func (e *Encoder) writeKey(obj *frame, name string) error {
	if obj == nil || obj.kind != frameObject {
		return fmt.Errorf("%w: member %q outside an object", ErrUnsupported, name)
	}
	if obj.n > 0 {
		e.w.WriteByte(',')
	}
	obj.n++
	if err := e.writeValue(name); err != nil {
		return err
	}
	return e.w.WriteByte(':')
}

func (e *Encoder) writeValue(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("jsonenc: %w", err)
	}
	_, err = e.w.Write(data)
	return err
}

func (e *Encoder) writeField(obj *frame, name string, v any) error {
	if err := e.writeKey(obj, name); err != nil {
		return err
	}
	return e.writeValue(v)
}

// nextElement writes the separator before an array element.
func (e *Encoder) nextElement(f *frame) {
	if f.n > 0 {
		e.w.WriteByte(',')
	}
	f.n++
}

// ensureObject opens an implicit object when a member arrives without an
// enclosing resource.
func (e *Encoder) ensureObject() {
	if top := e.top(); top != nil && top.kind == frameObject {
		return
	}
	e.w.WriteByte('{')
	e.push(&frame{kind: frameObject, implicit: true})
}

// beginItem positions the output for a resource or collection value.
func (e *Encoder) beginItem(collection bool, c *payloadwriter.Collection) error {
	top := e.top()
	if top == nil {
		return nil
	}
	switch top.kind {
	case frameArray:
		e.nextElement(top)
		return nil
	case frameMember:
		return e.openMember(top, collection, c)
	default:
		return fmt.Errorf("%w: value inside an object without a member", ErrUnsupported)
	}
}

func (e *Encoder) openMember(m *frame, collection bool, c *payloadwriter.Collection) error {
	obj := e.owner()
	switch m.content {
	case memberEmpty:
		if collection {
			if c != nil && c.Count != nil {
				if err := e.writeField(obj, m.name+protocol.AnnotationCount, *c.Count); err != nil {
					return err
				}
			}
			m.content = memberCollection
			return e.writeKey(obj, m.name)
		}
		if err := e.writeKey(obj, m.name); err != nil {
			return err
		}
		if m.multi {
			e.w.WriteByte('[')
			m.content = memberItems
			e.nextElement(m)
			return nil
		}
		m.content = memberSingle
		return nil
	case memberItems:
		if collection {
			return fmt.Errorf("%w: collection after resources in member %q", ErrUnsupported, m.name)
		}
		e.nextElement(m)
		return nil
	case memberLinks:
		return fmt.Errorf("%w: cannot interleave reference links and resources in member %q", ErrUnsupported, m.name)
	default:
		return fmt.Errorf("%w: member %q already has a value", ErrUnsupported, m.name)
	}
}

// StartPayload implements payloadwriter.Encoder.
func (e *Encoder) StartPayload() error {
	return nil
}

// EndPayload closes implicit objects.
func (e *Encoder) EndPayload() error {
	for len(e.frames) > 0 {
		f := e.pop()
		if !f.implicit {
			return fmt.Errorf("%w: payload ended with open frames", ErrUnsupported)
		}
		e.w.WriteByte('}')
	}
	return nil
}

// StartResource writes the opening of a resource object, or null.
func (e *Encoder) StartResource(si payloadwriter.ScopeInfo, r *payloadwriter.Resource) error {
	if err := e.beginItem(false, nil); err != nil {
		return err
	}
	if r == nil {
		_, err := e.w.WriteString("null")
		return err
	}
	e.w.WriteByte('{')
	obj := &frame{kind: frameObject}
	e.push(obj)

	if si.TopLevel && !e.omitContext {
		if ctx := si.TypeContext().ContextPath; ctx != "" {
			if err := e.writeField(obj, protocol.AnnotationContext, ctx); err != nil {
				return err
			}
		}
	}
	if name := derivedTypeName(si); name != "" {
		if err := e.writeField(obj, protocol.AnnotationType, "#"+name); err != nil {
			return err
		}
	}
	if r.ID != "" {
		if err := e.writeField(obj, protocol.AnnotationID, r.ID); err != nil {
			return err
		}
	}
	for _, p := range r.Properties {
		if err := e.writeField(obj, p.Name, p.Value); err != nil {
			return err
		}
	}
	return nil
}

// derivedTypeName returns the actual type name when it differs from the
// declared one.
func derivedTypeName(si payloadwriter.ScopeInfo) string {
	if si.ActualType == nil || si.DeclaredType == nil {
		return ""
	}
	if si.DeclaredType.Name() == si.ActualType.Name() {
		return ""
	}
	return si.ActualType.Name()
}

// EndResource closes a resource object.
func (e *Encoder) EndResource(si payloadwriter.ScopeInfo, r *payloadwriter.Resource) error {
	if r == nil {
		return nil
	}
	if top := e.top(); top == nil || top.kind != frameObject {
		return fmt.Errorf("%w: end of resource outside an object", ErrUnsupported)
	}
	e.pop()
	return e.w.WriteByte('}')
}

// StartCollection opens a top-level envelope or a nested array.
func (e *Encoder) StartCollection(si payloadwriter.ScopeInfo, c *payloadwriter.Collection) error {
	if len(e.frames) == 0 {
		e.w.WriteByte('{')
		env := &frame{kind: frameObject, envelope: true}
		e.push(env)
		if !e.omitContext {
			if ctx := si.TypeContext().ContextPath; ctx != "" {
				if err := e.writeField(env, protocol.AnnotationContext, ctx); err != nil {
					return err
				}
			}
		}
		if c.Count != nil {
			if err := e.writeField(env, protocol.AnnotationCount, *c.Count); err != nil {
				return err
			}
		}
		if err := e.writeKey(env, protocol.ValueMember); err != nil {
			return err
		}
	} else if err := e.beginItem(true, c); err != nil {
		return err
	}
	e.w.WriteByte('[')
	e.push(&frame{kind: frameArray})
	return nil
}

// EndCollection closes the array and writes trailing links.
func (e *Encoder) EndCollection(si payloadwriter.ScopeInfo, c *payloadwriter.Collection) error {
	if top := e.top(); top == nil || top.kind != frameArray {
		return fmt.Errorf("%w: end of collection outside an array", ErrUnsupported)
	}
	e.pop()
	e.w.WriteByte(']')

	switch top := e.top(); {
	case top != nil && top.envelope:
		if c.NextLink != "" {
			if err := e.writeField(top, protocol.AnnotationNextLink, c.NextLink); err != nil {
				return err
			}
		}
		if c.DeltaLink != "" {
			if err := e.writeField(top, protocol.AnnotationDeltaLink, c.DeltaLink); err != nil {
				return err
			}
		}
		e.pop()
		return e.w.WriteByte('}')
	case top != nil && top.kind == frameMember:
		if c.NextLink != "" {
			return e.writeField(e.owner(), top.name+protocol.AnnotationNextLink, c.NextLink)
		}
	}
	return nil
}

// WriteDeferredNested writes the navigation link of a member without
// content.
func (e *Encoder) WriteDeferredNested(si payloadwriter.ScopeInfo, n *payloadwriter.NestedInfo) error {
	if n.URL == "" {
		return nil
	}
	e.ensureObject()
	return e.writeField(e.top(), protocol.NavigationLinkName(n.Name), n.URL)
}

// StartNestedWithContent starts a member. Its key is written by the first
// item, once it is known whether the member holds resources, a collection
// or reference links.
func (e *Encoder) StartNestedWithContent(si payloadwriter.ScopeInfo, n *payloadwriter.NestedInfo) error {
	e.ensureObject()
	e.push(&frame{kind: frameMember, name: n.Name, multi: si.MultiValued})
	return nil
}

// EndNestedWithContent closes the arrays the member opened.
func (e *Encoder) EndNestedWithContent(si payloadwriter.ScopeInfo, n *payloadwriter.NestedInfo) error {
	m := e.top()
	if m == nil || m.kind != frameMember {
		return fmt.Errorf("%w: end of member %q outside a member", ErrUnsupported, n.Name)
	}
	e.pop()
	if m.content == memberItems || (m.content == memberLinks && m.multi) {
		return e.w.WriteByte(']')
	}
	return nil
}

// WriteReferenceLink writes a link into "Name@bind".
func (e *Encoder) WriteReferenceLink(parent *payloadwriter.NestedInfo, link *payloadwriter.ReferenceLink) error {
	m := e.top()
	if m == nil || m.kind != frameMember {
		return fmt.Errorf("%w: reference link outside a member", ErrUnsupported)
	}
	switch m.content {
	case memberEmpty:
		if err := e.writeKey(e.owner(), protocol.BindName(m.name)); err != nil {
			return err
		}
		m.content = memberLinks
		if m.multi {
			e.w.WriteByte('[')
		}
	case memberLinks:
		if !m.multi {
			return fmt.Errorf("%w: member %q already has a link", ErrUnsupported, m.name)
		}
	default:
		return fmt.Errorf("%w: cannot interleave reference links and resources in member %q", ErrUnsupported, m.name)
	}
	if m.multi {
		e.nextElement(m)
	}
	return e.writeValue(link.URL)
}

// errorBody is the JSON form of an in-stream error.
type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Target  string `json:"target,omitempty"`
}

// WriteInStreamError writes "@error" at the current position. The payload
// is not valid JSON afterwards, which tells readers it was cut short.
func (e *Encoder) WriteInStreamError(detail *payloadwriter.ErrorDetail) error {
	body := errorBody{}
	if detail != nil {
		body = errorBody{Code: detail.Code, Message: detail.Message, Target: detail.Target}
	}
	top := e.top()
	switch {
	case top == nil:
		e.w.WriteByte('{')
		if err := e.writeKey(&frame{kind: frameObject}, protocol.AnnotationError); err != nil {
			return err
		}
		if err := e.writeValue(body); err != nil {
			return err
		}
		e.w.WriteByte('}')
	case top.kind == frameObject:
		if err := e.writeField(top, protocol.AnnotationError, body); err != nil {
			return err
		}
	case top.kind == frameArray || (top.kind == frameMember && top.content == memberItems):
		e.nextElement(top)
		e.w.WriteByte('{')
		if err := e.writeField(&frame{kind: frameObject}, protocol.AnnotationError, body); err != nil {
			return err
		}
		e.w.WriteByte('}')
	default:
		if err := e.writeField(e.owner(), protocol.AnnotationError, body); err != nil {
			return err
		}
	}
	return e.w.Flush()
}

// Flush writes buffered output.
func (e *Encoder) Flush() error {
	return e.w.Flush()
}

// FlushContext writes buffered output unless ctx is done.
func (e *Encoder) FlushContext(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return e.w.Flush()
}
