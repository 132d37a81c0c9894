package document

import (
	"context"

	"github.com/ahimsalabs/payloadwriter-go/payloadwriter"
)

// sink is the write-intent surface shared by both calling conventions.
type sink interface {
	StartCollection(c *payloadwriter.Collection) error
	StartResource(r *payloadwriter.Resource) error
	StartNested(n *payloadwriter.NestedInfo) error
	WriteReferenceLink(l *payloadwriter.ReferenceLink) error
	End() error
}

// asyncSink binds a context to an AsyncWriter.
type asyncSink struct {
	ctx context.Context
	w   *payloadwriter.AsyncWriter
}

func (s asyncSink) StartCollection(c *payloadwriter.Collection) error {
	return s.w.StartCollection(s.ctx, c)
}

func (s asyncSink) StartResource(r *payloadwriter.Resource) error {
	return s.w.StartResource(s.ctx, r)
}

func (s asyncSink) StartNested(n *payloadwriter.NestedInfo) error {
	return s.w.StartNested(s.ctx, n)
}

func (s asyncSink) WriteReferenceLink(l *payloadwriter.ReferenceLink) error {
	return s.w.WriteReferenceLink(s.ctx, l)
}

func (s asyncSink) End() error {
	return s.w.End(s.ctx)
}

// Write replays the document into w. The first failing call stops the
// replay and its error is returned; w is then in StateError.
func (d *Document) Write(w *payloadwriter.Writer) error {
	return d.write(w)
}

// WriteAsync replays the document through the suspension calling
// convention of a writer created with Config.Async.
func (d *Document) WriteAsync(ctx context.Context, w *payloadwriter.AsyncWriter) error {
	return d.write(asyncSink{ctx: ctx, w: w})
}

func (d *Document) write(s sink) error {
	if d.Collection != nil {
		return writeCollection(s, d.Collection)
	}
	return writeResource(s, d.Resource)
}

func writeCollection(s sink, c *CollectionNode) error {
	if err := s.StartCollection(c.collection()); err != nil {
		return err
	}
	for _, r := range c.Items {
		if err := writeResource(s, r); err != nil {
			return err
		}
	}
	return s.End()
}

func writeResource(s sink, r *ResourceNode) error {
	if err := s.StartResource(r.resource()); err != nil {
		return err
	}
	for _, n := range r.Nested {
		if err := writeNested(s, n); err != nil {
			return err
		}
	}
	return s.End()
}

func writeNested(s sink, n *NestedNode) error {
	info := &payloadwriter.NestedInfo{Name: n.Name, URL: n.URL, IsCollection: n.IsCollection}
	if err := s.StartNested(info); err != nil {
		return err
	}
	for _, l := range n.Links {
		if err := s.WriteReferenceLink(&payloadwriter.ReferenceLink{URL: l}); err != nil {
			return err
		}
	}
	for _, r := range n.Resources {
		if err := writeResource(s, r); err != nil {
			return err
		}
	}
	if n.Collection != nil {
		if err := writeCollection(s, n.Collection); err != nil {
			return err
		}
	}
	if n.Null {
		if err := s.StartResource(nil); err != nil {
			return err
		}
		if err := s.End(); err != nil {
			return err
		}
	}
	return s.End()
}

func (c *CollectionNode) collection() *payloadwriter.Collection {
	return &payloadwriter.Collection{
		TypeName:  c.Type,
		Count:     c.Count,
		NextLink:  c.NextLink,
		DeltaLink: c.DeltaLink,
	}
}

func (r *ResourceNode) resource() *payloadwriter.Resource {
	return &payloadwriter.Resource{
		TypeName:   r.Type,
		ID:         r.ID,
		Key:        r.Key,
		Properties: []payloadwriter.Property(r.Properties),
	}
}
