// Package testing provides test helpers for payloadwriter.
//
// This package contains test doubles for the collaborators of a
// payloadwriter.Writer. The main helpers are:
//
//   - EncoderStub: A configurable stub Encoder for unit tests
//   - RecordingEncoder: A decorator that records all Encoder hook calls
//   - RecordingListener: A Listener that records notifications
//
// Example usage:
//
//	rec := testing.NewRecordingEncoder(&testing.EncoderStub{
//		StartResourceFunc: func(si payloadwriter.ScopeInfo, r *payloadwriter.Resource) error {
//			return errors.New("disk full")
//		},
//	})
//	w := payloadwriter.New(rec, nil)
//	// After the test runs:
//	if rec.CallCount("StartResource") != 1 { ... }
package testing

import (
	"context"

	"github.com/ahimsalabs/payloadwriter-go/payloadwriter"
)

// EncoderStub is a test double for payloadwriter.Encoder.
//
// Set the function fields to control behavior. Unset hooks succeed without
// doing anything, so a stub only needs the hooks a test cares about.
//
// Example:
//
//	stub := &EncoderStub{
//		EndPayloadFunc: func() error { return io.ErrShortWrite },
//	}
type EncoderStub struct {
	StartPayloadFunc           func() error
	EndPayloadFunc             func() error
	StartResourceFunc          func(si payloadwriter.ScopeInfo, r *payloadwriter.Resource) error
	EndResourceFunc            func(si payloadwriter.ScopeInfo, r *payloadwriter.Resource) error
	StartCollectionFunc        func(si payloadwriter.ScopeInfo, c *payloadwriter.Collection) error
	EndCollectionFunc          func(si payloadwriter.ScopeInfo, c *payloadwriter.Collection) error
	WriteDeferredNestedFunc    func(si payloadwriter.ScopeInfo, n *payloadwriter.NestedInfo) error
	StartNestedWithContentFunc func(si payloadwriter.ScopeInfo, n *payloadwriter.NestedInfo) error
	EndNestedWithContentFunc   func(si payloadwriter.ScopeInfo, n *payloadwriter.NestedInfo) error
	WriteReferenceLinkFunc     func(parent *payloadwriter.NestedInfo, link *payloadwriter.ReferenceLink) error
	FlushFunc                  func() error
	FlushContextFunc           func(ctx context.Context) error
	WriteInStreamErrorFunc     func(detail *payloadwriter.ErrorDetail) error
}

var (
	_ payloadwriter.Encoder             = (*EncoderStub)(nil)
	_ payloadwriter.ContextFlusher      = (*EncoderStub)(nil)
	_ payloadwriter.InStreamErrorWriter = (*EncoderStub)(nil)
)

// StartPayload delegates to StartPayloadFunc.
func (s *EncoderStub) StartPayload() error {
	if s.StartPayloadFunc == nil {
		return nil
	}
	return s.StartPayloadFunc()
}

// EndPayload delegates to EndPayloadFunc.
func (s *EncoderStub) EndPayload() error {
	if s.EndPayloadFunc == nil {
		return nil
	}
	return s.EndPayloadFunc()
}

// StartResource delegates to StartResourceFunc.
func (s *EncoderStub) StartResource(si payloadwriter.ScopeInfo, r *payloadwriter.Resource) error {
	if s.StartResourceFunc == nil {
		return nil
	}
	return s.StartResourceFunc(si, r)
}

// EndResource delegates to EndResourceFunc.
func (s *EncoderStub) EndResource(si payloadwriter.ScopeInfo, r *payloadwriter.Resource) error {
	if s.EndResourceFunc == nil {
		return nil
	}
	return s.EndResourceFunc(si, r)
}

// StartCollection delegates to StartCollectionFunc.
func (s *EncoderStub) StartCollection(si payloadwriter.ScopeInfo, c *payloadwriter.Collection) error {
	if s.StartCollectionFunc == nil {
		return nil
	}
	return s.StartCollectionFunc(si, c)
}

// EndCollection delegates to EndCollectionFunc.
func (s *EncoderStub) EndCollection(si payloadwriter.ScopeInfo, c *payloadwriter.Collection) error {
	if s.EndCollectionFunc == nil {
		return nil
	}
	return s.EndCollectionFunc(si, c)
}

// WriteDeferredNested delegates to WriteDeferredNestedFunc.
func (s *EncoderStub) WriteDeferredNested(si payloadwriter.ScopeInfo, n *payloadwriter.NestedInfo) error {
	if s.WriteDeferredNestedFunc == nil {
		return nil
	}
	return s.WriteDeferredNestedFunc(si, n)
}

// StartNestedWithContent delegates to StartNestedWithContentFunc.
func (s *EncoderStub) StartNestedWithContent(si payloadwriter.ScopeInfo, n *payloadwriter.NestedInfo) error {
	if s.StartNestedWithContentFunc == nil {
		return nil
	}
	return s.StartNestedWithContentFunc(si, n)
}

// EndNestedWithContent delegates to EndNestedWithContentFunc.
func (s *EncoderStub) EndNestedWithContent(si payloadwriter.ScopeInfo, n *payloadwriter.NestedInfo) error {
	if s.EndNestedWithContentFunc == nil {
		return nil
	}
	return s.EndNestedWithContentFunc(si, n)
}

// WriteReferenceLink delegates to WriteReferenceLinkFunc.
func (s *EncoderStub) WriteReferenceLink(parent *payloadwriter.NestedInfo, link *payloadwriter.ReferenceLink) error {
	if s.WriteReferenceLinkFunc == nil {
		return nil
	}
	return s.WriteReferenceLinkFunc(parent, link)
}

// Flush delegates to FlushFunc.
func (s *EncoderStub) Flush() error {
	if s.FlushFunc == nil {
		return nil
	}
	return s.FlushFunc()
}

// FlushContext delegates to FlushContextFunc, falling back to Flush.
func (s *EncoderStub) FlushContext(ctx context.Context) error {
	if s.FlushContextFunc == nil {
		return s.Flush()
	}
	return s.FlushContextFunc(ctx)
}

// WriteInStreamError delegates to WriteInStreamErrorFunc.
func (s *EncoderStub) WriteInStreamError(detail *payloadwriter.ErrorDetail) error {
	if s.WriteInStreamErrorFunc == nil {
		return nil
	}
	return s.WriteInStreamErrorFunc(detail)
}
