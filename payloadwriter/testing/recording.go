package testing

import (
	"context"
	"sync"
	"time"

	"github.com/ahimsalabs/payloadwriter-go/payloadwriter"
)

// RecordingEncoder wraps an Encoder and records all hook calls.
//
// This is useful for testing that a writer calls the expected hooks in the
// right order with the right scope information.
//
// Example:
//
//	recorder := NewRecordingEncoder(nil)
//	w := payloadwriter.New(recorder, nil)
//	// After the test runs:
//	if got := recorder.Methods(); !slices.Equal(got, want) {
//		t.Errorf("hooks = %v, want %v", got, want)
//	}
type RecordingEncoder struct {
	inner payloadwriter.Encoder
	calls []Call
	mu    sync.Mutex
}

// Call represents a recorded hook call.
type Call struct {
	Method string                  // Hook name (e.g., "StartResource")
	Scope  payloadwriter.ScopeInfo // Scope passed to the hook, if any
	Item   any                     // Hook-specific item
	At     time.Time
}

var (
	_ payloadwriter.Encoder             = (*RecordingEncoder)(nil)
	_ payloadwriter.ContextFlusher      = (*RecordingEncoder)(nil)
	_ payloadwriter.InStreamErrorWriter = (*RecordingEncoder)(nil)
)

// NewRecordingEncoder creates a RecordingEncoder that wraps inner. A nil
// inner encoder accepts every call.
func NewRecordingEncoder(inner payloadwriter.Encoder) *RecordingEncoder {
	if inner == nil {
		inner = &EncoderStub{}
	}
	return &RecordingEncoder{inner: inner}
}

// record adds a call to the recording.
func (r *RecordingEncoder) record(method string, si payloadwriter.ScopeInfo, item any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, Call{
		Method: method,
		Scope:  si,
		Item:   item,
		At:     time.Now(),
	})
}

// StartPayload records the call and delegates to inner.
func (r *RecordingEncoder) StartPayload() error {
	r.record("StartPayload", payloadwriter.ScopeInfo{}, nil)
	return r.inner.StartPayload()
}

// EndPayload records the call and delegates to inner.
func (r *RecordingEncoder) EndPayload() error {
	r.record("EndPayload", payloadwriter.ScopeInfo{}, nil)
	return r.inner.EndPayload()
}

// StartResource records the call and delegates to inner.
func (r *RecordingEncoder) StartResource(si payloadwriter.ScopeInfo, res *payloadwriter.Resource) error {
	r.record("StartResource", si, res)
	return r.inner.StartResource(si, res)
}

// EndResource records the call and delegates to inner.
func (r *RecordingEncoder) EndResource(si payloadwriter.ScopeInfo, res *payloadwriter.Resource) error {
	r.record("EndResource", si, res)
	return r.inner.EndResource(si, res)
}

// StartCollection records the call and delegates to inner.
func (r *RecordingEncoder) StartCollection(si payloadwriter.ScopeInfo, c *payloadwriter.Collection) error {
	r.record("StartCollection", si, c)
	return r.inner.StartCollection(si, c)
}

// EndCollection records the call and delegates to inner.
func (r *RecordingEncoder) EndCollection(si payloadwriter.ScopeInfo, c *payloadwriter.Collection) error {
	r.record("EndCollection", si, c)
	return r.inner.EndCollection(si, c)
}

// WriteDeferredNested records the call and delegates to inner.
func (r *RecordingEncoder) WriteDeferredNested(si payloadwriter.ScopeInfo, n *payloadwriter.NestedInfo) error {
	r.record("WriteDeferredNested", si, n)
	return r.inner.WriteDeferredNested(si, n)
}

// StartNestedWithContent records the call and delegates to inner.
func (r *RecordingEncoder) StartNestedWithContent(si payloadwriter.ScopeInfo, n *payloadwriter.NestedInfo) error {
	r.record("StartNestedWithContent", si, n)
	return r.inner.StartNestedWithContent(si, n)
}

// EndNestedWithContent records the call and delegates to inner.
func (r *RecordingEncoder) EndNestedWithContent(si payloadwriter.ScopeInfo, n *payloadwriter.NestedInfo) error {
	r.record("EndNestedWithContent", si, n)
	return r.inner.EndNestedWithContent(si, n)
}

// WriteReferenceLink records the call and delegates to inner.
func (r *RecordingEncoder) WriteReferenceLink(parent *payloadwriter.NestedInfo, link *payloadwriter.ReferenceLink) error {
	r.record("WriteReferenceLink", payloadwriter.ScopeInfo{}, link)
	return r.inner.WriteReferenceLink(parent, link)
}

// Flush records the call and delegates to inner.
func (r *RecordingEncoder) Flush() error {
	r.record("Flush", payloadwriter.ScopeInfo{}, nil)
	return r.inner.Flush()
}

// FlushContext records the call and delegates to inner, using Flush when
// inner cannot suspend.
func (r *RecordingEncoder) FlushContext(ctx context.Context) error {
	r.record("FlushContext", payloadwriter.ScopeInfo{}, nil)
	if cf, ok := r.inner.(payloadwriter.ContextFlusher); ok {
		return cf.FlushContext(ctx)
	}
	return r.inner.Flush()
}

// WriteInStreamError records the call and delegates to inner if it can
// report errors.
func (r *RecordingEncoder) WriteInStreamError(detail *payloadwriter.ErrorDetail) error {
	r.record("WriteInStreamError", payloadwriter.ScopeInfo{}, detail)
	if ew, ok := r.inner.(payloadwriter.InStreamErrorWriter); ok {
		return ew.WriteInStreamError(detail)
	}
	return nil
}

// Calls returns a copy of all recorded calls.
func (r *RecordingEncoder) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	result := make([]Call, len(r.calls))
	copy(result, r.calls)
	return result
}

// Methods returns the names of all recorded calls in order.
func (r *RecordingEncoder) Methods() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	result := make([]string, len(r.calls))
	for i, call := range r.calls {
		result[i] = call.Method
	}
	return result
}

// Reset clears all recorded calls.
func (r *RecordingEncoder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = nil
}

// CallCount returns the number of times the specified hook was called.
func (r *RecordingEncoder) CallCount(method string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for _, call := range r.calls {
		if call.Method == method {
			count++
		}
	}
	return count
}
