package payloadwriter

import "context"

// AsyncWriter is the suspension calling convention of a Writer created with
// Config.Async. It shares the writer's state machine: scope changes and
// validation never suspend, only flushes and the final End do, through
// ContextFlusher when the encoder implements it.
//
// Calls must still be serialized by the caller.
type AsyncWriter struct {
	w *Writer
}

// Async returns the suspension calling convention of w. Calling its methods
// on a writer not created with Config.Async fails with ErrAsyncOnSyncWriter.
func (w *Writer) Async() *AsyncWriter {
	return &AsyncWriter{w: w}
}

// Writer returns the underlying writer for state inspection.
func (a *AsyncWriter) Writer() *Writer {
	return a.w
}

// StartCollection is the suspension form of Writer.StartCollection.
func (a *AsyncWriter) StartCollection(ctx context.Context, c *Collection) error {
	return a.w.run(true, func() error { return a.w.startCollection(c) })
}

// StartResource is the suspension form of Writer.StartResource.
func (a *AsyncWriter) StartResource(ctx context.Context, r *Resource) error {
	return a.w.run(true, func() error { return a.w.startResource(r) })
}

// StartNested is the suspension form of Writer.StartNested.
func (a *AsyncWriter) StartNested(ctx context.Context, n *NestedInfo) error {
	return a.w.run(true, func() error { return a.w.startNested(n) })
}

// WriteReferenceLink is the suspension form of Writer.WriteReferenceLink.
func (a *AsyncWriter) WriteReferenceLink(ctx context.Context, l *ReferenceLink) error {
	return a.w.run(true, func() error { return a.w.writeReferenceLink(l) })
}

// End is the suspension form of Writer.End. Completing the payload flushes
// with ctx.
func (a *AsyncWriter) End(ctx context.Context) error {
	return a.w.runEnd(true, func() error { return a.w.flushContext(ctx) })
}

// NotifyInStreamError is the suspension form of Writer.NotifyInStreamError.
func (a *AsyncWriter) NotifyInStreamError(ctx context.Context, detail *ErrorDetail) error {
	if err := a.w.verifyCanWrite(true); err != nil {
		return err
	}
	return a.w.notifyInStreamError(detail)
}

// Flush is the suspension form of Writer.Flush.
func (a *AsyncWriter) Flush(ctx context.Context) error {
	if err := a.w.verifyCanWrite(true); err != nil {
		return err
	}
	if err := a.w.verifyNotFaulted(); err != nil {
		return err
	}
	return a.w.intercept(func() error { return a.w.flushContext(ctx) })
}

// Close closes the underlying writer.
func (a *AsyncWriter) Close() error {
	return a.w.Close()
}
