package badgerstore

import (
	"bytes"
	"context"
	"fmt"
	"time"
)

// Sink buffers a payload while it is being written and stores it on Close.
// It is an io.WriteCloser, so an encoder can write straight into it.
type Sink struct {
	store       *Store
	ctx         context.Context
	id          string
	contentType string
	ttl         time.Duration

	buf    bytes.Buffer
	err    error
	info   *Info
	closed bool
}

// Sink returns a writer that stores everything written to it under id when
// closed. An empty id stores the payload under its digest.
func (s *Store) Sink(ctx context.Context, id, contentType string, ttl time.Duration) *Sink {
	return &Sink{store: s, ctx: ctx, id: id, contentType: contentType, ttl: ttl}
}

// Write buffers p. Writes beyond MaxPayloadSize fail with ErrTooLarge.
func (k *Sink) Write(p []byte) (int, error) {
	if k.closed {
		return 0, ErrClosed
	}
	if k.err != nil {
		return 0, k.err
	}
	if k.buf.Len()+len(p) > k.store.maxPayloadSize {
		k.err = fmt.Errorf("badgerstore: payload exceeds limit of %d: %w", k.store.maxPayloadSize, ErrTooLarge)
		return 0, k.err
	}
	return k.buf.Write(p)
}

// Close stores the buffered payload. A sink whose writes failed stores
// nothing and returns the write error.
func (k *Sink) Close() error {
	if k.closed {
		return nil
	}
	k.closed = true
	if k.err != nil {
		return k.err
	}
	info, err := k.store.Put(k.ctx, k.id, k.contentType, k.buf.Bytes(), k.ttl)
	if err != nil {
		return err
	}
	k.info = info
	return nil
}

// Info returns the metadata of the stored payload, or nil before a
// successful Close.
func (k *Sink) Info() *Info {
	return k.info
}
