// Package badgerstore provides a Badger-backed store for finished payloads.
//
// Payloads are stored under an ID chosen by the caller or, when the ID is
// empty, under the BLAKE3 digest of their bytes. Each payload is kept with
// its metadata (content type, sizes, digest, timestamps):
//
//   - Payloads may expire: a TTL is attached as a Badger entry TTL, and
//     expired payloads are no longer visible to Get, Head or List
//   - Disk space of deleted or expired payloads is reclaimed by Badger's
//     value log GC; call RunGC() periodically or set GCInterval in Options
//   - Payload size is limited by MaxPayloadSize (default 10MB)
//   - Single-process only: Badger uses file locking, but no additional
//     fencing is performed
package badgerstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// Key prefixes for the two records of a payload.
const (
	prefixInfo = "i:" // i:{id} -> JSON-encoded Info
	prefixData = "d:" // d:{id} -> payload bytes, zstd-compressed if Info.Compressed
)

// Errors returned by the store.
var (
	// ErrClosed is returned when operations are attempted on a closed store.
	ErrClosed = errors.New("badgerstore: store closed")

	// ErrNotFound indicates no live payload has the given ID.
	ErrNotFound = errors.New("badgerstore: payload not found")

	// ErrTooLarge indicates a payload over MaxPayloadSize.
	ErrTooLarge = errors.New("badgerstore: payload too large")

	// ErrBadRequest indicates an invalid ID or an empty payload.
	ErrBadRequest = errors.New("badgerstore: bad request")

	// ErrCorrupt indicates stored bytes that do not match their digest.
	ErrCorrupt = errors.New("badgerstore: payload corrupt")
)

// Info describes a stored payload.
type Info struct {
	ID          string    `json:"id"`
	ContentType string    `json:"contentType"`
	Size        int       `json:"size"`
	StoredSize  int       `json:"storedSize"`
	Compressed  bool      `json:"compressed,omitempty"`
	Digest      string    `json:"digest"`
	CreatedAt   time.Time `json:"createdAt"`
	ExpiresAt   time.Time `json:"expiresAt,omitzero"`
}

// Store is a Badger-backed payload store.
type Store struct {
	db *badger.DB

	// Configuration
	maxPayloadSize  int
	compress        bool
	defaultTTL      time.Duration
	shutdownTimeout time.Duration
	logger          *slog.Logger

	// Background goroutine control
	wg             sync.WaitGroup
	shutdownCtx    context.Context    // Cancelled on Close(), signals all background work to stop
	shutdownCancel context.CancelFunc // Called during Close()

	// Close protection - prevents double-close panic and rejects operations after close
	closeOnce sync.Once
	closed    atomic.Bool
}

// New creates a new Badger-backed store.
func New(opts Options) (*Store, error) {
	badgerOpts := badger.DefaultOptions(opts.Dir)
	if opts.InMemory || opts.Dir == "" {
		badgerOpts = badgerOpts.WithInMemory(true)
	}
	if opts.Logger != nil {
		badgerOpts = badgerOpts.WithLogger(opts.Logger)
	}

	db, err := badger.Open(badgerOpts)
	if err != nil {
		return nil, fmt.Errorf("badgerstore: open: %w", err)
	}

	maxSize := opts.MaxPayloadSize
	if maxSize <= 0 {
		maxSize = DefaultMaxPayloadSize
	}

	shutdownTimeout := opts.ShutdownTimeout
	if shutdownTimeout == 0 {
		shutdownTimeout = DefaultShutdownTimeout
	}

	logger := opts.SLogger
	if logger == nil {
		logger = slog.Default()
	}

	// Create shutdown context - cancelled during Close() to interrupt background work
	shutdownCtx, shutdownCancel := context.WithCancel(context.Background())

	s := &Store{
		db:              db,
		maxPayloadSize:  maxSize,
		compress:        opts.Compress,
		defaultTTL:      opts.DefaultTTL,
		shutdownTimeout: shutdownTimeout,
		logger:          logger,
		shutdownCtx:     shutdownCtx,
		shutdownCancel:  shutdownCancel,
	}

	gcInterval := opts.GCInterval
	if gcInterval == 0 {
		gcInterval = DefaultGCInterval
	}
	if gcInterval > 0 {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.runGCLoop(gcInterval)
		}()
	}

	return s, nil
}

// Close closes the Badger database and stops background goroutines.
// Waits up to ShutdownTimeout for background goroutines to finish gracefully.
// Close is safe to call multiple times - subsequent calls are no-ops.
func (s *Store) Close() error {
	var closeErr error

	s.closeOnce.Do(func() {
		s.closed.Store(true)
		s.shutdownCancel()

		done := make(chan struct{})
		go func() {
			s.wg.Wait()
			close(done)
		}()

		select {
		case <-done:
		case <-time.After(s.shutdownTimeout):
			s.logger.Warn("badgerstore: shutdown timeout exceeded, proceeding with close",
				"timeout", s.shutdownTimeout)
		}

		closeErr = s.db.Close()
	})

	return closeErr
}

// checkClosed returns ErrClosed if the store has been closed.
func (s *Store) checkClosed() error {
	if s.closed.Load() {
		return ErrClosed
	}
	return nil
}

// RunGC runs Badger's value log garbage collection.
// Call this periodically for long-running processes.
func (s *Store) RunGC() error {
	if err := s.checkClosed(); err != nil {
		return err
	}
	return s.db.RunValueLogGC(0.5)
}

// validateID checks if a payload ID is valid.
// IDs must be non-empty and not contain ':' (used as key separator).
func validateID(id string) error {
	if id == "" {
		return fmt.Errorf("badgerstore: id cannot be empty: %w", ErrBadRequest)
	}
	if strings.Contains(id, ":") {
		return fmt.Errorf("badgerstore: id cannot contain ':': %w", ErrBadRequest)
	}
	return nil
}

// Put stores data under id, replacing any payload with the same ID. An
// empty id stores the payload under its digest. A ttl of zero uses the
// store's DefaultTTL.
func (s *Store) Put(ctx context.Context, id, contentType string, data []byte, ttl time.Duration) (*Info, error) {
	if err := s.checkClosed(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("badgerstore: empty payload: %w", ErrBadRequest)
	}
	if len(data) > s.maxPayloadSize {
		return nil, fmt.Errorf("badgerstore: %d bytes exceeds limit of %d: %w", len(data), s.maxPayloadSize, ErrTooLarge)
	}

	digest := Digest(data)
	if id == "" {
		id = digest
	}
	if err := validateID(id); err != nil {
		return nil, err
	}
	if ttl == 0 {
		ttl = s.defaultTTL
	}

	now := time.Now()
	info := &Info{
		ID:          id,
		ContentType: contentType,
		Size:        len(data),
		StoredSize:  len(data),
		Digest:      digest,
		CreatedAt:   now,
	}
	if ttl > 0 {
		info.ExpiresAt = now.Add(ttl)
	}

	stored := data
	if s.compress {
		if compressed, ok := compress(data); ok {
			stored = compressed
			info.Compressed = true
			info.StoredSize = len(compressed)
		}
	}

	encoded, err := json.Marshal(info)
	if err != nil {
		return nil, fmt.Errorf("badgerstore: marshal info: %w", err)
	}

	infoEntry := badger.NewEntry([]byte(prefixInfo+id), encoded)
	dataEntry := badger.NewEntry([]byte(prefixData+id), stored)
	if ttl > 0 {
		infoEntry = infoEntry.WithTTL(ttl)
		dataEntry = dataEntry.WithTTL(ttl)
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		if err := txn.SetEntry(infoEntry); err != nil {
			return err
		}
		return txn.SetEntry(dataEntry)
	})
	if err != nil {
		return nil, fmt.Errorf("badgerstore: put: %w", err)
	}

	s.logger.Debug("badgerstore: stored payload",
		"id", id, "size", info.Size, "storedSize", info.StoredSize, "compressed", info.Compressed)
	return info, nil
}

// Get returns the payload stored under id and its metadata. The bytes are
// checked against the stored digest.
func (s *Store) Get(ctx context.Context, id string) ([]byte, *Info, error) {
	if err := s.checkClosed(); err != nil {
		return nil, nil, err
	}
	if err := validateID(id); err != nil {
		return nil, nil, err
	}

	var info *Info
	var stored []byte
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		info, err = readInfo(txn, id)
		if err != nil {
			return err
		}
		item, err := txn.Get([]byte(prefixData + id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		stored, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		return nil, nil, err
	}

	data := stored
	if info.Compressed {
		data, err = decompress(stored, info.Size)
		if err != nil {
			return nil, nil, fmt.Errorf("badgerstore: %s: %v: %w", id, err, ErrCorrupt)
		}
	}
	if Digest(data) != info.Digest {
		return nil, nil, fmt.Errorf("badgerstore: %s: digest mismatch: %w", id, ErrCorrupt)
	}
	return data, info, nil
}

// Head returns the metadata of the payload stored under id.
func (s *Store) Head(ctx context.Context, id string) (*Info, error) {
	if err := s.checkClosed(); err != nil {
		return nil, err
	}
	if err := validateID(id); err != nil {
		return nil, err
	}

	var info *Info
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		info, err = readInfo(txn, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return info, nil
}

func readInfo(txn *badger.Txn, id string) (*Info, error) {
	item, err := txn.Get([]byte(prefixInfo + id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var info Info
	err = item.Value(func(val []byte) error {
		return json.Unmarshal(val, &info)
	})
	if err != nil {
		return nil, fmt.Errorf("badgerstore: unmarshal info: %w", err)
	}
	return &info, nil
}

// Delete removes the payload stored under id.
func (s *Store) Delete(ctx context.Context, id string) error {
	if err := s.checkClosed(); err != nil {
		return err
	}
	if err := validateID(id); err != nil {
		return err
	}

	return s.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get([]byte(prefixInfo + id)); err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return ErrNotFound
			}
			return err
		}
		if err := txn.Delete([]byte(prefixInfo + id)); err != nil {
			return err
		}
		return txn.Delete([]byte(prefixData + id))
	})
}

// List returns the metadata of all live payloads, ordered by ID.
func (s *Store) List(ctx context.Context) ([]*Info, error) {
	if err := s.checkClosed(); err != nil {
		return nil, err
	}

	var infos []*Info
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(prefixInfo)

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek([]byte(prefixInfo)); it.ValidForPrefix([]byte(prefixInfo)); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			item := it.Item()
			var info Info
			err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &info)
			})
			if err != nil {
				s.logger.Warn("badgerstore: skipping unreadable payload info",
					"key", string(item.Key()), "error", err)
				continue
			}
			infos = append(infos, &info)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return infos, nil
}
