package badgerstore

import (
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// Default configuration values.
const (
	DefaultMaxPayloadSize  = 10 * 1024 * 1024 // 10MB
	DefaultGCInterval      = 5 * time.Minute  // Run value log GC every 5 minutes
	DefaultShutdownTimeout = 30 * time.Second // Max wait for graceful shutdown
)

// Options configures the Badger store.
type Options struct {
	// Dir is the directory for Badger data files.
	// If empty, uses in-memory mode (for testing).
	Dir string

	// InMemory runs Badger in memory-only mode.
	InMemory bool

	// Logger for Badger. If nil, uses default (logs to stderr).
	Logger badger.Logger

	// SLogger is a structured logger for badgerstore operations.
	// If nil, uses slog.Default().
	SLogger *slog.Logger

	// MaxPayloadSize limits the uncompressed size of a payload.
	// Default: 10MB. Set to 0 to use default.
	MaxPayloadSize int

	// Compress stores payloads zstd-compressed when that makes them
	// smaller.
	Compress bool

	// DefaultTTL applies to payloads stored without a TTL.
	// Default: payloads never expire.
	DefaultTTL time.Duration

	// GCInterval is how often to run Badger's value log GC.
	// Default: 5 minutes. Set to -1 to disable.
	GCInterval time.Duration

	// ShutdownTimeout is the maximum time to wait for background goroutines
	// to finish during Close(). If goroutines don't finish within this time,
	// Close() returns anyway to prevent indefinite hangs.
	// Default: 30 seconds. Set to 0 to use default.
	ShutdownTimeout time.Duration
}
