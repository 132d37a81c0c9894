package payloadwriter

import "log/slog"

const defaultMaxNestingDepth = 100

// Config configures a Writer.
type Config struct {
	// Model resolves types and navigation members. If nil, no type
	// resolution or type validation happens.
	Model Model

	// NavigationSource is the container of the top-level items.
	NavigationSource NavigationSource

	// ResourceType is the type of the top-level items. Default: the element
	// type of NavigationSource.
	ResourceType StructuredType

	// Path is the canonical path of the top-level items. Default: the path
	// of NavigationSource.
	Path Path

	// Selection shapes the payload. Nil selects everything.
	Selection Selection

	// WritingCollection makes the writer expect a top-level collection
	// instead of a single resource.
	WritingCollection bool

	// WritingRequest makes the writer produce a request payload. The default
	// is a response payload.
	WritingRequest bool

	// WritingDelta makes the writer produce a delta response, in which the
	// body of a top-level resource is suppressed.
	WritingDelta bool

	// Async fixes the writer to the suspension calling convention of
	// Writer.Async. Blocking calls then fail with ErrSyncOnAsyncWriter.
	Async bool

	// MaxNestingDepth limits the number of nested resources. Default: 100.
	MaxNestingDepth int

	// Lenient disables duplicate field tracking and type validation.
	Lenient bool

	// AllowDuplicateFields reports duplicate fields as warnings instead of
	// failing the writer.
	AllowDuplicateFields bool

	// Listener is notified when the writer fails or completes.
	Listener Listener

	// Logger for writer diagnostics. If nil, uses slog.Default().
	Logger *slog.Logger
}

// singletonSource is implemented by navigation sources that address exactly
// one resource.
type singletonSource interface {
	IsSingleton() bool
}

// sourcePath returns the default path of a top-level navigation source.
func sourcePath(source NavigationSource) Path {
	if source == nil {
		return Path{}
	}
	collection := true
	if s, ok := source.(singletonSource); ok && s.IsSingleton() {
		collection = false
	}
	return SourcePath(source.Name(), collection)
}
