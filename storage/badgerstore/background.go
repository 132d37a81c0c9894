package badgerstore

import (
	"errors"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// runGCLoop runs Badger's value log garbage collection periodically.
func (s *Store) runGCLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.shutdownCtx.Done():
			return
		case <-ticker.C:
			s.runGC()
		}
	}
}

// runGC performs one round of garbage collection with shutdown checks.
// Expired payloads are only reclaimed from disk by value log GC.
func (s *Store) runGC() {
	// One RunValueLogGC call rewrites at most one log file, so loop a
	// bounded number of times.
	const maxGCIterations = 10
	for i := 0; i < maxGCIterations; i++ {
		select {
		case <-s.shutdownCtx.Done():
			return
		default:
		}

		err := s.db.RunValueLogGC(0.5)
		if errors.Is(err, badger.ErrNoRewrite) {
			return
		}
		if err != nil {
			s.logger.Warn("badgerstore: GC error", "error", err)
			return
		}
	}
}
