package testing

import "sync"

// RecordingListener is a payloadwriter.Listener that records every
// notification.
type RecordingListener struct {
	mu        sync.Mutex
	errors    []error
	completed int
}

// OnError records err.
func (l *RecordingListener) OnError(err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.errors = append(l.errors, err)
}

// OnCompleted records a completion.
func (l *RecordingListener) OnCompleted() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.completed++
}

// Errors returns a copy of the recorded errors.
func (l *RecordingListener) Errors() []error {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]error, len(l.errors))
	copy(out, l.errors)
	return out
}

// Completed returns the number of completion notifications.
func (l *RecordingListener) Completed() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.completed
}
