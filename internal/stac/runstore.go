package stac

import (
	"sync"
	"time"
)

// Sentinel errors for run store operations
var (
	ErrRunNotFound = runStoreError("run not found")
	ErrRunExpired  = runStoreError("run expired")
)

type runStoreError string

func (e runStoreError) Error() string {
	return string(e)
}

// runEntry holds a run with its expiration time
type runEntry[T any] struct {
	value     T
	expiresAt time.Time
}

// RunStore keeps finished runs in memory for a fixed time. It is suitable for
// single-instance deployments. Cleanup drops an expired run's value but keeps
// its id for one more ttl, so Get keeps reporting ErrRunExpired rather than
// ErrRunNotFound for at least a full ttl after expiry.
type RunStore[T any] struct {
	mu   sync.RWMutex
	runs map[string]runEntry[T]
	// expired maps ids of dropped runs to the time they are forgotten.
	expired  map[string]time.Time
	ttl      time.Duration
	stopChan chan struct{}
	stopOnce sync.Once
}

// NewRunStore creates a run store. ttl specifies how long runs are kept and
// cleanupInterval how often expired runs are dropped.
func NewRunStore[T any](ttl, cleanupInterval time.Duration) *RunStore[T] {
	store := &RunStore[T]{
		runs:     make(map[string]runEntry[T]),
		expired:  make(map[string]time.Time),
		ttl:      ttl,
		stopChan: make(chan struct{}),
	}

	go store.cleanupLoop(cleanupInterval)

	return store
}

// Put saves a run under id, replacing any earlier entry.
func (s *RunStore[T]) Put(id string, v T) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.expired, id)
	s.runs[id] = runEntry[T]{
		value:     v,
		expiresAt: time.Now().Add(s.ttl),
	}
}

// Get returns the run saved under id.
func (s *RunStore[T]) Get(id string) (T, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var zero T
	entry, exists := s.runs[id]
	if !exists {
		if _, gone := s.expired[id]; gone {
			return zero, ErrRunExpired
		}
		return zero, ErrRunNotFound
	}
	if time.Now().After(entry.expiresAt) {
		return zero, ErrRunExpired
	}
	return entry.value, nil
}

// Len is the number of stored runs, expired ones included until cleanup.
func (s *RunStore[T]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.runs)
}

// Stop stops the background cleanup goroutine. It is safe to call twice.
func (s *RunStore[T]) Stop() {
	s.stopOnce.Do(func() { close(s.stopChan) })
}

func (s *RunStore[T]) cleanupLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.cleanup()
		case <-s.stopChan:
			return
		}
	}
}

func (s *RunStore[T]) cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	for id, entry := range s.runs {
		if now.After(entry.expiresAt) {
			delete(s.runs, id)
			s.expired[id] = entry.expiresAt.Add(s.ttl)
		}
	}
	for id, forgetAt := range s.expired {
		if now.After(forgetAt) {
			delete(s.expired, id)
		}
	}
}
