package lock

import (
	"context"
	"sync"
	"time"
)

// MemoryLocker implements Locker with an in-process map.
// This is suitable for single-instance deployments and testing.
type MemoryLocker struct {
	mu      sync.Mutex
	entries map[string]time.Time
	now     func() time.Time
}

// NewMemoryLocker creates an empty in-memory locker.
func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{
		entries: make(map[string]time.Time),
		now:     time.Now,
	}
}

// Acquire reserves key unless an unexpired reservation exists.
func (l *MemoryLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if expiresAt, held := l.entries[key]; held && now.Before(expiresAt) {
		return false, nil
	}

	// Drop expired reservations while we hold the lock.
	for k, expiresAt := range l.entries {
		if !now.Before(expiresAt) {
			delete(l.entries, k)
		}
	}

	l.entries[key] = now.Add(ttl)
	return true, nil
}

// Release removes the reservation for key.
func (l *MemoryLocker) Release(ctx context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.entries, key)
	return nil
}

// Ensure MemoryLocker implements Locker
var _ Locker = (*MemoryLocker)(nil)
