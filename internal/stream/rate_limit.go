package stream

import (
	"sync"
)

// defaultMaxTotal caps concurrent sweeps across all clients.
const defaultMaxTotal = 1000

// streamLimiter tracks concurrent sweeps per client address and globally.
type streamLimiter struct {
	mu          sync.Mutex
	connections map[string]int
	total       int
	maxPerKey   int
	maxTotal    int
}

func newStreamLimiter(maxPerKey, maxTotal int) *streamLimiter {
	if maxTotal <= 0 {
		maxTotal = defaultMaxTotal
	}
	return &streamLimiter{
		connections: make(map[string]int),
		maxPerKey:   maxPerKey,
		maxTotal:    maxTotal,
	}
}

// acquire registers a sweep for key. It returns false when either the
// per-key or the global limit has been reached.
func (l *streamLimiter) acquire(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.total >= l.maxTotal || l.connections[key] >= l.maxPerKey {
		return false
	}
	l.connections[key]++
	l.total++
	return true
}

// release frees a slot taken by acquire.
func (l *streamLimiter) release(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.connections[key]--
	l.total--
	if l.connections[key] <= 0 {
		delete(l.connections, key)
	}
}

// count returns the number of active sweeps for key.
func (l *streamLimiter) count(key string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.connections[key]
}

// active returns the number of active sweeps across all keys.
func (l *streamLimiter) active() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.total
}
