package storage

import "sync"

// KeyedLock serializes read-modify-write sequences keyed by a directory
// path. For a given key, critical sections run in the order they were
// requested (strict FIFO); different keys proceed independently.
//
// This is a process-local lock: it does not protect against a second OS
// process writing the same data directory. Single-instance deployment per
// data root is a documented constraint.
type KeyedLock struct {
	mu   sync.Mutex
	keys map[string]*lockQueue
}

// lockQueue tracks the waiter chain for one key. Each acquirer parks on the
// channel of its predecessor; releasing closes the acquirer's own channel,
// handing the region to exactly the next waiter in request order.
type lockQueue struct {
	tail    chan struct{}
	waiters int
}

// NewKeyedLock creates an empty lock manager.
func NewKeyedLock() *KeyedLock {
	return &KeyedLock{keys: make(map[string]*lockQueue)}
}

// WithLock runs fn inside the critical section for key. The region is
// released on every exit path, including panics. fn's error is returned
// unchanged.
func (l *KeyedLock) WithLock(key string, fn func() error) error {
	release := l.acquire(key)
	defer release()
	return fn()
}

func (l *KeyedLock) acquire(key string) (release func()) {
	l.mu.Lock()
	q := l.keys[key]
	if q == nil {
		q = &lockQueue{}
		l.keys[key] = q
	}
	q.waiters++
	prev := q.tail
	turn := make(chan struct{})
	q.tail = turn
	l.mu.Unlock()

	if prev != nil {
		<-prev
	}

	return func() {
		close(turn)
		l.mu.Lock()
		q.waiters--
		if q.waiters == 0 {
			delete(l.keys, key)
		}
		l.mu.Unlock()
	}
}
