package contextwindow

import "sync"

// Coordinator serializes context-build-and-respond cycles per conversation.
// Locks are created lazily and held for the whole cycle so two concurrent
// turns on one conversation can never read the same "before" history and
// both append. Locks for different conversations are fully independent; the
// map mutex guards map mutation only, never the critical section.
type Coordinator struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewCoordinator creates an empty coordinator.
func NewCoordinator() *Coordinator {
	return &Coordinator{locks: make(map[string]*sync.Mutex)}
}

func (c *Coordinator) lock(conversationID string) *sync.Mutex {
	c.mu.Lock()
	defer c.mu.Unlock()

	l, ok := c.locks[conversationID]
	if !ok {
		l = &sync.Mutex{}
		c.locks[conversationID] = l
	}
	return l
}

// WithLock runs fn while holding the conversation's lock. The lock is
// released on every exit path, including panics and fn errors.
func (c *Coordinator) WithLock(conversationID string, fn func() error) error {
	l := c.lock(conversationID)
	l.Lock()
	defer l.Unlock()
	return fn()
}

// Len reports how many conversation locks exist. Growth is bounded in
// practice by active-conversation cardinality.
func (c *Coordinator) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.locks)
}
