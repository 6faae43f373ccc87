package server

import "sync"

// chatLocks serializes turns per chat so two concurrent requests on the
// same negotiation cannot interleave history writes. Entries are
// refcounted and dropped once the last holder releases.
type chatLocks struct {
	mu sync.Mutex
	m  map[string]*chatLock
}

type chatLock struct {
	mu   sync.Mutex
	refs int
}

func newChatLocks() *chatLocks {
	return &chatLocks{m: map[string]*chatLock{}}
}

// acquire blocks until the chat's lock is held and returns the release.
func (c *chatLocks) acquire(chatID string) func() {
	c.mu.Lock()
	l, ok := c.m[chatID]
	if !ok {
		l = &chatLock{}
		c.m[chatID] = l
	}
	l.refs++
	c.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		c.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(c.m, chatID)
		}
		c.mu.Unlock()
	}
}
