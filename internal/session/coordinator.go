package session

import (
	"errors"
	"sync"
)

// ErrBusy is returned when a commit is attempted while another one is
// already in flight for the same session. The caller tells the
// respondent to retry; the attempt is never queued or silently applied.
var ErrBusy = errors.New("previous answer still being processed")

// Coordinator serializes "record answer and advance" operations per
// session. The guard is keyed by chat id, so unrelated respondents
// never contend. Non-committing mutations (multi-select toggles) bypass
// it.
type Coordinator struct {
	mu    sync.Mutex
	locks map[int64]*sync.Mutex
}

func NewCoordinator() *Coordinator {
	return &Coordinator{locks: make(map[int64]*sync.Mutex)}
}

// Acquire takes the commit guard for a session. It returns a release
// func on success and ErrBusy if a commit is already in flight.
func (c *Coordinator) Acquire(chatID int64) (func(), error) {
	c.mu.Lock()
	l, ok := c.locks[chatID]
	if !ok {
		l = &sync.Mutex{}
		c.locks[chatID] = l
	}
	c.mu.Unlock()

	if !l.TryLock() {
		return nil, ErrBusy
	}
	return l.Unlock, nil
}

// Forget drops the guard entry for a finished session. Safe to call
// while nothing holds the lock.
func (c *Coordinator) Forget(chatID int64) {
	c.mu.Lock()
	delete(c.locks, chatID)
	c.mu.Unlock()
}
