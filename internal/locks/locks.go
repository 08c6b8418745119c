package locks

import (
	"sync"

	"github.com/bwmarrin/snowflake"
)

// ClientLocks serializes every ledger-mutating sequence for a given
// client. Two concurrent appends for one client would otherwise read the
// same prior running balance and both chain from a stale baseline.
// Operations on different clients proceed in parallel; reads take no lock.
type ClientLocks struct {
	mu    sync.Mutex
	locks map[snowflake.ID]*sync.Mutex
}

// New constructs an empty lock table.
func New() *ClientLocks {
	return &ClientLocks{locks: make(map[snowflake.ID]*sync.Mutex)}
}

// Do runs fn while holding the lock for clientID.
func (c *ClientLocks) Do(clientID snowflake.ID, fn func() error) error {
	lock := c.lockFor(clientID)
	lock.Lock()
	defer lock.Unlock()
	return fn()
}

func (c *ClientLocks) lockFor(clientID snowflake.ID) *sync.Mutex {
	c.mu.Lock()
	defer c.mu.Unlock()

	lock := c.locks[clientID]
	if lock == nil {
		lock = &sync.Mutex{}
		c.locks[clientID] = lock
	}
	return lock
}
