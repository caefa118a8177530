package kvstore

import "sync"

// lockTable hands out one *sync.Mutex per uint64 key, the tuple of
// inode numbers a transaction touches (spec §5). Acquiring always
// proceeds in ascending key order; disjoint lock sets make progress
// concurrently, overlapping ones serialize, and ascending order
// across all callers is what rules out deadlock.
//
// Entries are never evicted: the table grows to one mutex per
// distinct inode number ever touched, bounded over a mount's lifetime
// by total inode churn rather than live inode count. Each entry is a
// few words, so this is a deliberate trade against the complexity of
// safely reclaiming a mutex that might still be held.
type lockTable struct {
	mu    sync.Mutex
	locks map[uint64]*sync.Mutex
}

func newLockTable() *lockTable {
	return &lockTable{locks: make(map[uint64]*sync.Mutex)}
}

func (t *lockTable) mutex(key uint64) *sync.Mutex {
	t.mu.Lock()
	defer t.mu.Unlock()
	m, ok := t.locks[key]
	if !ok {
		m = &sync.Mutex{}
		t.locks[key] = m
	}
	return m
}

// acquire locks every key in keys, which must already be sorted
// ascending and deduplicated.
func (t *lockTable) acquire(keys []uint64) {
	for _, k := range keys {
		t.mutex(k).Lock()
	}
}

// release unlocks every key in keys, in reverse of acquisition order.
func (t *lockTable) release(keys []uint64) {
	for i := len(keys) - 1; i >= 0; i-- {
		t.mutex(keys[i]).Unlock()
	}
}
