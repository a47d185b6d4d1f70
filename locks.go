package fastfair

import "sync"

// The reference layout reserves a pointer-sized mutex slot inside each
// node header, but a heap pointer stored in persistent memory is garbage
// after a restart. Writer mutexes therefore live in this volatile table,
// keyed by node offset, and are rebuilt implicitly on every pool open.

const lockShards = 128

type lockTable struct {
	shards [lockShards]lockShard
}

type lockShard struct {
	mu    sync.Mutex
	locks map[uint64]*sync.Mutex
}

func newLockTable() *lockTable {
	lt := &lockTable{}
	for i := range lt.shards {
		lt.shards[i].locks = make(map[uint64]*sync.Mutex)
	}
	return lt
}

// of returns the writer mutex for the node at the given offset,
// creating it on first use. Node offsets lie a page apart, so dividing
// by the page size spreads them evenly over the shards.
func (lt *lockTable) of(off uint64) *sync.Mutex {
	s := &lt.shards[(off/PageSize)%lockShards]
	s.mu.Lock()
	m, ok := s.locks[off]
	if !ok {
		m = &sync.Mutex{}
		s.locks[off] = m
	}
	s.mu.Unlock()
	return m
}
