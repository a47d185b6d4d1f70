package fastfair

import (
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"unsafe"

	"go.uber.org/zap"
)

// treeRoot is the pool's root object: the persistent tree descriptor.
// Padded to a cache line so it persists in one flush.
type treeRoot struct {
	root   uint64
	height uint32
	_      [52]byte
}

func _() {
	var _ [treeRootSize - unsafe.Sizeof(treeRoot{})]byte
	var _ [unsafe.Sizeof(treeRoot{}) - treeRootSize]byte
}

// Tree is a handle to a persistent B+-tree. All methods are safe for
// concurrent use; lookups and scans never block behind writers.
type Tree struct {
	pool  *Pool
	locks *lockTable
	meta  *treeRoot

	log       *zap.Logger
	rebalance bool

	dumpMu sync.Mutex
	closed atomic.Bool
}

// Record is one key/value pair for bulk loading.
type Record struct {
	Key   int64
	Value uint64
}

// Open opens or creates the tree stored in the pool file at path.
// Opening an existing pool ignores WithPoolSize and maps the file as it
// is on disk. Node mutexes are volatile and start fresh on every open.
func Open(path string, opts ...Option) (*Tree, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.writeLatency > 0 {
		SetWriteLatency(o.writeLatency)
	}

	pool, err := openPool(path, o.poolSize)
	if err != nil {
		return nil, err
	}

	rootObj, err := pool.Root(treeRootSize)
	if err != nil {
		pool.close()
		return nil, err
	}

	t := &Tree{
		pool:      pool,
		locks:     newLockTable(),
		meta:      (*treeRoot)(pool.at(rootObj)),
		log:       o.logger,
		rebalance: o.rebalance,
	}

	if t.loadRoot() == nullOff {
		// Fresh pool: the tree starts as a single empty leaf.
		off, n, err := t.allocNode(0)
		if err != nil {
			pool.close()
			return nil, err
		}
		clflush(unsafe.Pointer(n), PageSize)

		atomic.StoreUint64(&t.meta.root, off)
		atomic.StoreUint32(&t.meta.height, 1)
		clflush(unsafe.Pointer(t.meta), treeRootSize)

		t.log.Info("created tree pool",
			zap.String("path", path),
			zap.Int64("size", pool.m.Size()))
	} else {
		t.log.Info("opened tree pool",
			zap.String("path", path),
			zap.Uint32("height", t.Height()))
	}

	return t, nil
}

// Close msyncs and unmaps the pool. The handle is unusable afterwards.
func (t *Tree) Close() error {
	if t.closed.Swap(true) {
		return nil
	}
	if err := t.pool.Sync(); err != nil {
		t.pool.close()
		return WrapError(ErrPoolUnavailable, err)
	}
	t.log.Info("closed tree pool", zap.String("path", t.pool.path))
	return t.pool.close()
}

// Height returns the current tree height (1 for a single leaf).
func (t *Tree) Height() uint32 {
	return atomic.LoadUint32(&t.meta.height)
}

func (t *Tree) loadRoot() uint64 {
	return atomic.LoadUint64(&t.meta.root)
}

// setNewRoot publishes a new root and persists the descriptor. Only a
// thread that holds the old root's lock gets here, after a root == self
// check made while that lock is held.
func (t *Tree) setNewRoot(off uint64) {
	atomic.StoreUint64(&t.meta.root, off)
	clflush(unsafe.Pointer(&t.meta.root), 8)
	atomic.AddUint32(&t.meta.height, 1)
}

// collapseRoot promotes the root's single child.
func (t *Tree) collapseRoot(child uint64) {
	atomic.StoreUint64(&t.meta.root, child)
	clflush(unsafe.Pointer(&t.meta.root), 8)
}

// allocNode carves a zeroed node out of the pool. lastIndex starts at
// -1 (empty); the zero switch counter means forward, the parity all
// invariants assume for new nodes.
func (t *Tree) allocNode(level uint32) (uint64, *node, error) {
	off, err := t.pool.AllocZeroed(PageSize)
	if err != nil {
		return 0, nil, err
	}
	n := t.pool.node(off)
	n.hdr.level = level
	n.hdr.setLastIndex(-1)
	return off, n, nil
}

// node overlays the node at the given offset.
func (p *Pool) node(off uint64) *node {
	return (*node)(p.at(off))
}

func (t *Tree) lockOf(n *node) *sync.Mutex {
	return t.locks.of(t.pool.offsetOf(unsafe.Pointer(n)))
}

func (t *Tree) unlockPair(err error, withLock bool, a, b *sync.Mutex) error {
	if withLock {
		a.Unlock()
		b.Unlock()
	}
	return err
}

// newRootNode builds the parent created by a root split: leftmost child
// on the left, a single separator entry pointing right. The node is
// flushed whole before it is published.
func (t *Tree) newRootNode(left uint64, key int64, right uint64, level uint32) (uint64, error) {
	off, n, err := t.allocNode(level)
	if err != nil {
		return 0, err
	}
	n.hdr.setLeftmost(left)
	n.records[0].setKey(key)
	n.records[0].setPtr(right)
	n.records[1].setPtr(nullOff)
	n.hdr.setLastIndex(0)
	clflush(unsafe.Pointer(n), PageSize)
	return off, nil
}

// Insert stores value under key, replacing nothing: like the reference
// implementation, duplicate keys coexist. A duplicate lands right of the
// existing entry, so Search returns the older one while the node's
// switch counter is even and the newer one while it is odd.
// value must be non-zero.
func (t *Tree) Insert(key int64, value uint64) error {
	if value == nullOff {
		return NewError(ErrBadValue)
	}
	if t.closed.Load() {
		return NewError(ErrClosed)
	}
	stats.inserts.Add(1)

	// Re-descend rather than recurse when the target leaf was deleted
	// under us; pathological scheduling makes this loop unbounded only
	// if rebalancing keeps deleting the leaf, so no cap is needed.
	for {
		n := t.pool.node(t.loadRoot())
		for !n.isLeaf() {
			n = t.pool.node(n.linearSearchInternal(t.pool, key))
		}

		ret, err := n.store(t, key, value, true, nullOff)
		if err != nil {
			return err
		}
		if ret != nullOff {
			return nil
		}
	}
}

// insertInternal places a separator key at the given level after a
// split. If the level exceeds the root's, the root split that would
// have created it has already happened and there is nothing to do.
func (t *Tree) insertInternal(key int64, right uint64, level uint32) error {
	for {
		root := t.pool.node(t.loadRoot())
		if level > root.hdr.level {
			return nil
		}

		n := root
		for n.hdr.level > level {
			n = t.pool.node(n.linearSearchInternal(t.pool, key))
		}

		ret, err := n.store(t, key, right, true, nullOff)
		if err != nil {
			return err
		}
		if ret != nullOff {
			return nil
		}
	}
}

// Search returns the value stored under key.
func (t *Tree) Search(key int64) (uint64, bool) {
	if t.closed.Load() {
		return 0, false
	}
	stats.searches.Add(1)

	n := t.pool.node(t.loadRoot())
	for !n.isLeaf() {
		n = t.pool.node(n.linearSearchInternal(t.pool, key))
	}

	// The key may sit right of this leaf if a split has not yet been
	// propagated; follow the sibling chain until settled.
	for {
		val, sib := n.linearSearchLeaf(t.pool, key)
		if val != nullOff {
			return val, true
		}
		if sib == nullOff {
			return 0, false
		}
		n = t.pool.node(sib)
	}
}

// Delete removes key. Returns false if the key was not present.
func (t *Tree) Delete(key int64) bool {
	if t.closed.Load() {
		return false
	}
	stats.deletes.Add(1)

	for {
		n := t.pool.node(t.loadRoot())
		for !n.isLeaf() {
			n = t.pool.node(n.linearSearchInternal(t.pool, key))
		}

		// Find the leaf that actually owns the key.
		for {
			val, sib := n.linearSearchLeaf(t.pool, key)
			if val != nullOff {
				break
			}
			if sib == nullOff {
				return false
			}
			n = t.pool.node(sib)
		}

		if n.remove(t, key) {
			return true
		}
		// The key moved while we were locking; start over.
	}
}

// deleteInternal removes the separator for ptr from its parent at the
// given level. It reports the removed key and the left sibling of ptr,
// or isLeftmost when ptr is the parent's leftmost child.
func (t *Tree) deleteInternal(key int64, ptr uint64, level uint32) (deletedKey int64, isLeftmost bool, leftSibling uint64) {
	root := t.pool.node(t.loadRoot())
	if level > root.hdr.level {
		return 0, false, nullOff
	}

	n := root
	for n.hdr.level > level {
		n = t.pool.node(n.linearSearchInternal(t.pool, key))
	}

	mtx := t.lockOf(n)
	mtx.Lock()
	defer mtx.Unlock()

	if n.hdr.loadLeftmost() == ptr {
		return 0, true, nullOff
	}

	for i := 0; i < cardinality && n.records[i].loadPtr() != nullOff; i++ {
		if n.records[i].loadPtr() != ptr {
			continue
		}
		if i == 0 {
			if n.hdr.loadLeftmost() != n.records[i].loadPtr() {
				deletedKey = n.records[i].loadKey()
				leftSibling = n.hdr.loadLeftmost()
				n.removeKey(deletedKey)
				break
			}
		} else {
			if n.records[i-1].loadPtr() != n.records[i].loadPtr() {
				deletedKey = n.records[i].loadKey()
				leftSibling = n.records[i-1].loadPtr()
				n.removeKey(deletedKey)
				break
			}
		}
	}

	return deletedKey, false, leftSibling
}

// Range appends the values of all keys in [min, max) to buf, in
// ascending key order, and returns how many were stored. The scan takes
// no locks. The different-pointer filter drops mid-shift slots within a
// node; it does not drop entries seen twice across nodes, so a scan that
// races a split can return the moved entries both from the splitting
// node and from its new sibling.
func (t *Tree) Range(min, max int64, buf []uint64) int {
	if t.closed.Load() {
		return 0
	}
	stats.rangeScans.Add(1)

	n := t.pool.node(t.loadRoot())
	for !n.isLeaf() {
		n = t.pool.node(n.linearSearchInternal(t.pool, min))
	}
	return n.linearSearchRange(t.pool, min, max, buf)
}

// BulkLoad inserts all records. Purely a convenience loop; the FAST
// insert path is already append-friendly for sorted input.
func (t *Tree) BulkLoad(recs []Record) error {
	for _, r := range recs {
		if err := t.Insert(r.Key, r.Value); err != nil {
			return err
		}
	}
	return nil
}

// Len walks the leaf level and returns the number of live entries.
// Meant for tests and diagnostics, not hot paths.
func (t *Tree) Len() int {
	n := t.pool.node(t.loadRoot())
	for !n.isLeaf() {
		n = t.pool.node(n.hdr.loadLeftmost())
	}

	total := 0
	for {
		total += n.count()
		sib := n.hdr.loadSibling()
		if sib == nullOff {
			return total
		}
		n = t.pool.node(sib)
	}
}

// Dump writes a level-by-level rendering of the tree, walking each
// level through the sibling chain.
func (t *Tree) Dump(w io.Writer) {
	t.dumpMu.Lock()
	defer t.dumpMu.Unlock()

	totalKeys := 0
	leftmost := t.pool.node(t.loadRoot())
	fmt.Fprintf(w, "root: %#x\n", t.loadRoot())
	for {
		n := leftmost
		for n != nil {
			if n.hdr.level == 0 {
				_, _, last := n.hdr.loadStatus()
				totalKeys += last + 1
			}
			n.dump(t.pool, w)
			sib := n.hdr.loadSibling()
			if sib == nullOff {
				n = nil
			} else {
				n = t.pool.node(sib)
			}
		}
		fmt.Fprintln(w, "-----------------------------------------")
		if leftmost.isLeaf() {
			break
		}
		leftmost = t.pool.node(leftmost.hdr.loadLeftmost())
	}
	fmt.Fprintf(w, "total number of keys: %d\n", totalKeys)
}

// dump renders one node.
func (n *node) dump(p *Pool, w io.Writer) {
	kind := "internal"
	if n.isLeaf() {
		kind = "leaf"
	}
	counter, deleted, last := n.hdr.loadStatus()
	fmt.Fprintf(w, "[%d] %s %#x last_index=%d switch_counter=%d deleted=%v\n",
		n.hdr.level, kind, p.offsetOf(unsafe.Pointer(n)), last, counter, deleted)

	if lm := n.hdr.loadLeftmost(); lm != nullOff {
		fmt.Fprintf(w, "  leftmost=%#x", lm)
	}
	for i := 0; i < cardinality && n.records[i].loadPtr() != nullOff; i++ {
		fmt.Fprintf(w, " %d:%#x", n.records[i].loadKey(), n.records[i].loadPtr())
	}
	fmt.Fprintf(w, " sibling=%#x\n", n.hdr.loadSibling())
}
