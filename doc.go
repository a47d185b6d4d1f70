// Package fastfair is a concurrent, crash-consistent B+-tree whose nodes
// live in byte-addressable persistent memory mapped into the process's
// address space.
//
// The tree indexes fixed-width 64-bit keys to fixed-width 64-bit values and
// supports point lookup, insertion, deletion and range scan from multiple
// goroutines. Durability is cache-line grained: every mutation is ordered
// through flush-and-fence primitives so that a node is self-recoverable
// after a crash in the middle of a shift or a split.
//
// Key features:
//   - 512-byte persistent nodes with an in-place sorted entry array
//   - Failure-atomic shifting: insert and delete flush only on cache-line
//     boundaries, never logging and never copying whole nodes
//   - Failure-atomic splits: a new sibling is made fully durable before it
//     is linked, and the parent is updated last; readers cross splits via
//     sibling pointers, so a crash between the two steps is benign
//   - Lock-free readers with per-node writer mutexes; readers detect
//     in-progress shifts through a per-node switch counter and retry
//   - Pool-relative node offsets, so the backing file may be mapped at a
//     different address on every open
//
// Basic usage:
//
//	t, err := fastfair.Open("/mnt/pmem0/tree.data",
//	    fastfair.WithPoolSize(1<<30))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer t.Close()
//
//	if err := t.Insert(42, 0xdead); err != nil {
//	    log.Fatal(err)
//	}
//
//	if v, ok := t.Search(42); ok {
//	    fmt.Println(v)
//	}
//
//	buf := make([]uint64, 16)
//	n := t.Range(0, 100, buf)
//	fmt.Println(buf[:n])
package fastfair
