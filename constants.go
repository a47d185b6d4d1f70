package fastfair

// Node geometry - compile-time, matches the on-media layout exactly
const (
	// PageSize is the size of one tree node in bytes
	PageSize = 512

	// CacheLineSize is the flush granularity of the persistence domain
	CacheLineSize = 64

	// headerSize is the fixed node header size, padded so entries start
	// at a cache-line friendly offset
	headerSize = 32

	// entrySize is the size of one key/pointer slot
	entrySize = 16

	// cardinality is the number of entry slots per node. One slot is
	// always reserved for the null-pointer terminator, so a node holds
	// at most cardinality-1 live entries.
	cardinality = (PageSize - headerSize) / entrySize
)

// Pool layout constants
const (
	// poolMagic identifies fastfair pool files ("FFBT")
	poolMagic uint32 = 0x46464254

	// poolVersion is the pool file format version
	poolVersion = 1

	// poolHeaderSize is the reserved region at offset 0 of the pool.
	// Offset 0 doubles as the null pointer, so no node may live there.
	poolHeaderSize = 64

	// treeRootSize is the size of the persistent tree descriptor,
	// allocated as the pool's single root object
	treeRootSize = 64

	// MinPoolSize is the smallest pool that can hold the header, the
	// tree descriptor and at least one node
	MinPoolSize = poolHeaderSize + treeRootSize + PageSize

	// DefaultPoolSize is used when no pool size option is given
	DefaultPoolSize = 1 << 30
)

// nullOff is the persistent null pointer. Offset 0 is the pool header,
// which is never a node, so 0 is unambiguous.
const nullOff uint64 = 0

// Occupancy threshold below which an (enabled) rebalance is attempted
const rebalanceThreshold = (cardinality - 1) / 2
