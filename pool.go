package fastfair

import (
	"os"
	"sync"
	"sync/atomic"
	"unsafe"

	mmappkg "github.com/Giulio2002/fastfair/mmap"
)

// poolHeader occupies the first 64 bytes of the pool file. Offset 0 is
// therefore never a node, which makes 0 usable as the null offset.
//
// Memory layout (native-endian, fits one cache line):
//
//	Offset  Size  Field
//	0       4     magic
//	4       4     version
//	8       8     size
//	16      8     next (bump-allocation cursor)
//	24      8     rootOff (root object offset, 0 until allocated)
//	32      32    reserved
type poolHeader struct {
	magic   uint32
	version uint32
	size    uint64
	next    uint64
	rootOff uint64
	_       [32]byte
}

// Pool is a thin facade over a DAX-mappable file. It hands out
// cache-line-aligned zeroed blocks at stable offsets and persists byte
// ranges on request. The tree operates solely on offsets returned from
// here; no pool-internal identifiers leak out.
type Pool struct {
	path string
	file *os.File
	m    *mmappkg.Map
	data []byte

	allocMu sync.Mutex

	// Volatile free list. Freed blocks are recorded but never reused
	// while the pool is open: a lock-free reader may still be traversing
	// a just-merged node, and reuse would let it observe foreign bytes.
	// Reclamation needs an epoch scheme; until then this only leaks.
	freeMu   sync.Mutex
	freeList []uint64

	closed atomic.Bool
}

// openPool opens or creates a pool file of the given size. Opening an
// existing pool ignores size and maps the file as it is on disk.
func openPool(path string, size int64) (*Pool, error) {
	if size < MinPoolSize {
		size = MinPoolSize
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, WrapError(ErrPoolUnavailable, err)
	}

	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, WrapError(ErrPoolUnavailable, err)
	}

	fresh := fi.Size() == 0
	if fresh {
		if err := f.Truncate(size); err != nil {
			f.Close()
			return nil, WrapError(ErrPoolUnavailable, err)
		}
	} else {
		size = fi.Size()
	}

	m, err := mmappkg.New(int(f.Fd()), int(size), true)
	if err != nil {
		f.Close()
		return nil, WrapError(ErrPoolUnavailable, err)
	}

	p := &Pool{
		path: path,
		file: f,
		m:    m,
		data: m.Data(),
	}

	hdr := p.header()
	if fresh {
		hdr.magic = poolMagic
		hdr.version = poolVersion
		hdr.size = uint64(size)
		hdr.next = poolHeaderSize
		hdr.rootOff = nullOff
		clflush(unsafe.Pointer(hdr), poolHeaderSize)
	} else {
		if hdr.magic != poolMagic {
			p.close()
			return nil, NewError(ErrInvalid)
		}
		if hdr.version != poolVersion {
			p.close()
			return nil, NewError(ErrVersionMismatch)
		}
		if hdr.size != uint64(size) || hdr.next > hdr.size {
			p.close()
			return nil, NewError(ErrCorrupted)
		}
	}

	return p, nil
}

func (p *Pool) header() *poolHeader {
	return (*poolHeader)(unsafe.Pointer(&p.data[0]))
}

// at translates a pool offset into a live pointer. Offsets are the
// persistent pointer representation: the file may be mapped at a
// different base address on every open.
func (p *Pool) at(off uint64) unsafe.Pointer {
	return unsafe.Pointer(&p.data[off])
}

// offsetOf is the inverse of at for pointers into the mapping.
func (p *Pool) offsetOf(ptr unsafe.Pointer) uint64 {
	return uint64(uintptr(ptr) - uintptr(unsafe.Pointer(&p.data[0])))
}

// AllocZeroed allocates a zeroed, cache-line-aligned block and returns
// its offset. The allocation cursor is persisted before the offset is
// handed out, so a crash can leak the block but never double-allocate it.
func (p *Pool) AllocZeroed(size uint64) (uint64, error) {
	size = (size + CacheLineSize - 1) &^ (CacheLineSize - 1)

	p.allocMu.Lock()
	hdr := p.header()
	off := hdr.next
	if off+size > hdr.size {
		p.allocMu.Unlock()
		return 0, NewError(ErrOutOfSpace)
	}
	hdr.next = off + size
	clflush(unsafe.Pointer(&hdr.next), 8)
	p.allocMu.Unlock()

	// Never-allocated space reads as zero, but a block leaked by an
	// earlier crash may carry partial writes. Zero unconditionally; the
	// caller flushes the block before publishing it.
	clear(p.data[off : off+size])

	stats.allocs.Add(1)
	return off, nil
}

// Free records a block as dead. Storage is not reused; see freeList.
func (p *Pool) Free(off uint64) {
	p.freeMu.Lock()
	p.freeList = append(p.freeList, off)
	p.freeMu.Unlock()
}

// Root returns the offset of the pool's single root object, allocating
// it on first use. The offset is stable across restarts.
func (p *Pool) Root(size uint64) (uint64, error) {
	hdr := p.header()
	if hdr.rootOff != nullOff {
		return hdr.rootOff, nil
	}

	off, err := p.AllocZeroed(size)
	if err != nil {
		return 0, err
	}
	clflush(p.at(off), int(size))

	hdr.rootOff = off
	clflush(unsafe.Pointer(&hdr.rootOff), 8)
	return off, nil
}

// Persist makes the byte range [off, off+n) durable.
func (p *Pool) Persist(off uint64, n int) {
	clflush(p.at(off), n)
}

// Sync msyncs the whole mapping. Used at close as a belt-and-braces
// durability point for non-DAX filesystems.
func (p *Pool) Sync() error {
	return p.m.Sync()
}

func (p *Pool) close() error {
	if p.closed.Swap(true) {
		return nil
	}
	err := p.m.Close()
	if cerr := p.file.Close(); err == nil {
		err = cerr
	}
	return err
}
