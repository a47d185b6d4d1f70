//go:build !amd64

package fastfair

import (
	"sync/atomic"
	"unsafe"
)

// Platforms without clflush get fence-only ordering. Durability then
// depends on the pool's msync at close; crash consistency within a
// power-fail domain is an amd64-with-DAX property.

var fenceWord uint64

func clflushLine(addr unsafe.Pointer) {}

func mfence() {
	atomic.AddUint64(&fenceWord, 0)
}

func rdtsc() uint64 { return 0 }

func cpuPause() {}
