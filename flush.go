package fastfair

import (
	"sync/atomic"
	"time"
	"unsafe"
)

// cpuFreqMHz is the assumed TSC frequency used to convert the emulated
// write latency from nanoseconds to TSC ticks. The emulation busy-waits,
// so a few percent of error does not matter.
const cpuFreqMHz = 1994

// writeLatencyTicks is the per-cache-line busy-wait budget in TSC ticks.
// Zero disables emulation. Read on every flushed line, so kept atomic.
var writeLatencyTicks atomic.Uint64

// SetWriteLatency configures an artificial per-cache-line write latency,
// emulating persistent memory that is slower than DRAM. It applies to
// every flush issued by the package. A zero duration disables emulation.
// Emulation requires the TSC and is a no-op on platforms without one.
func SetWriteLatency(d time.Duration) {
	if d <= 0 || rdtsc() == 0 {
		writeLatencyTicks.Store(0)
		return
	}
	writeLatencyTicks.Store(uint64(d.Nanoseconds()) * cpuFreqMHz / 1000)
}

// flushHook, when set, observes every clflush call. Tests use it to inject
// a crash between two flushes. Must only be set while no writers run.
var flushHook func(p unsafe.Pointer, n int)

// clflush makes the byte range [p, p+n) durable. Every cache line
// overlapping the range is flushed, bracketed by store fences so that
// preceding stores are observed before the flush and no later store is
// reordered ahead of it. Returns only once the covered bytes are durable.
func clflush(p unsafe.Pointer, n int) {
	if flushHook != nil {
		flushHook(p, n)
	}
	stats.flushes.Add(1)

	// Rewind to the start of the first overlapping cache line.
	head := int(uintptr(p) % CacheLineSize)
	base := unsafe.Add(p, -head)
	n += head

	lat := writeLatencyTicks.Load()

	mfence()
	for off := 0; off < n; off += CacheLineSize {
		line := unsafe.Add(base, off)
		if lat != 0 {
			etsc := rdtsc() + lat
			clflushLine(line)
			for rdtsc() < etsc {
				cpuPause()
			}
		} else {
			clflushLine(line)
		}
	}
	mfence()
}
