//go:build amd64

package fastfair

import "unsafe"

// clflushLine flushes the cache line containing addr.
//
//go:noescape
func clflushLine(addr unsafe.Pointer)

// mfence issues a full store-load fence.
func mfence()

// rdtsc reads the time-stamp counter.
func rdtsc() uint64

// cpuPause hints a spin-wait loop to the CPU.
func cpuPause()
