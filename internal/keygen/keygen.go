// Package keygen generates deterministic pseudo-random 64-bit keys for
// benchmarks and tests.
package keygen

// Generator is a splitmix64 stream. The same seed always yields the
// same key sequence, which lets warm-up and measurement phases of a
// benchmark agree on the key set without storing it.
type Generator struct {
	state uint64
}

// New returns a generator seeded with seed.
func New(seed uint64) *Generator {
	return &Generator{state: seed}
}

// Next returns the next key in the stream.
func (g *Generator) Next() int64 {
	g.state += 0x9e3779b97f4a7c15
	z := g.state
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return int64(z ^ (z >> 31))
}

// Keys returns the first n keys of the stream.
func (g *Generator) Keys(n int) []int64 {
	out := make([]int64, n)
	for i := range out {
		out[i] = g.Next()
	}
	return out
}
