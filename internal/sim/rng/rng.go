// Package rng is the deterministic random stream shared by world generation and tick
// resolution. Identical state always yields an identical stream.
package rng

import (
	"cmp"
	"fmt"
	"math/bits"
	"slices"
)

const (
	hashSeed = 0x9747b28c
	hashMul  = 0x5bd1e995

	// Used when a seed hashes to the all-zero state, which xorshift never leaves.
	fallbackLo = 0x853c49e6748fea9b
	fallbackHi = 0xda3e39cb94b95bdb
)

// RNG is a 128-bit xorshift+ generator. It is not safe for concurrent use.
type RNG struct {
	s [2]uint64
}

// State is the exported form of the generator: two unsigned 32-bit halves (hi, lo) per lane.
type State [2][2]uint32

func hash32(seed uint32, s string) uint32 {
	h := seed ^ uint32(len(s))
	for i := 0; i < len(s); i++ {
		h = bits.RotateLeft32((h^uint32(s[i]))*hashMul, 13)
	}
	return h
}

// From derives a generator from a string seed through four chained hash passes, each seeded
// from the previous one, so the four 32-bit words differ even for short seeds. The two-pass
// layout of the reference server is not reproduced, so a seed does not yield the same world
// as other implementations; streams are only stable within this module.
func From(seed string) *RNG {
	h1 := hash32(hashSeed, seed)
	h2 := hash32(h1, seed)
	h3 := hash32(h2, seed)
	h4 := hash32(h3, seed)
	r := &RNG{s: [2]uint64{uint64(h1)<<32 | uint64(h2), uint64(h3)<<32 | uint64(h4)}}
	r.fix()
	return r
}

// FromState rebuilds a generator from an exported state.
func FromState(st State) *RNG {
	r := &RNG{s: [2]uint64{
		uint64(st[0][0])<<32 | uint64(st[0][1]),
		uint64(st[1][0])<<32 | uint64(st[1][1]),
	}}
	r.fix()
	return r
}

func (r *RNG) fix() {
	if r.s[0] == 0 && r.s[1] == 0 {
		r.s[0], r.s[1] = fallbackLo, fallbackHi
	}
}

// State exports the generator. FromState(r.State()) continues the same stream.
func (r *RNG) State() State {
	return State{
		{uint32(r.s[0] >> 32), uint32(r.s[0])},
		{uint32(r.s[1] >> 32), uint32(r.s[1])},
	}
}

func (r *RNG) Next64() uint64 {
	s1 := r.s[0]
	s0 := r.s[1]
	r.s[0] = s0
	s1 ^= s1 << 23
	r.s[1] = s1 ^ s0 ^ (s1 >> 17) ^ (s0 >> 26)
	return r.s[1] + s0
}

func (r *RNG) Next32() uint32 {
	return uint32(r.Next64() >> 32)
}

// Uniform returns a float in [0,1).
func (r *RNG) Uniform() float64 {
	return float64(r.Next64()>>11) / (1 << 53)
}

// Intn returns an int in [0,n). n <= 0 returns 0.
func (r *RNG) Intn(n int) int {
	if n <= 0 {
		return 0
	}
	return int(r.Next64() % uint64(n))
}

// Hex64 returns 16 lowercase hex digits, used for object ids.
func (r *RNG) Hex64() string {
	return fmt.Sprintf("%016x", r.Next64())
}

// Pick removes and returns a uniformly chosen element. The last element takes the removed
// slot, so the order of the remaining elements is not preserved.
func Pick[T any](r *RNG, s *[]T) (T, bool) {
	var zero T
	n := len(*s)
	if n == 0 {
		return zero, false
	}
	i := r.Intn(n)
	v := (*s)[i]
	(*s)[i] = (*s)[n-1]
	(*s)[n-1] = zero
	*s = (*s)[:n-1]
	return v, true
}

// Select removes and returns a uniformly chosen entry. Keys are ordered before drawing so the
// result does not depend on map iteration order.
func Select[K cmp.Ordered, V any](r *RNG, m map[K]V) (K, V, bool) {
	var (
		zk K
		zv V
	)
	if len(m) == 0 {
		return zk, zv, false
	}
	keys := make([]K, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	k := keys[r.Intn(len(keys))]
	v := m[k]
	delete(m, k)
	return k, v, true
}
