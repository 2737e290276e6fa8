package domain

import "math/rand/v2"

// Sampling selects a deterministic subset of records. A Fraction of 1 or more
// (the default) keeps everything.
type Sampling struct {
	Fraction float64
	Seed     uint64
}

// Enabled reports whether the sampling drops anything.
func (s Sampling) Enabled() bool {
	return s.Fraction > 0 && s.Fraction < 1
}

// Sample keeps each item with probability s.Fraction. The same seed and input
// always yield the same subset, in input order.
func Sample[T any](items []T, s Sampling) []T {
	if !s.Enabled() {
		return items
	}
	rng := rand.New(rand.NewPCG(s.Seed, s.Seed^0x9e3779b97f4a7c15))
	out := make([]T, 0, int(float64(len(items))*s.Fraction)+1)
	for _, it := range items {
		if rng.Float64() < s.Fraction {
			out = append(out, it)
		}
	}
	return out
}
