// Package rng derives deterministic random streams for chains.
package rng

import (
	"math/rand/v2"

	"pulsaroutlier/ports"
)

// SeededRNG implements ports.RNGPort. A stream is keyed by the run seed,
// the chain name and the sweep it starts at, so a resumed chain gets a fresh
// but reproducible stream.
type SeededRNG struct{}

// New returns the default stream factory
func New() ports.RNGPort { return SeededRNG{} }

// Stream creates a PCG source for chain name starting at sweep
func (SeededRNG) Stream(name string, seed uint64, sweep int) rand.Source {
	return rand.NewPCG(seed+uint64(hashString(name)), uint64(sweep))
}

// ChainSeed gives chain k of a run its own seed
func ChainSeed(seed uint64, k int) uint64 {
	return seed + uint64(k)*0x9e3779b97f4a7c15
}

// hashString creates a simple hash for deterministic seeding
func hashString(s string) uint32 {
	var hash uint32 = 5381
	for _, c := range s {
		hash = ((hash << 5) + hash) + uint32(c) // djb2 algorithm
	}
	return hash
}
