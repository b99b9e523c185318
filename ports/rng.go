package ports

import "math/rand/v2"

// RNGPort provides seeded random sources for deterministic chains
type RNGPort interface {
	// Stream creates a deterministic source for a named chain starting at a given sweep.
	// Identical arguments always yield identical streams.
	Stream(name string, seed uint64, sweep int) rand.Source
}

