package hdc

import (
	"crypto/sha256"
	"fmt"

	"github.com/cespare/xxhash/v2"
)

// Seed is the 32-byte secret every item vector is derived from.
type Seed [32]byte

// SeedFromString hashes s with SHA-256.
func SeedFromString(s string) Seed {
	return Seed(sha256.Sum256([]byte(s)))
}

// SeedFromBytes uses b verbatim.
func SeedFromBytes(b [32]byte) Seed {
	return Seed(b)
}

// Fingerprint identifies the seed in logs and cache keys without revealing it.
func (s Seed) Fingerprint() uint64 {
	return xxhash.Sum64(s[:])
}

// String renders the fingerprint, never the seed itself.
func (s Seed) String() string {
	return fmt.Sprintf("seed:%016x", s.Fingerprint())
}
