package hdc

import (
	"crypto/sha256"
	"encoding/binary"
)

// Random derives the item vector for key under seed.
// Block c of the expansion is SHA256(seed || key || uint64_le(c)); blocks are
// concatenated and truncated to Bytes. The same (seed, key) pair yields the
// same vector in every process.
func Random(seed Seed, key string) Vector {
	var buf [Words * 8]byte
	var ctr [8]byte

	h := sha256.New()
	for c, off := uint64(0), 0; off < Bytes; c++ {
		h.Reset()
		h.Write(seed[:])
		h.Write([]byte(key))
		binary.LittleEndian.PutUint64(ctr[:], c)
		h.Write(ctr[:])
		off += copy(buf[off:Bytes], h.Sum(nil))
	}
	return fromBytes(buf[:Bytes])
}
