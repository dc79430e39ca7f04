// Package hdc implements the hyperdimensional computing primitives used by
// every encoder: a fixed-width binary hypervector, deterministic seeded item
// vectors, and the bind/bundle/permute algebra.
//
// The dimension is fixed at compile time and is part of the Vector type, so
// operations on vectors of different widths cannot be expressed.
package hdc

import (
	"encoding/binary"
	stderrors "errors"
	"fmt"

	gverr "github.com/23skdu/genovec/internal/errors"
	"github.com/23skdu/genovec/internal/simd"
)

const (
	// Dim is the number of bits in a hypervector.
	Dim = 10000
	// Bytes is the size of the canonical byte form.
	Bytes = (Dim + 7) / 8
	// Words is the number of 64-bit storage words.
	Words = (Dim + 63) / 64

	tailBits = Dim % 64
	tailMask = uint64(1)<<tailBits - 1
)

// ErrInvalidDimension is returned when a byte buffer is not exactly Bytes long.
var ErrInvalidDimension = stderrors.New("invalid hypervector dimension")

// Vector is an immutable bit-packed hypervector.
// Padding bits in the final word are always zero. Vector is a value type:
// assignment copies and every operation returns a new vector.
type Vector struct {
	w [Words]uint64
}

// Zero returns the all-zero vector.
func Zero() Vector { return Vector{} }

// FromBytes builds a vector from its canonical little-endian byte form.
func FromBytes(b []byte) (Vector, error) {
	if len(b) != Bytes {
		return Vector{}, gverr.WrapValidationError(ErrInvalidDimension, "hdc.FromBytes",
			fmt.Sprintf("expected %d bytes, got %d", Bytes, len(b))).
			WithContext("expected", Bytes).
			WithContext("got", len(b))
	}
	return fromBytes(b), nil
}

func fromBytes(b []byte) Vector {
	var v Vector
	var buf [Words * 8]byte
	copy(buf[:], b)
	for i := range v.w {
		v.w[i] = binary.LittleEndian.Uint64(buf[i*8:])
	}
	v.w[Words-1] &= tailMask
	return v
}

// Bytes returns the canonical byte form: bit i is bit i%8 of byte i/8.
func (v Vector) Bytes() []byte {
	var buf [Words * 8]byte
	for i, w := range v.w {
		binary.LittleEndian.PutUint64(buf[i*8:], w)
	}
	out := make([]byte, Bytes)
	copy(out, buf[:Bytes])
	return out
}

// Words returns a copy of the packed storage words.
func (v Vector) Words() []uint64 {
	out := make([]uint64, Words)
	copy(out, v.w[:])
	return out
}

// Bit reports bit i. Out-of-range indexes read as false.
func (v Vector) Bit(i int) bool {
	if i < 0 || i >= Dim {
		return false
	}
	return v.w[i/64]>>(uint(i)%64)&1 == 1
}

// SetBit returns a copy of v with bit i set to val. Out-of-range indexes are ignored.
func (v Vector) SetBit(i int, val bool) Vector {
	if i < 0 || i >= Dim {
		return v
	}
	if val {
		v.w[i/64] |= 1 << (uint(i) % 64)
	} else {
		v.w[i/64] &^= 1 << (uint(i) % 64)
	}
	return v
}

// Popcount returns the number of set bits.
func (v Vector) Popcount() int {
	return simd.PopcountWords(v.w[:])
}

// Equal reports bit-for-bit equality.
func (v Vector) Equal(o Vector) bool {
	return v.w == o.w
}

// IsZero reports whether no bit is set.
func (v Vector) IsZero() bool {
	return v.w == [Words]uint64{}
}
