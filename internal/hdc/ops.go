package hdc

import (
	"math/bits"

	"github.com/23skdu/genovec/internal/simd"
)

// Bind associates two vectors via XOR. Bind(Bind(a, b), b) == a.
func Bind(a, b Vector) Vector {
	var out Vector
	simd.XorWords(out.w[:], a.w[:], b.w[:])
	return out
}

// Bind is the method form of Bind.
func (v Vector) Bind(o Vector) Vector { return Bind(v, o) }

// Bundle returns the per-bit majority of vs. A bit is set iff more than
// len(vs)/2 (integer division) inputs set it, so ties resolve to 0.
// Bundling nothing yields the zero vector.
func Bundle(vs ...Vector) Vector {
	if len(vs) == 1 {
		return vs[0]
	}
	acc := NewAccumulator()
	defer acc.Release()
	for i := range vs {
		acc.add(&vs[i])
	}
	return acc.Vector()
}

// Accumulator bundles vectors incrementally so long inputs need not be
// materialised. Call Release when done.
type Accumulator struct {
	counts *[]int32
	n      int
}

// NewAccumulator returns an empty accumulator backed by a pooled buffer.
func NewAccumulator() *Accumulator {
	return &Accumulator{counts: getCounts()}
}

// Add votes v into the bundle.
func (a *Accumulator) Add(v Vector) { a.add(&v) }

func (a *Accumulator) add(v *Vector) {
	accumulate(*a.counts, v)
	a.n++
}

// Len returns the number of vectors added.
func (a *Accumulator) Len() int { return a.n }

// Vector returns the majority vector of everything added so far, with the
// same tie rule as Bundle.
func (a *Accumulator) Vector() Vector {
	var out Vector
	if a.n == 0 {
		return out
	}
	threshold := int32(a.n / 2)
	for i, c := range *a.counts {
		if c > threshold {
			out.w[i/64] |= 1 << (uint(i) % 64)
		}
	}
	return out
}

// Release returns the buffer to the pool. The accumulator must not be used afterwards.
func (a *Accumulator) Release() {
	if a.counts != nil {
		putCounts(a.counts)
		a.counts = nil
	}
}

func accumulate(counts []int32, v *Vector) {
	for w, word := range v.w {
		base := w * 64
		for word != 0 {
			// visit set bits only
			b := bits.TrailingZeros64(word)
			counts[base+b]++
			word &= word - 1
		}
	}
}

// Weighted pairs a vector with its vote weight in WeightedBundle.
type Weighted struct {
	Vector Vector
	Weight float64
}

// WeightedBundle sets a bit iff the summed weight of inputs setting it
// exceeds half the total weight. Empty input yields the zero vector.
func WeightedBundle(items ...Weighted) Vector {
	if len(items) == 0 {
		return Vector{}
	}

	bp := getWeights()
	defer putWeights(bp)
	sums := *bp

	total := 0.0
	for i := range items {
		total += items[i].Weight
		wt := items[i].Weight
		for w, word := range items[i].Vector.w {
			base := w * 64
			for word != 0 {
				b := bits.TrailingZeros64(word)
				sums[base+b] += wt
				word &= word - 1
			}
		}
	}

	threshold := total / 2
	var out Vector
	for i, s := range sums {
		if s > threshold {
			out.w[i/64] |= 1 << (uint(i) % 64)
		}
	}
	return out
}

// Permute rotates v cyclically so that bit i moves to (i+k) mod Dim.
// Negative k rotates the other way. Permute(Dim) is the identity.
func (v Vector) Permute(k int) Vector {
	k %= Dim
	if k < 0 {
		k += Dim
	}
	if k == 0 {
		return v
	}
	hi := shiftLeft(&v, k)
	lo := shiftRight(&v, Dim-k)
	var out Vector
	for i := range out.w {
		out.w[i] = hi.w[i] | lo.w[i]
	}
	return out
}

// Unpermute inverts Permute(k).
func (v Vector) Unpermute(k int) Vector {
	return v.Permute(-k)
}

// shiftLeft moves bit i to i+s, dropping bits at or beyond Dim.
func shiftLeft(v *Vector, s int) Vector {
	var out Vector
	ws, bs := s/64, uint(s%64)
	for i := Words - 1; i >= ws; i-- {
		out.w[i] = v.w[i-ws] << bs
		if bs > 0 && i-ws-1 >= 0 {
			out.w[i] |= v.w[i-ws-1] >> (64 - bs)
		}
	}
	out.w[Words-1] &= tailMask
	return out
}

// shiftRight moves bit i to i-s, dropping bits below zero.
func shiftRight(v *Vector, s int) Vector {
	var out Vector
	ws, bs := s/64, uint(s%64)
	for i := 0; i+ws < Words; i++ {
		out.w[i] = v.w[i+ws] >> bs
		if bs > 0 && i+ws+1 < Words {
			out.w[i] |= v.w[i+ws+1] << (64 - bs)
		}
	}
	return out
}
