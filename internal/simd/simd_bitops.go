package simd

// HammingDistance computes the Hamming distance between two packed bit vectors.
// a and b must have the same length.
func HammingDistance(a, b []uint64) int {
	if len(a) != len(b) {
		panic("simd: vector length mismatch")
	}
	return hammingImpl(a, b)
}

// PopcountWords returns the number of set bits across all words.
func PopcountWords(a []uint64) int {
	return popcountImpl(a)
}

// XorWords writes a[i] ^ b[i] into dst. All slices must have the same length.
func XorWords(dst, a, b []uint64) {
	if len(a) != len(b) || len(dst) != len(a) {
		panic("simd: vector length mismatch")
	}
	i := 0
	n := len(dst)

	// Unroll 4 words at a time
	for ; i <= n-4; i += 4 {
		dst[i] = a[i] ^ b[i]
		dst[i+1] = a[i+1] ^ b[i+1]
		dst[i+2] = a[i+2] ^ b[i+2]
		dst[i+3] = a[i+3] ^ b[i+3]
	}
	for ; i < n; i++ {
		dst[i] = a[i] ^ b[i]
	}
}

// AndCount returns popcount(a & b).
func AndCount(a, b []uint64) int {
	if len(a) != len(b) {
		panic("simd: vector length mismatch")
	}
	total := 0
	for i := range a {
		total += Popcount(a[i] & b[i])
	}
	return total
}

// OrCount returns popcount(a | b).
func OrCount(a, b []uint64) int {
	if len(a) != len(b) {
		panic("simd: vector length mismatch")
	}
	total := 0
	for i := range a {
		total += Popcount(a[i] | b[i])
	}
	return total
}

// Popcount returns the population count (number of set bits) of x.
func Popcount(x uint64) int {
	return onesCount64(x)
}

// Popcount32 is the 32-bit SWAR population count used by the similarity
// kernel, which operates on u32 storage words.
func Popcount32(x uint32) uint32 {
	x -= (x >> 1) & 0x55555555
	x = (x & 0x33333333) + ((x >> 2) & 0x33333333)
	x = (x + (x >> 4)) & 0x0f0f0f0f
	return (x * 0x01010101) >> 24
}

// HammingDistance32 computes the Hamming distance over u32 words.
func HammingDistance32(a, b []uint32) int {
	if len(a) != len(b) {
		panic("simd: vector length mismatch")
	}
	var dist uint32
	for i := range a {
		dist += Popcount32(a[i] ^ b[i])
	}
	return int(dist)
}

func hammingGeneric(a, b []uint64) int {
	dist := 0
	i := 0
	n := len(a)
	for ; i <= n-4; i += 4 {
		dist += onesCount64(a[i]^b[i]) +
			onesCount64(a[i+1]^b[i+1]) +
			onesCount64(a[i+2]^b[i+2]) +
			onesCount64(a[i+3]^b[i+3])
	}
	for ; i < n; i++ {
		dist += onesCount64(a[i] ^ b[i])
	}
	return dist
}

func popcountGeneric(a []uint64) int {
	total := 0
	for _, w := range a {
		total += onesCount64(w)
	}
	return total
}

// onesCount64 is the parallel-summing software popcount.
func onesCount64(x uint64) int {
	const m0 = 0x5555555555555555 // 01010101 ...
	const m1 = 0x3333333333333333 // 00110011 ...
	const m2 = 0x0f0f0f0f0f0f0f0f // 00001111 ...

	x -= (x >> 1) & m0
	x = (x & m1) + ((x >> 2) & m1)
	x = (x + (x >> 4)) & m2
	x += x >> 8
	x += x >> 16
	x += x >> 32
	return int(x & 0x7f)
}
