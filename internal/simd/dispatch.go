package simd

import (
	"math/bits"

	"github.com/23skdu/genovec/internal/metrics"
)

type hammingFunc func(a, b []uint64) int
type popcountFunc func(a []uint64) int

// Function pointers selected once at startup
var (
	hammingImpl  hammingFunc  = hammingGeneric
	popcountImpl popcountFunc = popcountGeneric
)

// initializeDispatch sets function pointers based on detected CPU features.
// Hardware popcount is reached through math/bits, which the compiler lowers
// to POPCNT/CNT when the target supports it.
func initializeDispatch() {
	switch implementation {
	case "avx512", "avx2", "neon":
		hammingImpl = hammingIntrinsic
		popcountImpl = popcountIntrinsic
	default:
		hammingImpl = hammingGeneric
		popcountImpl = popcountGeneric
	}
	metrics.SimdDispatchCount.WithLabelValues(implementation).Inc()
}

func hammingIntrinsic(a, b []uint64) int {
	dist := 0
	i := 0
	n := len(a)
	for ; i <= n-4; i += 4 {
		dist += bits.OnesCount64(a[i]^b[i]) +
			bits.OnesCount64(a[i+1]^b[i+1]) +
			bits.OnesCount64(a[i+2]^b[i+2]) +
			bits.OnesCount64(a[i+3]^b[i+3])
	}
	for ; i < n; i++ {
		dist += bits.OnesCount64(a[i] ^ b[i])
	}
	return dist
}

func popcountIntrinsic(a []uint64) int {
	total := 0
	for _, w := range a {
		total += bits.OnesCount64(w)
	}
	return total
}
