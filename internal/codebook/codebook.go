// Package codebook precomputes the item vector of every k-mer over {A,C,G,T}
// so repeated encodings avoid the SHA-256 expansion.
package codebook

import (
	stderrors "errors"
	"fmt"
	"runtime"
	"strconv"
	"sync"
	"time"

	gverr "github.com/23skdu/genovec/internal/errors"
	"github.com/23skdu/genovec/internal/hdc"
	"github.com/23skdu/genovec/internal/metrics"
)

// Nucleotides is the alphabet, in generation order.
const Nucleotides = "ACGT"

// MaxK bounds construction; 4^8 vectors occupy about 82 MB.
const MaxK = 8

// ErrKmerTooLong is returned for k outside [1, MaxK].
var ErrKmerTooLong = stderrors.New("k-mer length out of range")

// Codebook maps every k-mer to Random(seed, kmer). It is immutable after
// construction and safe for concurrent readers.
type Codebook struct {
	k       int
	vectors []hdc.Vector // indexed by rank
}

// New builds the codebook for (seed, k).
func New(seed hdc.Seed, k int) (*Codebook, error) {
	if err := checkK("codebook.New", k); err != nil {
		return nil, err
	}

	start := time.Now()
	kmers := GenerateAllKmers(k)
	vectors := make([]hdc.Vector, len(kmers))

	// each goroutine fills a disjoint stripe of vectors
	workers := runtime.GOMAXPROCS(0)
	if workers > len(kmers) {
		workers = len(kmers)
	}
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := w; i < len(kmers); i += workers {
				vectors[i] = hdc.Random(seed, kmers[i])
			}
		}()
	}
	wg.Wait()

	metrics.CodebookBuildsTotal.WithLabelValues(strconv.Itoa(k)).Inc()
	metrics.CodebookBuildDurationSeconds.Observe(time.Since(start).Seconds())

	return &Codebook{k: k, vectors: vectors}, nil
}

func checkK(op string, k int) error {
	if k < 1 || k > MaxK {
		return gverr.WrapConfigurationError(ErrKmerTooLong, op,
			fmt.Sprintf("k=%d, supported range is 1..%d", k, MaxK)).
			WithContext("k", k)
	}
	return nil
}

// K returns the k-mer length.
func (c *Codebook) K() int { return c.k }

// Len returns the number of entries, always 4^k.
func (c *Codebook) Len() int { return len(c.vectors) }

// Get returns the vector for kmer. Strings of the wrong length or containing
// characters outside the alphabet are absent.
func (c *Codebook) Get(kmer string) (hdc.Vector, bool) {
	if len(kmer) != c.k {
		return hdc.Vector{}, false
	}
	r, ok := Rank(kmer)
	if !ok {
		return hdc.Vector{}, false
	}
	return c.vectors[r], true
}

// Range calls fn for every entry in generation order until fn returns false.
func (c *Codebook) Range(fn func(kmer string, v hdc.Vector) bool) {
	for i, v := range c.vectors {
		if !fn(Unrank(i, c.k), v) {
			return
		}
	}
}

// GenerateAllKmers lists all 4^k k-mers. Each nucleotide in turn prefixes
// every (k-1)-mer, so the order is lexicographic over "ACGT".
func GenerateAllKmers(k int) []string {
	if k <= 0 {
		return []string{""}
	}
	smaller := GenerateAllKmers(k - 1)
	out := make([]string, 0, 4*len(smaller))
	for i := 0; i < len(Nucleotides); i++ {
		for _, s := range smaller {
			out = append(out, Nucleotides[i:i+1]+s)
		}
	}
	return out
}

// Rank returns the position of kmer in GenerateAllKmers order.
func Rank(kmer string) (int, bool) {
	r := 0
	for i := 0; i < len(kmer); i++ {
		var d int
		switch kmer[i] {
		case 'A':
			d = 0
		case 'C':
			d = 1
		case 'G':
			d = 2
		case 'T':
			d = 3
		default:
			return 0, false
		}
		r = r<<2 | d
	}
	return r, true
}

// Unrank is the inverse of Rank for a given k.
func Unrank(r, k int) string {
	b := make([]byte, k)
	for i := k - 1; i >= 0; i-- {
		b[i] = Nucleotides[r&3]
		r >>= 2
	}
	return string(b)
}
