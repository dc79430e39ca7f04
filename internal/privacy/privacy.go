// Package privacy releases hypervectors under epsilon-differential privacy
// using randomized response: each bit flips independently with probability
// 1/(1+e^epsilon).
package privacy

import (
	"crypto/sha256"
	"encoding/binary"
	stderrors "errors"
	"fmt"
	"math"
	"sync"

	gverr "github.com/23skdu/genovec/internal/errors"
	"github.com/23skdu/genovec/internal/hdc"
	"github.com/23skdu/genovec/internal/metrics"
)

var (
	ErrInvalidEpsilon  = stderrors.New("epsilon must be positive and finite")
	ErrInvalidDelta    = stderrors.New("delta must be in (0, 1)")
	ErrBudgetExhausted = stderrors.New("privacy budget exhausted")
)

// Params are the privacy parameters of one release. Delta is zero for pure
// epsilon-DP.
type Params struct {
	Epsilon float64 `json:"epsilon"`
	Delta   float64 `json:"delta,omitempty"`
}

func validEpsilon(eps float64) bool {
	return eps > 0 && !math.IsInf(eps, 0) && !math.IsNaN(eps)
}

// Pure returns epsilon-DP parameters.
func Pure(epsilon float64) (Params, error) {
	if !validEpsilon(epsilon) {
		return Params{}, gverr.WrapValidationError(ErrInvalidEpsilon, "privacy.Pure",
			fmt.Sprintf("epsilon=%v", epsilon))
	}
	return Params{Epsilon: epsilon}, nil
}

// Approximate returns (epsilon, delta)-DP parameters.
func Approximate(epsilon, delta float64) (Params, error) {
	p, err := Pure(epsilon)
	if err != nil {
		return Params{}, err
	}
	if !(delta > 0 && delta < 1) {
		return Params{}, gverr.WrapValidationError(ErrInvalidDelta, "privacy.Approximate",
			fmt.Sprintf("delta=%v", delta))
	}
	p.Delta = delta
	return p, nil
}

// Recommended parameter sets, strongest first.
var (
	HighPrivacy     = Params{Epsilon: 0.1}
	StrongPrivacy   = Params{Epsilon: 0.5}
	ModeratePrivacy = Params{Epsilon: 1.0}
	StandardPrivacy = Params{Epsilon: 2.0}
	LowPrivacy      = Params{Epsilon: 5.0}
)

// FlipProbability is 1/(1+e^epsilon), always below 0.5.
func (p Params) FlipProbability() float64 {
	return 1 / (1 + math.Exp(p.Epsilon))
}

// ExpectedRetention is the chance a bit survives two independent
// perturbations unchanged: (1-p)^2 + p^2.
func (p Params) ExpectedRetention() float64 {
	f := p.FlipProbability()
	return (1-f)*(1-f) + f*f
}

func (p Params) String() string {
	return fmt.Sprintf("epsilon=%.2f: flip_prob=%.1f%%, similarity_retention=%.1f%%",
		p.Epsilon, p.FlipProbability()*100, p.ExpectedRetention()*100)
}

// Noisy is a perturbed vector with the parameters that produced it.
type Noisy struct {
	Vector hdc.Vector
	Params Params
}

// Randomize perturbs v. The flip pattern is derived from (seed, label), so
// the same inputs always produce the same release; use a distinct label per
// release to draw fresh noise.
//
// Bit i flips when the i-th little-endian uint32 of the stream
// SHA256("dp" || seed || label || uint64_le(c)), c = 0, 1, ..., is below
// FlipProbability * 2^32.
func Randomize(v hdc.Vector, p Params, seed hdc.Seed, label string) (Noisy, error) {
	if !validEpsilon(p.Epsilon) {
		return Noisy{}, gverr.WrapValidationError(ErrInvalidEpsilon, "privacy.Randomize",
			fmt.Sprintf("epsilon=%v", p.Epsilon))
	}
	threshold := uint64(p.FlipProbability() * (1 << 32))

	b := v.Bytes()
	var ctr [8]byte
	var block []byte
	h := sha256.New()
	for i := 0; i < hdc.Dim; i++ {
		if i%8 == 0 { // 8 draws per block
			h.Reset()
			h.Write([]byte("dp"))
			h.Write(seed[:])
			h.Write([]byte(label))
			binary.LittleEndian.PutUint64(ctr[:], uint64(i/8))
			h.Write(ctr[:])
			block = h.Sum(block[:0])
		}
		draw := binary.LittleEndian.Uint32(block[(i%8)*4:])
		if uint64(draw) < threshold {
			b[i/8] ^= 1 << (i % 8)
		}
	}

	out, err := hdc.FromBytes(b)
	if err != nil {
		return Noisy{}, gverr.WrapComputationError(err, "privacy.Randomize", "rebuild vector")
	}
	metrics.PrivacyVectorsTotal.Inc()
	return Noisy{Vector: out, Params: p}, nil
}

// Similarity is the raw normalized cosine similarity of two releases.
func (n Noisy) Similarity(o Noisy) float64 {
	return hdc.NormalizedCosineSimilarity(n.Vector, o.Vector)
}

// CorrectedSimilarity estimates the similarity of the unperturbed vectors,
// clamped to [0, 1]. Randomized response scales the bipolar correlation by
// (1-2p) per release, so observed-0.5 = (true-0.5)*(1-2p1)*(1-2p2).
func (n Noisy) CorrectedSimilarity(o Noisy) float64 {
	scale := (1 - 2*n.Params.FlipProbability()) * (1 - 2*o.Params.FlipProbability())
	est := 0.5 + (n.Similarity(o)-0.5)/scale
	return math.Min(1, math.Max(0, est))
}

// HighPrivacy reports epsilon <= 1.
func (n Noisy) HighPrivacy() bool { return n.Params.Epsilon <= 1 }

// Budget tracks epsilon spent under basic sequential composition. It is
// safe for concurrent use.
type Budget struct {
	mu       sync.Mutex
	total    float64
	consumed float64
	queries  int
}

const budgetTolerance = 1e-9

// NewBudget returns a budget of total epsilon.
func NewBudget(total float64) (*Budget, error) {
	if !validEpsilon(total) {
		return nil, gverr.WrapValidationError(ErrInvalidEpsilon, "privacy.NewBudget",
			fmt.Sprintf("total=%v", total))
	}
	return &Budget{total: total}, nil
}

// CanSpend reports whether epsilon fits in the remaining budget.
func (b *Budget) CanSpend(epsilon float64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.consumed+epsilon <= b.total+budgetTolerance
}

// Spend charges epsilon, or returns ErrBudgetExhausted and charges nothing.
func (b *Budget) Spend(epsilon float64) error {
	if !validEpsilon(epsilon) {
		return gverr.WrapValidationError(ErrInvalidEpsilon, "privacy.Spend",
			fmt.Sprintf("epsilon=%v", epsilon))
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.consumed+epsilon > b.total+budgetTolerance {
		metrics.PrivacyBudgetRejectionsTotal.Inc()
		return gverr.WrapValidationError(ErrBudgetExhausted, "privacy.Spend",
			fmt.Sprintf("requested %.2f, %.2f remaining", epsilon, b.total-b.consumed)).
			WithContext("requested", epsilon).
			WithContext("remaining", b.total-b.consumed)
	}
	b.consumed += epsilon
	b.queries++
	metrics.PrivacyEpsilonSpentTotal.Add(epsilon)
	return nil
}

// Release spends p.Epsilon and perturbs v in one step.
func (b *Budget) Release(v hdc.Vector, p Params, seed hdc.Seed, label string) (Noisy, error) {
	if err := b.Spend(p.Epsilon); err != nil {
		return Noisy{}, err
	}
	return Randomize(v, p, seed, label)
}

func (b *Budget) Remaining() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.total - b.consumed
}

// Utilization is the spent fraction of the budget.
func (b *Budget) Utilization() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.consumed / b.total
}

func (b *Budget) Queries() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.queries
}
