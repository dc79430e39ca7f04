package privacy

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	gverr "github.com/23skdu/genovec/internal/errors"
	"github.com/23skdu/genovec/internal/hdc"
	"github.com/23skdu/genovec/internal/metrics"
)

var testSeed = hdc.SeedFromString("privacy-test")

func flipRate(a, b hdc.Vector) float64 {
	return float64(hdc.Distance(a, b)) / hdc.Dim
}

func TestParams_Validation(t *testing.T) {
	for _, eps := range []float64{0, -1, math.Inf(1), math.NaN()} {
		_, err := Pure(eps)
		require.Error(t, err, "epsilon %v", eps)
		assert.True(t, errors.Is(err, ErrInvalidEpsilon))
		assert.True(t, gverr.IsValidation(err))
	}

	p, err := Pure(1)
	require.NoError(t, err)
	assert.Zero(t, p.Delta)

	p, err = Approximate(1, 1e-6)
	require.NoError(t, err)
	assert.InDelta(t, 1e-6, p.Delta, 1e-18)

	for _, delta := range []float64{0, 1, -0.1, 2} {
		_, err = Approximate(1, delta)
		assert.True(t, errors.Is(err, ErrInvalidDelta), "delta %v", delta)
	}
	_, err = Approximate(-1, 0.5)
	assert.True(t, errors.Is(err, ErrInvalidEpsilon))
}

func TestParams_FlipProbability(t *testing.T) {
	assert.InDelta(t, 1/(1+math.E), ModeratePrivacy.FlipProbability(), 1e-12)
	assert.Greater(t, HighPrivacy.FlipProbability(), 0.4)
	assert.Less(t, Params{Epsilon: 10}.FlipProbability(), 0.001)

	presets := []Params{HighPrivacy, StrongPrivacy, ModeratePrivacy, StandardPrivacy, LowPrivacy}
	for i := 1; i < len(presets); i++ {
		assert.Less(t, presets[i].FlipProbability(), presets[i-1].FlipProbability())
		assert.Greater(t, presets[i].ExpectedRetention(), presets[i-1].ExpectedRetention())
	}

	f := StandardPrivacy.FlipProbability()
	assert.InDelta(t, (1-f)*(1-f)+f*f, StandardPrivacy.ExpectedRetention(), 1e-12)
	assert.Contains(t, ModeratePrivacy.String(), "flip_prob=26.9%")
}

func TestRandomize_FlipRate(t *testing.T) {
	v := hdc.Random(testSeed, "item")
	for _, p := range []Params{HighPrivacy, StrongPrivacy, ModeratePrivacy, StandardPrivacy, LowPrivacy} {
		want := p.FlipProbability()
		// five standard deviations of a binomial over Dim bits
		tol := 5 * math.Sqrt(want*(1-want)/hdc.Dim)

		n, err := Randomize(v, p, testSeed, "release-1")
		require.NoError(t, err)
		assert.InDelta(t, want, flipRate(v, n.Vector), tol, "epsilon %v", p.Epsilon)
		assert.Equal(t, p, n.Params)
	}
}

func TestRandomize_Deterministic(t *testing.T) {
	v := hdc.Random(testSeed, "item")

	a, err := Randomize(v, ModeratePrivacy, testSeed, "r")
	require.NoError(t, err)
	b, err := Randomize(v, ModeratePrivacy, testSeed, "r")
	require.NoError(t, err)
	assert.True(t, a.Vector.Equal(b.Vector))

	c, err := Randomize(v, ModeratePrivacy, testSeed, "other")
	require.NoError(t, err)
	assert.False(t, a.Vector.Equal(c.Vector))

	d, err := Randomize(v, ModeratePrivacy, hdc.SeedFromString("other"), "r")
	require.NoError(t, err)
	assert.False(t, a.Vector.Equal(d.Vector))

	// the flip pattern does not depend on the input
	w := hdc.Random(testSeed, "other-item")
	e, err := Randomize(w, ModeratePrivacy, testSeed, "r")
	require.NoError(t, err)
	assert.True(t, hdc.Bind(v, a.Vector).Equal(hdc.Bind(w, e.Vector)))

	_, err = Randomize(v, Params{}, testSeed, "r")
	assert.True(t, errors.Is(err, ErrInvalidEpsilon))
}

func TestRandomize_NoiseLevel(t *testing.T) {
	v := hdc.Random(testSeed, "item")
	n, err := Randomize(v, HighPrivacy, testSeed, "r")
	require.NoError(t, err)
	sim := hdc.NormalizedCosineSimilarity(v, n.Vector)
	assert.Less(t, sim, 0.7)
	assert.Greater(t, sim, 0.3)
	assert.True(t, n.HighPrivacy())

	l, err := Randomize(v, LowPrivacy, testSeed, "r")
	require.NoError(t, err)
	assert.Greater(t, hdc.NormalizedCosineSimilarity(v, l.Vector), 0.98)
	assert.False(t, l.HighPrivacy())
}

func TestCorrectedSimilarity(t *testing.T) {
	v := hdc.Random(testSeed, "item1")
	a, err := Randomize(v, StandardPrivacy, testSeed, "1")
	require.NoError(t, err)
	b, err := Randomize(v, StandardPrivacy, testSeed, "2")
	require.NoError(t, err)

	raw := a.Similarity(b)
	assert.InDelta(t, StandardPrivacy.ExpectedRetention(), raw, 0.02)
	corrected := a.CorrectedSimilarity(b)
	assert.Greater(t, corrected, raw)
	assert.InDelta(t, 1.0, corrected, 0.04)

	u, err := Randomize(hdc.Random(testSeed, "item2"), StandardPrivacy, testSeed, "3")
	require.NoError(t, err)
	assert.InDelta(t, 0.5, a.CorrectedSimilarity(u), 0.05)
}

func TestRandomizeProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 30

	properties := gopter.NewProperties(parameters)

	properties.Property("flip rate tracks 1/(1+e^eps)", prop.ForAll(
		func(eps float64, x int) bool {
			p := Params{Epsilon: eps}
			v := hdc.Random(testSeed, fmt.Sprint(x))
			n, err := Randomize(v, p, testSeed, fmt.Sprint("label", x))
			if err != nil {
				return false
			}
			want := p.FlipProbability()
			return math.Abs(flipRate(v, n.Vector)-want) <= 5*math.Sqrt(want*(1-want)/hdc.Dim)
		},
		gen.Float64Range(0.05, 6),
		gen.IntRange(0, 10000),
	))

	properties.TestingRun(t)
}

func TestBudget(t *testing.T) {
	_, err := NewBudget(0)
	assert.True(t, errors.Is(err, ErrInvalidEpsilon))

	b, err := NewBudget(5)
	require.NoError(t, err)
	assert.True(t, b.CanSpend(1))
	require.NoError(t, b.Spend(1))
	assert.InDelta(t, 4.0, b.Remaining(), 1e-12)

	require.NoError(t, b.Spend(2))
	require.NoError(t, b.Spend(1.5))
	assert.False(t, b.CanSpend(1))
	assert.True(t, b.CanSpend(0.5))

	rejected := testutil.ToFloat64(metrics.PrivacyBudgetRejectionsTotal)
	err = b.Spend(1)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrBudgetExhausted))
	assert.True(t, gverr.IsValidation(err))
	assert.Equal(t, rejected+1, testutil.ToFloat64(metrics.PrivacyBudgetRejectionsTotal))

	assert.Equal(t, 3, b.Queries())
	assert.InDelta(t, 0.9, b.Utilization(), 1e-12)
	assert.True(t, errors.Is(b.Spend(-1), ErrInvalidEpsilon))

	// spending exactly the remainder is allowed
	require.NoError(t, b.Spend(0.5))
	assert.InDelta(t, 0, b.Remaining(), 1e-9)
}

func TestBudget_Release(t *testing.T) {
	b, err := NewBudget(1)
	require.NoError(t, err)
	v := hdc.Random(testSeed, "item")

	released := testutil.ToFloat64(metrics.PrivacyVectorsTotal)
	n, err := b.Release(v, StrongPrivacy, testSeed, "a")
	require.NoError(t, err)
	assert.False(t, n.Vector.Equal(v))
	assert.Equal(t, released+1, testutil.ToFloat64(metrics.PrivacyVectorsTotal))

	_, err = b.Release(v, StrongPrivacy, testSeed, "b")
	require.NoError(t, err)
	_, err = b.Release(v, StrongPrivacy, testSeed, "c")
	assert.True(t, errors.Is(err, ErrBudgetExhausted))
	assert.Equal(t, 2, b.Queries())
}

func TestBudget_Concurrent(t *testing.T) {
	b, err := NewBudget(10)
	require.NoError(t, err)

	var wg sync.WaitGroup
	var mu sync.Mutex
	ok := 0
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if b.Spend(0.5) == nil {
				mu.Lock()
				ok++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 20, ok)
	assert.Equal(t, 20, b.Queries())
}
