package codebook

import (
	"sync"

	"github.com/23skdu/genovec/internal/hdc"
	"github.com/23skdu/genovec/internal/metrics"
)

type registryKey struct {
	seed hdc.Seed
	k    int
}

type registryEntry struct {
	once sync.Once
	cb   *Codebook
}

// Registry memoises codebooks by (seed, k). Each codebook is built once even
// under concurrent first use. Entries live until Remove or Clear; a k=8
// codebook holds about 82 MB, so long-running callers that cycle seeds
// should Remove what they no longer need.
type Registry struct {
	mu      sync.Mutex
	entries map[registryKey]*registryEntry
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[registryKey]*registryEntry)}
}

var defaultRegistry = NewRegistry()

// Shared returns the process-wide registry.
func Shared() *Registry { return defaultRegistry }

// Get returns the codebook for (seed, k), building it on first request.
// An out-of-range k is rejected without creating an entry.
func (r *Registry) Get(seed hdc.Seed, k int) (*Codebook, error) {
	if err := checkK("codebook.Registry.Get", k); err != nil {
		return nil, err
	}
	key := registryKey{seed: seed, k: k}

	r.mu.Lock()
	e, ok := r.entries[key]
	if !ok {
		e = &registryEntry{}
		r.entries[key] = e
		r.updateSize()
	}
	r.mu.Unlock()

	e.once.Do(func() {
		// k is valid, so New cannot fail
		e.cb, _ = New(seed, k)
	})
	return e.cb, nil
}

// Remove drops the entry for (seed, k). Codebooks already handed out stay
// valid.
func (r *Registry) Remove(seed hdc.Seed, k int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, registryKey{seed: seed, k: k})
	r.updateSize()
}

// Clear drops every entry.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	clear(r.entries)
	r.updateSize()
}

// Len returns the number of memoised codebooks.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

func (r *Registry) updateSize() {
	if r == defaultRegistry {
		metrics.CodebookRegistrySize.Set(float64(len(r.entries)))
	}
}
