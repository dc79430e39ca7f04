package batch

import (
	stderrors "errors"
	"fmt"
	"runtime"

	"github.com/23skdu/genovec/internal/codebook"
	gverr "github.com/23skdu/genovec/internal/errors"
)

var (
	ErrInvalidKmerLength = stderrors.New("kmer length out of range")
	ErrInvalidChunkSize  = stderrors.New("chunk size must be positive")
	ErrInvalidWorkers    = stderrors.New("workers must not be negative")
	ErrCodebookTooLarge  = stderrors.New("kmer length too long for a codebook")
)

// Config controls batch encoding. The zero value is not valid; start from
// DefaultConfig or load it with envconfig.
type Config struct {
	KmerLength  int  `envconfig:"KMER_LENGTH" default:"6"`
	Parallel    bool `envconfig:"PARALLEL" default:"true"`
	ChunkSize   int  `envconfig:"CHUNK_SIZE" default:"100"`
	SkipInvalid bool `envconfig:"SKIP_INVALID" default:"false"`
	Workers     int  `envconfig:"WORKERS" default:"0"` // 0 means GOMAXPROCS
	UseCodebook bool `envconfig:"USE_CODEBOOK" default:"false"`
}

// DefaultConfig returns k=6, parallel, chunks of 100, failing items logged.
func DefaultConfig() Config {
	return Config{
		KmerLength: 6,
		Parallel:   true,
		ChunkSize:  100,
	}
}

func (c Config) WithKmerLength(k int) Config {
	c.KmerLength = k
	return c
}

func (c Config) WithParallel(enabled bool) Config {
	c.Parallel = enabled
	return c
}

func (c Config) WithChunkSize(n int) Config {
	c.ChunkSize = n
	return c
}

func (c Config) WithSkipInvalid(skip bool) Config {
	c.SkipInvalid = skip
	return c
}

func (c Config) WithWorkers(n int) Config {
	c.Workers = n
	return c
}

// WithCodebook makes the encoder look k-mers up in the shared codebook
// instead of deriving each item vector.
func (c Config) WithCodebook(enabled bool) Config {
	c.UseCodebook = enabled
	return c
}

// Validate checks the ranges NewEncoder depends on.
func (c Config) Validate() error {
	if c.KmerLength < 1 || c.KmerLength > 32 {
		return gverr.WrapConfigurationError(ErrInvalidKmerLength, "batch.Config.Validate",
			fmt.Sprintf("kmer_length=%d", c.KmerLength))
	}
	if c.ChunkSize < 1 {
		return gverr.WrapConfigurationError(ErrInvalidChunkSize, "batch.Config.Validate",
			fmt.Sprintf("chunk_size=%d", c.ChunkSize))
	}
	if c.Workers < 0 {
		return gverr.WrapConfigurationError(ErrInvalidWorkers, "batch.Config.Validate",
			fmt.Sprintf("workers=%d", c.Workers))
	}
	if c.UseCodebook && c.KmerLength > codebook.MaxK {
		return gverr.WrapConfigurationError(ErrCodebookTooLarge, "batch.Config.Validate",
			fmt.Sprintf("kmer_length=%d exceeds %d", c.KmerLength, codebook.MaxK))
	}
	return nil
}

// workers is the pool size actually used.
func (c Config) workers() int {
	if !c.Parallel {
		return 1
	}
	if c.Workers > 0 {
		return c.Workers
	}
	return runtime.GOMAXPROCS(0)
}
