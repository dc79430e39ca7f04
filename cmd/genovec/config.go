package main

import (
	"encoding/hex"
	"errors"
	"math"
	"os"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/23skdu/genovec/internal/batch"
	"github.com/23skdu/genovec/internal/hdc"
)

// Config validation errors
var (
	ErrInvalidSeed      = errors.New("seed cannot be empty")
	ErrInvalidKmer      = errors.New("kmer_length must be between 1 and 32")
	ErrInvalidFormat    = errors.New("format must be json, hex, or base64")
	ErrInvalidHLAMode   = errors.New("hla_mode must be basic, locus, or allele")
	ErrInvalidTopK      = errors.New("top_k must be positive")
	ErrInvalidThreshold = errors.New("threshold must be between 0 and 1")
	ErrInvalidLogFormat = errors.New("log_format must be 'json' or 'console'")
	ErrInvalidLogLevel  = errors.New("log_level must be debug, info, warn, or error")
	ErrInvalidEpsilon   = errors.New("dp_epsilon must be zero (off) or a positive finite number")
)

// Config is the CLI configuration. Environment variables use the GENOVEC
// prefix; command-line flags override them.
type Config struct {
	Seed       string  `envconfig:"SEED" default:"genovec-default-seed"`
	KmerLength int     `envconfig:"KMER_LENGTH" default:"6"`
	Format     string  `envconfig:"FORMAT" default:"json"`
	HLAMode    string  `envconfig:"HLA_MODE" default:"basic"`
	UseGPU     bool    `envconfig:"GPU" default:"false"`
	TopK       int     `envconfig:"TOP_K" default:"10"`
	Threshold  float64 `envconfig:"THRESHOLD" default:"0"`
	Output     string  `envconfig:"OUT"`
	DPEpsilon  float64 `envconfig:"DP_EPSILON" default:"0"` // 0 disables randomized response

	LogFormat string `envconfig:"LOG_FORMAT" default:"console"`
	LogLevel  string `envconfig:"LOG_LEVEL" default:"warn"`

	Batch batch.Config `envconfig:"BATCH"`
}

// DefaultConfig returns a Config with default values
func DefaultConfig() Config {
	return Config{
		Seed:       "genovec-default-seed",
		KmerLength: 6,
		Format:     "json",
		HLAMode:    "basic",
		TopK:       10,
		LogFormat:  "console",
		LogLevel:   "warn",
		Batch:      batch.DefaultConfig(),
	}
}

// LoadConfig reads an optional .env file and then the environment.
func LoadConfig(envFile string) (Config, error) {
	if envFile != "" {
		if _, err := os.Stat(envFile); err == nil {
			if err := godotenv.Load(envFile); err != nil {
				return Config{}, err
			}
		}
	}
	var cfg Config
	if err := envconfig.Process("GENOVEC", &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ValidateConfig validates the configuration and returns an error if invalid
func ValidateConfig(cfg *Config) error {
	if cfg.Seed == "" {
		return ErrInvalidSeed
	}
	if cfg.KmerLength < 1 || cfg.KmerLength > 32 {
		return ErrInvalidKmer
	}
	switch cfg.Format {
	case "json", "hex", "base64":
	default:
		return ErrInvalidFormat
	}
	switch cfg.HLAMode {
	case "basic", "locus", "allele":
	default:
		return ErrInvalidHLAMode
	}
	if cfg.TopK <= 0 {
		return ErrInvalidTopK
	}
	if cfg.Threshold < 0 || cfg.Threshold > 1 {
		return ErrInvalidThreshold
	}
	if cfg.DPEpsilon < 0 || math.IsInf(cfg.DPEpsilon, 0) || math.IsNaN(cfg.DPEpsilon) {
		return ErrInvalidEpsilon
	}
	if cfg.LogFormat != "json" && cfg.LogFormat != "console" {
		return ErrInvalidLogFormat
	}
	if cfg.LogLevel != "debug" && cfg.LogLevel != "info" && cfg.LogLevel != "warn" && cfg.LogLevel != "error" {
		return ErrInvalidLogLevel
	}
	// -k applies to batch encoding too
	return cfg.Batch.WithKmerLength(cfg.KmerLength).Validate()
}

// ParseSeed accepts 64 hex characters as raw seed bytes; any other string
// is hashed.
func ParseSeed(s string) hdc.Seed {
	if len(s) == 64 {
		if b, err := hex.DecodeString(s); err == nil {
			var arr [32]byte
			copy(arr[:], b)
			return hdc.SeedFromBytes(arr)
		}
	}
	return hdc.SeedFromString(s)
}
