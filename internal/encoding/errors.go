package encoding

import (
	stderrors "errors"

	gverr "github.com/23skdu/genovec/internal/errors"
	"github.com/23skdu/genovec/internal/metrics"
)

// Validation sentinels. Encoders wrap them in a validation StructuredError,
// so errors.Is matches through the wrapper.
var (
	ErrInvalidNucleotide = stderrors.New("invalid nucleotide")
	ErrSequenceTooShort  = stderrors.New("sequence too short for k-mer length")
	ErrEmptyInput        = stderrors.New("empty input")
	ErrAlleleCount       = stderrors.New("expected exactly 10 HLA alleles")
	ErrInvalidKmerLength = stderrors.New("k-mer length must be positive")
)

func failureReason(sentinel error) string {
	switch sentinel {
	case ErrInvalidNucleotide:
		return "invalid_nucleotide"
	case ErrSequenceTooShort:
		return "sequence_too_short"
	case ErrEmptyInput:
		return "empty_input"
	case ErrAlleleCount:
		return "allele_count"
	default:
		return "other"
	}
}

// reject records the failure metric and wraps sentinel for the caller.
func reject(encoder string, sentinel error, message string) *gverr.StructuredError {
	metrics.EncodeFailuresTotal.WithLabelValues(encoder, failureReason(sentinel)).Inc()
	return gverr.WrapValidationError(sentinel, "encode_"+encoder, message)
}
