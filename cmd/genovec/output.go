package main

import (
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/23skdu/genovec/internal/hdc"
	"github.com/23skdu/genovec/internal/similarity"
)

type encodingResult struct {
	EncodingType string         `json:"encoding_type"`
	KmerLength   int            `json:"kmer_length,omitempty"`
	KmerCount    int            `json:"kmer_count,omitempty"`
	VectorDim    int            `json:"vector_dim"`
	VectorBytes  int            `json:"vector_bytes"`
	Seed         string         `json:"seed"`
	VectorHex    string         `json:"vector_hex,omitempty"`
	VectorBase64 string         `json:"vector_base64,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}

type batchResult struct {
	TotalSequences int              `json:"total_sequences"`
	Successful     int              `json:"successful"`
	Failed         int              `json:"failed"`
	Throughput     float64          `json:"throughput_per_sec"`
	Results        []encodingResult `json:"results,omitempty"`
	Errors         []string         `json:"errors"`
}

type matchResult struct {
	ID         string            `json:"id"`
	Index      int               `json:"index"`
	Similarity float64           `json:"similarity"`
	Confidence *confidenceResult `json:"confidence,omitempty"`
}

type confidenceResult struct {
	Level           string  `json:"level"`
	Probability     float64 `json:"probability"`
	ZScore          float64 `json:"z_score"`
	BitsAboveRandom int     `json:"bits_above_random"`
	PValue          float64 `json:"p_value"`
	Significant     bool    `json:"is_significant"`
	ClinicalGrade   bool    `json:"clinical_grade"`
}

// significanceLevel is the alpha reported as is_significant.
const significanceLevel = 0.05

func newConfidenceResult(s similarity.Scored) *confidenceResult {
	return &confidenceResult{
		Level:           s.Confidence.String(),
		Probability:     s.Confidence.Probability(),
		ZScore:          s.ZScore,
		BitsAboveRandom: s.BitsAboveRandom,
		PValue:          s.PValue,
		Significant:     s.IsSignificant(significanceLevel),
		ClinicalGrade:   s.ClinicalGrade(),
	}
}

type queryResult struct {
	QueryID    string        `json:"query_id"`
	QueryIndex int           `json:"query_index"`
	Matches    []matchResult `json:"matches"`
}

// fillVector sets the vector fields for the configured format. JSON output
// carries hex unless base64 was asked for.
func (a *app) fillVector(r *encodingResult, v hdc.Vector) {
	r.VectorDim = hdc.Dim
	r.VectorBytes = hdc.Bytes
	r.Seed = a.seed().String()
	if a.cfg.Format == "base64" {
		r.VectorBase64 = base64.StdEncoding.EncodeToString(v.Bytes())
	} else {
		r.VectorHex = hex.EncodeToString(v.Bytes())
	}
}

// emit writes a single encoding: the bare vector for hex and base64, the
// full record for json.
func (a *app) emit(r encodingResult, v hdc.Vector) error {
	switch a.cfg.Format {
	case "hex":
		return a.writeText(hex.EncodeToString(v.Bytes()) + "\n")
	case "base64":
		return a.writeText(base64.StdEncoding.EncodeToString(v.Bytes()) + "\n")
	}
	a.fillVector(&r, v)
	return a.write(r)
}

// write marshals v as indented JSON to -out or stdout.
func (a *app) write(v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return a.writeText(string(b) + "\n")
}

func (a *app) writeText(s string) error {
	if a.cfg.Output == "" || isExportPath(a.cfg.Output) {
		_, err := io.WriteString(a.stdout, s)
		return err
	}
	if err := os.WriteFile(a.cfg.Output, []byte(s), 0o600); err != nil {
		return fmt.Errorf("write %s: %w", a.cfg.Output, err)
	}
	a.logger.Info().Str("path", a.cfg.Output).Msg("Output written")
	return nil
}

func isExportPath(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".arrow", ".ipc", ".parquet":
		return true
	}
	return false
}
