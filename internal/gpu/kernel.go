package gpu

import (
	"encoding/binary"
	"math"

	"github.com/23skdu/genovec/internal/simd"
)

// WorkgroupSize is the number of invocations per workgroup.
const WorkgroupSize = 64

// Binding slots of the similarity kernel.
const (
	bindQueries = iota
	bindDatabase
	bindOutput
	bindParams
	numBindings
)

// Kernel is a compute program in the source languages backends accept.
type Kernel struct {
	Name       string
	EntryPoint string
	WGSL       string
	MSL        string
}

// Params is the uniform block {queryCount, dbCount, vectorBytes, 0}.
type Params struct {
	QueryCount  uint32
	DBCount     uint32
	VectorBytes uint32
	Padding     uint32
}

// Bytes encodes p as four little-endian u32 values.
func (p Params) Bytes() []byte {
	b := make([]byte, 16)
	binary.LittleEndian.PutUint32(b[0:], p.QueryCount)
	binary.LittleEndian.PutUint32(b[4:], p.DBCount)
	binary.LittleEndian.PutUint32(b[8:], p.VectorBytes)
	binary.LittleEndian.PutUint32(b[12:], p.Padding)
	return b
}

func paramsFromBytes(b []byte) Params {
	return Params{
		QueryCount:  binary.LittleEndian.Uint32(b[0:]),
		DBCount:     binary.LittleEndian.Uint32(b[4:]),
		VectorBytes: binary.LittleEndian.Uint32(b[8:]),
		Padding:     binary.LittleEndian.Uint32(b[12:]),
	}
}

// wordsPerVector rounds vectorBytes up to whole u32 words.
func (p Params) wordsPerVector() uint32 { return (p.VectorBytes + 3) / 4 }

// similarityInvocation is one kernel invocation: output[idx] is the Hamming
// similarity of query idx/dbCount and database entry idx%dbCount.
func similarityInvocation(idx uint32, queries, database []uint32, output []float32, p Params) {
	total := p.QueryCount * p.DBCount
	if idx >= total {
		return
	}
	q := idx / p.DBCount
	d := idx % p.DBCount
	words := p.wordsPerVector()

	qs, ds := q*words, d*words
	var diff uint32
	for i := uint32(0); i < words; i++ {
		diff += simd.Popcount32(queries[qs+i] ^ database[ds+i])
	}
	output[idx] = 1 - float32(diff)/float32(p.VectorBytes*8)
}

// bytesToWords reads little-endian u32 words, zero-padding a short tail.
func bytesToWords(b []byte) []uint32 {
	out := make([]uint32, (len(b)+3)/4)
	for i := range out {
		var w [4]byte
		copy(w[:], b[i*4:])
		out[i] = binary.LittleEndian.Uint32(w[:])
	}
	return out
}

func floatsToBytes(dst []byte, fs []float32) {
	for i, f := range fs {
		binary.LittleEndian.PutUint32(dst[i*4:], math.Float32bits(f))
	}
}

func bytesToFloats(b []byte) []float32 {
	out := make([]float32, len(b)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return out
}

// SimilarityKernel computes Hamming similarity for every (query, database)
// pair, one invocation per pair.
var SimilarityKernel = Kernel{
	Name:       "HDC Similarity Shader",
	EntryPoint: "compute_similarity",
	WGSL:       similarityWGSL,
	MSL:        similarityMSL,
}

const similarityWGSL = `
struct Params {
    query_count: u32,
    db_count: u32,
    vector_bytes: u32,
    padding: u32,
}

@group(0) @binding(0) var<storage, read> queries: array<u32>;
@group(0) @binding(1) var<storage, read> database: array<u32>;
@group(0) @binding(2) var<storage, read_write> output: array<f32>;
@group(0) @binding(3) var<uniform> params: Params;

fn popcount(x: u32) -> u32 {
    var v = x;
    v = v - ((v >> 1u) & 0x55555555u);
    v = (v & 0x33333333u) + ((v >> 2u) & 0x33333333u);
    v = (v + (v >> 4u)) & 0x0f0f0f0fu;
    v = v + (v >> 8u);
    v = v + (v >> 16u);
    return v & 0x3fu;
}

@compute @workgroup_size(64)
fn compute_similarity(@builtin(global_invocation_id) global_id: vec3<u32>) {
    let idx = global_id.x;
    let total = params.query_count * params.db_count;
    if (idx >= total) {
        return;
    }

    let query_idx = idx / params.db_count;
    let db_idx = idx % params.db_count;
    let words_per_vector = (params.vector_bytes + 3u) / 4u;
    let query_start = query_idx * words_per_vector;
    let db_start = db_idx * words_per_vector;

    var diff_bits: u32 = 0u;
    for (var i: u32 = 0u; i < words_per_vector; i = i + 1u) {
        diff_bits = diff_bits + popcount(queries[query_start + i] ^ database[db_start + i]);
    }

    let total_bits = params.vector_bytes * 8u;
    output[idx] = 1.0 - (f32(diff_bits) / f32(total_bits));
}
`

const similarityMSL = `
#include <metal_stdlib>
using namespace metal;

struct Params {
    uint query_count;
    uint db_count;
    uint vector_bytes;
    uint padding;
};

kernel void compute_similarity(device const uint* queries [[buffer(0)]],
                               device const uint* database [[buffer(1)]],
                               device float* output [[buffer(2)]],
                               constant Params& params [[buffer(3)]],
                               uint idx [[thread_position_in_grid]]) {
    uint total = params.query_count * params.db_count;
    if (idx >= total) {
        return;
    }

    uint query_idx = idx / params.db_count;
    uint db_idx = idx % params.db_count;
    uint words_per_vector = (params.vector_bytes + 3u) / 4u;
    uint query_start = query_idx * words_per_vector;
    uint db_start = db_idx * words_per_vector;

    uint diff_bits = 0u;
    for (uint i = 0u; i < words_per_vector; i++) {
        diff_bits += popcount(queries[query_start + i] ^ database[db_start + i]);
    }

    uint total_bits = params.vector_bytes * 8u;
    output[idx] = 1.0f - (float(diff_bits) / float(total_bits));
}
`
