package simd

import (
	"github.com/klauspost/cpuid/v2"
)

// CPUFeatures contains detected CPU SIMD capabilities
type CPUFeatures struct {
	Vendor    string
	BrandName string
	HasPOPCNT bool
	HasAVX2   bool
	HasAVX512 bool
	HasNEON   bool
	Cores     int
}

// Global CPU detection state
var (
	features       CPUFeatures
	implementation string
)

func init() {
	detectCPU()
	initializeDispatch()
}

// detectCPU detects CPU capabilities and selects the best kernel family
func detectCPU() {
	hasAVX512 := cpuid.CPU.Supports(cpuid.AVX512F) &&
		cpuid.CPU.Supports(cpuid.AVX512BW) &&
		cpuid.CPU.Supports(cpuid.AVX512VPOPCNTDQ)

	features = CPUFeatures{
		Vendor:    cpuid.CPU.VendorString,
		BrandName: cpuid.CPU.BrandName,
		HasPOPCNT: cpuid.CPU.Supports(cpuid.POPCNT),
		HasAVX2:   cpuid.CPU.Supports(cpuid.AVX2),
		HasAVX512: hasAVX512,
		HasNEON:   cpuid.CPU.Supports(cpuid.ASIMD),
		Cores:     cpuid.CPU.PhysicalCores,
	}

	switch {
	case features.HasAVX512:
		implementation = "avx512"
	case features.HasAVX2 && features.HasPOPCNT:
		implementation = "avx2"
	case features.HasNEON:
		implementation = "neon"
	default:
		implementation = "generic"
	}
}

// GetCPUFeatures returns the detected CPU capabilities
func GetCPUFeatures() CPUFeatures {
	return features
}

// GetImplementation returns the selected SIMD implementation name
func GetImplementation() string {
	return implementation
}
