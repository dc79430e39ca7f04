package gpu

import (
	stderrors "errors"

	gverr "github.com/23skdu/genovec/internal/errors"
	"github.com/23skdu/genovec/internal/metrics"
)

var (
	// ErrNoAdapter means no adapter could be found. Callers fall back to the CPU path.
	ErrNoAdapter = stderrors.New("no suitable GPU adapter found")
	ErrDevice    = stderrors.New("GPU device error")
	ErrShader    = stderrors.New("shader error")
	ErrBuffer    = stderrors.New("buffer error")
)

var errorKinds = map[error]string{
	ErrNoAdapter: "no_adapter",
	ErrDevice:    "device",
	ErrShader:    "shader",
	ErrBuffer:    "buffer",
}

// IsUnavailable reports whether err means no adapter exists, as opposed to
// a failure on a device that does.
func IsUnavailable(err error) bool {
	return stderrors.Is(err, ErrNoAdapter)
}

func deviceError(sentinel error, op, msg string) *gverr.StructuredError {
	metrics.GpuErrorsTotal.WithLabelValues(errorKinds[sentinel]).Inc()
	return gverr.WrapDeviceError(sentinel, "gpu."+op, msg)
}
