//go:build !gpu

package gpu

import "context"

// requestHardwareAdapter has no backend in builds without the gpu tag.
func requestHardwareAdapter(ctx context.Context) (Adapter, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return nil, deviceError(ErrNoAdapter, "RequestAdapter", "GPU support not enabled in this build")
}
