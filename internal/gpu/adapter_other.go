//go:build gpu && !(darwin && arm64)

package gpu

import (
	"context"
	"runtime"
)

func requestHardwareAdapter(ctx context.Context) (Adapter, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return nil, deviceError(ErrNoAdapter, "RequestAdapter",
		"no hardware backend for "+runtime.GOOS+"/"+runtime.GOARCH)
}
