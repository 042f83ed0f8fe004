//go:build linux

package main

import (
	"os"

	"go.uber.org/zap"
	"golang.org/x/sys/unix"
)

// adviseSequential tells the kernel a regular-file input will be read once
// from start to end, which enlarges its read-ahead window.
func adviseSequential(f *os.File, logger *zap.Logger) {
	fi, err := f.Stat()
	if err != nil || !fi.Mode().IsRegular() {
		return
	}
	if err := unix.Fadvise(int(f.Fd()), 0, 0, unix.FADV_SEQUENTIAL); err != nil {
		logger.Debug("fadvise on input failed", zap.Error(err))
	}
}
