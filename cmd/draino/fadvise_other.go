//go:build !linux

package main

import (
	"os"

	"go.uber.org/zap"
)

func adviseSequential(*os.File, *zap.Logger) {}
