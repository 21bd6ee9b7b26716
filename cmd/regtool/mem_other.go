//go:build !linux || tinygo

package main

import (
	"io"

	"github.com/pkg/errors"

	"regmap-go/mmio"
)

type closingMemory interface {
	mmio.Memory
	io.Closer
}

func openMem(path string, base, size uintptr) (closingMemory, error) {
	return nil, errors.Errorf("%s: physical memory access needs linux", path)
}
