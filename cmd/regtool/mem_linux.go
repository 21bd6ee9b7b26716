//go:build linux && !tinygo

package main

import (
	"io"

	"regmap-go/mmio"
)

type closingMemory interface {
	mmio.Memory
	io.Closer
}

func openMem(path string, base, size uintptr) (closingMemory, error) {
	return mmio.OpenDevMem(path, base, size)
}
