//go:build tinygo

package regs

import "runtime/interrupt"

// InterruptGuard masks interrupts on the current core for the duration of a
// read-modify-write. It does not protect against other cores.
type InterruptGuard struct{}

func (InterruptGuard) Enter() func() {
	state := interrupt.Disable()
	return func() { interrupt.Restore(state) }
}
