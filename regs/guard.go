package regs

import "sync"

// MutexGuard serialises read-modify-write sequences between goroutines.
type MutexGuard struct {
	mu sync.Mutex
}

func (g *MutexGuard) Enter() func() {
	g.mu.Lock()
	return g.mu.Unlock
}
