package connectivity

import "sync/atomic"

// Lock is the document-wide pointer lock held while the connectivity
// overlay is shown.
type Lock interface {
	Acquire()
	Release()
}

// PointerLock is a Lock whose state is reported to the client with every
// decision.
type PointerLock struct {
	held atomic.Bool
}

func (l *PointerLock) Acquire() { l.held.Store(true) }

func (l *PointerLock) Release() { l.held.Store(false) }

// Held reports whether the overlay currently locks pointer input.
func (l *PointerLock) Held() bool { return l.held.Load() }
