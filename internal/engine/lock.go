package engine

import (
	"sync"
	"sync/atomic"

	"github.com/petermattis/goid"
)

// reentrantMutex is a mutex the owning goroutine may acquire again.
//
// Responders run inside a dispatch transaction and write back into the
// store from the same goroutine, so the store lock must be reentrant.
// Timer and async completion goroutines contend for it like any other
// caller, which keeps every mutation inside exactly one transaction at a
// time.
type reentrantMutex struct {
	mu    sync.Mutex
	owner atomic.Int64 // goroutine id of the holder, 0 when free
	depth int
}

func (m *reentrantMutex) Lock() {
	gid := goid.Get()
	if m.owner.Load() == gid {
		m.depth++
		return
	}
	m.mu.Lock()
	m.owner.Store(gid)
	m.depth = 1
}

func (m *reentrantMutex) Unlock() {
	if m.owner.Load() != goid.Get() {
		panic("engine: unlock of store lock not held by this goroutine")
	}
	m.depth--
	if m.depth == 0 {
		m.owner.Store(0)
		m.mu.Unlock()
	}
}

// Held reports whether the calling goroutine holds the lock.
func (m *reentrantMutex) Held() bool {
	return m.owner.Load() == goid.Get()
}
