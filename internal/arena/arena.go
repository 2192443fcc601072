// Package arena provides a minimal, in-memory implementation of the
// arena-facing contracts a Chunk needs (internal/arenaiface): a table of
// per-elemSize subpage heads with their locks, one arena-wide lock, and a
// destroy hook. It intentionally does not implement the full outer
// allocator described in spec §1 (chunk lists by occupancy, thread-local
// handle caches, I/O reactor) — those are out of scope for this module;
// this package exists only so Chunk can be driven end-to-end by tests and
// the demo command.
package arena

import (
	"sync"

	"govetachun/bufpool/internal/arenaiface"
	"govetachun/bufpool/internal/concurrency"
	"govetachun/bufpool/internal/subpage"
)

// Arena owns one lock shared by every chunk registered with it, plus a
// table of subpage heads (and their locks) keyed by elemSize/normCapacity.
type Arena struct {
	lock *concurrency.ArenaLock

	mu        sync.Mutex // protects the maps below only; not the arena lock
	heads     map[uint32]*subpage.Head
	headLocks map[uint32]*concurrency.HeadLock
	destroyed map[arenaiface.Chunk]bool
}

// New creates an empty arena.
func New() *Arena {
	return &Arena{
		lock:      concurrency.NewArenaLock(),
		heads:     make(map[uint32]*subpage.Head),
		headLocks: make(map[uint32]*concurrency.HeadLock),
		destroyed: make(map[arenaiface.Chunk]bool),
	}
}

// Lock returns the arena-wide lock used for chunk-level mutations.
func (a *Arena) Lock() *concurrency.ArenaLock {
	return a.lock
}

// FindSubpagePoolHead returns the stable head for normCapacity, creating it
// on first use.
func (a *Arena) FindSubpagePoolHead(normCapacity uint32) *subpage.Head {
	a.mu.Lock()
	defer a.mu.Unlock()
	h, ok := a.heads[normCapacity]
	if !ok {
		h = subpage.NewHead()
		a.heads[normCapacity] = h
	}
	return h
}

// FindSubpageHeadLock returns the lock guarding normCapacity's subpage
// list, creating it on first use.
func (a *Arena) FindSubpageHeadLock(normCapacity uint32) *concurrency.HeadLock {
	a.mu.Lock()
	defer a.mu.Unlock()
	l, ok := a.headLocks[normCapacity]
	if !ok {
		l = concurrency.NewHeadLock()
		a.headLocks[normCapacity] = l
	}
	return l
}

// DestroyChunk implements arenaiface.ChunkDestroyer: it marks self as torn
// down. Since this harness keeps no on-disk or off-heap resource per
// chunk, there is nothing further to release; a full arena would unmap or
// free the chunk's backing region here.
func (a *Arena) DestroyChunk(self arenaiface.Chunk) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.destroyed[self] = true
}

// IsDestroyed reports whether self has been destroyed.
func (a *Arena) IsDestroyed(self arenaiface.Chunk) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.destroyed[self]
}
