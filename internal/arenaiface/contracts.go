// Package arenaiface is the narrow surface through which a Chunk talks to
// its enclosing arena. Everything else the arena does — holding chunks in
// doubly-linked lists by occupancy, thread-local caches of recently freed
// handles, the I/O reactor and async futures — is out of scope for this
// module (spec §1) and is reached, if at all, only through these
// contracts.
package arenaiface

import (
	"govetachun/bufpool/internal/concurrency"
	"govetachun/bufpool/internal/subpage"
)

// SubpagePoolFinder resolves the stable per-elemSize subpage list head the
// small-allocation path splices into and removes from.
type SubpagePoolFinder interface {
	FindSubpagePoolHead(normCapacity uint32) *subpage.Head
}

// ChunkDestroyer releases a chunk's backing region once the arena decides
// it is no longer needed (fully free and sitting in the lowest occupancy
// list — that decision is the arena's, not the chunk's).
type ChunkDestroyer interface {
	DestroyChunk(self Chunk)
}

// Chunk is the minimal view a ChunkDestroyer needs of the thing it is
// destroying, kept separate from the concrete chunk package to avoid an
// import cycle between arenaiface and chunk.
type Chunk interface {
	ChunkSize() int
	FreeBytes() int
}

// ThreadCacheToken is an opaque value the arena attaches to every buffer
// descriptor it hands out; the allocator core never interprets it, only
// carries it through Allocate/InitBuf.
type ThreadCacheToken interface{}

// HeadLockFor pairs a SubpageHead with the lock a caller must hold for the
// duration of any operation on it — the arena owns both and hands out the
// pair together, since a Head is never safe to touch without its lock.
type HeadLockFor interface {
	FindSubpageHeadLock(normCapacity uint32) *concurrency.HeadLock
}

// Lock is the arena-wide lock covering all of its chunks: memoryMap
// mutations, freeBytes, the cached-buffer ring, and chunk-list pointers.
type Lock interface {
	Lock()
	Unlock()
}
