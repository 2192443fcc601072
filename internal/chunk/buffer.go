package chunk

import (
	"fmt"

	"govetachun/bufpool/internal/arenaiface"
	"govetachun/bufpool/internal/handle"
)

// Buffer is the user-visible projection of a Handle: a byte-range view over
// a chunk's backing memory, plus the opaque thread-cache token the arena
// attached to it. This is the sole point where a 64-bit handle becomes an
// (offset, length) pair a caller can read/write through.
type Buffer struct {
	Chunk       *Chunk
	Handle      handle.Handle
	Offset      int // byte offset from the chunk's configured base, inclusive of Chunk.offset
	Capacity    int // the originally requested capacity
	MaxCapacity int // runLength(nodeId) for a run, or elemSize for a subpage slot
	ThreadCache arenaiface.ThreadCacheToken
}

// Bytes returns the live byte-range view this buffer names. It panics if
// the chunk's backing memory is shorter than Offset+MaxCapacity, which
// would indicate a caller bug (handle from a different chunk, or a
// destroyed chunk).
func (b *Buffer) Bytes() []byte {
	return b.Chunk.memory[b.Offset : b.Offset+b.MaxCapacity]
}

func (b *Buffer) String() string {
	nodeID, bitmapIdx := handle.Decode(b.Handle)
	if bitmapIdx == 0 {
		return fmt.Sprintf("Buffer{node=%d offset=%d cap=%d/%d}", nodeID, b.Offset, b.Capacity, b.MaxCapacity)
	}
	return fmt.Sprintf("Buffer{node=%d slot=0x%x offset=%d cap=%d/%d}",
		nodeID, bitmapIdx, b.Offset, b.Capacity, b.MaxCapacity)
}
