// Package chunk implements Chunk: the orchestrator that owns one
// contiguous region of backing memory, routes allocation requests to
// either the buddy tree (large path, >= pageSize) or a leaf's
// BitmapSubpage (small path, < pageSize), and projects the resulting
// Handle into a user-visible Buffer.
package chunk

import (
	"strings"

	"govetachun/bufpool/internal/arenaiface"
	"govetachun/bufpool/internal/buddy"
	"govetachun/bufpool/internal/concurrency"
	"govetachun/bufpool/internal/handle"
	"govetachun/bufpool/internal/subpage"
	bferrors "govetachun/bufpool/pkg/errors"
	"govetachun/bufpool/pkg/utils"
)

// Config holds the construction-time tunables for a pooled Chunk. There is
// no implicit defaulting on the zero Config: 0 is a legal value for
// MaxOrder (a single-leaf chunk) and for CachedBuffersCap (ring disabled),
// so New validates exactly what it is given. Use DefaultConfig as a
// starting point and override individual fields.
type Config struct {
	PageSize         uint32 // power of two, >= 16
	MaxOrder         int    // 0 <= MaxOrder < 30
	Offset           int    // >= 0
	CachedBuffersCap int    // 0 disables the recycling ring
}

// DefaultConfig returns the tunables spec §6 calls out as defaults:
// pageSize 8192, maxOrder 11 (a 16 MiB chunk), no leading offset, and the
// 1023-entry cached-buffer ring bound spec §5 suggests.
func DefaultConfig() Config {
	return Config{
		PageSize:         8192,
		MaxOrder:         11,
		Offset:           0,
		CachedBuffersCap: 1023,
	}
}

// Chunk is the pooled allocator core: backing memory, a buddy tree over
// that memory's pages, per-leaf subpages, and a recycling ring for freed
// Buffer descriptors.
type Chunk struct {
	memory []byte
	offset int

	pageSize   uint32
	pageShifts uint
	maxOrder   int
	chunkSize  int

	tree      *buddy.Tree
	subpages  []*subpage.Subpage
	cached    *bufferRing
	freeBytes int

	arenaLock      *concurrency.ArenaLock
	finder         arenaiface.SubpagePoolFinder
	headLockFinder arenaiface.HeadLockFor

	unpooled bool

	// Next/Prev are the arena's intrusive chunk-list pointers; the arena
	// owns what they're linked into (per-occupancy lists), this package
	// only carries the fields so an arena can splice a *Chunk in and out
	// without a side table.
	Next, Prev *Chunk
}

// New creates a fresh, fully-free pooled chunk over a caller-allocated
// region of cfg.PageSize<<cfg.MaxOrder bytes (plus cfg.Offset of leading
// bytes the chunk does not manage — e.g. a shared buffer header).
func New(memory []byte, cfg Config, finder arenaiface.SubpagePoolFinder, headLockFinder arenaiface.HeadLockFor, arenaLock *concurrency.ArenaLock) *Chunk {
	if !utils.IsPowerOfTwo(uint64(cfg.PageSize)) || cfg.PageSize < 16 {
		panic(bferrors.NewBadConfig("pageSize must be a power of two >= 16"))
	}
	if cfg.MaxOrder < 0 || cfg.MaxOrder >= 30 {
		panic(bferrors.NewBadConfig("maxOrder must satisfy 0 <= maxOrder < 30"))
	}
	if cfg.Offset < 0 {
		panic(bferrors.NewBadConfig("offset must be >= 0"))
	}
	if cfg.CachedBuffersCap < 0 {
		panic(bferrors.NewBadConfig("cachedBuffersCap must be >= 0"))
	}

	pageShifts := uint(utils.Log2(uint64(cfg.PageSize)))
	chunkSize := int(cfg.PageSize) << uint(cfg.MaxOrder)
	if len(memory) < cfg.Offset+chunkSize {
		panic(bferrors.NewBadConfig("backing memory shorter than offset+chunkSize"))
	}

	return &Chunk{
		memory:         memory,
		offset:         cfg.Offset,
		pageSize:       cfg.PageSize,
		pageShifts:     pageShifts,
		maxOrder:       cfg.MaxOrder,
		chunkSize:      chunkSize,
		tree:           buddy.New(cfg.MaxOrder, int(pageShifts)),
		subpages:       make([]*subpage.Subpage, 1<<uint(cfg.MaxOrder)),
		cached:         newBufferRing(cfg.CachedBuffersCap),
		freeBytes:      chunkSize,
		arenaLock:      arenaLock,
		finder:         finder,
		headLockFinder: headLockFinder,
	}
}

// NewUnpooled wraps a caller-allocated region of arbitrary size with no
// tree, no subpages, no freeBytes tracking, and no cached-buffer ring.
// Only Destroy is meaningful on the result; Allocate/Free must not be
// called (spec §4.3's "unpooled chunks" variant, for oversized allocations
// the arena hands out through the same descriptor type).
func NewUnpooled(memory []byte, offset int) *Chunk {
	return &Chunk{
		memory:   memory,
		offset:   offset,
		unpooled: true,
	}
}

// ChunkSize returns the total pooled capacity in bytes.
func (c *Chunk) ChunkSize() int {
	return c.chunkSize
}

// FreeBytes returns the number of bytes not currently allocated. Reading
// this for metrics purposes should be done under the arena lock, per
// spec §5.
func (c *Chunk) FreeBytes() int {
	return c.freeBytes
}

// Usage returns the percentage of the chunk currently in use, in [0, 100].
func (c *Chunk) Usage() uint8 {
	if c.freeBytes == 0 {
		return 100
	}
	freePercentage := int(int64(c.freeBytes) * 100 / int64(c.chunkSize))
	if freePercentage == 0 {
		return 99
	}
	return uint8(100 - freePercentage)
}

func (c *Chunk) subpageIdx(id int) int {
	return id ^ (1 << uint(c.maxOrder))
}

// isSubpageRoute reports whether normCapacity must be served by the
// small-allocation (subpage) path rather than a whole-run buddy-tree node.
func (c *Chunk) isSubpageRoute(normCapacity uint32) bool {
	return normCapacity&^(c.pageSize-1) == 0
}

// Allocate satisfies a request for reqCapacity bytes, rounded up by the
// caller to the power-of-two normCapacity. On success it returns an
// initialised Buffer and true; on failure (capacity exhaustion, a normal,
// non-exceptional control signal per spec §7) it returns nil, false and
// consumes nothing.
func (c *Chunk) Allocate(reqCapacity, normCapacity uint32, threadCache arenaiface.ThreadCacheToken) (*Buffer, bool) {
	if c.unpooled {
		panic(bferrors.NewInvariant("Allocate called on an unpooled chunk"))
	}

	var h handle.Handle
	var ok bool
	if c.isSubpageRoute(normCapacity) {
		h, ok = c.allocateSubpage(normCapacity)
	} else {
		h, ok = c.allocateRun(normCapacity)
	}
	if !ok {
		return nil, false
	}

	buf := c.cached.pop()
	if buf == nil {
		buf = &Buffer{}
	}
	c.projectHandle(buf, h, reqCapacity)
	buf.ThreadCache = threadCache
	return buf, true
}

// allocateRun serves a >=pageSize request directly from the buddy tree.
func (c *Chunk) allocateRun(normCapacity uint32) (handle.Handle, bool) {
	d := c.maxOrder - (int(utils.Log2(uint64(normCapacity))) - int(c.pageShifts))

	c.arenaLock.Lock()
	defer c.arenaLock.Unlock()

	id, ok := c.tree.AllocateNode(d)
	if !ok {
		return handle.NoHandle, false
	}
	c.freeBytes -= c.tree.RunLength(id)
	return handle.Encode(uint32(id), -1), true
}

// allocateSubpage serves a <pageSize request from a leaf's BitmapSubpage,
// reusing an existing subpage with a free slot before acquiring a fresh
// leaf from the buddy tree — a leaf's whole point is to pack pageSize/
// normCapacity allocations into one tree node, so the tree is only
// touched on the (pageSize/normCapacity + 1)-th request per leaf (spec
// §8's boundary behaviour).
//
// Lock order is head-before-arena (spec §5/§9): the head lock for
// normCapacity's elemSize is taken first and held for the whole call; the
// arena lock is taken only nested inside it, and only for the portion that
// mutates freeBytes/the tree, so the two locks are never taken in the
// reverse order anywhere in this package.
func (c *Chunk) allocateSubpage(normCapacity uint32) (handle.Handle, bool) {
	head := c.finder.FindSubpagePoolHead(normCapacity)
	headLock := c.headLockFinder.FindSubpageHeadLock(normCapacity)
	headLock.Lock()
	defer headLock.Unlock()

	if sp := head.FirstAvailable(); sp != nil {
		slot := sp.Allocate()
		return handle.Encode(sp.NodeID(), int32(slot)), true
	}

	id, ok := func() (int, bool) {
		c.arenaLock.Lock()
		defer c.arenaLock.Unlock()
		id, ok := c.tree.AllocateNode(c.maxOrder)
		if ok {
			c.freeBytes -= int(c.pageSize)
		}
		return id, ok
	}()
	if !ok {
		return handle.NoHandle, false
	}

	idx := c.subpageIdx(id)
	sp := c.subpages[idx]
	if sp == nil {
		sp = subpage.New(uint32(id), c.pageSize)
		c.subpages[idx] = sp
	}
	sp.Init(head, normCapacity)
	slot := sp.Allocate()

	return handle.Encode(uint32(id), int32(slot)), true
}

// Free releases handle back to the chunk. If cachedBuffer is non-nil it is
// offered to the recycling ring once the release completes, subject to
// the ring's capacity bound.
func (c *Chunk) Free(h handle.Handle, cachedBuffer *Buffer) {
	if c.unpooled {
		panic(bferrors.NewInvariant("Free called on an unpooled chunk"))
	}

	nodeID, bitmapIdx := handle.Decode(h)
	if bitmapIdx != 0 {
		c.freeSubpage(nodeID, bitmapIdx)
	} else {
		c.freeRun(nodeID)
	}
	c.cached.push(cachedBuffer)
}

func (c *Chunk) freeRun(nodeID uint32) {
	c.arenaLock.Lock()
	defer c.arenaLock.Unlock()
	c.freeBytes += c.tree.RunLength(int(nodeID))
	c.tree.FreeNode(int(nodeID))
}

func (c *Chunk) freeSubpage(nodeID uint32, bitmapIdx uint32) {
	idx := c.subpageIdx(int(nodeID))
	sp := c.subpages[idx]
	utils.Assert(sp != nil, "free of subpage handle with no backing subpage")

	elemSize := sp.ElemSize()
	headLock := c.headLockFinder.FindSubpageHeadLock(elemSize)
	headLock.Lock()
	defer headLock.Unlock()

	stillInUse := sp.Free(handle.SlotIndex(bitmapIdx))
	if stillInUse {
		return
	}

	c.arenaLock.Lock()
	defer c.arenaLock.Unlock()
	c.freeBytes += int(c.pageSize)
	c.tree.FreeNode(int(nodeID))
}

// InitBuf reinitialises buf from an existing handle without allocating,
// offering the previous contents of cachedBuffer (if any) to the
// recycling ring first.
func (c *Chunk) InitBuf(buf *Buffer, cachedBuffer *Buffer, h handle.Handle, reqCapacity uint32) {
	if cachedBuffer != nil {
		c.cached.push(cachedBuffer)
	}
	c.projectHandle(buf, h, reqCapacity)
}

// projectHandle is the sole point where a handle becomes an (offset,
// length) view over memory (spec §4.3).
func (c *Chunk) projectHandle(buf *Buffer, h handle.Handle, reqCapacity uint32) {
	nodeID, bitmapIdx := handle.Decode(h)
	buf.Chunk = c
	buf.Handle = h
	buf.Capacity = int(reqCapacity)

	if bitmapIdx == 0 {
		buf.Offset = c.offset + c.tree.RunOffset(int(nodeID))
		buf.MaxCapacity = c.tree.RunLength(int(nodeID))
		return
	}

	idx := c.subpageIdx(int(nodeID))
	sp := c.subpages[idx]
	utils.Assert(sp != nil, "initBuf of subpage handle with no backing subpage")
	elemSize := int(sp.ElemSize())
	utils.Assert(int(reqCapacity) <= elemSize, "reqCapacity exceeds subpage elemSize")

	slot := handle.SlotIndex(bitmapIdx)
	buf.Offset = c.offset + c.tree.RunOffset(int(nodeID)) + slot*elemSize
	buf.MaxCapacity = elemSize
}

// Destroy releases the chunk's backing region via the arena's
// ChunkDestroyer contract.
func (c *Chunk) Destroy(destroyer arenaiface.ChunkDestroyer) {
	destroyer.DestroyChunk(c)
}

// DebugString renders the buddy tree's memoryMap depth-by-depth, for tests
// and the demo command — grounded on the teacher's table/debug dumpers.
func (c *Chunk) DebugString() string {
	var b strings.Builder
	for depth := 0; depth <= c.maxOrder; depth++ {
		lo := 1 << uint(depth)
		hi := lo << 1
		b.WriteString("d")
		b.WriteString(itoa(depth))
		b.WriteString(": ")
		for id := lo; id < hi; id++ {
			b.WriteByte(' ')
			b.WriteByte(digit(c.tree.MemoryMapAt(id)))
		}
		b.WriteByte('\n')
	}
	return b.String()
}

func digit(v byte) byte {
	if v < 10 {
		return '0' + v
	}
	return '*'
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	var buf [8]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	return string(buf[i:])
}
