// Package subpage implements BitmapSubpage: a single buddy-tree leaf
// (one page) carved into equal-sized slots, with occupancy tracked by a
// bitmap of 64-bit words. Subpages of the same elemSize are spliced into
// an arena-owned intrusive doubly-linked list rooted at a Head, per the
// design note that back-references should be index/weak rather than
// pointer cycles owned by the leaf itself — here the list links live on
// the Subpage but the Head itself is owned and handed out by the arena.
package subpage

import (
	"math/bits"

	bferrors "govetachun/bufpool/pkg/errors"
	"govetachun/bufpool/pkg/utils"
)

// Head is the per-elemSize root of a doubly-linked list of subpages. It is
// owned by the arena (spec §6's findSubpagePoolHead contract); its
// synchronisation is provided externally by a concurrency.HeadLock the
// caller holds for the duration of any Subpage method call.
type Head struct {
	next *Subpage
	prev *Subpage
}

// NewHead creates an empty subpage list root.
func NewHead() *Head {
	h := &Head{}
	h.next = nil
	h.prev = nil
	return h
}

// Empty reports whether the list has no subpages linked into it.
func (h *Head) Empty() bool {
	return h.next == nil
}

// link splices s in right after the head.
func (h *Head) link(s *Subpage) {
	s.prev = nil
	s.next = h.next
	if h.next != nil {
		h.next.prev = s
	}
	h.next = s
	s.head = h
}

// unlink removes s from whatever list it is currently in. It is a no-op if
// s is not linked.
func (h *Head) unlink(s *Subpage) {
	if s.head != h {
		return
	}
	if s.next != nil {
		s.next.prev = s.prev
	}
	if s.prev != nil {
		s.prev.next = s.next
	} else {
		h.next = s.next
	}
	s.next, s.prev, s.head = nil, nil, nil
}

// FirstAvailable returns a subpage linked into h that can serve another
// allocation, or nil if h has no subpages at all. Every subpage linked
// into h has numAvail > 0 by construction: Allocate unlinks a subpage the
// instant it becomes full, and Free relinks one the instant it stops
// being full — so the head of the list is always ready to serve without
// scanning.
func (h *Head) FirstAvailable() *Subpage {
	return h.next
}

// hasOtherFreeSingleton reports whether the list rooted at h already holds
// a different subpage kept fully free as a singleton. Only one free
// singleton per elemSize is worth retaining to amortise leaf churn; a
// subpage that is merely in use (serving live slots) does not count, since
// releasing s back to the tree would leave the size class with no free
// singleton at all.
func (h *Head) hasOtherFreeSingleton(s *Subpage) bool {
	for cur := h.next; cur != nil; cur = cur.next {
		if cur != s && cur.numAvail == cur.maxNumElems {
			return true
		}
	}
	return false
}

// Subpage is one buddy-tree leaf subdivided into maxNumElems slots of
// elemSize bytes. Slot occupancy is tracked in a fixed array of 64-bit
// bitmap words.
type Subpage struct {
	nodeID   uint32
	pageSize uint32
	elemSize uint32

	maxNumElems int
	bitmap      []uint64
	numAvail    int

	destroyed bool

	head       *Head
	next, prev *Subpage
}

// New creates a subpage backing leaf nodeID, not yet configured for a
// particular elemSize. Call Init before first use.
func New(nodeID uint32, pageSize uint32) *Subpage {
	return &Subpage{nodeID: nodeID, pageSize: pageSize, destroyed: true}
}

// NodeID returns the buddy-tree leaf id this subpage is backed by.
func (s *Subpage) NodeID() uint32 {
	return s.nodeID
}

// ElemSize returns the slot size this subpage is currently configured for.
func (s *Subpage) ElemSize() uint32 {
	return s.elemSize
}

// NumAvail returns the number of free slots.
func (s *Subpage) NumAvail() int {
	return s.numAvail
}

// MaxNumElems returns the slot capacity of this subpage.
func (s *Subpage) MaxNumElems() int {
	return s.maxNumElems
}

// Init (re)configures a subpage attached to its leaf for elemSize and
// splices it into head's list. A subpage may be reinitialised after being
// fully freed, possibly with a different elemSize, rather than recreated —
// this resets the bitmap and slot count but keeps the backing leaf id.
func (s *Subpage) Init(head *Head, elemSize uint32) {
	s.elemSize = elemSize
	s.maxNumElems = int(s.pageSize / elemSize)
	s.numAvail = s.maxNumElems
	s.destroyed = false

	words := (s.maxNumElems + 63) / 64
	if cap(s.bitmap) >= words {
		s.bitmap = s.bitmap[:words]
		for i := range s.bitmap {
			s.bitmap[i] = 0
		}
	} else {
		s.bitmap = make([]uint64, words)
	}

	head.link(s)
}

// Destroy tears the subpage down so further allocation attempts panic,
// mirroring the arena reclaiming the backing leaf.
func (s *Subpage) Destroy() {
	s.destroyed = true
}

// Allocate reserves the lowest free slot and returns its index. The caller
// must hold the elemSize's HeadLock. It panics if the subpage has been
// destroyed.
func (s *Subpage) Allocate() int {
	if s.destroyed {
		panic(bferrors.NewDestroyedSubpage("allocate on destroyed subpage"))
	}
	utils.Assert(s.numAvail > 0, "subpage.Allocate called with no slots available")

	for wordIdx, word := range s.bitmap {
		if word == ^uint64(0) {
			continue
		}
		bitIdx := bits.TrailingZeros64(^word)
		s.bitmap[wordIdx] = word | (1 << uint(bitIdx))
		s.numAvail--
		if s.numAvail == 0 {
			s.head.unlink(s)
		}
		return wordIdx*64 + bitIdx
	}
	panic(bferrors.NewInvariant("subpage bitmap full despite numAvail > 0"))
}

// Free clears slotIdx's bit. It returns true if the caller must keep the
// backing leaf (the subpage still holds other live slots, or it was kept
// as a free singleton to amortise leaf churn), and false if the leaf
// should be returned to the buddy tree.
func (s *Subpage) Free(slotIdx int) bool {
	if s.destroyed {
		panic(bferrors.NewDestroyedSubpage("free on destroyed subpage"))
	}
	wordIdx := slotIdx / 64
	bitIdx := uint(slotIdx % 64)
	mask := uint64(1) << bitIdx
	utils.Assert(s.bitmap[wordIdx]&mask != 0, "double free of subpage slot")

	wasFull := s.numAvail == 0
	s.bitmap[wordIdx] &^= mask
	s.numAvail++

	if wasFull {
		// Transitioned from 0 available to 1: must rejoin the list.
		s.head.link(s)
		return true
	}

	if s.numAvail == s.maxNumElems {
		// Last in-use slot freed: release the leaf only if another fully
		// free subpage of this elemSize is already kept in the list;
		// otherwise keep this one as the free singleton.
		if s.head.hasOtherFreeSingleton(s) {
			s.head.unlink(s)
			return false
		}
		return true
	}

	return true
}
