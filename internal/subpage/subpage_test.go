package subpage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllocateFillsLowestFreeSlotFirst(t *testing.T) {
	head := NewHead()
	s := New(1, 256)
	s.Init(head, 32) // maxNumElems = 8

	for i := 0; i < 8; i++ {
		idx := s.Allocate()
		assert.Equal(t, i, idx)
	}
	assert.Equal(t, 0, s.NumAvail())
	assert.True(t, head.Empty(), "fully-allocated subpage must be unlinked")
}

func TestFreeRelinksWhenTransitioningFromFull(t *testing.T) {
	head := NewHead()
	s := New(1, 256)
	s.Init(head, 32)
	for i := 0; i < 8; i++ {
		s.Allocate()
	}
	require.True(t, head.Empty())

	stillInUse := s.Free(3)
	assert.True(t, stillInUse)
	assert.False(t, head.Empty(), "subpage must rejoin the list once a slot frees up")
	assert.Equal(t, 1, s.NumAvail())
}

func TestFreeSingletonKeepsLeafWhenAlone(t *testing.T) {
	head := NewHead()
	s := New(1, 256)
	s.Init(head, 32)
	idx := s.Allocate()

	keep := s.Free(idx)
	assert.True(t, keep, "sole subpage of this elemSize should be kept as a free singleton")
	assert.False(t, head.Empty())
}

func TestFreeReleasesLeafWhenAnotherSubpageServesTheSize(t *testing.T) {
	head := NewHead()
	a := New(1, 256)
	a.Init(head, 32)
	b := New(2, 256)
	b.Init(head, 32)

	idx := a.Allocate()
	keep := a.Free(idx)
	assert.False(t, keep, "leaf should be released back to the tree when another subpage of the same size remains")
}

func TestDoubleFreePanics(t *testing.T) {
	head := NewHead()
	s := New(1, 256)
	s.Init(head, 32)
	idx := s.Allocate()
	s.Free(idx)
	assert.Panics(t, func() { s.Free(idx) })
}

func TestDestroyedSubpagePanicsOnAllocate(t *testing.T) {
	head := NewHead()
	s := New(1, 256)
	s.Init(head, 32)
	s.Destroy()
	assert.Panics(t, func() { s.Allocate() })
}

// Scenario 2 from the testable-properties section: 256 allocations of
// size 32 on a single 8192-byte leaf fill exactly maxNumElems slots.
func TestScenarioFillsExactlyMaxNumElems(t *testing.T) {
	head := NewHead()
	s := New(1, 8192)
	s.Init(head, 32)

	assert.Equal(t, 256, s.MaxNumElems())

	indices := make([]int, 0, 256)
	for i := 0; i < 256; i++ {
		indices = append(indices, s.Allocate())
	}
	assert.Equal(t, 0, s.NumAvail())

	// Freeing in reverse order should leave the subpage in place
	// (kept as the sole subpage for elemSize 32) with numAvail back to 256.
	for i := len(indices) - 1; i >= 0; i-- {
		s.Free(indices[i])
	}
	assert.Equal(t, 256, s.NumAvail())
	assert.False(t, head.Empty())
}
