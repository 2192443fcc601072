package handle

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEncodeTreeLevelHasZeroBitmapIdx(t *testing.T) {
	h := Encode(7, -1)
	nodeID, bitmapIdx := Decode(h)
	assert.Equal(t, uint32(7), nodeID)
	assert.Equal(t, uint32(0), bitmapIdx)
	assert.False(t, IsSubpage(h))
}

func TestEncodeSubpageSlotZeroIsDistinguishable(t *testing.T) {
	h := Encode(3, 0)
	assert.NotEqual(t, Handle(3), h, "slot 0 must not collide with a tree-level handle for the same node")
	assert.True(t, IsSubpage(h))
	nodeID, bitmapIdx := Decode(h)
	assert.Equal(t, uint32(3), nodeID)
	assert.Equal(t, 0, SlotIndex(bitmapIdx))
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	cases := []struct {
		nodeID uint32
		slot   int32
	}{
		{1, -1},
		{2048, -1},
		{5, 0},
		{5, 1},
		{9999, 511},
	}
	for _, c := range cases {
		h := Encode(c.nodeID, c.slot)
		nodeID, bitmapIdx := Decode(h)
		assert.Equal(t, c.nodeID, nodeID)
		if c.slot < 0 {
			assert.Equal(t, uint32(0), bitmapIdx)
		} else {
			assert.True(t, IsSubpage(h))
			assert.Equal(t, int(c.slot), SlotIndex(bitmapIdx))
		}
	}
}

func TestEncodeRawRoundTripsWithEncode(t *testing.T) {
	h := Encode(42, 3)
	_, bitmapIdx := Decode(h)
	h2 := EncodeRaw(42, bitmapIdx)
	assert.Equal(t, h, h2)
}

func TestNoHandleIsNeverProducedByEncode(t *testing.T) {
	assert.Equal(t, Handle(0), NoHandle)
	for _, nodeID := range []uint32{1, 2, 3, 1000} {
		assert.NotEqual(t, NoHandle, Encode(nodeID, -1))
		assert.NotEqual(t, NoHandle, Encode(nodeID, 0))
	}
}
