package loopback

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mjs513/canaerospace/frame"
)

func tick(n *uint64) func() uint64 {
	return func() uint64 {
		*n++
		return *n
	}
}

func TestBusFansOutToOtherMembersOnly(t *testing.T) {
	bus := NewBus()
	var clk uint64
	a := New([]*Bus{bus}, tick(&clk), 0)
	b := New([]*Bus{bus}, tick(&clk), 0)
	c := New([]*Bus{bus}, tick(&clk), 0)

	f := frame.Frame{ID: 300, DLC: 4}
	require.Equal(t, 1, a.Send(0, f))

	_, ok := a.Receive(0)
	assert.False(t, ok, "sender must not receive its own frame")

	got, ok := b.Receive(0)
	require.True(t, ok)
	assert.Equal(t, f.ID, got.ID)

	got, ok = c.Receive(0)
	require.True(t, ok)
	assert.Equal(t, f.ID, got.ID)
}

func TestFilterRejectsNonMatchingID(t *testing.T) {
	bus := NewBus()
	var clk uint64
	a := New([]*Bus{bus}, tick(&clk), 0)
	b := New([]*Bus{bus}, tick(&clk), 0)

	require.NoError(t, b.Filter(0, []uint16{500}))
	a.Send(0, frame.Frame{ID: 300, DLC: 4})
	_, ok := b.Receive(0)
	assert.False(t, ok, "frame with non-matching id must not be queued")

	a.Send(0, frame.Frame{ID: 500, DLC: 4})
	_, ok = b.Receive(0)
	assert.True(t, ok, "frame with matching id must be queued")
}

func TestFullQueueDropsRatherThanBlocks(t *testing.T) {
	bus := NewBus()
	var clk uint64
	a := New([]*Bus{bus}, tick(&clk), 0)
	b := New([]*Bus{bus}, tick(&clk), 1)

	assert.Equal(t, 1, a.Send(0, frame.Frame{ID: 10, DLC: 4}))
	assert.Equal(t, 1, a.Send(0, frame.Frame{ID: 11, DLC: 4}))

	got, ok := b.Receive(0)
	require.True(t, ok)
	assert.EqualValues(t, 10, got.ID, "queue depth 1 keeps only the first frame")

	_, ok = b.Receive(0)
	assert.False(t, ok)
}

func TestSendOutOfRangeIfaceErrors(t *testing.T) {
	var clk uint64
	a := New(nil, tick(&clk), 0)
	assert.Equal(t, -1, a.Send(0, frame.Frame{ID: 1, DLC: 4}))
	assert.Error(t, a.Filter(0, []uint16{1}))
}
