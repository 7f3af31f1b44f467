package slcan

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mjs513/canaerospace/frame"
)

func TestEncodeDecodeStandardFrameRoundTrips(t *testing.T) {
	f := frame.Frame{ID: 0x123, DLC: 4, Data: [8]byte{0xDE, 0xAD, 0xBE, 0xEF}}
	line := encodeLine(f)
	assert.Equal(t, "t1234deadbeef\r", line)

	got, ok := decodeLine(line[:len(line)-1])
	require.True(t, ok)
	assert.Equal(t, f.ID, got.ID)
	assert.False(t, got.Extended)
	assert.Equal(t, f.DLC, got.DLC)
	assert.Equal(t, f.Data, got.Data)
}

func TestEncodeDecodeExtendedFrameRoundTrips(t *testing.T) {
	f := frame.Frame{ID: 0x1ABCDEF, Extended: true, DLC: 2, Data: [8]byte{0x01, 0x02}}
	line := encodeLine(f)
	assert.Equal(t, byte('T'), line[0])

	got, ok := decodeLine(line[:len(line)-1])
	require.True(t, ok)
	assert.True(t, got.Extended)
	assert.Equal(t, f.ID, got.ID)
	assert.Equal(t, f.DLC, got.DLC)
}

func TestDecodeLineRejectsNonDataReplies(t *testing.T) {
	_, ok := decodeLine("")
	assert.False(t, ok)

	_, ok = decodeLine("z")
	assert.False(t, ok, "status/error replies are not data frames")
}

func TestDecodeLineRejectsTruncatedData(t *testing.T) {
	_, ok := decodeLine("t1238dead") // dlc=8 but only 2 bytes supplied
	assert.False(t, ok)
}
