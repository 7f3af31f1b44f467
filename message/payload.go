package message

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/mjs513/canaerospace/canaserr"
)

// Payload is the typed container carried by a Message (the Go analogue of
// CanasMessageData / CanasDataContainer). Internally the value bytes are
// kept already in wire order (big-endian for scalar/array-of-16/32-bit
// tags, untouched order for byte-array and ASCII tags) so that marshalling
// to/from a Frame is a straight copy; the typed constructors and accessors
// below are the only place the host/wire conversion happens, mirroring the
// role of _marshal() in the original implementation without needing a
// separate host-order representation.
type Payload struct {
	Type   TypeID
	Length uint8 // meaningful only when Type.IsUserDefined()
	wire   [4]byte
}

// Len returns the number of meaningful bytes in the payload: the fixed
// length for a standard tag, or the explicit Length for a user-defined one.
func (p Payload) Len() int {
	if p.Type.IsUserDefined() {
		return int(p.Length)
	}
	n, _ := FixedLength(p.Type)
	return n
}

// WireBytes returns the payload's Len() bytes exactly as they belong on
// the wire, ready to follow the 4-byte message header.
func (p Payload) WireBytes() []byte {
	n := p.Len()
	out := make([]byte, n)
	copy(out, p.wire[:n])
	return out
}

// FromWireBytes constructs a Payload of type t from raw wire bytes already
// in on-the-wire order. For standard tags b must be exactly the tag's
// fixed length; for user-defined tags b may be 0..4 bytes. This is used by
// the frame codec when parsing an inbound frame.
func FromWireBytes(t TypeID, b []byte) (Payload, error) {
	if t.IsReserved() {
		return Payload{}, fmt.Errorf("%w: reserved type %s", canaserr.ErrBadDataType, t)
	}
	var p Payload
	p.Type = t
	if t.IsUserDefined() {
		if len(b) > 4 {
			return Payload{}, fmt.Errorf("%w: user-defined length %d > 4", canaserr.ErrBadDataType, len(b))
		}
		p.Length = uint8(len(b))
		copy(p.wire[:], b)
		return p, nil
	}
	want, ok := FixedLength(t)
	if !ok {
		return Payload{}, fmt.Errorf("%w: unknown type %s", canaserr.ErrBadDataType, t)
	}
	if len(b) != want {
		return Payload{}, fmt.Errorf("%w: type %s wants %d bytes, got %d", canaserr.ErrBadDataType, t, want, len(b))
	}
	copy(p.wire[:], b)
	return p, nil
}

// NoData returns the NODATA payload.
func NoData() Payload { return Payload{Type: NODATA} }

func put32(t TypeID, v uint32) Payload {
	var p Payload
	p.Type = t
	binary.BigEndian.PutUint32(p.wire[:4], v)
	return p
}

func get32(p Payload) uint32 { return binary.BigEndian.Uint32(p.wire[:4]) }

func put16(t TypeID, v uint16) Payload {
	var p Payload
	p.Type = t
	binary.BigEndian.PutUint16(p.wire[:2], v)
	return p
}

func get16(p Payload) uint16 { return binary.BigEndian.Uint16(p.wire[:2]) }

// NewError builds an ERROR payload from a 32-bit error code.
func NewError(code uint32) Payload { return put32(ERROR, code) }

// ErrorCode reads an ERROR payload.
func (p Payload) ErrorCode() uint32 { return get32(p) }

// NewFloat32 builds a FLOAT payload.
func NewFloat32(v float32) Payload { return put32(FLOAT, math.Float32bits(v)) }

// Float32 reads a FLOAT payload.
func (p Payload) Float32() float32 { return math.Float32frombits(get32(p)) }

// NewLong builds a LONG payload.
func NewLong(v int32) Payload { return put32(LONG, uint32(v)) }

// Long reads a LONG payload.
func (p Payload) Long() int32 { return int32(get32(p)) }

// NewULong builds a ULONG payload.
func NewULong(v uint32) Payload { return put32(ULONG, v) }

// ULong reads a ULONG payload.
func (p Payload) ULong() uint32 { return get32(p) }

// NewBLong builds a BLONG (bit-packed 32-bit) payload.
func NewBLong(v uint32) Payload { return put32(BLONG, v) }

// BLong reads a BLONG payload.
func (p Payload) BLong() uint32 { return get32(p) }

// NewShort builds a SHORT payload.
func NewShort(v int16) Payload { return put16(SHORT, uint16(v)) }

// Short reads a SHORT payload.
func (p Payload) Short() int16 { return int16(get16(p)) }

// NewUShort builds a USHORT payload.
func NewUShort(v uint16) Payload { return put16(USHORT, v) }

// UShort reads a USHORT payload.
func (p Payload) UShort() uint16 { return get16(p) }

// NewBShort builds a BSHORT (bit-packed 16-bit) payload.
func NewBShort(v uint16) Payload { return put16(BSHORT, v) }

// BShort reads a BSHORT payload.
func (p Payload) BShort() uint16 { return get16(p) }

// NewChar builds a CHAR payload.
func NewChar(v int8) Payload { return Payload{Type: CHAR, wire: [4]byte{byte(v)}} }

// Char reads a CHAR payload.
func (p Payload) Char() int8 { return int8(p.wire[0]) }

// NewUChar builds a UCHAR payload.
func NewUChar(v uint8) Payload { return Payload{Type: UCHAR, wire: [4]byte{v}} }

// UChar reads a UCHAR payload.
func (p Payload) UChar() uint8 { return p.wire[0] }

// NewBChar builds a BCHAR (bit-packed 8-bit) payload.
func NewBChar(v uint8) Payload { return Payload{Type: BCHAR, wire: [4]byte{v}} }

// BChar reads a BCHAR payload.
func (p Payload) BChar() uint8 { return p.wire[0] }

// NewShort2 builds a SHORT2 payload from two signed 16-bit values.
func NewShort2(a, b int16) Payload {
	var p Payload
	p.Type = SHORT2
	binary.BigEndian.PutUint16(p.wire[0:2], uint16(a))
	binary.BigEndian.PutUint16(p.wire[2:4], uint16(b))
	return p
}

// Short2 reads a SHORT2 payload.
func (p Payload) Short2() (int16, int16) {
	return int16(binary.BigEndian.Uint16(p.wire[0:2])), int16(binary.BigEndian.Uint16(p.wire[2:4]))
}

// NewUShort2 builds a USHORT2 payload.
func NewUShort2(a, b uint16) Payload {
	var p Payload
	p.Type = USHORT2
	binary.BigEndian.PutUint16(p.wire[0:2], a)
	binary.BigEndian.PutUint16(p.wire[2:4], b)
	return p
}

// UShort2 reads a USHORT2 payload.
func (p Payload) UShort2() (uint16, uint16) {
	return binary.BigEndian.Uint16(p.wire[0:2]), binary.BigEndian.Uint16(p.wire[2:4])
}

// NewBShort2 builds a BSHORT2 (bit-packed) payload.
func NewBShort2(a, b uint16) Payload {
	var p Payload
	p.Type = BSHORT2
	binary.BigEndian.PutUint16(p.wire[0:2], a)
	binary.BigEndian.PutUint16(p.wire[2:4], b)
	return p
}

// BShort2 reads a BSHORT2 payload.
func (p Payload) BShort2() (uint16, uint16) {
	return binary.BigEndian.Uint16(p.wire[0:2]), binary.BigEndian.Uint16(p.wire[2:4])
}

func newBytes4(t TypeID, n int, b []byte) Payload {
	var p Payload
	p.Type = t
	copy(p.wire[:n], b)
	return p
}

// NewChar4 builds a CHAR4 payload from 4 bytes, passed through unswapped.
func NewChar4(b [4]byte) Payload { return newBytes4(CHAR4, 4, b[:]) }

// Char4 reads a CHAR4 payload.
func (p Payload) Char4() [4]byte { return p.wire }

// NewUChar4 builds a UCHAR4 payload.
func NewUChar4(b [4]byte) Payload { return newBytes4(UCHAR4, 4, b[:]) }

// UChar4 reads a UCHAR4 payload.
func (p Payload) UChar4() [4]byte { return p.wire }

// NewBChar4 builds a BCHAR4 (bit-packed) payload.
func NewBChar4(b [4]byte) Payload { return newBytes4(BCHAR4, 4, b[:]) }

// BChar4 reads a BCHAR4 payload.
func (p Payload) BChar4() [4]byte { return p.wire }

// NewChar2 builds a CHAR2 payload.
func NewChar2(b [2]byte) Payload { return newBytes4(CHAR2, 2, b[:]) }

// Char2 reads a CHAR2 payload.
func (p Payload) Char2() [2]byte { return [2]byte{p.wire[0], p.wire[1]} }

// NewUChar2 builds a UCHAR2 payload.
func NewUChar2(b [2]byte) Payload { return newBytes4(UCHAR2, 2, b[:]) }

// UChar2 reads a UCHAR2 payload.
func (p Payload) UChar2() [2]byte { return [2]byte{p.wire[0], p.wire[1]} }

// NewBChar2 builds a BCHAR2 (bit-packed) payload.
func NewBChar2(b [2]byte) Payload { return newBytes4(BCHAR2, 2, b[:]) }

// BChar2 reads a BCHAR2 payload.
func (p Payload) BChar2() [2]byte { return [2]byte{p.wire[0], p.wire[1]} }

// NewMemID builds a MEMID payload (32-bit memory handle used by block
// transfer sessions to name the transferred object).
func NewMemID(v uint32) Payload { return put32(MEMID, v) }

// MemID reads a MEMID payload.
func (p Payload) MemID() uint32 { return get32(p) }

// NewChkSum builds a CHKSUM payload.
func NewChkSum(v uint32) Payload { return put32(CHKSUM, v) }

// ChkSum reads a CHKSUM payload.
func (p Payload) ChkSum() uint32 { return get32(p) }

// NewAChar builds an ACHAR (single ASCII byte) payload.
func NewAChar(v byte) Payload { return Payload{Type: ACHAR, wire: [4]byte{v}} }

// AChar reads an ACHAR payload.
func (p Payload) AChar() byte { return p.wire[0] }

// NewAChar2 builds an ACHAR2 payload.
func NewAChar2(b [2]byte) Payload { return newBytes4(ACHAR2, 2, b[:]) }

// AChar2 reads an ACHAR2 payload.
func (p Payload) AChar2() [2]byte { return [2]byte{p.wire[0], p.wire[1]} }

// NewAChar4 builds an ACHAR4 payload.
func NewAChar4(b [4]byte) Payload { return newBytes4(ACHAR4, 4, b[:]) }

// AChar4 reads an ACHAR4 payload.
func (p Payload) AChar4() [4]byte { return p.wire }

func newBytes3(t TypeID, b [3]byte) Payload {
	var p Payload
	p.Type = t
	copy(p.wire[:3], b[:])
	return p
}

// NewChar3 builds a CHAR3 payload.
func NewChar3(b [3]byte) Payload { return newBytes3(CHAR3, b) }

// Char3 reads a CHAR3 payload.
func (p Payload) Char3() [3]byte { return [3]byte{p.wire[0], p.wire[1], p.wire[2]} }

// NewUChar3 builds a UCHAR3 payload.
func NewUChar3(b [3]byte) Payload { return newBytes3(UCHAR3, b) }

// UChar3 reads a UCHAR3 payload.
func (p Payload) UChar3() [3]byte { return [3]byte{p.wire[0], p.wire[1], p.wire[2]} }

// NewBChar3 builds a BCHAR3 (bit-packed) payload.
func NewBChar3(b [3]byte) Payload { return newBytes3(BCHAR3, b) }

// BChar3 reads a BCHAR3 payload.
func (p Payload) BChar3() [3]byte { return [3]byte{p.wire[0], p.wire[1], p.wire[2]} }

// NewAChar3 builds an ACHAR3 payload.
func NewAChar3(b [3]byte) Payload { return newBytes3(ACHAR3, b) }

// AChar3 reads an ACHAR3 payload.
func (p Payload) AChar3() [3]byte { return [3]byte{p.wire[0], p.wire[1], p.wire[2]} }

// NewDoubleH builds a DOUBLEH payload — the high 32 bits of an IEEE-754
// double, carried as its own parameter because CAN payloads are at most
// 4 bytes; pair with a DOUBLEL message for the low half.
func NewDoubleH(v uint32) Payload { return put32(DOUBLEH, v) }

// DoubleH reads a DOUBLEH payload.
func (p Payload) DoubleH() uint32 { return get32(p) }

// NewDoubleL builds a DOUBLEL payload.
func NewDoubleL(v uint32) Payload { return put32(DOUBLEL, v) }

// DoubleL reads a DOUBLEL payload.
func (p Payload) DoubleL() uint32 { return get32(p) }

// NewUserDefined builds a payload with a user-defined tag (100..255) and an
// explicit length of 0..4 bytes.
func NewUserDefined(t TypeID, b []byte) (Payload, error) {
	if !t.IsUserDefined() {
		return Payload{}, fmt.Errorf("%w: %s is not user-defined", canaserr.ErrBadDataType, t)
	}
	if len(b) > 4 {
		return Payload{}, fmt.Errorf("%w: user-defined length %d > 4", canaserr.ErrBadDataType, len(b))
	}
	var p Payload
	p.Type = t
	p.Length = uint8(len(b))
	copy(p.wire[:], b)
	return p, nil
}
