package frame

import (
	"fmt"

	"github.com/mjs513/canaerospace/canaserr"
	"github.com/mjs513/canaerospace/message"
)

// redundChanShift is the bit offset of the redundancy channel id within a
// 29-bit extended identifier (bits 16..23, per §3).
const redundChanShift = 16

// Encode packs a logical message addressed to msgID, on redundancy channel
// redund, into a CAN frame. Redundancy channel 0 always uses the standard
// (11-bit) identifier form; any other value sets the extended-id flag and
// carries the channel in bits 16..23.
func Encode(msgID uint16, redund uint8, m message.Message) (Frame, error) {
	if m.Data.Type.IsReserved() {
		return Frame{}, fmt.Errorf("%w: reserved type %s", canaserr.ErrBadDataType, m.Data.Type)
	}
	if m.Data.Type.IsUserDefined() && m.Data.Length > 4 {
		return Frame{}, fmt.Errorf("%w: user-defined length %d > 4", canaserr.ErrBadDataType, m.Data.Length)
	}
	if !m.Data.Type.IsUserDefined() {
		if _, ok := message.FixedLength(m.Data.Type); !ok {
			return Frame{}, fmt.Errorf("%w: unknown type %s", canaserr.ErrBadDataType, m.Data.Type)
		}
	}

	payload := m.Data.WireBytes()
	var f Frame
	f.Data[0] = m.NodeID
	f.Data[1] = byte(m.Data.Type)
	f.Data[2] = m.ServiceCode
	f.Data[3] = m.MessageCode
	copy(f.Data[4:], payload)
	f.DLC = uint8(4 + len(payload))

	msgID &= uint16(StandardIDMask)
	if redund != 0 {
		f.Extended = true
		f.ID = uint32(msgID) | (uint32(redund) << redundChanShift)
	} else {
		f.Extended = false
		f.ID = uint32(msgID)
	}
	return f, nil
}

// Decode unpacks a CAN frame into its message id, redundancy channel, and
// logical message. It rejects remote-request frames and frames whose dlc
// is outside 4..8, and validates that the payload length matches the data
// type's fixed length (standard tags) or is <= 4 (user-defined tags).
func Decode(f Frame) (msgID uint16, redund uint8, m message.Message, err error) {
	if f.RTR {
		return 0, 0, message.Message{}, fmt.Errorf("%w: remote-request frame", canaserr.ErrBadCANFrame)
	}
	if f.DLC < 4 || f.DLC > 8 {
		return 0, 0, message.Message{}, fmt.Errorf("%w: dlc %d out of [4,8]", canaserr.ErrBadCANFrame, f.DLC)
	}

	msgID = uint16(f.ID) & uint16(StandardIDMask)
	if f.Extended {
		redund = uint8(f.ID >> redundChanShift)
	}

	typ := message.TypeID(f.Data[1])
	payloadLen := int(f.DLC) - 4

	var payload message.Payload
	if typ.IsUserDefined() {
		payload, err = message.FromWireBytes(typ, f.Data[4:4+payloadLen])
	} else {
		want, ok := message.FixedLength(typ)
		if !ok {
			err = fmt.Errorf("%w: unknown type %s", canaserr.ErrBadDataType, typ)
		} else if payloadLen != want {
			err = fmt.Errorf("%w: type %s wants %d bytes, frame carries %d", canaserr.ErrBadDataType, typ, want, payloadLen)
		} else {
			payload, err = message.FromWireBytes(typ, f.Data[4:4+want])
		}
	}
	if err != nil {
		return 0, 0, message.Message{}, err
	}

	m = message.Message{
		NodeID:      f.Data[0],
		ServiceCode: f.Data[2],
		MessageCode: f.Data[3],
		Data:        payload,
	}
	return msgID, redund, m, nil
}
