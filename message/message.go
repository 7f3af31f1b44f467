package message

import "fmt"

// BroadcastNodeID is the reserved node id meaning "all nodes" (used both as
// a service request destination and as the sentinel local node id must
// never take).
const BroadcastNodeID uint8 = 0

// Message is a CANaerospace logical message: the 4-byte header plus a
// typed payload (data.type travels inside Payload). A MessageID is not
// part of Message itself — it is either supplied by the caller (outgoing
// parameter/service sends) or carried alongside Message by whatever
// decoded it (see frame.Decode).
type Message struct {
	NodeID      uint8
	ServiceCode uint8
	MessageCode uint8
	Data        Payload
}

// DiffU8 computes the signed modulo-256 difference a-b used for message
// code sequencing: positive if a is "ahead of" b, with ±128 as the
// switchover point. This is the sole repetition/ordering primitive for
// parameter and service message codes.
func DiffU8(a, b uint8) int8 {
	return int8(a - b)
}

// String renders a message compactly for logs and test failures.
func (m Message) String() string {
	return fmt.Sprintf("MSG<node=%d svc=%d code=%d type=%s data=% x>",
		m.NodeID, m.ServiceCode, m.MessageCode, m.Data.Type, m.Data.WireBytes())
}
