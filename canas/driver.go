package canas

import (
	"github.com/mjs513/canaerospace/frame"
	"github.com/mjs513/canaerospace/message"
)

// Driver is the CAN transceiver contract consumed by the core (§6). It
// collapses the original malloc/free allocator callbacks out of the
// contract entirely: Go's garbage collector is the allocator, so
// "NotEnoughMemory" in this port can only mean a bounded table (sessions,
// pending slots) is full, which every registry already reports as
// ErrQuotaExceeded without asking the embedder for memory.
type Driver interface {
	// Send transmits f on interface iface. Returns 1 if sent, 0 if
	// dropped, a negative value on error.
	Send(iface int, f frame.Frame) int
	// Filter programs interface iface's hardware acceptance filter to
	// the given message ids. Drivers with no filtering hardware return
	// nil unconditionally.
	Filter(iface int, ids []uint16) error
	// Timestamp returns a monotonic microsecond clock reading. Any
	// epoch is acceptable; only differences are meaningful.
	Timestamp() uint64
}

// Hook is the passive observer invoked on every accepted frame,
// independent of subscription matching and including duplicates (§4.B).
type Hook func(iface int, msgID uint16, redund uint8, m message.Message)
