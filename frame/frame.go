// Package frame implements the CAN frame codec (§4.A): packing a logical
// CANaerospace message plus a redundancy channel id into a raw CAN frame,
// and the reverse. The frame representation itself mirrors the driver
// contract's CanasCanFrame (8 data bytes, a 29-bit-capable identifier, a
// data-length count) but splits the EFF/RTR flags into explicit booleans —
// the idiomatic Go shape for a packed C flags-in-the-id field.
package frame

import (
	"fmt"

	"github.com/mjs513/canaerospace/canaserr"
)

// StandardIDMask and ExtendedIDMask bound the two identifier forms.
const (
	StandardIDMask uint32 = 0x000007FF
	ExtendedIDMask uint32 = 0x1FFFFFFF
)

// Frame is a single CAN frame as handed to or received from the driver
// contract's send/filter/hook callbacks.
type Frame struct {
	ID       uint32
	Extended bool
	RTR      bool
	DLC      uint8
	Data     [8]byte
}

// Validate reports whether f is a structurally well-formed CAN frame
// (correct id width for its form, dlc in range). It does not reject RTR —
// that is a codec-level rule (§4.A: "remote-request frames are rejected at
// parse"), not a property of the frame's own shape.
func (f Frame) Validate() error {
	if f.DLC > 8 {
		return fmt.Errorf("%w: dlc %d > 8", canaserr.ErrBadCANFrame, f.DLC)
	}
	mask := StandardIDMask
	if f.Extended {
		mask = ExtendedIDMask
	}
	if f.ID&^mask != 0 {
		return fmt.Errorf("%w: id %#x exceeds %d-bit range", canaserr.ErrBadCANFrame, f.ID, idBits(f.Extended))
	}
	return nil
}

func idBits(extended bool) int {
	if extended {
		return 29
	}
	return 11
}

// String renders a frame compactly for logs and test failures.
func (f Frame) String() string {
	kind := "std"
	if f.Extended {
		kind = "ext"
	}
	if f.RTR {
		return fmt.Sprintf("CAN<%s id=%#x RTR>", kind, f.ID)
	}
	return fmt.Sprintf("CAN<%s id=%#x dlc=%d data=% x>", kind, f.ID, f.DLC, f.Data[:f.DLC])
}
