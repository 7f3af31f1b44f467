package slcan

import (
	"encoding/hex"
	"fmt"
	"strconv"

	"github.com/mjs513/canaerospace/frame"
)

// encodeLine renders f as a LAWICEL/SLCAN ASCII transmit command: a
// lowercase 't' plus 3 hex id digits for a standard frame, or uppercase
// 'T' plus 8 hex id digits for an extended one, followed by one hex dlc
// digit and the data bytes in hex. Remote frames are never emitted —
// the codec above this driver already rejects RTR on decode (§4.A).
func encodeLine(f frame.Frame) string {
	var head string
	if f.Extended {
		head = fmt.Sprintf("T%08X", f.ID&frame.ExtendedIDMask)
	} else {
		head = fmt.Sprintf("t%03X", f.ID&frame.StandardIDMask)
	}
	return fmt.Sprintf("%s%X%s\r", head, f.DLC, hex.EncodeToString(f.Data[:f.DLC]))
}

// decodeLine parses one inbound SLCAN line, already stripped of its
// trailing CR. Anything that is not a well-formed 't'/'T' data frame
// (status replies, the BEL error byte, remote-frame 'r'/'R' lines) is
// reported as !ok rather than an error — the driver has nothing
// meaningful to do with those beyond dropping them.
func decodeLine(line string) (frame.Frame, bool) {
	if len(line) == 0 {
		return frame.Frame{}, false
	}
	var f frame.Frame
	var idDigits int
	switch line[0] {
	case 't':
		idDigits = 3
	case 'T':
		f.Extended = true
		idDigits = 8
	default:
		return frame.Frame{}, false
	}
	if len(line) < 1+idDigits+1 {
		return frame.Frame{}, false
	}
	id, err := strconv.ParseUint(line[1:1+idDigits], 16, 32)
	if err != nil {
		return frame.Frame{}, false
	}
	f.ID = uint32(id)
	dlc, err := strconv.ParseUint(line[1+idDigits:2+idDigits], 16, 8)
	if err != nil || dlc > 8 {
		return frame.Frame{}, false
	}
	f.DLC = uint8(dlc)
	dataHex := line[2+idDigits:]
	if len(dataHex) < int(dlc)*2 {
		return frame.Frame{}, false
	}
	data, err := hex.DecodeString(dataHex[:dlc*2])
	if err != nil {
		return frame.Frame{}, false
	}
	copy(f.Data[:dlc], data)
	return f, true
}
