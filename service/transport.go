// Package service implements the service registry (§4.D) and service
// transport (§4.E): the bidirectional channel/message-id mapping, request
// and response addressing rules, cross-interface duplicate suppression,
// and the periodic poll dispatch that the simple services and block
// transfer subsystems are built on.
package service

import (
	"fmt"

	"github.com/mjs513/canaerospace/canaserr"
)

// Direction distinguishes a request message id from its paired response.
type Direction int

const (
	Request Direction = iota
	Response
)

const (
	highChanMin  = 0
	highChanMax  = 35
	highIDBase   = 128
	lowChanMin   = 100
	lowChanMax   = 115
	lowIDBase    = 2000
)

// ChannelToMsgID maps a service channel and direction to its message id,
// per §4.E's two channel ranges.
func ChannelToMsgID(ch uint8, dir Direction) (uint16, error) {
	d := uint16(0)
	if dir == Response {
		d = 1
	}
	switch {
	case ch >= highChanMin && ch <= highChanMax:
		return highIDBase + 2*uint16(ch) + d, nil
	case ch >= lowChanMin && ch <= lowChanMax:
		return lowIDBase + 2*(uint16(ch)-lowChanMin) + d, nil
	default:
		return 0, fmt.Errorf("%w: channel %d", canaserr.ErrBadServiceChan, ch)
	}
}

// MsgIDToChannel is the inverse of ChannelToMsgID: it recovers the
// service channel and direction carried by a message id already
// classified as node-service-high or node-service-low.
func MsgIDToChannel(msgID uint16) (ch uint8, dir Direction, err error) {
	switch {
	case msgID >= highIDBase && msgID <= highIDBase+2*(highChanMax-highChanMin)+1:
		offset := msgID - highIDBase
		return uint8(offset / 2), Direction(offset % 2), nil
	case msgID >= lowIDBase && msgID <= lowIDBase+2*(lowChanMax-lowChanMin)+1:
		offset := msgID - lowIDBase
		return uint8(offset/2) + lowChanMin, Direction(offset % 2), nil
	default:
		return 0, Request, fmt.Errorf("%w: message id %d", canaserr.ErrBadMessageID, msgID)
	}
}
