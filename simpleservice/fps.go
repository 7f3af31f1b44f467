package simpleservice

import (
	"fmt"

	"github.com/mjs513/canaerospace/canaserr"
	"github.com/mjs513/canaerospace/message"
	"github.com/mjs513/canaerospace/service"
)

// FPSServiceCode is the Flash Programming service's code.
const FPSServiceCode = 6

// FPSResult is the result code carried back in an FPS response's
// message_code field.
type FPSResult uint8

const (
	FPSOk FPSResult = iota
	FPSAbort
	FPSInvalidSecurityCode
)

// FPSCallback delivers the outcome of an FPS request: either a result
// code from the server (timedOut false) or a timeout (timedOut true, in
// which case result is meaningless).
type FPSCallback func(result FPSResult, timedOut bool)

type fpsPending struct {
	deadline uint64
	cb       FPSCallback
}

// FPS implements Flash Programming's client and server roles. At most
// one client request may be outstanding at a time (§4.G).
type FPS struct {
	svc                 *service.Registry
	localNodeID         uint8
	localServiceChannel uint8
	timeout             uint64
	serverHandler       func(securityCode uint8) FPSResult
	pending             *fpsPending
}

// NewFPS registers the Flash Programming service. localServiceChannel is
// this node's own configured service channel (§4.E). serverHandler may
// be nil if this node does not serve flash-programming requests.
func NewFPS(svc *service.Registry, localNodeID, localServiceChannel uint8, timeout uint64, serverHandler func(uint8) FPSResult) (*FPS, error) {
	f := &FPS{svc: svc, localNodeID: localNodeID, localServiceChannel: localServiceChannel, timeout: timeout, serverHandler: serverHandler}
	if err := svc.Register(FPSServiceCode, f.onRequest, f.onResponse, f.onPoll, nil); err != nil {
		return nil, err
	}
	return f, nil
}

// Request issues a flash-programming request carrying securityCode.
// Broadcast targets are rejected; a second request while one is already
// outstanding is rejected with ErrQuotaExceeded.
func (f *FPS) Request(targetNode uint8, securityCode uint8, cb FPSCallback, now uint64) error {
	if targetNode == message.BroadcastNodeID {
		return fmt.Errorf("%w: flash programming request cannot broadcast", canaserr.ErrBadNodeID)
	}
	if f.pending != nil {
		return fmt.Errorf("%w: a flash programming request is already outstanding", canaserr.ErrQuotaExceeded)
	}
	f.pending = &fpsPending{deadline: now + f.timeout, cb: cb}
	err := f.svc.SendRequest(f.localServiceChannel, targetNode, message.Message{
		ServiceCode: FPSServiceCode,
		MessageCode: securityCode,
		Data:        message.NoData(),
	})
	if err != nil {
		f.pending = nil
	}
	return err
}

func (f *FPS) onRequest(arg any, ch uint8, iface int, m message.Message, now uint64) {
	if f.serverHandler == nil {
		return
	}
	result := f.serverHandler(m.MessageCode)
	resp := message.Message{
		NodeID:      f.localNodeID,
		ServiceCode: FPSServiceCode,
		MessageCode: uint8(result),
		Data:        message.NoData(),
	}
	_ = f.svc.SendResponse(ch, resp)
}

func (f *FPS) onResponse(arg any, ch uint8, iface int, m message.Message, now uint64) {
	if f.pending == nil {
		return
	}
	cb := f.pending.cb
	f.pending = nil
	if cb != nil {
		cb(FPSResult(m.MessageCode), false)
	}
}

func (f *FPS) onPoll(arg any, now uint64) {
	if f.pending != nil && now >= f.pending.deadline {
		cb := f.pending.cb
		f.pending = nil
		if cb != nil {
			cb(0, true)
		}
	}
}
