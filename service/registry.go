package service

import (
	"fmt"

	"github.com/mjs513/canaerospace/canaserr"
	"github.com/mjs513/canaerospace/message"
)

// Sender is the narrow outbound surface the registry needs from the
// orchestrator, mirroring param.Sender.
type Sender interface {
	Send(msgID uint16, redund uint8, m message.Message, ifaces []int) error
}

// RequestCallback handles an accepted inbound request.
type RequestCallback func(arg any, ch uint8, iface int, m message.Message, now uint64)

// ResponseCallback handles an accepted inbound response.
type ResponseCallback func(arg any, ch uint8, iface int, m message.Message, now uint64)

// PollCallback runs once per service-poll tick (§4.D, "Poll").
type PollCallback func(arg any, now uint64)

// DefaultHistLen is service_frame_hist_len's default (§6).
const DefaultHistLen = 32

type histSlot struct {
	used        bool
	ts          uint64
	fingerprint [4]byte
	ifaces      uint32
}

type subscription struct {
	code       uint8
	onRequest  RequestCallback
	onResponse ResponseCallback
	onPoll     PollCallback
	arg        any
	state      any
	history    []histSlot
}

// Registry owns every service subscription for one instance: dispatch by
// service code, cross-interface duplicate suppression, and outbound
// request/response addressing.
type Registry struct {
	sender              Sender
	localNodeID         uint8
	localServiceChannel uint8
	histLen             int
	repeatTimeout       uint64

	subs map[uint8]*subscription
}

// New builds an empty service registry. localServiceChannel is the
// instance's own service channel id, used to validate inbound responses
// (§4.D); histLen is service_frame_hist_len.
func New(sender Sender, localNodeID, localServiceChannel uint8, histLen int, repeatTimeout uint64) *Registry {
	if histLen <= 0 {
		histLen = DefaultHistLen
	}
	return &Registry{
		sender:              sender,
		localNodeID:         localNodeID,
		localServiceChannel: localServiceChannel,
		histLen:             histLen,
		repeatTimeout:       repeatTimeout,
		subs:                make(map[uint8]*subscription),
	}
}

// Register subscribes service code sc to the given callbacks (any of
// which may be nil) and opaque arg.
func (r *Registry) Register(sc uint8, onRequest RequestCallback, onResponse ResponseCallback, onPoll PollCallback, arg any) error {
	if _, exists := r.subs[sc]; exists {
		return fmt.Errorf("%w: service code %d", canaserr.ErrEntryExists, sc)
	}
	r.subs[sc] = &subscription{
		code:      sc,
		onRequest: onRequest, onResponse: onResponse, onPoll: onPoll,
		arg:     arg,
		history: make([]histSlot, r.histLen),
	}
	return nil
}

// Unregister removes the subscription for service code sc.
func (r *Registry) Unregister(sc uint8) error {
	if _, ok := r.subs[sc]; !ok {
		return fmt.Errorf("%w: service code %d", canaserr.ErrNoSuchEntry, sc)
	}
	delete(r.subs, sc)
	return nil
}

// GetState returns the opaque state last stored for service code sc.
func (r *Registry) GetState(sc uint8) (any, error) {
	sub, ok := r.subs[sc]
	if !ok {
		return nil, fmt.Errorf("%w: service code %d", canaserr.ErrNoSuchEntry, sc)
	}
	return sub.state, nil
}

// SetState stores opaque state for service code sc.
func (r *Registry) SetState(sc uint8, state any) error {
	sub, ok := r.subs[sc]
	if !ok {
		return fmt.Errorf("%w: service code %d", canaserr.ErrNoSuchEntry, sc)
	}
	sub.state = state
	return nil
}

// Ingest processes one frame already classified into the service
// pipeline and decoded to (ch, dir) by MsgIDToChannel. It applies the
// §4.D addressing filter, then cross-interface duplicate suppression,
// then dispatches to the matching subscription's request or response
// callback. Everything it rejects is dropped silently (§7).
func (r *Registry) Ingest(ch uint8, dir Direction, iface int, m message.Message, now uint64) {
	switch dir {
	case Request:
		if m.NodeID != r.localNodeID && m.NodeID != message.BroadcastNodeID {
			return
		}
	case Response:
		if ch != r.localServiceChannel || m.NodeID == r.localNodeID {
			return
		}
	}

	sub, ok := r.subs[m.ServiceCode]
	if !ok {
		return
	}

	fp := [4]byte{m.NodeID, byte(m.Data.Type), m.ServiceCode, m.MessageCode}
	ifaceBit := uint32(1) << uint(iface)

	oldest := 0
	oldestTs := uint64(1<<64 - 1)
	for i := range sub.history {
		h := &sub.history[i]
		if h.used && h.fingerprint == fp && now-h.ts < r.repeatTimeout {
			h.ifaces |= ifaceBit
			return
		}
		if !h.used {
			oldest = i
			oldestTs = 0
		} else if h.ts < oldestTs {
			oldest = i
			oldestTs = h.ts
		}
	}
	sub.history[oldest] = histSlot{used: true, ts: now, fingerprint: fp, ifaces: ifaceBit}

	switch dir {
	case Request:
		if sub.onRequest != nil {
			sub.onRequest(sub.arg, ch, iface, m, now)
		}
	case Response:
		if sub.onResponse != nil {
			sub.onResponse(sub.arg, ch, iface, m, now)
		}
	}
}

// Poll invokes every subscription's poll callback. The orchestrator is
// responsible for the service_poll_interval gating (§4.D); this call
// always fires immediately.
func (r *Registry) Poll(now uint64) {
	for _, sub := range r.subs {
		if sub.onPoll != nil {
			sub.onPoll(sub.arg, now)
		}
	}
}

// SendRequest transmits m as a request on channel ch addressed to
// targetNode (message.BroadcastNodeID for a broadcast request).
// Self-addressed requests are rejected (§4.E).
func (r *Registry) SendRequest(ch uint8, targetNode uint8, m message.Message) error {
	if targetNode == r.localNodeID {
		return fmt.Errorf("%w: self-addressed request", canaserr.ErrBadNodeID)
	}
	msgID, err := ChannelToMsgID(ch, Request)
	if err != nil {
		return err
	}
	m.NodeID = targetNode
	return r.sender.Send(msgID, 0, m, nil)
}

// SendResponse transmits m as a response on channel ch. m.NodeID
// identifies the responding node: message.BroadcastNodeID is silently
// rewritten to the local node id; any other foreign id is rejected
// (§4.E).
func (r *Registry) SendResponse(ch uint8, m message.Message) error {
	switch m.NodeID {
	case message.BroadcastNodeID:
		m.NodeID = r.localNodeID
	case r.localNodeID:
	default:
		return fmt.Errorf("%w: response cannot claim node id %d", canaserr.ErrBadNodeID, m.NodeID)
	}
	msgID, err := ChannelToMsgID(ch, Response)
	if err != nil {
		return err
	}
	return r.sender.Send(msgID, 0, m, nil)
}
