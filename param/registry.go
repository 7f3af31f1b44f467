// Package param implements the parameter registry (§4.C): subscriptions
// keyed by message id with a per-redundancy-channel cache, rolling-code
// advertisements, and the repetition filter that is the sole basis for
// delivering (or silently dropping) an inbound parameter message.
package param

import (
	"fmt"

	"github.com/mjs513/canaerospace/canaserr"
	"github.com/mjs513/canaerospace/message"
)

// Sender is the narrow outbound surface the registry needs from the
// orchestrator: transmit a logical message addressed by msgID/redund on
// the given interface indices (nil meaning "every configured interface").
// It returns canaserr.ErrDriver only if every attempted interface failed.
type Sender interface {
	Send(msgID uint16, redund uint8, m message.Message, ifaces []int) error
}

// Callback receives a delivered parameter: the subscriber's opaque arg,
// the message, the redundancy channel it arrived on, and the timestamp at
// which it was accepted (not when it was received, if those differ).
type Callback func(arg any, ch uint8, m message.Message, ts uint64)

type cacheSlot struct {
	ts uint64
	m  message.Message
}

type subscription struct {
	id       uint16
	chanCount uint8
	cb       Callback
	arg      any
	cache    []cacheSlot
}

type advertisement struct {
	id         uint16
	code       uint8
	interlaced bool
	cursor     int
}

// Registry owns every parameter subscription and advertisement for one
// instance. It is not safe for concurrent use — the orchestrator's
// single-threaded cooperative model (§5) is the caller's responsibility.
type Registry struct {
	sender        Sender
	localNodeID   uint8
	localRedund   uint8
	ifaceCount    int
	repeatTimeout uint64

	subs map[uint16]*subscription
	advs map[uint16]*advertisement
}

// New builds an empty registry. ifaceCount and localRedund govern
// interlacing and outbound redundancy channel respectively; localNodeID
// stamps every publish's header.
func New(sender Sender, localNodeID uint8, localRedund uint8, ifaceCount int, repeatTimeout uint64) *Registry {
	return &Registry{
		sender:        sender,
		localNodeID:   localNodeID,
		localRedund:   localRedund,
		ifaceCount:    ifaceCount,
		repeatTimeout: repeatTimeout,
		subs:          make(map[uint16]*subscription),
		advs:          make(map[uint16]*advertisement),
	}
}

// Subscribe registers a callback for message id, with chanCount
// redundancy-channel cache slots (1..255).
func (r *Registry) Subscribe(id uint16, chanCount uint8, cb Callback, arg any) error {
	if chanCount == 0 {
		return fmt.Errorf("%w: redundancy channel count must be >= 1", canaserr.ErrArgument)
	}
	if message.Classify(id).IsService() || message.Classify(id) == message.Invalid {
		return fmt.Errorf("%w: id %d is not a parameter id", canaserr.ErrBadMessageID, id)
	}
	if _, exists := r.subs[id]; exists {
		return fmt.Errorf("%w: subscription for id %d", canaserr.ErrEntryExists, id)
	}
	r.subs[id] = &subscription{
		id:        id,
		chanCount: chanCount,
		cb:        cb,
		arg:       arg,
		cache:     make([]cacheSlot, chanCount),
	}
	return nil
}

// Unsubscribe removes the subscription for id.
func (r *Registry) Unsubscribe(id uint16) error {
	if _, ok := r.subs[id]; !ok {
		return fmt.Errorf("%w: subscription for id %d", canaserr.ErrNoSuchEntry, id)
	}
	delete(r.subs, id)
	return nil
}

// Read returns the last delivered message and timestamp on channel ch of
// id's subscription. A zero timestamp means "never received".
func (r *Registry) Read(id uint16, ch uint8) (message.Message, uint64, any, error) {
	sub, ok := r.subs[id]
	if !ok {
		return message.Message{}, 0, nil, fmt.Errorf("%w: subscription for id %d", canaserr.ErrNoSuchEntry, id)
	}
	if ch >= sub.chanCount {
		return message.Message{}, 0, nil, fmt.Errorf("%w: channel %d >= %d", canaserr.ErrBadRedundChan, ch, sub.chanCount)
	}
	slot := sub.cache[ch]
	return slot.m, slot.ts, sub.arg, nil
}

// Ingest processes one inbound parameter message, already classified by
// the router as belonging to id. It applies the repetition filter and
// invokes the subscription's callback on acceptance; malformed channel
// indices and messages with no matching subscription are dropped
// silently, per §4.C and §7 ("local recovery").
func (r *Registry) Ingest(id uint16, redund uint8, m message.Message, now uint64) {
	sub, ok := r.subs[id]
	if !ok {
		return
	}
	if redund >= sub.chanCount {
		return
	}
	slot := &sub.cache[redund]
	if slot.ts != 0 && (now-slot.ts) < r.repeatTimeout && message.DiffU8(m.MessageCode, slot.m.MessageCode) <= 0 {
		return
	}
	slot.ts = now
	slot.m = m
	if sub.cb != nil {
		sub.cb(sub.arg, redund, m, now)
	}
}

// Advertise registers id for publication. If ifaceCount < 2, an
// interlaced request is silently demoted to broadcast-on-all, per §4.C.
func (r *Registry) Advertise(id uint16, interlaced bool) error {
	if message.Classify(id).IsService() || message.Classify(id) == message.Invalid {
		return fmt.Errorf("%w: id %d is not a parameter id", canaserr.ErrBadMessageID, id)
	}
	if _, exists := r.advs[id]; exists {
		return fmt.Errorf("%w: advertisement for id %d", canaserr.ErrEntryExists, id)
	}
	if r.ifaceCount < 2 {
		interlaced = false
	}
	cursor := -1
	if interlaced {
		cursor = 0
	}
	r.advs[id] = &advertisement{id: id, interlaced: interlaced, cursor: cursor}
	return nil
}

// Publish allocates the advertisement's next message code, stamps the
// local node id, and sends data as parameter id. Interlaced
// advertisements walk the interface cursor one step per call; others
// broadcast to every configured interface.
func (r *Registry) Publish(id uint16, data message.Payload) error {
	adv, ok := r.advs[id]
	if !ok {
		return fmt.Errorf("%w: advertisement for id %d", canaserr.ErrNoSuchEntry, id)
	}
	m := message.Message{
		NodeID:      r.localNodeID,
		ServiceCode: 0,
		MessageCode: adv.code,
		Data:        data,
	}
	adv.code++

	var ifaces []int
	if adv.interlaced {
		ifaces = []int{adv.cursor}
		adv.cursor = (adv.cursor + 1) % r.ifaceCount
	}
	return r.sender.Send(id, r.localRedund, m, ifaces)
}
