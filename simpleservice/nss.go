package simpleservice

import (
	"github.com/mjs513/canaerospace/message"
	"github.com/mjs513/canaerospace/service"
)

// NSSServiceCode is the Node Synchronization service's code.
const NSSServiceCode = 1

// NSSCallback delivers a synchronization broadcast's timestamp.
type NSSCallback func(nodeID uint8, timestamp uint32)

// NSS implements Node Synchronization: a stateless fire-and-forget
// broadcast carrying a 32-bit timestamp (§4.G). It has no client/server
// distinction — any node may Publish and any node may receive.
type NSS struct {
	svc                 *service.Registry
	localServiceChannel uint8
	cb                  NSSCallback
}

// NewNSS registers the Node Synchronization service. localServiceChannel
// is this node's own configured service channel (§4.E). cb may be nil if
// this node does not care about incoming sync broadcasts.
func NewNSS(svc *service.Registry, localServiceChannel uint8, cb NSSCallback) (*NSS, error) {
	n := &NSS{svc: svc, localServiceChannel: localServiceChannel, cb: cb}
	if err := svc.Register(NSSServiceCode, n.onRequest, nil, nil, nil); err != nil {
		return nil, err
	}
	return n, nil
}

// Publish broadcasts timestamp to every node.
func (n *NSS) Publish(timestamp uint32) error {
	return n.svc.SendRequest(n.localServiceChannel, message.BroadcastNodeID, message.Message{
		ServiceCode: NSSServiceCode,
		MessageCode: 0,
		Data:        message.NewULong(timestamp),
	})
}

func (n *NSS) onRequest(arg any, ch uint8, iface int, m message.Message, now uint64) {
	if m.Data.Type != message.ULONG || m.MessageCode != 0 {
		return
	}
	if n.cb != nil {
		n.cb(m.NodeID, m.Data.ULong())
	}
}
