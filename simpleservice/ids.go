// Package simpleservice implements the three simple node services built
// directly on the service registry (§4.G): Identification (IDS), Flash
// Programming (FPS), and Node Synchronization (NSS).
package simpleservice

import (
	"fmt"

	"github.com/mjs513/canaerospace/canaserr"
	"github.com/mjs513/canaerospace/message"
	"github.com/mjs513/canaerospace/service"
)

// IDSServiceCode is the Identification service's code.
const IDSServiceCode = 0

// IDSForeignNodes is (MAX_NODES - 1): every node id but the local one.
const IDSForeignNodes = 254

// IDSInfo is the 4-byte identification payload.
type IDSInfo struct {
	HardwareRevision byte
	SoftwareRevision byte
	IDDistribution   byte
	HeaderType       byte
}

// IDSCallback receives a matching response (info non-nil) or a timeout
// signal (info nil) for the given node id.
type IDSCallback func(nodeID uint8, info *IDSInfo)

type idsPending struct {
	used     bool
	nodeID   uint8
	deadline uint64
	cb       IDSCallback
}

// IDS implements both the client (request/broadcast) and server
// (respond-to-any-request) roles of the Identification service.
type IDS struct {
	svc                 *service.Registry
	localNodeID         uint8
	localServiceChannel uint8
	timeout             uint64
	serverInfo          func() IDSInfo
	pending             []idsPending
}

// NewIDS registers the Identification service. localServiceChannel is
// this node's own configured service channel (§4.E) — the channel a
// response must arrive on to be accepted, independent of IDSServiceCode.
// capacity bounds the number of concurrently outstanding client
// requests; it must be >= IDSForeignNodes for Broadcast to ever succeed.
// serverInfo may be nil if this node does not answer identification
// requests.
func NewIDS(svc *service.Registry, localNodeID, localServiceChannel uint8, timeout uint64, capacity int, serverInfo func() IDSInfo) (*IDS, error) {
	s := &IDS{
		svc:                 svc,
		localNodeID:         localNodeID,
		localServiceChannel: localServiceChannel,
		timeout:             timeout,
		serverInfo:          serverInfo,
		pending:             make([]idsPending, capacity),
	}
	if err := svc.Register(IDSServiceCode, s.onRequest, s.onResponse, s.onPoll, nil); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *IDS) freeSlots() int {
	n := 0
	for i := range s.pending {
		if !s.pending[i].used {
			n++
		}
	}
	return n
}

func (s *IDS) alloc(nodeID uint8, deadline uint64, cb IDSCallback) error {
	for i := range s.pending {
		if !s.pending[i].used {
			s.pending[i] = idsPending{used: true, nodeID: nodeID, deadline: deadline, cb: cb}
			return nil
		}
	}
	return fmt.Errorf("%w: no free identification pending slot", canaserr.ErrQuotaExceeded)
}

// Request issues a unicast identification request to targetNode.
func (s *IDS) Request(targetNode uint8, cb IDSCallback, now uint64) error {
	if err := s.alloc(targetNode, now+s.timeout, cb); err != nil {
		return err
	}
	return s.svc.SendRequest(s.localServiceChannel, targetNode, message.Message{ServiceCode: IDSServiceCode, Data: message.NoData()})
}

// Broadcast issues a broadcast identification request, pre-allocating
// one pending slot per non-local node id (1..255). It fails with
// ErrQuotaExceeded unless at least IDSForeignNodes slots are free.
func (s *IDS) Broadcast(cb IDSCallback, now uint64) error {
	if s.freeSlots() < IDSForeignNodes {
		return fmt.Errorf("%w: need %d free pending slots", canaserr.ErrQuotaExceeded, IDSForeignNodes)
	}
	deadline := now + s.timeout
	for node := 1; node <= 255; node++ {
		if uint8(node) == s.localNodeID {
			continue
		}
		_ = s.alloc(uint8(node), deadline, cb)
	}
	return s.svc.SendRequest(s.localServiceChannel, message.BroadcastNodeID, message.Message{ServiceCode: IDSServiceCode, Data: message.NoData()})
}

func (s *IDS) onRequest(arg any, ch uint8, iface int, m message.Message, now uint64) {
	if s.serverInfo == nil {
		return
	}
	info := s.serverInfo()
	resp := message.Message{
		NodeID:      s.localNodeID,
		ServiceCode: IDSServiceCode,
		MessageCode: m.MessageCode,
		Data:        message.NewUChar4([4]byte{info.HardwareRevision, info.SoftwareRevision, info.IDDistribution, info.HeaderType}),
	}
	_ = s.svc.SendResponse(ch, resp)
}

func (s *IDS) onResponse(arg any, ch uint8, iface int, m message.Message, now uint64) {
	for i := range s.pending {
		p := &s.pending[i]
		if p.used && p.nodeID == m.NodeID {
			b := m.Data.UChar4()
			info := IDSInfo{b[0], b[1], b[2], b[3]}
			cb := p.cb
			*p = idsPending{}
			if cb != nil {
				cb(m.NodeID, &info)
			}
			return
		}
	}
}

func (s *IDS) onPoll(arg any, now uint64) {
	for i := range s.pending {
		p := &s.pending[i]
		if p.used && now >= p.deadline {
			cb := p.cb
			nodeID := p.nodeID
			*p = idsPending{}
			if cb != nil {
				cb(nodeID, nil)
			}
		}
	}
}
