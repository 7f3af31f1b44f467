// Package blocktransfer implements the Block Data Transfer subsystem
// (§4.F): DDS (Data Download Service, master→slave) and DUS (Data Upload
// Service, slave→master) state machines, with 4-byte chunking, a 32-bit
// checksum, and XON/XOFF flow control.
//
// The node-id/channel distinction of §4.F's session table collapses here
// to (role, peer node) for master sessions and (role) alone for slave
// sessions, because an instance's outbound service addressing always
// uses its single configured local service channel (§6) — there is only
// ever one channel to be a slave "on".
package blocktransfer

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/mjs513/canaerospace/canaserr"
	"github.com/mjs513/canaerospace/message"
	"github.com/mjs513/canaerospace/service"
)

// Service codes occupied by block transfer (§4.F).
const (
	DDSServiceCode = 2
	DUSServiceCode = 3
)

// maxBufferLen is the DUS master's 1020-byte advisory cap (§9, Open
// Questions: "preserve this behavior but document it"); applied
// symmetrically to DDS since a chunk count travels in a single byte
// (message_code), which bounds any transfer to 255*4 = 1020 bytes
// regardless of direction.
const maxBufferLen = 1020

// Flow-control / completion values carried in a LONG payload. Their
// concrete numeric assignment is a local convention — the protocol only
// requires that master and slave agree on them, which an embedding pair
// of instances built from this package does by construction.
const (
	flowXON   int32 = 0
	flowXOFF  int32 = 1
	flowAbort int32 = -1
)

// Status is the outcome delivered to a session's completion callback
// (§7, "session-level" error handling).
type Status int

const (
	StatusOk Status = iota
	StatusTimeout
	StatusLocalError
	StatusRemoteError
	StatusChecksumError
	StatusUnexpectedResponse
)

func (s Status) String() string {
	switch s {
	case StatusOk:
		return "ok"
	case StatusTimeout:
		return "timeout"
	case StatusLocalError:
		return "local-error"
	case StatusRemoteError:
		return "remote-error"
	case StatusChecksumError:
		return "checksum-error"
	case StatusUnexpectedResponse:
		return "unexpected-response"
	default:
		return "unknown"
	}
}

// CompletionFunc reports a finished master-role session. data is the
// received payload for DUS uploads and nil otherwise.
type CompletionFunc func(status Status, data []byte)

// DownloadDecision is the DDS slave's inbound-request disposition.
type DownloadDecision int

const (
	// DownloadAccept starts the session (XON).
	DownloadAccept DownloadDecision = iota
	// DownloadDefer is the application's XOFF. Per §4.F and §9 it is
	// silently promoted to XON — flow control here is transport-level,
	// not application-level — so this behaves identically to
	// DownloadAccept. It exists so the application's intent is visible
	// in its own code even though the wire behavior does not change.
	DownloadDefer
	// DownloadAbort rejects the session outright.
	DownloadAbort
)

// DownloadRequestFunc is invoked when an inbound SDRM starts a new DDS
// slave session.
type DownloadRequestFunc func(memID uint32, chunkCount uint8) DownloadDecision

// UploadRequestFunc is invoked when an inbound SURM starts a new DUS
// slave session; it returns the bytes to upload, or nil to abort.
type UploadRequestFunc func(memID uint32, expectedChunks uint8) []byte

type role int

const (
	roleNone role = iota
	roleDDSMaster
	roleDDSSlave
	roleDUSMaster
	roleDUSSlave
)

type sessionState int

const (
	stateSDRMPending sessionState = iota
	stateSURMPending
	stateTransmission
	stateReception
	stateChecksum
	stateXoff
	stateInitialDelay
)

type session struct {
	used       bool
	role       role
	peerNode   uint8
	memID      uint32
	chunkCount uint8
	nextCode   uint8
	buf        []byte
	state      sessionState
	lastUpdate uint64
	checksum   uint32
	completion CompletionFunc

	// corrID has no wire representation; it exists so a log line or a
	// completion callback can name one transfer attempt unambiguously
	// across retries, independent of the (role, peer) slot it occupies.
	corrID uuid.UUID
}

// Defaults holds the timing and capacity knobs §4.F leaves configurable,
// generalizing the original implementation's canasMakeConfig override
// pattern (§9, Global-style note) into one overridable struct.
type Defaults struct {
	// TxInterval paces chunk transmission (default 10ms).
	TxInterval uint64
	// SessionTimeout bounds xoff/checksum/reception waits (default 10s).
	SessionTimeout uint64
	// SDRMTimeout bounds the initial SDRM/SURM response wait. Fixed at
	// 100ms by specification; exposed for tests, not meant to be raised.
	SDRMTimeout uint64
	// InitialDelay is the DUS slave's fixed 10ms pre-transmission pause.
	InitialDelay uint64
	// MaxSessions bounds the session table.
	MaxSessions int
}

// DefaultDefaults returns §4.F's literal default timings.
func DefaultDefaults() Defaults {
	return Defaults{
		TxInterval:     10_000,
		SessionTimeout: 10_000_000,
		SDRMTimeout:    100_000,
		InitialDelay:   10_000,
		MaxSessions:    8,
	}
}

// BlockTransfer owns the session table and both master and slave state
// machines for DDS and DUS on one instance.
type BlockTransfer struct {
	svc                 *service.Registry
	localNodeID         uint8
	localServiceChannel uint8
	defaults            Defaults
	sessions            []session

	onDownloadRequest  DownloadRequestFunc
	onDownloadComplete func(memID uint32, data []byte)
	onUploadRequest    UploadRequestFunc
	onUploadComplete   func(memID uint32)
}

// New registers the DDS and DUS services and builds the session table.
// Any of the four callbacks may be nil if this node does not serve that
// role.
func New(
	svc *service.Registry, localNodeID, localServiceChannel uint8, defaults Defaults,
	onDownloadRequest DownloadRequestFunc, onDownloadComplete func(memID uint32, data []byte),
	onUploadRequest UploadRequestFunc, onUploadComplete func(memID uint32),
) (*BlockTransfer, error) {
	if defaults.MaxSessions <= 0 {
		defaults.MaxSessions = DefaultDefaults().MaxSessions
	}
	bt := &BlockTransfer{
		svc: svc, localNodeID: localNodeID, localServiceChannel: localServiceChannel,
		defaults: defaults, sessions: make([]session, defaults.MaxSessions),
		onDownloadRequest: onDownloadRequest, onDownloadComplete: onDownloadComplete,
		onUploadRequest: onUploadRequest, onUploadComplete: onUploadComplete,
	}
	if err := svc.Register(DDSServiceCode, bt.onDDSRequest, bt.onDDSResponse, bt.onPoll, nil); err != nil {
		return nil, err
	}
	if err := svc.Register(DUSServiceCode, bt.onDUSRequest, bt.onDUSResponse, nil, nil); err != nil {
		return nil, err
	}
	return bt, nil
}

func (bt *BlockTransfer) allocSession(r role, peerNode uint8) (*session, error) {
	for i := range bt.sessions {
		if !bt.sessions[i].used {
			bt.sessions[i] = session{used: true, role: r, peerNode: peerNode, corrID: uuid.New()}
			return &bt.sessions[i], nil
		}
	}
	return nil, fmt.Errorf("%w: no free block transfer session", canaserr.ErrQuotaExceeded)
}

func (bt *BlockTransfer) findMaster(r role, peerNode uint8) *session {
	for i := range bt.sessions {
		s := &bt.sessions[i]
		if s.used && s.role == r && s.peerNode == peerNode {
			return s
		}
	}
	return nil
}

func (bt *BlockTransfer) findSlave(r role) *session {
	for i := range bt.sessions {
		s := &bt.sessions[i]
		if s.used && s.role == r {
			return s
		}
	}
	return nil
}

func (bt *BlockTransfer) free(s *session) { *s = session{} }

func sumBytes(b []byte) uint32 {
	var sum uint32
	for _, v := range b {
		sum += uint32(v)
	}
	return sum
}

// buildChunk returns the idx'th 4-byte (or shorter, if final) chunk of
// buf as a UCHAR{,2,3,4} payload, per §4.F's chunking rule.
func buildChunk(buf []byte, idx, chunkCount int) message.Payload {
	offset := idx * 4
	if idx < chunkCount-1 {
		var b [4]byte
		copy(b[:], buf[offset:offset+4])
		return message.NewUChar4(b)
	}
	remaining := len(buf) - offset
	switch remaining {
	case 1:
		return message.NewUChar(buf[offset])
	case 2:
		return message.NewUChar2([2]byte{buf[offset], buf[offset+1]})
	case 3:
		return message.NewUChar3([3]byte{buf[offset], buf[offset+1], buf[offset+2]})
	default:
		var b [4]byte
		copy(b[:], buf[offset:offset+4])
		return message.NewUChar4(b)
	}
}

// chunkBytes is buildChunk's inverse: the raw bytes carried by a
// UCHAR{,2,3,4} payload, or nil if p is not a chunk payload.
func chunkBytes(p message.Payload) []byte {
	switch p.Type {
	case message.UCHAR:
		return []byte{p.UChar()}
	case message.UCHAR2:
		b := p.UChar2()
		return b[:]
	case message.UCHAR3:
		b := p.UChar3()
		return b[:]
	case message.UCHAR4:
		b := p.UChar4()
		return b[:]
	default:
		return nil
	}
}
