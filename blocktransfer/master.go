package blocktransfer

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/mjs513/canaerospace/canaserr"
	"github.com/mjs513/canaerospace/message"
)

// DDSDownloadTo starts a DDS master session sending data to targetNode,
// chunked per §4.F. completion fires exactly once (invariant 6). The
// returned uuid identifies this session attempt for logging/correlation;
// it has no wire representation.
func (bt *BlockTransfer) DDSDownloadTo(now uint64, targetNode uint8, memID uint32, data []byte, completion CompletionFunc) (uuid.UUID, error) {
	if len(data) > maxBufferLen {
		return uuid.Nil, fmt.Errorf("%w: payload %d bytes exceeds %d", canaserr.ErrArgument, len(data), maxBufferLen)
	}
	if bt.findMaster(roleDDSMaster, targetNode) != nil {
		return uuid.Nil, fmt.Errorf("%w: DDS master session to node %d already active", canaserr.ErrEntryExists, targetNode)
	}
	chunkCount := uint8((len(data) + 3) / 4)
	if len(data) == 0 {
		chunkCount = 0
	}
	s, err := bt.allocSession(roleDDSMaster, targetNode)
	if err != nil {
		return uuid.Nil, err
	}
	s.memID = memID
	s.chunkCount = chunkCount
	s.buf = append([]byte(nil), data...)
	s.nextCode = 0
	s.state = stateSDRMPending
	s.lastUpdate = now
	s.completion = completion
	if err := bt.svc.SendRequest(bt.localServiceChannel, targetNode, message.Message{
		ServiceCode: DDSServiceCode, MessageCode: chunkCount, Data: message.NewMemID(memID),
	}); err != nil {
		bt.free(s)
		return uuid.Nil, err
	}
	return s.corrID, nil
}

func (bt *BlockTransfer) completeDDSMaster(s *session, status Status) {
	cb := s.completion
	bt.free(s)
	if cb != nil {
		cb(status, nil)
	}
}

func (bt *BlockTransfer) onDDSResponse(arg any, ch uint8, iface int, m message.Message, now uint64) {
	s := bt.findMaster(roleDDSMaster, m.NodeID)
	if s == nil {
		return
	}
	switch s.state {
	case stateSDRMPending:
		if m.Data.Type != message.LONG {
			bt.completeDDSMaster(s, StatusUnexpectedResponse)
			return
		}
		switch m.Data.Long() {
		case flowXON:
			s.state = stateTransmission
			s.lastUpdate = now
		case flowXOFF:
			s.state = stateXoff
			s.lastUpdate = now
		default:
			bt.completeDDSMaster(s, StatusRemoteError)
		}
	case stateXoff:
		if m.Data.Type == message.LONG && m.Data.Long() == flowXON {
			s.state = stateTransmission
			s.lastUpdate = now
		}
	case stateChecksum:
		if m.Data.Type != message.CHKSUM {
			bt.completeDDSMaster(s, StatusUnexpectedResponse)
			return
		}
		if m.Data.ChkSum() == s.checksum {
			bt.completeDDSMaster(s, StatusOk)
		} else {
			bt.completeDDSMaster(s, StatusChecksumError)
		}
	}
}

// DUSUploadFrom starts a DUS master session requesting an upload from
// targetNode, advertising expectedChunks in the request. The advertised
// count is advisory: the master accepts up to maxBufferLen (1020) bytes
// regardless of it. The returned uuid identifies
// this session attempt for logging/correlation; it has no wire
// representation.
func (bt *BlockTransfer) DUSUploadFrom(now uint64, targetNode uint8, memID uint32, expectedChunks uint8, completion CompletionFunc) (uuid.UUID, error) {
	if bt.findMaster(roleDUSMaster, targetNode) != nil {
		return uuid.Nil, fmt.Errorf("%w: DUS master session to node %d already active", canaserr.ErrEntryExists, targetNode)
	}
	s, err := bt.allocSession(roleDUSMaster, targetNode)
	if err != nil {
		return uuid.Nil, err
	}
	s.memID = memID
	s.chunkCount = expectedChunks
	s.buf = make([]byte, 0, maxBufferLen)
	s.nextCode = 0
	s.state = stateSURMPending
	s.lastUpdate = now
	s.completion = completion
	if err := bt.svc.SendRequest(bt.localServiceChannel, targetNode, message.Message{
		ServiceCode: DUSServiceCode, MessageCode: expectedChunks, Data: message.NewMemID(memID),
	}); err != nil {
		bt.free(s)
		return uuid.Nil, err
	}
	return s.corrID, nil
}

func (bt *BlockTransfer) completeDUSMaster(s *session, status Status) {
	cb := s.completion
	var data []byte
	if status == StatusOk {
		data = append([]byte(nil), s.buf...)
	}
	bt.free(s)
	if cb != nil {
		cb(status, data)
	}
}

func (bt *BlockTransfer) onDUSResponse(arg any, ch uint8, iface int, m message.Message, now uint64) {
	s := bt.findMaster(roleDUSMaster, m.NodeID)
	if s == nil {
		return
	}
	switch s.state {
	case stateSURMPending:
		if m.Data.Type != message.LONG {
			bt.completeDUSMaster(s, StatusUnexpectedResponse)
			return
		}
		if m.Data.Long() == flowXON {
			s.state = stateReception
			s.lastUpdate = now
		} else {
			bt.completeDUSMaster(s, StatusRemoteError)
		}
	case stateReception:
		if m.Data.Type == message.CHKSUM {
			if m.MessageCode != s.nextCode-1 {
				bt.completeDUSMaster(s, StatusUnexpectedResponse)
				return
			}
			if m.Data.ChkSum() == sumBytes(s.buf) {
				bt.completeDUSMaster(s, StatusOk)
			} else {
				bt.completeDUSMaster(s, StatusChecksumError)
			}
			return
		}
		chunk := chunkBytes(m.Data)
		if chunk == nil || m.MessageCode != s.nextCode || len(s.buf)+len(chunk) > maxBufferLen {
			bt.completeDUSMaster(s, StatusUnexpectedResponse)
			return
		}
		s.buf = append(s.buf, chunk...)
		s.nextCode++
		s.lastUpdate = now
	}
}
