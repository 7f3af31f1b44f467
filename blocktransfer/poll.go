package blocktransfer

import "github.com/mjs513/canaerospace/message"

// onPoll drives every session's time-based transitions: chunk pacing,
// the fixed SDRM/SURM and initial-delay waits, and session/xoff/checksum
// timeouts (§4.F, §5).
func (bt *BlockTransfer) onPoll(arg any, now uint64) {
	for i := range bt.sessions {
		s := &bt.sessions[i]
		if !s.used {
			continue
		}
		switch s.role {
		case roleDDSMaster:
			bt.pollDDSMaster(s, now)
		case roleDDSSlave:
			bt.pollDDSSlave(s, now)
		case roleDUSMaster:
			bt.pollDUSMaster(s, now)
		case roleDUSSlave:
			bt.pollDUSSlave(s, now)
		}
	}
}

func (bt *BlockTransfer) pollDDSMaster(s *session, now uint64) {
	switch s.state {
	case stateSDRMPending:
		if now-s.lastUpdate > bt.defaults.SDRMTimeout {
			bt.completeDDSMaster(s, StatusTimeout)
		}
	case stateTransmission:
		if s.chunkCount == 0 {
			s.state = stateChecksum
			s.lastUpdate = now
			return
		}
		if now-s.lastUpdate >= bt.defaults.TxInterval {
			idx := int(s.nextCode)
			payload := buildChunk(s.buf, idx, int(s.chunkCount))
			_ = bt.svc.SendRequest(bt.localServiceChannel, s.peerNode, message.Message{
				ServiceCode: DDSServiceCode, MessageCode: s.nextCode, Data: payload,
			})
			s.checksum += sumBytes(chunkBytes(payload))
			s.nextCode++
			s.lastUpdate = now
			if int(s.nextCode) >= int(s.chunkCount) {
				s.state = stateChecksum
			}
		}
	case stateXoff, stateChecksum:
		if now-s.lastUpdate > bt.defaults.SessionTimeout {
			bt.completeDDSMaster(s, StatusTimeout)
		}
	}
}

func (bt *BlockTransfer) pollDDSSlave(s *session, now uint64) {
	if now-s.lastUpdate > bt.defaults.SessionTimeout {
		bt.free(s)
	}
}

func (bt *BlockTransfer) pollDUSMaster(s *session, now uint64) {
	switch s.state {
	case stateSURMPending:
		if now-s.lastUpdate > bt.defaults.SDRMTimeout {
			bt.completeDUSMaster(s, StatusTimeout)
		}
	case stateReception:
		if now-s.lastUpdate > bt.defaults.SessionTimeout {
			bt.completeDUSMaster(s, StatusTimeout)
		}
	}
}

func (bt *BlockTransfer) pollDUSSlave(s *session, now uint64) {
	switch s.state {
	case stateInitialDelay:
		if s.chunkCount == 0 {
			bt.finishDUSSlave(s)
			return
		}
		if now-s.lastUpdate >= bt.defaults.InitialDelay {
			s.state = stateTransmission
			s.lastUpdate = now
		}
	case stateTransmission:
		if now-s.lastUpdate >= bt.defaults.TxInterval {
			idx := int(s.nextCode)
			payload := buildChunk(s.buf, idx, int(s.chunkCount))
			_ = bt.svc.SendResponse(bt.localServiceChannel, message.Message{
				NodeID: bt.localNodeID, ServiceCode: DUSServiceCode, MessageCode: s.nextCode, Data: payload,
			})
			s.checksum += sumBytes(chunkBytes(payload))
			s.nextCode++
			s.lastUpdate = now
			if int(s.nextCode) >= int(s.chunkCount) {
				bt.finishDUSSlave(s)
			}
		}
	}
}

func (bt *BlockTransfer) finishDUSSlave(s *session) {
	memID := s.memID
	checksum := s.checksum
	finalCode := s.nextCode - 1 // the last chunk's code, matching the master's stateReception check
	bt.free(s)
	_ = bt.svc.SendResponse(bt.localServiceChannel, message.Message{
		NodeID: bt.localNodeID, ServiceCode: DUSServiceCode, MessageCode: finalCode, Data: message.NewChkSum(checksum),
	})
	if bt.onUploadComplete != nil {
		bt.onUploadComplete(memID)
	}
}
