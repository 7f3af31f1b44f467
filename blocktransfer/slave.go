package blocktransfer

import "github.com/mjs513/canaerospace/message"

func (bt *BlockTransfer) respondDDS(code uint8, v int32) {
	_ = bt.svc.SendResponse(bt.localServiceChannel, message.Message{
		NodeID: bt.localNodeID, ServiceCode: DDSServiceCode, MessageCode: code, Data: message.NewLong(v),
	})
}

func (bt *BlockTransfer) respondDUS(code uint8, v int32) {
	_ = bt.svc.SendResponse(bt.localServiceChannel, message.Message{
		NodeID: bt.localNodeID, ServiceCode: DUSServiceCode, MessageCode: code, Data: message.NewLong(v),
	})
}

// onDDSRequest handles an inbound SDRM (new session) or a subsequent
// data chunk (ongoing session), per §4.F "DDS slave".
func (bt *BlockTransfer) onDDSRequest(arg any, ch uint8, iface int, m message.Message, now uint64) {
	s := bt.findSlave(roleDDSSlave)
	if s == nil {
		if m.Data.Type != message.MEMID {
			return
		}
		memID := m.Data.MemID()
		chunkCount := m.MessageCode

		decision := DownloadAccept
		if bt.onDownloadRequest != nil {
			decision = bt.onDownloadRequest(memID, chunkCount)
		}
		if decision == DownloadAbort {
			bt.respondDDS(m.MessageCode, flowAbort)
			return
		}

		ns, err := bt.allocSession(roleDDSSlave, 0)
		if err != nil {
			bt.respondDDS(m.MessageCode, flowAbort)
			return
		}
		ns.memID = memID
		ns.chunkCount = chunkCount
		ns.buf = make([]byte, 0, int(chunkCount)*4)
		ns.nextCode = 0
		ns.state = stateReception
		ns.lastUpdate = now
		bt.respondDDS(m.MessageCode, flowXON)
		return
	}

	if m.MessageCode != s.nextCode {
		return
	}
	chunk := chunkBytes(m.Data)
	if len(chunk) == 0 {
		return
	}
	s.buf = append(s.buf, chunk...)
	s.nextCode++
	s.lastUpdate = now

	if int(s.nextCode) >= int(s.chunkCount) {
		memID := s.memID
		data := append([]byte(nil), s.buf...)
		checksum := sumBytes(s.buf)
		finalCode := s.nextCode
		bt.free(s)
		_ = bt.svc.SendResponse(bt.localServiceChannel, message.Message{
			NodeID: bt.localNodeID, ServiceCode: DDSServiceCode, MessageCode: finalCode, Data: message.NewChkSum(checksum),
		})
		if bt.onDownloadComplete != nil {
			bt.onDownloadComplete(memID, data)
		}
	}
}

// onDUSRequest handles an inbound SURM starting a new upload session
// (§4.F "DUS slave"). Subsequent chunk transmission is driven from
// onPoll, not from further inbound requests.
func (bt *BlockTransfer) onDUSRequest(arg any, ch uint8, iface int, m message.Message, now uint64) {
	if bt.findSlave(roleDUSSlave) != nil {
		return
	}
	if m.Data.Type != message.MEMID {
		return
	}
	memID := m.Data.MemID()
	expected := m.MessageCode

	var data []byte
	if bt.onUploadRequest != nil {
		data = bt.onUploadRequest(memID, expected)
	}
	if data == nil {
		bt.respondDUS(m.MessageCode, flowAbort)
		return
	}
	if len(data) > maxBufferLen {
		data = data[:maxBufferLen]
	}

	s, err := bt.allocSession(roleDUSSlave, 0)
	if err != nil {
		bt.respondDUS(m.MessageCode, flowAbort)
		return
	}
	s.memID = memID
	s.buf = data
	s.chunkCount = uint8((len(data) + 3) / 4)
	if len(data) == 0 {
		s.chunkCount = 0
	}
	s.nextCode = 0
	s.state = stateInitialDelay
	s.lastUpdate = now
	bt.respondDUS(m.MessageCode, flowXON)
}
