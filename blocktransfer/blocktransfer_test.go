package blocktransfer

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mjs513/canaerospace/message"
	"github.com/mjs513/canaerospace/service"
)

type delivery struct {
	ch  uint8
	dir service.Direction
	m   message.Message
}

// link queues one node's outbound sends rather than delivering them
// inline, so a response can only ever be observed on a later network
// tick — matching real transport, where SendRequest only enqueues a
// frame and the peer's reply arrives on a subsequent Update().
type link struct {
	queue []delivery
}

func (l *link) Send(msgID uint16, redund uint8, m message.Message, ifaces []int) error {
	ch, dir, err := service.MsgIDToChannel(msgID)
	if err != nil {
		return err
	}
	l.queue = append(l.queue, delivery{ch, dir, m})
	return nil
}

// harness wires two nodes' service registries back to back on the same
// service channel, as required of any node pair under §4.E's single
// local_service_channel addressing rule.
type harness struct {
	linkA, linkB *link
	svcA, svcB   *service.Registry
}

func newHarness(nodeA, nodeB, channel uint8) *harness {
	h := &harness{linkA: &link{}, linkB: &link{}}
	h.svcA = service.New(h.linkA, nodeA, channel, service.DefaultHistLen, 10_000_000)
	h.svcB = service.New(h.linkB, nodeB, channel, service.DefaultHistLen, 10_000_000)
	return h
}

// tick delivers every frame queued by either side, including whatever
// new frames that delivery itself produces, until both queues drain.
func (h *harness) tick(now uint64) {
	for {
		progressed := false
		if len(h.linkA.queue) > 0 {
			q := h.linkA.queue
			h.linkA.queue = nil
			for _, d := range q {
				h.svcB.Ingest(d.ch, d.dir, 0, d.m, now)
			}
			progressed = true
		}
		if len(h.linkB.queue) > 0 {
			q := h.linkB.queue
			h.linkB.queue = nil
			for _, d := range q {
				h.svcA.Ingest(d.ch, d.dir, 0, d.m, now)
			}
			progressed = true
		}
		if !progressed {
			return
		}
	}
}

// Scenario D: DDS end-to-end (§8). 18 bytes chunk into ceil(18/4)=5
// pieces, the last one a 2-byte UCHAR2; the slave's checksum is the sum
// of all 18 payload bytes.
func TestScenarioD_DDSEndToEnd(t *testing.T) {
	h := newHarness(1, 2, 0)
	var now uint64

	var completed []struct {
		status Status
		data   []byte
	}
	master, err := New(h.svcA, 1, 0, DefaultDefaults(), nil, nil, nil, nil)
	require.NoError(t, err)

	var downloaded []byte
	var downloadedMemID uint32
	_, err = New(h.svcB, 2, 0, DefaultDefaults(),
		func(memID uint32, chunkCount uint8) DownloadDecision { return DownloadAccept },
		func(memID uint32, data []byte) { downloadedMemID, downloaded = memID, data },
		nil, nil)
	require.NoError(t, err)

	data := make([]byte, 18)
	for i := range data {
		data[i] = byte(i + 1)
	}

	corrID, err := master.DDSDownloadTo(now, 2, 0xdeadbeef, data, func(status Status, d []byte) {
		completed = append(completed, struct {
			status Status
			data   []byte
		}{status, d})
	})
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, corrID)

	h.tick(now) // SDRM out, XON back: master moves SDRMPending -> Transmission

	for i := 0; i < 5; i++ {
		now += DefaultDefaults().TxInterval
		master.onPoll(nil, now)
		h.tick(now)
	}

	require.Len(t, completed, 1)
	assert.Equal(t, StatusOk, completed[0].status)
	assert.Equal(t, data, downloaded)
	assert.Equal(t, uint32(0xdeadbeef), downloadedMemID)
}

func TestDDSDownloadRejectsOversizedPayload(t *testing.T) {
	h := newHarness(1, 2, 0)
	master, err := New(h.svcA, 1, 0, DefaultDefaults(), nil, nil, nil, nil)
	require.NoError(t, err)

	_, err = master.DDSDownloadTo(0, 2, 1, make([]byte, maxBufferLen+1), nil)
	assert.Error(t, err)
}

func TestDDSDownloadRejectsDuplicateSessionToSamePeer(t *testing.T) {
	h := newHarness(1, 2, 0)
	master, err := New(h.svcA, 1, 0, DefaultDefaults(), nil, nil, nil, nil)
	require.NoError(t, err)
	_, err = New(h.svcB, 2, 0, DefaultDefaults(),
		func(uint32, uint8) DownloadDecision { return DownloadAccept }, nil, nil, nil)
	require.NoError(t, err)

	_, err = master.DDSDownloadTo(0, 2, 1, []byte{1, 2, 3, 4}, nil)
	require.NoError(t, err)

	_, err = master.DDSDownloadTo(0, 2, 2, []byte{5, 6, 7, 8}, nil)
	assert.Error(t, err)
}

func TestDDSSlaveAbortsWhenApplicationRejects(t *testing.T) {
	h := newHarness(1, 2, 0)
	var status Status
	master, err := New(h.svcA, 1, 0, DefaultDefaults(), nil, nil, nil, nil)
	require.NoError(t, err)
	_, err = New(h.svcB, 2, 0, DefaultDefaults(),
		func(uint32, uint8) DownloadDecision { return DownloadAbort }, nil, nil, nil)
	require.NoError(t, err)

	_, err = master.DDSDownloadTo(0, 2, 1, []byte{1, 2, 3, 4}, func(s Status, d []byte) { status = s })
	require.NoError(t, err)

	h.tick(0)
	assert.Equal(t, StatusRemoteError, status)
}

func TestDDSMasterSDRMTimeout(t *testing.T) {
	h := newHarness(1, 2, 0)
	// no slave registered, so the SDRM never gets a response
	master, err := New(h.svcA, 1, 0, DefaultDefaults(), nil, nil, nil, nil)
	require.NoError(t, err)

	var status Status
	_, err = master.DDSDownloadTo(0, 2, 1, []byte{1, 2, 3, 4}, func(s Status, d []byte) { status = s })
	require.NoError(t, err)

	now := DefaultDefaults().SDRMTimeout + 1
	master.onPoll(nil, now)
	assert.Equal(t, StatusTimeout, status)
}

// DUS end-to-end: master requests an upload, slave answers with data
// chunked the same way as DDS, and the master's checksum must match the
// slave's.
func TestDUSEndToEnd(t *testing.T) {
	h := newHarness(1, 2, 0)
	var now uint64

	data := []byte{10, 20, 30, 40, 50, 60, 70}
	master, err := New(h.svcA, 1, 0, DefaultDefaults(), nil, nil, nil, nil)
	require.NoError(t, err)
	slave, err := New(h.svcB, 2, 0, DefaultDefaults(), nil, nil,
		func(memID uint32, expectedChunks uint8) []byte { return data }, nil)
	require.NoError(t, err)

	var completed []struct {
		status Status
		data   []byte
	}
	_, err = master.DUSUploadFrom(now, 2, 0xcafef00d, uint8((len(data)+3)/4), func(status Status, d []byte) {
		completed = append(completed, struct {
			status Status
			data   []byte
		}{status, d})
	})
	require.NoError(t, err)

	h.tick(now) // SURM out, XON back: master moves SURMPending -> Reception

	now += DefaultDefaults().InitialDelay
	slave.onPoll(nil, now)
	h.tick(now)
	for i := 0; i < 2; i++ {
		now += DefaultDefaults().TxInterval
		slave.onPoll(nil, now)
		h.tick(now)
	}

	require.Len(t, completed, 1)
	assert.Equal(t, StatusOk, completed[0].status)
	assert.Equal(t, data, completed[0].data)
}
