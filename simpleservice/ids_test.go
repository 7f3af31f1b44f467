package simpleservice

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mjs513/canaerospace/message"
	"github.com/mjs513/canaerospace/service"
)

type fakeSender struct {
	sent []message.Message
}

func (f *fakeSender) Send(msgID uint16, redund uint8, m message.Message, ifaces []int) error {
	f.sent = append(f.sent, m)
	return nil
}

// Scenario E: IDS broadcast (§8). Capacity is exactly IDSForeignNodes so
// Broadcast only ever succeeds with every slot pre-allocated; a handful
// of nodes answer, the rest time out.
func TestScenarioE_IDSBroadcast(t *testing.T) {
	sender := &fakeSender{}
	svc := service.New(sender, 1, 0, service.DefaultHistLen, 30_000_000)
	ids, err := NewIDS(svc, 1, 0, 1000, IDSForeignNodes, nil)
	require.NoError(t, err)

	type result struct {
		nodeID uint8
		info   *IDSInfo
	}
	var results []result
	cb := IDSCallback(func(nodeID uint8, info *IDSInfo) {
		results = append(results, result{nodeID, info})
	})

	require.NoError(t, ids.Broadcast(cb, 0))
	assert.Equal(t, 254, IDSForeignNodes)
	assert.Equal(t, 0, ids.freeSlots(), "every foreign node id has a pre-allocated slot")

	respond := func(nodeID uint8) {
		svc.Ingest(0, service.Response, 0, message.Message{
			NodeID: nodeID, ServiceCode: IDSServiceCode,
			Data: message.NewUChar4([4]byte{1, 2, 3, 4}),
		}, 10)
	}
	respond(2)
	respond(3)
	respond(255)
	require.Len(t, results, 3)
	for _, r := range results {
		require.NotNil(t, r.info)
		assert.Equal(t, IDSInfo{1, 2, 3, 4}, *r.info)
	}

	svc.Poll(1000) // every still-pending slot's deadline (0+1000) has passed
	assert.Len(t, results, 3+IDSForeignNodes-3)
	for _, r := range results[3:] {
		assert.Nil(t, r.info, "a non-responding node's callback fires with a nil payload")
	}
	assert.Equal(t, IDSForeignNodes, ids.freeSlots(), "every slot is freed after poll")
}

func TestIDSRequestFailsWhenCapacityExhausted(t *testing.T) {
	sender := &fakeSender{}
	svc := service.New(sender, 1, 0, service.DefaultHistLen, 1000)
	ids, err := NewIDS(svc, 1, 0, 1000, 1, nil)
	require.NoError(t, err)

	require.NoError(t, ids.Request(2, nil, 0))
	err = ids.Request(3, nil, 0)
	assert.Error(t, err)
}

func TestIDSServerRespondsWithConfiguredInfo(t *testing.T) {
	sender := &fakeSender{}
	svc := service.New(sender, 9, 0, service.DefaultHistLen, 1000)
	info := IDSInfo{HardwareRevision: 7, SoftwareRevision: 3, IDDistribution: 1, HeaderType: 2}
	_, err := NewIDS(svc, 9, 0, 1000, 1, func() IDSInfo { return info })
	require.NoError(t, err)

	svc.Ingest(0, service.Request, 0, message.Message{NodeID: message.BroadcastNodeID, ServiceCode: IDSServiceCode, MessageCode: 5}, 1)
	require.Len(t, sender.sent, 1)
	resp := sender.sent[0]
	assert.EqualValues(t, 9, resp.NodeID)
	assert.EqualValues(t, 5, resp.MessageCode)
	b := resp.Data.UChar4()
	assert.Equal(t, [4]byte{7, 3, 1, 2}, b)
}
