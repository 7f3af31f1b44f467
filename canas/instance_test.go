package canas

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mjs513/canaerospace/frame"
	"github.com/mjs513/canaerospace/message"
)

type fakeDriver struct {
	now  uint64
	sent []frame.Frame
}

func (d *fakeDriver) Send(iface int, f frame.Frame) int {
	d.sent = append(d.sent, f)
	return 1
}

func (d *fakeDriver) Filter(iface int, ids []uint16) error { return nil }

func (d *fakeDriver) Timestamp() uint64 { return d.now }

func newTestInstance(t *testing.T, driver *fakeDriver) *Instance {
	t.Helper()
	cfg := Config{NodeID: 1, IfaceCount: 2}
	inst, err := New(cfg, driver, nil, nil)
	require.NoError(t, err)
	return inst
}

func TestNewRejectsNilDriver(t *testing.T) {
	cfg := Config{NodeID: 1}
	_, err := New(cfg, nil, nil, nil)
	assert.Error(t, err)
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	_, err := New(Config{}, &fakeDriver{}, nil, nil)
	assert.Error(t, err)
}

// Invariant: the hook fires on every accepted frame, including ones the
// parameter pipeline itself ultimately drops as a within-timeout repeat.
func TestUpdateInvokesHookOnEveryAcceptedFrameIncludingDuplicates(t *testing.T) {
	driver := &fakeDriver{now: 1}
	inst := newTestInstance(t, driver)

	var hookCalls int
	inst2, err := New(inst.cfg, driver, func(iface int, msgID uint16, redund uint8, m message.Message) { hookCalls++ }, nil)
	require.NoError(t, err)

	require.NoError(t, inst2.Params.Subscribe(300, 1, func(any, uint8, message.Message, uint64) {}, nil))

	f, err := frame.Encode(300, 0, message.Message{NodeID: 1, Data: message.NewUShort(1)})
	require.NoError(t, err)

	require.NoError(t, inst2.Update(&f, 0))
	driver.now = 2
	require.NoError(t, inst2.Update(&f, 0)) // within repeat timeout, dropped by param pipeline
	assert.Equal(t, 2, hookCalls, "the hook runs regardless of what the pipeline does with the frame")
}

func TestUpdateRoutesParameterGroupToParamsAndServiceGroupToServices(t *testing.T) {
	driver := &fakeDriver{now: 1}
	inst := newTestInstance(t, driver)

	var paramCalls, reqCalls int
	require.NoError(t, inst.Params.Subscribe(300, 1, func(any, uint8, message.Message, uint64) { paramCalls++ }, nil))
	require.NoError(t, inst.Services.Register(5, func(any, uint8, int, message.Message, uint64) { reqCalls++ }, nil, nil, nil))

	pf, err := frame.Encode(300, 0, message.Message{NodeID: 1, Data: message.NewUShort(1)})
	require.NoError(t, err)
	require.NoError(t, inst.Update(&pf, 0))
	assert.Equal(t, 1, paramCalls)
	assert.Equal(t, 0, reqCalls)

	sf, err := frame.Encode(128, 0, message.Message{NodeID: 1, ServiceCode: 5})
	require.NoError(t, err)
	require.NoError(t, inst.Update(&sf, 0))
	assert.Equal(t, 1, reqCalls)
}

func TestUpdateRejectsMessageIDOutsideEveryRange(t *testing.T) {
	driver := &fakeDriver{now: 1}
	inst := newTestInstance(t, driver)

	f, err := frame.Encode(2032, 0, message.Message{NodeID: 1, Data: message.NewUShort(1)})
	require.NoError(t, err)
	err = inst.Update(&f, 0)
	assert.Error(t, err)
}

func TestUpdateGatesServicePollByInterval(t *testing.T) {
	driver := &fakeDriver{now: 0}
	inst := newTestInstance(t, driver)

	var polls int
	require.NoError(t, inst.Services.Register(5, nil, nil, func(any, uint64) { polls++ }, nil))

	driver.now = inst.cfg.ServicePollInterval
	require.NoError(t, inst.Update(nil, 0))
	assert.Equal(t, 1, polls, "a tick one full interval past zero polls, since lastServicePoll starts at zero")

	driver.now = inst.cfg.ServicePollInterval + inst.cfg.ServicePollInterval/2
	require.NoError(t, inst.Update(nil, 0))
	assert.Equal(t, 1, polls, "too soon since the last poll")

	driver.now = 2*inst.cfg.ServicePollInterval + 1
	require.NoError(t, inst.Update(nil, 0))
	assert.Equal(t, 2, polls)
}

func TestSendFansOutToEveryConfiguredIfaceAndFailsIfNoneAccept(t *testing.T) {
	driver := &fakeDriver{now: 1}
	inst := newTestInstance(t, driver)

	require.NoError(t, inst.Send(300, 0, message.Message{NodeID: 1, Data: message.NewUShort(7)}, nil))
	assert.Len(t, driver.sent, inst.cfg.IfaceCount)

	assert.Error(t, inst.Send(300, 0, message.Message{NodeID: 1, Data: message.NewUShort(7)}, []int{5}), "no interface accepted the frame")
}

func TestUpdateRejectsOutOfRangeIface(t *testing.T) {
	driver := &fakeDriver{now: 1}
	inst := newTestInstance(t, driver)

	f, err := frame.Encode(300, 0, message.Message{NodeID: 1, Data: message.NewUShort(1)})
	require.NoError(t, err)
	err = inst.Update(&f, 5)
	assert.Error(t, err)
}
