package simpleservice

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mjs513/canaerospace/message"
	"github.com/mjs513/canaerospace/service"
)

// Scenario F: FPS quota (§8). At most one outstanding client request is
// allowed; a second Request while one is pending is rejected, the first
// still resolves normally, and a request issued afterward can time out.
func TestScenarioF_FPSQuota(t *testing.T) {
	sender := &fakeSender{}
	svc := service.New(sender, 1, 0, service.DefaultHistLen, 1000)
	fps, err := NewFPS(svc, 1, 0, 1000, nil)
	require.NoError(t, err)

	var results []struct {
		result   FPSResult
		timedOut bool
	}
	cb := FPSCallback(func(result FPSResult, timedOut bool) {
		results = append(results, struct {
			result   FPSResult
			timedOut bool
		}{result, timedOut})
	})

	require.NoError(t, fps.Request(2, 0x5A, cb, 0))

	err = fps.Request(3, 0x5A, cb, 0)
	assert.Error(t, err, "a second request while one is outstanding must be rejected")

	svc.Ingest(0, service.Response, 0, message.Message{
		NodeID: 2, ServiceCode: FPSServiceCode, MessageCode: uint8(FPSOk),
	}, 5)
	require.Len(t, results, 1)
	assert.Equal(t, FPSOk, results[0].result)
	assert.False(t, results[0].timedOut)

	require.NoError(t, fps.Request(2, 0x5A, cb, 10_000))
	svc.Poll(10_000 + 10_000) // now >= deadline (10_000 + timeout 1000)
	require.Len(t, results, 2)
	assert.True(t, results[1].timedOut)
}

func TestFPSRequestRejectsBroadcastTarget(t *testing.T) {
	sender := &fakeSender{}
	svc := service.New(sender, 1, 0, service.DefaultHistLen, 1000)
	fps, err := NewFPS(svc, 1, 0, 1000, nil)
	require.NoError(t, err)

	err = fps.Request(message.BroadcastNodeID, 0, nil, 0)
	assert.Error(t, err)
}

// A broadcast-addressed request is a legitimate inbound request (the
// registry's own addressing filter already permits node_id in {local,
// broadcast}) and must still reach the server handler.
func TestFPSServerRespondsToBroadcastAddressedRequest(t *testing.T) {
	sender := &fakeSender{}
	svc := service.New(sender, 9, 0, service.DefaultHistLen, 1000)
	var gotCode uint8
	_, err := NewFPS(svc, 9, 0, 1000, func(securityCode uint8) FPSResult {
		gotCode = securityCode
		return FPSOk
	})
	require.NoError(t, err)

	svc.Ingest(0, service.Request, 0, message.Message{
		NodeID: message.BroadcastNodeID, ServiceCode: FPSServiceCode, MessageCode: 0x5A,
	}, 1)
	require.Len(t, sender.sent, 1, "a broadcast-addressed request must still reach the handler")
	assert.Equal(t, uint8(0x5A), gotCode)
	assert.EqualValues(t, FPSOk, sender.sent[0].MessageCode)
}

func TestFPSServerAppliesHandlerResult(t *testing.T) {
	sender := &fakeSender{}
	svc := service.New(sender, 9, 0, service.DefaultHistLen, 1000)
	var gotCode uint8
	_, err := NewFPS(svc, 9, 0, 1000, func(securityCode uint8) FPSResult {
		gotCode = securityCode
		if securityCode != 0x5A {
			return FPSInvalidSecurityCode
		}
		return FPSOk
	})
	require.NoError(t, err)

	svc.Ingest(0, service.Request, 0, message.Message{
		NodeID: 9, ServiceCode: FPSServiceCode, MessageCode: 0x5A,
	}, 1)
	require.Len(t, sender.sent, 1)
	assert.Equal(t, uint8(0x5A), gotCode)
	assert.EqualValues(t, FPSOk, sender.sent[0].MessageCode)
}
