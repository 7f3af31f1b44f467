package canas

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigValidFillsDefaults(t *testing.T) {
	cfg := Config{NodeID: 1}
	require.NoError(t, cfg.Valid())
	assert.Equal(t, 1, cfg.IfaceCount)
	assert.EqualValues(t, DefaultServiceRequestTimeout, cfg.ServiceRequestTimeout)
	assert.EqualValues(t, DefaultServicePollInterval, cfg.ServicePollInterval)
	assert.Equal(t, DefaultServiceFrameHistLen, cfg.ServiceFrameHistLen)
	assert.EqualValues(t, DefaultRepeatTimeout, cfg.RepeatTimeout)
}

func TestConfigValidRejectsZeroNodeID(t *testing.T) {
	cfg := Config{}
	assert.Error(t, cfg.Valid())
}

func TestConfigValidRejectsIfaceCountOutOfRange(t *testing.T) {
	cfg := Config{NodeID: 1, IfaceCount: 9}
	assert.Error(t, cfg.Valid())

	cfg = Config{NodeID: 1, IfaceCount: -1}
	assert.Error(t, cfg.Valid())
}

func TestConfigValidEnforcesServicePollIntervalFloor(t *testing.T) {
	cfg := Config{NodeID: 1, ServicePollInterval: DefaultServicePollInterval - 1}
	assert.Error(t, cfg.Valid())
}

func TestConfigValidRejectsNegativeFiltersPerIface(t *testing.T) {
	cfg := Config{NodeID: 1, FiltersPerIface: -1}
	assert.Error(t, cfg.Valid())
}

func TestConfigValidDefaultsZeroServiceFrameHistLen(t *testing.T) {
	cfg := Config{NodeID: 1, ServiceFrameHistLen: 0}
	require.NoError(t, cfg.Valid())
	assert.Equal(t, DefaultServiceFrameHistLen, cfg.ServiceFrameHistLen)
}
