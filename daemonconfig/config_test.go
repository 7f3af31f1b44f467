package daemonconfig

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFillsDefaultsWithNoConfigFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	require.NoError(t, err)

	assert.Equal(t, 1, cfg.Node.IfaceCount)
	assert.EqualValues(t, 100_000, cfg.Node.ServiceRequestTimeoutUsec)
	assert.EqualValues(t, 10_000, cfg.Node.ServicePollIntervalUsec)
	assert.EqualValues(t, 30_000_000, cfg.Node.RepeatTimeoutUsec)
	assert.Equal(t, "loopback", cfg.Transport.Kind)
	assert.Equal(t, "@every 1s", cfg.Services.NSSBeaconCron)
	assert.False(t, cfg.Redundancy.Enabled)
	assert.Equal(t, 2, cfg.Redundancy.NumChannels)
	assert.Equal(t, "console", cfg.Logger.Format)
}

func TestLoadReadsYAMLFileOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "canasd.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
node:
  id: 7
  iface_count: 2
transport:
  kind: slcan
  ports: ["/dev/ttyUSB0", "/dev/ttyUSB1"]
redundancy:
  enabled: true
  num_channels: 3
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.EqualValues(t, 7, cfg.Node.ID)
	assert.Equal(t, 2, cfg.Node.IfaceCount)
	assert.Equal(t, "slcan", cfg.Transport.Kind)
	assert.Equal(t, []string{"/dev/ttyUSB0", "/dev/ttyUSB1"}, cfg.Transport.Ports)
	assert.True(t, cfg.Redundancy.Enabled)
	assert.Equal(t, 3, cfg.Redundancy.NumChannels)
}

func TestLoadAppliesEnvironmentOverride(t *testing.T) {
	t.Setenv("CANAS_TRANSPORT_KIND", "slcan")
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "slcan", cfg.Transport.Kind)
}
