// Package daemonconfig loads cmd/canasd's configuration from a YAML file,
// with environment-variable overrides, following the viper/mapstructure
// pattern the rest of the pack uses for its own daemon entry points.
package daemonconfig

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Config is cmd/canasd's full configuration tree.
type Config struct {
	Node       NodeConfig       `mapstructure:"node"`
	Transport  TransportConfig  `mapstructure:"transport"`
	Services   ServicesConfig   `mapstructure:"services"`
	Redundancy RedundancyConfig `mapstructure:"redundancy"`
	Logger     LoggerConfig     `mapstructure:"logger"`
}

// NodeConfig carries the CANaerospace identity and timing settings (§6).
type NodeConfig struct {
	ID                        uint8  `mapstructure:"id"`
	IfaceCount                int    `mapstructure:"iface_count"`
	ServiceChannel            uint8  `mapstructure:"service_channel"`
	RedundChannelID           uint8  `mapstructure:"redund_channel_id"`
	ServiceRequestTimeoutUsec uint64 `mapstructure:"service_request_timeout_usec"`
	ServicePollIntervalUsec   uint64 `mapstructure:"service_poll_interval_usec"`
	RepeatTimeoutUsec         uint64 `mapstructure:"repeat_timeout_usec"`
}

// TransportConfig picks and configures the CAN driver.
type TransportConfig struct {
	// Kind is "slcan" or "loopback". loopback drives the daemon against an
	// in-process bus with no peer, useful for a dry-run/demo invocation.
	Kind string `mapstructure:"kind"`
	// Ports lists one SLCAN serial device per interface, in order; only
	// consulted when Kind == "slcan".
	Ports    []string `mapstructure:"ports"`
	BaudRate int      `mapstructure:"baud_rate"`
}

// ServicesConfig toggles the optional simple services and block transfer.
type ServicesConfig struct {
	EnableIDS           bool   `mapstructure:"enable_ids"`
	EnableFPS           bool   `mapstructure:"enable_fps"`
	EnableNSS           bool   `mapstructure:"enable_nss"`
	EnableBlockTransfer bool   `mapstructure:"enable_block_transfer"`
	NSSBeaconCron       string `mapstructure:"nss_beacon_cron"`
}

// RedundancyConfig configures the GRR resolver's periodic refresh.
type RedundancyConfig struct {
	Enabled              bool    `mapstructure:"enabled"`
	NumChannels          int     `mapstructure:"num_channels"`
	FOMHysteresis        float32 `mapstructure:"fom_hysteresis"`
	MinFOMSwitchInterval uint64  `mapstructure:"min_fom_switch_interval_usec"`
	ChannelTimeout       uint64  `mapstructure:"channel_timeout_usec"`
	RefreshCron          string  `mapstructure:"refresh_cron"`
}

// LoggerConfig selects the canaslog default provider's behavior.
type LoggerConfig struct {
	Format  string `mapstructure:"format"` // "console" or "json"
	File    string `mapstructure:"file"`
	MaxSizeMB  int  `mapstructure:"max_size_mb"`
	MaxBackups int  `mapstructure:"max_backups"`
	MaxAgeDays int  `mapstructure:"max_age_days"`
}

// Load reads configuration from configPath (or, if empty, from
// ./canasd.yaml / $HOME/.canasd/canasd.yaml), applies CANAS_-prefixed
// environment overrides, and fills in defaults for anything unset.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("canasd")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath(configDir())
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("daemonconfig: read config: %w", err)
		}
	}

	v.SetEnvPrefix("CANAS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("daemonconfig: unmarshal config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("node.iface_count", 1)
	v.SetDefault("node.service_channel", 0)
	v.SetDefault("node.service_request_timeout_usec", 100_000)
	v.SetDefault("node.service_poll_interval_usec", 10_000)
	v.SetDefault("node.repeat_timeout_usec", 30_000_000)

	v.SetDefault("transport.kind", "loopback")
	v.SetDefault("transport.baud_rate", 115200)

	v.SetDefault("services.nss_beacon_cron", "@every 1s")

	v.SetDefault("redundancy.enabled", false)
	v.SetDefault("redundancy.num_channels", 2)
	v.SetDefault("redundancy.channel_timeout_usec", 500_000)
	v.SetDefault("redundancy.refresh_cron", "@every 200ms")

	v.SetDefault("logger.format", "console")
}

func configDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".canasd")
}
