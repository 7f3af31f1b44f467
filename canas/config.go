// Package canas is the core orchestrator (§4.I): the public API surface,
// instance lifecycle, configuration validation, and the single-threaded
// cooperative update() entry point that pins a timestamp and drives the
// frame codec, message router, parameter/service registries, and block
// transfer subsystem for one CANaerospace node.
package canas

import (
	"fmt"

	"github.com/mjs513/canaerospace/canaserr"
	"github.com/mjs513/canaerospace/service"
)

// Timing and capacity defaults (§6).
const (
	DefaultServiceRequestTimeout = 100_000    // 100ms
	DefaultServicePollInterval   = 10_000     // 10ms, spec-floor — see Config.Valid
	DefaultServiceFrameHistLen   = service.DefaultHistLen
	DefaultRepeatTimeout         = 30_000_000 // 30s
)

// Config recognizes every option of §6's configuration struct.
type Config struct {
	IfaceCount      int
	FiltersPerIface int

	ServiceRequestTimeout uint64
	ServicePollInterval   uint64
	ServiceFrameHistLen   int
	ServiceChannel        uint8

	RepeatTimeout uint64

	NodeID          uint8
	RedundChannelID uint8
}

// DefaultConfig returns a Config with every optional field at its §6
// default. NodeID and ServiceChannel have no meaningful default and are
// left zero; the caller must set NodeID to a nonzero value before Valid.
func DefaultConfig() Config {
	return Config{
		IfaceCount:            1,
		ServiceRequestTimeout: DefaultServiceRequestTimeout,
		ServicePollInterval:   DefaultServicePollInterval,
		ServiceFrameHistLen:   DefaultServiceFrameHistLen,
		RepeatTimeout:         DefaultRepeatTimeout,
	}
}

// Valid range-checks cfg and fills in defaults for zero-valued optional
// fields, following the teacher's Config.Valid() pattern: mutate in
// place, return an error only for values that cannot be defaulted.
func (cfg *Config) Valid() error {
	if cfg.IfaceCount == 0 {
		cfg.IfaceCount = 1
	}
	if cfg.IfaceCount < 1 || cfg.IfaceCount > 8 {
		return fmt.Errorf("%w: iface_count %d out of 1..8", canaserr.ErrArgument, cfg.IfaceCount)
	}
	if cfg.FiltersPerIface < 0 {
		return fmt.Errorf("%w: filters_per_iface must be >= 0", canaserr.ErrArgument)
	}
	if cfg.ServiceRequestTimeout == 0 {
		cfg.ServiceRequestTimeout = DefaultServiceRequestTimeout
	}
	if cfg.ServicePollInterval == 0 {
		cfg.ServicePollInterval = DefaultServicePollInterval
	}
	if cfg.ServicePollInterval < DefaultServicePollInterval {
		return fmt.Errorf("%w: service_poll_interval_usec below the %dus floor", canaserr.ErrArgument, DefaultServicePollInterval)
	}
	if cfg.ServiceFrameHistLen == 0 {
		cfg.ServiceFrameHistLen = DefaultServiceFrameHistLen
	}
	if cfg.ServiceFrameHistLen < 1 {
		return fmt.Errorf("%w: service_frame_hist_len must be >= 1", canaserr.ErrArgument)
	}
	if cfg.RepeatTimeout == 0 {
		cfg.RepeatTimeout = DefaultRepeatTimeout
	}
	if cfg.NodeID == 0 {
		return fmt.Errorf("%w: node_id must be 1..255 (0 is the broadcast id)", canaserr.ErrBadNodeID)
	}
	return nil
}
