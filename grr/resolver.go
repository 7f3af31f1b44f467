// Package grr implements the Generic Redundancy Resolver (§4.H): per
// channel figure-of-merit arbitration with hysteresis, a minimum switch
// interval, and a staleness timeout, selecting one active channel among
// N redundant data sources.
package grr

import (
	"fmt"
	"math"

	"github.com/mjs513/canaerospace/canaserr"
)

// Reason names why (or whether) Update switched the active channel. The
// zero value, None, means no switch occurred.
type Reason int

const (
	None Reason = iota
	Init
	Timeout
	FOM
)

func (r Reason) String() string {
	switch r {
	case Init:
		return "init"
	case Timeout:
		return "timeout"
	case FOM:
		return "fom"
	default:
		return "none"
	}
}

// Config governs one resolver instance.
type Config struct {
	NumChannels          int
	FOMHysteresis        float32
	MinFOMSwitchInterval uint64
	ChannelTimeout       uint64
}

// Valid reports whether cfg is usable: at least one channel, a nonzero
// timeout, and at least one of hysteresis/min-interval nonzero (§4.H).
func (cfg Config) Valid() error {
	if cfg.NumChannels < 1 {
		return fmt.Errorf("%w: num_channels must be >= 1", canaserr.ErrArgument)
	}
	if cfg.ChannelTimeout < 1 {
		return fmt.Errorf("%w: channel_timeout must be >= 1", canaserr.ErrArgument)
	}
	if cfg.FOMHysteresis == 0 && cfg.MinFOMSwitchInterval == 0 {
		return fmt.Errorf("%w: at least one of fom_hysteresis or min_fom_switch_interval must be nonzero", canaserr.ErrArgument)
	}
	return nil
}

type channelState struct {
	fom          float32
	lastUpdateTs uint64
}

// Resolver holds the per-channel state for one redundancy arbitration
// instance.
type Resolver struct {
	cfg          Config
	channels     []channelState
	active       int
	lastSwitchTs uint64
}

// New builds a resolver. cfg must satisfy Valid.
func New(cfg Config) (*Resolver, error) {
	if err := cfg.Valid(); err != nil {
		return nil, err
	}
	return &Resolver{cfg: cfg, channels: make([]channelState, cfg.NumChannels)}, nil
}

// Active returns the currently selected channel.
func (r *Resolver) Active() int { return r.active }

// LastSwitchTimestamp returns the timestamp of the last active-channel
// change, or 0 if the resolver has never switched (init or override).
func (r *Resolver) LastSwitchTimestamp() uint64 { return r.lastSwitchTs }

// ChannelState returns the last-known (fom, last-update-timestamp) for
// ch, for introspection/diagnostics.
func (r *Resolver) ChannelState(ch int) (fom float32, lastUpdateTs uint64, err error) {
	if ch < 0 || ch >= len(r.channels) {
		return 0, 0, fmt.Errorf("%w: channel %d", canaserr.ErrBadRedundChan, ch)
	}
	s := r.channels[ch]
	return s.fom, s.lastUpdateTs, nil
}

// Update records a new (fom, ts) observation for ch and re-evaluates
// which channel should be active, in priority order Init > Timeout > FOM
// (§4.H, invariant 7). NaN fom is normalized to -MaxFloat32 so it never
// wins a figure-of-merit comparison.
func (r *Resolver) Update(ch int, fom float32, ts uint64) (Reason, error) {
	if ch < 0 || ch >= len(r.channels) {
		return None, fmt.Errorf("%w: channel %d", canaserr.ErrBadRedundChan, ch)
	}
	if math.IsNaN(float64(fom)) {
		fom = -math.MaxFloat32
	}
	r.channels[ch] = channelState{fom: fom, lastUpdateTs: ts}

	reason := None
	switch {
	case r.lastSwitchTs == 0:
		reason = Init
	case ch != r.active && ts > r.channels[r.active].lastUpdateTs+r.cfg.ChannelTimeout:
		reason = Timeout
	case ch != r.active &&
		r.channels[ch].fom > r.channels[r.active].fom+r.cfg.FOMHysteresis &&
		ts >= r.lastSwitchTs+r.cfg.MinFOMSwitchInterval:
		reason = FOM
	}

	if reason != None {
		r.active = ch
		r.lastSwitchTs = ts
	}
	return reason, nil
}

// Override forces the active channel to ch, setting last_switch_ts to
// now. A subsequent first Update no longer reports Init, since
// last_switch_ts is now nonzero.
func (r *Resolver) Override(ch int, now uint64) error {
	if ch < 0 || ch >= len(r.channels) {
		return fmt.Errorf("%w: channel %d", canaserr.ErrBadRedundChan, ch)
	}
	r.active = ch
	r.lastSwitchTs = now
	return nil
}
