package canas

import (
	"fmt"

	"github.com/mjs513/canaerospace/blocktransfer"
	"github.com/mjs513/canaerospace/canaserr"
	"github.com/mjs513/canaerospace/canaslog"
	"github.com/mjs513/canaerospace/frame"
	"github.com/mjs513/canaerospace/message"
	"github.com/mjs513/canaerospace/param"
	"github.com/mjs513/canaerospace/service"
	"github.com/mjs513/canaerospace/simpleservice"
)

// Instance is one CANaerospace node: configuration, driver, parameter
// and service registries, and (optionally) block transfer, wired
// together behind the single update() entry point (§4.I, §5).
//
// Instance is not safe for concurrent use. The embedder serializes RX
// delivery and any TX/poll-only ticks into Update with its own
// synchronization, per §5's scheduling model.
type Instance struct {
	cfg    Config
	driver Driver
	hook   Hook
	log    *canaslog.Logger

	Params        *param.Registry
	Services      *service.Registry
	BlockTransfer *blocktransfer.BlockTransfer
	IDS           *simpleservice.IDS
	FPS           *simpleservice.FPS
	NSS           *simpleservice.NSS

	lastServicePoll uint64
}

// New builds an instance. cfg is validated (and defaulted) in place.
// hook and logger may be nil.
func New(cfg Config, driver Driver, hook Hook, logger *canaslog.Logger) (*Instance, error) {
	if err := cfg.Valid(); err != nil {
		return nil, err
	}
	if driver == nil {
		return nil, fmt.Errorf("%w: driver must not be nil", canaserr.ErrArgument)
	}
	if logger == nil {
		logger = canaslog.New(canaslog.Nop{})
	}
	inst := &Instance{cfg: cfg, driver: driver, hook: hook, log: logger}
	inst.Params = param.New(inst, cfg.NodeID, cfg.RedundChannelID, cfg.IfaceCount, cfg.RepeatTimeout)
	inst.Services = service.New(inst, cfg.NodeID, cfg.ServiceChannel, cfg.ServiceFrameHistLen, cfg.RepeatTimeout)
	return inst, nil
}

// EnableBlockTransfer wires the DDS/DUS subsystem onto this instance.
// It is separate from New because most nodes need only a subset of the
// four block-transfer roles, each supplied here as a possibly-nil
// callback (§4.F).
func (inst *Instance) EnableBlockTransfer(
	defaults blocktransfer.Defaults,
	onDownloadRequest blocktransfer.DownloadRequestFunc, onDownloadComplete func(memID uint32, data []byte),
	onUploadRequest blocktransfer.UploadRequestFunc, onUploadComplete func(memID uint32),
) error {
	bt, err := blocktransfer.New(inst.Services, inst.cfg.NodeID, inst.cfg.ServiceChannel, defaults,
		onDownloadRequest, onDownloadComplete, onUploadRequest, onUploadComplete)
	if err != nil {
		return err
	}
	inst.BlockTransfer = bt
	return nil
}

// EnableIDS wires the Identification simple service onto this instance.
// serverInfo may be nil if this node does not answer identification
// requests.
func (inst *Instance) EnableIDS(timeout uint64, capacity int, serverInfo func() simpleservice.IDSInfo) error {
	ids, err := simpleservice.NewIDS(inst.Services, inst.cfg.NodeID, inst.cfg.ServiceChannel, timeout, capacity, serverInfo)
	if err != nil {
		return err
	}
	inst.IDS = ids
	return nil
}

// EnableFPS wires the Flash Programming simple service onto this
// instance. serverHandler may be nil if this node does not serve
// flash-programming requests.
func (inst *Instance) EnableFPS(timeout uint64, serverHandler func(securityCode uint8) simpleservice.FPSResult) error {
	fps, err := simpleservice.NewFPS(inst.Services, inst.cfg.NodeID, inst.cfg.ServiceChannel, timeout, serverHandler)
	if err != nil {
		return err
	}
	inst.FPS = fps
	return nil
}

// EnableNSS wires the Node Synchronization simple service onto this
// instance. cb may be nil if this node does not care about incoming
// sync broadcasts.
func (inst *Instance) EnableNSS(cb simpleservice.NSSCallback) error {
	nss, err := simpleservice.NewNSS(inst.Services, inst.cfg.ServiceChannel, cb)
	if err != nil {
		return err
	}
	inst.NSS = nss
	return nil
}

// Config returns the instance's (validated, defaulted) configuration.
func (inst *Instance) Config() Config { return inst.cfg }

// Now returns the driver's current timestamp, for callers that need to
// compute a deadline outside of Update (e.g. before issuing a request).
func (inst *Instance) Now() uint64 { return inst.driver.Timestamp() }

// Send implements param.Sender and service.Sender: it encodes m as
// msgID/redund and writes it through every interface in ifaces (or
// every configured interface, if ifaces is nil), succeeding if at least
// one accepted it (§4.E).
func (inst *Instance) Send(msgID uint16, redund uint8, m message.Message, ifaces []int) error {
	f, err := frame.Encode(msgID, redund, m)
	if err != nil {
		return err
	}
	targets := ifaces
	if targets == nil {
		targets = make([]int, inst.cfg.IfaceCount)
		for i := range targets {
			targets[i] = i
		}
	}
	sent := false
	for _, iface := range targets {
		if iface < 0 || iface >= inst.cfg.IfaceCount {
			continue
		}
		if inst.driver.Send(iface, f) == 1 {
			sent = true
		}
	}
	if !sent {
		return fmt.Errorf("%w: no configured interface accepted msg id %d", canaserr.ErrDriver, msgID)
	}
	return nil
}

// Update is the library's single entry point (§5). f is the inbound
// frame received on iface, or nil for a poll-only tick. The timestamp is
// pinned once via the driver at the start of the call, the hook (if any)
// runs before any parameter/service callback, and the service poll
// always runs last.
func (inst *Instance) Update(f *frame.Frame, iface int) error {
	now := inst.driver.Timestamp()

	var dispatchErr error
	if f != nil {
		if iface < 0 || iface >= inst.cfg.IfaceCount {
			return fmt.Errorf("%w: iface %d out of range", canaserr.ErrArgument, iface)
		}
		msgID, redund, m, err := frame.Decode(*f)
		if err != nil {
			inst.log.Debug("dropped malformed frame", map[string]any{"iface": iface, "frame": *f, "err": err.Error()})
		} else {
			if inst.hook != nil {
				inst.hook(iface, msgID, redund, m)
			}
			switch grp := message.Classify(msgID); {
			case grp == message.Invalid:
				inst.log.Warn("rejected message outside every routing group", map[string]any{"msg_id": msgID, "message": m})
				dispatchErr = fmt.Errorf("%w: message id %d", canaserr.ErrBadMessageID, msgID)
			case grp.IsService():
				if ch, dir, cherr := service.MsgIDToChannel(msgID); cherr == nil {
					inst.Services.Ingest(ch, dir, iface, m, now)
				}
			default:
				inst.Params.Ingest(msgID, redund, m, now)
			}
		}
	}

	if now-inst.lastServicePoll >= inst.cfg.ServicePollInterval {
		inst.Services.Poll(now)
		inst.lastServicePoll = now
	}
	return dispatchErr
}
