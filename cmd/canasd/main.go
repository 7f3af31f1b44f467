// Command canasd is a demonstrator node daemon: it loads a CANaerospace
// node configuration, wires up a transport (real SLCAN hardware or an
// in-process loopback bus for a dry run), enables whichever simple
// services and block-transfer roles the configuration asks for, and
// drives the cooperative Update() loop until told to stop.
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/mjs513/canaerospace/blocktransfer"
	"github.com/mjs513/canaerospace/canas"
	"github.com/mjs513/canaerospace/canaslog"
	"github.com/mjs513/canaerospace/daemonconfig"
	"github.com/mjs513/canaerospace/frame"
	"github.com/mjs513/canaerospace/grr"
	"github.com/mjs513/canaerospace/simpleservice"
	"github.com/mjs513/canaerospace/transport/loopback"
	"github.com/mjs513/canaerospace/transport/slcan"
)

// receiver is the subset of a transport driver that exposes inbound
// frames for polling; both transport/slcan and transport/loopback
// implement it alongside canas.Driver.
type receiver interface {
	canas.Driver
	Receive(iface int) (frame.Frame, bool)
}

func main() {
	configPath := flag.String("config", "", "path to canasd.yaml (defaults to ./canasd.yaml)")
	flag.Parse()

	cfg, err := daemonconfig.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "canasd: %v\n", err)
		os.Exit(1)
	}

	logger := canaslog.New(canaslog.NewDefaultLogger(canaslog.DefaultConfig{
		Format:     logFormat(cfg.Logger.Format),
		LogFile:    cfg.Logger.File,
		MaxSizeMB:  cfg.Logger.MaxSizeMB,
		MaxBackups: cfg.Logger.MaxBackups,
		MaxAgeDays: cfg.Logger.MaxAgeDays,
	}))
	logger.LogMode(true)

	drv, err := buildDriver(cfg)
	if err != nil {
		logger.Error("canasd: build driver", map[string]any{"err": err.Error()})
		os.Exit(1)
	}
	if closer, ok := drv.(interface{ Close() error }); ok {
		defer closer.Close()
	}

	inst, err := canas.New(canas.Config{
		NodeID:                cfg.Node.ID,
		IfaceCount:            cfg.Node.IfaceCount,
		ServiceChannel:        cfg.Node.ServiceChannel,
		RedundChannelID:       cfg.Node.RedundChannelID,
		ServiceRequestTimeout: cfg.Node.ServiceRequestTimeoutUsec,
		ServicePollInterval:   cfg.Node.ServicePollIntervalUsec,
		RepeatTimeout:         cfg.Node.RepeatTimeoutUsec,
	}, drv, nil, logger)
	if err != nil {
		logger.Error("canasd: new instance", map[string]any{"err": err.Error()})
		os.Exit(1)
	}

	if cfg.Services.EnableIDS {
		if err := inst.EnableIDS(inst.Config().ServiceRequestTimeout, simpleservice.IDSForeignNodes, func() simpleservice.IDSInfo {
			return simpleservice.IDSInfo{HardwareRevision: 1, SoftwareRevision: 1, IDDistribution: 0, HeaderType: 0}
		}); err != nil {
			logger.Error("canasd: enable IDS", map[string]any{"err": err.Error()})
			os.Exit(1)
		}
	}
	if cfg.Services.EnableFPS {
		if err := inst.EnableFPS(inst.Config().ServiceRequestTimeout, nil); err != nil {
			logger.Error("canasd: enable FPS", map[string]any{"err": err.Error()})
			os.Exit(1)
		}
	}
	if cfg.Services.EnableNSS {
		if err := inst.EnableNSS(nil); err != nil {
			logger.Error("canasd: enable NSS", map[string]any{"err": err.Error()})
			os.Exit(1)
		}
	}
	if cfg.Services.EnableBlockTransfer {
		if err := inst.EnableBlockTransfer(blocktransfer.DefaultDefaults(), nil, nil, nil, nil); err != nil {
			logger.Error("canasd: enable block transfer", map[string]any{"err": err.Error()})
			os.Exit(1)
		}
	}

	var resolver *grr.Resolver
	if cfg.Redundancy.Enabled {
		resolver, err = grr.New(grr.Config{
			NumChannels:          cfg.Redundancy.NumChannels,
			FOMHysteresis:        cfg.Redundancy.FOMHysteresis,
			MinFOMSwitchInterval: cfg.Redundancy.MinFOMSwitchInterval,
			ChannelTimeout:       cfg.Redundancy.ChannelTimeout,
		})
		if err != nil {
			logger.Error("canasd: new GRR resolver", map[string]any{"err": err.Error()})
			os.Exit(1)
		}
	}

	sched := cron.New()
	if cfg.Services.EnableNSS && inst.NSS != nil {
		if _, err := sched.AddFunc(cfg.Services.NSSBeaconCron, func() {
			ts := uint32(inst.Now() / 1000)
			if err := inst.NSS.Publish(ts); err != nil {
				logger.Warn("canasd: NSS beacon publish failed", map[string]any{"err": err.Error()})
			}
		}); err != nil {
			logger.Error("canasd: schedule NSS beacon", map[string]any{"err": err.Error()})
			os.Exit(1)
		}
	}
	if resolver != nil {
		if _, err := sched.AddFunc(cfg.Redundancy.RefreshCron, func() {
			refreshRedundancy(resolver, logger, inst.Now())
		}); err != nil {
			logger.Error("canasd: schedule GRR refresh", map[string]any{"err": err.Error()})
			os.Exit(1)
		}
	}
	sched.Start()
	defer sched.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	rx, _ := drv.(receiver)
	ticker := time.NewTicker(time.Millisecond)
	defer ticker.Stop()

	logger.Warn("canasd: started", map[string]any{"node_id": cfg.Node.ID, "transport": cfg.Transport.Kind})

	for {
		select {
		case <-sigCh:
			logger.Warn("canasd: shutting down", nil)
			return
		case <-ticker.C:
			drainAndUpdate(inst, rx, cfg.Node.IfaceCount, logger)
		}
	}
}

func drainAndUpdate(inst *canas.Instance, rx receiver, ifaceCount int, logger *canaslog.Logger) {
	polled := false
	if rx != nil {
		for iface := 0; iface < ifaceCount; iface++ {
			for {
				f, ok := rx.Receive(iface)
				if !ok {
					break
				}
				if err := inst.Update(&f, iface); err != nil {
					logger.Warn("canasd: update", map[string]any{"err": err.Error(), "iface": iface})
				}
				polled = true
			}
		}
	}
	if !polled {
		if err := inst.Update(nil, 0); err != nil {
			logger.Warn("canasd: poll update", map[string]any{"err": err.Error()})
		}
	}
}

// refreshRedundancy reports a figure of merit for the resolver's
// currently active channel. A demonstrator has no real per-channel
// health metric; this is enough to keep ChannelTimeout from tripping and
// to exercise the resolver's Update path on a schedule rather than only
// from inbound traffic.
func refreshRedundancy(r *grr.Resolver, logger *canaslog.Logger, now uint64) {
	active := r.Active()
	reason, err := r.Update(active, 1.0, now)
	if err != nil {
		logger.Warn("canasd: GRR update", map[string]any{"err": err.Error()})
		return
	}
	if reason != grr.None {
		logger.Warn("canasd: GRR channel switch", map[string]any{"reason": reason.String(), "active": r.Active()})
	}
}

func buildDriver(cfg *daemonconfig.Config) (canas.Driver, error) {
	switch cfg.Transport.Kind {
	case "slcan":
		var scfgs []slcan.Config
		for _, port := range cfg.Transport.Ports {
			sc := slcan.DefaultConfig(port)
			if cfg.Transport.BaudRate > 0 {
				sc.BaudRate = cfg.Transport.BaudRate
			}
			scfgs = append(scfgs, sc)
		}
		return slcan.Open(scfgs, 64)
	case "loopback", "":
		bus := loopback.NewBus()
		buses := make([]*loopback.Bus, cfg.Node.IfaceCount)
		for i := range buses {
			buses[i] = bus
		}
		return loopback.New(buses, func() uint64 { return uint64(time.Now().UnixMicro()) }, 64), nil
	default:
		return nil, fmt.Errorf("canasd: unknown transport kind %q", cfg.Transport.Kind)
	}
}

func logFormat(s string) canaslog.Format {
	if s == "json" {
		return canaslog.FormatJSON
	}
	return canaslog.FormatConsole
}
