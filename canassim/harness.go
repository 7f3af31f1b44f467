// Package canassim is an in-process multi-node test harness: two or
// more canas.Instances wired over shared transport/loopback buses,
// driven by a virtual microsecond clock the test controls explicitly
// rather than racing a wall clock. It exists to let package-level tests
// exercise end-to-end scenarios spanning multiple nodes without a real
// CAN adapter.
package canassim

import (
	"github.com/mjs513/canaerospace/canas"
	"github.com/mjs513/canaerospace/canaslog"
	"github.com/mjs513/canaerospace/transport/loopback"
)

// Node pairs one canas.Instance with the loopback.Driver backing it.
type Node struct {
	Instance *canas.Instance
	Driver   *loopback.Driver
}

// Harness owns a fixed set of shared loopback buses (one per redundant
// CAN segment) and every node wired to them.
type Harness struct {
	buses []*loopback.Bus
	nodes []*Node
	now   uint64
}

// New builds a harness with ifaceCount shared buses. The virtual clock
// starts at 1, not 0, so a subscription's "never received" zero
// timestamp sentinel (§4.C) is never mistaken for a real delivery.
func New(ifaceCount int) *Harness {
	h := &Harness{now: 1}
	for i := 0; i < ifaceCount; i++ {
		h.buses = append(h.buses, loopback.NewBus())
	}
	return h
}

// Now returns the harness's current virtual microsecond clock reading.
func (h *Harness) Now() uint64 { return h.now }

// Advance moves the virtual clock forward by d microseconds.
func (h *Harness) Advance(d uint64) { h.now += d }

// AddNode builds a canas.Instance over its own loopback.Driver spanning
// every bus in the harness. cfg.IfaceCount is overwritten to match the
// harness's bus count.
func (h *Harness) AddNode(cfg canas.Config, hook canas.Hook, logger *canaslog.Logger) (*Node, error) {
	cfg.IfaceCount = len(h.buses)
	drv := loopback.New(h.buses, h.Now, 0)
	inst, err := canas.New(cfg, drv, hook, logger)
	if err != nil {
		return nil, err
	}
	n := &Node{Instance: inst, Driver: drv}
	h.nodes = append(h.nodes, n)
	return n, nil
}

// Pump drains every queued inbound frame on every node and interface
// once, in round-robin node order, feeding each into Update; it then
// calls Update(nil, 0) once per node so service polls run. It does not
// advance the clock — call Advance first, matching §5's model of an
// externally-paced update() rather than an internal ticker.
func (h *Harness) Pump() error {
	for _, n := range h.nodes {
		for iface := range h.buses {
			for {
				f, ok := n.Driver.Receive(iface)
				if !ok {
					break
				}
				if err := n.Instance.Update(&f, iface); err != nil {
					return err
				}
			}
		}
	}
	for _, n := range h.nodes {
		if err := n.Instance.Update(nil, 0); err != nil {
			return err
		}
	}
	return nil
}

// Run advances the virtual clock in step-microsecond increments,
// pumping after each advance, until total microseconds have elapsed.
func (h *Harness) Run(total, step uint64) error {
	for elapsed := uint64(0); elapsed < total; elapsed += step {
		h.Advance(step)
		if err := h.Pump(); err != nil {
			return err
		}
	}
	return nil
}
