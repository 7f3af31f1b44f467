// Package loopback is an in-process canas.Driver with no hardware
// underneath it: a shared Bus fans a sent frame out to every other
// member's receive queue, following the same fixed-queue-plus-send-
// function shape as the reference socketcan driver rather than a
// callback-only design. canassim wires instances together over Buses
// built here, and it is exercised directly by this package's own tests.
package loopback

import (
	"fmt"
	"sync"

	"github.com/mjs513/canaerospace/canaserr"
	"github.com/mjs513/canaerospace/frame"
)

// DefaultQueueDepth is the receive queue depth a member gets when none is
// requested.
const DefaultQueueDepth = 64

// Bus is one virtual CAN segment. Frames sent by one member are
// delivered to every other member whose filter accepts the message id;
// a member never receives its own transmission, matching real CAN bus
// semantics.
type Bus struct {
	mu      sync.Mutex
	members []*member
}

// NewBus creates an empty virtual bus.
func NewBus() *Bus { return &Bus{} }

type member struct {
	mu      sync.Mutex
	filters []uint16 // nil/empty accepts every id
	rx      chan frame.Frame
}

func (m *member) accepts(msgID uint16) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.filters) == 0 {
		return true
	}
	for _, id := range m.filters {
		if id == msgID {
			return true
		}
	}
	return false
}

func (m *member) setFilter(ids []uint16) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.filters = append([]uint16(nil), ids...)
}

func (b *Bus) join(queueDepth int) *member {
	if queueDepth <= 0 {
		queueDepth = DefaultQueueDepth
	}
	m := &member{rx: make(chan frame.Frame, queueDepth)}
	b.mu.Lock()
	b.members = append(b.members, m)
	b.mu.Unlock()
	return m
}

// send transmits f from sender to every other member of the bus whose
// filter accepts f's message id. A member with a full queue silently
// drops the frame, mirroring a real controller's receive overrun rather
// than blocking the sender.
func (b *Bus) send(sender *member, f frame.Frame) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	msgID := uint16(f.ID) & uint16(frame.StandardIDMask)
	for _, m := range b.members {
		if m == sender || !m.accepts(msgID) {
			continue
		}
		select {
		case m.rx <- f:
		default:
		}
	}
	return 1
}

// Driver implements canas.Driver across a fixed set of virtual
// interfaces, one per Bus supplied to New. Timestamp reads clock, which
// the embedder supplies: a wall-clock reading in ordinary use, a shared
// virtual tick counter in canassim so a multi-instance scenario can
// advance time deterministically.
type Driver struct {
	buses  []*Bus
	ifaces []*member
	clock  func() uint64
}

// New binds one interface per element of buses, in order. clock must not
// be nil.
func New(buses []*Bus, clock func() uint64, queueDepth int) *Driver {
	d := &Driver{buses: buses, clock: clock}
	for _, b := range buses {
		d.ifaces = append(d.ifaces, b.join(queueDepth))
	}
	return d
}

// Send implements canas.Driver.
func (d *Driver) Send(iface int, f frame.Frame) int {
	if iface < 0 || iface >= len(d.buses) {
		return -1
	}
	return d.buses[iface].send(d.ifaces[iface], f)
}

// Filter implements canas.Driver. An empty ids slice clears the filter
// back to accept-all.
func (d *Driver) Filter(iface int, ids []uint16) error {
	if iface < 0 || iface >= len(d.ifaces) {
		return fmt.Errorf("%w: iface %d out of range", canaserr.ErrArgument, iface)
	}
	d.ifaces[iface].setFilter(ids)
	return nil
}

// Timestamp implements canas.Driver.
func (d *Driver) Timestamp() uint64 { return d.clock() }

// Receive pops the next queued frame for iface, if any, without
// blocking. The embedder's run loop calls this to feed canas.Instance's
// Update, playing the role a real driver's interrupt handler or read()
// loop would play.
func (d *Driver) Receive(iface int) (frame.Frame, bool) {
	if iface < 0 || iface >= len(d.ifaces) {
		return frame.Frame{}, false
	}
	select {
	case f := <-d.ifaces[iface].rx:
		return f, true
	default:
		return frame.Frame{}, false
	}
}
