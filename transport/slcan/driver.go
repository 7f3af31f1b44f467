// Package slcan implements canas.Driver over one or more LAWICEL/SLCAN
// ASCII serial-CAN adapters via go.bug.st/serial, the same library the
// rest of the example pack reaches for wherever a node talks to a UART
// peripheral. It follows a mutex-guarded-port plus
// background-read-goroutine shape: Open starts one reader goroutine per
// interface that decodes inbound ASCII frames into a buffered channel,
// and Send writes synchronously under a per-interface lock.
package slcan

import (
	"bufio"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.bug.st/serial"

	"github.com/mjs513/canaerospace/canaserr"
	"github.com/mjs513/canaerospace/frame"
)

const frameEnd = '\r'

// Bit rate codes for the SLCAN 'S' command (§6, driver-specific; not a
// protocol invariant — any adapter pair just needs to agree).
const (
	BitRate10k   byte = '0'
	BitRate20k   byte = '1'
	BitRate50k   byte = '2'
	BitRate100k  byte = '3'
	BitRate125k  byte = '4'
	BitRate250k  byte = '5'
	BitRate500k  byte = '6'
	BitRate800k  byte = '7'
	BitRate1M    byte = '8'
)

// Config is one SLCAN interface's serial connection parameters.
type Config struct {
	Port     string
	BaudRate int
	BitRate  byte
}

// DefaultConfig returns Config for port at 115200 baud, 500kbit/s CAN.
func DefaultConfig(port string) Config {
	return Config{Port: port, BaudRate: 115200, BitRate: BitRate500k}
}

type ifaceConn struct {
	port   serial.Port
	mu     sync.Mutex
	rx     chan frame.Frame
	closed chan struct{}
}

// Driver implements canas.Driver across a fixed set of SLCAN serial
// interfaces, one per Config passed to Open.
type Driver struct {
	ifaces []*ifaceConn
}

// Open connects one serial port per cfg, in order, issuing the SLCAN
// bitrate-set and channel-open commands on each before returning. On any
// failure, every interface opened so far is closed before the error is
// returned.
func Open(cfgs []Config, queueDepth int) (*Driver, error) {
	d := &Driver{}
	for _, cfg := range cfgs {
		ic, err := openIface(cfg, queueDepth)
		if err != nil {
			d.Close()
			return nil, err
		}
		d.ifaces = append(d.ifaces, ic)
	}
	return d, nil
}

func openIface(cfg Config, queueDepth int) (*ifaceConn, error) {
	port, err := serial.Open(cfg.Port, &serial.Mode{BaudRate: cfg.BaudRate})
	if err != nil {
		return nil, fmt.Errorf("slcan: open %s: %w", cfg.Port, err)
	}
	if _, err := port.Write([]byte{'S', cfg.BitRate, frameEnd}); err != nil {
		port.Close()
		return nil, fmt.Errorf("slcan: set bit rate on %s: %w", cfg.Port, err)
	}
	if _, err := port.Write([]byte{'O', frameEnd}); err != nil {
		port.Close()
		return nil, fmt.Errorf("slcan: open channel on %s: %w", cfg.Port, err)
	}
	if queueDepth <= 0 {
		queueDepth = 64
	}
	ic := &ifaceConn{port: port, rx: make(chan frame.Frame, queueDepth), closed: make(chan struct{})}
	go ic.readLoop()
	return ic, nil
}

func (ic *ifaceConn) readLoop() {
	r := bufio.NewReader(ic.port)
	for {
		line, err := r.ReadString(frameEnd)
		if err != nil {
			select {
			case <-ic.closed:
				return
			default:
			}
			time.Sleep(10 * time.Millisecond)
			continue
		}
		f, ok := decodeLine(strings.TrimSuffix(line, string(frameEnd)))
		if !ok {
			continue
		}
		select {
		case ic.rx <- f:
		default:
			// receive queue full: drop, mirroring a real controller's overrun
		}
	}
}

func (ic *ifaceConn) close() error {
	close(ic.closed)
	_, _ = ic.port.Write([]byte{'C', frameEnd})
	return ic.port.Close()
}

// Close shuts down every interface, issuing the SLCAN channel-close
// command first.
func (d *Driver) Close() error {
	var first error
	for _, ic := range d.ifaces {
		if err := ic.close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Send implements canas.Driver.
func (d *Driver) Send(iface int, f frame.Frame) int {
	if iface < 0 || iface >= len(d.ifaces) {
		return -1
	}
	ic := d.ifaces[iface]
	ic.mu.Lock()
	defer ic.mu.Unlock()
	if _, err := ic.port.Write([]byte(encodeLine(f))); err != nil {
		return -1
	}
	return 1
}

// Filter implements canas.Driver. Base SLCAN firmware exposes no
// standard acceptance-filter command across vendors, so this is a no-op:
// filtering happens in software at the registry layer instead.
func (d *Driver) Filter(iface int, ids []uint16) error {
	if iface < 0 || iface >= len(d.ifaces) {
		return fmt.Errorf("%w: iface %d out of range", canaserr.ErrArgument, iface)
	}
	return nil
}

// Timestamp implements canas.Driver with a wall-clock microsecond
// reading; only differences between calls are meaningful (§6).
func (d *Driver) Timestamp() uint64 { return uint64(time.Now().UnixMicro()) }

// Receive pops the next queued inbound frame for iface, if any, without
// blocking.
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
