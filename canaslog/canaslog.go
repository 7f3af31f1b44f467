// Package canaslog provides the pluggable logging indirection used
// throughout the CANaerospace core. It keeps the teacher's clog shape — a
// narrow Provider interface behind an atomically-toggled enable flag — so
// an embedder can silence the library, route it through their own
// observability stack, or take the bundled zerolog-backed default.
package canaslog

import (
	"sync/atomic"
)

// Provider is the narrow logging surface the core calls through. Only
// three severities are modeled: Error (surfaced failures), Warn (rejected
// messages and other notable events), and Debug (protocol tracing,
// including dropped malformed frames).
// There is no Critical level — nothing in a cooperative, non-aborting
// library rises to that severity.
type Provider interface {
	Error(msg string, fields map[string]any)
	Warn(msg string, fields map[string]any)
	Debug(msg string, fields map[string]any)
}

// Logger wraps a Provider behind an enable flag, exactly as clog.Clog
// wraps a clog.LogProvider. Disabled by default, whatever the provider;
// call LogMode(true) to turn it on.
type Logger struct {
	provider Provider
	enabled  uint32
}

// New wraps the given provider, initially disabled.
func New(p Provider) *Logger {
	return &Logger{provider: p}
}

// LogMode enables or disables log output.
func (l *Logger) LogMode(enable bool) {
	if enable {
		atomic.StoreUint32(&l.enabled, 1)
	} else {
		atomic.StoreUint32(&l.enabled, 0)
	}
}

// SetProvider swaps the backing provider.
func (l *Logger) SetProvider(p Provider) {
	if p != nil {
		l.provider = p
	}
}

// Error logs at error severity if enabled.
func (l *Logger) Error(msg string, fields map[string]any) {
	if atomic.LoadUint32(&l.enabled) == 1 && l.provider != nil {
		l.provider.Error(msg, fields)
	}
}

// Warn logs at warn severity if enabled.
func (l *Logger) Warn(msg string, fields map[string]any) {
	if atomic.LoadUint32(&l.enabled) == 1 && l.provider != nil {
		l.provider.Warn(msg, fields)
	}
}

// Debug logs at debug severity if enabled.
func (l *Logger) Debug(msg string, fields map[string]any) {
	if atomic.LoadUint32(&l.enabled) == 1 && l.provider != nil {
		l.provider.Debug(msg, fields)
	}
}

// Nop is a Provider that discards everything; used as the zero-value
// fallback so a *Logger is always safe to call through even before any
// provider is attached.
type Nop struct{}

func (Nop) Error(string, map[string]any) {}
func (Nop) Warn(string, map[string]any)  {}
func (Nop) Debug(string, map[string]any) {}
