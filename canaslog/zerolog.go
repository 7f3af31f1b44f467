package canaslog

import (
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"
)

// Format selects the console output used by the default provider.
type Format int

const (
	// FormatConsole writes human-readable, colorized lines — the
	// development default.
	FormatConsole Format = iota
	// FormatJSON writes structured JSON lines — the production default.
	FormatJSON
)

// DefaultConfig configures NewDefaultLogger.
type DefaultConfig struct {
	// Format selects console vs. JSON rendering.
	Format Format
	// LogFile, if non-empty, routes output through a rotating
	// lumberjack.Logger instead of stdout; file output is JSON whatever
	// Format says.
	LogFile    string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// zerologProvider adapts a zerolog.Logger to the canaslog.Provider
// interface.
type zerologProvider struct {
	log zerolog.Logger
}

// NewDefaultLogger builds a zerolog-backed Provider. With cfg.LogFile set,
// output is written through a lumberjack.Logger for size/age-based
// rotation; otherwise it goes to stdout, console-formatted or JSON per
// cfg.Format.
func NewDefaultLogger(cfg DefaultConfig) Provider {
	var w io.Writer = os.Stdout
	if cfg.LogFile != "" {
		w = &lumberjack.Logger{
			Filename:   cfg.LogFile,
			MaxSize:    orDefault(cfg.MaxSizeMB, 50),
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   cfg.Compress,
		}
	} else if cfg.Format == FormatConsole {
		w = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: "15:04:05.000"}
	}
	return &zerologProvider{log: zerolog.New(w).With().Timestamp().Logger()}
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

func (p *zerologProvider) Error(msg string, fields map[string]any) {
	p.log.Error().Fields(stringify(fields)).Msg(msg)
}

func (p *zerologProvider) Warn(msg string, fields map[string]any) {
	p.log.Warn().Fields(stringify(fields)).Msg(msg)
}

func (p *zerologProvider) Debug(msg string, fields map[string]any) {
	p.log.Debug().Fields(stringify(fields)).Msg(msg)
}

// stringify renders any fmt.Stringer field value (notably frame.Frame and
// message.Message) through its String() method before handing the map to
// zerolog, so a frame/message field logs as the compact trace form rather
// than a raw struct dump. Everything else passes through unchanged.
func stringify(fields map[string]any) map[string]any {
	if fields == nil {
		return nil
	}
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		if s, ok := v.(fmt.Stringer); ok {
			out[k] = s.String()
			continue
		}
		out[k] = v
	}
	return out
}
