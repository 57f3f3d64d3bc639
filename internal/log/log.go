// Package log provides the process-wide structured logger. It mirrors the
// subsystem-tagged call convention (log.Warnf(subsystem, format, args...))
// the rest of the codebase is written against, backed by zerolog.
package log

import (
	"os"

	"github.com/rs/zerolog"
)

// Subsystem identifies the component emitting a log line, attached as the
// "sys" field on every record.
type Subsystem string

// Subsystems used across the orderbook core.
const (
	ManagerMgr   Subsystem = "manager"
	SyncMgr      Subsystem = "sync"
	SnapshotMgr  Subsystem = "snapshot"
	DecoderMgr   Subsystem = "decoder"
	LimiterMgr   Subsystem = "limiter"
	PublisherMgr Subsystem = "publisher"
	HealthMgr    Subsystem = "health"
	ConfigMgr    Subsystem = "config"
)

// Log is the package-level logger instance. It starts disabled so tests and
// library consumers that never call Init don't spam stdout.
var Log zerolog.Logger = zerolog.New(nil).Level(zerolog.Disabled)

// Init configures the global logger. Call once from main().
func Init(debug bool) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnixMicro

	level := zerolog.InfoLevel
	if debug {
		level = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(level)

	writer := zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: "15:04:05.000000",
	}
	Log = zerolog.New(writer).With().Timestamp().Logger()
}

// Get returns the global logger instance for passing to libraries that take
// a *zerolog.Logger directly.
func Get() *zerolog.Logger {
	return &Log
}

func sub(s Subsystem) zerolog.Logger {
	return Log.With().Str("sys", string(s)).Logger()
}

// Debugf logs a debug-level message tagged with the given subsystem.
func Debugf(s Subsystem, format string, args ...any) {
	sub(s).Debug().Msgf(format, args...)
}

// Infof logs an info-level message tagged with the given subsystem.
func Infof(s Subsystem, format string, args ...any) {
	sub(s).Info().Msgf(format, args...)
}

// Warnf logs a warn-level message tagged with the given subsystem.
func Warnf(s Subsystem, format string, args ...any) {
	sub(s).Warn().Msgf(format, args...)
}

// Errorf logs an error-level message tagged with the given subsystem.
func Errorf(s Subsystem, format string, args ...any) {
	sub(s).Error().Msgf(format, args...)
}
