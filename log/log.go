// Package log provides structured logging for the entity cache using
// zerolog. EntityManager and EntityCache log warnings for lock-release
// failures and failed inserts of paged relationships; AdaptiveCacheManager
// logs each resize at debug level and a failed resize as a warning. Errors
// returned to callers are not logged.
package log

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Logger is the global logger instance, configured by Init.
var Logger zerolog.Logger

// Level names accepted by Init.
type Level string

const (
	DebugLevel Level = "debug"
	InfoLevel  Level = "info"
	WarnLevel  Level = "warn"
	ErrorLevel Level = "error"
)

// Config controls the global logger's level, format and destination.
type Config struct {
	Level      Level
	JSONOutput bool
	Output     io.Writer
}

func init() {
	// Safe default so packages that never call Init still get a usable
	// (quiet) logger instead of the zero-value no-op logger silently
	// discarding error-level diagnostics.
	Init(Config{Level: WarnLevel})
}

// Init (re)configures the global logger.
func Init(cfg Config) {
	var level zerolog.Level
	switch cfg.Level {
	case DebugLevel:
		level = zerolog.DebugLevel
	case InfoLevel:
		level = zerolog.InfoLevel
	case WarnLevel:
		level = zerolog.WarnLevel
	case ErrorLevel:
		level = zerolog.ErrorLevel
	default:
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	output := cfg.Output
	if output == nil {
		output = os.Stdout
	}

	if cfg.JSONOutput {
		Logger = zerolog.New(output).With().Timestamp().Logger()
	} else {
		Logger = zerolog.New(zerolog.ConsoleWriter{
			Out:        output,
			TimeFormat: time.RFC3339,
		}).With().Timestamp().Logger()
	}
}

// WithComponent returns a child logger tagged with component, e.g.
// "entitycache", "manager", "boundedcache.clock".
func WithComponent(component string) zerolog.Logger {
	return Logger.With().Str("component", component).Logger()
}

// WithTx returns a child logger tagged with a transaction id.
func WithTx(txID string) zerolog.Logger {
	return Logger.With().Str("tx_id", txID).Logger()
}
