/*
Package logx wraps zerolog behind the small logging surface shared by the
chat session core and its host application.

The package owns one process-wide logger. Session components derive
contextual child loggers from Logger() with .With(); the leveled helpers
below cover the simple call sites that only need a message and a few fields.
*/
package logx

import (
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// InitGlobalLogger configures the process-wide logger. Development mode
// writes a human-readable console stream at Debug level; otherwise entries
// are JSON at Info level. Every entry carries a Unix timestamp and the
// calling site.
func InitGlobalLogger(isDevelopment bool) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	level := zerolog.InfoLevel
	logger := zerolog.New(os.Stdout)

	if isDevelopment {
		level = zerolog.DebugLevel
		logger = zerolog.New(zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: time.RFC3339,
		})
	}

	log.Logger = logger.Level(level).With().Timestamp().Caller().Logger()
}

// Logger exposes the process-wide logger for deriving contextual children.
func Logger() *zerolog.Logger {
	return &log.Logger
}

// sanitizeFields drops a field list whose length is odd, since zerolog
// expects key-value pairs and would panic otherwise. The caller's message is
// still logged.
func sanitizeFields(level string, fields []any) []any {
	if len(fields)%2 == 0 {
		return fields
	}

	Logger().Warn().
		Str("log_level", level).
		Int("fields_count", len(fields)).
		Msg("Dropping log fields: key-value pairs expected.")
	return nil
}

// Info logs msg at Info level with optional key-value fields.
func Info(msg string, fields ...any) {
	Logger().Info().
		Fields(sanitizeFields("info", fields)).
		CallerSkipFrame(1).
		Msg(msg)
}

// Warn logs msg at Warn level with optional key-value fields.
func Warn(msg string, fields ...any) {
	Logger().Warn().
		Fields(sanitizeFields("warn", fields)).
		CallerSkipFrame(1).
		Msg(msg)
}

// Error logs msg at Error level together with the causing error and optional
// key-value fields.
func Error(err error, msg string, fields ...any) {
	Logger().Error().
		Err(err).
		Fields(sanitizeFields("error", fields)).
		CallerSkipFrame(1).
		Msg(msg)
}

// Fatal logs msg at Fatal level with the causing error, then terminates the
// process.
func Fatal(err error, msg string, fields ...any) {
	Logger().Fatal().
		Err(err).
		Fields(sanitizeFields("fatal", fields)).
		CallerSkipFrame(1).
		Msg(msg)
}
