// Package log provides a leveled, structured logger for the whole project.
// It is a thin wrapper over zerolog with helpers for formatted (Infof) and
// key-value (Infow) logging, so callers never import zerolog directly.
package log

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const (
	LogLevelDebug = "debug"
	LogLevelInfo  = "info"
	LogLevelWarn  = "warn"
	LogLevelError = "error"
)

var logger zerolog.Logger

func init() {
	// A default logger so packages can log before Init is called (tests).
	Init(LogLevelInfo, "stderr", nil)
}

// Init initializes the global logger with the given level and output.
// Output might be "stdout", "stderr" or a file path. If w is not nil it
// overrides the output selection (useful for tests).
func Init(level, output string, w io.Writer) {
	var out io.Writer
	switch {
	case w != nil:
		out = w
	case output == "stdout":
		out = os.Stdout
	case output == "stderr" || output == "":
		out = os.Stderr
	default:
		f, err := os.OpenFile(output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			panic(fmt.Sprintf("cannot open log output %q: %v", output, err))
		}
		out = f
	}
	cw := zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339Nano}
	logger = zerolog.New(cw).With().Timestamp().Logger().Level(parseLevel(level))
}

func parseLevel(level string) zerolog.Level {
	switch strings.ToLower(level) {
	case LogLevelDebug:
		return zerolog.DebugLevel
	case LogLevelInfo:
		return zerolog.InfoLevel
	case LogLevelWarn:
		return zerolog.WarnLevel
	case LogLevelError:
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// Level returns the current log level as a string.
func Level() string {
	return logger.GetLevel().String()
}

func withFields(ev *zerolog.Event, keyvalues ...any) *zerolog.Event {
	if len(keyvalues)%2 != 0 {
		keyvalues = append(keyvalues, "MISSING_VALUE")
	}
	for i := 0; i < len(keyvalues); i += 2 {
		key, ok := keyvalues[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", keyvalues[i])
		}
		ev = ev.Interface(key, keyvalues[i+1])
	}
	return ev
}

func Debug(args ...any) { logger.Debug().Msg(fmt.Sprint(args...)) }
func Info(args ...any)  { logger.Info().Msg(fmt.Sprint(args...)) }
func Warn(args ...any)  { logger.Warn().Msg(fmt.Sprint(args...)) }

// Error logs an error value at error level.
func Error(err error) { logger.Error().Msg(err.Error()) }

func Debugf(format string, args ...any) { logger.Debug().Msg(fmt.Sprintf(format, args...)) }
func Infof(format string, args ...any)  { logger.Info().Msg(fmt.Sprintf(format, args...)) }
func Warnf(format string, args ...any)  { logger.Warn().Msg(fmt.Sprintf(format, args...)) }
func Errorf(format string, args ...any) { logger.Error().Msg(fmt.Sprintf(format, args...)) }

func Debugw(msg string, keyvalues ...any) { withFields(logger.Debug(), keyvalues...).Msg(msg) }
func Infow(msg string, keyvalues ...any)  { withFields(logger.Info(), keyvalues...).Msg(msg) }
func Warnw(msg string, keyvalues ...any)  { withFields(logger.Warn(), keyvalues...).Msg(msg) }

// Errorw logs an error with a companion message and optional key-values.
func Errorw(err error, msg string, keyvalues ...any) {
	withFields(logger.Error().Err(err), keyvalues...).Msg(msg)
}

// Fatal logs at fatal level and exits the process.
func Fatal(args ...any) { logger.Fatal().Msg(fmt.Sprint(args...)) }

// Fatalf logs a formatted message at fatal level and exits the process.
func Fatalf(format string, args ...any) { logger.Fatal().Msg(fmt.Sprintf(format, args...)) }
