package logger

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
)

type contextKey string

const LoggerKey contextKey = "logger"

// LogFileName is the JSON log written inside Options.Directory.
const LogFileName = "device-agent.log"

// Options selects the log sinks.
type Options struct {
	// Console writes to stderr.
	Console bool
	// JSON writes raw JSON to the console instead of the colorized format.
	JSON bool
	// File appends JSON lines to LogFileName inside Directory.
	File      bool
	Directory string
}

// InitLogger builds the logger described by opts, reports config warnings
// through it and stores it in the returned context. The returned close
// function releases the log file, if any.
func InitLogger(ctx context.Context, logLevel string, opts Options, warnings []string) (context.Context, *zerolog.Logger, func() error, error) {
	log, closeFn, err := New(logLevel, opts)
	if err != nil {
		return ctx, nil, nil, err
	}
	HandleWarnings(log, warnings)
	return NewContext(ctx, log), log, closeFn, nil
}

// New creates a logger with the sinks in opts and sets the global log level.
func New(logLevel string, opts Options) (*zerolog.Logger, func() error, error) {
	SetLevel(logLevel)

	var writers []io.Writer
	closeFn := func() error { return nil }

	if opts.Console {
		if opts.JSON {
			writers = append(writers, os.Stderr)
		} else {
			writers = append(writers, consoleWriter(os.Stderr))
		}
	}

	if opts.File {
		f, err := openLogFile(opts.Directory, LogFileName)
		if err != nil {
			return nil, nil, err
		}
		writers = append(writers, f)
		closeFn = f.Close
	}

	var out io.Writer
	switch len(writers) {
	case 0:
		out = io.Discard
	case 1:
		out = writers[0]
	default:
		out = zerolog.MultiLevelWriter(writers...)
	}

	logger := zerolog.New(out).With().Timestamp().Logger()
	return &logger, closeFn, nil
}

// NewLogger creates a colorized console logger on stderr and sets the global log level.
func NewLogger(logLevel string) *zerolog.Logger {
	SetLevel(logLevel)
	logger := zerolog.New(consoleWriter(os.Stderr)).With().Timestamp().Logger()
	return &logger
}

// NewContext returns a copy of ctx carrying log.
func NewContext(ctx context.Context, log *zerolog.Logger) context.Context {
	return context.WithValue(ctx, LoggerKey, log)
}

// FromContext extracts the main logger from the context.
func FromContext(ctx context.Context) *zerolog.Logger {
	logger, ok := ctx.Value(LoggerKey).(*zerolog.Logger)
	if !ok {
		// Fallback to a default logger if none is found in the context.
		defaultLogger := zerolog.New(os.Stderr).With().Timestamp().Logger()
		defaultLogger.Error().Msg("Failed to extract logger from context")
		return &defaultLogger
	}
	return logger
}

// SetLevel parses logLevel, falling back to info, and applies it globally.
func SetLevel(logLevel string) zerolog.Level {
	level := getLogLevel(logLevel)
	zerolog.SetGlobalLevel(level)
	return level
}

// HandleWarnings logs configuration warnings.
func HandleWarnings(log *zerolog.Logger, warnings []string) {
	for _, warning := range warnings {
		log.Warn().Msg(warning)
	}
}

func openLogFile(dir, name string) (*os.File, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}
	f, err := os.OpenFile(filepath.Join(dir, name), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	return f, nil
}

func consoleWriter(out io.Writer) zerolog.ConsoleWriter {
	output := zerolog.ConsoleWriter{Out: out, TimeFormat: "2006-01-02 15:04:05"}

	// Customize the output for each log level
	output.FormatLevel = func(i interface{}) string {
		var l string
		if ll, ok := i.(string); ok {
			switch ll {
			case "debug":
				l = colorize(ll, 36) // cyan
			case "info":
				l = colorize(ll, 34) // blue
			case "warn":
				l = colorize(ll, 33) // yellow
			case "error":
				l = colorize(ll, 31) // red
			case "fatal":
				l = colorize(ll, 35) // magenta
			case "panic":
				l = colorize(ll, 41) // white on red background
			default:
				l = colorize(ll, 37) // white
			}
		} else {
			if i == nil {
				l = colorize("???", 37) // white
			} else {
				lStr := strings.ToUpper(fmt.Sprintf("%s", i))
				if len(lStr) > 3 {
					lStr = lStr[:3]
				}
				l = lStr
			}
		}
		return fmt.Sprintf("| %s |", l)
	}

	return output
}

// Helper function to get the log level
func getLogLevel(logLevel string) zerolog.Level {
	switch strings.ToLower(logLevel) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "fatal":
		return zerolog.FatalLevel
	case "panic":
		return zerolog.PanicLevel
	default:
		return zerolog.InfoLevel
	}
}

// Helper function to colorize text
func colorize(s string, color int) string {
	return fmt.Sprintf("\x1b[%dm%s\x1b[0m", color, s)
}
