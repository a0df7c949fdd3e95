// Package log provides structured, colored logging for the consolidator.
package log

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/term"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger is the global logger instance.
var Logger zerolog.Logger

// Component loggers for different parts of the system.
var (
	Consolidate zerolog.Logger
	RPC         zerolog.Logger
	Node        zerolog.Logger
	Storage     zerolog.Logger
	Daemon      zerolog.Logger
)

// FileOptions controls the rotated JSON log file.
type FileOptions struct {
	Path       string
	MaxSizeMB  int // Rotate after this many megabytes.
	MaxBackups int // Old files to keep (0 = all).
	MaxAgeDays int // Days to keep old files (0 = forever).
}

// fileSink is the open rotated file, if any.
var fileSink *lumberjack.Logger

func init() {
	Logger = NewConsoleLogger(os.Stdout, "info")
	initComponentLoggers()
}

// Init initializes the logger with the given configuration.
// When file.Path is non-empty, logs are written to both the console (colored
// or JSON depending on jsonOutput) and the rotated file (always JSON).
func Init(level string, jsonOutput bool, file FileOptions) error {
	if fileSink != nil {
		fileSink.Close()
		fileSink = nil
	}

	var consoleWriter io.Writer
	if jsonOutput {
		consoleWriter = os.Stdout
	} else {
		consoleWriter = consoleOutput(os.Stdout)
	}

	if file.Path != "" {
		fileSink = &lumberjack.Logger{
			Filename:   file.Path,
			MaxSize:    file.MaxSizeMB,
			MaxBackups: file.MaxBackups,
			MaxAge:     file.MaxAgeDays,
		}
		// Open eagerly so a bad path fails startup instead of the first write.
		if _, err := fileSink.Write(nil); err != nil {
			fileSink = nil
			return err
		}
		consoleWriter = zerolog.MultiLevelWriter(consoleWriter, fileSink)
	}

	Logger = zerolog.New(consoleWriter).
		Level(parseLevel(level)).
		With().
		Timestamp().
		Logger()

	initComponentLoggers()
	return nil
}

// Close flushes and closes the log file, if one is open.
func Close() error {
	if fileSink == nil {
		return nil
	}
	err := fileSink.Close()
	fileSink = nil
	return err
}

// NewConsoleLogger creates a console logger. Colors are only emitted when w
// is a terminal.
func NewConsoleLogger(w io.Writer, level string) zerolog.Logger {
	return zerolog.New(consoleOutput(w)).
		Level(parseLevel(level)).
		With().
		Timestamp().
		Logger()
}

// NewJSONLogger creates a structured JSON logger.
func NewJSONLogger(w io.Writer, level string) zerolog.Logger {
	return zerolog.New(w).
		Level(parseLevel(level)).
		With().
		Timestamp().
		Logger()
}

func consoleOutput(w io.Writer) zerolog.ConsoleWriter {
	return zerolog.ConsoleWriter{
		Out:        w,
		TimeFormat: "15:04:05",
		NoColor:    !isTerminal(w),
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// parseLevel converts a string level to zerolog.Level.
func parseLevel(level string) zerolog.Level {
	switch level {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// ValidLevel reports whether level is one Init understands.
func ValidLevel(level string) bool {
	switch level {
	case "debug", "info", "warn", "error":
		return true
	}
	return false
}

func initComponentLoggers() {
	Consolidate = Logger.With().Str("component", "consolidate").Logger()
	RPC = Logger.With().Str("component", "rpc").Logger()
	Node = Logger.With().Str("component", "node").Logger()
	Storage = Logger.With().Str("component", "storage").Logger()
	Daemon = Logger.With().Str("component", "daemon").Logger()
}

// WithComponent returns a logger with a component field.
func WithComponent(name string) zerolog.Logger {
	return Logger.With().Str("component", name).Logger()
}

// SetOutput redirects the global logger to w as JSON. Used by tests that
// assert on log lines.
func SetOutput(w io.Writer, level string) {
	Logger = NewJSONLogger(w, level)
	initComponentLoggers()
}

// Benchmark helper for timing operations.
func Benchmark(name string) func() {
	start := time.Now()
	return func() {
		Logger.Debug().
			Str("operation", name).
			Dur("duration", time.Since(start)).
			Msg("benchmark")
	}
}
