// Package logger provides process-wide logging for docqa.
//
// The CLI only prints warnings unless --verbose is set, which enables the
// debug trail of the ingestion and query pipelines. Long running commands
// (serve, mcp, watch) switch to info level and may select JSON output.
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Format names accepted by Configure.
const (
	FormatConsole = "console"
	FormatJSON    = "json"
)

var (
	mu      sync.RWMutex
	verbose bool
	output  io.Writer = os.Stderr
	format            = FormatConsole
	level             = zap.NewAtomicLevelAt(zapcore.WarnLevel)
	base              = build()
)

// Options configures the global logger.
type Options struct {
	// Level is one of debug, info, warn, error. Empty keeps the current level.
	Level string

	// Format is console or json. Empty keeps the current format.
	Format string
}

// Configure applies options to the global logger.
func Configure(opts Options) error {
	mu.Lock()
	defer mu.Unlock()

	if opts.Level != "" {
		var lvl zapcore.Level
		if err := lvl.UnmarshalText([]byte(strings.ToLower(opts.Level))); err != nil {
			return fmt.Errorf("invalid log level %q: %w", opts.Level, err)
		}
		level.SetLevel(lvl)
		verbose = lvl <= zapcore.DebugLevel
	}
	if opts.Format != "" {
		switch opts.Format {
		case FormatConsole, FormatJSON:
			format = opts.Format
		default:
			return fmt.Errorf("invalid log format %q", opts.Format)
		}
	}
	base = build()
	return nil
}

// build creates the zap logger for the current settings (caller must hold lock).
func build() *zap.Logger {
	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "ts"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var encoder zapcore.Encoder
	if format == FormatJSON {
		encoder = zapcore.NewJSONEncoder(encoderCfg)
	} else {
		encoderCfg.EncodeLevel = zapcore.CapitalLevelEncoder
		encoder = zapcore.NewConsoleEncoder(encoderCfg)
	}

	core := zapcore.NewCore(encoder, zapcore.AddSync(output), level)
	return zap.New(core)
}

// SetVerbose enables or disables debug logging.
func SetVerbose(v bool) {
	mu.Lock()
	defer mu.Unlock()
	verbose = v
	if v {
		level.SetLevel(zapcore.DebugLevel)
	} else {
		level.SetLevel(zapcore.WarnLevel)
	}
}

// IsVerbose returns true if verbose mode is enabled.
func IsVerbose() bool {
	mu.RLock()
	defer mu.RUnlock()
	return verbose
}

// SetOutput sets the output writer.
// Defaults to os.Stderr. Useful for testing.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	output = w
	base = build()
}

// L returns the underlying zap logger for structured fields.
func L() *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return base
}

// Sync flushes buffered entries.
func Sync() {
	_ = L().Sync()
}

// Debug logs a formatted message at debug level.
func Debug(format string, args ...any) {
	L().Sugar().Debugf(format, args...)
}

// Section logs a pipeline stage header at debug level.
func Section(name string) {
	L().Debug("=== " + name + " ===")
}

// Info logs a formatted message at info level.
func Info(format string, args ...any) {
	L().Sugar().Infof(format, args...)
}

// Warn logs a formatted message at warn level.
func Warn(format string, args ...any) {
	L().Sugar().Warnf(format, args...)
}

// Error logs a formatted message at error level.
func Error(format string, args ...any) {
	L().Sugar().Errorf(format, args...)
}
