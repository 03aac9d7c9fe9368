package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// LogLevel constants
const (
	LogLevelError = "error"
	LogLevelWarn  = "warn"
	LogLevelInfo  = "info"
	LogLevelDebug = "debug"
	LogLevelTrace = "trace"
)

// Output formats
const (
	FormatConsole = "console"
	FormatJSON    = "json"
)

// LoggingConfig represents the logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	File   string `yaml:"file"`
	Format string `yaml:"format"` // console (default) or json
}

var (
	mu     sync.RWMutex
	base   = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).With().Timestamp().Logger()
	closer io.Closer

	// GlobalLogging is the configuration the package was last initialised with
	GlobalLogging *LoggingConfig
)

// Init configures the global logger from config.
// Unknown levels fall back to info. A log file that cannot be opened falls back to stdout.
func Init(config *LoggingConfig) {
	mu.Lock()
	defer mu.Unlock()

	if closer != nil {
		closer.Close()
		closer = nil
	}

	var output io.Writer = os.Stdout
	if config.File != "" {
		// Use 0600 permissions (owner read/write only) for security
		f, err := os.OpenFile(config.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open log file %s: %v\n", config.File, err)
		} else {
			output = f
			closer = f
		}
	}

	if strings.ToLower(config.Format) != FormatJSON {
		output = zerolog.ConsoleWriter{Out: output, TimeFormat: time.RFC3339, NoColor: config.File != ""}
	}

	base = zerolog.New(output).Level(parseLevel(config.Level)).With().Timestamp().Logger()
	GlobalLogging = config
}

// SetOutput redirects the global logger, keeping the current level. Used by tests.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	base = base.Output(w)
}

// L returns the underlying structured logger
func L() *zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	l := base
	return &l
}

// parseLevel maps a configured level name to zerolog, defaulting to info
func parseLevel(level string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case LogLevelError:
		return zerolog.ErrorLevel
	case LogLevelWarn, "warning":
		return zerolog.WarnLevel
	case LogLevelDebug:
		return zerolog.DebugLevel
	case LogLevelTrace:
		return zerolog.TraceLevel
	default:
		return zerolog.InfoLevel
	}
}

// LogStartup logs startup messages that should always be visible regardless of log level
func LogStartup(format string, args ...interface{}) {
	l := L()
	l.Log().Msgf("🔧 "+format, args...)
}

// Helper functions for global logging
func LogError(format string, args ...interface{}) {
	L().Error().Msgf(format, args...)
}

func LogWarn(format string, args ...interface{}) {
	L().Warn().Msgf(format, args...)
}

func LogInfo(format string, args ...interface{}) {
	L().Info().Msgf(format, args...)
}

func LogDebug(format string, args ...interface{}) {
	L().Debug().Msgf(format, args...)
}

func LogTrace(format string, args ...interface{}) {
	L().Trace().Msgf(format, args...)
}

// LogFields emits one structured line with the given key/value fields
func LogFields(level string, msg string, fields map[string]interface{}) {
	l := L()
	l.WithLevel(parseLevel(level)).Fields(fields).Msg(msg)
}
