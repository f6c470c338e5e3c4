package log

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Logger is the global logger. Component loggers derive from it, so Init
// must run before they are created.
var Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()

// Level is a log level name as accepted by zerolog ("debug", "info", ...)
type Level string

const (
	DebugLevel Level = "debug"
	InfoLevel  Level = "info"
	WarnLevel  Level = "warn"
	ErrorLevel Level = "error"
)

// Config holds logging configuration
type Config struct {
	Level      Level
	JSONOutput bool
	Output     io.Writer // defaults to stdout
}

// Init configures the global logger. Unknown levels fall back to info.
func Init(cfg Config) {
	level, err := zerolog.ParseLevel(strings.ToLower(string(cfg.Level)))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	output := cfg.Output
	if output == nil {
		output = os.Stdout
	}
	if !cfg.JSONOutput {
		output = zerolog.ConsoleWriter{Out: output, TimeFormat: time.RFC3339}
	}

	Logger = zerolog.New(output).With().Timestamp().Logger()
}

// WithComponent creates a child logger with component field
func WithComponent(component string) zerolog.Logger {
	return Logger.With().Str("component", component).Logger()
}

// WithConnector creates a child logger with connector field
func WithConnector(connector string) zerolog.Logger {
	return Logger.With().Str("component", "session").Str("connector", connector).Logger()
}

// Writer adapts a library that logs through an io.Writer, such as Raft's
// hclog output, to the structured log. A leading "[LEVEL]" tag in a line
// selects the zerolog level and is stripped from the message.
func Writer(component string) io.Writer {
	return &tagWriter{logger: WithComponent(component)}
}

type tagWriter struct {
	logger zerolog.Logger
}

var levelTags = map[string]zerolog.Level{
	"[TRACE]": zerolog.TraceLevel,
	"[DEBUG]": zerolog.DebugLevel,
	"[INFO]":  zerolog.InfoLevel,
	"[WARN]":  zerolog.WarnLevel,
	"[ERROR]": zerolog.ErrorLevel,
}

func (w *tagWriter) Write(p []byte) (int, error) {
	for _, line := range strings.Split(strings.TrimRight(string(p), "\n"), "\n") {
		level, msg := splitLevelTag(line)
		if msg == "" {
			continue
		}
		w.logger.WithLevel(level).Msg(msg)
	}
	return len(p), nil
}

// splitLevelTag finds the first "[LEVEL]" tag in line. Text before it is
// usually the library's own timestamp and is dropped.
func splitLevelTag(line string) (zerolog.Level, string) {
	for tag, level := range levelTags {
		if i := strings.Index(line, tag); i >= 0 {
			return level, strings.TrimSpace(line[i+len(tag):])
		}
	}
	return zerolog.InfoLevel, strings.TrimSpace(line)
}
