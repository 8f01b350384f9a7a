// Package logging builds the console logger and defines the logging
// interface the pipeline components accept.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/log"
)

// Logger is the logging collaborator injected into every component.
// *log.Logger from charmbracelet/log satisfies it.
type Logger interface {
	Debug(msg interface{}, keyvals ...interface{})
	Info(msg interface{}, keyvals ...interface{})
	Warn(msg interface{}, keyvals ...interface{})
	Error(msg interface{}, keyvals ...interface{})
}

// Setup creates a logger writing to w (stderr when nil).
// level: debug, info, warn, error. format: text, json, logfmt.
func Setup(level, format string, w io.Writer) *log.Logger {
	if w == nil {
		w = os.Stderr
	}
	return log.NewWithOptions(w, log.Options{
		Level:           parseLevel(level),
		Formatter:       parseFormat(format),
		ReportTimestamp: true,
		TimeFormat:      time.DateTime,
		Prefix:          "4n6timeliner",
	})
}

// Discard returns a logger that drops everything.
func Discard() *log.Logger {
	return log.NewWithOptions(io.Discard, log.Options{Level: log.FatalLevel})
}

func parseLevel(level string) log.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return log.DebugLevel
	case "warn", "warning":
		return log.WarnLevel
	case "error":
		return log.ErrorLevel
	default:
		return log.InfoLevel
	}
}

func parseFormat(format string) log.Formatter {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "json":
		return log.JSONFormatter
	case "logfmt":
		return log.LogfmtFormatter
	default:
		return log.TextFormatter
	}
}
