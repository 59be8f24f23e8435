// Package logging builds the logrus logger shared by every pipeline component.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// New creates a logger writing to stdout. Supported levels: debug, info, warn, error.
// format "json" selects the JSON formatter, anything else the text formatter.
func New(level, format string, verbose bool) *logrus.Logger {
	return newWithOutput(os.Stdout, level, format, verbose)
}

func newWithOutput(w io.Writer, level, format string, verbose bool) *logrus.Logger {
	l := logrus.New()
	l.SetOutput(w)
	l.SetLevel(parseLevel(level))
	if verbose {
		l.SetLevel(logrus.DebugLevel)
	}

	if strings.EqualFold(strings.TrimSpace(format), "json") {
		l.SetFormatter(&logrus.JSONFormatter{})
	} else {
		l.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "15:04:05",
		})
	}
	return l
}

func parseLevel(s string) logrus.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return logrus.DebugLevel
	case "warn", "warning":
		return logrus.WarnLevel
	case "error":
		return logrus.ErrorLevel
	default:
		return logrus.InfoLevel
	}
}

// Discard returns a logger that drops everything. Used by tests and library callers.
func Discard() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

// WithComponent returns an entry tagged with the component name.
func WithComponent(l logrus.FieldLogger, component string) *logrus.Entry {
	return l.WithField("component", component)
}

// WithSegment returns an entry tagged with a segment index.
func WithSegment(l logrus.FieldLogger, idx int) *logrus.Entry {
	return l.WithField("segment", idx)
}
