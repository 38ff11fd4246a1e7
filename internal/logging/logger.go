// Package logging is a thin facade over logrus, giving the rest of the
// module a small structured-logging interface instead of a direct
// dependency on logrus types.
package logging

import (
	"io"

	"github.com/sirupsen/logrus"
)

// Logger is the narrow surface every component in this module logs
// through. New and Noop return an implementation backed by a *logrus.Entry.
type Logger interface {
	WithField(key string, value interface{}) Logger
	WithError(err error) Logger
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

type logrusLogger struct {
	entry *logrus.Entry
}

// New builds a Logger writing JSON-formatted entries to w at the given
// level name ("debug", "info", "warn", "error").
func New(w io.Writer, level string) Logger {
	base := logrus.New()
	base.SetOutput(w)
	base.SetFormatter(&logrus.JSONFormatter{})
	if lvl, err := logrus.ParseLevel(level); err == nil {
		base.SetLevel(lvl)
	}
	return logrusLogger{entry: logrus.NewEntry(base)}
}

func (l logrusLogger) WithField(key string, value interface{}) Logger {
	return logrusLogger{entry: l.entry.WithField(key, value)}
}

func (l logrusLogger) WithError(err error) Logger {
	return logrusLogger{entry: l.entry.WithError(err)}
}

func (l logrusLogger) Debugf(format string, args ...interface{}) { l.entry.Debugf(format, args...) }
func (l logrusLogger) Infof(format string, args ...interface{})  { l.entry.Infof(format, args...) }
func (l logrusLogger) Warnf(format string, args ...interface{})  { l.entry.Warnf(format, args...) }
func (l logrusLogger) Errorf(format string, args ...interface{}) { l.entry.Errorf(format, args...) }

// Noop returns a Logger that discards everything, for tests that don't
// want log noise but still need to satisfy the interface.
func Noop() Logger {
	base := logrus.New()
	base.SetOutput(io.Discard)
	return logrusLogger{entry: logrus.NewEntry(base)}
}
