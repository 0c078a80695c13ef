// Package xlog is a thin structured-logging wrapper following the
// field-tagged logrus usage in servo and ptp4u. No other package in
// this module imports it; they log through logrus directly.
package xlog

import (
	"os"
	"sync"

	"github.com/sirupsen/logrus"
)

var (
	base     *logrus.Logger
	baseOnce sync.Once
)

// Base returns the process-wide logrus.Logger, created once with a
// text formatter with full timestamps (logrus colors its output only
// when writing to a terminal, so piping to syslog stays plain text).
func Base() *logrus.Logger {
	baseOnce.Do(func() {
		base = logrus.New()
		base.SetOutput(os.Stderr)
		base.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
		base.SetLevel(logrus.InfoLevel)
	})
	return base
}

// For returns an entry tagged with a component name.
func For(component string) *logrus.Entry {
	return Base().WithField("component", component)
}

// SetLevel adjusts the base logger's verbosity, e.g. from a CLI flag.
func SetLevel(level logrus.Level) {
	Base().SetLevel(level)
}
