// Package logx provides the package-scoped structured loggers shared by the
// reactor, transport and filesystem packages. Every logger is a
// *logrus.Entry tagged with its owning component, so a single process can
// run multiple drivers/connections and still tell their log lines apart.
package logx

import "github.com/sirupsen/logrus"

var base = logrus.New()

func init() {
	base.SetLevel(logrus.WarnLevel)
}

// SetLevel adjusts the verbosity of every logger obtained from this package.
// Driver-level loop diagnostics are only emitted at DebugLevel or below.
func SetLevel(level logrus.Level) {
	base.SetLevel(level)
}

// For returns a component-scoped logger, e.g. For("reactor"), For("tcp").
func For(component string) *logrus.Entry {
	return base.WithField("component", component)
}
