// Package obs holds the ambient observability stack (structured
// logging and metrics) shared by every component, constructed once at
// startup and threaded through explicitly rather than kept as package
// globals mutated at init time.
package obs

import "go.uber.org/zap"

// NewLogger builds the process-wide logger. dev selects the
// human-readable console encoder (tests, local runs) versus the JSON
// production encoder.
func NewLogger(dev bool) (*zap.Logger, error) {
	if dev {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// NopLogger returns a logger that discards everything, for tests that
// don't care about log output.
func NopLogger() *zap.Logger {
	return zap.NewNop()
}
