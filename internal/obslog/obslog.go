// Package obslog builds the zap loggers handed to every component at
// construction. Nothing in this package is a mutable global; Nop returns
// a discarding logger so a component never nil-panics if it's exercised
// ahead of explicit wiring (tests, early init).
package obslog

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Mode selects the encoder: human-readable console output for local runs,
// or structured JSON for shipping to a log sink.
type Mode int

const (
	ModeConsole Mode = iota
	ModeJSON
)

// New builds a *zap.SugaredLogger for the given mode and level.
func New(mode Mode, level zapcore.Level) *zap.SugaredLogger {
	var core zapcore.Core
	switch mode {
	case ModeJSON:
		cfg := zap.NewProductionEncoderConfig()
		cfg.TimeKey = "ts"
		cfg.EncodeTime = zapcore.ISO8601TimeEncoder
		core = zapcore.NewCore(zapcore.NewJSONEncoder(cfg), zapcore.AddSync(os.Stdout), level)
	default:
		cfg := zap.NewDevelopmentEncoderConfig()
		cfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		core = zapcore.NewCore(zapcore.NewConsoleEncoder(cfg), zapcore.AddSync(os.Stdout), level)
	}
	return zap.New(core).Sugar()
}

// Nop returns a logger that discards everything, for tests and components
// constructed without an explicit observer.
func Nop() *zap.SugaredLogger {
	return zap.NewNop().Sugar()
}
