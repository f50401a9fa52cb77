// Package log provides the structured logging facade used throughout the
// collective-share library. It is a thin wrapper around zap that gives
// every component a named, leveled logger without pulling zap's
// construction API into call sites.
package log

import (
	"io"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Level is a logging level, independent of zap's so that callers never
// need to import zapcore directly.
type Level int8

const (
	LevelDebug Level = iota - 1
	LevelInfo
	LevelWarn
	LevelError
)

func (l Level) zapLevel() zapcore.Level {
	return zapcore.Level(l)
}

// Format selects the on-wire encoding of log lines.
type Format uint8

const (
	FormatUnstructured Format = iota
	FormatJSON
)

// Logger wraps a zap.SugaredLogger, adding Named child-logger
// construction ergonomics matching the rest of the call sites in this
// module (logger.New("TOPOLOGY")).
type Logger struct {
	s *zap.SugaredLogger
}

// DiscardLogger is a Logger that drops everything written to it.
var DiscardLogger = NewNoOp()

// NewNoOp returns a Logger that discards all output.
func NewNoOp() Logger {
	return Logger{s: zap.NewNop().Sugar()}
}

type options struct {
	writer io.Writer
	level  Level
	format Format
}

// Option configures a Logger constructed with New.
type Option func(*options)

// WithWriter sets the destination for log output. Defaults to os.Stderr.
func WithWriter(w io.Writer) Option {
	return func(o *options) { o.writer = w }
}

// WithLevel sets the minimum level that is emitted. Defaults to LevelInfo.
func WithLevel(lvl Level) Option {
	return func(o *options) { o.level = lvl }
}

// WithFormat selects unstructured (console) or JSON encoding. Defaults to
// FormatUnstructured.
func WithFormat(f Format) Option {
	return func(o *options) { o.format = f }
}

// New constructs a Logger from functional options, e.g.:
//
//	log.New(log.WithWriter(os.Stdout), log.WithLevel(log.LevelDebug), log.WithFormat(log.FormatJSON))
func New(opts ...Option) Logger {
	o := &options{writer: os.Stderr, level: LevelInfo, format: FormatUnstructured}
	for _, opt := range opts {
		opt(o)
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "time"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var enc zapcore.Encoder
	switch o.format {
	case FormatJSON:
		enc = zapcore.NewJSONEncoder(encCfg)
	default:
		encCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		enc = zapcore.NewConsoleEncoder(encCfg)
	}

	core := zapcore.NewCore(enc, zapcore.AddSync(o.writer), o.level.zapLevel())
	return Logger{s: zap.New(core).Sugar()}
}

// New returns a named child logger, the same convention used for
// per-subsystem loggers (e.g. logger.New("TOPOLOGY")).
func (l Logger) New(name string) Logger {
	return l.Named(name)
}

// Named returns a child logger tagged with name.
func (l Logger) Named(name string) Logger {
	return Logger{s: l.s.Named(name)}
}

// With returns a child logger carrying the given key-value pairs on every
// subsequent line.
func (l Logger) With(keysAndValues ...any) Logger {
	return Logger{s: l.s.With(keysAndValues...)}
}

func (l Logger) Debug(msg string, keysAndValues ...any) { l.s.Debugw(msg, keysAndValues...) }
func (l Logger) Info(msg string, keysAndValues ...any)  { l.s.Infow(msg, keysAndValues...) }
func (l Logger) Warn(msg string, keysAndValues ...any)  { l.s.Warnw(msg, keysAndValues...) }
func (l Logger) Error(msg string, keysAndValues ...any) { l.s.Errorw(msg, keysAndValues...) }

func (l Logger) Debugf(template string, args ...any) { l.s.Debugf(template, args...) }
func (l Logger) Infof(template string, args ...any)  { l.s.Infof(template, args...) }
func (l Logger) Warnf(template string, args ...any)  { l.s.Warnf(template, args...) }
func (l Logger) Errorf(template string, args ...any) { l.s.Errorf(template, args...) }

// Sync flushes any buffered log entries. Call before process exit.
func (l Logger) Sync() error {
	return l.s.Sync()
}
