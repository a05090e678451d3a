package log

import (
	"io"
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"moul.io/zapfilter"
)

type Logger struct {
	l     *zap.Logger
	level Level
}

var (
	std     = New(os.Stderr, InfoLevel)
	stdLock sync.RWMutex
)

func Default() *Logger {
	stdLock.RLock()
	defer stdLock.RUnlock()
	return std
}

// ResetDefault replaces the logger used by the package level functions.
// Not safe to call while other goroutines are logging via Default().
func ResetDefault(l *Logger) {
	stdLock.Lock()
	std = l
	stdLock.Unlock()
	Debug = std.Debug
	Info = std.Info
	Warn = std.Warn
	Error = std.Error
	DPanic = std.DPanic
	Panic = std.Panic
	Fatal = std.Fatal
}

var (
	Debug  = std.Debug
	Info   = std.Info
	Warn   = std.Warn
	Error  = std.Error
	DPanic = std.DPanic
	Panic  = std.Panic
	Fatal  = std.Fatal
)

type config struct {
	zapOpts []zap.Option
	filter  string
}

type Option func(*config)

func WithCaller(arg bool) Option {
	return func(c *config) {
		c.zapOpts = append(c.zapOpts, zap.WithCaller(arg))
	}
}

func AddCallerSkip(skip int) Option {
	return func(c *config) {
		c.zapOpts = append(c.zapOpts, zap.AddCallerSkip(skip))
	}
}

// WithFilter applies zapfilter rules, e.g. "*:predict,broadcast debug+:*"
func WithFilter(rules string) Option {
	return func(c *config) {
		c.filter = rules
	}
}

// New creates a json logger writing to out
func New(out io.Writer, level Level, opts ...Option) *Logger {
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.RFC3339TimeEncoder
	return newLogger(zapcore.NewJSONEncoder(encCfg), out, level, opts...)
}

// DevLogger creates a console logger writing to out
func DevLogger(out io.Writer, level Level, opts ...Option) *Logger {
	encCfg := zap.NewDevelopmentEncoderConfig()
	encCfg.EncodeTime = zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05.000")
	encCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
	return newLogger(zapcore.NewConsoleEncoder(encCfg), out, level, opts...)
}

//nolint:whitespace // editor/linter issue
func newLogger(
	enc zapcore.Encoder, out io.Writer, level Level, opts ...Option,
) *Logger {
	if out == nil {
		panic("the writer is nil")
	}
	cfg := &config{}
	for _, opt := range opts {
		opt(cfg)
	}
	var core zapcore.Core = zapcore.NewCore(enc, zapcore.AddSync(out), level)
	var filterErr error
	if cfg.filter != "" {
		var rules zapfilter.FilterFunc
		if rules, filterErr = zapfilter.ParseRules(cfg.filter); filterErr == nil {
			core = zapfilter.NewFilteringCore(core, rules)
		}
	}
	ret := &Logger{
		l:     zap.New(core, cfg.zapOpts...),
		level: level,
	}
	if filterErr != nil {
		ret.Warn("ignoring invalid log filter",
			String("filter", cfg.filter), ErrorField(filterErr))
	}
	return ret
}

func (l *Logger) Named(name string) *Logger {
	return &Logger{l: l.l.Named(name), level: l.level}
}

func (l *Logger) With(fields ...Field) *Logger {
	return &Logger{l: l.l.With(fields...), level: l.level}
}

func (l *Logger) Level() Level {
	return l.level
}

func (l *Logger) Debug(msg string, fields ...Field) {
	l.l.Debug(msg, fields...)
}

func (l *Logger) Info(msg string, fields ...Field) {
	l.l.Info(msg, fields...)
}

func (l *Logger) Warn(msg string, fields ...Field) {
	l.l.Warn(msg, fields...)
}

func (l *Logger) Error(msg string, fields ...Field) {
	l.l.Error(msg, fields...)
}

func (l *Logger) DPanic(msg string, fields ...Field) {
	l.l.DPanic(msg, fields...)
}

func (l *Logger) Panic(msg string, fields ...Field) {
	l.l.Panic(msg, fields...)
}

func (l *Logger) Fatal(msg string, fields ...Field) {
	l.l.Fatal(msg, fields...)
}

func (l *Logger) Sync() error {
	return l.l.Sync()
}

func Sync() error {
	return Default().Sync()
}
