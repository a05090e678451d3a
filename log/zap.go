package log

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type (
	Level = zapcore.Level
	Field = zap.Field
)

const (
	DebugLevel  = zapcore.DebugLevel
	InfoLevel   = zapcore.InfoLevel
	WarnLevel   = zapcore.WarnLevel
	ErrorLevel  = zapcore.ErrorLevel
	DPanicLevel = zapcore.DPanicLevel
	PanicLevel  = zapcore.PanicLevel
	FatalLevel  = zapcore.FatalLevel
)

var (
	Skip       = zap.Skip
	Binary     = zap.Binary
	Bool       = zap.Bool
	ByteString = zap.ByteString
	Float64    = zap.Float64
	Float32    = zap.Float32
	Int        = zap.Int
	Int64      = zap.Int64
	Int32      = zap.Int32
	Uint64     = zap.Uint64
	Uint32     = zap.Uint32
	String     = zap.String
	Strings    = zap.Strings
	Time       = zap.Time
	Duration   = zap.Duration
	Any        = zap.Any
	ErrorField = zap.Error
)

func ParseLevel(text string) (Level, error) {
	return zapcore.ParseLevel(text)
}
