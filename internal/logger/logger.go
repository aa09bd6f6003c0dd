// Package logger wraps zap behind a small interface so packages depend on
// structured logging without importing zap directly. An optional log file is
// rotated with lumberjack.
package logger

import (
	"os"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

type Logger interface {
	Debug(msg string, fields ...zap.Field)
	Info(msg string, fields ...zap.Field)
	Warn(msg string, fields ...zap.Field)
	Error(msg string, fields ...zap.Field)

	Debugf(template string, args ...interface{})
	Infof(template string, args ...interface{})
	Warnf(template string, args ...interface{})
	Errorf(template string, args ...interface{})

	Sync() error
}

type loggerImpl struct {
	base    *zap.Logger
	sugared *zap.SugaredLogger
}

// Options controls logger construction.
type Options struct {
	Level  string // "debug" | "info" | "warn" | "error"
	Pretty bool   // true => console encoder with colors, false => JSON
	File   string // optional log file, rotated; empty => stderr only
}

// New builds a Logger from options.
func New(opts Options) Logger {
	level := zapcore.InfoLevel
	if lvl := parseLevel(opts.Level); lvl != nil {
		level = *lvl
	}

	var encoder zapcore.Encoder
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	if opts.Pretty {
		devCfg := zap.NewDevelopmentEncoderConfig()
		devCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		encoder = zapcore.NewConsoleEncoder(devCfg)
	} else {
		encoder = zapcore.NewJSONEncoder(encCfg)
	}

	cores := []zapcore.Core{
		zapcore.NewCore(encoder, zapcore.Lock(os.Stderr), level),
	}
	if opts.File != "" {
		rotating := zapcore.AddSync(&lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    10, // MB
			MaxBackups: 3,
			MaxAge:     28, // days
		})
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), rotating, level))
	}

	base := zap.New(zapcore.NewTee(cores...), zap.AddStacktrace(zapcore.FatalLevel))
	return &loggerImpl{
		base:    base,
		sugared: base.Sugar(),
	}
}

// Nop returns a logger that discards everything. Useful in tests.
func Nop() Logger {
	base := zap.NewNop()
	return &loggerImpl{base: base, sugared: base.Sugar()}
}

func parseLevel(lvl string) *zapcore.Level {
	switch lvl {
	case "debug":
		l := zapcore.DebugLevel
		return &l
	case "info":
		l := zapcore.InfoLevel
		return &l
	case "warn":
		l := zapcore.WarnLevel
		return &l
	case "error":
		l := zapcore.ErrorLevel
		return &l
	default:
		return nil
	}
}

func (l *loggerImpl) Debug(msg string, fields ...zap.Field) { l.base.Debug(msg, fields...) }
func (l *loggerImpl) Info(msg string, fields ...zap.Field)  { l.base.Info(msg, fields...) }
func (l *loggerImpl) Warn(msg string, fields ...zap.Field)  { l.base.Warn(msg, fields...) }
func (l *loggerImpl) Error(msg string, fields ...zap.Field) { l.base.Error(msg, fields...) }

func (l *loggerImpl) Debugf(t string, args ...interface{}) { l.sugared.Debugf(t, args...) }
func (l *loggerImpl) Infof(t string, args ...interface{})  { l.sugared.Infof(t, args...) }
func (l *loggerImpl) Warnf(t string, args ...interface{})  { l.sugared.Warnf(t, args...) }
func (l *loggerImpl) Errorf(t string, args ...interface{}) { l.sugared.Errorf(t, args...) }

func (l *loggerImpl) Sync() error { return l.base.Sync() }

// Field constructors (re-exported from zap for convenience).
func String(key, val string) zap.Field                 { return zap.String(key, val) }
func Int(key string, val int) zap.Field                { return zap.Int(key, val) }
func Duration(key string, val time.Duration) zap.Field { return zap.Duration(key, val) }
func Error(err error) zap.Field                        { return zap.Error(err) }
