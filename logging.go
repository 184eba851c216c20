package rtbvh

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

type Logger interface {
	DebugEnabled() bool
	SetDebug(enabled bool)
	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
}

// DefaultLogger writes through zap. The level is atomic so SetDebug is safe
// from any goroutine.
type DefaultLogger struct {
	level  zap.AtomicLevel
	prefix string
	base   *zap.Logger
	sugar  *zap.SugaredLogger
}

// NewDefaultLogger logs to stdout only.
func NewDefaultLogger(prefix string, debug bool) *DefaultLogger {
	cfg := DefaultConfig().Logging
	if debug {
		cfg.Level = "debug"
	}
	l, _ := NewLogger(prefix, cfg)
	return l
}

// NewLogger builds a console logger teed into a rotating file when
// cfg.File is set.
func NewLogger(prefix string, cfg LoggingConfig) (*DefaultLogger, error) {
	level := zap.NewAtomicLevelAt(parseLevel(cfg.Level))

	cores := []zapcore.Core{
		zapcore.NewCore(
			zapcore.NewConsoleEncoder(zapcore.EncoderConfig{
				TimeKey:          "time",
				LevelKey:         "level",
				NameKey:          "logger",
				MessageKey:       "msg",
				EncodeTime:       zapcore.TimeEncoderOfLayout("15:04:05.000"),
				EncodeLevel:      zapcore.CapitalColorLevelEncoder,
				EncodeName:       zapcore.FullNameEncoder,
				ConsoleSeparator: " ",
			}),
			zapcore.AddSync(os.Stdout),
			level,
		),
	}

	if cfg.File != "" {
		if cfg.MaxSizeMB < 0 || cfg.MaxBackups < 0 || cfg.MaxAgeDays < 0 {
			return nil, fmt.Errorf("invalid log rotation settings for %s", cfg.File)
		}
		writer := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   cfg.Compress,
			LocalTime:  true,
		}
		cores = append(cores, zapcore.NewCore(
			zapcore.NewConsoleEncoder(zapcore.EncoderConfig{
				TimeKey:          "time",
				LevelKey:         "level",
				NameKey:          "logger",
				MessageKey:       "msg",
				EncodeTime:       zapcore.ISO8601TimeEncoder,
				EncodeLevel:      zapcore.CapitalLevelEncoder,
				EncodeName:       zapcore.FullNameEncoder,
				ConsoleSeparator: " ",
			}),
			zapcore.AddSync(writer),
			level,
		))
	}

	base := zap.New(zapcore.NewTee(cores...))
	if prefix != "" {
		base = base.Named(prefix)
	}
	return &DefaultLogger{
		level:  level,
		prefix: prefix,
		base:   base,
		sugar:  base.Sugar(),
	}, nil
}

func parseLevel(level string) zapcore.Level {
	switch level {
	case "debug":
		return zapcore.DebugLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// Named returns a child logger sharing the level and outputs.
func (l *DefaultLogger) Named(name string) *DefaultLogger {
	base := l.base.Named(name)
	return &DefaultLogger{level: l.level, prefix: name, base: base, sugar: base.Sugar()}
}

func (l *DefaultLogger) DebugEnabled() bool {
	return l.level.Enabled(zapcore.DebugLevel)
}

func (l *DefaultLogger) SetDebug(enabled bool) {
	if enabled {
		l.level.SetLevel(zapcore.DebugLevel)
		return
	}
	l.level.SetLevel(zapcore.InfoLevel)
}

func (l *DefaultLogger) Debugf(format string, args ...any) {
	l.sugar.Debugf(format, args...)
}

func (l *DefaultLogger) Infof(format string, args ...any) {
	l.sugar.Infof(format, args...)
}

func (l *DefaultLogger) Warnf(format string, args ...any) {
	l.sugar.Warnf(format, args...)
}

func (l *DefaultLogger) Errorf(format string, args ...any) {
	l.sugar.Errorf(format, args...)
}

// Sync flushes buffered entries.
func (l *DefaultLogger) Sync() {
	_ = l.base.Sync()
}

type nopLogger struct{}

func NewNopLogger() Logger                                 { return &nopLogger{} }
func (n *nopLogger) DebugEnabled() bool                     { return false }
func (n *nopLogger) SetDebug(enabled bool)                  {}
func (n *nopLogger) Debugf(format string, args ...any)      {}
func (n *nopLogger) Infof(format string, args ...any)       {}
func (n *nopLogger) Warnf(format string, args ...any)       {}
func (n *nopLogger) Errorf(format string, args ...any)      {}
