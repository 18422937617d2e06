// Package logging builds the zap logger used by the CLI and service and
// adapts it to types.Logger.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/goliatone/go-profilesync/pkg/types"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Config controls log level and outputs.
type Config struct {
	// Level is one of debug, info, warn, error (default info).
	Level string
	// File enables a rotated JSON log file when set.
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
	// Console receives human-readable output; defaults to stderr.
	Console io.Writer
	// Quiet disables console output.
	Quiet bool
}

// New builds a logger with a console core and, when File is set, a
// lumberjack-rotated JSON core.
func New(cfg Config) *zap.Logger {
	level := ParseLevel(cfg.Level)
	var cores []zapcore.Core

	if !cfg.Quiet {
		console := cfg.Console
		if console == nil {
			console = os.Stderr
		}
		cores = append(cores, zapcore.NewCore(
			zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig()),
			zapcore.AddSync(console),
			level,
		))
	}

	if strings.TrimSpace(cfg.File) != "" {
		encoderConfig := zap.NewProductionEncoderConfig()
		encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		cores = append(cores, zapcore.NewCore(
			zapcore.NewJSONEncoder(encoderConfig),
			zapcore.AddSync(&lumberjack.Logger{
				Filename:   cfg.File,
				MaxSize:    orDefault(cfg.MaxSizeMB, 100),
				MaxBackups: orDefault(cfg.MaxBackups, 5),
				MaxAge:     orDefault(cfg.MaxAgeDays, 7),
				Compress:   cfg.Compress,
			}),
			level,
		))
	}

	if len(cores) == 0 {
		return zap.NewNop()
	}
	return zap.New(zapcore.NewTee(cores...), zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel))
}

// ParseLevel converts a level name, falling back to info.
func ParseLevel(level string) zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// Adapt exposes a zap logger through types.Logger. Fields are alternating
// key/value pairs.
func Adapt(logger *zap.Logger) types.Logger {
	if logger == nil {
		return types.NopLogger{}
	}
	return zapLogger{sugar: logger.WithOptions(zap.AddCallerSkip(1)).Sugar()}
}

type zapLogger struct {
	sugar *zap.SugaredLogger
}

func (l zapLogger) Debug(msg string, fields ...any) {
	l.sugar.Debugw(msg, fields...)
}

func (l zapLogger) Info(msg string, fields ...any) {
	l.sugar.Infow(msg, fields...)
}

func (l zapLogger) Error(msg string, err error, fields ...any) {
	if err != nil {
		fields = append(fields, zap.Error(err))
	}
	l.sugar.Errorw(msg, fields...)
}

func orDefault(value, fallback int) int {
	if value <= 0 {
		return fallback
	}
	return value
}
