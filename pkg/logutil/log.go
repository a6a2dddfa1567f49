// Copyright 2026 PingCAP, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// See the License for the specific language governing permissions and
// limitations under the License.

package logutil

import (
	"context"
	"strings"

	"github.com/pingcap/errors"
	"github.com/pingcap/log"
	cerror "github.com/pingcap/shardflow/pkg/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const defaultLogLevel = "info"

// Config serializes log related config in toml/json.
type Config struct {
	// Log level.
	Level string `toml:"level" json:"level"`
	// Log filename, leave empty to disable file log.
	File string `toml:"file" json:"file"`
	// Max size for a single file, in MB.
	FileMaxSize int `toml:"max-size" json:"max-size"`
	// Max log keep days, default is never deleting.
	FileMaxDays int `toml:"max-days" json:"max-days"`
	// Maximum number of old log files to retain.
	FileMaxBackups int `toml:"max-backups" json:"max-backups"`
}

// Adjust adjusts config
func (cfg *Config) Adjust() {
	cfg.Level = strings.ToLower(strings.TrimSpace(cfg.Level))
	if len(cfg.Level) == 0 {
		cfg.Level = defaultLogLevel
	}
	if cfg.Level == "warning" {
		cfg.Level = "warn"
	}
}

// SetLogLevel changes the global log level dynamically.
func SetLogLevel(level string) error {
	oldLevel := log.GetLevel()
	var lv zapcore.Level
	if err := lv.UnmarshalText([]byte(level)); err != nil {
		return cerror.WrapError(cerror.ErrInvalidConfig, err, "log level "+level)
	}
	if lv != oldLevel {
		log.SetLevel(lv)
		log.Info("log level changed",
			zap.Stringer("old", oldLevel), zap.Stringer("new", lv))
	}
	return nil
}

// loggerOp is the op for logger control
type loggerOp struct {
	outputWriteSyncer zapcore.WriteSyncer
}

func (op *loggerOp) applyOpts(opts []LoggerOpt) {
	for _, opt := range opts {
		opt(op)
	}
}

// LoggerOpt is the logger option
type LoggerOpt func(*loggerOp)

// WithOutputWriteSyncer will replace the WriteSyncer of global logger with customized WriteSyncer
// Easy for test when using zaptest.Buffer as WriteSyncer
func WithOutputWriteSyncer(output zapcore.WriteSyncer) LoggerOpt {
	return func(op *loggerOp) {
		op.outputWriteSyncer = output
	}
}

// InitLogger initializes logger
func InitLogger(cfg *Config, opts ...LoggerOpt) error {
	cfg.Adjust()
	var op loggerOp
	op.applyOpts(opts)

	pclogConfig := &log.Config{
		Level: cfg.Level,
		File: log.FileLogConfig{
			Filename:   cfg.File,
			MaxSize:    cfg.FileMaxSize,
			MaxDays:    cfg.FileMaxDays,
			MaxBackups: cfg.FileMaxBackups,
		},
	}

	var (
		lg    *zap.Logger
		props *log.ZapProperties
		err   error
	)
	if op.outputWriteSyncer != nil {
		lg, props, err = log.InitLoggerWithWriteSyncer(
			pclogConfig, op.outputWriteSyncer, op.outputWriteSyncer)
	} else {
		lg, props, err = log.InitLogger(pclogConfig)
	}
	if err != nil {
		return errors.Trace(err)
	}
	log.ReplaceGlobals(lg, props)
	return nil
}

// ZapErrorFilter wraps zap.Error, if err is in given filterErrors, it will be set to nil
func ZapErrorFilter(err error, filterErrors ...error) zap.Field {
	cause := errors.Cause(err)
	for _, ferr := range filterErrors {
		if cause == ferr {
			return zap.Error(nil)
		}
	}
	return zap.Error(err)
}

type loggerKey struct{}

// NewContextWithLogger returns a context carrying the given logger.
func NewContextWithLogger(ctx context.Context, logger *zap.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}

// FromContext returns the logger carried by ctx, or the global logger.
func FromContext(ctx context.Context) *zap.Logger {
	if ctx == nil {
		return log.L()
	}
	if logger, ok := ctx.Value(loggerKey{}).(*zap.Logger); ok {
		return logger
	}
	return log.L()
}
