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

package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/pingcap/errors"
	cerror "github.com/pingcap/shardflow/pkg/errors"
	"github.com/pingcap/shardflow/pkg/logutil"
)

// Consumer modes.
const (
	// ModeDisplay parses every record as JSON and logs its age.
	ModeDisplay = "display"
	// ModeReplicate applies table change events to the destination table.
	ModeReplicate = "replicate"
	// ModeStore writes JSON records carrying the time field to the destination table.
	ModeStore = "store"
)

// Initial positions used when a shard has no checkpoint yet.
const (
	InitialPositionLatest      = "LATEST"
	InitialPositionTrimHorizon = "TRIM_HORIZON"
)

// Checkpoint backends.
const (
	CheckpointBackendEtcd   = "etcd"
	CheckpointBackendMemory = "memory"
)

const (
	// DefaultTimeFormat is the layout of the record time field.
	DefaultTimeFormat = "2006-01-02T15:04:05.000-07:00"
	// DefaultTimeField is the JSON field holding the record creation time.
	DefaultTimeField = "time"
)

// ProcessorConfig controls per-record retries and the checkpoint cadence.
type ProcessorConfig struct {
	RetryCount         uint64       `toml:"retry-count" json:"retry-count"`
	BackoffInterval    TomlDuration `toml:"backoff-interval" json:"backoff-interval"`
	CheckpointInterval TomlDuration `toml:"checkpoint-interval" json:"checkpoint-interval"`
}

// RecordAgeConfig controls the creation age logging of display mode and the
// time field checked by store mode.
type RecordAgeConfig struct {
	Enabled    bool   `toml:"enabled" json:"enabled"`
	TimeField  string `toml:"time-field" json:"time-field"`
	TimeFormat string `toml:"time-format" json:"time-format"`
}

// CheckpointConfig configs the checkpoint store.
type CheckpointConfig struct {
	Backend        string       `toml:"backend" json:"backend"`
	EtcdEndpoints  []string     `toml:"etcd-endpoints" json:"etcd-endpoints"`
	SessionTTL     int          `toml:"session-ttl" json:"session-ttl"`
	RequestTimeout TomlDuration `toml:"request-timeout" json:"request-timeout"`
}

// ReaderConfig configs how records are fetched from a shard.
type ReaderConfig struct {
	MaxRecords   int64        `toml:"max-records" json:"max-records"`
	IdleInterval TomlDuration `toml:"idle-interval" json:"idle-interval"`
}

// ConsumerConfig is the config of the consume command.
type ConsumerConfig struct {
	Mode            string `toml:"mode" json:"mode"`
	Region          string `toml:"region" json:"region"`
	Endpoint        string `toml:"endpoint" json:"endpoint"`
	StreamName      string `toml:"stream-name" json:"stream-name"`
	SourceTable     string `toml:"source-table" json:"source-table"`
	DestTable       string `toml:"dest-table" json:"dest-table"`
	ShardID         string `toml:"shard-id" json:"shard-id"`
	InitialPosition string `toml:"initial-position" json:"initial-position"`
	ApplicationName string `toml:"application-name" json:"application-name"`
	WorkerID        string `toml:"worker-id" json:"worker-id"`
	StatusAddr      string `toml:"status-addr" json:"status-addr"`

	Processor  *ProcessorConfig  `toml:"processor" json:"processor"`
	RecordAge  *RecordAgeConfig  `toml:"record-age" json:"record-age"`
	Checkpoint *CheckpointConfig `toml:"checkpoint" json:"checkpoint"`
	Reader     *ReaderConfig     `toml:"reader" json:"reader"`
	Log        *logutil.Config   `toml:"log" json:"log"`
}

// GetDefaultConsumerConfig returns the default consumer config.
func GetDefaultConsumerConfig() *ConsumerConfig {
	return &ConsumerConfig{
		Mode:            ModeDisplay,
		Region:          "ap-northeast-1",
		StreamName:      "tokyo-stream-1",
		SourceTable:     "access-log",
		DestTable:       "access-log-replica",
		InitialPosition: InitialPositionLatest,
		ApplicationName: "shardflow",
		StatusAddr:      "127.0.0.1:8400",
		Processor: &ProcessorConfig{
			RetryCount:         10,
			BackoffInterval:    TomlDuration(3 * time.Second),
			CheckpointInterval: TomlDuration(60 * time.Second),
		},
		RecordAge: &RecordAgeConfig{
			TimeField:  DefaultTimeField,
			TimeFormat: DefaultTimeFormat,
		},
		Checkpoint: &CheckpointConfig{
			Backend:        CheckpointBackendEtcd,
			EtcdEndpoints:  []string{"127.0.0.1:2379"},
			SessionTTL:     10,
			RequestTimeout: TomlDuration(5 * time.Second),
		},
		Reader: &ReaderConfig{
			MaxRecords:   10000,
			IdleInterval: TomlDuration(time.Second),
		},
		Log: &logutil.Config{Level: "info"},
	}
}

// ValidateAndAdjust validates and adjusts the consumer configuration
func (c *ConsumerConfig) ValidateAndAdjust() error {
	defaultCfg := GetDefaultConsumerConfig()

	c.Mode = strings.ToLower(strings.TrimSpace(c.Mode))
	switch c.Mode {
	case ModeDisplay, ModeStore:
		if c.StreamName == "" {
			return invalidConfig("stream-name is required in %s mode", c.Mode)
		}
	case ModeReplicate:
		if c.SourceTable == "" {
			return invalidConfig("source-table is required in %s mode", c.Mode)
		}
	default:
		return invalidConfig("unknown mode %q", c.Mode)
	}
	if c.Mode != ModeDisplay && c.DestTable == "" {
		return invalidConfig("dest-table is required in %s mode", c.Mode)
	}
	if c.ShardID == "" {
		return invalidConfig("shard-id is required")
	}
	if c.Region == "" {
		c.Region = defaultCfg.Region
	}
	if c.ApplicationName == "" {
		c.ApplicationName = defaultCfg.ApplicationName
	}

	c.InitialPosition = strings.ToUpper(strings.TrimSpace(c.InitialPosition))
	switch c.InitialPosition {
	case "":
		c.InitialPosition = defaultCfg.InitialPosition
	case InitialPositionLatest, InitialPositionTrimHorizon:
	default:
		return invalidConfig("unknown initial-position %q", c.InitialPosition)
	}

	if c.Processor == nil {
		c.Processor = defaultCfg.Processor
	}
	if err := c.Processor.ValidateAndAdjust(); err != nil {
		return errors.Trace(err)
	}
	if c.RecordAge == nil {
		c.RecordAge = defaultCfg.RecordAge
	}
	c.RecordAge.adjust()
	if c.Checkpoint == nil {
		c.Checkpoint = defaultCfg.Checkpoint
	}
	if err := c.Checkpoint.ValidateAndAdjust(); err != nil {
		return errors.Trace(err)
	}
	if c.Reader == nil {
		c.Reader = defaultCfg.Reader
	}
	c.Reader.adjust()
	if c.Log == nil {
		c.Log = defaultCfg.Log
	}
	c.Log.Adjust()
	return nil
}

// ValidateAndAdjust fills a zero retry count or checkpoint interval with
// defaults and rejects negative intervals. A zero backoff interval retries
// without waiting.
func (c *ProcessorConfig) ValidateAndAdjust() error {
	defaultCfg := GetDefaultConsumerConfig().Processor
	if c.RetryCount == 0 {
		c.RetryCount = defaultCfg.RetryCount
	}
	if c.BackoffInterval < 0 {
		return invalidConfig("backoff-interval must not be negative")
	}
	if c.CheckpointInterval < 0 {
		return invalidConfig("checkpoint-interval must not be negative")
	}
	if c.CheckpointInterval == 0 {
		c.CheckpointInterval = defaultCfg.CheckpointInterval
	}
	return nil
}

func (c *RecordAgeConfig) adjust() {
	if c.TimeField == "" {
		c.TimeField = DefaultTimeField
	}
	if c.TimeFormat == "" {
		c.TimeFormat = DefaultTimeFormat
	}
}

// ValidateAndAdjust verifies that each parameter is valid.
func (c *CheckpointConfig) ValidateAndAdjust() error {
	c.Backend = strings.ToLower(strings.TrimSpace(c.Backend))
	switch c.Backend {
	case "":
		c.Backend = CheckpointBackendEtcd
	case CheckpointBackendEtcd, CheckpointBackendMemory:
	default:
		return invalidConfig("unknown checkpoint backend %q", c.Backend)
	}
	if c.Backend == CheckpointBackendEtcd && len(c.EtcdEndpoints) == 0 {
		return invalidConfig("etcd-endpoints is required by the etcd checkpoint backend")
	}
	if c.SessionTTL <= 0 {
		c.SessionTTL = 10
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = TomlDuration(5 * time.Second)
	}
	return nil
}

func (c *ReaderConfig) adjust() {
	// GetRecords accepts at most 10000 records per call.
	if c.MaxRecords <= 0 || c.MaxRecords > 10000 {
		c.MaxRecords = 10000
	}
	if c.IdleInterval <= 0 {
		c.IdleInterval = TomlDuration(time.Second)
	}
}

func invalidConfig(format string, args ...interface{}) error {
	return cerror.ErrInvalidConfig.GenWithStackByArgs(fmt.Sprintf(format, args...))
}
