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
	"testing"
	"time"

	"github.com/BurntSushi/toml"
	cerror "github.com/pingcap/shardflow/pkg/errors"
	"github.com/stretchr/testify/require"
)

func TestDefaultConsumerConfig(t *testing.T) {
	t.Parallel()

	cfg := GetDefaultConsumerConfig()
	cfg.ShardID = "shardId-000000000000"
	require.NoError(t, cfg.ValidateAndAdjust())
	require.Equal(t, ModeDisplay, cfg.Mode)
	require.Equal(t, uint64(10), cfg.Processor.RetryCount)
	require.Equal(t, 3*time.Second, time.Duration(cfg.Processor.BackoffInterval))
	require.Equal(t, time.Minute, time.Duration(cfg.Processor.CheckpointInterval))
	require.Equal(t, "time", cfg.RecordAge.TimeField)
	require.Equal(t, DefaultTimeFormat, cfg.RecordAge.TimeFormat)
	require.Equal(t, InitialPositionLatest, cfg.InitialPosition)
}

func TestDecodeConsumerConfig(t *testing.T) {
	t.Parallel()

	const content = `
mode = "Replicate"
region = "us-west-2"
source-table = "orders"
dest-table = "orders-replica"
shard-id = "shardId-00000001"
initial-position = "trim_horizon"

[processor]
retry-count = 3
backoff-interval = "500ms"
checkpoint-interval = "10s"

[checkpoint]
backend = "memory"

[log]
level = "warning"
`
	cfg := GetDefaultConsumerConfig()
	_, err := toml.Decode(content, cfg)
	require.NoError(t, err)
	require.NoError(t, cfg.ValidateAndAdjust())
	require.Equal(t, ModeReplicate, cfg.Mode)
	require.Equal(t, InitialPositionTrimHorizon, cfg.InitialPosition)
	require.Equal(t, uint64(3), cfg.Processor.RetryCount)
	require.Equal(t, 500*time.Millisecond, time.Duration(cfg.Processor.BackoffInterval))
	require.Equal(t, 10*time.Second, time.Duration(cfg.Processor.CheckpointInterval))
	require.Equal(t, CheckpointBackendMemory, cfg.Checkpoint.Backend)
	require.Equal(t, "warn", cfg.Log.Level)
	// sections that are not in the file keep their defaults
	require.Equal(t, int64(10000), cfg.Reader.MaxRecords)
}

func TestConsumerConfigValidate(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name   string
		modify func(*ConsumerConfig)
		errMsg string
	}{
		{"unknown mode", func(c *ConsumerConfig) { c.Mode = "mirror" }, "unknown mode"},
		{"missing stream", func(c *ConsumerConfig) { c.StreamName = "" }, "stream-name is required"},
		{"missing source table", func(c *ConsumerConfig) {
			c.Mode = ModeReplicate
			c.SourceTable = ""
		}, "source-table is required"},
		{"missing dest table", func(c *ConsumerConfig) {
			c.Mode = ModeStore
			c.DestTable = ""
		}, "dest-table is required"},
		{"missing shard", func(c *ConsumerConfig) { c.ShardID = "" }, "shard-id is required"},
		{"bad position", func(c *ConsumerConfig) { c.InitialPosition = "AT_TIMESTAMP" }, "unknown initial-position"},
		{"negative backoff", func(c *ConsumerConfig) {
			c.Processor.BackoffInterval = TomlDuration(-time.Second)
		}, "backoff-interval"},
		{"unknown backend", func(c *ConsumerConfig) { c.Checkpoint.Backend = "redis" }, "unknown checkpoint backend"},
		{"no etcd endpoints", func(c *ConsumerConfig) { c.Checkpoint.EtcdEndpoints = nil }, "etcd-endpoints"},
	}
	for _, tc := range testCases {
		cfg := GetDefaultConsumerConfig()
		cfg.ShardID = "shardId-000000000000"
		tc.modify(cfg)
		err := cfg.ValidateAndAdjust()
		require.Error(t, err, tc.name)
		require.True(t, cerror.Is(err, cerror.ErrInvalidConfig), tc.name)
		require.Contains(t, err.Error(), tc.errMsg, tc.name)
	}
}

func TestPartialSectionsUseDefaults(t *testing.T) {
	t.Parallel()

	const content = `
shard-id = "shardId-00000001"

[processor]
backoff-interval = "1s"
`
	cfg := GetDefaultConsumerConfig()
	_, err := toml.Decode(content, cfg)
	require.NoError(t, err)
	require.NoError(t, cfg.ValidateAndAdjust())
	require.Equal(t, uint64(10), cfg.Processor.RetryCount)
	require.Equal(t, time.Second, time.Duration(cfg.Processor.BackoffInterval))
	require.Equal(t, time.Minute, time.Duration(cfg.Processor.CheckpointInterval))
}

func TestZeroBackoffInterval(t *testing.T) {
	t.Parallel()

	const content = `
shard-id = "shardId-00000001"

[processor]
backoff-interval = "0s"
`
	cfg := GetDefaultConsumerConfig()
	_, err := toml.Decode(content, cfg)
	require.NoError(t, err)
	require.NoError(t, cfg.ValidateAndAdjust())
	require.Equal(t, time.Duration(0), time.Duration(cfg.Processor.BackoffInterval))
	require.Equal(t, uint64(10), cfg.Processor.RetryCount)
}

func TestProducerConfigValidate(t *testing.T) {
	t.Parallel()

	cfg := GetDefaultProducerConfig()
	require.NoError(t, cfg.ValidateAndAdjust())
	require.Equal(t, 3, cfg.RecordCount)
	require.Equal(t, time.Second, time.Duration(cfg.RecordInterval))

	cfg.RecordCount = 501
	require.Error(t, cfg.ValidateAndAdjust())

	cfg = GetDefaultProducerConfig()
	cfg.RecordInterval = 0
	require.Error(t, cfg.ValidateAndAdjust())

	cfg = GetDefaultProducerConfig()
	cfg.Target = ""
	require.NoError(t, cfg.ValidateAndAdjust())
	require.Equal(t, ProducerTargetStreams, cfg.Target)

	cfg = GetDefaultProducerConfig()
	cfg.Target = ProducerTargetFirehose
	cfg.StreamName = ""
	require.NoError(t, cfg.ValidateAndAdjust())

	testCases := []struct {
		name   string
		modify func(c *ProducerConfig)
		errMsg string
	}{
		{"unknown target", func(c *ProducerConfig) { c.Target = "sqs" }, "unknown producer target"},
		{"no delivery stream", func(c *ProducerConfig) {
			c.Target = ProducerTargetFirehose
			c.DeliveryStreamName = ""
		}, "delivery-stream-name"},
		{"pin firehose", func(c *ProducerConfig) {
			c.Target = ProducerTargetFirehose
			c.PinShards = true
		}, "pin-shards"},
	}
	for _, tc := range testCases {
		cfg := GetDefaultProducerConfig()
		tc.modify(cfg)
		err := cfg.ValidateAndAdjust()
		require.True(t, cerror.Is(err, cerror.ErrInvalidConfig), tc.name)
		require.Contains(t, err.Error(), tc.errMsg, tc.name)
	}
}

func TestTomlDurationJSON(t *testing.T) {
	t.Parallel()

	var d TomlDuration
	require.NoError(t, d.UnmarshalJSON([]byte("1500000000")))
	require.Equal(t, 1500*time.Millisecond, time.Duration(d))

	text, err := TomlDuration(3 * time.Second).MarshalText()
	require.NoError(t, err)
	require.Equal(t, "3s", string(text))
	require.Error(t, d.UnmarshalText([]byte("3 seconds")))
}
