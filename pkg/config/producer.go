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
	"time"

	"github.com/pingcap/shardflow/pkg/logutil"
)

// Targets of the produce command.
const (
	ProducerTargetStreams  = "streams"
	ProducerTargetFirehose = "firehose"
)

// ProducerConfig is the config of the produce command.
type ProducerConfig struct {
	Region   string `toml:"region" json:"region"`
	Endpoint string `toml:"endpoint" json:"endpoint"`
	// Target is either a Kinesis data stream or a Firehose delivery stream.
	Target             string       `toml:"target" json:"target"`
	StreamName         string       `toml:"stream-name" json:"stream-name"`
	DeliveryStreamName string       `toml:"delivery-stream-name" json:"delivery-stream-name"`
	RecordInterval     TomlDuration `toml:"record-interval" json:"record-interval"`
	RecordCount        int          `toml:"record-count" json:"record-count"`
	// PinShards spreads the records of every round over all shards by
	// explicit hash keys instead of hashing the partition key.
	PinShards bool `toml:"pin-shards" json:"pin-shards"`

	Log *logutil.Config `toml:"log" json:"log"`
}

// GetDefaultProducerConfig returns the default producer config.
func GetDefaultProducerConfig() *ProducerConfig {
	return &ProducerConfig{
		Region:             "ap-northeast-1",
		Target:             ProducerTargetStreams,
		StreamName:         "tokyo-stream-1",
		DeliveryStreamName: "tokyo-stream-1",
		RecordInterval:     TomlDuration(time.Second),
		RecordCount:        3,
		Log:                &logutil.Config{Level: "info"},
	}
}

// ValidateAndAdjust validates and adjusts the producer configuration
func (c *ProducerConfig) ValidateAndAdjust() error {
	switch c.Target {
	case "", ProducerTargetStreams:
		c.Target = ProducerTargetStreams
		if c.StreamName == "" {
			return invalidConfig("stream-name is required")
		}
	case ProducerTargetFirehose:
		if c.DeliveryStreamName == "" {
			return invalidConfig("delivery-stream-name is required")
		}
		if c.PinShards {
			return invalidConfig("pin-shards needs the streams target")
		}
	default:
		return invalidConfig("unknown producer target %s", c.Target)
	}
	if c.Region == "" {
		c.Region = GetDefaultProducerConfig().Region
	}
	if c.RecordInterval <= 0 {
		return invalidConfig("record-interval must be larger than 0")
	}
	// PutRecords and PutRecordBatch accept at most 500 records per call.
	if c.RecordCount <= 0 || c.RecordCount > 500 {
		return invalidConfig("record-count must be in [1, 500]")
	}
	if c.Log == nil {
		c.Log = GetDefaultProducerConfig().Log
	}
	c.Log.Adjust()
	return nil
}
