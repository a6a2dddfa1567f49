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

package producer

import (
	"context"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/firehose"
	"github.com/aws/aws-sdk-go/service/firehose/firehoseiface"
	"github.com/aws/aws-sdk-go/service/kinesis"
	"github.com/aws/aws-sdk-go/service/kinesis/kinesisiface"
	"github.com/benbjohnson/clock"
	"github.com/goccy/go-json"
	"github.com/pingcap/errors"
	"github.com/pingcap/log"
	"github.com/pingcap/shardflow/pkg/config"
	cerror "github.com/pingcap/shardflow/pkg/errors"
	"github.com/pingcap/shardflow/pkg/retry"
	"go.uber.org/zap"
)

const (
	putMaxTries        = 3
	putBackoffInterval = 500 * time.Millisecond
)

// Message is the JSON payload of a produced record. Every partition key
// counts its own records.
type Message struct {
	PartitionKey    string `json:"partitionKey"`
	RecordCount     int64  `json:"recordCount"`
	TimestampString string `json:"timestampString"`
}

// target is where a round of records is put.
type target interface {
	name() string
	// prepare runs once before the first round.
	prepare(ctx context.Context, count int) error
	// put writes one round and returns how many records were rejected.
	put(ctx context.Context, messages []*Message, payloads [][]byte) (int64, error)
}

// Producer puts a round of sample records to a Kinesis data stream or a
// Firehose delivery stream at a fixed interval.
type Producer struct {
	target   target
	interval time.Duration
	clock    clock.Clock

	messages []*Message
}

// NewProducer creates a Producer that puts records to a Kinesis data stream.
func NewProducer(client kinesisiface.KinesisAPI, cfg *config.ProducerConfig, clk clock.Clock) *Producer {
	return newProducer(&streamsTarget{
		client:     client,
		streamName: cfg.StreamName,
		pinShards:  cfg.PinShards,
	}, cfg, clk)
}

// NewFirehoseProducer creates a Producer that puts records to a Firehose
// delivery stream.
func NewFirehoseProducer(client firehoseiface.FirehoseAPI, cfg *config.ProducerConfig, clk clock.Clock) *Producer {
	return newProducer(&firehoseTarget{
		client:             client,
		deliveryStreamName: cfg.DeliveryStreamName,
	}, cfg, clk)
}

func newProducer(t target, cfg *config.ProducerConfig, clk clock.Clock) *Producer {
	messages := make([]*Message, 0, cfg.RecordCount)
	for i := 0; i < cfg.RecordCount; i++ {
		messages = append(messages, &Message{PartitionKey: strconv.Itoa(i)})
	}
	return &Producer{
		target:   t,
		interval: time.Duration(cfg.RecordInterval),
		clock:    clk,
		messages: messages,
	}
}

// Run puts a round of records every interval until ctx is done.
func (p *Producer) Run(ctx context.Context) error {
	if err := p.target.prepare(ctx, len(p.messages)); err != nil {
		return errors.Trace(err)
	}
	ticker := p.clock.Ticker(p.interval)
	defer ticker.Stop()
	for {
		if err := p.putRound(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return errors.Trace(err)
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (p *Producer) putRound(ctx context.Context) error {
	payloads := make([][]byte, 0, len(p.messages))
	for _, msg := range p.messages {
		msg.RecordCount++
		msg.TimestampString = p.clock.Now().UTC().Format(config.DefaultTimeFormat)
		data, err := json.Marshal(msg)
		if err != nil {
			return cerror.WrapError(cerror.ErrEncodeFailed, err, msg.PartitionKey)
		}
		payloads = append(payloads, data)
	}

	var failed int64
	err := retry.Do(ctx, func() error {
		var err error
		failed, err = p.target.put(ctx, p.messages, payloads)
		return err
	}, retry.WithMaxTries(putMaxTries),
		retry.WithBackoffInterval(putBackoffInterval),
		retry.WithClock(p.clock),
		retry.WithIsRetryableErr(cerror.IsRetryableError))
	if err != nil {
		return errors.Annotatef(err, "put records to %s", p.target.name())
	}
	if failed > 0 {
		log.Warn("some records were not put",
			zap.String("stream", p.target.name()), zap.Int64("failed", failed))
	}
	log.Info("put records",
		zap.String("stream", p.target.name()),
		zap.Int("count", len(payloads)),
		zap.Int64("failed", failed))
	return nil
}

type streamsTarget struct {
	client     kinesisiface.KinesisAPI
	streamName string
	pinShards  bool
	// hashKeys pins the message of the same index to a shard when set.
	hashKeys []string
}

func (t *streamsTarget) name() string {
	return t.streamName
}

// prepare takes the starting hash key of every open shard in turn until
// each message has one, so a round spreads over all shards.
func (t *streamsTarget) prepare(ctx context.Context, count int) error {
	if !t.pinShards {
		return nil
	}
	startingHashKeys, err := t.openShardHashKeys(ctx)
	if err != nil {
		return errors.Trace(err)
	}
	if len(startingHashKeys) == 0 {
		return errors.Errorf("stream %s has no shard", t.streamName)
	}
	t.hashKeys = make([]string, 0, count)
	for i := 0; len(t.hashKeys) < count; i++ {
		t.hashKeys = append(t.hashKeys, startingHashKeys[i%len(startingHashKeys)])
	}
	log.Info("records are pinned to shards by explicit hash keys",
		zap.String("stream", t.streamName), zap.Int("shards", len(startingHashKeys)))
	return nil
}

// openShardHashKeys lists every shard of the stream page by page and
// returns the starting hash keys of the shards that are still open.
func (t *streamsTarget) openShardHashKeys(ctx context.Context) ([]string, error) {
	var keys []string
	input := &kinesis.ListShardsInput{StreamName: aws.String(t.streamName)}
	for {
		out, err := t.client.ListShardsWithContext(ctx, input)
		if err != nil {
			return nil, errors.Annotatef(err, "list shards of %s", t.streamName)
		}
		for _, shard := range out.Shards {
			// closed parent shards do not take new records
			if shard.SequenceNumberRange != nil && shard.SequenceNumberRange.EndingSequenceNumber != nil {
				continue
			}
			if shard.HashKeyRange == nil {
				continue
			}
			keys = append(keys, aws.StringValue(shard.HashKeyRange.StartingHashKey))
		}
		if aws.StringValue(out.NextToken) == "" {
			return keys, nil
		}
		// the stream name must not be set together with a next token
		input = &kinesis.ListShardsInput{NextToken: out.NextToken}
	}
}

func (t *streamsTarget) put(ctx context.Context, messages []*Message, payloads [][]byte) (int64, error) {
	entries := make([]*kinesis.PutRecordsRequestEntry, 0, len(payloads))
	for i, data := range payloads {
		entry := &kinesis.PutRecordsRequestEntry{
			Data:         data,
			PartitionKey: aws.String(messages[i].PartitionKey),
		}
		if t.hashKeys != nil {
			entry.ExplicitHashKey = aws.String(t.hashKeys[i])
		}
		entries = append(entries, entry)
	}
	out, err := t.client.PutRecordsWithContext(ctx, &kinesis.PutRecordsInput{
		StreamName: aws.String(t.streamName),
		Records:    entries,
	})
	if err != nil {
		return 0, err
	}
	for _, res := range out.Records {
		if res.ErrorCode != nil {
			continue
		}
		log.Debug("record put",
			zap.String("shardID", aws.StringValue(res.ShardId)),
			zap.String("sequenceNumber", aws.StringValue(res.SequenceNumber)))
	}
	return aws.Int64Value(out.FailedRecordCount), nil
}

type firehoseTarget struct {
	client             firehoseiface.FirehoseAPI
	deliveryStreamName string
}

func (t *firehoseTarget) name() string {
	return t.deliveryStreamName
}

func (t *firehoseTarget) prepare(context.Context, int) error {
	return nil
}

func (t *firehoseTarget) put(ctx context.Context, _ []*Message, payloads [][]byte) (int64, error) {
	records := make([]*firehose.Record, 0, len(payloads))
	for _, data := range payloads {
		records = append(records, &firehose.Record{Data: data})
	}
	out, err := t.client.PutRecordBatchWithContext(ctx, &firehose.PutRecordBatchInput{
		DeliveryStreamName: aws.String(t.deliveryStreamName),
		Records:            records,
	})
	if err != nil {
		return 0, err
	}
	for _, res := range out.RequestResponses {
		if res.ErrorCode != nil {
			log.Debug("record rejected by delivery stream",
				zap.String("errorCode", aws.StringValue(res.ErrorCode)),
				zap.String("errorMessage", aws.StringValue(res.ErrorMessage)))
		}
	}
	return aws.Int64Value(out.FailedPutCount), nil
}
