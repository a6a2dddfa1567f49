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
	"testing"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/firehose"
	"github.com/aws/aws-sdk-go/service/firehose/firehoseiface"
	"github.com/aws/aws-sdk-go/service/kinesis"
	"github.com/aws/aws-sdk-go/service/kinesis/kinesisiface"
	"github.com/benbjohnson/clock"
	"github.com/goccy/go-json"
	"github.com/pingcap/errors"
	"github.com/pingcap/shardflow/pkg/config"
	cerror "github.com/pingcap/shardflow/pkg/errors"
	"github.com/pingcap/shardflow/pkg/leakutil"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	leakutil.SetUpLeakTest(m)
}

type mockKinesis struct {
	kinesisiface.KinesisAPI

	// shardPages is served one page per ListShards call
	shardPages [][]*kinesis.Shard
	listInputs []*kinesis.ListShardsInput
	puts       []*kinesis.PutRecordsInput
	onPut      func()
	err        error
}

func (m *mockKinesis) ListShardsWithContext(
	_ aws.Context, input *kinesis.ListShardsInput, _ ...request.Option,
) (*kinesis.ListShardsOutput, error) {
	m.listInputs = append(m.listInputs, input)
	page := 0
	if input.NextToken != nil {
		page, _ = strconv.Atoi(aws.StringValue(input.NextToken))
	}
	out := &kinesis.ListShardsOutput{}
	if page < len(m.shardPages) {
		out.Shards = m.shardPages[page]
	}
	if page+1 < len(m.shardPages) {
		out.NextToken = aws.String(strconv.Itoa(page + 1))
	}
	return out, nil
}

func (m *mockKinesis) PutRecordsWithContext(
	_ aws.Context, input *kinesis.PutRecordsInput, _ ...request.Option,
) (*kinesis.PutRecordsOutput, error) {
	m.puts = append(m.puts, input)
	if m.onPut != nil {
		m.onPut()
	}
	if m.err != nil {
		return nil, m.err
	}
	out := &kinesis.PutRecordsOutput{FailedRecordCount: aws.Int64(0)}
	for range input.Records {
		out.Records = append(out.Records, &kinesis.PutRecordsResultEntry{
			ShardId:        aws.String("shardId-000000000000"),
			SequenceNumber: aws.String("1"),
		})
	}
	return out, nil
}

func shard(startingHashKey string) *kinesis.Shard {
	return &kinesis.Shard{
		HashKeyRange:        &kinesis.HashKeyRange{StartingHashKey: aws.String(startingHashKey)},
		SequenceNumberRange: &kinesis.SequenceNumberRange{StartingSequenceNumber: aws.String("1")},
	}
}

func closedShard(startingHashKey string) *kinesis.Shard {
	s := shard(startingHashKey)
	s.SequenceNumberRange.EndingSequenceNumber = aws.String("100")
	return s
}

type mockFirehose struct {
	firehoseiface.FirehoseAPI

	puts  []*firehose.PutRecordBatchInput
	onPut func()
	err   error
}

func (m *mockFirehose) PutRecordBatchWithContext(
	_ aws.Context, input *firehose.PutRecordBatchInput, _ ...request.Option,
) (*firehose.PutRecordBatchOutput, error) {
	m.puts = append(m.puts, input)
	if m.onPut != nil {
		m.onPut()
	}
	if m.err != nil {
		return nil, m.err
	}
	out := &firehose.PutRecordBatchOutput{FailedPutCount: aws.Int64(1)}
	for i := range input.Records {
		entry := &firehose.PutRecordBatchResponseEntry{RecordId: aws.String(strconv.Itoa(i))}
		if i == 0 {
			entry = &firehose.PutRecordBatchResponseEntry{ErrorCode: aws.String("ServiceUnavailableException")}
		}
		out.RequestResponses = append(out.RequestResponses, entry)
	}
	return out, nil
}

func newTestConfig(recordCount int, pinShards bool) *config.ProducerConfig {
	cfg := config.GetDefaultProducerConfig()
	cfg.RecordCount = recordCount
	cfg.PinShards = pinShards
	return cfg
}

func TestPutRoundCountsPerPartitionKey(t *testing.T) {
	t.Parallel()

	clk := clock.NewMock()
	clk.Set(time.Date(2024, 3, 1, 10, 0, 0, 123000000, time.UTC))
	client := &mockKinesis{}
	p := NewProducer(client, newTestConfig(3, false), clk)

	ctx := context.Background()
	require.NoError(t, p.putRound(ctx))
	require.NoError(t, p.putRound(ctx))
	require.Len(t, client.puts, 2)

	second := client.puts[1]
	require.Equal(t, "tokyo-stream-1", aws.StringValue(second.StreamName))
	require.Len(t, second.Records, 3)
	for i, entry := range second.Records {
		var msg Message
		require.NoError(t, json.Unmarshal(entry.Data, &msg))
		require.Equal(t, Message{
			PartitionKey:    []string{"0", "1", "2"}[i],
			RecordCount:     2,
			TimestampString: "2024-03-01T10:00:00.123+00:00",
		}, msg)
		require.Equal(t, msg.PartitionKey, aws.StringValue(entry.PartitionKey))
		require.Nil(t, entry.ExplicitHashKey)
	}
}

func TestRunPinsRecordsToShards(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	client := &mockKinesis{
		shardPages: [][]*kinesis.Shard{
			{closedShard("0"), shard("0")},
			{shard("170141183460469231731687303715884105728")},
		},
		onPut: cancel,
	}
	p := NewProducer(client, newTestConfig(3, true), clock.NewMock())

	require.NoError(t, p.Run(ctx))
	require.Len(t, client.puts, 1)
	var hashKeys []string
	for _, entry := range client.puts[0].Records {
		hashKeys = append(hashKeys, aws.StringValue(entry.ExplicitHashKey))
	}
	require.Equal(t, []string{"0", "170141183460469231731687303715884105728", "0"}, hashKeys)

	// the second page is asked for by token only
	require.Len(t, client.listInputs, 2)
	require.Equal(t, "tokyo-stream-1", aws.StringValue(client.listInputs[0].StreamName))
	require.Nil(t, client.listInputs[1].StreamName)
	require.Equal(t, "1", aws.StringValue(client.listInputs[1].NextToken))
}

func TestRunWithOnlyClosedShards(t *testing.T) {
	t.Parallel()

	client := &mockKinesis{shardPages: [][]*kinesis.Shard{{closedShard("0")}}}
	p := NewProducer(client, newTestConfig(1, true), clock.NewMock())
	require.ErrorContains(t, p.Run(context.Background()), "has no shard")
	require.Empty(t, client.puts)
}

func TestFirehoseProducer(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	clk := clock.NewMock()
	clk.Set(time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC))
	client := &mockFirehose{onPut: cancel}
	cfg := newTestConfig(2, false)
	cfg.Target = config.ProducerTargetFirehose
	cfg.DeliveryStreamName = "delivery-1"
	p := NewFirehoseProducer(client, cfg, clk)

	require.NoError(t, p.Run(ctx))
	require.Len(t, client.puts, 1)
	input := client.puts[0]
	require.Equal(t, "delivery-1", aws.StringValue(input.DeliveryStreamName))
	require.Len(t, input.Records, 2)
	for i, record := range input.Records {
		var msg Message
		require.NoError(t, json.Unmarshal(record.Data, &msg))
		require.Equal(t, Message{
			PartitionKey:    strconv.Itoa(i),
			RecordCount:     1,
			TimestampString: "2024-03-01T10:00:00.000+00:00",
		}, msg)
	}
}

func TestFirehosePutExhausted(t *testing.T) {
	t.Parallel()

	client := &mockFirehose{err: errors.New("ServiceUnavailableException")}
	cfg := newTestConfig(1, false)
	cfg.Target = config.ProducerTargetFirehose
	p := NewFirehoseProducer(client, cfg, clock.New())
	err := p.putRound(context.Background())
	require.True(t, cerror.Is(err, cerror.ErrReachMaxTry))
	require.Len(t, client.puts, putMaxTries)
}

func TestRunWithoutShards(t *testing.T) {
	t.Parallel()

	p := NewProducer(&mockKinesis{}, newTestConfig(1, true), clock.NewMock())
	require.ErrorContains(t, p.Run(context.Background()), "has no shard")
}

func TestPutRoundExhausted(t *testing.T) {
	t.Parallel()

	client := &mockKinesis{err: errors.New("ProvisionedThroughputExceededException")}
	p := NewProducer(client, newTestConfig(1, false), clock.New())
	err := p.putRound(context.Background())
	require.True(t, cerror.Is(err, cerror.ErrReachMaxTry))
	require.Len(t, client.puts, putMaxTries)
}
