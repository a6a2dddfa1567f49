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

package coordinator

import (
	"context"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/kinesis"
	"github.com/aws/aws-sdk-go/service/kinesis/kinesisiface"
	"github.com/pingcap/shardflow/cdc/model"
	cerror "github.com/pingcap/shardflow/pkg/errors"
)

// KinesisReader reads the shards of a Kinesis data stream.
type KinesisReader struct {
	client          kinesisiface.KinesisAPI
	streamName      string
	initialPosition string
	maxRecords      int64
}

// NewKinesisReader creates a KinesisReader.
func NewKinesisReader(
	client kinesisiface.KinesisAPI, streamName, initialPosition string, maxRecords int64,
) *KinesisReader {
	return &KinesisReader{
		client:          client,
		streamName:      streamName,
		initialPosition: initialPosition,
		maxRecords:      maxRecords,
	}
}

// GetShardIterator implements ShardReader.
func (r *KinesisReader) GetShardIterator(ctx context.Context, shardID, position string) (string, error) {
	input := &kinesis.GetShardIteratorInput{
		StreamName:        aws.String(r.streamName),
		ShardId:           aws.String(shardID),
		ShardIteratorType: aws.String(r.initialPosition),
	}
	if position != "" {
		input.ShardIteratorType = aws.String(kinesis.ShardIteratorTypeAfterSequenceNumber)
		input.StartingSequenceNumber = aws.String(position)
	}
	out, err := r.client.GetShardIteratorWithContext(ctx, input)
	if err != nil {
		return "", cerror.WrapError(cerror.ErrShardIterator, err, shardID)
	}
	return aws.StringValue(out.ShardIterator), nil
}

// GetRecords implements ShardReader.
func (r *KinesisReader) GetRecords(ctx context.Context, iterator string) (*Batch, error) {
	out, err := r.client.GetRecordsWithContext(ctx, &kinesis.GetRecordsInput{
		ShardIterator: aws.String(iterator),
		Limit:         aws.Int64(r.maxRecords),
	})
	if err != nil {
		return nil, cerror.WrapError(cerror.ErrGetRecords, err, r.streamName)
	}
	batch := &Batch{
		Records:            make([]*model.Record, 0, len(out.Records)),
		NextIterator:       aws.StringValue(out.NextShardIterator),
		MillisBehindLatest: aws.Int64Value(out.MillisBehindLatest),
	}
	for _, rec := range out.Records {
		batch.Records = append(batch.Records, &model.Record{
			Data:                        rec.Data,
			PartitionKey:                aws.StringValue(rec.PartitionKey),
			SequenceNumber:              aws.StringValue(rec.SequenceNumber),
			ApproximateArrivalTimestamp: aws.TimeValue(rec.ApproximateArrivalTimestamp),
		})
	}
	return batch, nil
}
