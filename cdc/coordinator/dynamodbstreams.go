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
	"github.com/aws/aws-sdk-go/service/dynamodb"
	"github.com/aws/aws-sdk-go/service/dynamodb/dynamodbiface"
	"github.com/aws/aws-sdk-go/service/dynamodbstreams"
	"github.com/aws/aws-sdk-go/service/dynamodbstreams/dynamodbstreamsiface"
	"github.com/goccy/go-json"
	"github.com/pingcap/shardflow/cdc/model"
	cerror "github.com/pingcap/shardflow/pkg/errors"
)

// StreamsReader reads the shards of a DynamoDB table stream.
type StreamsReader struct {
	client          dynamodbstreamsiface.DynamoDBStreamsAPI
	streamARN       string
	initialPosition string
	maxRecords      int64
}

// NewStreamsReader creates a StreamsReader.
func NewStreamsReader(
	client dynamodbstreamsiface.DynamoDBStreamsAPI, streamARN, initialPosition string, maxRecords int64,
) *StreamsReader {
	// a table stream returns at most 1000 records per call
	if maxRecords > 1000 {
		maxRecords = 1000
	}
	return &StreamsReader{
		client:          client,
		streamARN:       streamARN,
		initialPosition: initialPosition,
		maxRecords:      maxRecords,
	}
}

// ResolveStreamARN returns the ARN of the latest stream of a table.
func ResolveStreamARN(ctx context.Context, client dynamodbiface.DynamoDBAPI, table string) (string, error) {
	out, err := client.DescribeTableWithContext(ctx, &dynamodb.DescribeTableInput{
		TableName: aws.String(table),
	})
	if err != nil {
		return "", cerror.WrapError(cerror.ErrDescribeTable, err, table)
	}
	if out.Table == nil || aws.StringValue(out.Table.LatestStreamArn) == "" {
		return "", cerror.ErrInvalidConfig.GenWithStackByArgs("table " + table + " has no stream enabled")
	}
	return aws.StringValue(out.Table.LatestStreamArn), nil
}

// GetShardIterator implements ShardReader.
func (r *StreamsReader) GetShardIterator(ctx context.Context, shardID, position string) (string, error) {
	input := &dynamodbstreams.GetShardIteratorInput{
		StreamArn:         aws.String(r.streamARN),
		ShardId:           aws.String(shardID),
		ShardIteratorType: aws.String(r.initialPosition),
	}
	if position != "" {
		input.ShardIteratorType = aws.String(dynamodbstreams.ShardIteratorTypeAfterSequenceNumber)
		input.SequenceNumber = aws.String(position)
	}
	out, err := r.client.GetShardIteratorWithContext(ctx, input)
	if err != nil {
		return "", cerror.WrapError(cerror.ErrShardIterator, err, shardID)
	}
	return aws.StringValue(out.ShardIterator), nil
}

// GetRecords implements ShardReader.
func (r *StreamsReader) GetRecords(ctx context.Context, iterator string) (*Batch, error) {
	out, err := r.client.GetRecordsWithContext(ctx, &dynamodbstreams.GetRecordsInput{
		ShardIterator: aws.String(iterator),
		Limit:         aws.Int64(r.maxRecords),
	})
	if err != nil {
		return nil, cerror.WrapError(cerror.ErrGetRecords, err, r.streamARN)
	}
	batch := &Batch{
		Records:      make([]*model.Record, 0, len(out.Records)),
		NextIterator: aws.StringValue(out.NextShardIterator),
	}
	for _, rec := range out.Records {
		record, err := convertStreamRecord(rec)
		if err != nil {
			return nil, err
		}
		batch.Records = append(batch.Records, record)
	}
	return batch, nil
}

func convertStreamRecord(rec *dynamodbstreams.Record) (*model.Record, error) {
	data, err := json.Marshal(rec)
	if err != nil {
		return nil, cerror.WrapError(cerror.ErrEncodeFailed, err, aws.StringValue(rec.EventID))
	}
	record := &model.Record{
		Data:         data,
		PartitionKey: aws.StringValue(rec.EventID),
		Change:       convertChangeEvent(rec),
	}
	if rec.Dynamodb != nil {
		record.SequenceNumber = aws.StringValue(rec.Dynamodb.SequenceNumber)
		record.ApproximateArrivalTimestamp = aws.TimeValue(rec.Dynamodb.ApproximateCreationDateTime)
	}
	return record, nil
}

func convertChangeEvent(rec *dynamodbstreams.Record) model.ChangeEvent {
	var keys, newImage, oldImage model.Item
	if rec.Dynamodb != nil {
		keys = convertItem(rec.Dynamodb.Keys)
		newImage = convertItem(rec.Dynamodb.NewImage)
		oldImage = convertItem(rec.Dynamodb.OldImage)
	}
	switch name := aws.StringValue(rec.EventName); name {
	case dynamodbstreams.OperationTypeInsert:
		return model.InsertEvent{Keys: keys, NewImage: newImage}
	case dynamodbstreams.OperationTypeModify:
		return model.ModifyEvent{Keys: keys, OldImage: oldImage, NewImage: newImage}
	case dynamodbstreams.OperationTypeRemove:
		return model.RemoveEvent{Keys: keys, OldImage: oldImage}
	default:
		return model.UnknownEvent{Name: name}
	}
}

// convertItem converts a stream image to the attribute values of the
// DynamoDB client, the two SDK packages declare distinct types.
func convertItem(image map[string]*dynamodb.AttributeValue) model.Item {
	if image == nil {
		return nil
	}
	item := make(model.Item, len(image))
	for name, value := range image {
		item[name] = convertAttributeValue(value)
	}
	return item
}

func convertAttributeValue(v *dynamodb.AttributeValue) *dynamodb.AttributeValue {
	if v == nil {
		return nil
	}
	ret := &dynamodb.AttributeValue{
		B:    v.B,
		BOOL: v.BOOL,
		BS:   v.BS,
		N:    v.N,
		NS:   v.NS,
		NULL: v.NULL,
		S:    v.S,
		SS:   v.SS,
	}
	if v.M != nil {
		ret.M = convertItem(v.M)
	}
	if v.L != nil {
		ret.L = make([]*dynamodb.AttributeValue, 0, len(v.L))
		for _, elem := range v.L {
			ret.L = append(ret.L, convertAttributeValue(elem))
		}
	}
	return ret
}
