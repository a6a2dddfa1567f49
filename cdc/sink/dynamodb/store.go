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

package dynamodb

import (
	"context"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/dynamodb"
	"github.com/aws/aws-sdk-go/service/dynamodb/dynamodbiface"
	"github.com/pingcap/log"
	"github.com/pingcap/shardflow/cdc/model"
	cerror "github.com/pingcap/shardflow/pkg/errors"
	"go.uber.org/zap"
)

// Store writes mutations to DynamoDB tables. It also resolves the key
// schema of the destination table.
type Store struct {
	client dynamodbiface.DynamoDBAPI
}

// NewStore creates a Store.
func NewStore(client dynamodbiface.DynamoDBAPI) *Store {
	return &Store{client: client}
}

// Upsert puts the whole item, replacing the row with the same key.
func (s *Store) Upsert(ctx context.Context, table string, item model.Item) error {
	_, err := s.client.PutItemWithContext(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(table),
		Item:      item,
	})
	if err != nil {
		return cerror.WrapError(cerror.ErrDestinationWrite, err, table)
	}
	writeCounter.WithLabelValues(table, "put").Inc()
	return nil
}

// Delete removes the row identified by key. Deleting a missing row succeeds.
func (s *Store) Delete(ctx context.Context, table string, key model.Item) error {
	_, err := s.client.DeleteItemWithContext(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(table),
		Key:       key,
	})
	if err != nil {
		return cerror.WrapError(cerror.ErrDestinationWrite, err, table)
	}
	writeCounter.WithLabelValues(table, "delete").Inc()
	return nil
}

// ResolveKeyAttribute returns the HASH key attribute of the table.
func (s *Store) ResolveKeyAttribute(ctx context.Context, table string) (string, error) {
	out, err := s.client.DescribeTableWithContext(ctx, &dynamodb.DescribeTableInput{
		TableName: aws.String(table),
	})
	if err != nil {
		return "", cerror.WrapError(cerror.ErrDescribeTable, err, table)
	}
	if out.Table == nil {
		return "", cerror.ErrHashKeyNotFound.GenWithStackByArgs(table)
	}
	for _, elem := range out.Table.KeySchema {
		if aws.StringValue(elem.KeyType) == dynamodb.KeyTypeHash {
			log.Debug("found hash key of table",
				zap.String("table", table),
				zap.String("attribute", aws.StringValue(elem.AttributeName)))
			return aws.StringValue(elem.AttributeName), nil
		}
	}
	return "", cerror.ErrHashKeyNotFound.GenWithStackByArgs(table)
}
