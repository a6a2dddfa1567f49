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

package processor

import (
	"context"

	"github.com/pingcap/shardflow/cdc/model"
)

// Checkpointer persists the position of a shard.
//
// Implementations classify failures with the errors of pkg/errors:
// ErrCheckpointSuperseded when another worker owns the shard,
// ErrCheckpointThrottled for transient faults and ErrCheckpointInvalidState
// when the store cannot accept checkpoints at all. Unclassified errors are
// treated as transient.
type Checkpointer interface {
	Checkpoint(ctx context.Context, position string) error
}

// DestinationStore applies mutations to the destination table.
type DestinationStore interface {
	Upsert(ctx context.Context, table string, item model.Item) error
	Delete(ctx context.Context, table string, key model.Item) error
}

// SchemaResolver resolves the hash key attribute name of a table.
type SchemaResolver interface {
	ResolveKeyAttribute(ctx context.Context, table string) (string, error)
}

// RecordHandler processes a single record. A returned error fails the
// current attempt; errors matching pkg/errors.IsPermanentRecordError skip
// the record without further attempts.
type RecordHandler interface {
	Handle(ctx context.Context, shardID string, record *model.Record) error
}

// RecordHandlerFunc adapts a function to RecordHandler.
type RecordHandlerFunc func(ctx context.Context, shardID string, record *model.Record) error

// Handle implements RecordHandler.
func (f RecordHandlerFunc) Handle(ctx context.Context, shardID string, record *model.Record) error {
	return f(ctx, shardID, record)
}

// InitializationInput is passed to Initialize.
type InitializationInput struct {
	ShardID string
	// ExtendedSequenceNumber is the checkpoint the shard resumes from, it is
	// empty when the shard has never been checkpointed.
	ExtendedSequenceNumber string
}

// ProcessRecordsInput is one batch delivered for the shard.
type ProcessRecordsInput struct {
	Records            []*model.Record
	Checkpointer       Checkpointer
	MillisBehindLatest int64
}

// ShardEndedInput is passed to ShardEnded.
type ShardEndedInput struct {
	Checkpointer Checkpointer
}

// ShutdownRequestedInput is passed to ShutdownRequested.
type ShutdownRequestedInput struct {
	Checkpointer Checkpointer
}
