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

	"github.com/pingcap/shardflow/cdc/model"
)

// Batch is the result of one read from a shard.
type Batch struct {
	Records []*model.Record
	// NextIterator is empty once the shard is closed and fully read.
	NextIterator       string
	MillisBehindLatest int64
}

// ShardReader reads the records of a shard through shard iterators.
type ShardReader interface {
	// GetShardIterator returns an iterator starting right after position, or
	// at the configured initial position when position is empty.
	GetShardIterator(ctx context.Context, shardID, position string) (string, error)
	// GetRecords reads the next batch from iterator.
	GetRecords(ctx context.Context, iterator string) (*Batch, error)
}

