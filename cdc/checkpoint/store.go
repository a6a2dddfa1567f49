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

package checkpoint

import (
	"context"
	"fmt"
	"time"
)

// Store records which worker owns a shard and how far the shard has been
// processed.
type Store interface {
	// Claim takes the ownership of a shard for this worker. It fails with
	// ErrShardNotClaimed if another worker owns it.
	Claim(ctx context.Context, shardID string) (Claim, error)
	Close() error
}

// Claim is the ownership of one shard.
type Claim interface {
	// Checkpoint persists position. It refuses positions lower than the
	// stored one and fails with ErrCheckpointSuperseded once the ownership
	// is gone.
	Checkpoint(ctx context.Context, position string) error
	// Position returns the checkpoint stored when the shard was claimed, it
	// is empty if the shard has never been checkpointed.
	Position() string
	// Done is closed when the ownership is lost.
	Done() <-chan struct{}
	// Release gives the ownership up.
	Release(ctx context.Context) error
}

// Info is the value stored for a shard checkpoint.
type Info struct {
	Position   string    `json:"position"`
	WorkerID   string    `json:"worker-id"`
	UpdateTime time.Time `json:"update-time"`
}

const keyPrefix = "/shardflow"

func ownerKey(application, shardID string) string {
	return fmt.Sprintf("%s/%s/shards/%s/owner", keyPrefix, application, shardID)
}

func checkpointKey(application, shardID string) string {
	return fmt.Sprintf("%s/%s/shards/%s/checkpoint", keyPrefix, application, shardID)
}
