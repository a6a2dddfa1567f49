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
	"sync"

	"github.com/pingcap/shardflow/cdc/model"
	cerror "github.com/pingcap/shardflow/pkg/errors"
)

// MemoryStore is a Store living in the process memory. It is meant for
// local runs and tests, nothing survives a restart.
type MemoryStore struct {
	mu       sync.Mutex
	workerID string
	shards   map[string]*memoryShard
}

type memoryShard struct {
	owner    string
	position string
	done     chan struct{}
}

// NewMemoryStore creates a MemoryStore claiming shards for workerID.
func NewMemoryStore(workerID string) *MemoryStore {
	return &MemoryStore{
		workerID: workerID,
		shards:   make(map[string]*memoryShard),
	}
}

// Claim implements Store.
func (s *MemoryStore) Claim(_ context.Context, shardID string) (Claim, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	shard, ok := s.shards[shardID]
	if !ok {
		shard = &memoryShard{}
		s.shards[shardID] = shard
	}
	if shard.owner != "" && shard.owner != s.workerID {
		return nil, cerror.ErrShardNotClaimed.GenWithStackByArgs(shardID, shard.owner)
	}
	if shard.owner == "" {
		shard.owner = s.workerID
		shard.done = make(chan struct{})
	}
	return &memoryClaim{store: s, shardID: shardID, position: shard.position, done: shard.done}, nil
}

// Reassign hands a shard over to another worker, the current claim is lost.
func (s *MemoryStore) Reassign(shardID, workerID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	shard, ok := s.shards[shardID]
	if !ok {
		shard = &memoryShard{}
		s.shards[shardID] = shard
	}
	if shard.done != nil && shard.owner == s.workerID {
		close(shard.done)
		shard.done = nil
	}
	shard.owner = workerID
}

// Checkpointed returns the stored checkpoint of a shard.
func (s *MemoryStore) Checkpointed(shardID string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if shard, ok := s.shards[shardID]; ok {
		return shard.position
	}
	return ""
}

// Close implements Store.
func (s *MemoryStore) Close() error {
	return nil
}

type memoryClaim struct {
	store    *MemoryStore
	shardID  string
	position string
	done     chan struct{}
}

func (c *memoryClaim) Position() string {
	return c.position
}

func (c *memoryClaim) Done() <-chan struct{} {
	return c.done
}

func (c *memoryClaim) Checkpoint(_ context.Context, position string) error {
	s := c.store
	s.mu.Lock()
	defer s.mu.Unlock()
	shard := s.shards[c.shardID]
	if shard.owner != s.workerID || shard.done != c.done {
		return cerror.ErrCheckpointSuperseded.GenWithStackByArgs(c.shardID)
	}
	if shard.position != "" {
		cmp, err := model.CompareSequenceNumbers(position, shard.position)
		if err != nil {
			return cerror.WrapError(cerror.ErrCheckpointInvalidState, err)
		}
		if cmp < 0 {
			return cerror.WrapError(cerror.ErrCheckpointInvalidState,
				cerror.ErrCheckpointRegression.GenWithStackByArgs(shard.position, position))
		}
	}
	shard.position = position
	return nil
}

func (c *memoryClaim) Release(_ context.Context) error {
	s := c.store
	s.mu.Lock()
	defer s.mu.Unlock()
	shard := s.shards[c.shardID]
	if shard.owner == s.workerID && shard.done == c.done {
		close(shard.done)
		shard.done = nil
		shard.owner = ""
	}
	return nil
}

var _ Store = (*MemoryStore)(nil)
