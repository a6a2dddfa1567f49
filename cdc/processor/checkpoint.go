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

	cerror "github.com/pingcap/shardflow/pkg/errors"
	"github.com/pingcap/shardflow/pkg/retry"
	"go.uber.org/zap"
)

// CheckpointOutcome is the final result of a checkpoint sequence.
type CheckpointOutcome int

// Checkpoint outcomes.
const (
	CheckpointSucceeded CheckpointOutcome = iota
	CheckpointSuperseded
	CheckpointExhausted
	CheckpointInvalidState
)

func (o CheckpointOutcome) String() string {
	switch o {
	case CheckpointSucceeded:
		return "succeeded"
	case CheckpointSuperseded:
		return "superseded"
	case CheckpointExhausted:
		return "exhausted"
	case CheckpointInvalidState:
		return "invalid-state"
	}
	return "unknown"
}

// checkpoint persists position with bounded retries. Superseded and
// invalid-state failures end the sequence at once, every other failure is
// retried. It never fails, the outcome is only logged and returned.
func (p *ShardProcessor) checkpoint(
	ctx context.Context, checkpointer Checkpointer, position string,
) CheckpointOutcome {
	ctx = context.WithoutCancel(ctx)
	fields := []zap.Field{zap.String("position", position)}
	p.logger.Info("checkpointing shard", fields...)

	err := retry.Do(ctx, func() error {
		return checkpointer.Checkpoint(ctx, position)
	},
		retry.WithMaxTries(p.retryCount),
		retry.WithBackoffInterval(p.backoffInterval),
		retry.WithClock(p.clock),
		retry.WithIsRetryableErr(cerror.IsCheckpointRetryable),
		retry.WithNotify(func(attempt uint64, err error) {
			if !cerror.IsCheckpointRetryable(err) {
				return
			}
			p.logger.Warn("checkpoint attempt failed",
				append(fields, zap.Uint64("attempt", attempt), zap.Error(err))...)
		}),
	)

	var outcome CheckpointOutcome
	switch {
	case err == nil:
		outcome = CheckpointSucceeded
		p.logger.Info("checkpoint succeeded", fields...)
	case cerror.Is(err, cerror.ErrCheckpointSuperseded):
		outcome = CheckpointSuperseded
		p.logger.Info("skip checkpoint, shard is owned by another worker",
			append(fields, zap.Error(err))...)
	case cerror.Is(err, cerror.ErrCheckpointInvalidState):
		outcome = CheckpointInvalidState
		p.logger.Error("cannot save checkpoint, checkpoint store is in an invalid state",
			append(fields, zap.Error(err))...)
	default:
		outcome = CheckpointExhausted
		p.logger.Error("checkpoint failed after all retries",
			append(fields, zap.Uint64("attempts", p.retryCount), zap.Error(err))...)
	}
	checkpointCounter.WithLabelValues(p.shardID, outcome.String()).Inc()
	return outcome
}
