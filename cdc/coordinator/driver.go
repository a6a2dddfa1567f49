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
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pingcap/errors"
	"github.com/pingcap/log"
	"github.com/pingcap/shardflow/cdc/checkpoint"
	"github.com/pingcap/shardflow/cdc/model"
	"github.com/pingcap/shardflow/cdc/processor"
	cerror "github.com/pingcap/shardflow/pkg/errors"
	"github.com/pingcap/shardflow/pkg/logutil"
	"github.com/pingcap/shardflow/pkg/retry"
	"go.uber.org/zap"
)

const (
	openIteratorMaxTries = 5
	releaseTimeout       = 5 * time.Second
)

// Driver feeds one explicitly assigned shard to a ShardProcessor and drives
// its lifecycle. It does not discover or balance shards.
type Driver struct {
	shardID      string
	store        checkpoint.Store
	reader       ShardReader
	processor    *processor.ShardProcessor
	idleInterval time.Duration
	clock        clock.Clock
	logger       *zap.Logger
}

// NewDriver creates a Driver.
func NewDriver(
	shardID string,
	store checkpoint.Store,
	reader ShardReader,
	proc *processor.ShardProcessor,
	idleInterval time.Duration,
	clk clock.Clock,
) *Driver {
	return &Driver{
		shardID:      shardID,
		store:        store,
		reader:       reader,
		processor:    proc,
		idleInterval: idleInterval,
		clock:        clk,
		logger:       log.L().With(zap.String("shardID", shardID)),
	}
}

// Run claims the shard and processes it until the shard ends, the claim is
// lost or ctx is done. Only a failure to start or a halted processor is
// returned as an error.
func (d *Driver) Run(ctx context.Context) error {
	claim, err := d.store.Claim(ctx, d.shardID)
	if err != nil {
		return errors.Trace(err)
	}
	if claim.Position() == model.ShardEnd {
		d.logger.Info("shard has been read to its end, nothing to do")
		return nil
	}
	if err := d.processor.Initialize(processor.InitializationInput{
		ShardID:                d.shardID,
		ExtendedSequenceNumber: claim.Position(),
	}); err != nil {
		return errors.Trace(err)
	}

	iterator, err := d.openIterator(ctx, claim.Position())
	if err != nil {
		return errors.Trace(err)
	}
	for {
		select {
		case <-ctx.Done():
			return d.shutdown(ctx, claim)
		case <-claim.Done():
			return errors.Trace(d.processor.LeaseLost())
		default:
		}

		if iterator == "" {
			if err := d.processor.ShardEnded(ctx, processor.ShardEndedInput{Checkpointer: claim}); err != nil {
				return errors.Trace(err)
			}
			d.release(ctx, claim)
			return nil
		}

		batch, err := d.reader.GetRecords(ctx, iterator)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			d.logger.Warn("get records failed, reopen the shard iterator",
				logutil.ZapErrorFilter(err, context.Canceled, context.DeadlineExceeded))
			d.wait(ctx)
			iterator, err = d.openIterator(ctx, d.resumePosition(claim))
			if err != nil {
				if ctx.Err() != nil {
					continue
				}
				return errors.Trace(err)
			}
			continue
		}

		if len(batch.Records) > 0 {
			if err := d.processor.ProcessRecords(ctx, processor.ProcessRecordsInput{
				Records:            batch.Records,
				Checkpointer:       claim,
				MillisBehindLatest: batch.MillisBehindLatest,
			}); err != nil {
				return errors.Trace(err)
			}
		}
		iterator = batch.NextIterator
		if len(batch.Records) == 0 && iterator != "" {
			d.wait(ctx)
		}
	}
}

func (d *Driver) shutdown(ctx context.Context, claim checkpoint.Claim) error {
	if err := d.processor.ShutdownRequested(ctx, processor.ShutdownRequestedInput{
		Checkpointer: claim,
	}); err != nil {
		return errors.Trace(err)
	}
	d.release(ctx, claim)
	return nil
}

func (d *Driver) release(ctx context.Context, claim checkpoint.Claim) {
	releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), releaseTimeout)
	defer cancel()
	if err := claim.Release(releaseCtx); err != nil {
		d.logger.Warn("release shard failed", zap.Error(err))
	}
}

// resumePosition is where reading continues after the iterator is lost.
func (d *Driver) resumePosition(claim checkpoint.Claim) string {
	if position := d.processor.Position(); position != "" {
		return position
	}
	return claim.Position()
}

func (d *Driver) openIterator(ctx context.Context, position string) (string, error) {
	var iterator string
	err := retry.Do(ctx, func() error {
		var err error
		iterator, err = d.reader.GetShardIterator(ctx, d.shardID, position)
		return err
	}, retry.WithMaxTries(openIteratorMaxTries),
		retry.WithBackoffInterval(d.idleInterval),
		retry.WithClock(d.clock),
		retry.WithIsRetryableErr(cerror.IsRetryableError),
		retry.WithNotify(func(attempt uint64, err error) {
			d.logger.Warn("get shard iterator failed",
				zap.String("position", position),
				zap.Uint64("attempt", attempt),
				zap.Error(err))
		}))
	if err != nil {
		return "", err
	}
	d.logger.Info("shard iterator opened",
		zap.String("position", position))
	return iterator, nil
}

func (d *Driver) wait(ctx context.Context) {
	timer := d.clock.Timer(d.idleInterval)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
