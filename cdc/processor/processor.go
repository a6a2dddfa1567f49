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
	"time"
	"unicode/utf8"

	"github.com/benbjohnson/clock"
	"github.com/pingcap/errors"
	"github.com/pingcap/log"
	"github.com/pingcap/shardflow/cdc/model"
	"github.com/pingcap/shardflow/pkg/config"
	cerror "github.com/pingcap/shardflow/pkg/errors"
	"github.com/pingcap/shardflow/pkg/logutil"
	"github.com/pingcap/shardflow/pkg/retry"
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

// ShardProcessor processes the records of one shard and checkpoints its
// progress. Calls are expected to come from a single goroutine.
type ShardProcessor struct {
	retryCount         uint64
	backoffInterval    time.Duration
	checkpointInterval time.Duration

	handler    RecordHandler
	clock      clock.Clock
	baseLogger *zap.Logger
	logger     *zap.Logger

	// state and position are also read by the status server.
	state   atomic.Int32
	shardID string
	// position is the sequence number of the last attempted record.
	position atomic.String
	// initialPosition is the checkpoint the shard was initialized with.
	initialPosition    string
	nextCheckpointTime time.Time
}

// Option configures a ShardProcessor.
type Option func(*ShardProcessor)

// WithClock sets the clock used for backoff and checkpoint cadence.
func WithClock(clk clock.Clock) Option {
	return func(p *ShardProcessor) {
		p.clock = clk
	}
}

// WithLogger sets the logger, the global logger is used by default.
func WithLogger(logger *zap.Logger) Option {
	return func(p *ShardProcessor) {
		p.baseLogger = logger
	}
}

// NewShardProcessor creates a ShardProcessor in the Initializing state.
func NewShardProcessor(cfg *config.ProcessorConfig, handler RecordHandler, opts ...Option) *ShardProcessor {
	p := &ShardProcessor{
		retryCount:         cfg.RetryCount,
		backoffInterval:    time.Duration(cfg.BackoffInterval),
		checkpointInterval: time.Duration(cfg.CheckpointInterval),
		handler:            handler,
		clock:              clock.New(),
		baseLogger:         log.L(),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = p.baseLogger
	p.state.Store(int32(StateInitializing))
	return p
}

// State returns the lifecycle state.
func (p *ShardProcessor) State() State {
	return State(p.state.Load())
}

// ShardID returns the shard set by Initialize.
func (p *ShardProcessor) ShardID() string {
	return p.shardID
}

// Position returns the sequence number of the last attempted record.
func (p *ShardProcessor) Position() string {
	return p.position.Load()
}

// ProcessRecords handles a batch of records in order. Every record is
// attempted on its own, a failing record is skipped after the retry budget
// is spent and never fails the batch. A checkpoint is written afterwards
// if the checkpoint interval has elapsed.
//
// Cancelling ctx stops the batch before the next record. The record in
// flight and the checkpoint are not interrupted.
//
// An error is only returned when the processor is not active or when the
// batch dispatch itself panics, the processor is then Halted.
func (p *ShardProcessor) ProcessRecords(ctx context.Context, input ProcessRecordsInput) (err error) {
	if state := p.State(); state != StateActive {
		return cerror.ErrProcessorNotActive.GenWithStackByArgs(p.shardID, state)
	}
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("shard processor halted by unexpected panic",
				zap.Any("panic", r), zap.Stack("stack"))
			if terr := p.transitTo(StateHalted); terr != nil {
				p.logger.Warn("transit to halted failed", zap.Error(terr))
			}
			err = cerror.ErrProcessorHalted.GenWithStackByArgs(p.shardID)
		}
	}()

	millisBehindLatestGauge.WithLabelValues(p.shardID).Set(float64(input.MillisBehindLatest))
	p.logger.Debug("processing records",
		zap.Int("count", len(input.Records)),
		zap.Int64("millisBehindLatest", input.MillisBehindLatest))

	recordCtx := context.WithoutCancel(ctx)
	for i, record := range input.Records {
		if ctx.Err() != nil {
			p.logger.Info("stop processing batch, context is done",
				zap.Int("remaining", len(input.Records)-i),
				zap.String("position", p.Position()))
			break
		}
		outcome := p.processRecord(recordCtx, record)
		recordCounter.WithLabelValues(p.shardID, outcome.String()).Inc()
		p.position.Store(record.SequenceNumber)
	}

	p.maybeCheckpoint(recordCtx, input.Checkpointer)
	return nil
}

func (p *ShardProcessor) processRecord(ctx context.Context, record *model.Record) model.ProcessingOutcome {
	fields := []zap.Field{
		zap.String("sequenceNumber", record.SequenceNumber),
		zap.String("partitionKey", record.PartitionKey),
	}
	if !utf8.Valid(record.Data) {
		p.logger.Warn("skip malformed record, data is not valid UTF-8", fields...)
		return model.OutcomeSkipped
	}

	ctx = logutil.NewContextWithLogger(ctx, p.logger)
	start := p.clock.Now()
	err := retry.Do(ctx, func() error {
		return p.attempt(ctx, record)
	},
		retry.WithMaxTries(p.retryCount),
		retry.WithBackoffInterval(p.backoffInterval),
		retry.WithClock(p.clock),
		retry.WithIsRetryableErr(func(err error) bool {
			return !cerror.IsPermanentRecordError(err)
		}),
		retry.WithNotify(func(attempt uint64, err error) {
			if cerror.IsPermanentRecordError(err) {
				return
			}
			attemptFailureCounter.WithLabelValues(p.shardID).Inc()
			p.logger.Warn("failed to process record",
				append(fields, zap.Uint64("attempt", attempt), zap.Error(err))...)
		}),
	)
	recordDuration.WithLabelValues(p.shardID).Observe(p.clock.Since(start).Seconds())

	switch {
	case err == nil:
		return model.OutcomeSuccess
	case cerror.IsPermanentRecordError(err):
		p.logger.Warn("skip record that does not match the expected format",
			append(fields, zap.Error(err))...)
		return model.OutcomeSkipped
	default:
		p.logger.Error("couldn't process record, skipping the record",
			append(fields, zap.Uint64("attempts", p.retryCount), zap.Error(err))...)
		return model.OutcomeFailed
	}
}

// attempt runs the handler once, a panic fails the attempt.
func (p *ShardProcessor) attempt(ctx context.Context, record *model.Record) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Errorf("panic while processing record: %v", r)
		}
	}()
	return p.handler.Handle(ctx, p.shardID, record)
}

func (p *ShardProcessor) maybeCheckpoint(ctx context.Context, checkpointer Checkpointer) {
	if !p.clock.Now().After(p.nextCheckpointTime) {
		return
	}
	position := p.Position()
	if position == "" {
		return
	}
	p.checkpoint(ctx, checkpointer, position)
	// the cadence restarts whatever the outcome was
	p.nextCheckpointTime = p.clock.Now().Add(p.checkpointInterval)
}
