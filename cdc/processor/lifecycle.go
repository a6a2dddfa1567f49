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
	cerror "github.com/pingcap/shardflow/pkg/errors"
	"go.uber.org/zap"
)

// State is the lifecycle state of a ShardProcessor.
type State int

// Lifecycle states. LeaseLost, ShardEnded, ShutdownRequested and Halted
// are terminal.
const (
	StateInitializing State = iota
	StateActive
	StateLeaseLost
	StateShardEnded
	StateShutdownRequested
	StateHalted
)

func (s State) String() string {
	switch s {
	case StateInitializing:
		return "Initializing"
	case StateActive:
		return "Active"
	case StateLeaseLost:
		return "LeaseLost"
	case StateShardEnded:
		return "ShardEnded"
	case StateShutdownRequested:
		return "ShutdownRequested"
	case StateHalted:
		return "Halted"
	}
	return "Unknown"
}

// IsTerminal returns true if no transition leaves the state.
func (s State) IsTerminal() bool {
	return s >= StateLeaseLost
}

func (s State) canTransitTo(to State) bool {
	switch s {
	case StateInitializing:
		return to == StateActive
	case StateActive:
		return to.IsTerminal()
	}
	return false
}

func (p *ShardProcessor) transitTo(to State) error {
	from := p.State()
	if !from.canTransitTo(to) {
		return cerror.ErrInvalidLifecycleTransition.GenWithStackByArgs(from, to)
	}
	p.logger.Info("shard processor state changed",
		zap.Stringer("from", from), zap.Stringer("to", to))
	p.state.Store(int32(to))
	stateGauge.WithLabelValues(p.shardID).Set(float64(to))
	return nil
}

// Initialize records the shard this processor works on and activates it.
func (p *ShardProcessor) Initialize(input InitializationInput) error {
	if p.State() == StateInitializing {
		p.shardID = input.ShardID
		p.initialPosition = input.ExtendedSequenceNumber
		p.logger = p.baseLogger.With(zap.String("shardID", input.ShardID))
	}
	if err := p.transitTo(StateActive); err != nil {
		return err
	}
	p.logger.Info("initializing shard processor",
		zap.String("checkpoint", input.ExtendedSequenceNumber))
	return nil
}

// LeaseLost is called when another worker took the shard over. No
// checkpoint is written, it would race with the new owner.
func (p *ShardProcessor) LeaseLost() error {
	if err := p.transitTo(StateLeaseLost); err != nil {
		return err
	}
	p.logger.Info("lost lease, terminating", zap.String("position", p.Position()))
	return nil
}

// ShardEnded is called once every record of the shard has been delivered.
// It checkpoints at the end of the shard whatever the cadence timer says,
// which lets the child shards be picked up.
func (p *ShardProcessor) ShardEnded(ctx context.Context, input ShardEndedInput) error {
	if err := p.transitTo(StateShardEnded); err != nil {
		return err
	}
	p.logger.Info("reached shard end, checkpointing")
	p.checkpoint(ctx, input.Checkpointer, model.ShardEnd)
	return nil
}

// ShutdownRequested makes a best-effort checkpoint at the current position.
// When nothing was processed the position the shard was initialized with is
// checkpointed again. A shard that was never checkpointed has nothing to write.
func (p *ShardProcessor) ShutdownRequested(ctx context.Context, input ShutdownRequestedInput) error {
	if err := p.transitTo(StateShutdownRequested); err != nil {
		return err
	}
	position := p.Position()
	if position == "" {
		position = p.initialPosition
	}
	if position == "" {
		p.logger.Info("shutdown requested, no position to checkpoint")
		return nil
	}
	p.logger.Info("shutdown requested, checkpointing", zap.String("position", position))
	p.checkpoint(ctx, input.Checkpointer, position)
	return nil
}
