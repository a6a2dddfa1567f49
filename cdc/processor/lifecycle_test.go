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
	"testing"
	"time"

	"github.com/pingcap/shardflow/cdc/model"
	"github.com/pingcap/shardflow/cdc/processor/mock"
	"github.com/pingcap/shardflow/pkg/config"
	cerror "github.com/pingcap/shardflow/pkg/errors"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestShardEndedCheckpointsOnce(t *testing.T) {
	t.Parallel()

	p := newTestProcessor(t, nopHandler())
	checkpointer := mock.NewMockCheckpointer(gomock.NewController(t))
	ctx := context.Background()

	// the batch checkpoint restarts the cadence timer
	checkpointer.EXPECT().Checkpoint(gomock.Any(), "2").Return(nil)
	require.NoError(t, p.ProcessRecords(ctx, ProcessRecordsInput{
		Records: newRecords(2), Checkpointer: checkpointer,
	}))

	// shard end ignores the cadence timer
	checkpointer.EXPECT().Checkpoint(gomock.Any(), model.ShardEnd).Return(nil).Times(1)
	require.NoError(t, p.ShardEnded(ctx, ShardEndedInput{Checkpointer: checkpointer}))
	require.Equal(t, StateShardEnded, p.State())
	require.True(t, p.State().IsTerminal())
}

func TestLeaseLostDoesNotCheckpoint(t *testing.T) {
	t.Parallel()

	p := newTestProcessor(t, nopHandler())
	// any call on this mock fails the test
	checkpointer := mock.NewMockCheckpointer(gomock.NewController(t))
	checkpointer.EXPECT().Checkpoint(gomock.Any(), gomock.Any()).Times(0)

	require.NoError(t, p.LeaseLost())
	require.Equal(t, StateLeaseLost, p.State())

	err := p.ProcessRecords(context.Background(), ProcessRecordsInput{
		Records: newRecords(1), Checkpointer: checkpointer,
	})
	require.True(t, cerror.Is(err, cerror.ErrProcessorNotActive))
	err = p.ShutdownRequested(context.Background(), ShutdownRequestedInput{Checkpointer: checkpointer})
	require.True(t, cerror.Is(err, cerror.ErrInvalidLifecycleTransition))
}

func TestShutdownRequested(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	// nothing processed, nothing to checkpoint
	p := newTestProcessor(t, nopHandler())
	checkpointer := mock.NewMockCheckpointer(gomock.NewController(t))
	require.NoError(t, p.ShutdownRequested(ctx, ShutdownRequestedInput{Checkpointer: checkpointer}))
	require.Equal(t, StateShutdownRequested, p.State())

	// nothing processed since a resumed checkpoint, it is written again
	p = &testProcessor{ShardProcessor: NewShardProcessor(&config.ProcessorConfig{
		RetryCount:         testRetryCount,
		BackoffInterval:    config.TomlDuration(testBackoffInterval),
		CheckpointInterval: config.TomlDuration(time.Minute),
	}, nopHandler(), WithClock(newFakeClock()))}
	require.NoError(t, p.Initialize(InitializationInput{ShardID: testShardID, ExtendedSequenceNumber: "7"}))
	checkpointer = mock.NewMockCheckpointer(gomock.NewController(t))
	checkpointer.EXPECT().Checkpoint(gomock.Any(), "7").Return(nil).Times(1)
	require.NoError(t, p.ShutdownRequested(ctx, ShutdownRequestedInput{Checkpointer: checkpointer}))
	require.Equal(t, StateShutdownRequested, p.State())

	// checkpoint at the current position, failures are not escalated
	p = newTestProcessor(t, nopHandler())
	checkpointer = mock.NewMockCheckpointer(gomock.NewController(t))
	checkpointer.EXPECT().Checkpoint(gomock.Any(), "3").Return(nil)
	require.NoError(t, p.ProcessRecords(ctx, ProcessRecordsInput{
		Records: newRecords(3), Checkpointer: checkpointer,
	}))
	checkpointer.EXPECT().Checkpoint(gomock.Any(), "3").
		Return(cerror.ErrCheckpointSuperseded.GenWithStackByArgs(testShardID))
	require.NoError(t, p.ShutdownRequested(ctx, ShutdownRequestedInput{Checkpointer: checkpointer}))
	require.Equal(t, StateShutdownRequested, p.State())
}

func TestTerminalStatesRejectTransitions(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	p := newTestProcessor(t, nopHandler())
	checkpointer := mock.NewMockCheckpointer(gomock.NewController(t))
	checkpointer.EXPECT().Checkpoint(gomock.Any(), model.ShardEnd).Return(nil).Times(1)

	err := p.Initialize(InitializationInput{ShardID: "shardId-000000000002"})
	require.True(t, cerror.Is(err, cerror.ErrInvalidLifecycleTransition))
	require.Equal(t, testShardID, p.ShardID())

	require.NoError(t, p.ShardEnded(ctx, ShardEndedInput{Checkpointer: checkpointer}))
	require.True(t, cerror.Is(p.ShardEnded(ctx, ShardEndedInput{Checkpointer: checkpointer}),
		cerror.ErrInvalidLifecycleTransition))
	require.True(t, cerror.Is(p.LeaseLost(), cerror.ErrInvalidLifecycleTransition))
	require.Equal(t, StateShardEnded, p.State())
	require.Equal(t, 1, p.logs.FilterMessage("reached shard end, checkpointing").Len())
}

func TestStateString(t *testing.T) {
	t.Parallel()

	require.Equal(t, "Initializing", StateInitializing.String())
	require.Equal(t, "Active", StateActive.String())
	require.Equal(t, "LeaseLost", StateLeaseLost.String())
	require.Equal(t, "ShardEnded", StateShardEnded.String())
	require.Equal(t, "ShutdownRequested", StateShutdownRequested.String())
	require.Equal(t, "Halted", StateHalted.String())
	require.False(t, StateActive.IsTerminal())
	require.True(t, StateHalted.IsTerminal())
}
