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
	"strconv"
	"testing"
	"time"

	"github.com/pingcap/errors"
	"github.com/pingcap/shardflow/cdc/model"
	"github.com/pingcap/shardflow/cdc/processor/mock"
	"github.com/pingcap/shardflow/pkg/config"
	cerror "github.com/pingcap/shardflow/pkg/errors"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func newRecords(n int) []*model.Record {
	records := make([]*model.Record, 0, n)
	for i := 1; i <= n; i++ {
		records = append(records, &model.Record{
			Data:           []byte(`{"id":` + strconv.Itoa(i) + `}`),
			PartitionKey:   "pk-" + strconv.Itoa(i),
			SequenceNumber: strconv.Itoa(i),
		})
	}
	return records
}

func TestProcessRecordsInOrder(t *testing.T) {
	t.Parallel()

	var visited []string
	p := newTestProcessor(t, RecordHandlerFunc(
		func(_ context.Context, shardID string, record *model.Record) error {
			require.Equal(t, testShardID, shardID)
			visited = append(visited, record.SequenceNumber)
			return nil
		}))
	checkpointer := mock.NewMockCheckpointer(gomock.NewController(t))
	checkpointer.EXPECT().Checkpoint(gomock.Any(), "5").Return(nil).Times(1)

	err := p.ProcessRecords(context.Background(), ProcessRecordsInput{
		Records:      newRecords(5),
		Checkpointer: checkpointer,
	})
	require.NoError(t, err)
	require.Equal(t, []string{"1", "2", "3", "4", "5"}, visited)
	require.Equal(t, "5", p.Position())
	require.Empty(t, p.clock.recordedWaits())
}

func TestPoisonRecordIsSkippedAfterRetries(t *testing.T) {
	t.Parallel()

	attempts := make(map[string]int)
	p := newTestProcessor(t, RecordHandlerFunc(
		func(_ context.Context, _ string, record *model.Record) error {
			attempts[record.SequenceNumber]++
			if record.SequenceNumber == "2" {
				return errors.New("destination unavailable")
			}
			return nil
		}))
	checkpointer := mock.NewMockCheckpointer(gomock.NewController(t))
	checkpointer.EXPECT().Checkpoint(gomock.Any(), "3").Return(nil).Times(1)

	err := p.ProcessRecords(context.Background(), ProcessRecordsInput{
		Records:      newRecords(3),
		Checkpointer: checkpointer,
	})
	require.NoError(t, err)
	require.Equal(t, map[string]int{"1": 1, "2": testRetryCount, "3": 1}, attempts)
	require.Equal(t, repeatDuration(testBackoffInterval, testRetryCount-1), p.clock.recordedWaits())

	require.Equal(t, testRetryCount, p.logs.FilterMessage("failed to process record").Len())
	skipped := p.logs.FilterMessage("couldn't process record, skipping the record").All()
	require.Len(t, skipped, 1)
	require.Equal(t, "2", skipped[0].ContextMap()["sequenceNumber"])
	require.Equal(t, "pk-2", skipped[0].ContextMap()["partitionKey"])
	require.Equal(t, 1, p.logs.FilterMessage("checkpoint succeeded").Len())
}

func TestMalformedRecordIsNotRetried(t *testing.T) {
	t.Parallel()

	calls := 0
	p := newTestProcessor(t, RecordHandlerFunc(
		func(_ context.Context, _ string, record *model.Record) error {
			calls++
			if record.SequenceNumber == "2" {
				return cerror.WrapError(cerror.ErrRecordFormatMismatch,
					errors.New("invalid character"), record.SequenceNumber)
			}
			return nil
		}))
	checkpointer := mock.NewMockCheckpointer(gomock.NewController(t))
	checkpointer.EXPECT().Checkpoint(gomock.Any(), "3").Return(nil)

	records := newRecords(3)
	records[0].Data = []byte{0xff, 0xfe, 0xfd}
	err := p.ProcessRecords(context.Background(), ProcessRecordsInput{
		Records:      records,
		Checkpointer: checkpointer,
	})
	require.NoError(t, err)
	// the invalid UTF-8 record never reaches the handler, the mismatched one
	// reaches it once
	require.Equal(t, 2, calls)
	require.Empty(t, p.clock.recordedWaits())
	require.Equal(t, 1, p.logs.FilterMessage("skip malformed record, data is not valid UTF-8").Len())
	require.Equal(t, 1, p.logs.FilterMessage("skip record that does not match the expected format").Len())
	require.Equal(t, 0, p.logs.FilterMessage("failed to process record").Len())
}

func TestPanicFailsTheAttempt(t *testing.T) {
	t.Parallel()

	calls := 0
	p := newTestProcessor(t, RecordHandlerFunc(
		func(context.Context, string, *model.Record) error {
			calls++
			if calls < 3 {
				panic("unexpected nil image")
			}
			return nil
		}))
	checkpointer := mock.NewMockCheckpointer(gomock.NewController(t))
	checkpointer.EXPECT().Checkpoint(gomock.Any(), "1").Return(nil)

	err := p.ProcessRecords(context.Background(), ProcessRecordsInput{
		Records:      newRecords(1),
		Checkpointer: checkpointer,
	})
	require.NoError(t, err)
	require.Equal(t, 3, calls)
	require.Equal(t, StateActive, p.State())
	require.Len(t, p.clock.recordedWaits(), 2)
}

func TestCheckpointCadence(t *testing.T) {
	t.Parallel()

	p := newTestProcessor(t, RecordHandlerFunc(
		func(context.Context, string, *model.Record) error { return nil }))
	checkpointer := mock.NewMockCheckpointer(gomock.NewController(t))
	records := newRecords(4)
	ctx := context.Background()

	// the first batch always checkpoints
	checkpointer.EXPECT().Checkpoint(gomock.Any(), "1").Return(nil)
	require.NoError(t, p.ProcessRecords(ctx, ProcessRecordsInput{
		Records: records[:1], Checkpointer: checkpointer,
	}))

	// within the interval, no checkpoint
	p.clock.Add(30 * time.Second)
	require.NoError(t, p.ProcessRecords(ctx, ProcessRecordsInput{
		Records: records[1:2], Checkpointer: checkpointer,
	}))

	// the interval is elapsed
	p.clock.Add(31 * time.Second)
	checkpointer.EXPECT().Checkpoint(gomock.Any(), "3").Return(nil)
	require.NoError(t, p.ProcessRecords(ctx, ProcessRecordsInput{
		Records: records[2:3], Checkpointer: checkpointer,
	}))

	// a failed checkpoint still restarts the cadence
	p.clock.Add(61 * time.Second)
	checkpointer.EXPECT().Checkpoint(gomock.Any(), "4").
		Return(cerror.ErrCheckpointInvalidState.GenWithStackByArgs())
	require.NoError(t, p.ProcessRecords(ctx, ProcessRecordsInput{
		Records: records[3:], Checkpointer: checkpointer,
	}))
	require.NoError(t, p.ProcessRecords(ctx, ProcessRecordsInput{
		Records: nil, Checkpointer: checkpointer,
	}))
}

func TestEmptyBatchBeforeAnyRecord(t *testing.T) {
	t.Parallel()

	p := newTestProcessor(t, RecordHandlerFunc(
		func(context.Context, string, *model.Record) error { return nil }))
	// no expectation, nothing to checkpoint yet
	checkpointer := mock.NewMockCheckpointer(gomock.NewController(t))
	require.NoError(t, p.ProcessRecords(context.Background(), ProcessRecordsInput{
		Checkpointer: checkpointer, MillisBehindLatest: 1000,
	}))
	require.Equal(t, "", p.Position())
}

func TestCancelStopsBeforeNextRecord(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var visited []string
	p := newTestProcessor(t, RecordHandlerFunc(
		func(ctx context.Context, _ string, record *model.Record) error {
			visited = append(visited, record.SequenceNumber)
			if record.SequenceNumber == "2" {
				cancel()
				// the record in flight keeps a live context
				require.NoError(t, ctx.Err())
			}
			return nil
		}))
	checkpointer := mock.NewMockCheckpointer(gomock.NewController(t))
	checkpointer.EXPECT().Checkpoint(gomock.Any(), "2").
		DoAndReturn(func(ctx context.Context, _ string) error {
			return ctx.Err()
		})

	err := p.ProcessRecords(ctx, ProcessRecordsInput{
		Records:      newRecords(4),
		Checkpointer: checkpointer,
	})
	require.NoError(t, err)
	require.Equal(t, []string{"1", "2"}, visited)
	require.Equal(t, "2", p.Position())
	require.Equal(t, StateActive, p.State())
}

func TestDispatchPanicHaltsProcessor(t *testing.T) {
	t.Parallel()

	p := newTestProcessor(t, RecordHandlerFunc(
		func(context.Context, string, *model.Record) error { return nil }))
	checkpointer := mock.NewMockCheckpointer(gomock.NewController(t))

	records := newRecords(2)
	records = append(records, nil)
	err := p.ProcessRecords(context.Background(), ProcessRecordsInput{
		Records:      records,
		Checkpointer: checkpointer,
	})
	require.True(t, cerror.Is(err, cerror.ErrProcessorHalted))
	require.Equal(t, StateHalted, p.State())
	require.Equal(t, 1, p.logs.FilterMessage("shard processor halted by unexpected panic").Len())

	err = p.ProcessRecords(context.Background(), ProcessRecordsInput{
		Records:      newRecords(1),
		Checkpointer: checkpointer,
	})
	require.True(t, cerror.Is(err, cerror.ErrProcessorNotActive))
}

func TestProcessRecordsBeforeInitialize(t *testing.T) {
	t.Parallel()

	p := NewShardProcessor(&config.ProcessorConfig{RetryCount: 1},
		RecordHandlerFunc(func(context.Context, string, *model.Record) error { return nil }))
	err := p.ProcessRecords(context.Background(), ProcessRecordsInput{Records: newRecords(1)})
	require.True(t, cerror.Is(err, cerror.ErrProcessorNotActive))
}
