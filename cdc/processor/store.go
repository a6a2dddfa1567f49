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

	"github.com/aws/aws-sdk-go/service/dynamodb/dynamodbattribute"
	"github.com/pingcap/shardflow/cdc/model"
	cerror "github.com/pingcap/shardflow/pkg/errors"
	"github.com/pingcap/shardflow/pkg/logutil"
	"go.uber.org/zap"
)

// StoreHandler writes JSON records that carry the time field to the
// destination table. Records without it are acknowledged and dropped.
type StoreHandler struct {
	table     string
	timeField string
	store     DestinationStore
}

// NewStoreHandler creates a StoreHandler.
func NewStoreHandler(table, timeField string, store DestinationStore) *StoreHandler {
	return &StoreHandler{table: table, timeField: timeField, store: store}
}

// Handle implements RecordHandler.
func (h *StoreHandler) Handle(ctx context.Context, _ string, record *model.Record) error {
	payload, err := decodeJSONRecord(record)
	if err != nil {
		return err
	}
	if _, ok := payload[h.timeField]; !ok {
		logutil.FromContext(ctx).Info("record has no time field, skip storing it",
			zap.String("sequenceNumber", record.SequenceNumber),
			zap.String("timeField", h.timeField))
		return nil
	}
	item, err := dynamodbattribute.MarshalMap(payload)
	if err != nil {
		return cerror.WrapError(cerror.ErrEncodeFailed, err, record.SequenceNumber)
	}
	return h.store.Upsert(ctx, h.table, item)
}
