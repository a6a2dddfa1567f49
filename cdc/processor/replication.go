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

	"github.com/pingcap/errors"
	"github.com/pingcap/log"
	"github.com/pingcap/shardflow/cdc/model"
	"github.com/pingcap/shardflow/cdc/translator"
	"github.com/pingcap/shardflow/pkg/logutil"
	"go.uber.org/zap"
)

// ReplicationHandler applies the change events of a source table to the
// destination table.
type ReplicationHandler struct {
	translator *translator.Translator
	store      DestinationStore
}

// NewReplicationHandler resolves the key attribute of the destination table
// once and creates a ReplicationHandler that keeps it for its lifetime.
func NewReplicationHandler(
	ctx context.Context, table string, resolver SchemaResolver, store DestinationStore,
) (*ReplicationHandler, error) {
	keyAttribute, err := resolver.ResolveKeyAttribute(ctx, table)
	if err != nil {
		return nil, errors.Trace(err)
	}
	log.Info("resolved key attribute of destination table",
		zap.String("table", table), zap.String("keyAttribute", keyAttribute))
	return &ReplicationHandler{
		translator: translator.New(table, keyAttribute),
		store:      store,
	}, nil
}

// Handle implements RecordHandler.
func (h *ReplicationHandler) Handle(ctx context.Context, _ string, record *model.Record) error {
	if record.Change == nil {
		logutil.FromContext(ctx).Debug("record carries no change event, ignore it",
			zap.String("sequenceNumber", record.SequenceNumber))
		return nil
	}
	mutation, err := h.translator.Translate(record.Change)
	if err != nil {
		return err
	}
	switch m := mutation.(type) {
	case model.Upsert:
		return h.store.Upsert(ctx, m.Table, m.Item)
	case model.Delete:
		return h.store.Delete(ctx, m.Table, m.Key)
	}
	return nil
}
