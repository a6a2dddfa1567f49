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

package translator

import (
	"github.com/pingcap/log"
	"github.com/pingcap/shardflow/cdc/model"
	cerror "github.com/pingcap/shardflow/pkg/errors"
	"go.uber.org/zap"
)

// Translator turns the change events of a source table into mutations of
// the destination table.
type Translator struct {
	// Table is the destination table.
	Table string
	// KeyAttribute is the hash key attribute name of the destination table.
	KeyAttribute string
}

// New creates a Translator.
func New(table, keyAttribute string) *Translator {
	return &Translator{Table: table, KeyAttribute: keyAttribute}
}

// Translate maps a change event to at most one mutation.
//
//   - INSERT and MODIFY upsert the new image.
//   - REMOVE deletes the row keyed by the key attribute.
//   - Any other event yields no mutation.
func (t *Translator) Translate(event model.ChangeEvent) (model.Mutation, error) {
	switch e := event.(type) {
	case model.InsertEvent:
		return model.Upsert{Table: t.Table, Item: e.NewImage}, nil
	case model.ModifyEvent:
		if e.OldImage != nil {
			log.Info("row modified", zap.String("table", t.Table),
				zap.Any("oldImage", e.OldImage))
		}
		return model.Upsert{Table: t.Table, Item: e.NewImage}, nil
	case model.RemoveEvent:
		value, ok := e.Keys[t.KeyAttribute]
		if !ok || value == nil {
			return nil, cerror.ErrKeyAttributeMissing.GenWithStackByArgs(t.KeyAttribute)
		}
		return model.Delete{
			Table: t.Table,
			Key:   model.Item{t.KeyAttribute: value},
		}, nil
	case model.UnknownEvent:
		log.Warn("ignore unknown change event",
			zap.String("table", t.Table), zap.String("eventName", e.Name))
	}
	return nil, nil
}
