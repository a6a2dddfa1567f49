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

package model

// Mutation is a write to apply on the destination table.
// It is either Upsert or Delete.
type Mutation interface {
	isMutation()
	TableName() string
}

// Upsert writes the whole item, replacing any row with the same key.
type Upsert struct {
	Table string
	Item  Item
}

// Delete removes the row identified by Key.
type Delete struct {
	Table string
	Key   Item
}

func (Upsert) isMutation() {}
func (Delete) isMutation() {}

// TableName implements Mutation.
func (u Upsert) TableName() string { return u.Table }

// TableName implements Mutation.
func (d Delete) TableName() string { return d.Table }
