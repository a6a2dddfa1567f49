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

import (
	"github.com/aws/aws-sdk-go/service/dynamodb"
)

// Item is a table row in DynamoDB attribute form.
type Item = map[string]*dynamodb.AttributeValue

// ChangeEvent describes one row level change of a source table.
// It is one of InsertEvent, ModifyEvent, RemoveEvent or UnknownEvent.
type ChangeEvent interface {
	isChangeEvent()
}

// InsertEvent is emitted when a row is created.
type InsertEvent struct {
	Keys     Item
	NewImage Item
}

// ModifyEvent is emitted when a row is updated. OldImage is only present
// when the stream view type carries it.
type ModifyEvent struct {
	Keys     Item
	OldImage Item
	NewImage Item
}

// RemoveEvent is emitted when a row is deleted.
type RemoveEvent struct {
	Keys     Item
	OldImage Item
}

// UnknownEvent carries an event name this consumer does not understand.
type UnknownEvent struct {
	Name string
}

func (InsertEvent) isChangeEvent()  {}
func (ModifyEvent) isChangeEvent()  {}
func (RemoveEvent) isChangeEvent()  {}
func (UnknownEvent) isChangeEvent() {}

// Change event names used by DynamoDB Streams.
const (
	EventNameInsert = "INSERT"
	EventNameModify = "MODIFY"
	EventNameRemove = "REMOVE"
)

// EventName returns the stream event name of a change event.
func EventName(event ChangeEvent) string {
	switch e := event.(type) {
	case InsertEvent:
		return EventNameInsert
	case ModifyEvent:
		return EventNameModify
	case RemoveEvent:
		return EventNameRemove
	case UnknownEvent:
		return e.Name
	}
	return ""
}
