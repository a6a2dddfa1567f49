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
	"bytes"
	"context"
	"io"
	"time"

	"github.com/aws/aws-sdk-go/service/dynamodb/dynamodbattribute"
	"github.com/benbjohnson/clock"
	"github.com/goccy/go-json"
	"github.com/pingcap/shardflow/cdc/model"
	"github.com/pingcap/shardflow/pkg/config"
	cerror "github.com/pingcap/shardflow/pkg/errors"
	"github.com/pingcap/shardflow/pkg/logutil"
	"go.uber.org/zap"
)

// DisplayHandler logs every JSON record together with its age.
type DisplayHandler struct {
	recordAge *config.RecordAgeConfig
	clock     clock.Clock
}

// NewDisplayHandler creates a DisplayHandler.
func NewDisplayHandler(recordAge *config.RecordAgeConfig, clk clock.Clock) *DisplayHandler {
	return &DisplayHandler{recordAge: recordAge, clock: clk}
}

// Handle implements RecordHandler.
func (h *DisplayHandler) Handle(ctx context.Context, _ string, record *model.Record) error {
	payload, err := decodeJSONRecord(record)
	if err != nil {
		return err
	}
	now := h.clock.Now()
	fields := []zap.Field{
		zap.String("partitionKey", record.PartitionKey),
		zap.String("sequenceNumber", record.SequenceNumber),
		zap.Duration("arrivalAge", now.Sub(record.ApproximateArrivalTimestamp)),
		zap.ByteString("data", record.Data),
	}
	if h.recordAge.Enabled {
		createdAt, err := parseTimeField(payload, h.recordAge.TimeField, h.recordAge.TimeFormat)
		if err != nil {
			return err
		}
		fields = append(fields, zap.Duration("creationAge", now.Sub(createdAt)))
	}
	logutil.FromContext(ctx).Info("record received", fields...)
	return nil
}

// decodeJSONRecord parses the record data as a JSON object. Data that is
// not a single JSON object fails with ErrRecordFormatMismatch. Numbers are
// kept as dynamodbattribute.Number so integers are not rounded.
func decodeJSONRecord(record *model.Record) (map[string]interface{}, error) {
	var payload map[string]interface{}
	dec := json.NewDecoder(bytes.NewReader(record.Data))
	dec.UseNumber()
	if err := dec.Decode(&payload); err != nil {
		return nil, cerror.WrapError(cerror.ErrRecordFormatMismatch, err, record.SequenceNumber)
	}
	if payload == nil {
		return nil, cerror.ErrRecordFormatMismatch.GenWithStackByArgs(record.SequenceNumber)
	}
	var trailing interface{}
	if err := dec.Decode(&trailing); err != io.EOF {
		return nil, cerror.ErrRecordFormatMismatch.GenWithStackByArgs(record.SequenceNumber)
	}
	for k, v := range payload {
		payload[k] = toAttributeNumber(v)
	}
	return payload, nil
}

// toAttributeNumber replaces json.Number values, nested ones included, with
// dynamodbattribute.Number, which is marshaled as a DynamoDB N attribute.
func toAttributeNumber(v interface{}) interface{} {
	switch x := v.(type) {
	case json.Number:
		return dynamodbattribute.Number(x)
	case map[string]interface{}:
		for k, e := range x {
			x[k] = toAttributeNumber(e)
		}
	case []interface{}:
		for i, e := range x {
			x[i] = toAttributeNumber(e)
		}
	}
	return v
}

func parseTimeField(payload map[string]interface{}, field, layout string) (time.Time, error) {
	value, ok := payload[field].(string)
	if !ok {
		return time.Time{}, cerror.ErrRecordTimeField.GenWithStackByArgs(field)
	}
	t, err := time.Parse(layout, value)
	if err != nil {
		return time.Time{}, cerror.WrapError(cerror.ErrRecordTimeField, err, field)
	}
	return t, nil
}
