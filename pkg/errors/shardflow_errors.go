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

package errors

import (
	"github.com/pingcap/errors"
)

// errors
var (
	// record processing errors
	ErrMalformedRecord = errors.Normalize(
		"malformed record data, sequence number: %s",
		errors.RFCCodeText("ShardFlow:ErrMalformedRecord"),
	)
	ErrRecordFormatMismatch = errors.Normalize(
		"record does not match the expected format, sequence number: %s",
		errors.RFCCodeText("ShardFlow:ErrRecordFormatMismatch"),
	)
	ErrRecordTimeField = errors.Normalize(
		"record time field %s is missing or invalid",
		errors.RFCCodeText("ShardFlow:ErrRecordTimeField"),
	)
	ErrKeyAttributeMissing = errors.Normalize(
		"key attribute %s not found in change event keys",
		errors.RFCCodeText("ShardFlow:ErrKeyAttributeMissing"),
	)

	// checkpoint errors
	ErrCheckpointSuperseded = errors.Normalize(
		"shard %s is owned by another worker, checkpoint superseded",
		errors.RFCCodeText("ShardFlow:ErrCheckpointSuperseded"),
	)
	ErrCheckpointThrottled = errors.Normalize(
		"checkpoint store throttled the request",
		errors.RFCCodeText("ShardFlow:ErrCheckpointThrottled"),
	)
	ErrCheckpointInvalidState = errors.Normalize(
		"checkpoint store is in an invalid state",
		errors.RFCCodeText("ShardFlow:ErrCheckpointInvalidState"),
	)
	ErrCheckpointRegression = errors.Normalize(
		"checkpoint position regressed from %s to %s",
		errors.RFCCodeText("ShardFlow:ErrCheckpointRegression"),
	)
	ErrInvalidSequenceNumber = errors.Normalize(
		"invalid sequence number %s",
		errors.RFCCodeText("ShardFlow:ErrInvalidSequenceNumber"),
	)
	ErrShardNotClaimed = errors.Normalize(
		"shard %s is already claimed by %s",
		errors.RFCCodeText("ShardFlow:ErrShardNotClaimed"),
	)

	// lifecycle errors
	ErrInvalidLifecycleTransition = errors.Normalize(
		"invalid shard processor transition from %s to %s",
		errors.RFCCodeText("ShardFlow:ErrInvalidLifecycleTransition"),
	)
	ErrProcessorNotActive = errors.Normalize(
		"shard processor for %s is %s, records can only be processed when active",
		errors.RFCCodeText("ShardFlow:ErrProcessorNotActive"),
	)
	ErrProcessorHalted = errors.Normalize(
		"shard processor for %s halted",
		errors.RFCCodeText("ShardFlow:ErrProcessorHalted"),
	)

	// destination store errors
	ErrDescribeTable = errors.Normalize(
		"describe table %s failed",
		errors.RFCCodeText("ShardFlow:ErrDescribeTable"),
	)
	ErrHashKeyNotFound = errors.Normalize(
		"table %s has no HASH key in its key schema",
		errors.RFCCodeText("ShardFlow:ErrHashKeyNotFound"),
	)
	ErrDestinationWrite = errors.Normalize(
		"write to destination table %s failed",
		errors.RFCCodeText("ShardFlow:ErrDestinationWrite"),
	)

	// stream reader errors
	ErrShardIterator = errors.Normalize(
		"get shard iterator for %s failed",
		errors.RFCCodeText("ShardFlow:ErrShardIterator"),
	)
	ErrGetRecords = errors.Normalize(
		"get records from shard %s failed",
		errors.RFCCodeText("ShardFlow:ErrGetRecords"),
	)

	// config and utility errors
	ErrInvalidConfig = errors.Normalize(
		"invalid config: %s",
		errors.RFCCodeText("ShardFlow:ErrInvalidConfig"),
	)
	ErrReachMaxTry = errors.Normalize(
		"reach maximum try: %s, error: %s",
		errors.RFCCodeText("ShardFlow:ErrReachMaxTry"),
	)
	ErrEncodeFailed = errors.Normalize(
		"encode failed: %s",
		errors.RFCCodeText("ShardFlow:ErrEncodeFailed"),
	)
	ErrDecodeFailed = errors.Normalize(
		"decode failed: %s",
		errors.RFCCodeText("ShardFlow:ErrDecodeFailed"),
	)
	ErrAPIInvalidParam = errors.Normalize(
		"invalid api parameter",
		errors.RFCCodeText("ShardFlow:ErrAPIInvalidParam"),
	)
	ErrServeHTTP = errors.Normalize(
		"serve http error",
		errors.RFCCodeText("ShardFlow:ErrServeHTTP"),
	)
	ErrEtcdSessionDone = errors.Normalize(
		"the etcd session is done",
		errors.RFCCodeText("ShardFlow:ErrEtcdSessionDone"),
	)
)
