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
	"math/big"
	"time"

	cerror "github.com/pingcap/shardflow/pkg/errors"
)

// ShardEnd is the checkpoint position recorded once a shard has been read
// to its end. It sorts after every sequence number.
const ShardEnd = "SHARD_END"

// Record is one entry read from a shard.
type Record struct {
	Data                        []byte
	PartitionKey                string
	SequenceNumber              string
	ApproximateArrivalTimestamp time.Time
	// Change is set for records read from a table change stream.
	Change ChangeEvent
}

// CompareSequenceNumbers compares two checkpoint positions. Sequence numbers
// are decimal strings of arbitrary length and are compared numerically.
// The result is -1 if a < b, 0 if a == b and 1 if a > b.
func CompareSequenceNumbers(a, b string) (int, error) {
	switch {
	case a == b:
		return 0, nil
	case a == ShardEnd:
		return 1, nil
	case b == ShardEnd:
		return -1, nil
	}
	x, ok := new(big.Int).SetString(a, 10)
	if !ok {
		return 0, cerror.ErrInvalidSequenceNumber.GenWithStackByArgs(a)
	}
	y, ok := new(big.Int).SetString(b, 10)
	if !ok {
		return 0, cerror.ErrInvalidSequenceNumber.GenWithStackByArgs(b)
	}
	return x.Cmp(y), nil
}

// ProcessingOutcome is the result of handling a single record.
type ProcessingOutcome int

const (
	// OutcomeSuccess means an attempt succeeded.
	OutcomeSuccess ProcessingOutcome = iota
	// OutcomeSkipped means the record can never be processed and was not retried.
	OutcomeSkipped
	// OutcomeFailed means every attempt failed and the record was dropped.
	OutcomeFailed
)

func (o ProcessingOutcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeSkipped:
		return "skipped"
	case OutcomeFailed:
		return "failed"
	}
	return "unknown"
}
