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
	"context"

	"github.com/pingcap/errors"
)

// maxCauseDepth bounds the walk over a cause chain.
const maxCauseDepth = 32

// WrapError generates a new error based on given `*errors.Error`, wraps the err
// as cause error.
// If given `err` is nil, returns a nil error, which a the different behavior
// against `Wrap` function in pingcap/errors.
func WrapError(rfcError *errors.Error, err error, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return rfcError.Wrap(err).GenWithStackByArgs(args...)
}

// Is reports whether any error in err's cause chain carries the RFC code of target.
// Unlike `(*errors.Error).Equal`, it does not stop at the root cause, so an error
// wrapped by WrapError still matches its wrapper and its cause.
func Is(err error, target *errors.Error) bool {
	if target == nil {
		return false
	}
	for i := 0; err != nil && i < maxCauseDepth; i++ {
		if e, ok := err.(*errors.Error); ok && e.RFCCode() == target.RFCCode() {
			return true
		}
		switch x := err.(type) {
		case interface{ Cause() error }:
			err = x.Cause()
		case interface{ Unwrap() error }:
			err = x.Unwrap()
		default:
			return false
		}
	}
	return false
}

// IsRetryableError check the error is safe or worth to retry
func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}

	switch errors.Cause(err) {
	case context.Canceled, context.DeadlineExceeded:
		return false
	}
	return true
}

// IsPermanentRecordError returns true if retrying the record can never succeed,
// that is the payload is malformed or does not match the expected shape.
func IsPermanentRecordError(err error) bool {
	return Is(err, ErrMalformedRecord) || Is(err, ErrRecordFormatMismatch)
}

// IsCheckpointRetryable returns true if a failed checkpoint attempt may succeed
// when tried again. Superseded and invalid-state failures are final.
func IsCheckpointRetryable(err error) bool {
	if Is(err, ErrCheckpointSuperseded) || Is(err, ErrCheckpointInvalidState) {
		return false
	}
	return true
}
