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

package retry

import (
	"context"
	"strconv"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/cenkalti/backoff/v4"
	"github.com/pingcap/errors"
	cerror "github.com/pingcap/shardflow/pkg/errors"
)

// Operation is the action need to retry
type Operation func() error

// Do executes the specified function at most maxTries times until it succeeds.
// Attempts are separated by a fixed backoff interval measured on the configured
// clock, so n tries wait n-1 times.
//
// An error rejected by the IsRetryableErr handler is returned as is, without
// further attempts. Once the tries are used up, Do returns ErrReachMaxTry
// wrapping the last error.
func Do(ctx context.Context, operation Operation, opts ...Option) error {
	retryOption := newRetryOptions()
	for _, opt := range opts {
		opt(retryOption)
	}

	var (
		attempt   uint64
		permanent bool
		lastErr   error
	)
	op := func() error {
		attempt++
		err := operation()
		if err == nil {
			return nil
		}
		lastErr = err
		retryOption.notify(attempt, err)
		if !retryOption.isRetryable(err) {
			permanent = true
			return backoff.Permanent(err)
		}
		return err
	}

	b := backoff.WithContext(
		backoff.WithMaxRetries(
			backoff.NewConstantBackOff(retryOption.backoffInterval),
			retryOption.maxTries-1),
		ctx)
	err := backoff.RetryNotifyWithTimer(op, b, nil, &clockTimer{clk: retryOption.clock})
	if err == nil {
		return nil
	}
	if permanent {
		return err
	}
	if cerr := ctx.Err(); cerr != nil {
		return errors.Trace(cerr)
	}
	return cerror.WrapError(cerror.ErrReachMaxTry, lastErr,
		strconv.FormatUint(retryOption.maxTries, 10), lastErr.Error())
}

// clockTimer drives the backoff waits with a clock.Clock, so tests can use
// a mock clock instead of sleeping.
type clockTimer struct {
	clk   clock.Clock
	timer *clock.Timer
}

func (t *clockTimer) Start(duration time.Duration) {
	t.timer = t.clk.Timer(duration)
}

func (t *clockTimer) Stop() {
	if t.timer != nil {
		t.timer.Stop()
	}
}

func (t *clockTimer) C() <-chan time.Time {
	return t.timer.C
}
