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
	"time"

	"github.com/benbjohnson/clock"
)

const (
	defaultBackoffInterval = 10 * time.Millisecond
	defaultMaxTries        = 3
)

// Option ...
type Option func(*retryOptions)

// IsRetryableErr checks the error is safe to retry or not, eg. "context.Canceled" better not retry
type IsRetryableErr func(error) bool

// NotifyFunc is called after every failed attempt, attempt counts from 1.
type NotifyFunc func(attempt uint64, err error)

// retryOptions ...
type retryOptions struct {
	maxTries        uint64
	backoffInterval time.Duration
	isRetryable     IsRetryableErr
	notify          NotifyFunc
	clock           clock.Clock
}

func newRetryOptions() *retryOptions {
	return &retryOptions{
		maxTries:        defaultMaxTries,
		backoffInterval: defaultBackoffInterval,
		isRetryable:     func(err error) bool { return true },
		notify:          func(uint64, error) {},
		clock:           clock.New(),
	}
}

// WithBackoffInterval configures the fixed delay between two attempts
func WithBackoffInterval(interval time.Duration) Option {
	return func(o *retryOptions) {
		if interval >= 0 {
			o.backoffInterval = interval
		}
	}
}

// WithMaxTries configures maximum tries, the first attempt included
func WithMaxTries(tries uint64) Option {
	return func(o *retryOptions) {
		if tries > 0 {
			o.maxTries = tries
		}
	}
}

// WithIsRetryableErr configures the error handler, if not set, retry by default
func WithIsRetryableErr(f func(error) bool) Option {
	return func(o *retryOptions) {
		if f != nil {
			o.isRetryable = f
		}
	}
}

// WithNotify configures a hook invoked on every failed attempt
func WithNotify(f NotifyFunc) Option {
	return func(o *retryOptions) {
		if f != nil {
			o.notify = f
		}
	}
}

// WithClock configures the clock used to wait between attempts
func WithClock(clk clock.Clock) Option {
	return func(o *retryOptions) {
		if clk != nil {
			o.clock = clk
		}
	}
}
