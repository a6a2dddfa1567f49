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

package etcd

import (
	"context"
	"time"

	"github.com/pingcap/errors"
	"github.com/pingcap/log"
	cerror "github.com/pingcap/shardflow/pkg/errors"
	"github.com/pingcap/shardflow/pkg/retry"
	v3rpc "go.etcd.io/etcd/api/v3/v3rpc/rpctypes"
	"go.etcd.io/etcd/client/pkg/v3/logutil"
	clientV3 "go.etcd.io/etcd/client/v3"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// etcd operation names
const (
	EtcdGet = "Get"
	EtcdTxn = "Txn"
)

const (
	backoffInterval = 500 * time.Millisecond
	maxTries        = 3
	// defaultRequestTimeout is the timeout of a single remote call when
	// the client is wrapped without an explicit one
	defaultRequestTimeout = 5 * time.Second
)

// Client is a simple wrapper that adds request timeouts, retries and
// metrics to etcd RPC
type Client struct {
	cli            *clientV3.Client
	requestTimeout time.Duration
}

// NewClient connects to the etcd cluster serving the given endpoints.
func NewClient(endpoints []string, requestTimeout time.Duration) (*Client, error) {
	logConfig := logutil.DefaultZapLoggerConfig
	logConfig.Level = zap.NewAtomicLevelAt(zapcore.ErrorLevel)
	cli, err := clientV3.New(clientV3.Config{
		Endpoints:   endpoints,
		DialTimeout: 5 * time.Second,
		LogConfig:   &logConfig,
	})
	if err != nil {
		return nil, errors.Trace(err)
	}
	return Wrap(cli, requestTimeout), nil
}

// Wrap warps a clientV3.Client that provides etcd APIs required by the
// checkpoint store.
func Wrap(cli *clientV3.Client, requestTimeout time.Duration) *Client {
	if requestTimeout <= 0 {
		requestTimeout = defaultRequestTimeout
	}
	return &Client{cli: cli, requestTimeout: requestTimeout}
}

// Unwrap returns a clientV3.Client
func (c *Client) Unwrap() *clientV3.Client {
	return c.cli
}

// Close closes the underlying client.
func (c *Client) Close() error {
	return c.cli.Close()
}

// Get delegates request to clientV3.KV.Get
func (c *Client) Get(
	ctx context.Context, key string, opts ...clientV3.OpOption,
) (resp *clientV3.GetResponse, err error) {
	err = retry.Do(ctx, func() error {
		getCtx, cancel := context.WithTimeout(ctx, c.requestTimeout)
		defer cancel()
		var inErr error
		resp, inErr = c.cli.Get(getCtx, key, opts...)
		etcdRequestCounter.WithLabelValues(EtcdGet).Inc()
		if inErr != nil && errors.Cause(inErr) != context.Canceled {
			log.Warn("etcd RPC failed", zap.String("RPC", EtcdGet), zap.Error(inErr))
		}
		return inErr
	}, retry.WithBackoffInterval(backoffInterval),
		retry.WithMaxTries(maxTries),
		retry.WithIsRetryableErr(isRetryableError))
	return resp, err
}

// Txn delegates request to clientV3.KV.Txn. A transaction is never
// retried here, the caller decides whether a failed one should run again.
func (c *Client) Txn(
	ctx context.Context, cmps []clientV3.Cmp, opsThen, opsElse []clientV3.Op,
) (*clientV3.TxnResponse, error) {
	txnCtx, cancel := context.WithTimeout(ctx, c.requestTimeout)
	defer cancel()
	etcdRequestCounter.WithLabelValues(EtcdTxn).Inc()
	resp, err := c.cli.Txn(txnCtx).If(cmps...).Then(opsThen...).Else(opsElse...).Commit()
	return resp, errors.Trace(err)
}

func isRetryableError(err error) bool {
	if !cerror.IsRetryableError(err) {
		return false
	}
	switch errors.Cause(err) {
	case v3rpc.ErrPermissionDenied, v3rpc.ErrAuthFailed, v3rpc.ErrInvalidAuthToken:
		return false
	}
	return true
}
