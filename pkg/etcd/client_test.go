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
	"testing"

	"github.com/pingcap/errors"
	"github.com/pingcap/shardflow/pkg/leakutil"
	"github.com/stretchr/testify/require"
	v3rpc "go.etcd.io/etcd/api/v3/v3rpc/rpctypes"
	clientV3 "go.etcd.io/etcd/client/v3"
)

func TestMain(m *testing.M) {
	leakutil.SetUpLeakTest(m)
}

func TestClientGetAndTxn(t *testing.T) {
	s := &Tester{}
	s.SetUpTest(t)
	defer s.TearDownTest(t)

	ctx := context.Background()
	resp, err := s.Client.Txn(ctx,
		[]clientV3.Cmp{clientV3.Compare(clientV3.CreateRevision("/a"), "=", 0)},
		[]clientV3.Op{clientV3.OpPut("/a", "1")},
		[]clientV3.Op{clientV3.OpGet("/a")})
	require.NoError(t, err)
	require.True(t, resp.Succeeded)

	// the key exists, the else branch runs
	resp, err = s.Client.Txn(ctx,
		[]clientV3.Cmp{clientV3.Compare(clientV3.CreateRevision("/a"), "=", 0)},
		[]clientV3.Op{clientV3.OpPut("/a", "2")},
		[]clientV3.Op{clientV3.OpGet("/a")})
	require.NoError(t, err)
	require.False(t, resp.Succeeded)
	require.Equal(t, "1", string(resp.Responses[0].GetResponseRange().Kvs[0].Value))

	getResp, err := s.Client.Get(ctx, "/a")
	require.NoError(t, err)
	require.Len(t, getResp.Kvs, 1)
	require.Equal(t, "1", string(getResp.Kvs[0].Value))

	getResp, err = s.Client.Get(ctx, "/missing")
	require.NoError(t, err)
	require.Empty(t, getResp.Kvs)
}

func TestIsRetryableError(t *testing.T) {
	t.Parallel()

	require.True(t, isRetryableError(errors.New("etcdserver: request timed out")))
	require.False(t, isRetryableError(context.Canceled))
	require.False(t, isRetryableError(v3rpc.ErrPermissionDenied))
	require.False(t, isRetryableError(errors.Trace(v3rpc.ErrAuthFailed)))
}

func TestGetFreeListenURLs(t *testing.T) {
	urls, err := getFreeListenURLs(2)
	require.NoError(t, err)
	require.Len(t, urls, 2)
	for _, u := range urls {
		require.Equal(t, "http", u.Scheme)
		require.Equal(t, "127.0.0.1", u.Hostname())
		require.NotEmpty(t, u.Port())
		require.NotEqual(t, "0", u.Port())
	}
}
