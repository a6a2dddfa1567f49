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

package checkpoint

import (
	"context"

	"github.com/benbjohnson/clock"
	"github.com/goccy/go-json"
	"github.com/pingcap/errors"
	"github.com/pingcap/log"
	"github.com/pingcap/shardflow/cdc/model"
	"github.com/pingcap/shardflow/pkg/etcd"
	cerror "github.com/pingcap/shardflow/pkg/errors"
	v3rpc "go.etcd.io/etcd/api/v3/v3rpc/rpctypes"
	clientv3 "go.etcd.io/etcd/client/v3"
	"go.etcd.io/etcd/client/v3/concurrency"
	"go.uber.org/zap"
)

// EtcdStore keeps shard ownership and checkpoints in etcd. The owner key of
// a claimed shard is attached to the lease of the store session, so it is
// removed when the worker stops renewing the session.
type EtcdStore struct {
	client      *etcd.Client
	session     *concurrency.Session
	application string
	workerID    string
	clock       clock.Clock
}

// NewEtcdStore creates an EtcdStore and its session.
func NewEtcdStore(
	ctx context.Context, client *etcd.Client, application, workerID string, sessionTTL int,
) (*EtcdStore, error) {
	session, err := concurrency.NewSession(client.Unwrap(),
		concurrency.WithTTL(sessionTTL), concurrency.WithContext(ctx))
	if err != nil {
		return nil, errors.Trace(err)
	}
	log.Info("checkpoint store session created",
		zap.String("workerID", workerID),
		zap.Int64("lease", int64(session.Lease())))
	return &EtcdStore{
		client:      client,
		session:     session,
		application: application,
		workerID:    workerID,
		clock:       clock.New(),
	}, nil
}

// Claim implements Store.
func (s *EtcdStore) Claim(ctx context.Context, shardID string) (Claim, error) {
	key := ownerKey(s.application, shardID)
	resp, err := s.client.Txn(ctx,
		[]clientv3.Cmp{clientv3.Compare(clientv3.CreateRevision(key), "=", 0)},
		[]clientv3.Op{clientv3.OpPut(key, s.workerID, clientv3.WithLease(s.session.Lease()))},
		[]clientv3.Op{clientv3.OpGet(key)})
	if err != nil {
		return nil, errors.Trace(err)
	}
	if !resp.Succeeded {
		kvs := resp.Responses[0].GetResponseRange().Kvs
		if len(kvs) > 0 && !s.ownedBy(kvs[0].Value, kvs[0].Lease) {
			return nil, cerror.ErrShardNotClaimed.GenWithStackByArgs(shardID, string(kvs[0].Value))
		}
	}

	info, _, err := s.load(ctx, shardID)
	if err != nil {
		return nil, errors.Trace(err)
	}
	log.Info("shard claimed",
		zap.String("shardID", shardID),
		zap.String("workerID", s.workerID),
		zap.String("checkpoint", info.Position))
	return &etcdClaim{store: s, shardID: shardID, position: info.Position}, nil
}

// Close revokes the session, every shard claimed through it is released.
func (s *EtcdStore) Close() error {
	return errors.Trace(s.session.Close())
}

func (s *EtcdStore) ownedBy(owner []byte, lease int64) bool {
	return string(owner) == s.workerID && lease == int64(s.session.Lease())
}

// load reads the checkpoint of a shard and the mod revision of its key.
func (s *EtcdStore) load(ctx context.Context, shardID string) (Info, int64, error) {
	resp, err := s.client.Get(ctx, checkpointKey(s.application, shardID))
	if err != nil {
		return Info{}, 0, err
	}
	if len(resp.Kvs) == 0 {
		return Info{}, 0, nil
	}
	var info Info
	if err := json.Unmarshal(resp.Kvs[0].Value, &info); err != nil {
		return Info{}, 0, cerror.WrapError(cerror.ErrDecodeFailed, err, "checkpoint of "+shardID)
	}
	return info, resp.Kvs[0].ModRevision, nil
}

type etcdClaim struct {
	store    *EtcdStore
	shardID  string
	position string
}

func (c *etcdClaim) Position() string {
	return c.position
}

func (c *etcdClaim) Done() <-chan struct{} {
	return c.store.session.Done()
}

func (c *etcdClaim) Checkpoint(ctx context.Context, position string) error {
	select {
	case <-c.store.session.Done():
		return cerror.WrapError(cerror.ErrCheckpointSuperseded,
			cerror.ErrEtcdSessionDone.GenWithStackByArgs(), c.shardID)
	default:
	}

	s := c.store
	stored, modRevision, err := s.load(ctx, c.shardID)
	if err != nil {
		return classifyError(err)
	}
	if stored.Position != "" {
		cmp, err := model.CompareSequenceNumbers(position, stored.Position)
		if err != nil {
			return cerror.WrapError(cerror.ErrCheckpointInvalidState, err)
		}
		if cmp < 0 {
			return cerror.WrapError(cerror.ErrCheckpointInvalidState,
				cerror.ErrCheckpointRegression.GenWithStackByArgs(stored.Position, position))
		}
	}

	value, err := json.Marshal(Info{
		Position:   position,
		WorkerID:   s.workerID,
		UpdateTime: s.clock.Now(),
	})
	if err != nil {
		return cerror.WrapError(cerror.ErrEncodeFailed, err, "checkpoint of "+c.shardID)
	}
	owner := ownerKey(s.application, c.shardID)
	resp, err := s.client.Txn(ctx,
		[]clientv3.Cmp{
			clientv3.Compare(clientv3.Value(owner), "=", s.workerID),
			clientv3.Compare(clientv3.LeaseValue(owner), "=", s.session.Lease()),
			clientv3.Compare(clientv3.ModRevision(checkpointKey(s.application, c.shardID)), "=", modRevision),
		},
		[]clientv3.Op{clientv3.OpPut(checkpointKey(s.application, c.shardID), string(value))},
		[]clientv3.Op{clientv3.OpGet(owner)})
	if err != nil {
		return classifyError(err)
	}
	if !resp.Succeeded {
		kvs := resp.Responses[0].GetResponseRange().Kvs
		if len(kvs) == 0 || !s.ownedBy(kvs[0].Value, kvs[0].Lease) {
			return cerror.ErrCheckpointSuperseded.GenWithStackByArgs(c.shardID)
		}
		// the checkpoint key was written in between, try again later
		return cerror.ErrCheckpointThrottled.GenWithStackByArgs()
	}
	return nil
}

func (c *etcdClaim) Release(ctx context.Context) error {
	owner := ownerKey(c.store.application, c.shardID)
	_, err := c.store.client.Txn(ctx,
		[]clientv3.Cmp{clientv3.Compare(clientv3.Value(owner), "=", c.store.workerID)},
		[]clientv3.Op{clientv3.OpDelete(owner)},
		nil)
	return errors.Trace(err)
}

// classifyError maps etcd failures to checkpoint failure classes.
// Unclassified errors are returned as is and treated as transient.
func classifyError(err error) error {
	switch errors.Cause(err) {
	case v3rpc.ErrTooManyRequests, v3rpc.ErrGRPCRequestTooManyRequests,
		v3rpc.ErrTimeout, v3rpc.ErrGRPCTimeout, context.DeadlineExceeded:
		return cerror.WrapError(cerror.ErrCheckpointThrottled, err)
	case v3rpc.ErrNoSpace, v3rpc.ErrGRPCNoSpace,
		v3rpc.ErrPermissionDenied, v3rpc.ErrGRPCPermissionDenied,
		v3rpc.ErrAuthFailed, v3rpc.ErrInvalidAuthToken:
		return cerror.WrapError(cerror.ErrCheckpointInvalidState, err)
	}
	return errors.Trace(err)
}

var _ Store = (*EtcdStore)(nil)
