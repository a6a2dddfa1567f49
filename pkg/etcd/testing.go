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
	"fmt"
	"net/url"
	"testing"
	"time"

	"github.com/phayes/freeport"
	"github.com/pingcap/errors"
	"github.com/stretchr/testify/require"
	"go.etcd.io/etcd/server/v3/embed"
)

func getFreeListenURLs(n int) (urls []*url.URL, retErr error) {
	for i := 0; i < n; i++ {
		port, err := freeport.GetFreePort()
		if err != nil {
			retErr = errors.Trace(err)
			return
		}
		u, err := url.Parse(fmt.Sprintf("http://127.0.0.1:%d", port))
		if err != nil {
			retErr = errors.Trace(err)
			return
		}
		urls = append(urls, u)
	}
	return
}

// SetupEmbedEtcd starts an embed etcd server
func SetupEmbedEtcd(dir string) (clientURL *url.URL, e *embed.Etcd, err error) {
	cfg := embed.NewConfig()
	cfg.Dir = dir

	urls, err := getFreeListenURLs(2)
	if err != nil {
		return
	}
	cfg.ListenPeerUrls = []url.URL{*urls[0]}
	cfg.AdvertisePeerUrls = []url.URL{*urls[0]}
	cfg.ListenClientUrls = []url.URL{*urls[1]}
	cfg.AdvertiseClientUrls = []url.URL{*urls[1]}
	cfg.InitialCluster = cfg.InitialClusterFromName(cfg.Name)
	cfg.Logger = "zap"
	cfg.LogLevel = "error"
	clientURL = urls[1]

	e, err = embed.StartEtcd(cfg)
	if err != nil {
		return
	}

	select {
	case <-e.Server.ReadyNotify():
	case <-time.After(60 * time.Second):
		e.Server.Stop() // trigger a shutdown
		err = errors.New("server took too long to start")
	}

	return
}

// Tester is for ut tests
type Tester struct {
	etcd      *embed.Etcd
	ClientURL *url.URL
	Client    *Client
}

// SetUpTest setup etcd tester
func (s *Tester) SetUpTest(t *testing.T) {
	var err error
	s.ClientURL, s.etcd, err = SetupEmbedEtcd(t.TempDir())
	require.NoError(t, err)
	s.Client, err = NewClient([]string{s.ClientURL.String()}, 3*time.Second)
	require.NoError(t, err)
}

// TearDownTest teardown etcd
func (s *Tester) TearDownTest(t *testing.T) {
	_ = s.Client.Close() //nolint:errcheck
	s.etcd.Close()
logEtcdError:
	for {
		select {
		case err, ok := <-s.etcd.Err():
			if !ok {
				break logEtcdError
			}
			t.Logf("etcd server error: %v", err)
		default:
			break logEtcdError
		}
	}
}
