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

package awsutil

import (
	"testing"

	"github.com/aws/aws-sdk-go/aws"
	cerror "github.com/pingcap/shardflow/pkg/errors"
	"github.com/stretchr/testify/require"
)

func TestOptionsAdjust(t *testing.T) {
	t.Parallel()

	options := &Options{}
	require.NoError(t, options.adjust())
	require.Equal(t, "ap-northeast-1", options.Region)

	options = &Options{Endpoint: "localhost:4566"}
	err := options.adjust()
	require.True(t, cerror.Is(err, cerror.ErrInvalidConfig))

	options = &Options{Endpoint: "http://"}
	require.Error(t, options.adjust())

	options = &Options{Endpoint: "http://localhost:4566", Region: "us-east-1"}
	require.NoError(t, options.adjust())
	cfg := options.apply()
	require.Equal(t, "http://localhost:4566", aws.StringValue(cfg.Endpoint))
	require.Equal(t, "us-east-1", aws.StringValue(cfg.Region))
	require.Equal(t, maxRetries, aws.IntValue(cfg.MaxRetries))
}

func TestNewSession(t *testing.T) {
	t.Parallel()

	sess, err := NewSession(Options{Endpoint: "http://localhost:4566", Region: "us-west-2"})
	require.NoError(t, err)
	require.Equal(t, "us-west-2", aws.StringValue(sess.Config.Region))
}
