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

package uuid

import (
	"testing"

	"github.com/pingcap/errors"
	"github.com/stretchr/testify/require"
)

func TestGenerator(t *testing.T) {
	t.Parallel()

	gen := NewGenerator()
	uuid1 := gen.NewString()
	uuid2 := gen.NewString()
	require.NotEqual(t, uuid1, uuid2)
}

type constGenerator string

func (g constGenerator) NewString() string {
	return string(g)
}

func TestNewWorkerID(t *testing.T) {
	gen := constGenerator("6f8e1c7a-0b55-4b1e-9a6b-3e2f7c1d0a11")
	original := hostname
	defer func() { hostname = original }()

	hostname = func() (string, error) { return "worker-host", nil }
	id, err := NewWorkerID(gen)
	require.NoError(t, err)
	require.Equal(t, "worker-host:6f8e1c7a-0b55-4b1e-9a6b-3e2f7c1d0a11", id)

	hostname = func() (string, error) { return "", errors.New("no hostname") }
	_, err = NewWorkerID(gen)
	require.ErrorContains(t, err, "no hostname")
}
