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
	"os"

	guuid "github.com/google/uuid"
	"github.com/pingcap/errors"
)

// Generator defines an interface that can generate a uuid
type Generator interface {
	NewString() string
}

type generatorImpl struct{}

func (g *generatorImpl) NewString() string {
	return guuid.New().String()
}

// NewGenerator creates a new generatorImpl instance
func NewGenerator() Generator {
	return &generatorImpl{}
}

// hostname is replaced in tests.
var hostname = os.Hostname

// NewWorkerID returns a worker id in the form of `<hostname>:<uuid>`, it is
// unique among the workers sharing a checkpoint store.
func NewWorkerID(gen Generator) (string, error) {
	host, err := hostname()
	if err != nil {
		return "", errors.Annotate(err, "get hostname")
	}
	return host + ":" + gen.NewString(), nil
}
