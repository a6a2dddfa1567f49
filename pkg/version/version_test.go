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

package version

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRemoveVAndHash(t *testing.T) {
	t.Parallel()

	tests := []struct {
		version  string
		expected string
	}{
		{"", ""},
		{"v1.2.0", "1.2.0"},
		{"v1.2.0-rc.1", "1.2.0-rc.1"},
		{"v1.2.0-12-g3c5e1a9", "1.2.0"},
		{"v1.2.0-12-g3c5e1a9b-dev", "1.2.0"},
		{"v1.2.0-dirty", "1.2.0"},
		{"v1.2.0-alpha-12-g3c5e1a9-dirty", "1.2.0-alpha"},
	}
	for _, tt := range tests {
		require.Equal(t, tt.expected, removeVAndHash(tt.version), "version: %s", tt.version)
	}
}

func TestReleaseSemver(t *testing.T) {
	original := ReleaseVersion
	defer func() { ReleaseVersion = original }()

	ReleaseVersion = "None"
	require.Equal(t, "", ReleaseSemver())

	ReleaseVersion = "v0.3.1-4-g1a2b3c4"
	require.Equal(t, "0.3.1", ReleaseSemver())
	require.Contains(t, GetRawInfo(), "Release Semver: 0.3.1\n")
}
