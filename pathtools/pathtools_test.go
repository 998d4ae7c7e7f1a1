// Copyright 2023 The buckgen Authors. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package pathtools

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		in, out string
	}{
		{"a/b", "a/b"},
		{"a/../b", "b"},
		{"a/b/../c", "a/c"},
		{"a/b/../../c", "c"},
		{"../a", "../a"},
		{"../../a/../b", "../../b"},
		{"vendor/foo-1.0/src/../lib.rs", "vendor/foo-1.0/lib.rs"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := Normalize(filepath.FromSlash(tt.in)); got != filepath.FromSlash(tt.out) {
				t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.out)
			}
		})
	}
}

func TestRel(t *testing.T) {
	tests := []struct {
		base, to, out string
	}{
		{"/x/third-party", "/x/third-party/vendor/foo", "vendor/foo"},
		{"/x/third-party", "/x/other/foo", "../other/foo"},
		{"/x/a/b", "/x/c", "../../c"},
		{"/x", "/x", ""},
	}

	for _, tt := range tests {
		t.Run(tt.to, func(t *testing.T) {
			got := Rel(filepath.FromSlash(tt.base), filepath.FromSlash(tt.to))
			if got != filepath.FromSlash(tt.out) {
				t.Errorf("Rel(%q, %q) = %q, want %q", tt.base, tt.to, got, tt.out)
			}
		})
	}
}

func TestWriteFileIfChanged(t *testing.T) {
	path := filepath.Join(t.TempDir(), "BUCK")

	changed, err := WriteFileIfChanged(path, []byte("alias()\n"))
	require.NoError(t, err)
	require.True(t, changed)

	info1, err := os.Stat(path)
	require.NoError(t, err)

	changed, err = WriteFileIfChanged(path, []byte("alias()\n"))
	require.NoError(t, err)
	require.False(t, changed)

	info2, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, info1.ModTime(), info2.ModTime())

	changed, err = WriteFileIfChanged(path, []byte("alias()\n\n"))
	require.NoError(t, err)
	require.True(t, changed)
}
