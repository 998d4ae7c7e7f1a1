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

package platform

import (
	"testing"

	"github.com/stretchr/testify/require"
)

var testPlatforms = map[Name]*Config{
	"linux-x86_64": {
		Triple: "x86_64-unknown-linux-gnu",
		OS:     "linux", Family: "unix", Arch: "x86_64", Env: "gnu", PointerWidth: "64",
	},
	"linux-arm64": {
		Triple: "aarch64-unknown-linux-gnu",
		OS:     "linux", Family: "unix", Arch: "aarch64", Env: "gnu", PointerWidth: "64",
	},
	"macos": {
		Triple: "x86_64-apple-darwin",
		OS:     "macos", Family: "unix", Arch: "x86_64", Vendor: "apple", PointerWidth: "64",
	},
	"windows": {
		Triple: "x86_64-pc-windows-msvc",
		OS:     "windows", Family: "windows", Arch: "x86_64", Env: "msvc", PointerWidth: "64",
	},
}

func TestNamesForExpr(t *testing.T) {
	tests := []struct {
		expr  Expr
		names []Name
	}{
		{`cfg(target_os = "linux")`, []Name{"linux-arm64", "linux-x86_64"}},
		{`cfg(unix)`, []Name{"linux-arm64", "linux-x86_64", "macos"}},
		{`cfg(windows)`, []Name{"windows"}},
		{`cfg(not(windows))`, []Name{"linux-arm64", "linux-x86_64", "macos"}},
		{`cfg(all(target_os = "linux", target_arch = "aarch64"))`, []Name{"linux-arm64"}},
		{`cfg(any(target_os = "macos", target_os = "windows"))`, []Name{"macos", "windows"}},
		{`x86_64-pc-windows-msvc`, []Name{"windows"}},
		{`cfg(target_env = "musl")`, nil},
	}

	for _, tt := range tests {
		t.Run(string(tt.expr), func(t *testing.T) {
			names, err := NamesForExpr(testPlatforms, tt.expr)
			require.NoError(t, err)
			require.Equal(t, tt.names, names)
		})
	}
}

func TestParseErrors(t *testing.T) {
	exprs := []Expr{
		`cfg(`,
		`cfg()`,
		`cfg(all(target_os = linux))`,
		`cfg(because(unix))`,
		`cfg(unix) trailing`,
		`cfg(target_os = "linux)`,
		``,
	}

	for _, expr := range exprs {
		t.Run(string(expr), func(t *testing.T) {
			_, err := Parse(expr)
			require.Error(t, err)
			require.IsType(t, &ParseError{}, err)
			require.Contains(t, err.Error(), "malformed platform expression")
		})
	}
}

func TestEval(t *testing.T) {
	ok, err := Eval(`cfg(target_os = "linux")`, testPlatforms["linux-x86_64"])
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = Eval(`cfg(target_os = "linux")`, testPlatforms["macos"])
	require.NoError(t, err)
	require.False(t, ok)
}
