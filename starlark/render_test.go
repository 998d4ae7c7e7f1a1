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

package starlark

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestRenderCall(t *testing.T) {
	call := NewCall("rust_library").
		Arg("name", Str("libc-0.2.139")).
		Arg("srcs", SortedStrings([]string{"src/lib.rs", "build.rs"})).
		Arg("edition", Str("2015")).
		Arg("proc_macro", Bool(true)).
		Arg("env", Map{
			{Str("CARGO_PKG_NAME"), Str("libc")},
		}).
		Arg("platform", Map{
			{Str("linux-x86_64"), NewCall("dict").
				Arg("deps", List{Str(":cfg-if-1.0.0")})},
		})

	want := `rust_library(
    name = "libc-0.2.139",
    srcs = [
        "build.rs",
        "src/lib.rs",
    ],
    edition = "2015",
    proc_macro = True,
    env = {
        "CARGO_PKG_NAME": "libc",
    },
    platform = {
        "linux-x86_64": dict(
            deps = [":cfg-if-1.0.0"],
        ),
    },
)`

	if diff := cmp.Diff(want, Render(call)); diff != "" {
		t.Errorf("Render() mismatch (-want +got):\n%s", diff)
	}
}

func TestRenderEmptyCall(t *testing.T) {
	if got := Render(NewCall("alias")); got != "alias()" {
		t.Errorf(`Render(alias()) = %q`, got)
	}
}

func TestRenderSingleElementList(t *testing.T) {
	got := Render(NewCall("alias").Arg("visibility", List{Str("PUBLIC")}))
	want := `alias(
    visibility = ["PUBLIC"],
)`
	if got != want {
		t.Errorf("got:\n%s\nwant:\n%s", got, want)
	}
}
