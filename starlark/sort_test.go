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

import "testing"

// The ordering below is a fixed contract shared with the downstream
// formatter; each case is tested literally.
func TestLabelLess(t *testing.T) {
	tests := []struct {
		a, b string
	}{
		// Local refs sort before absolute labels, which sort before
		// plain paths.
		{":serde-1.0.0", "//third-party:serde"},
		{":zzz", "//aaa:aaa"},
		{"//third-party:serde", "build.rs"},
		{":a", "a"},

		// Within a class, piece-wise comparison.
		{":anyhow-1.0.0", ":serde-1.0.0"},
		{"//a/b:c", "//a/c:b"},
		{"//a:b", "//a/b:c"},
		{"src/lib.rs", "src/unix/mod.rs"},

		// A label is greater than any proper prefix of itself.
		{"//a:b", "//a:b:c"},
		{"src", "src/lib.rs"},
	}

	oneTest := func(a, b string, want bool) {
		t.Helper()
		if got := LabelLess(a, b); got != want {
			t.Errorf("want LabelLess(%q, %q) = %v, got %v", a, b, want, got)
		}
	}

	for _, tt := range tests {
		t.Run(tt.a+"<"+tt.b, func(t *testing.T) {
			oneTest(tt.a, tt.b, true)
			oneTest(tt.b, tt.a, false)
			oneTest(tt.a, tt.a, false)
			oneTest(tt.b, tt.b, false)
		})
	}
}

func TestSortLabels(t *testing.T) {
	labels := []string{
		"vendor/libc/src/lib.rs",
		"//common:futures",
		":libc-0.2.139",
		":cfg-if-1.0.0",
	}
	SortLabels(labels)

	want := []string{
		":cfg-if-1.0.0",
		":libc-0.2.139",
		"//common:futures",
		"vendor/libc/src/lib.rs",
	}
	for i := range want {
		if labels[i] != want[i] {
			t.Fatalf("SortLabels = %v, want %v", labels, want)
		}
	}
}
