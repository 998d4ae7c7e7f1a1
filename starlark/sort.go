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
	"sort"
	"strings"
)

// labelClass buckets a string for ordering: local references (":name")
// sort before absolute labels ("//path:name" or "cell//path:name"), which
// sort before anything else.  This matches the convention the downstream
// formatter applies to label lists, so formatting the generated file is a
// no-op with respect to ordering.
func labelClass(s string) int {
	switch {
	case strings.HasPrefix(s, ":"):
		return 0
	case strings.Contains(s, "//"):
		return 1
	default:
		return 2
	}
}

// splitLabel splits a label or path on its separator characters.
func splitLabel(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return r == '/' || r == ':'
	})
}

// LabelLess is the ordering used for every label or path list in the
// generated file.  Its exact tie-break behavior is a fixed contract:
// class first, then piece-by-piece comparison of the separator-split
// pieces, with a shorter label preceding any label it prefixes.
func LabelLess(a, b string) bool {
	aClass, bClass := labelClass(a), labelClass(b)
	if aClass != bClass {
		return aClass < bClass
	}

	aPieces, bPieces := splitLabel(a), splitLabel(b)
	for i := 0; i < len(aPieces) && i < len(bPieces); i++ {
		if aPieces[i] != bPieces[i] {
			return aPieces[i] < bPieces[i]
		}
	}
	if len(aPieces) != len(bPieces) {
		return len(aPieces) < len(bPieces)
	}

	// Same pieces; fall back to the raw text so e.g. "a/b" and "a:b"
	// order consistently.
	return a < b
}

// SortLabels sorts labels in place with LabelLess.
func SortLabels(labels []string) {
	sort.SliceStable(labels, func(i, j int) bool {
		return LabelLess(labels[i], labels[j])
	})
}
