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

// Package pathtools implements the path manipulation used when mapping
// package manifests into build file labels.
package pathtools

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

// Normalize collapses "x/../y" path segments into "y".  Leading ".."
// components are preserved since there is nothing to cancel them against.
func Normalize(path string) string {
	sep := string(filepath.Separator)
	components := strings.Split(filepath.ToSlash(path), "/")

	var ret []string
	for _, c := range components {
		if c == ".." && len(ret) > 0 && ret[len(ret)-1] != ".." {
			ret = ret[:len(ret)-1]
			continue
		}
		ret = append(ret, c)
	}

	return filepath.FromSlash(strings.Join(ret, sep))
}

// Rel computes a path for to relative to base, ascending out of base with
// ".." components as necessary.  Unlike filepath.Rel it never fails on
// paths that share no prefix beyond the root.
func Rel(base, to string) string {
	var ret string

	for !strings.HasPrefix(to+string(filepath.Separator), base+string(filepath.Separator)) {
		ret = filepath.Join(ret, "..")
		parent := filepath.Dir(base)
		if parent == base {
			break
		}
		base = parent
	}

	rest := strings.TrimPrefix(strings.TrimPrefix(to, base), string(filepath.Separator))
	return filepath.Join(ret, rest)
}

// IsWild reports whether pattern contains any glob metacharacters.
func IsWild(pattern string) bool {
	return strings.ContainsAny(pattern, "*?[")
}

// WriteFileIfChanged writes data to path unless the file already holds
// exactly data.  It reports whether the file was rewritten.  Leaving an
// unchanged file alone avoids spurious watcher notifications downstream.
func WriteFileIfChanged(path string, data []byte) (bool, error) {
	old, err := os.ReadFile(path)
	if err == nil && string(old) == string(data) {
		return false, nil
	}

	if err := os.WriteFile(path, data, 0666); err != nil {
		return false, errors.Wrapf(err, "write %s", path)
	}
	return true, nil
}
