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

package buckify

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

// crateSrcfiles computes a precise source list for a crate by following
// module declarations from its entry file.  It understands `mod name;`
// items (with optional visibility) and `#[path = "..."]` attributes;
// inline modules and macro-generated modules are beyond it, which is why
// callers fall back to globbing when the result looks wrong.
func crateSrcfiles(entry string) ([]string, error) {
	seen := map[string]bool{}
	var srcs []string

	var visit func(path string) error
	visit = func(path string) error {
		if seen[path] {
			return nil
		}
		seen[path] = true
		srcs = append(srcs, path)

		mods, err := moduleDecls(path)
		if err != nil {
			return err
		}

		dir := filepath.Dir(path)
		// Submodules of x.rs live in x/ unless x is an entry or mod file.
		base := filepath.Base(path)
		if base != "lib.rs" && base != "main.rs" && base != "mod.rs" {
			dir = filepath.Join(dir, strings.TrimSuffix(base, ".rs"))
		}

		for _, mod := range mods {
			var candidates []string
			if mod.path != "" {
				candidates = []string{filepath.Join(filepath.Dir(path), filepath.FromSlash(mod.path))}
			} else {
				candidates = []string{
					filepath.Join(dir, mod.name+".rs"),
					filepath.Join(dir, mod.name, "mod.rs"),
				}
			}
			for _, candidate := range candidates {
				if _, err := os.Stat(candidate); err == nil {
					if err := visit(candidate); err != nil {
						return err
					}
					break
				}
			}
		}
		return nil
	}

	if err := visit(entry); err != nil {
		return nil, err
	}
	return srcs, nil
}

type moduleDecl struct {
	name string
	path string
}

// moduleDecls scans one source file for out-of-line module declarations.
func moduleDecls(path string) ([]moduleDecl, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading %s", path)
	}
	defer f.Close()

	var decls []moduleDecl
	pathAttr := ""

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		if attr, ok := parsePathAttr(line); ok {
			pathAttr = attr
			continue
		}

		if name, ok := parseModDecl(line); ok {
			decls = append(decls, moduleDecl{name: name, path: pathAttr})
		}
		pathAttr = ""
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrapf(err, "scanning %s", path)
	}

	return decls, nil
}

// parsePathAttr matches `#[path = "some/file.rs"]`.
func parsePathAttr(line string) (string, bool) {
	if !strings.HasPrefix(line, "#[path") {
		return "", false
	}
	start := strings.IndexByte(line, '"')
	if start == -1 {
		return "", false
	}
	end := strings.IndexByte(line[start+1:], '"')
	if end == -1 {
		return "", false
	}
	return line[start+1 : start+1+end], true
}

// parseModDecl matches an out-of-line `mod name;` item with optional
// visibility.
func parseModDecl(line string) (string, bool) {
	if !strings.HasSuffix(line, ";") {
		return "", false
	}
	line = strings.TrimSuffix(line, ";")

	if strings.HasPrefix(line, "pub") {
		rest := strings.TrimPrefix(line, "pub")
		rest = strings.TrimSpace(rest)
		if strings.HasPrefix(rest, "(") {
			end := strings.IndexByte(rest, ')')
			if end == -1 {
				return "", false
			}
			rest = strings.TrimSpace(rest[end+1:])
		}
		line = rest
	}

	if !strings.HasPrefix(line, "mod ") {
		return "", false
	}
	name := strings.TrimSpace(strings.TrimPrefix(line, "mod "))
	if name == "" || strings.ContainsAny(name, " \t{") {
		return "", false
	}
	return name, true
}
