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

package cargo

import (
	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
)

// Lockfile carries the subset of Cargo.lock needed to emit fetch rules,
// keyed by "name-version".
type Lockfile struct {
	checksums map[string]string
}

type lockfileDoc struct {
	Package []lockfilePackage `toml:"package"`
}

type lockfilePackage struct {
	Name     string `toml:"name"`
	Version  string `toml:"version"`
	Checksum string `toml:"checksum"`
}

// ReadLockfile parses a Cargo.lock file.
func ReadLockfile(path string) (*Lockfile, error) {
	var doc lockfileDoc
	if _, err := toml.DecodeFile(path, &doc); err != nil {
		return nil, errors.Wrapf(err, "parsing %s", path)
	}

	checksums := make(map[string]string, len(doc.Package))
	for _, pkg := range doc.Package {
		if pkg.Checksum == "" {
			continue
		}
		checksums[pkg.Name+"-"+pkg.Version] = pkg.Checksum
	}
	return &Lockfile{checksums: checksums}, nil
}

// Checksum returns the recorded sha256 for a package, if any.
func (l *Lockfile) Checksum(pkg *Manifest) (string, bool) {
	if l == nil {
		return "", false
	}
	sum, ok := l.checksums[pkg.String()]
	return sum, ok
}
