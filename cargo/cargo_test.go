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
	"os"
	"path/filepath"
	"testing"

	"github.com/blang/semver/v4"
)

func mustVersion(t *testing.T, s string) Version {
	t.Helper()
	v, err := semver.Parse(s)
	if err != nil {
		t.Fatal(err)
	}
	return Version{Version: v}
}

const metadataDoc = `{
  "packages": [
    {
      "id": "cfg-if 1.0.0 (registry+https://github.com/rust-lang/crates.io-index)",
      "name": "cfg-if",
      "version": "1.0.0",
      "edition": "2018",
      "license": "MIT OR Apache-2.0",
      "manifest_path": "/work/vendor/cfg-if-1.0.0/Cargo.toml",
      "source": "registry+https://github.com/rust-lang/crates.io-index",
      "targets": [
        {
          "name": "cfg-if",
          "kind": ["lib"],
          "crate_types": ["lib"],
          "src_path": "/work/vendor/cfg-if-1.0.0/src/lib.rs",
          "edition": "2018"
        }
      ]
    },
    {
      "id": "project 0.0.0 (path+file:///work)",
      "name": "project",
      "version": "0.0.0",
      "edition": "2021",
      "manifest_path": "/work/Cargo.toml",
      "source": null,
      "targets": []
    }
  ],
  "resolve": {
    "root": "project 0.0.0 (path+file:///work)",
    "nodes": [
      {
        "id": "project 0.0.0 (path+file:///work)",
        "features": [],
        "deps": [
          {
            "name": "cfg_if",
            "pkg": "cfg-if 1.0.0 (registry+https://github.com/rust-lang/crates.io-index)",
            "dep_kinds": [{"kind": null, "target": null}]
          }
        ]
      },
      {
        "id": "cfg-if 1.0.0 (registry+https://github.com/rust-lang/crates.io-index)",
        "features": [],
        "deps": []
      }
    ]
  }
}`

func TestParseMetadata(t *testing.T) {
	meta, err := ParseMetadata([]byte(metadataDoc))
	if err != nil {
		t.Fatalf("ParseMetadata() error: %v", err)
	}

	if len(meta.Packages) != 2 {
		t.Fatalf("got %d packages, want 2", len(meta.Packages))
	}

	cfgIf := meta.Packages[0]
	if cfgIf.String() != "cfg-if-1.0.0" {
		t.Errorf("String() = %q", cfgIf.String())
	}
	if !cfgIf.CratesIO() {
		t.Errorf("CratesIO() = false for a registry package")
	}
	if cfgIf.ManifestDir() != filepath.FromSlash("/work/vendor/cfg-if-1.0.0") {
		t.Errorf("ManifestDir() = %q", cfgIf.ManifestDir())
	}

	tgt := cfgIf.DependencyTarget()
	if tgt == nil || tgt.Name != "cfg-if" {
		t.Fatalf("DependencyTarget() = %+v", tgt)
	}
	if tgt.CrateName() != "cfg_if" {
		t.Errorf("CrateName() = %q", tgt.CrateName())
	}

	// cargo emits JSON null for normal dep kinds; they must read as the
	// empty kind, not fail.
	root := meta.Resolve.Nodes[0]
	if kind := root.Deps[0].DepKinds[0]; kind.Kind != "" || kind.Target != "" {
		t.Errorf("null dep kind parsed as %+v", kind)
	}
}

func TestParseMetadataMissingResolve(t *testing.T) {
	if _, err := ParseMetadata([]byte(`{"packages": []}`)); err == nil {
		t.Error("expected error for missing resolve graph")
	}
}

func TestEditionAtLeast(t *testing.T) {
	if !Rust2021.AtLeast(Rust2018) {
		t.Error("2021 should satisfy a 2018 minimum")
	}
	if Rust2015.AtLeast(Rust2018) {
		t.Error("2015 should not satisfy a 2018 minimum")
	}
	if !Rust2018.AtLeast(Rust2018) {
		t.Error("an edition should satisfy itself")
	}
}

func TestReadLockfile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "Cargo.lock")
	lock := `version = 3

[[package]]
name = "cfg-if"
version = "1.0.0"
source = "registry+https://github.com/rust-lang/crates.io-index"
checksum = "baf1de4339761588bc0619e3cbc0120ee582ebb74b53b4efbf79117bd2da40fd"

[[package]]
name = "project"
version = "0.0.0"
`
	if err := os.WriteFile(path, []byte(lock), 0666); err != nil {
		t.Fatal(err)
	}

	lf, err := ReadLockfile(path)
	if err != nil {
		t.Fatalf("ReadLockfile() error: %v", err)
	}

	cfgIf := &Manifest{Name: "cfg-if", Version: mustVersion(t, "1.0.0")}
	sum, ok := lf.Checksum(cfgIf)
	if !ok || sum != "baf1de4339761588bc0619e3cbc0120ee582ebb74b53b4efbf79117bd2da40fd" {
		t.Errorf("Checksum(cfg-if) = (%q, %v)", sum, ok)
	}

	// Path-source packages carry no checksum.
	project := &Manifest{Name: "project", Version: mustVersion(t, "0.0.0")}
	if _, ok := lf.Checksum(project); ok {
		t.Error("Checksum(project) found for a package without one")
	}
}
