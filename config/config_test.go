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

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestReadMissingFileUsesDefaults(t *testing.T) {
	dir := t.TempDir()

	cfg, err := Read(dir)
	if err != nil {
		t.Fatalf("Read() error: %v", err)
	}

	if !cfg.Vendor {
		t.Error("default config should assume vendored sources")
	}
	if cfg.Buck.FileName != "BUCK" {
		t.Errorf("default file name = %q", cfg.Buck.FileName)
	}
	if cfg.Buck.RustLibrary != "rust_library" {
		t.Errorf("default rust_library rule = %q", cfg.Buck.RustLibrary)
	}
	if cfg.ConfigPath != dir {
		t.Errorf("ConfigPath = %q, want %q", cfg.ConfigPath, dir)
	}
}

func TestRead(t *testing.T) {
	dir := t.TempDir()
	doc := `
rustc_flags = ["--cap-lints=allow"]
precise_srcs = true
license_patterns = ["LICENSE*", "COPYING*"]
include_top_level = true
vendor = false

[platform_rustc_flags]
windows = ["--cfg=windows_raw_dylib"]

[cargo]
cargo = "bin/cargo"

[buck]
file_name = "BUCK.v2"
generated_file_header = "# @generated by buckgen"
targets_name = "TARGETS.bzl"
rust_library = "third_party_rust_library"

[platform.linux-x86_64]
target_os = "linux"
target_arch = "x86_64"

[platform.linux-arm64]
target_os = "linux"
target_arch = "aarch64"
`
	if err := os.WriteFile(filepath.Join(dir, "buckgen.toml"), []byte(doc), 0666); err != nil {
		t.Fatal(err)
	}

	cfg, err := Read(dir)
	if err != nil {
		t.Fatalf("Read() error: %v", err)
	}

	if diff := cmp.Diff([]string{"--cap-lints=allow"}, cfg.RustcFlags); diff != "" {
		t.Errorf("RustcFlags mismatch (-want +got):\n%s", diff)
	}
	if !cfg.PreciseSrcs || !cfg.IncludeTopLevel || cfg.Vendor {
		t.Errorf("flags = precise:%v top_level:%v vendor:%v",
			cfg.PreciseSrcs, cfg.IncludeTopLevel, cfg.Vendor)
	}
	if diff := cmp.Diff([]string{"--cfg=windows_raw_dylib"}, cfg.PlatformRustcFlags["windows"]); diff != "" {
		t.Errorf("PlatformRustcFlags mismatch (-want +got):\n%s", diff)
	}
	if cfg.Cargo.Cargo != "bin/cargo" {
		t.Errorf("Cargo.Cargo = %q", cfg.Cargo.Cargo)
	}
	if cfg.Buck.FileName != "BUCK.v2" || cfg.Buck.TargetsName != "TARGETS.bzl" {
		t.Errorf("buck files = %q, %q", cfg.Buck.FileName, cfg.Buck.TargetsName)
	}
	if cfg.Buck.RustLibrary != "third_party_rust_library" {
		t.Errorf("rust_library rule = %q", cfg.Buck.RustLibrary)
	}
	// Unset rule names keep their defaults.
	if cfg.Buck.Alias != "alias" {
		t.Errorf("alias rule = %q", cfg.Buck.Alias)
	}

	linux := cfg.Platform["linux-x86_64"]
	if linux == nil || linux.OS != "linux" || linux.Arch != "x86_64" {
		t.Errorf("platform linux-x86_64 = %+v", linux)
	}
	if len(cfg.Platform) != 2 {
		t.Errorf("got %d platforms, want 2", len(cfg.Platform))
	}
}
