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
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"buckgen/buck"
	"buckgen/cargo"
	"buckgen/config"
	"buckgen/index"
	"buckgen/platform"
)

// singlePkgContext builds a rule context for a graph where the workspace
// root depends on just pkg.
func singlePkgContext(t *testing.T, cfg *config.Config, dir string, pkg *cargo.Manifest) *ruleContext {
	t.Helper()

	root := &cargo.Manifest{
		ID:           "project 0.0.0 (path+file:///work)",
		Name:         "project",
		ManifestPath: filepath.Join(dir, "Cargo.toml"),
	}
	meta := &cargo.Metadata{
		Packages: []*cargo.Manifest{root, pkg},
		Resolve: &cargo.Resolve{
			Root: root.ID,
			Nodes: []*cargo.ResolveNode{
				node(root.ID, nil, edge(pkg.Name, pkg, "", "")),
				node(pkg.ID, nil),
			},
		},
	}
	return newRuleContext(cfg, NewPaths(dir), index.New(false, nil, meta), nil)
}

func writeFixupFile(t *testing.T, dir, pkgName, fixupToml string) {
	t.Helper()
	path := filepath.Join(dir, "fixups", pkgName, "fixups.toml")
	if err := os.MkdirAll(filepath.Dir(path), 0777); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(fixupToml), 0666); err != nil {
		t.Fatal(err)
	}
}

func cdylibTarget(dir, name, version string) *cargo.ManifestTarget {
	return &cargo.ManifestTarget{
		Name:       name,
		Kind:       []string{"cdylib"},
		CrateTypes: []string{"cdylib"},
		SrcPath:    filepath.Join(dir, "vendor", name+"-"+version, "src", "lib.rs"),
	}
}

func libraryRuleOf(t *testing.T, rules []buck.Rule) *buck.RustLibrary {
	t.Helper()
	for _, r := range rules {
		if lib, ok := r.(*buck.RustLibrary); ok {
			return lib
		}
	}
	t.Fatal("no library rule generated")
	return nil
}

func TestCdylibDlopenAndLinkableAlias(t *testing.T) {
	dir := t.TempDir()
	pkg := vendorPkg(dir, "native", "1.0.0", cdylibTarget(dir, "native", "1.0.0"))
	ctx := singlePkgContext(t, testConfig(), dir, pkg)

	rules, _, err := ctx.libraryRules(pkg, pkg.Targets[0])
	if err != nil {
		t.Fatalf("libraryRules() error: %v", err)
	}
	lib := libraryRuleOf(t, rules)

	if !lib.DlopenEnable {
		t.Error("cdylib without a python extension should be dlopen-enabled")
	}
	if lib.PythonExt != "" {
		t.Errorf("unexpected python_ext %q", lib.PythonExt)
	}
	if lib.LinkableAlias != "native" {
		t.Errorf("linkable_alias = %q, want %q", lib.LinkableAlias, "native")
	}
}

func TestPythonExtSupersedesDlopen(t *testing.T) {
	dir := t.TempDir()
	pkg := vendorPkg(dir, "native", "1.0.0", cdylibTarget(dir, "native", "1.0.0"))
	writeFixupFile(t, dir, "native", "python_ext = \"native_ext\"\n")
	ctx := singlePkgContext(t, testConfig(), dir, pkg)

	rules, _, err := ctx.libraryRules(pkg, pkg.Targets[0])
	if err != nil {
		t.Fatalf("libraryRules() error: %v", err)
	}
	lib := libraryRuleOf(t, rules)

	if lib.DlopenEnable {
		t.Error("python extension should not also be dlopen-enabled")
	}
	if lib.PythonExt != "native_ext" {
		t.Errorf("python_ext = %q, want %q", lib.PythonExt, "native_ext")
	}
	if lib.LinkableAlias != "native" {
		t.Errorf("linkable_alias = %q, want %q", lib.LinkableAlias, "native")
	}
}

// The build script binary is compiled with the global flags only; the
// fixed-up base flags, link style, and licenses describe the crate the
// script builds for, not the script.  Per-platform flags carry over.
func TestBuildscriptBinaryAttrs(t *testing.T) {
	dir := t.TempDir()
	pkg := vendorPkg(dir, "zlib", "1.0.0",
		libTarget(dir, "zlib", "1.0.0"),
		buildTarget(dir, "zlib", "1.0.0"))
	writeFixupFile(t, dir, "zlib", `
rustc_flags = ["--cfg=crateflag"]
link_style = "static"

[platform_fixup.'cfg(target_os = "linux")']
rustc_flags = ["--cfg=linuxflag"]

[[buildscript]]
[buildscript.rustc_flags]
`)

	cfg := testConfig()
	cfg.RustcFlags = []string{"--cap-lints=allow"}
	cfg.PlatformRustcFlags = map[platform.Name][]string{
		"linux-x86_64": {"-Ldeps"},
	}
	ctx := singlePkgContext(t, cfg, dir, pkg)

	rules, _, err := ctx.buildscriptRules(pkg, pkg.Targets[1])
	if err != nil {
		t.Fatalf("buildscriptRules() error: %v", err)
	}

	var bin *buck.BuildscriptBinary
	for _, r := range rules {
		if b, ok := r.(*buck.BuildscriptBinary); ok {
			bin = b
		}
	}
	if bin == nil {
		t.Fatal("no build script binary generated")
	}

	if diff := cmp.Diff([]string{"--cap-lints=allow"}, bin.Base.RustcFlags); diff != "" {
		t.Errorf("base rustc flags mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"-Ldeps", "--cfg=linuxflag"}, bin.Platform["linux-x86_64"].RustcFlags); diff != "" {
		t.Errorf("linux-x86_64 rustc flags mismatch (-want +got):\n%s", diff)
	}
	if bin.Base.LinkStyle != "" {
		t.Errorf("link_style %q applied to the build script binary", bin.Base.LinkStyle)
	}
	if len(bin.Licenses) != 0 {
		t.Errorf("licenses %v applied to the build script binary", bin.Licenses)
	}
}

func TestBinaryLibraryDepRequiresLibTarget(t *testing.T) {
	binTarget := func(dir string) *cargo.ManifestTarget {
		return &cargo.ManifestTarget{
			Name:       "tool",
			Kind:       []string{"bin"},
			CrateTypes: []string{"bin"},
			SrcPath:    filepath.Join(dir, "vendor", "tool-1.0.0", "src", "main.rs"),
		}
	}

	binRuleOf := func(t *testing.T, rules []buck.Rule) *buck.RustBinary {
		t.Helper()
		for _, r := range rules {
			if bin, ok := r.(*buck.RustBinary); ok {
				return bin
			}
		}
		t.Fatal("no binary rule generated")
		return nil
	}

	t.Run("lib", func(t *testing.T) {
		dir := t.TempDir()
		pkg := vendorPkg(dir, "tool", "1.0.0", libTarget(dir, "tool", "1.0.0"), binTarget(dir))
		ctx := singlePkgContext(t, testConfig(), dir, pkg)

		rules, _, err := ctx.binaryRules(pkg, pkg.Targets[1])
		if err != nil {
			t.Fatalf("binaryRules() error: %v", err)
		}
		bin := binRuleOf(t, rules)
		if !bin.Base.Deps[buck.LocalRef("tool-1.0.0")] {
			t.Errorf("binary should depend on its package's library, got deps %v", bin.Base.Deps)
		}
	})

	t.Run("proc-macro", func(t *testing.T) {
		dir := t.TempDir()
		macro := &cargo.ManifestTarget{
			Name:       "tool",
			Kind:       []string{"proc-macro"},
			CrateTypes: []string{"proc-macro"},
			SrcPath:    filepath.Join(dir, "vendor", "tool-1.0.0", "src", "lib.rs"),
		}
		pkg := vendorPkg(dir, "tool", "1.0.0", macro, binTarget(dir))
		ctx := singlePkgContext(t, testConfig(), dir, pkg)

		rules, _, err := ctx.binaryRules(pkg, pkg.Targets[1])
		if err != nil {
			t.Fatalf("binaryRules() error: %v", err)
		}
		bin := binRuleOf(t, rules)
		if len(bin.Base.Deps) != 0 {
			t.Errorf("binary gained an automatic dep on a non-lib target: %v", bin.Base.Deps)
		}
	})
}

// A target only becomes a rule when its kind and crate type agree; a
// lib-kind target that only produces a cdylib is not a plain library.
func TestTargetKindCrateTypeMismatchSkipped(t *testing.T) {
	dir := t.TempDir()
	tgt := &cargo.ManifestTarget{
		Name:       "odd",
		Kind:       []string{"lib"},
		CrateTypes: []string{"cdylib"},
		SrcPath:    filepath.Join(dir, "vendor", "odd-1.0.0", "src", "lib.rs"),
	}
	pkg := vendorPkg(dir, "odd", "1.0.0", tgt)
	ctx := singlePkgContext(t, testConfig(), dir, pkg)

	rules, deps, err := ctx.generateTargetRules(pkg, tgt)
	if err != nil {
		t.Fatalf("generateTargetRules() error: %v", err)
	}
	if len(rules) != 0 || len(deps) != 0 {
		t.Errorf("mismatched target generated rules %v deps %v", rules, deps)
	}
}
