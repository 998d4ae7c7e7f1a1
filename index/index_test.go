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

package index

import (
	"testing"

	"github.com/blang/semver/v4"
	"github.com/google/go-cmp/cmp"

	"buckgen/cargo"
)

func pkg(name, version string, targets ...*cargo.ManifestTarget) *cargo.Manifest {
	return &cargo.Manifest{
		ID:      cargo.PkgId(name + " " + version),
		Name:    name,
		Version: cargo.Version{Version: semver.MustParse(version)},
		Targets: targets,
	}
}

func lib(name string) *cargo.ManifestTarget {
	return &cargo.ManifestTarget{Name: name, Kind: []string{"lib"}}
}

func testMeta() (*cargo.Metadata, map[string]*cargo.Manifest) {
	root := pkg("project", "0.0.0")
	serde := pkg("serde", "1.0.0", lib("serde"))
	cfgIf := pkg("cfg-if", "1.0.0", lib("cfg-if"))
	hidden := pkg("hidden", "0.1.0", lib("hidden"))

	meta := &cargo.Metadata{
		Packages: []*cargo.Manifest{root, serde, cfgIf, hidden},
		Resolve: &cargo.Resolve{
			Root: root.ID,
			Nodes: []*cargo.ResolveNode{
				{ID: root.ID, Deps: []*cargo.NodeDep{
					{Name: "serde", Pkg: serde.ID, DepKinds: []*cargo.DepKind{{}}},
				}},
				{ID: serde.ID, Features: []string{"std"}, Deps: []*cargo.NodeDep{
					{Name: "cfg_if", Pkg: cfgIf.ID, DepKinds: []*cargo.DepKind{{}}},
					{Name: "hidden", Pkg: hidden.ID, DepKinds: []*cargo.DepKind{{Kind: "build"}}},
				}},
				{ID: cfgIf.ID},
				{ID: hidden.ID},
			},
		},
	}
	pkgs := map[string]*cargo.Manifest{
		"root": root, "serde": serde, "cfg-if": cfgIf, "hidden": hidden,
	}
	return meta, pkgs
}

func TestPublicPackages(t *testing.T) {
	meta, pkgs := testMeta()
	idx := New(false, nil, meta)

	if !idx.IsPublic(pkgs["serde"]) {
		t.Errorf("root dependency serde not public")
	}
	if idx.IsPublic(pkgs["cfg-if"]) {
		t.Errorf("transitive dependency cfg-if is public")
	}
	if idx.IsPublic(pkgs["root"]) {
		t.Errorf("root public without include_top_level")
	}
	if !idx.IsRootPackage(pkgs["root"]) {
		t.Errorf("IsRootPackage(root) = false")
	}

	var names []string
	for _, p := range idx.PublicPackages() {
		names = append(names, p.Name)
	}
	if diff := cmp.Diff([]string{"serde"}, names); diff != "" {
		t.Errorf("PublicPackages() mismatch (-want +got):\n%s", diff)
	}
}

func TestIncludeTopLevelAndExtras(t *testing.T) {
	meta, pkgs := testMeta()
	idx := New(true, []string{"cfg-if", "hidden-0.1.0"}, meta)

	for _, name := range []string{"root", "cfg-if", "hidden"} {
		if !idx.IsPublic(pkgs[name]) {
			t.Errorf("%s not public", name)
		}
	}
}

func TestRuleNames(t *testing.T) {
	meta, pkgs := testMeta()
	idx := New(false, nil, meta)

	if got := idx.PublicRuleName(pkgs["serde"]); got != "serde" {
		t.Errorf("PublicRuleName() = %q", got)
	}
	if got := idx.PrivateRuleName(pkgs["serde"]); got != "serde-1.0.0" {
		t.Errorf("PrivateRuleName() = %q", got)
	}
}

func TestResolvedDepsForTarget(t *testing.T) {
	meta, pkgs := testMeta()
	idx := New(false, nil, meta)

	serde := pkgs["serde"]

	// The library target sees only the normal edge.
	deps := idx.ResolvedDepsForTarget(serde, serde.Targets[0])
	if len(deps) != 1 || deps[0].Package.Name != "cfg-if" {
		t.Fatalf("library deps = %+v, want [cfg-if]", deps)
	}
	// cfg_if matches cfg-if's crate name, so no rename.
	if deps[0].Rename != "" {
		t.Errorf("unexpected rename %q", deps[0].Rename)
	}

	// A build-script target sees only the build edge.
	build := &cargo.ManifestTarget{Name: "build-script-build", Kind: []string{"custom-build"}}
	deps = idx.ResolvedDepsForTarget(serde, build)
	if len(deps) != 1 || deps[0].Package.Name != "hidden" {
		t.Fatalf("build deps = %+v, want [hidden]", deps)
	}
}

func TestResolvedDepRename(t *testing.T) {
	meta, pkgs := testMeta()
	// serde refers to cfg-if under a different identifier.
	meta.Resolve.Nodes[1].Deps[0].Name = "conditional"
	idx := New(false, nil, meta)

	serde := pkgs["serde"]
	deps := idx.ResolvedDepsForTarget(serde, serde.Targets[0])
	if len(deps) != 1 || deps[0].Rename != "conditional" {
		t.Fatalf("deps = %+v, want rename %q", deps, "conditional")
	}
}

func TestResolvedFeatures(t *testing.T) {
	meta, pkgs := testMeta()
	idx := New(false, nil, meta)

	if diff := cmp.Diff([]string{"std"}, idx.ResolvedFeatures(pkgs["serde"])); diff != "" {
		t.Errorf("ResolvedFeatures() mismatch (-want +got):\n%s", diff)
	}
}
