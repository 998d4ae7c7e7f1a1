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

// Package index maintains the run-scoped view of the resolved package
// graph: which packages are publicly exposed, what their rule names are,
// and which dependency edges apply to a given target.
package index

import (
	"sort"

	"buckgen/cargo"
	"buckgen/platform"
)

// Index answers naming and dependency queries about one metadata set.
// It is immutable after New and safe for concurrent use.
type Index struct {
	pkgs     map[cargo.PkgId]*cargo.Manifest
	nodes    map[cargo.PkgId]*cargo.ResolveNode
	root     *cargo.Manifest
	rootNode *cargo.ResolveNode
	public   map[cargo.PkgId]bool
}

// New builds an index over metadata.  Public packages are the root
// package's direct dependencies plus any configured extra top-levels;
// when includeTopLevel is set the root package itself is also public.
func New(includeTopLevel bool, extraTopLevels []string, meta *cargo.Metadata) *Index {
	idx := &Index{
		pkgs:   make(map[cargo.PkgId]*cargo.Manifest),
		nodes:  make(map[cargo.PkgId]*cargo.ResolveNode),
		public: make(map[cargo.PkgId]bool),
	}

	for _, pkg := range meta.Packages {
		idx.pkgs[pkg.ID] = pkg
	}
	for _, node := range meta.Resolve.Nodes {
		idx.nodes[node.ID] = node
	}

	idx.root = idx.pkgs[meta.Resolve.Root]
	idx.rootNode = idx.nodes[meta.Resolve.Root]

	if idx.rootNode != nil {
		for _, dep := range idx.rootNode.Deps {
			idx.public[dep.Pkg] = true
		}
	}

	extra := make(map[string]bool)
	for _, name := range extraTopLevels {
		extra[name] = true
	}
	for _, pkg := range meta.Packages {
		if extra[pkg.Name] || extra[pkg.String()] {
			idx.public[pkg.ID] = true
		}
	}

	if includeTopLevel && idx.root != nil {
		idx.public[idx.root.ID] = true
	}

	return idx
}

// IsRootPackage reports whether pkg is the synthetic aggregate root.
func (idx *Index) IsRootPackage(pkg *cargo.Manifest) bool {
	return idx.root != nil && pkg.ID == idx.root.ID
}

// IsPublic reports whether pkg is exposed to first-party code.
func (idx *Index) IsPublic(pkg *cargo.Manifest) bool {
	return idx.public[pkg.ID]
}

// PublicRuleName is the stable name a package is exposed under.
func (idx *Index) PublicRuleName(pkg *cargo.Manifest) string {
	return pkg.Name
}

// PrivateRuleName is the version-qualified name used for the actual rule.
func (idx *Index) PrivateRuleName(pkg *cargo.Manifest) string {
	return pkg.String()
}

// PublicPackages returns the public root packages in a stable order.
func (idx *Index) PublicPackages() []*cargo.Manifest {
	var pkgs []*cargo.Manifest
	for id := range idx.public {
		if pkg, ok := idx.pkgs[id]; ok {
			pkgs = append(pkgs, pkg)
		}
	}
	sort.Slice(pkgs, func(i, j int) bool { return pkgs[i].ID < pkgs[j].ID })
	return pkgs
}

// AllPackages returns every package except the root, in a stable order.
func (idx *Index) AllPackages() []*cargo.Manifest {
	var pkgs []*cargo.Manifest
	for _, pkg := range idx.pkgs {
		if !idx.IsRootPackage(pkg) {
			pkgs = append(pkgs, pkg)
		}
	}
	sort.Slice(pkgs, func(i, j int) bool { return pkgs[i].ID < pkgs[j].ID })
	return pkgs
}

// Package looks up a package by id.
func (idx *Index) Package(id cargo.PkgId) *cargo.Manifest {
	return idx.pkgs[id]
}

// ResolvedFeatures returns the features cargo enabled for pkg.
func (idx *Index) ResolvedFeatures(pkg *cargo.Manifest) []string {
	node := idx.nodes[pkg.ID]
	if node == nil {
		return nil
	}
	return node.Features
}

// ResolvedDep is one dependency edge applicable to a target.
type ResolvedDep struct {
	Package *cargo.Manifest
	// Rename is the name the dependent uses when it differs from the
	// dependency's own library name.
	Rename string
	// Platform restricts the edge to matching platforms; empty means
	// unconditional.
	Platform platform.Expr
}

// ResolvedDepsForTarget returns the dependency edges that apply to one
// target: build-kind edges for build scripts, normal edges otherwise.
// Dev-dependencies never apply to vendored code.
func (idx *Index) ResolvedDepsForTarget(pkg *cargo.Manifest, tgt *cargo.ManifestTarget) []ResolvedDep {
	node := idx.nodes[pkg.ID]
	if node == nil {
		return nil
	}

	wantKind := ""
	if tgt.KindCustomBuild() {
		wantKind = "build"
	}

	var deps []ResolvedDep
	for _, dep := range node.Deps {
		depPkg := idx.pkgs[dep.Pkg]
		if depPkg == nil {
			continue
		}

		rename := ""
		if libTgt := depPkg.DependencyTarget(); libTgt != nil && libTgt.CrateName() != dep.Name {
			rename = dep.Name
		}

		for _, kind := range dep.DepKinds {
			if kind.Kind != wantKind {
				continue
			}
			deps = append(deps, ResolvedDep{
				Package:  depPkg,
				Rename:   rename,
				Platform: platform.Expr(kind.Target),
			})
		}
	}

	sort.Slice(deps, func(i, j int) bool {
		if deps[i].Package.ID != deps[j].Package.ID {
			return deps[i].Package.ID < deps[j].Package.ID
		}
		return deps[i].Platform < deps[j].Platform
	})

	return deps
}
