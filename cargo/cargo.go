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

// Package cargo models the resolved package graph reported by
// `cargo metadata`.  The graph is an immutable input: it is loaded once
// per run and only read afterwards.
package cargo

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/blang/semver/v4"
	"github.com/pkg/errors"
)

// PkgId is cargo's unique identifier for one resolved package
// (name, version and source).
type PkgId string

// Edition is a Rust language edition marker.  Editions compare
// chronologically by their year string.
type Edition string

const (
	Rust2015 Edition = "2015"
	Rust2018 Edition = "2018"
	Rust2021 Edition = "2021"
)

// AtLeast reports whether e is the given edition or a later one.
func (e Edition) AtLeast(min Edition) bool {
	return e >= min
}

// Version wraps a semantic version with cargo's JSON representation.
type Version struct {
	semver.Version
}

func (v *Version) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := semver.Parse(s)
	if err != nil {
		return errors.Wrapf(err, "version %q", s)
	}
	v.Version = parsed
	return nil
}

// Manifest is one resolved package: identity, version, targets and the
// metadata needed to locate its sources and license files.
type Manifest struct {
	ID           PkgId             `json:"id"`
	Name         string            `json:"name"`
	Version      Version           `json:"version"`
	Edition      Edition           `json:"edition"`
	ManifestPath string            `json:"manifest_path"`
	License      string            `json:"license"`
	LicenseFile  string            `json:"license_file"`
	Source       string            `json:"source"`
	Description  string            `json:"description"`
	Repository   string            `json:"repository"`
	Targets      []*ManifestTarget `json:"targets"`
}

func (m *Manifest) String() string {
	return fmt.Sprintf("%s-%s", m.Name, m.Version)
}

// ManifestDir returns the directory containing the package's Cargo.toml.
func (m *Manifest) ManifestDir() string {
	return filepath.Dir(m.ManifestPath)
}

// CratesIO reports whether the package comes from the crates.io registry.
const cratesIOSource = "registry+https://github.com/rust-lang/crates.io-index"

func (m *Manifest) CratesIO() bool {
	return m.Source == cratesIOSource
}

// DependencyTarget returns the target other packages link against, if any.
func (m *Manifest) DependencyTarget() *ManifestTarget {
	for _, tgt := range m.Targets {
		if tgt.KindLib() || tgt.KindProcMacro() || tgt.KindCdylib() {
			return tgt
		}
	}
	return nil
}

// ManifestTarget is one buildable unit within a package.
type ManifestTarget struct {
	Name       string   `json:"name"`
	Kind       []string `json:"kind"`
	CrateTypes []string `json:"crate_types"`
	SrcPath    string   `json:"src_path"`
	Edition    Edition  `json:"edition"`
}

func (t *ManifestTarget) kind(k string) bool {
	for _, kind := range t.Kind {
		if kind == k {
			return true
		}
	}
	return false
}

func (t *ManifestTarget) crateType(ct string) bool {
	for _, typ := range t.CrateTypes {
		if typ == ct {
			return true
		}
	}
	return false
}

func (t *ManifestTarget) KindLib() bool         { return t.kind("lib") || t.kind("rlib") }
func (t *ManifestTarget) KindBin() bool         { return t.kind("bin") }
func (t *ManifestTarget) KindProcMacro() bool   { return t.kind("proc-macro") }
func (t *ManifestTarget) KindCdylib() bool      { return t.kind("cdylib") }
func (t *ManifestTarget) KindCustomBuild() bool { return t.kind("custom-build") }

func (t *ManifestTarget) CrateLib() bool       { return t.crateType("lib") || t.crateType("rlib") }
func (t *ManifestTarget) CrateBin() bool       { return t.crateType("bin") }
func (t *ManifestTarget) CrateProcMacro() bool { return t.crateType("proc-macro") }
func (t *ManifestTarget) CrateCdylib() bool    { return t.crateType("cdylib") }

// CrateName is the target name as rustc sees it.
func (t *ManifestTarget) CrateName() string {
	name := make([]byte, len(t.Name))
	for i := 0; i < len(t.Name); i++ {
		if t.Name[i] == '-' {
			name[i] = '_'
		} else {
			name[i] = t.Name[i]
		}
	}
	return string(name)
}

// Metadata is the full `cargo metadata` document.
type Metadata struct {
	Packages         []*Manifest `json:"packages"`
	WorkspaceMembers []PkgId     `json:"workspace_members"`
	Resolve          *Resolve    `json:"resolve"`
}

// Resolve is the resolved dependency graph.
type Resolve struct {
	Root  PkgId          `json:"root"`
	Nodes []*ResolveNode `json:"nodes"`
}

// ResolveNode records one package's resolved dependencies and enabled
// features.
type ResolveNode struct {
	ID       PkgId      `json:"id"`
	Features []string   `json:"features"`
	Deps     []*NodeDep `json:"deps"`
}

// NodeDep is one resolved dependency edge.  Name is the identifier the
// dependent uses in source, which differs from the dependency's package
// name when the dependency is renamed.
type NodeDep struct {
	Name     string     `json:"name"`
	Pkg      PkgId      `json:"pkg"`
	DepKinds []*DepKind `json:"dep_kinds"`
}

// DepKind qualifies a dependency edge: the kind ("" for normal, "dev",
// "build") and an optional platform expression restricting it.
type DepKind struct {
	Kind   string `json:"kind"`
	Target string `json:"target"`
}

// ParseMetadata decodes a `cargo metadata --format-version 1` document.
func ParseMetadata(data []byte) (*Metadata, error) {
	var meta Metadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, errors.Wrap(err, "parsing cargo metadata")
	}
	if meta.Resolve == nil {
		return nil, errors.New("cargo metadata missing resolve graph")
	}
	return &meta, nil
}
