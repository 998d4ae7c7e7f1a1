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

// Package fixups applies user-supplied per-package overrides, correcting
// metadata that cannot be reliably inferred from the package graph.
package fixups

import (
	"sort"

	"github.com/blang/semver/v4"
	"github.com/pkg/errors"

	"buckgen/platform"
)

// File is one per-package fixups.toml.
type File struct {
	// Limit an exposed package's alias visibility.  Only meaningful for
	// top-level packages.
	CustomVisibility []string `toml:"visibility"`

	// Targets to omit entirely.
	OmitTargets []string `toml:"omit_targets"`

	// Override the global precise_srcs setting for this package.  Useful
	// for pathologically large packages where source detection dominates
	// generation time.
	PreciseSrcs *bool `toml:"precise_srcs"`

	// If the package builds a c-dynamic-library meant to be a Python
	// extension module, the module name.
	PythonExt string `toml:"python_ext"`

	// Unconditional config.
	Config

	// Platform-specific configs keyed by platform expression.
	PlatformFixup map[string]*Config `toml:"platform_fixup"`
}

// Config is one fixup section, either the base or a platform-specific
// one.
type Config struct {
	// Versions this section applies to; empty applies to all.
	Version string `toml:"version"`
	// Extra src globs, rooted in the package's manifest dir.
	ExtraSrcs []string `toml:"extra_srcs"`
	// Dirs whose contents the src files reference at compile time,
	// relative to the package's manifest dir.
	SrcReferencedDirs []string `toml:"src_referenced_dirs"`
	// Extra flags for the compiler.
	RustcFlags []string `toml:"rustc_flags"`
	// Extra --cfg settings.
	Cfgs []string `toml:"cfgs"`
	// Extra features.
	Features []string `toml:"features"`
	// Features to forcibly omit.  This doesn't change dependency
	// resolution, just what the targets are compiled with.
	OmitFeatures []string `toml:"omit_features"`
	// Additional build-file dependencies.
	ExtraDeps []string `toml:"extra_deps"`
	// Resolved dependencies to omit, by bare package name.
	OmitDeps []string `toml:"omit_deps"`
	// Emit the standard cargo environment variables.
	CargoEnv bool `toml:"cargo_env"`
	// Directory (relative to the fixup dir) whose files logically add to
	// or replace files in the manifest dir.
	Overlay string `toml:"overlay"`
	// Binary link style (how dependencies should be linked).
	LinkStyle string `toml:"link_style"`
	// Library preferred linkage (how dependents should link you).
	PreferredLinkage string `toml:"preferred_linkage"`
	// Additional environment variables.
	Env map[string]string `toml:"env"`
	// Extra mapped srcs: source label or path to in-package path.
	ExtraMappedSrcs map[string]string `toml:"extra_mapped_srcs"`
	// How to handle a build script, if present.
	Buildscript []*BuildscriptFixup `toml:"buildscript"`
}

// BuildscriptFixup describes the effect of one build script. Exactly one
// field should be set per entry.
type BuildscriptFixup struct {
	// The script generates source files.
	GenSrcs *GenSrcsFixup `toml:"gen_srcs"`
	// The script emits compiler flags to pass through.
	RustcFlags *RustcFlagsFixup `toml:"rustc_flags"`
	// Placeholder written into generated templates; failing generation
	// until a human resolves the script's effect.
	Unresolved string `toml:"unresolved"`
}

// GenSrcsFixup names the files a build script generation run produces.
type GenSrcsFixup struct {
	Files   []string          `toml:"files"`
	Srcs    []string          `toml:"srcs"`
	Env     map[string]string `toml:"env"`
	PathEnv map[string]string `toml:"path_env"`
}

// RustcFlagsFixup passes the script's emitted compiler flags through.
type RustcFlagsFixup struct {
	Env map[string]string `toml:"env"`
}

// versionApplies reports whether the section applies to ver.
func (c *Config) versionApplies(ver semver.Version) (bool, error) {
	if c.Version == "" {
		return true, nil
	}
	rng, err := semver.ParseRange(c.Version)
	if err != nil {
		return false, errors.Wrapf(err, "version requirement %q", c.Version)
	}
	return rng(ver), nil
}

// taggedConfig pairs a fixup section with its platform guard; the base
// section carries an empty guard.
type taggedConfig struct {
	platform platform.Expr
	config   *Config
}

// configs returns the sections applying to ver, base first.
func (f *File) configs(ver semver.Version) ([]taggedConfig, error) {
	var out []taggedConfig

	ok, err := f.Config.versionApplies(ver)
	if err != nil {
		return nil, err
	}
	if ok {
		out = append(out, taggedConfig{config: &f.Config})
	}

	// TOML map order is not stable; sort the platform sections by their
	// expression text.
	exprs := make([]string, 0, len(f.PlatformFixup))
	for expr := range f.PlatformFixup {
		exprs = append(exprs, expr)
	}
	sort.Strings(exprs)

	for _, expr := range exprs {
		cfg := f.PlatformFixup[expr]
		ok, err := cfg.versionApplies(ver)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, taggedConfig{platform: platform.Expr(expr), config: cfg})
		}
	}

	return out, nil
}
