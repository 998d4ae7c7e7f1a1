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

package fixups

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/bmatcuk/doublestar"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"buckgen/buck"
	"buckgen/cargo"
	"buckgen/config"
	"buckgen/index"
	"buckgen/pathtools"
	"buckgen/platform"
)

// Tagged pairs a computed value with the platform expression restricting
// it; an empty expression means it applies unconditionally.
type Tagged[T any] struct {
	Platform platform.Expr
	Value    T
}

// GenSrc maps one build-script output into a rule's sources.
type GenSrc struct {
	// Key is the label or path the mapped source comes from.
	Key string
	// Path is where it lands relative to the package's source dir.
	Path string
}

// Dep is one computed dependency: the referenced rule, an optional
// rename, and the dependency's own package for recursion (nil for
// dependencies added by fixup config).
type Dep struct {
	Package *cargo.Manifest
	Ref     buck.RuleRef
	Rename  string
}

// Fixups resolves the overrides applying to one (package, target) pair.
type Fixups struct {
	config        *config.Config
	thirdPartyDir string
	fixupDir      string
	index         *index.Index
	pkg           *cargo.Manifest
	tgt           *cargo.ManifestTarget
	file          *File
	sections      []taggedConfig
}

// New loads the fixups for one target.  A missing fixups.toml is an
// empty fixup; when templates are enabled a skeleton is written for
// build-script targets so a human can describe the script's effect.
func New(cfg *config.Config, thirdPartyDir, fixupsDir string, idx *index.Index,
	pkg *cargo.Manifest, tgt *cargo.ManifestTarget) (*Fixups, error) {

	fixupDir := filepath.Join(fixupsDir, pkg.Name)
	path := filepath.Join(fixupDir, "fixups.toml")

	file := &File{}
	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		if cfg.FixupTemplates && tgt.KindCustomBuild() {
			if err := writeTemplate(path, thirdPartyDir, idx, pkg, tgt); err != nil {
				return nil, err
			}
		}
	case err != nil:
		return nil, errors.Wrapf(err, "pkg %s target %s: reading fixups", pkg, tgt.Name)
	default:
		if err := toml.Unmarshal(data, file); err != nil {
			return nil, errors.Wrapf(err, "pkg %s target %s: parsing %s", pkg, tgt.Name, path)
		}
	}

	sections, err := file.configs(pkg.Version.Version)
	if err != nil {
		return nil, errors.Wrapf(err, "pkg %s target %s", pkg, tgt.Name)
	}

	return &Fixups{
		config:        cfg,
		thirdPartyDir: thirdPartyDir,
		fixupDir:      fixupDir,
		index:         idx,
		pkg:           pkg,
		tgt:           tgt,
		file:          file,
		sections:      sections,
	}, nil
}

// writeTemplate generates a fixups.toml starting point for an unresolved
// build script, listing the script's dependencies as a clue to what it
// is trying to do.
func writeTemplate(path, thirdPartyDir string, idx *index.Index,
	pkg *cargo.Manifest, tgt *cargo.ManifestTarget) error {

	var msg strings.Builder
	fmt.Fprintf(&msg, "Unresolved build script at %s. Dependencies:",
		pathtools.Rel(thirdPartyDir, tgt.SrcPath))
	for _, dep := range idx.ResolvedDepsForTarget(pkg, tgt) {
		fmt.Fprintf(&msg, "\n    %s", dep.Package)
	}

	// Encoded as a plain map so nil sub-sections of File never reach the
	// encoder.
	template := map[string]interface{}{
		"buildscript": []map[string]string{{"unresolved": msg.String()}},
	}

	if err := os.MkdirAll(filepath.Dir(path), 0777); err != nil {
		return errors.Wrapf(err, "pkg %s: creating fixup dir", pkg)
	}
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "pkg %s: writing fixup template", pkg)
	}
	defer f.Close()

	klog.Infof("pkg %s: writing fixup template %s", pkg, path)
	return errors.Wrapf(toml.NewEncoder(f).Encode(template), "pkg %s: encoding fixup template", pkg)
}

// OmitTarget reports whether the target should produce no declarations.
func (f *Fixups) OmitTarget() bool {
	for _, name := range f.file.OmitTargets {
		if name == f.tgt.Name {
			return true
		}
	}
	return false
}

// PreciseSrcs reports whether per-file source detection should be
// attempted.
func (f *Fixups) PreciseSrcs() bool {
	if f.file.PreciseSrcs != nil {
		return *f.file.PreciseSrcs
	}
	return f.config.PreciseSrcs
}

// PythonExt returns the Python extension module name, if configured.
func (f *Fixups) PythonExt() string {
	return f.file.PythonExt
}

// CustomVisibility returns the labels an exposed package's alias is
// narrowed to, if any.
func (f *Fixups) CustomVisibility() []string {
	return f.file.CustomVisibility
}

// ComputeCmdline yields the extra compiler flags, including --cfg
// settings, per applying section.
func (f *Fixups) ComputeCmdline() []Tagged[[]string] {
	var out []Tagged[[]string]
	for _, section := range f.sections {
		flags := append([]string(nil), section.config.RustcFlags...)
		for _, cfg := range section.config.Cfgs {
			flags = append(flags, "--cfg="+cfg)
		}
		if len(flags) > 0 {
			out = append(out, Tagged[[]string]{Platform: section.platform, Value: flags})
		}
	}
	return out
}

// ComputeSrcs maps the detected sources (absolute paths or glob
// patterns) into third-party-relative paths and adds any configured
// extra sources.  Sources replaced by an overlay file are dropped.
func (f *Fixups) ComputeSrcs(srcs []string) ([]Tagged[[]string], error) {
	overlay, err := f.overlayFiles()
	if err != nil {
		return nil, err
	}

	manifestDir := f.pkg.ManifestDir()

	var base []string
	for _, src := range srcs {
		rel := pathtools.Rel(manifestDir, src)
		if overlay[filepath.ToSlash(rel)] {
			continue
		}
		base = append(base, pathtools.Normalize(pathtools.Rel(f.thirdPartyDir, src)))
	}

	out := []Tagged[[]string]{}
	if len(base) > 0 {
		out = append(out, Tagged[[]string]{Value: base})
	}

	for _, section := range f.sections {
		var extra []string
		for _, pattern := range section.config.ExtraSrcs {
			matched, err := f.globManifest(pattern)
			if err != nil {
				return nil, err
			}
			extra = append(extra, matched...)
		}
		if len(extra) > 0 {
			out = append(out, Tagged[[]string]{Platform: section.platform, Value: extra})
		}
	}

	return out, nil
}

// globManifest expands a pattern rooted in the manifest dir into
// third-party-relative paths.  A pattern matching nothing on disk is
// kept as a pattern, so configs can name files produced later.
func (f *Fixups) globManifest(pattern string) ([]string, error) {
	abs := filepath.Join(f.pkg.ManifestDir(), pattern)
	if !pathtools.IsWild(abs) {
		return []string{pathtools.Rel(f.thirdPartyDir, abs)}, nil
	}

	matches, err := doublestar.Glob(filepath.ToSlash(abs))
	if err != nil {
		return nil, errors.Wrapf(err, "pkg %s: glob %q", f.pkg, pattern)
	}
	if len(matches) == 0 {
		return []string{pathtools.Rel(f.thirdPartyDir, abs)}, nil
	}

	paths := make([]string, len(matches))
	for i, m := range matches {
		paths[i] = pathtools.Rel(f.thirdPartyDir, filepath.FromSlash(m))
	}
	return paths, nil
}

// ComputeGenSrcs yields the sources produced by build-script runs, as
// mappings from the generating rule's output to in-package paths.
func (f *Fixups) ComputeGenSrcs(srcdir string) []Tagged[[]GenSrc] {
	genrule := f.genSrcsRuleName()

	var out []Tagged[[]GenSrc]
	for _, section := range f.sections {
		var gen []GenSrc
		for _, bs := range section.config.Buildscript {
			if bs.GenSrcs == nil {
				continue
			}
			for _, file := range bs.GenSrcs.Files {
				gen = append(gen, GenSrc{
					Key:  fmt.Sprintf(":%s[%s]", genrule, file),
					Path: filepath.Join(srcdir, file),
				})
			}
		}
		if len(gen) > 0 {
			out = append(out, Tagged[[]GenSrc]{Platform: section.platform, Value: gen})
		}
	}
	return out
}

// ComputeMappedSrcs yields overlay files and configured extra mapped
// sources, keyed by their third-party-relative origin.
func (f *Fixups) ComputeMappedSrcs() ([]Tagged[map[string]string], error) {
	out := []Tagged[map[string]string]{}

	for _, section := range f.sections {
		mapped := make(map[string]string)

		if section.config.Overlay != "" {
			overlayDir := filepath.Join(f.fixupDir, section.config.Overlay)
			files, err := walkFiles(overlayDir)
			if err != nil {
				return nil, errors.Wrapf(err, "pkg %s: overlay %s", f.pkg, section.config.Overlay)
			}
			for _, file := range files {
				key := pathtools.Rel(f.thirdPartyDir, filepath.Join(overlayDir, file))
				mapped[key] = file
			}
		}

		for from, to := range section.config.ExtraMappedSrcs {
			mapped[from] = to
		}

		if len(mapped) > 0 {
			out = append(out, Tagged[map[string]string]{Platform: section.platform, Value: mapped})
		}
	}

	return out, nil
}

// overlayFiles is the set of manifest-relative paths replaced by overlay
// files in any applying section.
func (f *Fixups) overlayFiles() (map[string]bool, error) {
	overlay := make(map[string]bool)
	for _, section := range f.sections {
		if section.config.Overlay == "" {
			continue
		}
		files, err := walkFiles(filepath.Join(f.fixupDir, section.config.Overlay))
		if err != nil {
			return nil, errors.Wrapf(err, "pkg %s: overlay %s", f.pkg, section.config.Overlay)
		}
		for _, file := range files {
			overlay[filepath.ToSlash(file)] = true
		}
	}
	return overlay, nil
}

func walkFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			files = append(files, pathtools.Rel(dir, path))
		}
		return nil
	})
	if os.IsNotExist(err) {
		return nil, nil
	}
	return files, err
}

// ComputeFeatures yields the enabled features: what cargo resolved, less
// omitted ones, plus extras per section.
func (f *Fixups) ComputeFeatures() []Tagged[[]string] {
	omitted := make(map[string]bool)
	for _, section := range f.sections {
		for _, feat := range section.config.OmitFeatures {
			omitted[feat] = true
		}
	}

	var base []string
	for _, feat := range f.index.ResolvedFeatures(f.pkg) {
		if !omitted[feat] {
			base = append(base, feat)
		}
	}

	out := []Tagged[[]string]{}
	if len(base) > 0 {
		out = append(out, Tagged[[]string]{Value: base})
	}

	for _, section := range f.sections {
		var extra []string
		for _, feat := range section.config.Features {
			if !omitted[feat] {
				extra = append(extra, feat)
			}
		}
		if len(extra) > 0 {
			out = append(out, Tagged[[]string]{Platform: section.platform, Value: extra})
		}
	}

	return out
}

// ComputeEnv yields the environment variables, including the standard
// cargo set when cargo_env is enabled.
func (f *Fixups) ComputeEnv() []Tagged[map[string]string] {
	out := []Tagged[map[string]string]{}
	for _, section := range f.sections {
		env := make(map[string]string)

		if section.config.CargoEnv {
			ver := f.pkg.Version
			env["CARGO"] = "cargo"
			env["CARGO_PKG_NAME"] = f.pkg.Name
			env["CARGO_PKG_VERSION"] = ver.String()
			env["CARGO_PKG_VERSION_MAJOR"] = fmt.Sprint(ver.Major)
			env["CARGO_PKG_VERSION_MINOR"] = fmt.Sprint(ver.Minor)
			env["CARGO_PKG_VERSION_PATCH"] = fmt.Sprint(ver.Patch)
			env["CARGO_PKG_DESCRIPTION"] = f.pkg.Description
			env["CARGO_PKG_REPOSITORY"] = f.pkg.Repository
			env["CARGO_MANIFEST_DIR"] = pathtools.Rel(f.thirdPartyDir, f.pkg.ManifestDir())
		}
		for k, v := range section.config.Env {
			env[k] = v
		}

		if len(env) > 0 {
			out = append(out, Tagged[map[string]string]{Platform: section.platform, Value: env})
		}
	}
	return out
}

// ComputeDeps yields the target's dependencies: the resolved graph edges
// less omitted ones, plus extra build-file deps per section.
func (f *Fixups) ComputeDeps() ([]Dep, error) {
	omitted := make(map[string]bool)
	for _, section := range f.sections {
		for _, name := range section.config.OmitDeps {
			omitted[name] = true
		}
	}

	var deps []Dep
	for _, resolved := range f.index.ResolvedDepsForTarget(f.pkg, f.tgt) {
		if omitted[resolved.Package.Name] {
			klog.V(2).Infof("pkg %s target %s: omitting dep %s", f.pkg, f.tgt.Name, resolved.Package)
			continue
		}
		ref := buck.LocalRef(f.index.PrivateRuleName(resolved.Package)).
			WithPlatform(resolved.Platform)
		deps = append(deps, Dep{
			Package: resolved.Package,
			Ref:     ref,
			Rename:  resolved.Rename,
		})
	}

	for _, section := range f.sections {
		extra := append([]string(nil), section.config.ExtraDeps...)
		sort.Strings(extra)
		for _, target := range extra {
			deps = append(deps, Dep{
				Ref: buck.RuleRef{Target: target, Platform: section.platform},
			})
		}
	}

	return deps, nil
}

// ComputeLinkStyle yields binary link styles per section.
func (f *Fixups) ComputeLinkStyle() []Tagged[string] {
	var out []Tagged[string]
	for _, section := range f.sections {
		if section.config.LinkStyle != "" {
			out = append(out, Tagged[string]{Platform: section.platform, Value: section.config.LinkStyle})
		}
	}
	return out
}

// ComputePreferredLinkage yields library preferred linkage per section.
func (f *Fixups) ComputePreferredLinkage() []Tagged[string] {
	var out []Tagged[string]
	for _, section := range f.sections {
		if section.config.PreferredLinkage != "" {
			out = append(out, Tagged[string]{Platform: section.platform, Value: section.config.PreferredLinkage})
		}
	}
	return out
}

// ManifestWalk returns the third-party-relative paths of files under the
// manifest dir matching any of the given glob patterns.
func (f *Fixups) ManifestWalk(patterns []string) ([]string, error) {
	if len(patterns) == 0 {
		return nil, nil
	}

	manifestDir := f.pkg.ManifestDir()
	files, err := walkFiles(manifestDir)
	if err != nil {
		return nil, errors.Wrapf(err, "pkg %s: walking manifest dir", f.pkg)
	}

	var matched []string
	for _, file := range files {
		for _, pattern := range patterns {
			ok, err := doublestar.Match(pattern, filepath.ToSlash(file))
			if err != nil {
				return nil, errors.Wrapf(err, "pkg %s: license pattern %q", f.pkg, pattern)
			}
			if ok {
				matched = append(matched, pathtools.Rel(f.thirdPartyDir, filepath.Join(manifestDir, file)))
				break
			}
		}
	}
	return matched, nil
}
