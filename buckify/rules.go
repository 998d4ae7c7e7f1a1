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
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"buckgen/buck"
	"buckgen/cargo"
	"buckgen/config"
	"buckgen/fixups"
	"buckgen/index"
	"buckgen/pathtools"
	"buckgen/platform"
)

// generated is one unit of walker output: the rules one package produced,
// or the error that stopped it.  Failed packages do not stop their
// siblings; the collector decides what to do with the errors.
type generated struct {
	rules []buck.Rule
	err   error
}

// ruleContext is the shared state of one generation run.  The visited
// set is guarded by mu; everything else is immutable once the walk
// starts.
type ruleContext struct {
	config   *config.Config
	paths    *Paths
	index    *index.Index
	lockfile *cargo.Lockfile

	mu   sync.Mutex
	done map[cargo.PkgId]bool
	wg   sync.WaitGroup
	out  chan generated
}

func newRuleContext(cfg *config.Config, paths *Paths, idx *index.Index, lock *cargo.Lockfile) *ruleContext {
	return &ruleContext{
		config:   cfg,
		paths:    paths,
		index:    idx,
		lockfile: lock,
		done:     make(map[cargo.PkgId]bool),
		out:      make(chan generated),
	}
}

// generateDepRules starts generation for every package not already
// claimed.  Claiming happens before the goroutine is spawned, so a
// package reached along two edges at once is still generated exactly
// once.
func (c *ruleContext) generateDepRules(pkgs []*cargo.Manifest) {
	c.mu.Lock()
	var fresh []*cargo.Manifest
	for _, pkg := range pkgs {
		if !c.done[pkg.ID] {
			c.done[pkg.ID] = true
			fresh = append(fresh, pkg)
		}
	}
	c.mu.Unlock()

	for _, pkg := range fresh {
		pkg := pkg
		c.wg.Add(1)
		go func() {
			defer c.wg.Done()
			c.generateRules(pkg)
		}()
	}
}

// generateRules generates the declarations for one package and recurses
// into the dependencies of the targets that produced any.  A target that
// fails reports its error without blocking the package's other targets.
func (c *ruleContext) generateRules(pkg *cargo.Manifest) {
	var rules []buck.Rule
	var depPkgs []*cargo.Manifest

	for _, tgt := range pkg.Targets {
		tgtRules, tgtDeps, err := c.generateTargetRules(pkg, tgt)
		if err != nil {
			c.out <- generated{err: err}
			continue
		}
		rules = append(rules, tgtRules...)
		depPkgs = append(depPkgs, tgtDeps...)
	}

	c.out <- generated{rules: rules}
	c.generateDepRules(depPkgs)
}

// generateTargetRules decides what one target becomes: a library (with a
// public alias when exposed), a build script and its invocations, a
// public binary, or nothing.  Dependencies are only returned alongside
// rules; a target that emits nothing prunes its subtree unless another
// target reaches it.
func (c *ruleContext) generateTargetRules(pkg *cargo.Manifest, tgt *cargo.ManifestTarget) ([]buck.Rule, []*cargo.Manifest, error) {
	switch {
	case (tgt.KindLib() && tgt.CrateLib()) ||
		(tgt.KindProcMacro() && tgt.CrateProcMacro()) ||
		(tgt.KindCdylib() && tgt.CrateCdylib()):
		return c.libraryRules(pkg, tgt)
	case tgt.KindCustomBuild() && tgt.CrateBin():
		return c.buildscriptRules(pkg, tgt)
	case tgt.KindBin() && tgt.CrateBin() && c.index.IsPublic(pkg):
		return c.binaryRules(pkg, tgt)
	default:
		klog.V(2).Infof("pkg %s: skipping target %s (%v)", pkg, tgt.Name, tgt.Kind)
		return nil, nil, nil
	}
}

// targetAttrs is the computed attribute state shared by the rule
// variants, before any per-variant adjustment.
type targetAttrs struct {
	rootMod  string
	edition  cargo.Edition
	licenses map[string]bool
	base     *buck.PlatformRustCommon
	perPlat  map[platform.Name]*buck.PlatformRustCommon
	deps     []*cargo.Manifest
	fetch    buck.Rule
}

// computeTargetAttrs runs the fixup computations for one target and
// partitions every attribute stream by platform.
func (c *ruleContext) computeTargetAttrs(fx *fixups.Fixups, pkg *cargo.Manifest, tgt *cargo.ManifestTarget) (*targetAttrs, error) {
	fail := func(err error, what string) error {
		return errors.Wrapf(err, "pkg %s target %s: %s", pkg, tgt.Name, what)
	}

	attrs := &targetAttrs{
		rootMod: pathtools.Normalize(pathtools.Rel(c.paths.ThirdPartyDir, tgt.SrcPath)),
		edition: pkg.Edition,
		base:    buck.NewPlatformRustCommon(),
		perPlat: make(map[platform.Name]*buck.PlatformRustCommon),
	}
	if tgt.Edition != "" {
		attrs.edition = tgt.Edition
	}

	licenses, err := fx.ManifestWalk(c.config.LicensePatterns)
	if err != nil {
		return nil, err
	}
	attrs.licenses = make(map[string]bool)
	for _, file := range licenses {
		attrs.licenses[file] = true
	}
	if pkg.LicenseFile != "" {
		path := pathtools.Rel(c.paths.ThirdPartyDir, filepath.Join(pkg.ManifestDir(), pkg.LicenseFile))
		attrs.licenses[pathtools.Normalize(path)] = true
	}

	attrs.base.RustcFlags = append(attrs.base.RustcFlags, c.config.RustcFlags...)
	for name, flags := range c.config.PlatformRustcFlags {
		bucket := buck.NewPlatformRustCommon()
		bucket.RustcFlags = append(bucket.RustcFlags, flags...)
		attrs.perPlat[name] = bucket
	}

	err = unzipPlatform(c.config, attrs.base, attrs.perPlat,
		func(p *buck.PlatformRustCommon, flags []string) {
			p.RustcFlags = append(p.RustcFlags, flags...)
		}, fx.ComputeCmdline())
	if err != nil {
		return nil, fail(err, "rustc_flags")
	}

	if err := c.computeSrcs(fx, pkg, tgt, attrs); err != nil {
		return nil, err
	}

	err = unzipPlatform(c.config, attrs.base, attrs.perPlat,
		func(p *buck.PlatformRustCommon, gen []fixups.GenSrc) {
			for _, g := range gen {
				p.MappedSrcs[g.Key] = g.Path
			}
		}, fx.ComputeGenSrcs(filepath.Dir(attrs.rootMod)))
	if err != nil {
		return nil, fail(err, "mapped_srcs(gen_srcs)")
	}

	mapped, err := fx.ComputeMappedSrcs()
	if err != nil {
		return nil, err
	}
	err = unzipPlatform(c.config, attrs.base, attrs.perPlat,
		func(p *buck.PlatformRustCommon, m map[string]string) {
			for k, v := range m {
				p.MappedSrcs[k] = v
			}
		}, mapped)
	if err != nil {
		return nil, fail(err, "mapped_srcs(paths)")
	}

	err = unzipPlatform(c.config, attrs.base, attrs.perPlat,
		func(p *buck.PlatformRustCommon, features []string) {
			for _, feat := range features {
				p.Features[feat] = true
			}
		}, fx.ComputeFeatures())
	if err != nil {
		return nil, fail(err, "features")
	}

	err = unzipPlatform(c.config, attrs.base, attrs.perPlat,
		func(p *buck.PlatformRustCommon, env map[string]string) {
			for k, v := range env {
				p.Env[k] = v
			}
		}, fx.ComputeEnv())
	if err != nil {
		return nil, fail(err, "env")
	}

	deps, err := fx.ComputeDeps()
	if err != nil {
		return nil, err
	}
	for _, dep := range deps {
		plain := buck.RuleRef{Target: dep.Ref.Target}
		if !dep.Ref.HasPlatform() {
			if dep.Package != nil {
				attrs.deps = append(attrs.deps, dep.Package)
			}
			addDep(attrs.base, plain, dep.Rename)
			continue
		}

		names, err := platform.NamesForExpr(c.config.Platform, dep.Ref.Platform)
		if err != nil {
			return nil, fail(err, fmt.Sprintf("dep %s", dep.Ref.Target))
		}
		// A guard no configured platform satisfies drops the edge
		// entirely, so the package behind it is never materialized
		// through this target.
		if len(names) > 0 && dep.Package != nil {
			attrs.deps = append(attrs.deps, dep.Package)
		}
		for _, name := range names {
			if name.IsDefault() {
				addDep(attrs.base, plain, dep.Rename)
				continue
			}
			bucket, ok := attrs.perPlat[name]
			if !ok {
				bucket = buck.NewPlatformRustCommon()
				attrs.perPlat[name] = bucket
			}
			addDep(bucket, plain, dep.Rename)
		}
	}

	return attrs, nil
}

func addDep(attrs *buck.PlatformRustCommon, ref buck.RuleRef, rename string) {
	if rename != "" {
		attrs.NamedDeps[rename] = ref
	} else {
		attrs.Deps[ref] = true
	}
}

// computeSrcs fills in the target's sources.  Vendored packages get
// concrete files (precise when possible, a glob otherwise); unvendored
// packages get a reference to a fetch rule instead.
func (c *ruleContext) computeSrcs(fx *fixups.Fixups, pkg *cargo.Manifest, tgt *cargo.ManifestTarget, attrs *targetAttrs) error {
	if !c.config.Vendor && !c.index.IsRootPackage(pkg) {
		fetch, err := c.fetchRule(pkg)
		if err != nil {
			return err
		}
		attrs.fetch = fetch
		attrs.base.Srcs[":"+buck.Name(fetch)] = true
		return nil
	}

	// Precise detection needs 2018-style module resolution; older
	// editions always glob.
	var srcs []string
	if fx.PreciseSrcs() && attrs.edition.AtLeast(cargo.Rust2018) {
		detected, err := crateSrcfiles(tgt.SrcPath)
		if err != nil {
			klog.Infof("pkg %s target %s: precise srcs failed (%v), falling back to glob", pkg, tgt.Name, err)
		} else {
			srcs = detected
		}
	}
	if len(srcs) == 0 {
		srcs = []string{filepath.Join(filepath.Dir(tgt.SrcPath), "**", "*.rs")}
	}

	tagged, err := fx.ComputeSrcs(srcs)
	if err != nil {
		return err
	}

	err = unzipPlatform(c.config, attrs.base, attrs.perPlat,
		func(p *buck.PlatformRustCommon, files []string) {
			for _, file := range files {
				p.Srcs[file] = true
			}
		}, tagged)
	return errors.Wrapf(err, "pkg %s target %s: srcs", pkg, tgt.Name)
}

// fetchRule synthesizes the declaration that fetches an unvendored
// package's sources.
func (c *ruleContext) fetchRule(pkg *cargo.Manifest) (buck.Rule, error) {
	switch {
	case pkg.CratesIO():
		sum, ok := c.lockfile.Checksum(pkg)
		if !ok {
			return nil, errors.Errorf("pkg %s: no checksum in lockfile", pkg)
		}
		return &buck.HttpArchive{
			Name: c.index.PrivateRuleName(pkg) + ".crate",
			URLs: []string{
				fmt.Sprintf("https://static.crates.io/crates/%s/%s-%s.crate", pkg.Name, pkg.Name, pkg.Version),
			},
			SHA256:      sum,
			StripPrefix: pkg.String(),
		}, nil

	case strings.HasPrefix(pkg.Source, "git+"):
		repo, rev, err := parseGitSource(pkg.Source)
		if err != nil {
			return nil, errors.Wrapf(err, "pkg %s", pkg)
		}
		return &buck.GitFetch{
			Name: c.index.PrivateRuleName(pkg) + ".git",
			Repo: repo,
			Rev:  rev,
		}, nil
	}

	return nil, errors.Errorf("pkg %s: don't know how to fetch source %q", pkg, pkg.Source)
}

// parseGitSource splits a cargo git source id, which looks like
// "git+https://host/repo?rev=tag#commit", into repo url and commit.
func parseGitSource(source string) (repo, rev string, err error) {
	rest := strings.TrimPrefix(source, "git+")

	hash := strings.IndexByte(rest, '#')
	if hash == -1 {
		return "", "", errors.Errorf("git source %q has no commit", source)
	}
	rev = rest[hash+1:]
	repo = rest[:hash]

	if query := strings.IndexByte(repo, '?'); query != -1 {
		repo = repo[:query]
	}
	return repo, rev, nil
}

// libraryRules emits a library declaration, plus a public alias when the
// package is exposed.  The aggregate root's library carries the public
// name directly instead of an alias.
func (c *ruleContext) libraryRules(pkg *cargo.Manifest, tgt *cargo.ManifestTarget) ([]buck.Rule, []*cargo.Manifest, error) {
	fx, err := fixups.New(c.config, c.paths.ThirdPartyDir, c.paths.FixupsDir, c.index, pkg, tgt)
	if err != nil {
		return nil, nil, err
	}
	if fx.OmitTarget() {
		return nil, nil, nil
	}

	attrs, err := c.computeTargetAttrs(fx, pkg, tgt)
	if err != nil {
		return nil, nil, err
	}

	libBase := attrs.base.Clone()
	libPerPlat := buck.ClonePlatforms(attrs.perPlat)
	err = unzipPlatform(c.config, libBase, libPerPlat,
		func(p *buck.PlatformRustCommon, linkage string) {
			p.PreferredLinkage = linkage
		}, fx.ComputePreferredLinkage())
	if err != nil {
		return nil, nil, errors.Wrapf(err, "pkg %s target %s: preferred_linkage", pkg, tgt.Name)
	}

	root := c.index.IsRootPackage(pkg)
	public := c.index.IsPublic(pkg)

	name := c.index.PrivateRuleName(pkg)
	if root {
		name = c.index.PublicRuleName(pkg)
	}

	pythonExt := fx.PythonExt()
	linkableAlias := ""
	if public && (tgt.KindCdylib() || pythonExt != "") {
		// Native linking needs a stable name even when the cdylib or
		// python extension owns the primary one.
		linkableAlias = c.index.PublicRuleName(pkg)
	}

	lib := &buck.RustLibrary{
		RustCommon: buck.RustCommon{
			Common: buck.Common{
				Name:     name,
				Public:   root,
				Licenses: attrs.licenses,
			},
			Crate:    tgt.CrateName(),
			RootMod:  attrs.rootMod,
			Edition:  attrs.edition,
			Base:     libBase,
			Platform: libPerPlat,
		},
		ProcMacro:     tgt.CrateProcMacro(),
		DlopenEnable:  tgt.KindCdylib() && pythonExt == "",
		PythonExt:     pythonExt,
		LinkableAlias: linkableAlias,
		Root:          root,
	}

	var rules []buck.Rule
	if attrs.fetch != nil {
		rules = append(rules, attrs.fetch)
	}
	if public && !root {
		rules = append(rules, &buck.Alias{
			Name:       c.index.PublicRuleName(pkg),
			Actual:     buck.LocalRef(name),
			Public:     true,
			Visibility: fx.CustomVisibility(),
		})
	}
	rules = append(rules, lib)

	return rules, attrs.deps, nil
}

// buildscriptRules emits the binary for a package's build script and the
// invocation declarations its fixups call for.  A script with no fixups
// emits nothing at all.
func (c *ruleContext) buildscriptRules(pkg *cargo.Manifest, tgt *cargo.ManifestTarget) ([]buck.Rule, []*cargo.Manifest, error) {
	fx, err := fixups.New(c.config, c.paths.ThirdPartyDir, c.paths.FixupsDir, c.index, pkg, tgt)
	if err != nil {
		return nil, nil, err
	}
	if fx.OmitTarget() {
		return nil, nil, nil
	}

	attrs, err := c.computeTargetAttrs(fx, pkg, tgt)
	if err != nil {
		return nil, nil, err
	}

	binBase := attrs.base.Clone()
	binPerPlat := buck.ClonePlatforms(attrs.perPlat)

	// The fixed-up flags describe the crate the script builds for;
	// carrying them onto the script would make it depend on its own
	// output.
	binBase.RustcFlags = append([]string(nil), c.config.RustcFlags...)

	bin := &buck.BuildscriptBinary{
		RustBinary: buck.RustBinary{
			RustCommon: buck.RustCommon{
				Common: buck.Common{
					Name: pkg.String() + "-" + tgt.Name,
				},
				Crate:    tgt.CrateName(),
				RootMod:  attrs.rootMod,
				Edition:  attrs.edition,
				Base:     binBase,
				Platform: binPerPlat,
			},
		},
	}

	rules, err := fx.EmitBuildscriptRules(bin)
	if err != nil {
		return nil, nil, err
	}
	if len(rules) == 0 {
		return nil, nil, nil
	}
	if attrs.fetch != nil {
		rules = append([]buck.Rule{attrs.fetch}, rules...)
	}

	return rules, attrs.deps, nil
}

// binaryRules emits a runnable binary for a public package's bin target:
// a private binary declaration and a public alias named after the
// package and target.
func (c *ruleContext) binaryRules(pkg *cargo.Manifest, tgt *cargo.ManifestTarget) ([]buck.Rule, []*cargo.Manifest, error) {
	fx, err := fixups.New(c.config, c.paths.ThirdPartyDir, c.paths.FixupsDir, c.index, pkg, tgt)
	if err != nil {
		return nil, nil, err
	}
	if fx.OmitTarget() {
		return nil, nil, nil
	}

	attrs, err := c.computeTargetAttrs(fx, pkg, tgt)
	if err != nil {
		return nil, nil, err
	}

	binBase := attrs.base.Clone()
	binPerPlat := buck.ClonePlatforms(attrs.perPlat)
	err = unzipPlatform(c.config, binBase, binPerPlat,
		func(p *buck.PlatformRustCommon, style string) {
			p.LinkStyle = style
		}, fx.ComputeLinkStyle())
	if err != nil {
		return nil, nil, errors.Wrapf(err, "pkg %s target %s: link_style", pkg, tgt.Name)
	}

	// The binary links against its own package's library, if the package
	// has a plain lib target.
	if dt := pkg.DependencyTarget(); dt != nil && dt.KindLib() {
		binBase.Deps[buck.LocalRef(c.index.PrivateRuleName(pkg))] = true
	}

	private := c.index.PrivateRuleName(pkg) + "-" + tgt.Name
	public := c.index.PublicRuleName(pkg) + "-" + tgt.Name

	bin := &buck.RustBinary{
		RustCommon: buck.RustCommon{
			Common: buck.Common{
				Name:     private,
				Licenses: attrs.licenses,
			},
			Crate:    tgt.CrateName(),
			RootMod:  attrs.rootMod,
			Edition:  attrs.edition,
			Base:     binBase,
			Platform: binPerPlat,
		},
	}

	rules := []buck.Rule{}
	if attrs.fetch != nil {
		rules = append(rules, attrs.fetch)
	}
	rules = append(rules,
		&buck.Alias{
			Name:       public,
			Actual:     buck.LocalRef(private),
			Public:     true,
			Visibility: fx.CustomVisibility(),
		},
		bin,
	)

	return rules, attrs.deps, nil
}
