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

// Package buck models the closed set of build declarations the generator
// emits.  Rules are constructed once during generation, never mutated
// afterwards, and identified solely by name.
package buck

import (
	"buckgen/cargo"
	"buckgen/platform"
)

// RuleRef is a reference to another declaration, either local (":name")
// or an absolute label, optionally guarded by a platform expression.  The
// guard participates in ordering and storage but not in what the
// reference denotes.
type RuleRef struct {
	Target   string
	Platform platform.Expr
}

// LocalRef references a declaration in the same build file.
func LocalRef(name string) RuleRef {
	return RuleRef{Target: ":" + name}
}

// AbsRef references a declaration by absolute label.
func AbsRef(label string) RuleRef {
	return RuleRef{Target: label}
}

// WithPlatform returns the reference guarded by expr.
func (r RuleRef) WithPlatform(expr platform.Expr) RuleRef {
	return RuleRef{Target: r.Target, Platform: expr}
}

func (r RuleRef) HasPlatform() bool {
	return r.Platform != ""
}

// Filter reports whether the reference applies under the given platform.
// An unguarded reference always applies.
func (r RuleRef) Filter(config *platform.Config) (bool, error) {
	if r.Platform == "" {
		return true, nil
	}
	return platform.Eval(r.Platform, config)
}

// Common carries the fields shared by every concrete declaration.
type Common struct {
	Name           string
	Public         bool
	Licenses       map[string]bool
	CompatibleWith []RuleRef
}

// PlatformRustCommon holds the rule attributes that can be split by
// platform.  An empty collection and an absent attribute are the same
// thing; nothing downstream may distinguish them.
type PlatformRustCommon struct {
	Srcs             map[string]bool
	MappedSrcs       map[string]string
	RustcFlags       []string
	Features         map[string]bool
	Deps             map[RuleRef]bool
	NamedDeps        map[string]RuleRef
	Env              map[string]string
	LinkStyle        string
	PreferredLinkage string
}

func NewPlatformRustCommon() *PlatformRustCommon {
	return &PlatformRustCommon{
		Srcs:       make(map[string]bool),
		MappedSrcs: make(map[string]string),
		Features:   make(map[string]bool),
		Deps:       make(map[RuleRef]bool),
		NamedDeps:  make(map[string]RuleRef),
		Env:        make(map[string]string),
	}
}

// Clone deep-copies the record so separately evolving copies (library vs
// binary attribute state) cannot contaminate each other.
func (c *PlatformRustCommon) Clone() *PlatformRustCommon {
	clone := NewPlatformRustCommon()
	for k := range c.Srcs {
		clone.Srcs[k] = true
	}
	for k, v := range c.MappedSrcs {
		clone.MappedSrcs[k] = v
	}
	clone.RustcFlags = append([]string(nil), c.RustcFlags...)
	for k := range c.Features {
		clone.Features[k] = true
	}
	for k := range c.Deps {
		clone.Deps[k] = true
	}
	for k, v := range c.NamedDeps {
		clone.NamedDeps[k] = v
	}
	for k, v := range c.Env {
		clone.Env[k] = v
	}
	clone.LinkStyle = c.LinkStyle
	clone.PreferredLinkage = c.PreferredLinkage
	return clone
}

func (c *PlatformRustCommon) empty() bool {
	return len(c.Srcs) == 0 && len(c.MappedSrcs) == 0 && len(c.RustcFlags) == 0 &&
		len(c.Features) == 0 && len(c.Deps) == 0 && len(c.NamedDeps) == 0 &&
		len(c.Env) == 0 && c.LinkStyle == "" && c.PreferredLinkage == ""
}

// ClonePlatforms deep-copies a per-platform attribute map.
func ClonePlatforms(platforms map[platform.Name]*PlatformRustCommon) map[platform.Name]*PlatformRustCommon {
	clone := make(map[platform.Name]*PlatformRustCommon, len(platforms))
	for name, attrs := range platforms {
		clone[name] = attrs.Clone()
	}
	return clone
}

// RustCommon is the shared shape of library and binary declarations.
type RustCommon struct {
	Common
	Crate    string
	RootMod  string
	Edition  cargo.Edition
	Base     *PlatformRustCommon
	Platform map[platform.Name]*PlatformRustCommon
}

// Alias forwards to another declaration under a stable public name.
// Visibility, when set, narrows the alias to the listed labels instead of
// fully public.
type Alias struct {
	Name       string
	Actual     RuleRef
	Public     bool
	Visibility []string
}

// HttpArchive fetches a package's sources from a registry archive.
type HttpArchive struct {
	Name        string
	URLs        []string
	SHA256      string
	StripPrefix string
}

// GitFetch fetches a package's sources from a git repository.
type GitFetch struct {
	Name string
	Repo string
	Rev  string
}

// RustLibrary is a library-like declaration.  Root marks the aggregate
// root package's library, which is named publicly and sorts last.
type RustLibrary struct {
	RustCommon
	ProcMacro     bool
	DlopenEnable  bool
	PythonExt     string
	LinkableAlias string
	Root          bool
}

// RustBinary is a runnable binary declaration.
type RustBinary struct {
	RustCommon
}

// BuildscriptBinary is the binary compiled from a package's build script.
type BuildscriptBinary struct {
	RustBinary
}

// BuildscriptGenrule is one invocation of a build script, capturing the
// environment the script observes.
type BuildscriptGenrule struct {
	Name            string
	BuildscriptRule RuleRef
	PackageName     string
	Version         cargo.Version
	Features        map[string]bool
	Cfgs            []string
	Env             map[string]string
	PathEnv         map[string]string
}

// BuildscriptGenruleFilter extracts compiler arguments from a build
// script invocation.
type BuildscriptGenruleFilter struct {
	BuildscriptGenrule
	Outfile string
}

// BuildscriptGenruleSrcs extracts generated source files from a build
// script invocation.
type BuildscriptGenruleSrcs struct {
	BuildscriptGenrule
	Files map[string]bool
	Srcs  map[string]bool
}

// CxxLibrary is a native library built from vendored C/C++ sources.
type CxxLibrary struct {
	Common
	Srcs               map[string]bool
	Headers            map[string]bool
	ExportedHeaders    map[string]bool
	CompilerFlags      []string
	PreprocessorFlags  []string
	HeaderNamespace    string
	IncludeDirectories []string
	Deps               map[RuleRef]bool
	PreferredLinkage   string
}

// PrebuiltCxxLibrary is a native library distributed as a static archive.
type PrebuiltCxxLibrary struct {
	Common
	StaticLib string
}

// Rule is the closed set of declarations.  Operations over rules use
// exhaustive type switches so adding a variant breaks loudly.
type Rule interface {
	isRule()
}

func (*Alias) isRule()                    {}
func (*HttpArchive) isRule()              {}
func (*GitFetch) isRule()                 {}
func (*RustLibrary) isRule()              {}
func (*RustBinary) isRule()               {}
func (*BuildscriptBinary) isRule()        {}
func (*BuildscriptGenruleFilter) isRule() {}
func (*BuildscriptGenruleSrcs) isRule()   {}
func (*CxxLibrary) isRule()               {}
func (*PrebuiltCxxLibrary) isRule()       {}

// Name returns the declaration's identity.
func Name(r Rule) string {
	switch r := r.(type) {
	case *Alias:
		return r.Name
	case *HttpArchive:
		return r.Name
	case *GitFetch:
		return r.Name
	case *RustLibrary:
		return r.Common.Name
	case *RustBinary:
		return r.Common.Name
	case *BuildscriptBinary:
		return r.Common.Name
	case *BuildscriptGenruleFilter:
		return r.BuildscriptGenrule.Name
	case *BuildscriptGenruleSrcs:
		return r.BuildscriptGenrule.Name
	case *CxxLibrary:
		return r.Common.Name
	case *PrebuiltCxxLibrary:
		return r.Common.Name
	default:
		panic("unreachable rule variant")
	}
}

// IsPublic reports whether the declaration is exposed to first-party
// code.
func IsPublic(r Rule) bool {
	switch r := r.(type) {
	case *Alias:
		return r.Public
	case *HttpArchive, *GitFetch:
		return false
	case *RustLibrary:
		return r.Common.Public
	case *RustBinary:
		return r.Common.Public
	case *BuildscriptBinary:
		return false
	case *BuildscriptGenruleFilter, *BuildscriptGenruleSrcs:
		return false
	case *CxxLibrary:
		return r.Common.Public
	case *PrebuiltCxxLibrary:
		return r.Common.Public
	default:
		panic("unreachable rule variant")
	}
}
