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

package buck

import (
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/pkg/errors"

	"buckgen/config"
	"buckgen/platform"
	"buckgen/starlark"
)

// buckPath converts a filesystem path to its build file spelling.  Even
// on Windows the generated file uses forward slashes.
func buckPath(path string) (string, error) {
	if !utf8.ValidString(path) {
		return "", errors.Errorf("path %q contains invalid UTF-8", path)
	}
	return strings.ReplaceAll(path, "\\", "/"), nil
}

func pathList(set map[string]bool) (starlark.List, error) {
	paths := make([]string, 0, len(set))
	for p := range set {
		bp, err := buckPath(p)
		if err != nil {
			return nil, err
		}
		paths = append(paths, bp)
	}
	starlark.SortLabels(paths)
	return starlark.Strings(paths), nil
}

func stringList(set map[string]bool) starlark.List {
	elems := make([]string, 0, len(set))
	for s := range set {
		elems = append(elems, s)
	}
	sort.Strings(elems)
	return starlark.Strings(elems)
}

func depList(deps map[RuleRef]bool) starlark.List {
	targets := make([]string, 0, len(deps))
	seen := make(map[string]bool)
	for ref := range deps {
		if !seen[ref.Target] {
			seen[ref.Target] = true
			targets = append(targets, ref.Target)
		}
	}
	starlark.SortLabels(targets)
	return starlark.Strings(targets)
}

func stringMap(m map[string]string) starlark.Map {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	entries := make(starlark.Map, 0, len(m))
	for _, k := range keys {
		entries = append(entries, starlark.MapEntry{Key: starlark.Str(k), Value: starlark.Str(m[k])})
	}
	return entries
}

func mappedSrcsMap(m map[string]string) (starlark.Map, error) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	starlark.SortLabels(keys)

	entries := make(starlark.Map, 0, len(m))
	for _, k := range keys {
		v, err := buckPath(m[k])
		if err != nil {
			return nil, err
		}
		entries = append(entries, starlark.MapEntry{Key: starlark.Str(k), Value: starlark.Str(v)})
	}
	return entries, nil
}

func namedDepsMap(deps map[string]RuleRef) starlark.Map {
	keys := make([]string, 0, len(deps))
	for k := range deps {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	entries := make(starlark.Map, 0, len(deps))
	for _, k := range keys {
		entries = append(entries, starlark.MapEntry{Key: starlark.Str(k), Value: starlark.Str(deps[k].Target)})
	}
	return entries
}

// appendCommon renders the name/visibility/licenses fields every concrete
// declaration starts with.  Empty collections are omitted, never rendered
// as empty containers.
func appendCommon(call *starlark.Call, c *Common) error {
	call.Arg("name", starlark.Str(c.Name))
	if c.Public {
		call.Arg("visibility", starlark.List{starlark.Str("PUBLIC")})
	}
	if len(c.Licenses) > 0 {
		licenses, err := pathList(c.Licenses)
		if err != nil {
			return err
		}
		call.Arg("licenses", licenses)
	}
	if len(c.CompatibleWith) > 0 {
		targets := make([]string, len(c.CompatibleWith))
		for i, ref := range c.CompatibleWith {
			targets[i] = ref.Target
		}
		starlark.SortLabels(targets)
		call.Arg("compatible_with", starlark.Strings(targets))
	}
	return nil
}

// appendPlatformCommon renders the platform-splittable attributes in
// their fixed order.
func appendPlatformCommon(call *starlark.Call, c *PlatformRustCommon) error {
	if len(c.Srcs) > 0 {
		srcs, err := pathList(c.Srcs)
		if err != nil {
			return err
		}
		call.Arg("srcs", srcs)
	}
	if len(c.MappedSrcs) > 0 {
		mapped, err := mappedSrcsMap(c.MappedSrcs)
		if err != nil {
			return err
		}
		call.Arg("mapped_srcs", mapped)
	}
	if len(c.RustcFlags) > 0 {
		call.Arg("rustc_flags", starlark.Strings(c.RustcFlags))
	}
	if len(c.Features) > 0 {
		call.Arg("features", stringList(c.Features))
	}
	if len(c.Deps) > 0 {
		call.Arg("deps", depList(c.Deps))
	}
	if len(c.NamedDeps) > 0 {
		call.Arg("named_deps", namedDepsMap(c.NamedDeps))
	}
	if len(c.Env) > 0 {
		call.Arg("env", stringMap(c.Env))
	}
	if c.LinkStyle != "" {
		call.Arg("link_style", starlark.Str(c.LinkStyle))
	}
	if c.PreferredLinkage != "" {
		call.Arg("preferred_linkage", starlark.Str(c.PreferredLinkage))
	}
	return nil
}

// appendPlatforms renders the per-platform attribute groups as nested
// calls keyed by platform name, so the downstream formatter can still
// normalize the lists inside them.
func appendPlatforms(call *starlark.Call, platforms map[platform.Name]*PlatformRustCommon) error {
	names := make([]platform.Name, 0, len(platforms))
	for name, attrs := range platforms {
		if !attrs.empty() {
			names = append(names, name)
		}
	}
	if len(names) == 0 {
		return nil
	}
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })

	entries := make(starlark.Map, 0, len(names))
	for _, name := range names {
		dict := starlark.NewCall("dict")
		if err := appendPlatformCommon(dict, platforms[name]); err != nil {
			return err
		}
		entries = append(entries, starlark.MapEntry{Key: starlark.Str(string(name)), Value: dict})
	}
	call.Arg("platform", entries)
	return nil
}

func appendRustCommon(call *starlark.Call, rc *RustCommon) error {
	if err := appendCommon(call, &rc.Common); err != nil {
		return err
	}
	call.Arg("crate", starlark.Str(rc.Crate))
	root, err := buckPath(rc.RootMod)
	if err != nil {
		return err
	}
	call.Arg("crate_root", starlark.Str(root))
	call.Arg("edition", starlark.Str(string(rc.Edition)))
	if err := appendPlatformCommon(call, rc.Base); err != nil {
		return err
	}
	return appendPlatforms(call, rc.Platform)
}

func appendBuildscriptGenrule(call *starlark.Call, g *BuildscriptGenrule) {
	call.Arg("name", starlark.Str(g.Name))
	call.Arg("buildscript_rule", starlark.Str(g.BuildscriptRule.Target))
	call.Arg("package_name", starlark.Str(g.PackageName))
	call.Arg("version", starlark.Str(g.Version.String()))
	if len(g.Features) > 0 {
		call.Arg("features", stringList(g.Features))
	}
	if len(g.Cfgs) > 0 {
		call.Arg("cfgs", starlark.Strings(g.Cfgs))
	}
	if len(g.Env) > 0 {
		call.Arg("env", stringMap(g.Env))
	}
	if len(g.PathEnv) > 0 {
		call.Arg("path_env", stringMap(g.PathEnv))
	}
}

// Render serializes one declaration using the configured rule names.
func Render(r Rule, bc *config.BuckConfig) (string, error) {
	var call *starlark.Call

	switch r := r.(type) {
	case *Alias:
		call = starlark.NewCall(bc.Alias)
		call.Arg("name", starlark.Str(r.Name))
		call.Arg("actual", starlark.Str(r.Actual.Target))
		switch {
		case len(r.Visibility) > 0:
			call.Arg("visibility", starlark.SortedStrings(r.Visibility))
		case r.Public:
			call.Arg("visibility", starlark.List{starlark.Str("PUBLIC")})
		}

	case *HttpArchive:
		call = starlark.NewCall(bc.HTTPArchive)
		call.Arg("name", starlark.Str(r.Name))
		call.Arg("urls", starlark.Strings(r.URLs))
		call.Arg("sha256", starlark.Str(r.SHA256))
		if r.StripPrefix != "" {
			call.Arg("strip_prefix", starlark.Str(r.StripPrefix))
		}

	case *GitFetch:
		call = starlark.NewCall(bc.GitFetch)
		call.Arg("name", starlark.Str(r.Name))
		call.Arg("repo", starlark.Str(r.Repo))
		if r.Rev != "" {
			call.Arg("rev", starlark.Str(r.Rev))
		}

	case *RustLibrary:
		call = starlark.NewCall(bc.RustLibrary)
		if err := appendRustCommon(call, &r.RustCommon); err != nil {
			return "", err
		}
		if r.ProcMacro {
			call.Arg("proc_macro", starlark.Bool(true))
		}
		if r.DlopenEnable {
			call.Arg("dlopen_enable", starlark.Bool(true))
		}
		if r.PythonExt != "" {
			call.Arg("python_ext", starlark.Str(r.PythonExt))
		}
		if r.LinkableAlias != "" {
			call.Arg("linkable_alias", starlark.Str(r.LinkableAlias))
		}

	case *RustBinary:
		call = starlark.NewCall(bc.RustBinary)
		if err := appendRustCommon(call, &r.RustCommon); err != nil {
			return "", err
		}

	case *BuildscriptBinary:
		name := bc.BuildscriptBinary
		if name == "" {
			name = bc.RustBinary
		}
		call = starlark.NewCall(name)
		if err := appendRustCommon(call, &r.RustCommon); err != nil {
			return "", err
		}

	case *BuildscriptGenruleFilter:
		call = starlark.NewCall(bc.BuildscriptGenrule)
		appendBuildscriptGenrule(call, &r.BuildscriptGenrule)
		call.Arg("outfile", starlark.Str(r.Outfile))

	case *BuildscriptGenruleSrcs:
		call = starlark.NewCall(bc.BuildscriptGenrule)
		appendBuildscriptGenrule(call, &r.BuildscriptGenrule)
		call.Arg("files", stringList(r.Files))
		if len(r.Srcs) > 0 {
			srcs, err := pathList(r.Srcs)
			if err != nil {
				return "", err
			}
			call.Arg("srcs", srcs)
		}

	case *CxxLibrary:
		call = starlark.NewCall(bc.CxxLibrary)
		if err := appendCommon(call, &r.Common); err != nil {
			return "", err
		}
		srcs, err := pathList(r.Srcs)
		if err != nil {
			return "", err
		}
		call.Arg("srcs", srcs)
		if len(r.Headers) > 0 {
			headers, err := pathList(r.Headers)
			if err != nil {
				return "", err
			}
			call.Arg("headers", headers)
		}
		if len(r.ExportedHeaders) > 0 {
			exported, err := pathList(r.ExportedHeaders)
			if err != nil {
				return "", err
			}
			call.Arg("exported_headers", exported)
		}
		if len(r.CompilerFlags) > 0 {
			call.Arg("compiler_flags", starlark.Strings(r.CompilerFlags))
		}
		if len(r.PreprocessorFlags) > 0 {
			call.Arg("preprocessor_flags", starlark.Strings(r.PreprocessorFlags))
		}
		if r.HeaderNamespace != "" {
			call.Arg("header_namespace", starlark.Str(r.HeaderNamespace))
		}
		if len(r.IncludeDirectories) > 0 {
			call.Arg("include_directories", starlark.Strings(r.IncludeDirectories))
		}
		if len(r.Deps) > 0 {
			call.Arg("deps", depList(r.Deps))
		}
		if r.PreferredLinkage != "" {
			call.Arg("preferred_linkage", starlark.Str(r.PreferredLinkage))
		}

	case *PrebuiltCxxLibrary:
		call = starlark.NewCall(bc.PrebuiltCxxLibrary)
		if err := appendCommon(call, &r.Common); err != nil {
			return "", err
		}
		lib, err := buckPath(r.StaticLib)
		if err != nil {
			return "", err
		}
		call.Arg("static_lib", starlark.Str(lib))

	default:
		panic("unreachable rule variant")
	}

	return starlark.Render(call), nil
}
