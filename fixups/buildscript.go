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
	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"buckgen/buck"
)

func (f *Fixups) genSrcsRuleName() string {
	return f.index.PrivateRuleName(f.pkg) + "-build-script-run"
}

func (f *Fixups) argsRuleName() string {
	return f.index.PrivateRuleName(f.pkg) + "-args"
}

// EmitBuildscriptRules turns a build-script target into declarations.
// The synthesized binary is the script itself; every configured fixup
// entry describes one effect the script's run has on the build.  The
// shape of the result (how many invocations, what they produce) is
// policy owned here, not by the generation engine.
func (f *Fixups) EmitBuildscriptRules(bin *buck.BuildscriptBinary) ([]buck.Rule, error) {
	var fixes []*BuildscriptFixup
	for _, section := range f.sections {
		fixes = append(fixes, section.config.Buildscript...)
	}

	if len(fixes) == 0 {
		if f.config.UnresolvedFixupError {
			return nil, errors.Errorf("pkg %s target %s: build script has no fixup describing its effect",
				f.pkg, f.tgt.Name)
		}
		klog.Warningf("pkg %s target %s: ignoring build script with no fixups", f.pkg, f.tgt.Name)
		return nil, nil
	}

	base := buck.BuildscriptGenrule{
		BuildscriptRule: buck.LocalRef(bin.Common.Name),
		PackageName:     f.pkg.Name,
		Version:         f.pkg.Version,
		Features:        bin.Base.Features,
	}
	for _, section := range f.sections {
		base.Cfgs = append(base.Cfgs, section.config.Cfgs...)
	}

	genSrcs := &buck.BuildscriptGenruleSrcs{
		BuildscriptGenrule: base,
		Files:              make(map[string]bool),
		Srcs:               make(map[string]bool),
	}
	genSrcs.BuildscriptGenrule.Name = f.genSrcsRuleName()
	genSrcs.Env = make(map[string]string)
	genSrcs.PathEnv = make(map[string]string)

	var filter *buck.BuildscriptGenruleFilter

	for _, fix := range fixes {
		switch {
		case fix.Unresolved != "":
			return nil, errors.Errorf("pkg %s target %s: unresolved build script: %s",
				f.pkg, f.tgt.Name, fix.Unresolved)

		case fix.GenSrcs != nil:
			for _, file := range fix.GenSrcs.Files {
				genSrcs.Files[file] = true
			}
			for _, src := range fix.GenSrcs.Srcs {
				genSrcs.Srcs[src] = true
			}
			for k, v := range fix.GenSrcs.Env {
				genSrcs.Env[k] = v
			}
			for k, v := range fix.GenSrcs.PathEnv {
				genSrcs.PathEnv[k] = v
			}

		case fix.RustcFlags != nil:
			filter = &buck.BuildscriptGenruleFilter{
				BuildscriptGenrule: base,
				Outfile:            "args.txt",
			}
			filter.BuildscriptGenrule.Name = f.argsRuleName()
			filter.Env = fix.RustcFlags.Env

		default:
			return nil, errors.Errorf("pkg %s target %s: empty buildscript fixup entry",
				f.pkg, f.tgt.Name)
		}
	}

	rules := []buck.Rule{bin}
	if len(genSrcs.Files) > 0 {
		rules = append(rules, genSrcs)
	}
	if filter != nil {
		rules = append(rules, filter)
	}

	return rules, nil
}
