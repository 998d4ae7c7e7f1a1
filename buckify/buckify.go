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

// Package buckify walks a resolved cargo dependency graph and generates
// the corresponding build file.
package buckify

import (
	"bytes"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"buckgen/buck"
	"buckgen/cargo"
	"buckgen/config"
	"buckgen/index"
	"buckgen/pathtools"
)

// Buckify generates the build file for one third-party directory from
// resolved cargo metadata.  When stdout is set the result is printed
// instead of written, and the side outputs (targets file, per-package
// metadata) are skipped.
func Buckify(cfg *config.Config, paths *Paths, meta *cargo.Metadata, stdout bool) error {
	idx := index.New(cfg.IncludeTopLevel, cfg.ExtraTopLevels, meta)

	var lock *cargo.Lockfile
	if !cfg.Vendor {
		var err error
		lock, err = cargo.ReadLockfile(paths.LockfilePath)
		if err != nil {
			return err
		}
	}

	ctx := newRuleContext(cfg, paths, idx, lock)

	// Seed the walk with the public roots, then close the output channel
	// once every spawned package has reported.  Packages report exactly
	// once each, so the collector below sees everything.
	ctx.generateDepRules(idx.PublicPackages())
	go func() {
		ctx.wg.Wait()
		close(ctx.out)
	}()

	set := buck.NewRuleSet()
	var genErrs []error
	for gen := range ctx.out {
		if gen.err != nil {
			genErrs = append(genErrs, gen.err)
			continue
		}
		for _, r := range gen.rules {
			set.Add(r)
		}
	}

	if len(genErrs) > 0 {
		for _, err := range genErrs {
			klog.Errorf("%v", err)
		}
		if cfg.UnresolvedFixupErrorMessage != "" {
			klog.Warningf("%s", cfg.UnresolvedFixupErrorMessage)
		}
		return errors.Wrapf(genErrs[0], "%d targets failed to generate", len(genErrs))
	}

	var buf bytes.Buffer
	if err := buck.WriteBuckfile(&cfg.Buck, set.Rules(), &buf); err != nil {
		return err
	}

	out := buf.Bytes()
	if cfg.BuildifierPath != "" {
		formatted, err := buildify(cfg.BuildifierPath, paths, out)
		if err != nil {
			return err
		}
		out = formatted
	}

	if stdout {
		_, err := os.Stdout.Write(out)
		return err
	}

	buckPath := filepath.Join(paths.ThirdPartyDir, cfg.Buck.FileName)
	changed, err := pathtools.WriteFileIfChanged(buckPath, out)
	if err != nil {
		return err
	}
	if changed {
		klog.Infof("wrote %s (%d rules)", buckPath, set.Len())
	} else {
		klog.V(1).Infof("%s unchanged", buckPath)
	}

	if cfg.Buck.TargetsName != "" {
		var tbuf bytes.Buffer
		buck.WriteTargetsFile(&cfg.Buck, set.PublicNames(), &tbuf)

		targetsPath := filepath.Join(paths.ThirdPartyDir, cfg.Buck.TargetsName)
		if _, err := pathtools.WriteFileIfChanged(targetsPath, tbuf.Bytes()); err != nil {
			return err
		}
	}

	if cfg.EmitMetadata {
		if err := emitMetadata(cfg, idx); err != nil {
			return err
		}
	}

	return nil
}
