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
	"bytes"
	"path/filepath"

	"golang.org/x/sync/errgroup"
	"k8s.io/klog/v2"

	"buckgen/cargo"
	"buckgen/config"
	"buckgen/index"
	"buckgen/pathtools"
	"buckgen/starlark"
)

const metadataFileName = "METADATA.bzl"

// emitMetadata writes a METADATA.bzl alongside each vendored package
// describing where it came from.  Files whose content is already right
// are left untouched.
func emitMetadata(cfg *config.Config, idx *index.Index) error {
	g := new(errgroup.Group)
	g.SetLimit(8)

	for _, pkg := range idx.AllPackages() {
		pkg := pkg
		g.Go(func() error {
			path := filepath.Join(pkg.ManifestDir(), metadataFileName)

			var buf bytes.Buffer
			if cfg.Buck.GeneratedFileHeader != "" {
				buf.WriteString(cfg.Buck.GeneratedFileHeader)
				buf.WriteString("\n")
			}
			buf.WriteString("METADATA = ")
			buf.WriteString(starlark.RenderValue(metadataValue(pkg)))
			buf.WriteString("\n")

			changed, err := pathtools.WriteFileIfChanged(path, buf.Bytes())
			if err != nil {
				return err
			}
			if changed {
				klog.V(1).Infof("pkg %s: wrote %s", pkg, path)
			}
			return nil
		})
	}

	return g.Wait()
}

func metadataValue(pkg *cargo.Manifest) starlark.Value {
	m := starlark.Map{
		{Key: starlark.Str("name"), Value: starlark.Str(pkg.Name)},
		{Key: starlark.Str("version"), Value: starlark.Str(pkg.Version.String())},
	}
	if pkg.License != "" {
		m = append(m, starlark.MapEntry{Key: starlark.Str("license"), Value: starlark.Str(pkg.License)})
	}
	if pkg.Repository != "" {
		m = append(m, starlark.MapEntry{Key: starlark.Str("repository"), Value: starlark.Str(pkg.Repository)})
	}
	if pkg.Source != "" {
		m = append(m, starlark.MapEntry{Key: starlark.Str("source"), Value: starlark.Str(pkg.Source)})
	}
	return m
}
