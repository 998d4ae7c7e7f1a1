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

// Package config reads the per-repository buckgen.toml configuration.
package config

import (
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"buckgen/platform"
)

// Config is the top-level third-party configuration.
type Config struct {
	// Path the config was read from.
	ConfigPath string `toml:"-"`

	// Default flags applied to all rules.
	RustcFlags []string `toml:"rustc_flags"`

	// Platform-specific rustc flags, keyed by platform name.
	PlatformRustcFlags map[platform.Name][]string `toml:"platform_rustc_flags"`

	// Try to compute a precise list of sources rather than using globbing.
	PreciseSrcs bool `toml:"precise_srcs"`

	// Glob patterns for filenames likely to contain license terms.
	LicensePatterns []string `toml:"license_patterns"`

	// Generate fixup file templates when missing.
	FixupTemplates bool `toml:"fixup_templates"`

	// Fail generation if there are unresolved fixups.
	UnresolvedFixupError bool `toml:"unresolved_fixup_error"`

	// Additional information reported alongside unresolved fixup errors.
	UnresolvedFixupErrorMessage string `toml:"unresolved_fixup_error_message"`

	// Include root package as a top-level public target.
	IncludeTopLevel bool `toml:"include_top_level"`

	// Extra packages to treat as public roots, as "name" or "name-version".
	ExtraTopLevels []string `toml:"extra_top_levels"`

	// Emit a metadata file alongside each vendored package.
	EmitMetadata bool `toml:"emit_metadata"`

	// Whether sources are vendored.  When false, fetch rules are emitted
	// and rule sources reference them.
	Vendor bool `toml:"vendor"`

	// Path to a buildifier-style formatter, relative to the third-party
	// dir.  Empty disables formatting.
	BuildifierPath string `toml:"buildifier_path"`

	Cargo CargoConfig `toml:"cargo"`

	Buck BuckConfig `toml:"buck"`

	Platform map[platform.Name]*platform.Config `toml:"platform"`
}

// CargoConfig controls how cargo is invoked.
type CargoConfig struct {
	// Path to the cargo executable, relative to the config file.
	Cargo string `toml:"cargo"`
	// Always version vendored directories.
	VersionedDirs bool `toml:"versioned_dirs"`
}

// BuckConfig names the output file and the rules emitted into it.
type BuckConfig struct {
	// Name of the generated build file.
	FileName string `toml:"file_name"`
	// Banner comment for the top of the generated file.
	GeneratedFileHeader string `toml:"generated_file_header"`
	// Front matter (load statements) for the generated file.
	BuckfileImports string `toml:"buckfile_imports"`
	// Name of the generated public-targets file.  Empty disables it.
	TargetsName string `toml:"targets_name"`

	Alias              string `toml:"alias"`
	HTTPArchive        string `toml:"http_archive"`
	GitFetch           string `toml:"git_fetch"`
	RustLibrary        string `toml:"rust_library"`
	RustBinary         string `toml:"rust_binary"`
	CxxLibrary         string `toml:"cxx_library"`
	PrebuiltCxxLibrary string `toml:"prebuilt_cxx_library"`
	BuildscriptBinary  string `toml:"buildscript_binary"`
	BuildscriptGenrule string `toml:"buildscript_genrule"`
}

// DefaultBuckConfig returns the rule-name table used when buckgen.toml
// does not override it.
func DefaultBuckConfig() BuckConfig {
	return BuckConfig{
		FileName:           "BUCK",
		Alias:              "alias",
		HTTPArchive:        "http_archive",
		GitFetch:           "git_fetch",
		RustLibrary:        "rust_library",
		RustBinary:         "rust_binary",
		CxxLibrary:         "cxx_library",
		PrebuiltCxxLibrary: "prebuilt_cxx_library",
		BuildscriptGenrule: "buildscript_run",
	}
}

// Default returns the configuration used when no config file is present.
func Default() *Config {
	return &Config{
		Vendor: true,
		Buck:   DefaultBuckConfig(),
	}
}

const configFileName = "buckgen.toml"

// Read loads the configuration from dir/buckgen.toml.  A missing file
// yields the default configuration.
func Read(dir string) (*Config, error) {
	path := filepath.Join(dir, configFileName)

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		config := Default()
		config.ConfigPath = dir
		return config, nil
	} else if err != nil {
		return nil, errors.Wrapf(err, "failed to read config %s", path)
	}

	config := Default()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, errors.Wrapf(err, "failed to parse %s", path)
	}
	config.ConfigPath = dir

	if config.Buck.FileName == "" {
		config.Buck.FileName = DefaultBuckConfig().FileName
	}

	klog.V(2).Infof("read config %+v", config)

	return config, nil
}
