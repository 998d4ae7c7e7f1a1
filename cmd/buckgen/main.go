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

// buckgen generates build files for vendored cargo dependencies.
package main

import (
	goflag "flag"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"k8s.io/klog/v2"

	"buckgen/buckify"
	"buckgen/cargo"
	"buckgen/config"
)

var (
	thirdPartyDir string
	toStdout      bool
)

func main() {
	klogFlags := goflag.NewFlagSet("klog", goflag.ExitOnError)
	klog.InitFlags(klogFlags)

	root := &cobra.Command{
		Use:           "buckgen",
		Short:         "generate build files for vendored cargo dependencies",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	// klog registers flags with underscores; normalize so both spellings
	// work.
	root.PersistentFlags().SetNormalizeFunc(func(f *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})
	root.PersistentFlags().AddGoFlagSet(klogFlags)
	root.PersistentFlags().StringVar(&thirdPartyDir, "third-party-dir", ".",
		"directory containing Cargo.toml, fixups and vendored sources")

	buckifyCmd := &cobra.Command{
		Use:   "buckify",
		Short: "generate a build file from the resolved dependency graph",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBuckify()
		},
	}
	buckifyCmd.Flags().BoolVar(&toStdout, "stdout", false,
		"print the generated file instead of writing it")
	root.AddCommand(buckifyCmd)

	if err := root.Execute(); err != nil {
		klog.Errorf("%v", err)
		klog.Flush()
		os.Exit(1)
	}
	klog.Flush()
}

func runBuckify() error {
	paths := buckify.NewPaths(thirdPartyDir)

	cfg, err := config.Read(paths.ThirdPartyDir)
	if err != nil {
		return err
	}

	cargoPath := cfg.Cargo.Cargo
	if cargoPath != "" && !filepath.IsAbs(cargoPath) {
		cargoPath = filepath.Join(cfg.ConfigPath, cargoPath)
	}

	meta, err := cargo.GetMetadata(cargoPath, paths.ManifestPath)
	if err != nil {
		return err
	}

	return buckify.Buckify(cfg, paths, meta, toStdout)
}
