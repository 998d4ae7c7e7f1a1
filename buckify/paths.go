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

import "path/filepath"

// Paths locates the inputs and outputs of one generation run, all
// derived from the third-party directory.
type Paths struct {
	ThirdPartyDir string
	ManifestPath  string
	LockfilePath  string
	FixupsDir     string
	VendorDir     string
}

// NewPaths derives the standard layout under a third-party directory.
func NewPaths(thirdPartyDir string) *Paths {
	abs, err := filepath.Abs(thirdPartyDir)
	if err != nil {
		abs = thirdPartyDir
	}
	return &Paths{
		ThirdPartyDir: abs,
		ManifestPath:  filepath.Join(abs, "Cargo.toml"),
		LockfilePath:  filepath.Join(abs, "Cargo.lock"),
		FixupsDir:     filepath.Join(abs, "fixups"),
		VendorDir:     filepath.Join(abs, "vendor"),
	}
}
