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

package cargo

import (
	"bytes"
	"os/exec"

	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// GetMetadata runs `cargo metadata` against the given manifest and parses
// the result.  cargoPath may be empty, in which case cargo is looked up
// on PATH.
func GetMetadata(cargoPath, manifestPath string) (*Metadata, error) {
	if cargoPath == "" {
		cargoPath = "cargo"
	}

	cmd := exec.Command(cargoPath,
		"metadata", "--format-version", "1",
		"--manifest-path", manifestPath)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	klog.V(1).Infof("running %s", cmd)
	if err := cmd.Run(); err != nil {
		return nil, errors.Wrapf(err, "cargo metadata failed: %s", stderr.String())
	}

	return ParseMetadata(stdout.Bytes())
}
