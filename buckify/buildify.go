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
	"os/exec"
	"path/filepath"

	"github.com/pkg/errors"
)

// buildify pipes a generated build file through the configured
// buildifier-style formatter and returns the formatted text.
func buildify(path string, paths *Paths, data []byte) ([]byte, error) {
	if !filepath.IsAbs(path) {
		path = filepath.Join(paths.ThirdPartyDir, path)
	}

	cmd := exec.Command(path, "--type=build")
	cmd.Stdin = bytes.NewReader(data)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, errors.Wrapf(err, "running %s: %s", path, stderr.String())
	}
	return stdout.Bytes(), nil
}
