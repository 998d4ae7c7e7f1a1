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
	"bytes"

	"buckgen/config"
	"buckgen/starlark"
)

// WriteBuckfile assembles the whole generated file: header comment,
// import preamble, then the declarations in file order separated by one
// blank line.  Output is fully buffered; nothing touches disk here.
func WriteBuckfile(bc *config.BuckConfig, rules []Rule, out *bytes.Buffer) error {
	if bc.GeneratedFileHeader != "" {
		out.WriteString(bc.GeneratedFileHeader)
		out.WriteString("\n")
	}
	if bc.BuckfileImports != "" {
		out.WriteString(bc.BuckfileImports)
		out.WriteString("\n")
	}

	for i, r := range rules {
		if i > 0 {
			out.WriteString("\n")
		}
		rendered, err := Render(r, bc)
		if err != nil {
			return err
		}
		out.WriteString(rendered)
		out.WriteString("\n")
	}

	return nil
}

// WriteTargetsFile renders the sorted list of public declaration names.
func WriteTargetsFile(bc *config.BuckConfig, names []string, out *bytes.Buffer) {
	if bc.GeneratedFileHeader != "" {
		out.WriteString(bc.GeneratedFileHeader)
		out.WriteString("\n")
	}
	out.WriteString("RUST_TARGETS = ")
	out.WriteString(starlark.RenderValue(starlark.Strings(names)))
	out.WriteString("\n")
}
