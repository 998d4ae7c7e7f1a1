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
	"github.com/pkg/errors"

	"buckgen/buck"
	"buckgen/config"
	"buckgen/fixups"
	"buckgen/platform"
)

// unzipPlatform folds a stream of platform-tagged values into the base
// attribute record and the per-platform map.  Untagged values fold into
// base; tagged values are expanded into the concrete platform names
// satisfying the expression and folded into each bucket, creating
// buckets on first use.  A malformed expression aborts the whole
// target's generation.
func unzipPlatform[T any](cfg *config.Config,
	base *buck.PlatformRustCommon,
	perPlat map[platform.Name]*buck.PlatformRustCommon,
	extend func(*buck.PlatformRustCommon, T),
	things []fixups.Tagged[T]) error {

	for _, thing := range things {
		if thing.Platform == "" {
			extend(base, thing.Value)
			continue
		}

		names, err := platform.NamesForExpr(cfg.Platform, thing.Platform)
		if err != nil {
			return errors.Wrapf(err, "bad platform expression %q", thing.Platform)
		}
		for _, name := range names {
			bucket, ok := perPlat[name]
			if !ok {
				bucket = buck.NewPlatformRustCommon()
				perPlat[name] = bucket
			}
			extend(bucket, thing.Value)
		}
	}

	return nil
}
