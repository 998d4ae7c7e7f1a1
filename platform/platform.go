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

// Package platform models the platforms build rules can be specialized
// for, and evaluates the conditional expressions package metadata uses to
// scope dependencies and attributes to platforms.
package platform

import "sort"

// Name identifies one configured platform, e.g. "linux-x86_64".
type Name string

// The default platform's attributes fold into a rule's base attributes
// rather than a per-platform block.
const DefaultName Name = "default"

func (n Name) IsDefault() bool {
	return n == DefaultName
}

// Expr is an unparsed conditional expression attached to a dependency or
// attribute, either a cfg() predicate or a bare target triple.
type Expr string

// Config describes one platform in terms of the keys a cfg() predicate
// can test.
type Config struct {
	Triple       string   `toml:"triple"`
	OS           string   `toml:"target_os"`
	Family       string   `toml:"target_family"`
	Arch         string   `toml:"target_arch"`
	Vendor       string   `toml:"target_vendor"`
	Env          string   `toml:"target_env"`
	PointerWidth string   `toml:"target_pointer_width"`
	Features     []string `toml:"target_features"`
}

// NamesForExpr expands expr into the sorted set of configured platform
// names satisfying it.
func NamesForExpr(platforms map[Name]*Config, expr Expr) ([]Name, error) {
	pred, err := Parse(expr)
	if err != nil {
		return nil, err
	}

	var names []Name
	for name, config := range platforms {
		if pred.Eval(config) {
			names = append(names, name)
		}
	}
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })

	return names, nil
}

// Eval parses expr and evaluates it against a single platform.
func Eval(expr Expr, config *Config) (bool, error) {
	pred, err := Parse(expr)
	if err != nil {
		return false, err
	}
	return pred.Eval(config), nil
}
