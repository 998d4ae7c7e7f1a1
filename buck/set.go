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
	"sort"
	"strings"
)

// RuleSet collects generated declarations.  Identity is the declaration
// name: inserting a rule with an existing name replaces the earlier one.
type RuleSet struct {
	rules map[string]Rule
}

func NewRuleSet() *RuleSet {
	return &RuleSet{rules: make(map[string]Rule)}
}

func (s *RuleSet) Add(r Rule) {
	s.rules[Name(r)] = r
}

func (s *RuleSet) Len() int {
	return len(s.rules)
}

// sortKey produces the file-order key for a declaration:
//   - archive fetches float to the top of the file;
//   - the aggregate root package's library always sorts last;
//   - an alias sorts under the name of the declaration it references, and
//     immediately precedes it;
//   - everything else sorts by name.
func sortKey(r Rule) (class int, name string, tie int) {
	switch r := r.(type) {
	case *HttpArchive:
		return 0, r.Name, 1
	case *Alias:
		return 1, strings.TrimPrefix(r.Actual.Target, ":"), 0
	case *RustLibrary:
		if r.Root {
			return 2, r.Common.Name, 1
		}
		return 1, r.Common.Name, 1
	default:
		return 1, Name(r), 1
	}
}

func ruleLess(a, b Rule) bool {
	aClass, aName, aTie := sortKey(a)
	bClass, bName, bTie := sortKey(b)

	if aClass != bClass {
		return aClass < bClass
	}
	if aName != bName {
		return aName < bName
	}
	return aTie < bTie
}

// Rules returns the declarations in file order.
func (s *RuleSet) Rules() []Rule {
	rules := make([]Rule, 0, len(s.rules))
	for _, r := range s.rules {
		rules = append(rules, r)
	}
	sort.Slice(rules, func(i, j int) bool { return ruleLess(rules[i], rules[j]) })
	return rules
}

// PublicNames returns the sorted names of all public declarations.
func (s *RuleSet) PublicNames() []string {
	var names []string
	for name, r := range s.rules {
		if IsPublic(r) {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}
