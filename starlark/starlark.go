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

// Package starlark renders build declarations as Starlark call syntax.
// Output is deterministic: argument order is whatever the caller fixed,
// and collection values are rendered one element per line so a downstream
// formatter can normalize them without re-flowing the file.
package starlark

// Value is one renderable Starlark value: Str, Bool, List, Map or *Call.
type Value interface{}

// Str renders as a quoted string.
type Str string

// Bool renders as True or False.
type Bool bool

// List renders as a list literal.
type List []Value

// MapEntry is one key/value pair of a Map, in render order.
type MapEntry struct {
	Key   Value
	Value Value
}

// Map renders as a dict literal with the entries in the given order.
type Map []MapEntry

// Arg is one keyword argument of a Call.
type Arg struct {
	Name  string
	Value Value
}

// Call renders as a function call with keyword arguments.
type Call struct {
	Func string
	Args []Arg
}

// NewCall returns an empty call of the named function.
func NewCall(fn string) *Call {
	return &Call{Func: fn}
}

// Arg appends a keyword argument.
func (c *Call) Arg(name string, value Value) *Call {
	c.Args = append(c.Args, Arg{Name: name, Value: value})
	return c
}

// Strings converts a string slice into a List without reordering.
func Strings(elems []string) List {
	list := make(List, len(elems))
	for i, s := range elems {
		list[i] = Str(s)
	}
	return list
}

// SortedStrings converts a string slice into a List ordered by the label
// comparator.
func SortedStrings(elems []string) List {
	sorted := append([]string(nil), elems...)
	SortLabels(sorted)
	return Strings(sorted)
}
