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

package starlark

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
)

type renderer struct {
	output     bytes.Buffer
	numIndents int
	indentSize int
}

// Render renders a top-level function call.  The result has no trailing
// newline; the file writer owns declaration separation.
func Render(call *Call) string {
	r := &renderer{indentSize: 4}
	r.renderCall(call)
	return r.output.String()
}

// RenderValue renders a bare value, for generated files that assign a
// value to a variable instead of declaring rules.
func RenderValue(value Value) string {
	r := &renderer{indentSize: 4}
	r.renderValue(value)
	return r.output.String()
}

func (r *renderer) renderCall(call *Call) {
	if len(call.Args) == 0 {
		r.printString(call.Func + "()")
		return
	}

	r.printString(call.Func + "(")
	r.incrementIndent()
	for _, arg := range call.Args {
		r.printNewline()
		r.printIndent()
		r.printString(arg.Name + " = ")
		r.renderValue(arg.Value)
		r.printString(",")
	}
	r.decrementIndent()
	r.printNewline()
	r.printIndent()
	r.printString(")")
}

func (r *renderer) renderValue(value Value) {
	switch value := value.(type) {
	case Str:
		r.printString(strconv.Quote(string(value)))
	case Bool:
		if value {
			r.printString("True")
		} else {
			r.printString("False")
		}
	case List:
		r.renderList(value)
	case Map:
		r.renderMap(value)
	case *Call:
		r.renderCall(value)
	default:
		panic(fmt.Sprintf("unrecognized starlark value %T: %#v", value, value))
	}
}

func (r *renderer) renderList(list List) {
	switch len(list) {
	case 0:
		r.printString("[]")
	case 1:
		r.printString("[")
		r.renderValue(list[0])
		r.printString("]")
	default:
		r.printString("[")
		r.incrementIndent()
		for _, elem := range list {
			r.printNewline()
			r.printIndent()
			r.renderValue(elem)
			r.printString(",")
		}
		r.decrementIndent()
		r.printNewline()
		r.printIndent()
		r.printString("]")
	}
}

func (r *renderer) renderMap(m Map) {
	if len(m) == 0 {
		r.printString("{}")
		return
	}

	r.printString("{")
	r.incrementIndent()
	for _, entry := range m {
		r.printNewline()
		r.printIndent()
		r.renderValue(entry.Key)
		r.printString(": ")
		r.renderValue(entry.Value)
		r.printString(",")
	}
	r.decrementIndent()
	r.printNewline()
	r.printIndent()
	r.printString("}")
}

func (r *renderer) printString(s string) {
	r.output.WriteString(s)
}

func (r *renderer) printNewline() {
	r.output.WriteString("\n")
}

func (r *renderer) printIndent() {
	r.output.WriteString(strings.Repeat(" ", r.numIndents*r.indentSize))
}

func (r *renderer) incrementIndent() {
	r.numIndents++
}

func (r *renderer) decrementIndent() {
	r.numIndents--
}
