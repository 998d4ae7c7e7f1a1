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

package platform

import (
	"fmt"
	"strings"
	"unicode"
)

// Predicate is a parsed platform expression.
type Predicate interface {
	Eval(config *Config) bool
}

// ParseError reports a malformed platform expression, including the
// offending text so the failing fixup entry can be located.
type ParseError struct {
	Expr Expr
	Pos  int
	Msg  string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("malformed platform expression %q at offset %d: %s", e.Expr, e.Pos, e.Msg)
}

type anyPred []Predicate

func (p anyPred) Eval(config *Config) bool {
	for _, sub := range p {
		if sub.Eval(config) {
			return true
		}
	}
	return false
}

type allPred []Predicate

func (p allPred) Eval(config *Config) bool {
	for _, sub := range p {
		if !sub.Eval(config) {
			return false
		}
	}
	return true
}

type notPred struct {
	pred Predicate
}

func (p notPred) Eval(config *Config) bool {
	return !p.pred.Eval(config)
}

// keyValuePred matches a `key = "value"` test against the platform config.
type keyValuePred struct {
	key   string
	value string
}

func (p keyValuePred) Eval(config *Config) bool {
	switch p.key {
	case "target_os":
		return config.OS == p.value
	case "target_family":
		return config.Family == p.value
	case "target_arch":
		return config.Arch == p.value
	case "target_vendor":
		return config.Vendor == p.value
	case "target_env":
		return config.Env == p.value
	case "target_pointer_width":
		return config.PointerWidth == p.value
	case "target_feature", "feature":
		for _, f := range config.Features {
			if f == p.value {
				return true
			}
		}
		return false
	default:
		return false
	}
}

// namePred matches a bare name: "unix"/"windows" test the target family,
// anything else is treated as an exact target triple.
type namePred struct {
	name string
}

func (p namePred) Eval(config *Config) bool {
	switch p.name {
	case "unix", "windows":
		return config.Family == p.name
	default:
		return config.Triple == p.name
	}
}

// Parse parses a platform expression: either `cfg(<pred>)` where pred is
// built from any(), all(), not(), `key = "value"` and bare names, or a
// bare target triple.
func Parse(expr Expr) (Predicate, error) {
	p := &parser{expr: expr, text: string(expr)}

	p.skipSpace()
	if !strings.HasPrefix(p.text[p.pos:], "cfg(") {
		// A bare triple.
		triple := strings.TrimSpace(p.text)
		if triple == "" {
			return nil, p.errorf("empty expression")
		}
		return namePred{triple}, nil
	}

	p.pos += len("cfg(")
	pred, err := p.parsePredicate()
	if err != nil {
		return nil, err
	}
	if !p.eat(')') {
		return nil, p.errorf("expected ')'")
	}
	p.skipSpace()
	if p.pos != len(p.text) {
		return nil, p.errorf("trailing characters after cfg()")
	}

	return pred, nil
}

type parser struct {
	expr Expr
	text string
	pos  int
}

func (p *parser) errorf(format string, args ...interface{}) error {
	return &ParseError{Expr: p.expr, Pos: p.pos, Msg: fmt.Sprintf(format, args...)}
}

func (p *parser) skipSpace() {
	for p.pos < len(p.text) && (p.text[p.pos] == ' ' || p.text[p.pos] == '\t') {
		p.pos++
	}
}

func (p *parser) eat(c byte) bool {
	p.skipSpace()
	if p.pos < len(p.text) && p.text[p.pos] == c {
		p.pos++
		return true
	}
	return false
}

func (p *parser) ident() string {
	p.skipSpace()
	start := p.pos
	for p.pos < len(p.text) {
		c := rune(p.text[p.pos])
		if !unicode.IsLetter(c) && !unicode.IsDigit(c) && c != '_' {
			break
		}
		p.pos++
	}
	return p.text[start:p.pos]
}

func (p *parser) quoted() (string, error) {
	p.skipSpace()
	if !p.eat('"') {
		return "", p.errorf("expected quoted string")
	}
	start := p.pos
	for p.pos < len(p.text) && p.text[p.pos] != '"' {
		p.pos++
	}
	if p.pos == len(p.text) {
		return "", p.errorf("unterminated string")
	}
	s := p.text[start:p.pos]
	p.pos++
	return s, nil
}

func (p *parser) parsePredicate() (Predicate, error) {
	name := p.ident()
	if name == "" {
		return nil, p.errorf("expected predicate")
	}

	switch {
	case p.eat('('):
		switch name {
		case "any", "all":
			var subs []Predicate
			for !p.eat(')') {
				sub, err := p.parsePredicate()
				if err != nil {
					return nil, err
				}
				subs = append(subs, sub)
				if !p.eat(',') && !p.peek(')') {
					return nil, p.errorf("expected ',' or ')'")
				}
			}
			if name == "any" {
				return anyPred(subs), nil
			}
			return allPred(subs), nil
		case "not":
			sub, err := p.parsePredicate()
			if err != nil {
				return nil, err
			}
			if !p.eat(')') {
				return nil, p.errorf("expected ')' after not()")
			}
			return notPred{sub}, nil
		default:
			return nil, p.errorf("unknown predicate %q", name)
		}

	case p.eat('='):
		value, err := p.quoted()
		if err != nil {
			return nil, err
		}
		return keyValuePred{key: name, value: value}, nil

	default:
		return namePred{name}, nil
	}
}

func (p *parser) peek(c byte) bool {
	p.skipSpace()
	return p.pos < len(p.text) && p.text[p.pos] == c
}
