/*************************************************************************
 * Copyright 2024 tacd authors. All rights reserved.
 * Contact: <oss@tacplusng.example>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

// Package logfmt implements the log-format compiler and evaluator (spec
// components C and D): parsing a "${field,sep}"-templated string into a
// compiled node sequence, then binding that sequence against session/
// connection state to produce a bounded, sanitized line. Grounded on
// utils.c's parse_log_format / eval_log_format_* family.
package logfmt

import (
	"fmt"
	"runtime"
	"strings"
)

// NodeKind distinguishes a literal-text node from a field-extractor node
// (spec §3 "Log item (compiled format node)").
type NodeKind int

const (
	NodeLiteral NodeKind = iota
	NodeField
)

// Node is one item in a compiled format sequence.
type Node struct {
	Kind NodeKind

	// Literal text, only valid when Kind == NodeLiteral. strftime-expanded
	// at evaluation time (spec §4.C: "passed through strftime during
	// evaluation, so arbitrary %-sequences are honored").
	Literal string

	// Field token and its separator, only valid when Kind == NodeField.
	Field Token
	Sep   string
}

// Format is a compiled template: an ordered sequence of nodes.
type Format struct {
	Nodes []Node
}

// ParseError reports a hard compile-time failure (spec §4.C: "an unknown
// ${name} is a hard parse error"; spec §7: "Log template parse error —
// fatal at config-load time").
type ParseError struct {
	Template string
	Pos      int
	Msg      string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("log format %q at byte %d: %s", e.Template, e.Pos, e.Msg)
}

// Compile parses template into a Format. The two pseudo-tokens
// __FILE__/__LINE__ resolve immediately to the caller's source location
// (spec §4.C: "Two pseudo-tokens resolve at compile time to the current
// source filename and line number for diagnostics"), via runtime.Caller of
// the function that invoked Compile.
func Compile(template string) (*Format, error) {
	_, file, line, _ := runtime.Caller(1)

	var nodes []Node
	var lit strings.Builder

	flushLiteral := func() {
		if lit.Len() > 0 {
			nodes = append(nodes, Node{Kind: NodeLiteral, Literal: lit.String()})
			lit.Reset()
		}
	}

	runes := []byte(template)
	i := 0
	for i < len(runes) {
		c := runes[i]
		if c != '$' || i+1 >= len(runes) || runes[i+1] != '{' {
			lit.WriteByte(c)
			i++
			continue
		}
		// "${" found; scan to matching '}'.
		start := i
		end := indexByteFrom(runes, '}', i+2)
		if end < 0 {
			return nil, &ParseError{Template: template, Pos: start, Msg: "unterminated ${...}"}
		}
		body := string(runes[i+2 : end])
		name, sep, hasSep := splitNameSep(body)

		switch name {
		case "__FILE__":
			lit.WriteString(file)
			i = end + 1
			continue
		case "__LINE__":
			fmt.Fprintf(&lit, "%d", line)
			i = end + 1
			continue
		}

		tok, ok := lookupToken(name)
		if !ok {
			return nil, &ParseError{Template: template, Pos: start, Msg: fmt.Sprintf("unknown field %q", name)}
		}
		flushLiteral()
		if !hasSep {
			sep = defaultSeparator(tok)
		}
		nodes = append(nodes, Node{Kind: NodeField, Field: tok, Sep: sep})
		i = end + 1
	}
	flushLiteral()

	return &Format{Nodes: nodes}, nil
}

func indexByteFrom(b []byte, c byte, from int) int {
	for i := from; i < len(b); i++ {
		if b[i] == c {
			return i
		}
	}
	return -1
}

// splitNameSep splits "name" or "name,sep" on the first comma.
func splitNameSep(body string) (name, sep string, hasSep bool) {
	if idx := strings.IndexByte(body, ','); idx >= 0 {
		return body[:idx], body[idx+1:], true
	}
	return body, "", false
}
