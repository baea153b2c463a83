/*************************************************************************
 * Copyright 2024 tacd authors. All rights reserved.
 * Contact: <oss@tacplusng.example>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

// Package strftime translates the small set of strftime(3) codes the log
// pipeline's literal template segments and file-path templates rely on
// (spec §4.C "literal segments become string nodes whose text is later
// passed through strftime during evaluation", §4.E "%-templated path").
//
// No example repo in the corpus imports a strftime-equivalent library
// (searched every go.mod under _examples/, including other_examples/); Go's
// time.Format reference-layout model cannot express "%Y-%m-%d" style codes
// directly, so this is a small, closed translation table rather than a
// general templating engine (see DESIGN.md).
package strftime

import (
	"strconv"
	"strings"
	"time"
)

// Format expands the %-codes in layout against t, passing through any
// character that is not a recognized code (including a bare trailing '%').
func Format(layout string, t time.Time) string {
	var b strings.Builder
	b.Grow(len(layout) + 16)

	runes := []rune(layout)
	for i := 0; i < len(runes); i++ {
		c := runes[i]
		if c != '%' || i+1 >= len(runes) {
			b.WriteRune(c)
			continue
		}
		i++
		code := runes[i]
		if code == '%' {
			b.WriteByte('%')
			continue
		}
		if expansion, ok := expand(code, t); ok {
			b.WriteString(expansion)
		} else {
			b.WriteByte('%')
			b.WriteRune(code)
		}
	}
	return b.String()
}

func expand(code rune, t time.Time) (string, bool) {
	switch code {
	case 'Y':
		return strconv.Itoa(t.Year()), true
	case 'y':
		return pad2(t.Year() % 100), true
	case 'm':
		return pad2(int(t.Month())), true
	case 'd':
		return pad2(t.Day()), true
	case 'H':
		return pad2(t.Hour()), true
	case 'M':
		return pad2(t.Minute()), true
	case 'S':
		return pad2(t.Second()), true
	case 'j':
		return pad3(t.YearDay()), true
	case 'z':
		return t.Format("-0700"), true
	case 'Z':
		name, _ := t.Zone()
		return name, true
	case 'a':
		return t.Format("Mon"), true
	case 'A':
		return t.Format("Monday"), true
	case 'b', 'h':
		return t.Format("Jan"), true
	case 'B':
		return t.Format("January"), true
	case 'e':
		return strconv.Itoa(t.Day()), true
	case 'n':
		return "\n", true
	case 't':
		return "\t", true
	case 'T':
		return t.Format("15:04:05"), true
	case 'F':
		return t.Format("2006-01-02"), true
	case 's':
		return strconv.FormatInt(t.Unix(), 10), true
	default:
		return "", false
	}
}

func pad2(v int) string {
	if v < 0 {
		v = -v
	}
	s := strconv.Itoa(v)
	if len(s) < 2 {
		return "0" + s
	}
	return s
}

func pad3(v int) string {
	s := strconv.Itoa(v)
	for len(s) < 3 {
		s = "0" + s
	}
	return s
}
