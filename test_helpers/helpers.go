// Package test_helpers holds utilities to write readable test inputs.
package test_helpers

import (
	"strings"
)

// leadingSpace returns the run of spaces and tabs that starts line.
func leadingSpace(line string) string {
	return line[:len(line)-len(strings.TrimLeft(line, " \t"))]
}

// Dedent removes the whitespace prefix common to all non-blank lines, and
// drops blank lines at the start and end of s. Useful to write assembly
// within an indented `backtick` string.
func Dedent(s string) string {
	lines := strings.Split(s, "\n")
	for len(lines) > 0 && strings.TrimSpace(lines[0]) == "" {
		lines = lines[1:]
	}
	for len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) == "" {
		lines = lines[:len(lines)-1]
	}
	prefix, found := "", false
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		if !found {
			prefix, found = leadingSpace(line), true
			continue
		}
		prefix = commonPrefix(prefix, leadingSpace(line))
	}
	for i, line := range lines {
		lines[i] = strings.TrimPrefix(line, prefix)
	}
	return strings.Join(lines, "\n")
}

func commonPrefix(a, b string) string {
	n := 0
	for n < len(a) && n < len(b) && a[n] == b[n] {
		n++
	}
	return a[:n]
}
