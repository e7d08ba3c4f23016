package env

import (
	"strconv"
	"strings"
)

// LinkerVersion is the dotted version tuple printed by `ld -v`'s first
// line (e.g. "@(#)PROGRAM:ld  PROJECT:ld64-609.8" -> 609.8): split on
// the last "-", then on ".", then compared as a tuple of ints.
type LinkerVersion struct {
	Raw   string
	Parts []int
}

// ParseLinkerVersion extracts the dotted version tuple from the first
// line of `ld -v`'s output. An unparsable banner yields a zero-value
// Parts, which compares as less than any real version.
func ParseLinkerVersion(ldVOutput string) LinkerVersion {
	firstLine := ldVOutput
	if idx := strings.IndexByte(ldVOutput, '\n'); idx >= 0 {
		firstLine = ldVOutput[:idx]
	}
	dash := strings.LastIndexByte(firstLine, '-')
	if dash < 0 {
		return LinkerVersion{Raw: firstLine}
	}
	numeric := firstLine[dash+1:]
	fields := strings.Split(numeric, ".")
	parts := make([]int, 0, len(fields))
	for _, f := range fields {
		n, err := strconv.Atoi(f)
		if err != nil {
			return LinkerVersion{Raw: firstLine}
		}
		parts = append(parts, n)
	}
	return LinkerVersion{Raw: firstLine, Parts: parts}
}

// SatisfiesMinimum reports whether v is >= the dotted version string
// threshold (e.g. "253.3.1"), using element-wise tuple comparison:
// equal shared prefixes fall through to length, so (253, 2) <
// (253, 2, 0).
func (v LinkerVersion) SatisfiesMinimum(threshold string) bool {
	fields := strings.Split(threshold, ".")
	check := make([]int, len(fields))
	for i, f := range fields {
		n, err := strconv.Atoi(f)
		if err != nil {
			return false
		}
		check[i] = n
	}
	return compareTuples(v.Parts, check) >= 0
}

// compareTuples compares two int slices element-wise: the first
// differing element decides; if one is a prefix of the other, the
// shorter slice is less.
func compareTuples(a, b []int) int {
	for i := 0; i < len(a) && i < len(b); i++ {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}
			return 1
		}
	}
	switch {
	case len(a) < len(b):
		return -1
	case len(a) > len(b):
		return 1
	default:
		return 0
	}
}

// LinkerVersion resolves and caches the active ld tool's version.
func (e *ToolEnv) LinkerVersion() (LinkerVersion, error) {
	e.mu.Lock()
	cached := e.linkerVersion
	e.mu.Unlock()
	if cached != nil {
		return *cached, nil
	}
	ldPath, err := e.GetTool("ld")
	if err != nil {
		return LinkerVersion{}, err
	}
	out, _, err := e.Runner.Run([]string{ldPath, "-v"}, "")
	if err != nil && out == "" {
		return LinkerVersion{}, err
	}
	v := ParseLinkerVersion(out)
	e.mu.Lock()
	e.linkerVersion = &v
	e.mu.Unlock()
	return v, nil
}
