// SPDX-License-Identifier: MPL-2.0

package version

import (
	"strconv"
	"strings"
	"unicode"

	mm "github.com/Masterminds/semver/v3"
)

// qualifierRank orders the well known pre-release qualifiers. Unknown
// qualifiers rank with releaseRank and then compare lexically.
var qualifierRank = map[string]int{
	"alpha":     1,
	"a":         1,
	"beta":      2,
	"b":         2,
	"milestone": 3,
	"m":         3,
	"rc":        4,
	"cr":        4,
	"snapshot":  5,
	"":          6,
	"ga":        6,
	"final":     6,
	"release":   6,
	"sp":        7,
}

const releaseRank = 6

// semverPair parses both versions strictly enough that the comparison is
// meaningful. Versions with more than three numeric segments are left to the
// segment comparator.
func semverPair(a, b Version) (*mm.Version, *mm.Version, bool) {
	va, err := mm.NewVersion(string(a))
	if err != nil || numericSegments(string(a)) > 3 {
		return nil, nil, false
	}
	vb, err := mm.NewVersion(string(b))
	if err != nil || numericSegments(string(b)) > 3 {
		return nil, nil, false
	}
	return va, vb, true
}

func numericSegments(s string) int {
	core, _, _ := strings.Cut(s, "-")
	core, _, _ = strings.Cut(core, "+")
	return len(strings.Split(core, "."))
}

// compareSegments compares dotted/dashed version strings segment by segment.
// Numeric segments compare numerically and beat qualifiers; a missing segment
// counts as zero against a number and as a release against a qualifier.
func compareSegments(a, b string) int {
	sa, sb := splitSegments(a), splitSegments(b)
	for i := range max(len(sa), len(sb)) {
		var x, y string
		if i < len(sa) {
			x = sa[i]
		}
		if i < len(sb) {
			y = sb[i]
		}
		if c := compareSegment(x, y); c != 0 {
			return c
		}
	}
	return 0
}

func splitSegments(s string) []string {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return r == '.' || r == '-' || r == '_'
	})
	// "1rc2" style boundaries between digits and letters also split.
	var out []string
	for _, f := range fields {
		start := 0
		for i := 1; i < len(f); i++ {
			if unicode.IsDigit(rune(f[i])) != unicode.IsDigit(rune(f[i-1])) {
				out = append(out, f[start:i])
				start = i
			}
		}
		out = append(out, f[start:])
	}
	return out
}

func compareSegment(x, y string) int {
	nx, xNum := parseNumber(x)
	ny, yNum := parseNumber(y)
	switch {
	case xNum && yNum:
		return cmpInt(nx, ny)
	case xNum:
		if y == "" {
			return cmpInt(nx, 0)
		}
		return 1
	case yNum:
		if x == "" {
			return cmpInt(0, ny)
		}
		return -1
	}
	rx, ry := rank(x), rank(y)
	if rx != ry {
		return cmpInt(rx, ry)
	}
	_, xKnown := qualifierRank[x]
	_, yKnown := qualifierRank[y]
	if xKnown && yKnown {
		return 0
	}
	return strings.Compare(x, y)
}

func parseNumber(s string) (int, bool) {
	if s == "" {
		return 0, false
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, false
	}
	return n, true
}

func rank(q string) int {
	if r, ok := qualifierRank[q]; ok {
		return r
	}
	return releaseRank
}

func cmpInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
