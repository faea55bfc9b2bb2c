package types

import (
	"strconv"
	"strings"
)

// CompareVersions compares two dot-separated version strings numerically,
// segment by segment. Missing segments count as zero, so "1.2" equals
// "1.2.0". A segment contributes the value of its leading digits; a segment
// without leading digits counts as zero. A leading "v" is ignored.
// Returns -1 if a < b, 0 if equal, +1 if a > b.
func CompareVersions(a, b string) int {
	as := versionSegments(a)
	bs := versionSegments(b)
	n := max(len(as), len(bs))
	for i := range n {
		var x, y int
		if i < len(as) {
			x = as[i]
		}
		if i < len(bs) {
			y = bs[i]
		}
		switch {
		case x < y:
			return -1
		case x > y:
			return 1
		}
	}
	return 0
}

// VersionNewer reports whether candidate is strictly newer than current.
func VersionNewer(candidate, current string) bool {
	return CompareVersions(candidate, current) > 0
}

func versionSegments(v string) []int {
	v = strings.TrimPrefix(strings.TrimSpace(v), "v")
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ".")
	out := make([]int, len(parts))
	for i, p := range parts {
		end := 0
		for end < len(p) && p[end] >= '0' && p[end] <= '9' {
			end++
		}
		if end == 0 {
			continue
		}
		n, err := strconv.Atoi(p[:end])
		if err != nil {
			// Overflow; saturate so a huge segment still sorts last.
			n = int(^uint(0) >> 1)
		}
		out[i] = n
	}
	return out
}
