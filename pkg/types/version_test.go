package types

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

func TestCompareVersions(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"2.0.0", "1.99.99", 1},
		{"1.10.2", "1.2.0", 1},
		{"1.2.0", "1.10.2", -1},
		{"1.2", "1.2.0", 0},
		{"1.2.0", "1.2", 0},
		{"v1.3.0", "1.2.9", 1},
		{"", "0.0.0", 0},
		{"", "0.0.1", -1},
		{"1.0.0-beta", "1.0.0", 0},
		{"1.x.3", "1.0.3", 0},
		{"10", "9.9.9", 1},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s_vs_%s", tt.a, tt.b), func(t *testing.T) {
			assert.Equal(t, tt.want, CompareVersions(tt.a, tt.b))
		})
	}
}

func TestVersionNewer(t *testing.T) {
	assert.True(t, VersionNewer("2.0.0", "1.99.99"))
	assert.False(t, VersionNewer("1.0.0", "1.0.0"))
	assert.False(t, VersionNewer("1.0.0", "1.0.1"))
}

func genVersion() *rapid.Generator[[]int] {
	return rapid.SliceOfN(rapid.IntRange(0, 1000), 1, 4)
}

func formatVersion(parts []int) string {
	s := ""
	for i, p := range parts {
		if i > 0 {
			s += "."
		}
		s += fmt.Sprint(p)
	}
	return s
}

func TestCompareVersions_Properties(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		a := formatVersion(genVersion().Draw(t, "a"))
		b := formatVersion(genVersion().Draw(t, "b"))
		c := formatVersion(genVersion().Draw(t, "c"))

		if CompareVersions(a, a) != 0 {
			t.Fatalf("%s not equal to itself", a)
		}
		if CompareVersions(a, b) != -CompareVersions(b, a) {
			t.Fatalf("asymmetric comparison of %s and %s", a, b)
		}
		if CompareVersions(a, b) <= 0 && CompareVersions(b, c) <= 0 && CompareVersions(a, c) > 0 {
			t.Fatalf("not transitive: %s <= %s <= %s", a, b, c)
		}
		if CompareVersions(a+".0", a) != 0 {
			t.Fatalf("trailing zero segment changed ordering of %s", a)
		}
	})
}

func TestCompareVersions_NumericSegments(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		major := rapid.IntRange(0, 50).Draw(t, "major")
		x := rapid.IntRange(0, 10000).Draw(t, "x")
		y := rapid.IntRange(0, 10000).Draw(t, "y")
		got := CompareVersions(fmt.Sprintf("%d.%d", major, x), fmt.Sprintf("%d.%d", major, y))
		want := 0
		if x < y {
			want = -1
		} else if x > y {
			want = 1
		}
		if got != want {
			t.Fatalf("compare %d.%d vs %d.%d = %d, want %d", major, x, major, y, got, want)
		}
	})
}
