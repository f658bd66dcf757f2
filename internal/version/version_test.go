package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCompare(t *testing.T) {
	cases := []struct {
		name     string
		a, b     string
		expected int
	}{
		{"equal", "1.2.3", "1.2.3", 0},
		{"numeric component order", "1.9", "1.10", -1},
		{"lexical fallback on alpha component", "1.a", "1.b", -1},
		{"shorter prefix sorts lower", "1.2", "1.2.0", -1},
		{"revision breaks tie", "1.2.3_1", "1.2.3_2", -1},
		{"epoch dominates components", "2.0,1", "9.0,0", 1},
		{"higher epoch wins over lower components", "1.0,2", "9.0,1", 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, Compare(tc.a, tc.b))
		})
	}
}

func TestCompareSymmetry(t *testing.T) {
	assert.Equal(t, 1, Compare("2.0", "1.0"))
	assert.Equal(t, -1, Compare("1.0", "2.0"))
}
