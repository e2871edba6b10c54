package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMungeTitleToName(t *testing.T) {
	cases := []struct {
		title string
		want  string
	}{
		{"Test Dataset A", "test-dataset-a"},
		{"  Leading and trailing  ", "leading-and-trailing"},
		{"Topography & Relief (2024)", "topography-relief-2024"},
		{"UPPER_case.mixed", "upper_case-mixed"},
		{"many---dashes", "many-dashes"},
		{"", ""},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, MungeTitleToName(tc.title), "title %q", tc.title)
	}
}

func TestMungeTitleToNameLength(t *testing.T) {
	long := ""
	for i := 0; i < 30; i++ {
		long += "abcdefghij"
	}
	name := MungeTitleToName(long)
	assert.LessOrEqual(t, len(name), MaxNameLength-1)
}
