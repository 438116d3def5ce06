package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUniqueStrings(t *testing.T) {
	tests := []struct {
		name string
		in   []string
		want []string
	}{
		{name: "nil", in: nil, want: nil},
		{name: "no duplicates", in: []string{"a", "b"}, want: []string{"a", "b"}},
		{name: "duplicates keep first position", in: []string{"b", "a", "b", "c", "a"}, want: []string{"b", "a", "c"}},
		{name: "empty strings dropped", in: []string{"", "a", ""}, want: []string{"a"}},
		{name: "only empty strings", in: []string{"", ""}, want: nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, UniqueStrings(tt.in))
		})
	}
}

func TestDifference(t *testing.T) {
	oldMembers := []string{"A", "B", "C"}
	newMembers := []string{"B", "C", "D"}

	assert.Equal(t, []string{"D"}, Difference(newMembers, oldMembers))
	assert.Equal(t, []string{"A"}, Difference(oldMembers, newMembers))
	assert.Nil(t, Difference(oldMembers, oldMembers))
	assert.Equal(t, []string{"A", "B"}, Difference([]string{"A", "A", "B"}, nil))
}
