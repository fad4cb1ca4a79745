package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestToInt(t *testing.T) {
	assert.Equal(t, 5, ToInt(5))
	assert.Equal(t, 5, ToInt(float64(5)))
	assert.Equal(t, 5, ToInt("5"))
	assert.Equal(t, 0, ToInt("not a number"))
	assert.Equal(t, 7, ToInt([]byte("7")))
}

func TestToFloat(t *testing.T) {
	assert.Equal(t, 12.5, ToFloat(12.5))
	assert.Equal(t, 12.0, ToFloat(12))
	assert.Equal(t, 12.5, ToFloat(" 12.5 "))
	assert.Equal(t, 0.0, ToFloat(nil))
}

func TestToBool(t *testing.T) {
	assert.True(t, ToBool(true))
	assert.True(t, ToBool(1))
	assert.True(t, ToBool("true"))
	assert.True(t, ToBool("1"))
	assert.False(t, ToBool(0))
	assert.False(t, ToBool(nil))
}

func TestChunk(t *testing.T) {
	tests := []struct {
		name  string
		items []int
		size  int
		want  [][]int
	}{
		{name: "even split", items: []int{1, 2, 3, 4}, size: 2, want: [][]int{{1, 2}, {3, 4}}},
		{name: "remainder", items: []int{1, 2, 3}, size: 2, want: [][]int{{1, 2}, {3}}},
		{name: "single chunk", items: []int{1, 2}, size: 10, want: [][]int{{1, 2}}},
		{name: "empty", items: nil, size: 10, want: nil},
		{name: "zero size", items: []int{1}, size: 0, want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Chunk(tt.items, tt.size))
		})
	}
}
