package ring

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRing_MostRecentFirst(t *testing.T) {
	r := New[int](3)
	r.Push(1)
	r.Push(2)

	assert.Equal(t, []int{2, 1}, r.Items())
	assert.Equal(t, 2, r.Len())
	assert.Equal(t, 3, r.Cap())
}

func TestRing_EvictsOldest(t *testing.T) {
	r := New[string](2)
	assert.False(t, r.Push("a"))
	assert.False(t, r.Push("b"))
	assert.True(t, r.Push("c"))
	assert.True(t, r.Push("d"))

	assert.Equal(t, []string{"d", "c"}, r.Items())
	assert.Equal(t, 2, r.Len())
}

func TestRing_NeverExceedsCapacity(t *testing.T) {
	r := New[int](5)
	for i := 0; i < 100; i++ {
		r.Push(i)
		assert.LessOrEqual(t, r.Len(), 5)
	}
	assert.Equal(t, []int{99, 98, 97, 96, 95}, r.Items())
}

func TestRing_Filter(t *testing.T) {
	r := New[int](4)
	for i := 1; i <= 6; i++ {
		r.Push(i)
	}
	// holds 6,5,4,3
	r.Filter(func(v int) bool { return v%2 == 0 })
	assert.Equal(t, []int{6, 4}, r.Items())

	r.Push(7)
	r.Push(8)
	r.Push(9)
	assert.Equal(t, []int{9, 8, 7, 6}, r.Items())
}

func TestRing_MinimumCapacity(t *testing.T) {
	r := New[int](0)
	r.Push(1)
	r.Push(2)
	assert.Equal(t, []int{2}, r.Items())
}
