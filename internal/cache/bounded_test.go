package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBoundedSet_AddAndContains(t *testing.T) {
	set := NewBoundedSet[string](3)

	assert.True(t, set.Add("a"))
	assert.False(t, set.Add("a"))
	assert.True(t, set.Contains("a"))
	assert.False(t, set.Contains("b"))
	assert.Equal(t, 1, set.Len())
}

func TestBoundedSet_EvictsOldestFirst(t *testing.T) {
	set := NewBoundedSet[string](3)

	set.Add("a")
	set.Add("b")
	set.Add("c")
	set.Add("d")

	assert.False(t, set.Contains("a"))
	assert.True(t, set.Contains("b"))
	assert.True(t, set.Contains("c"))
	assert.True(t, set.Contains("d"))
	assert.Equal(t, 3, set.Len())
}

func TestBoundedSet_ZeroCapacityStillHoldsOne(t *testing.T) {
	set := NewBoundedSet[int](0)

	assert.True(t, set.Add(1))
	assert.True(t, set.Contains(1))
	assert.True(t, set.Add(2))
	assert.False(t, set.Contains(1))
}
