package modules

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSetPreservesInsertionOrder(t *testing.T) {
	set := NewSet()
	set.Add("normal")
	set.Add("fat")
	set.Add("part_gpt")

	assert.Equal(t, []string{"normal", "fat", "part_gpt"}, set.List())
}

func TestSetAddIsIdempotent(t *testing.T) {
	set := NewSet()
	set.Add("normal")
	set.Add("fat")

	// re-adding an existing name must not reorder or duplicate
	set.Add("normal")

	assert.Equal(t, []string{"normal", "fat"}, set.List())
	assert.Equal(t, 2, set.Len())
}

func TestSetAddAll(t *testing.T) {
	set := NewSet()
	set.AddAll([]string{"a", "b", "a", "c", "b"})

	assert.Equal(t, []string{"a", "b", "c"}, set.List())
}

func TestSetListReturnsCopy(t *testing.T) {
	set := NewSet()
	set.Add("lvm")

	list := set.List()
	list[0] = "mutated"

	assert.Equal(t, []string{"lvm"}, set.List())
}

func TestSetContains(t *testing.T) {
	set := NewSet()
	set.Add("cryptodisk")

	assert.True(t, set.Contains("cryptodisk"))
	assert.False(t, set.Contains("luks2"))
}
