package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTTL_SetGet(t *testing.T) {
	c := NewTTL[[]string](time.Minute)

	_, found := c.Get("mods")
	assert.False(t, found)

	c.Set("mods", []string{"alice", "bob"})
	value, found := c.Get("mods")
	assert.True(t, found)
	assert.Equal(t, []string{"alice", "bob"}, value)
}

func TestTTL_Expiry(t *testing.T) {
	c := NewTTL[string](10 * time.Millisecond)

	c.Set("key", "value")
	time.Sleep(30 * time.Millisecond)

	_, found := c.Get("key")
	assert.False(t, found)
}

func TestTTL_DeleteAndClear(t *testing.T) {
	c := NewTTL[int](time.Minute)

	c.Set("a", 1)
	c.Set("b", 2)

	c.Delete("a")
	_, found := c.Get("a")
	assert.False(t, found)

	c.Clear()
	_, found = c.Get("b")
	assert.False(t, found)
}
