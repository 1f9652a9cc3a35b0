package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLRUCache_EvictsLeastRecentlyUsed(t *testing.T) {
	c := NewLRUCache[int](2, time.Minute)
	c.Set("a", 1)
	c.Set("b", 2)

	_, ok := c.Get("a")
	require.True(t, ok)

	c.Set("c", 3)
	_, ok = c.Get("b")
	assert.False(t, ok, "b was least recently used")
	assert.Equal(t, 2, c.Size())
}

func TestLRUCache_Expiry(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewLRUCache[string](10, time.Minute)
	c.now = func() time.Time { return now }

	c.Set("k", "v")
	v, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, "v", v)

	c.Set("other", "x")
	now = now.Add(2 * time.Minute)
	_, ok = c.Get("k")
	assert.False(t, ok)
	assert.Equal(t, 1, c.CleanExpired())
	assert.Zero(t, c.Size())
}

func TestLRUCache_DeletePrefix(t *testing.T) {
	c := NewLRUCache[int](10, time.Minute)
	c.Set("alice|2024", 1)
	c.Set("alice|2025", 2)
	c.Set("bob|2025", 3)

	assert.Equal(t, 2, c.DeletePrefix("alice|"))
	_, ok := c.Get("bob|2025")
	assert.True(t, ok)
	assert.Equal(t, 1, c.Size())
}

func TestManager_Sweep(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewLRUCache[int](10, time.Second)
	c.now = func() time.Time { return now }
	c.Set("a", 1)

	m := NewManager()
	m.Register(c)
	assert.Zero(t, m.Sweep())

	now = now.Add(time.Hour)
	assert.Equal(t, 1, m.Sweep())

	m.StartCleanup(time.Millisecond)
	m.StartCleanup(time.Millisecond)
	m.Stop()
	m.Stop()
}
