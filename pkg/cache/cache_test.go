package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLRUCache_GetSet(t *testing.T) {
	c := New(Options{MaxSize: 2})

	_, ok := c.Get("missing")
	assert.False(t, ok)

	c.Set("a", 1)
	v, ok := c.Get("a")
	assert.True(t, ok)
	assert.Equal(t, 1, v)

	c.Set("a", 2)
	v, _ = c.Get("a")
	assert.Equal(t, 2, v)
	assert.Equal(t, 1, c.Len())

	assert.Equal(t, Stats{Hits: 2, Misses: 1}, c.Stats())
}

func TestLRUCache_Eviction(t *testing.T) {
	var evicted []string
	c := New(Options{
		MaxSize: 2,
		OnEvict: func(key string, value interface{}) {
			evicted = append(evicted, key)
		},
	})

	c.Set("a", 1)
	c.Set("b", 2)
	c.Get("a")
	c.Set("c", 3)

	assert.Equal(t, []string{"b"}, evicted)
	_, ok := c.Get("b")
	assert.False(t, ok)
	_, ok = c.Get("a")
	assert.True(t, ok)
	assert.Equal(t, int64(1), c.Stats().Evictions)
}

func TestLRUCache_Unlimited(t *testing.T) {
	c := New(Options{})
	for i := 0; i < 100; i++ {
		c.Set(HashKey(string(rune('a'+i%26))+string(rune(i))), i)
	}
	assert.Equal(t, 100, c.Len())
}

func TestHashKey(t *testing.T) {
	assert.Equal(t, HashKey("x"), HashKey("x"))
	assert.NotEqual(t, HashKey("x"), HashKey("y"))
	assert.Len(t, HashKey(""), 64)
}
