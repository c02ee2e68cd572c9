package cache

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/latintext/corpusquery/internal/posting"
)

func TestGetMissThenHit(t *testing.T) {
	c := New(0)
	_, ok := c.Get("word:oscula")
	assert.False(t, ok)

	p := posting.FromList(0, []uint32{1, 2, 3})
	c.Put("word:oscula", p)

	got, ok := c.Get("word:oscula")
	assert.True(t, ok)
	assert.Equal(t, p.List, got.List)

	stats := c.Stats()
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
	assert.Equal(t, int64(1), stats.Size)
}

func TestPutRespectsCapacity(t *testing.T) {
	c := New(2)
	for i := 0; i < 5; i++ {
		c.Put(fmt.Sprintf("key-%d", i), posting.FromList(0, []uint32{uint32(i)}))
	}
	assert.LessOrEqual(t, c.Stats().Size, int64(2))
}

func TestPutOverwritesExistingKey(t *testing.T) {
	c := New(1)
	c.Put("k", posting.FromList(0, []uint32{1}))
	c.Put("k", posting.FromList(0, []uint32{9}))

	got, ok := c.Get("k")
	assert.True(t, ok)
	assert.Equal(t, []uint32{9}, got.List)
	assert.Equal(t, int64(1), c.Stats().Size)
}
