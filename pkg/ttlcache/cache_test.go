package ttlcache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeClock struct{ t time.Time }

func (f *fakeClock) Now() time.Time          { return f.t }
func (f *fakeClock) Advance(d time.Duration) { f.t = f.t.Add(d) }

func TestGetWithinTTL(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1000, 0)}
	c := New[string, bool](30*time.Second, WithClock(clock.Now))

	c.Set("a-b", true)
	clock.Advance(29 * time.Second)

	v, ok := c.Get("a-b")
	assert.True(t, ok)
	assert.True(t, v)
	assert.Equal(t, int64(1), c.Stats().Hits)
}

func TestExpiredEntryIsMiss(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1000, 0)}
	c := New[string, bool](30*time.Second, WithClock(clock.Now))

	c.Set("a-b", true)
	clock.Advance(30 * time.Second)

	_, ok := c.Get("a-b")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len())
	assert.Equal(t, int64(1), c.Stats().Evictions)
}

func TestSetRestartsTTL(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1000, 0)}
	c := New[string, int](10*time.Second, WithClock(clock.Now))

	c.Set("k", 1)
	clock.Advance(8 * time.Second)
	c.Set("k", 2)
	clock.Advance(8 * time.Second)

	v, ok := c.Get("k")
	assert.True(t, ok)
	assert.Equal(t, 2, v)
}

func TestInvalidateAndPurge(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1000, 0)}
	c := New[int, string](time.Minute, WithClock(clock.Now))

	c.Set(1, "one")
	c.Set(2, "two")
	c.Invalidate(1)
	c.Invalidate(42)
	_, ok := c.Get(1)
	assert.False(t, ok)

	clock.Advance(30 * time.Second)
	c.Set(3, "three")
	clock.Advance(31 * time.Second)

	assert.Equal(t, 1, c.Purge())
	assert.Equal(t, 1, c.Len())
	v, ok := c.Get(3)
	assert.True(t, ok)
	assert.Equal(t, "three", v)

	c.Clear()
	assert.Equal(t, 0, c.Len())
}
