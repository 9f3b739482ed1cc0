package views

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCacheGetSet(t *testing.T) {
	c := NewCache(10, time.Minute)
	key := Key(Dashboard, "user_1", "2024-03")

	_, ok := c.Get(key)
	assert.False(t, ok)

	c.Set(Dashboard, key, Entry{Status: 200, ContentType: "application/json", Body: []byte(`{}`)})
	got, ok := c.Get(key)
	assert.True(t, ok)
	assert.Equal(t, 200, got.Status)
	assert.Equal(t, `{}`, string(got.Body))
}

func TestCacheExpires(t *testing.T) {
	c := NewCache(10, time.Minute)
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	c.Set(History, "k", Entry{Status: 200})
	now = now.Add(2 * time.Minute)

	_, ok := c.Get("k")
	assert.False(t, ok)
	assert.Zero(t, c.Len())
}

func TestCacheEvictsLeastRecentlyUsed(t *testing.T) {
	c := NewCache(2, time.Minute)
	c.Set(Dashboard, "a", Entry{})
	c.Set(Dashboard, "b", Entry{})
	_, _ = c.Get("a")
	c.Set(Dashboard, "c", Entry{})

	_, okA := c.Get("a")
	_, okB := c.Get("b")
	_, okC := c.Get("c")
	assert.True(t, okA)
	assert.False(t, okB)
	assert.True(t, okC)
}

func TestRevalidateDropsOnlyNamedViews(t *testing.T) {
	c := NewCache(10, time.Minute)
	c.Set(Dashboard, Key(Dashboard, "u1", ""), Entry{})
	c.Set(Dashboard, Key(Dashboard, "u2", ""), Entry{})
	c.Set(History, Key(History, "u1", "2024-01"), Entry{})
	c.Set(Trends, Key(Trends, "u1", "6"), Entry{})

	c.Revalidate(context.Background(), Dashboard, History)

	assert.Equal(t, 1, c.Len())
	_, ok := c.Get(Key(Trends, "u1", "6"))
	assert.True(t, ok)
}

type recorder struct {
	views []string
}

func (r *recorder) Revalidate(_ context.Context, views ...string) {
	r.views = append(r.views, views...)
}

func TestFanout(t *testing.T) {
	a, b := &recorder{}, &recorder{}
	Fanout{a, nil, b, Nop{}}.Revalidate(context.Background(), Derived...)

	assert.Equal(t, Derived, a.views)
	assert.Equal(t, Derived, b.views)
}
