// Package views caches rendered read views and drops them when a write
// makes them stale.
package views

import (
	"container/list"
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// View names. They match the routes that render them.
const (
	Dashboard = "/"
	History   = "/history"
	Trends    = "/trends"
)

// Derived lists every view computed from transactions.
var Derived = []string{Dashboard, History, Trends}

// Entry is a cached rendered response.
type Entry struct {
	ContentType string
	Body        []byte
	Status      int
}

type cacheItem struct {
	expiresAt time.Time
	key       string
	view      string
	entry     Entry
}

// Cache is an LRU of rendered views with a TTL. It implements
// service.Revalidator.
type Cache struct {
	items   map[string]*list.Element
	lru     *list.List
	now     func() time.Time
	ttl     time.Duration
	maxSize int
	mu      sync.Mutex
}

// NewCache creates a cache holding at most maxSize entries for ttl each.
func NewCache(maxSize int, ttl time.Duration) *Cache {
	if maxSize <= 0 {
		maxSize = 1
	}
	return &Cache{
		maxSize: maxSize,
		ttl:     ttl,
		items:   make(map[string]*list.Element),
		lru:     list.New(),
		now:     time.Now,
	}
}

// Key builds the cache key of one rendering of view for one user.
func Key(view, user, variant string) string {
	return view + "|" + user + "|" + variant
}

// Get retrieves a rendered view.
func (c *Cache) Get(key string) (Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.items[key]
	if !ok {
		return Entry{}, false
	}

	item := elem.Value.(*cacheItem)
	if c.now().After(item.expiresAt) {
		c.removeElement(elem)
		return Entry{}, false
	}

	c.lru.MoveToFront(elem)
	return item.entry, true
}

// Set stores a rendered view under key.
func (c *Cache) Set(view, key string, entry Entry) {
	c.mu.Lock()
	defer c.mu.Unlock()

	item := &cacheItem{
		key:       key,
		view:      view,
		entry:     entry,
		expiresAt: c.now().Add(c.ttl),
	}

	if elem, ok := c.items[key]; ok {
		elem.Value = item
		c.lru.MoveToFront(elem)
		return
	}

	c.items[key] = c.lru.PushFront(item)

	if c.lru.Len() > c.maxSize {
		if oldest := c.lru.Back(); oldest != nil {
			c.removeElement(oldest)
		}
	}
}

// Revalidate drops every cached rendering of the named views.
func (c *Cache) Revalidate(ctx context.Context, views ...string) {
	if len(views) == 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	stale := make(map[string]bool, len(views))
	for _, v := range views {
		stale[v] = true
	}

	removed := 0
	for elem := c.lru.Front(); elem != nil; {
		next := elem.Next()
		if stale[elem.Value.(*cacheItem).view] {
			c.removeElement(elem)
			removed++
		}
		elem = next
	}

	slog.DebugContext(ctx, "revalidated views", "views", strings.Join(views, ","), "removed", removed)
}

// Len returns the number of cached entries, expired ones included.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

func (c *Cache) removeElement(elem *list.Element) {
	item := elem.Value.(*cacheItem)
	delete(c.items, item.key)
	c.lru.Remove(elem)
}
