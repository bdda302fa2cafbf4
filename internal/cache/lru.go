package cache

import (
	"container/list"
	"context"
	"sync"
	"time"
)

// LRU is a size-bounded in-process cache with per-entry expiry.
type LRU struct {
	mu    sync.Mutex
	cap   int
	ll    *list.List               // most-recent at front
	items map[string]*list.Element // key -> element
	now   func() time.Time
}

type entry struct {
	key string
	val []byte
	exp time.Time
}

func NewLRU(maxKeys int) *LRU {
	if maxKeys <= 0 {
		maxKeys = 5000
	}
	return &LRU{cap: maxKeys, ll: list.New(), items: make(map[string]*list.Element, maxKeys), now: time.Now}
}

func (c *LRU) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	el, ok := c.items[key]
	if !ok {
		return nil, false, nil
	}
	en := el.Value.(*entry)
	if !c.now().Before(en.exp) {
		c.ll.Remove(el)
		delete(c.items, key)
		return nil, false, nil
	}
	c.ll.MoveToFront(el)
	return en.val, true, nil
}

func (c *LRU) Set(_ context.Context, key string, val []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	exp := c.now().Add(ttl)
	if el, ok := c.items[key]; ok {
		en := el.Value.(*entry)
		en.val, en.exp = val, exp
		c.ll.MoveToFront(el)
		return nil
	}
	c.items[key] = c.ll.PushFront(&entry{key: key, val: val, exp: exp})
	for c.ll.Len() > c.cap {
		c.removeLocked(c.ll.Back())
	}
	return nil
}

func (c *LRU) Cleanup(_ context.Context) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	n := 0
	for el := c.ll.Back(); el != nil; {
		prev := el.Prev()
		if !now.Before(el.Value.(*entry).exp) {
			c.removeLocked(el)
			n++
		}
		el = prev
	}
	return n, nil
}

// Close drops every entry.
func (c *LRU) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ll.Init()
	clear(c.items)
	return nil
}

// Len reports the number of stored entries, expired or not.
func (c *LRU) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ll.Len()
}

func (c *LRU) removeLocked(el *list.Element) {
	if el == nil {
		return
	}
	c.ll.Remove(el)
	delete(c.items, el.Value.(*entry).key)
}
