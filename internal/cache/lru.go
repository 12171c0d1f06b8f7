package cache

// lruOnInsertUnlocked - is unsafe without c.mu due to it mutates the list.
func (c *Cache[V]) lruOnInsertUnlocked(e *entry[V]) {
	c.stampUnlocked(e)
	if e.el != nil {
		c.lru.MoveToFront(e.el)
		return
	}
	e.el = c.lru.PushFront(e)
}

// lruOnAccessUnlocked - is unsafe without c.mu due to it mutates the list.
func (c *Cache[V]) lruOnAccessUnlocked(e *entry[V]) {
	c.stampUnlocked(e)
	if e.el != nil {
		c.lru.MoveToFront(e.el)
	}
}

// lruOnDeleteUnlocked - is unsafe without c.mu due to it mutates the list.
func (c *Cache[V]) lruOnDeleteUnlocked(e *entry[V]) {
	if e.el != nil {
		c.lru.Remove(e.el)
		e.el = nil
	}
}

func (c *Cache[V]) lruPopTailUnlocked() (*entry[V], bool) {
	el := c.lru.Back()
	if el == nil {
		return nil, false
	}
	e := c.lru.Remove(el).(*entry[V])
	e.el = nil
	return e, true
}

// stampUnlocked gives the entry a fresh position in the (accessed, seq) ordering.
func (c *Cache[V]) stampUnlocked(e *entry[V]) {
	c.seq++
	e.seq = c.seq
	e.accessed = c.now()
}
