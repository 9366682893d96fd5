package schema

import "sync"

// Cache holds parsed descriptors for the lifetime of the process. An admin
// session runs against a single process, so entries stay valid for the whole
// session. There is no invalidation: a descriptor edited on disk is only
// picked up after a restart.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]*Descriptor
}

func NewCache() *Cache {
	return &Cache{entries: make(map[string]*Descriptor)}
}

func (c *Cache) Get(table string) (*Descriptor, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	d, ok := c.entries[table]
	return d, ok
}

// Put stores d unless another caller stored the same table first, and
// returns whichever descriptor ends up cached.
func (c *Cache) Put(table string, d *Descriptor) *Descriptor {
	c.mu.Lock()
	defer c.mu.Unlock()
	if existing, ok := c.entries[table]; ok {
		return existing
	}
	c.entries[table] = d
	return d
}

func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
