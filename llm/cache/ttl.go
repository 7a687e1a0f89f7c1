package cache

import (
	"sync"
	"time"
)

// DefaultTTL 客户端实例级缓存（图片 base64、工具名映射）的过期时间。
const DefaultTTL = 5 * time.Minute

// TTLCache is a bounded key→(value, insertedAt) cache with pull-based expiry:
// entries are checked on lookup, there is no background sweeper.
// When full, the least recently used entry is evicted.
type TTLCache[V any] struct {
	mu       sync.Mutex
	capacity int
	ttl      time.Duration
	now      func() time.Time
	items    map[string]*ttlNode[V]
	head     *ttlNode[V] // 最近使用
	tail     *ttlNode[V] // 最久未使用
}

type ttlNode[V any] struct {
	key        string
	value      V
	insertedAt time.Time
	prev       *ttlNode[V]
	next       *ttlNode[V]
}

// NewTTLCache creates a cache. capacity <= 0 means unbounded; ttl <= 0 uses DefaultTTL.
func NewTTLCache[V any](capacity int, ttl time.Duration) *TTLCache[V] {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &TTLCache[V]{
		capacity: capacity,
		ttl:      ttl,
		now:      time.Now,
		items:    make(map[string]*ttlNode[V]),
	}
}

// SetClock replaces the time source; intended for tests.
func (c *TTLCache[V]) SetClock(now func() time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
}

// Get returns the value if present and not expired. Expired entries are dropped.
func (c *TTLCache[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	node, ok := c.items[key]
	if !ok {
		return zero, false
	}
	if c.now().Sub(node.insertedAt) >= c.ttl {
		c.removeNode(node)
		delete(c.items, key)
		return zero, false
	}
	c.moveToHead(node)
	return node.value, true
}

// Set inserts or overwrites key. Overwrites refresh insertedAt.
func (c *TTLCache[V]) Set(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if node, ok := c.items[key]; ok {
		node.value = value
		node.insertedAt = c.now()
		c.moveToHead(node)
		return
	}
	if c.capacity > 0 && len(c.items) >= c.capacity {
		c.evictTail()
	}
	node := &ttlNode[V]{key: key, value: value, insertedAt: c.now()}
	c.items[key] = node
	c.addToHead(node)
}

// Delete removes key.
func (c *TTLCache[V]) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if node, ok := c.items[key]; ok {
		c.removeNode(node)
		delete(c.items, key)
	}
}

// Len returns the number of stored entries, expired ones included until looked up.
func (c *TTLCache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

func (c *TTLCache[V]) addToHead(node *ttlNode[V]) {
	node.prev = nil
	node.next = c.head
	if c.head != nil {
		c.head.prev = node
	}
	c.head = node
	if c.tail == nil {
		c.tail = node
	}
}

func (c *TTLCache[V]) removeNode(node *ttlNode[V]) {
	if node.prev != nil {
		node.prev.next = node.next
	} else {
		c.head = node.next
	}
	if node.next != nil {
		node.next.prev = node.prev
	} else {
		c.tail = node.prev
	}
}

func (c *TTLCache[V]) moveToHead(node *ttlNode[V]) {
	if node == c.head {
		return
	}
	c.removeNode(node)
	c.addToHead(node)
}

func (c *TTLCache[V]) evictTail() {
	if c.tail == nil {
		return
	}
	delete(c.items, c.tail.key)
	c.removeNode(c.tail)
}
