package pdf

import (
	"fmt"
	"os"
	"sync"
)

// documentCacheSize is the number of structured documents kept in memory
const documentCacheSize = 16

// documentCache keeps the most recently structured documents. Entries are
// keyed by resolved path and replaced when the file's size or
// modification time changes.
type documentCache struct {
	mu       sync.Mutex
	capacity int
	items    map[string]*cacheNode
	head     *cacheNode // most recently used
	tail     *cacheNode // least recently used
	hits     int64
	misses   int64
}

type cacheNode struct {
	path    string
	version string
	value   *staged
	prev    *cacheNode
	next    *cacheNode
}

// CacheStats reports document cache usage
type CacheStats struct {
	Hits     int64 `json:"hits"`
	Misses   int64 `json:"misses"`
	Size     int   `json:"size"`
	Capacity int   `json:"capacity"`
}

func newDocumentCache(capacity int) *documentCache {
	if capacity <= 0 {
		capacity = documentCacheSize
	}
	c := &documentCache{
		capacity: capacity,
		items:    make(map[string]*cacheNode),
		head:     &cacheNode{},
		tail:     &cacheNode{},
	}
	c.head.next = c.tail
	c.tail.prev = c.head
	return c
}

// fileVersion identifies the file contents at path; ok is false when the
// file cannot be stat'ed, in which case nothing is cached.
func fileVersion(path string) (string, bool) {
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return "", false
	}
	return fmt.Sprintf("%d:%d", info.Size(), info.ModTime().UnixNano()), true
}

func (c *documentCache) get(path, version string) (*staged, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	node, ok := c.items[path]
	if !ok || node.version != version {
		c.misses++
		return nil, false
	}
	c.moveToFront(node)
	c.hits++
	return node.value, true
}

func (c *documentCache) put(path, version string, value *staged) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if node, ok := c.items[path]; ok {
		node.version = version
		node.value = value
		c.moveToFront(node)
		return
	}

	node := &cacheNode{path: path, version: version, value: value}
	c.addToFront(node)
	c.items[path] = node
	if len(c.items) > c.capacity {
		lru := c.tail.prev
		c.removeNode(lru)
		delete(c.items, lru.path)
	}
}

func (c *documentCache) remove(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if node, ok := c.items[path]; ok {
		c.removeNode(node)
		delete(c.items, path)
	}
}

func (c *documentCache) stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return CacheStats{Hits: c.hits, Misses: c.misses, Size: len(c.items), Capacity: c.capacity}
}

func (c *documentCache) moveToFront(node *cacheNode) {
	c.removeNode(node)
	c.addToFront(node)
}

func (c *documentCache) addToFront(node *cacheNode) {
	node.prev = c.head
	node.next = c.head.next
	c.head.next.prev = node
	c.head.next = node
}

func (c *documentCache) removeNode(node *cacheNode) {
	node.prev.next = node.next
	node.next.prev = node.prev
}
