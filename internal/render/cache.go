package render

import (
	"html/template"
	"log"

	lru "github.com/hashicorp/golang-lru/v2"
)

// htmlCache keeps rendered post bodies. Posts are immutable, so entries only
// leave on eviction or when the post is deleted.
type htmlCache struct {
	lruCache *lru.Cache[string, template.HTML]
}

func newHTMLCache(size int) *htmlCache {
	l, err := lru.New[string, template.HTML](size)
	if err != nil {
		log.Fatalf("Failed to create LRU cache: %v", err)
	}
	return &htmlCache{lruCache: l}
}

func (c *htmlCache) Get(key string) (template.HTML, bool) {
	return c.lruCache.Get(key)
}

func (c *htmlCache) Set(key string, html template.HTML) {
	c.lruCache.Add(key, html)
}

func (c *htmlCache) Delete(key string) {
	c.lruCache.Remove(key)
}

func (c *htmlCache) Len() int {
	return c.lruCache.Len()
}
