// Package cache provides an in-memory response cache keyed by URL and
// pipeline options, with client-controlled freshness via max_age.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"

	"github.com/steadyfetch/steadyfetch/models"
)

type entry struct {
	response  *models.ScrapeResponse
	createdAt time.Time
}

// Cache is a concurrency-safe in-memory cache for scrape responses.
type Cache struct {
	mu         sync.RWMutex
	store      map[string]*entry
	maxEntries int
	done       chan struct{}
}

// New creates a Cache holding at most maxEntries responses. A background
// goroutine evicts entries older than an hour every 5 minutes.
func New(maxEntries int) *Cache {
	c := &Cache{
		store:      make(map[string]*entry),
		maxEntries: maxEntries,
		done:       make(chan struct{}),
	}
	go c.cleanupLoop()
	return c
}

// Key derives a cache key from the URL and the pipeline options that change
// the output.
func Key(url, outputFormat, extractMode, cssSelector string) string {
	h := sha256.New()
	h.Write([]byte(url))
	h.Write([]byte("|"))
	h.Write([]byte(outputFormat))
	h.Write([]byte("|"))
	h.Write([]byte(extractMode))
	h.Write([]byte("|"))
	h.Write([]byte(cssSelector))
	return hex.EncodeToString(h.Sum(nil))
}

// Get returns a cached response younger than maxAgeMs milliseconds.
// maxAgeMs <= 0 disables the lookup entirely.
func (c *Cache) Get(key string, maxAgeMs int) (*models.ScrapeResponse, bool) {
	if maxAgeMs <= 0 {
		return nil, false
	}

	c.mu.RLock()
	e, ok := c.store[key]
	c.mu.RUnlock()

	if !ok {
		return nil, false
	}
	if time.Since(e.createdAt) > time.Duration(maxAgeMs)*time.Millisecond {
		return nil, false
	}
	return e.response, true
}

// Set stores a response. At capacity, one arbitrary entry is evicted (map
// iteration order is random).
func (c *Cache) Set(key string, resp *models.ScrapeResponse) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.store) >= c.maxEntries {
		for k := range c.store {
			delete(c.store, k)
			break
		}
	}
	c.store[key] = &entry{
		response:  resp,
		createdAt: time.Now(),
	}
}

// Stop terminates the background cleanup goroutine.
func (c *Cache) Stop() {
	close(c.done)
}

func (c *Cache) cleanupLoop() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			cutoff := time.Now().Add(-1 * time.Hour)
			c.mu.Lock()
			for k, e := range c.store {
				if e.createdAt.Before(cutoff) {
					delete(c.store, k)
				}
			}
			c.mu.Unlock()
		}
	}
}
