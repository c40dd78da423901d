package cache

import (
	"testing"
	"time"

	"github.com/steadyfetch/steadyfetch/models"
)

func TestCacheHitAndMiss(t *testing.T) {
	c := New(10)
	defer c.Stop()

	key := Key("https://example.com", "markdown", "readability", "")
	resp := &models.ScrapeResponse{Success: true, Content: "hello"}

	if _, hit := c.Get(key, 60000); hit {
		t.Error("expected miss on empty cache")
	}

	c.Set(key, resp)

	got, hit := c.Get(key, 60000)
	if !hit {
		t.Fatal("expected hit after Set")
	}
	if got.Content != "hello" {
		t.Errorf("Content = %q, want %q", got.Content, "hello")
	}
}

func TestCacheMaxAgeZeroDisablesLookup(t *testing.T) {
	c := New(10)
	defer c.Stop()

	key := Key("https://example.com", "markdown", "readability", "")
	c.Set(key, &models.ScrapeResponse{Success: true})

	if _, hit := c.Get(key, 0); hit {
		t.Error("maxAge 0 should never hit")
	}
}

func TestCacheExpiry(t *testing.T) {
	c := New(10)
	defer c.Stop()

	key := Key("https://example.com", "markdown", "readability", "")
	c.Set(key, &models.ScrapeResponse{Success: true})

	time.Sleep(15 * time.Millisecond)
	if _, hit := c.Get(key, 10); hit {
		t.Error("entry older than maxAge should miss")
	}
}

func TestCacheCapacityEviction(t *testing.T) {
	c := New(2)
	defer c.Stop()

	c.Set("a", &models.ScrapeResponse{})
	c.Set("b", &models.ScrapeResponse{})
	c.Set("c", &models.ScrapeResponse{})

	c.mu.RLock()
	size := len(c.store)
	c.mu.RUnlock()
	if size > 2 {
		t.Errorf("cache size = %d, want <= 2", size)
	}
}

func TestKeyVariesWithOptions(t *testing.T) {
	base := Key("https://example.com", "markdown", "readability", "")
	if Key("https://example.com", "html", "readability", "") == base {
		t.Error("key should vary with output format")
	}
	if Key("https://example.com", "markdown", "raw", "") == base {
		t.Error("key should vary with extract mode")
	}
	if Key("https://example.com", "markdown", "readability", "article") == base {
		t.Error("key should vary with css selector")
	}
}
