package engine

import (
	"context"
	"fmt"
)

// BrowserFetchFunc wraps the scraper's browser-based fetch. It is injected
// from main.go to avoid a circular import (engine -> scraper).
type BrowserFetchFunc func(ctx context.Context, req *FetchRequest) (*FetchResult, error)

// BrowserEngine is a Chromium-backed engine. With forceStealth it becomes the
// heaviest tier, always fetching with stealth page injection.
type BrowserEngine struct {
	fetchFunc    BrowserFetchFunc
	forceStealth bool
	name         string
}

// NewBrowserEngine creates a BrowserEngine delegating to fetchFunc.
func NewBrowserEngine(fetchFunc BrowserFetchFunc, forceStealth bool) *BrowserEngine {
	name := "browser"
	if forceStealth {
		name = "browser-stealth"
	}
	return &BrowserEngine{
		fetchFunc:    fetchFunc,
		forceStealth: forceStealth,
		name:         name,
	}
}

func (e *BrowserEngine) Name() string { return e.name }

func (e *BrowserEngine) Fetch(ctx context.Context, req *FetchRequest) (*FetchResult, error) {
	if e.fetchFunc == nil {
		return nil, fmt.Errorf("%s: fetchFunc not configured", e.name)
	}

	// Clone so the caller's request is not mutated.
	r := *req
	if e.forceStealth {
		r.Stealth = true
	}

	result, err := e.fetchFunc(ctx, &r)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", e.name, err)
	}

	result.EngineName = e.name
	return result, nil
}
