// Package interact drives in-page interaction loops (network-idle waiting,
// infinite scroll, and click-to-load-more pagination) through bounded
// polling. Every loop is capped by both an iteration ceiling and a wall-clock
// timeout and reports how it stopped via a closed reason enumeration.
package interact

import (
	"context"
	"time"

	"github.com/ysmood/gson"
)

// Tab is the single page capability the interaction controllers need: run a
// JavaScript function in the page and get its JSON result back. The scraper
// package adapts a rod page to this interface; tests use scripted fakes.
type Tab interface {
	Eval(ctx context.Context, js string) (gson.JSON, error)
}

// sleepCtx suspends for d or until the context is cancelled, whichever comes
// first. All inter-poll delays go through this so a caller-level deadline can
// abort an in-flight loop promptly instead of waiting out the full budget.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
