package interact

import (
	"context"
	"fmt"
	"time"
)

// ScrollReason says how a scroll-to-bottom loop stopped.
type ScrollReason string

const (
	ScrollReasonIdle          ScrollReason = "idle"
	ScrollReasonMaxIterations ScrollReason = "maxIterations"
	ScrollReasonTimeout       ScrollReason = "timeout"
)

// ScrollResult reports the outcome of a scroll loop.
type ScrollResult struct {
	Iterations        int
	Reason            ScrollReason
	FinalScrollHeight int
}

const scrollStepJS = `() => {
	window.scrollTo(0, document.documentElement.scrollHeight);
}`

const scrollMeasureJS = `() => ({
	scrollHeight: document.documentElement.scrollHeight,
	scrollY: window.scrollY,
	viewportHeight: window.innerHeight,
})`

// ScrollToBottom repeatedly scrolls the page to its current bottom and waits
// cfg.ScrollDelay before re-measuring. The loop stops once the scroll height
// has been unchanged for cfg.StableIterations consecutive readings, or when
// cfg.MaxIterations or cfg.Timeout is exhausted — so lazy-loading pages keep
// scrolling while they grow, up to the caps.
func ScrollToBottom(ctx context.Context, tab Tab, cfg ScrollConfig) (*ScrollResult, error) {
	start := time.Now()

	// Baseline height so the first iteration can already count as stable on
	// pages that never grow.
	baseline, err := tab.Eval(ctx, scrollMeasureJS)
	if err != nil {
		return nil, fmt.Errorf("interact: initial height reading: %w", err)
	}
	prevHeight := baseline.Get("scrollHeight").Int()

	res := &ScrollResult{FinalScrollHeight: prevHeight}
	stable := 0
	for {
		if res.Iterations >= cfg.MaxIterations {
			res.Reason = ScrollReasonMaxIterations
			return res, nil
		}
		if time.Since(start) >= cfg.Timeout {
			res.Reason = ScrollReasonTimeout
			return res, nil
		}

		if _, err := tab.Eval(ctx, scrollStepJS); err != nil {
			return nil, fmt.Errorf("interact: scroll step: %w", err)
		}
		if err := sleepCtx(ctx, cfg.ScrollDelay); err != nil {
			return nil, err
		}
		reading, err := tab.Eval(ctx, scrollMeasureJS)
		if err != nil {
			return nil, fmt.Errorf("interact: height reading: %w", err)
		}
		res.Iterations++

		height := reading.Get("scrollHeight").Int()
		res.FinalScrollHeight = height
		if height == prevHeight {
			stable++
		} else {
			stable = 0
		}
		prevHeight = height

		if stable >= cfg.StableIterations {
			res.Reason = ScrollReasonIdle
			return res, nil
		}
	}
}
