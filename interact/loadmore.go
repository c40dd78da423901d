package interact

import (
	"context"
	"fmt"
)

// LoadMoreReason says how a click-to-load-more loop stopped.
type LoadMoreReason string

const (
	LoadMoreReasonNotFound  LoadMoreReason = "notFound"
	LoadMoreReasonDisabled  LoadMoreReason = "disabled"
	LoadMoreReasonMaxClicks LoadMoreReason = "maxClicks"
	LoadMoreReasonNoChange  LoadMoreReason = "noChange"
)

// LoadMoreResult reports the outcome of a load-more loop. Clicks counts only
// iterations where a click actually landed.
type LoadMoreResult struct {
	Clicks int
	Reason LoadMoreReason
}

// loadMoreClickJS locates the control, reports its state, and clicks it when
// it is present and enabled.
const loadMoreClickJS = `() => {
	const el = document.querySelector(%q);
	if (!el) return { found: false, clicked: false, disabled: false };
	const disabled = el.disabled === true || el.getAttribute('aria-disabled') === 'true';
	if (disabled) return { found: true, clicked: false, disabled: true };
	el.click();
	return { found: true, clicked: true, disabled: false };
}`

const probeSelectorJS = `() => {
	const el = document.querySelector(%q);
	if (!el) return -1;
	return el.scrollHeight || el.childElementCount;
}`

const probeDocumentJS = `() => document.documentElement.scrollHeight`

// ClickLoadMore drives click-based pagination on the control matched by
// selector. Each iteration probes content size, clicks, optionally waits for
// network idle, suspends for cfg.AfterClickDelay, and probes again. Stop
// conditions, in order: control missing (notFound), control disabled
// (disabled), cfg.MaxClicks reached (maxClicks), or, with
// cfg.StopIfNoChange, the probe unchanged for cfg.MaxNoChangeIterations
// consecutive clicks (noChange). The loop carries no wall-clock timeout of
// its own; the ctx deadline is its time bound, and cancellation surfaces as
// an error from the in-flight wait or eval.
func ClickLoadMore(ctx context.Context, tab Tab, selector string, cfg LoadMoreConfig) (*LoadMoreResult, error) {
	clickJS := fmt.Sprintf(loadMoreClickJS, selector)
	probeJS := probeDocumentJS
	if cfg.HeightProbeSelector != "" {
		probeJS = fmt.Sprintf(probeSelectorJS, cfg.HeightProbeSelector)
	}

	res := &LoadMoreResult{}
	noChange := 0
	for {
		before, err := tab.Eval(ctx, probeJS)
		if err != nil {
			return nil, fmt.Errorf("interact: pre-click probe: %w", err)
		}

		click, err := tab.Eval(ctx, clickJS)
		if err != nil {
			return nil, fmt.Errorf("interact: load-more click: %w", err)
		}
		if !click.Get("found").Bool() {
			res.Reason = LoadMoreReasonNotFound
			return res, nil
		}
		if click.Get("disabled").Bool() {
			res.Reason = LoadMoreReasonDisabled
			return res, nil
		}
		if click.Get("clicked").Bool() {
			res.Clicks++
		}

		if cfg.NetworkIdle != nil {
			if _, err := WaitForNetworkIdle(ctx, tab, *cfg.NetworkIdle); err != nil {
				return nil, err
			}
		}
		if err := sleepCtx(ctx, cfg.AfterClickDelay); err != nil {
			return nil, err
		}

		after, err := tab.Eval(ctx, probeJS)
		if err != nil {
			return nil, fmt.Errorf("interact: post-click probe: %w", err)
		}

		if res.Clicks >= cfg.MaxClicks {
			res.Reason = LoadMoreReasonMaxClicks
			return res, nil
		}
		if cfg.StopIfNoChange {
			if after.Int() == before.Int() {
				noChange++
				if noChange >= cfg.MaxNoChangeIterations {
					res.Reason = LoadMoreReasonNoChange
					return res, nil
				}
			} else {
				noChange = 0
			}
		}
	}
}
