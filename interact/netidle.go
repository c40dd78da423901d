package interact

import (
	"context"
	"fmt"
	"time"
)

// NetworkIdleReason says how a network-idle wait stopped.
type NetworkIdleReason string

const (
	IdleReasonIdle     NetworkIdleReason = "idle"
	IdleReasonTimeout  NetworkIdleReason = "timeout"
	IdleReasonMaxPolls NetworkIdleReason = "maxPolls"
)

// NetworkIdleResult reports the outcome of a network-idle wait. Exhausting a
// budget is not an error — the reason tells the caller what bound fired.
type NetworkIdleResult struct {
	Idle   bool
	Waited time.Duration
	Polls  int
	Reason NetworkIdleReason
}

// networkIdleTrackerJS patches fetch and XMLHttpRequest in the page context
// so subsequent probes can read in-flight counts and the last activity
// timestamp. Idempotent: re-running it on an already-instrumented page is a
// no-op.
const networkIdleTrackerJS = `() => {
	if (window.__netIdleTracker) return true;
	const t = { inFlight: 0, last: Date.now() };
	window.__netIdleTracker = t;
	const touch = () => { t.last = Date.now(); };
	const done = () => { t.inFlight = Math.max(0, t.inFlight - 1); touch(); };

	const origFetch = window.fetch;
	if (origFetch) {
		window.fetch = function(...args) {
			t.inFlight++; touch();
			return origFetch.apply(this, args).then(
				r => { done(); return r; },
				e => { done(); throw e; }
			);
		};
	}

	const origOpen = XMLHttpRequest.prototype.open;
	XMLHttpRequest.prototype.open = function(...args) {
		this.addEventListener('loadstart', () => { t.inFlight++; touch(); });
		this.addEventListener('loadend', done);
		return origOpen.apply(this, args);
	};
	return true;
}`

// networkIdleProbeJS reads the tracker state together with the page clock so
// the quiet-period comparison uses a single time base.
const networkIdleProbeJS = `() => {
	const t = window.__netIdleTracker || { inFlight: 0, last: 0 };
	return { inFlight: t.inFlight, lastActivityTs: t.last, nowTs: Date.now() };
}`

// WaitForNetworkIdle polls the page until no network activity has been seen
// for cfg.IdleTime, or a budget runs out. The first call on a tab installs
// the activity tracker; each subsequent probe is separated by
// cfg.PollInterval of suspended waiting.
//
// A tab evaluation failure aborts the wait and is returned as an error; the
// caller decides whether that fails the whole attempt.
func WaitForNetworkIdle(ctx context.Context, tab Tab, cfg NetworkIdleConfig) (*NetworkIdleResult, error) {
	start := time.Now()

	if _, err := tab.Eval(ctx, networkIdleTrackerJS); err != nil {
		return nil, fmt.Errorf("interact: install network tracker: %w", err)
	}

	res := &NetworkIdleResult{}
	for {
		if res.Polls >= cfg.MaxPolls {
			res.Reason = IdleReasonMaxPolls
			break
		}
		if time.Since(start) >= cfg.Timeout {
			res.Reason = IdleReasonTimeout
			break
		}

		if err := sleepCtx(ctx, cfg.PollInterval); err != nil {
			return nil, err
		}

		probe, err := tab.Eval(ctx, networkIdleProbeJS)
		if err != nil {
			return nil, fmt.Errorf("interact: network probe: %w", err)
		}
		res.Polls++

		inFlight := probe.Get("inFlight").Int()
		quiet := time.Duration(probe.Get("nowTs").Int()-probe.Get("lastActivityTs").Int()) * time.Millisecond
		if inFlight == 0 && quiet >= cfg.IdleTime {
			res.Idle = true
			res.Reason = IdleReasonIdle
			break
		}
	}

	res.Waited = time.Since(start)
	return res, nil
}
