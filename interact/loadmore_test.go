package interact

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ysmood/gson"
)

func clickResp(found, clicked, disabled bool) gson.JSON {
	return gson.New(map[string]any{"found": found, "clicked": clicked, "disabled": disabled})
}

func probeSeq(values ...int) func(int) (gson.JSON, error) {
	return func(call int) (gson.JSON, error) {
		if call >= len(values) {
			call = len(values) - 1
		}
		return gson.New(values[call]), nil
	}
}

func TestClickLoadMoreControlAbsent(t *testing.T) {
	tab := newFakeTab(t)
	tab.on(kindSizeProbe, num(100))
	tab.on(kindClick, func(int) (gson.JSON, error) { return clickResp(false, false, false), nil })

	res, err := ClickLoadMore(context.Background(), tab, ".load-more", LoadMoreConfig{
		MaxClicks:             10,
		MaxNoChangeIterations: 2,
		StopIfNoChange:        true,
	})
	if err != nil {
		t.Fatalf("ClickLoadMore: %v", err)
	}
	if res.Clicks != 0 {
		t.Errorf("Clicks = %d, want 0", res.Clicks)
	}
	if res.Reason != LoadMoreReasonNotFound {
		t.Errorf("Reason = %q, want %q", res.Reason, LoadMoreReasonNotFound)
	}
}

func TestClickLoadMoreControlDisabled(t *testing.T) {
	tab := newFakeTab(t)
	tab.on(kindSizeProbe, num(100))
	tab.on(kindClick, func(int) (gson.JSON, error) { return clickResp(true, false, true), nil })

	res, err := ClickLoadMore(context.Background(), tab, "#more", LoadMoreConfig{
		MaxClicks:             10,
		MaxNoChangeIterations: 2,
		StopIfNoChange:        true,
	})
	if err != nil {
		t.Fatalf("ClickLoadMore: %v", err)
	}
	if res.Clicks != 0 || res.Reason != LoadMoreReasonDisabled {
		t.Errorf("got %+v, want 0 clicks with reason %q", res, LoadMoreReasonDisabled)
	}
}

func TestClickLoadMoreControlDisablesAfterClicks(t *testing.T) {
	tab := newFakeTab(t)
	tab.on(kindSizeProbe, func(call int) (gson.JSON, error) { return gson.New(100 * (call + 1)), nil })
	tab.on(kindClick, func(call int) (gson.JSON, error) {
		if call < 2 {
			return clickResp(true, true, false), nil
		}
		return clickResp(true, false, true), nil
	})

	res, err := ClickLoadMore(context.Background(), tab, "#more", LoadMoreConfig{
		MaxClicks:             10,
		MaxNoChangeIterations: 2,
		StopIfNoChange:        true,
	})
	if err != nil {
		t.Fatalf("ClickLoadMore: %v", err)
	}
	if res.Clicks != 2 {
		t.Errorf("Clicks = %d, want 2", res.Clicks)
	}
	if res.Reason != LoadMoreReasonDisabled {
		t.Errorf("Reason = %q, want %q", res.Reason, LoadMoreReasonDisabled)
	}
}

func TestClickLoadMoreStopsAtMaxClicks(t *testing.T) {
	tab := newFakeTab(t)
	// Content keeps growing so the no-change stop never fires.
	tab.on(kindSizeProbe, func(call int) (gson.JSON, error) { return gson.New(100 * (call + 1)), nil })
	tab.on(kindClick, func(int) (gson.JSON, error) { return clickResp(true, true, false), nil })

	res, err := ClickLoadMore(context.Background(), tab, "#more", LoadMoreConfig{
		MaxClicks:             3,
		MaxNoChangeIterations: 2,
		StopIfNoChange:        true,
	})
	if err != nil {
		t.Fatalf("ClickLoadMore: %v", err)
	}
	if res.Clicks != 3 {
		t.Errorf("Clicks = %d, want exactly 3", res.Clicks)
	}
	if res.Reason != LoadMoreReasonMaxClicks {
		t.Errorf("Reason = %q, want %q", res.Reason, LoadMoreReasonMaxClicks)
	}
}

func TestClickLoadMoreStopsOnNoChange(t *testing.T) {
	tab := newFakeTab(t)
	tab.on(kindSizeProbe, num(100))
	tab.on(kindClick, func(int) (gson.JSON, error) { return clickResp(true, true, false), nil })

	res, err := ClickLoadMore(context.Background(), tab, "#more", LoadMoreConfig{
		MaxClicks:             10,
		MaxNoChangeIterations: 2,
		StopIfNoChange:        true,
	})
	if err != nil {
		t.Fatalf("ClickLoadMore: %v", err)
	}
	if res.Clicks != 2 {
		t.Errorf("Clicks = %d, want 2", res.Clicks)
	}
	if res.Reason != LoadMoreReasonNoChange {
		t.Errorf("Reason = %q, want %q", res.Reason, LoadMoreReasonNoChange)
	}
}

func TestClickLoadMoreNoChangeCounterResets(t *testing.T) {
	tab := newFakeTab(t)
	// One stalled click, then growth, then two stalled clicks in a row.
	tab.on(kindSizeProbe, probeSeq(100, 100, 100, 180, 180, 180, 180, 180))
	tab.on(kindClick, func(int) (gson.JSON, error) { return clickResp(true, true, false), nil })

	res, err := ClickLoadMore(context.Background(), tab, "#more", LoadMoreConfig{
		MaxClicks:             10,
		MaxNoChangeIterations: 2,
		StopIfNoChange:        true,
	})
	if err != nil {
		t.Fatalf("ClickLoadMore: %v", err)
	}
	if res.Clicks != 4 {
		t.Errorf("Clicks = %d, want 4", res.Clicks)
	}
	if res.Reason != LoadMoreReasonNoChange {
		t.Errorf("Reason = %q, want %q", res.Reason, LoadMoreReasonNoChange)
	}
}

func TestClickLoadMoreNoChangeDisabledRunsToMaxClicks(t *testing.T) {
	tab := newFakeTab(t)
	tab.on(kindSizeProbe, num(100))
	tab.on(kindClick, func(int) (gson.JSON, error) { return clickResp(true, true, false), nil })

	res, err := ClickLoadMore(context.Background(), tab, "#more", LoadMoreConfig{
		MaxClicks:             2,
		MaxNoChangeIterations: 1,
		StopIfNoChange:        false,
	})
	if err != nil {
		t.Fatalf("ClickLoadMore: %v", err)
	}
	if res.Clicks != 2 || res.Reason != LoadMoreReasonMaxClicks {
		t.Errorf("got %+v, want 2 clicks with reason %q", res, LoadMoreReasonMaxClicks)
	}
}

func TestClickLoadMoreWaitsForNetworkIdleAfterClick(t *testing.T) {
	tab := newFakeTab(t)
	tab.on(kindSizeProbe, num(100))
	tab.on(kindClick, func(int) (gson.JSON, error) { return clickResp(true, true, false), nil })
	tab.on(kindTracker, ok())
	tab.on(kindIdleProbe, quietProbe(1000))

	res, err := ClickLoadMore(context.Background(), tab, "#more", LoadMoreConfig{
		MaxClicks: 10,
		NetworkIdle: &NetworkIdleConfig{
			IdleTime:     time.Millisecond,
			Timeout:      time.Second,
			PollInterval: time.Millisecond,
			MaxPolls:     5,
		},
		MaxNoChangeIterations: 1,
		StopIfNoChange:        true,
	})
	if err != nil {
		t.Fatalf("ClickLoadMore: %v", err)
	}
	if res.Reason != LoadMoreReasonNoChange {
		t.Errorf("Reason = %q, want %q", res.Reason, LoadMoreReasonNoChange)
	}
	if !tab.sawKind(kindTracker) || !tab.sawKind(kindIdleProbe) {
		t.Errorf("network-idle wait not observed between click and probe, log: %v", tab.log)
	}
}

func TestClickLoadMoreHeightProbeSelector(t *testing.T) {
	tab := newFakeTab(t)
	tab.on(kindSizeProbe, num(100))
	tab.on(kindClick, func(int) (gson.JSON, error) { return clickResp(false, false, false), nil })

	res, err := ClickLoadMore(context.Background(), tab, "#more", LoadMoreConfig{
		MaxClicks:             10,
		HeightProbeSelector:   "#feed",
		MaxNoChangeIterations: 2,
		StopIfNoChange:        true,
	})
	if err != nil {
		t.Fatalf("ClickLoadMore: %v", err)
	}
	if res.Reason != LoadMoreReasonNotFound {
		t.Errorf("Reason = %q, want %q", res.Reason, LoadMoreReasonNotFound)
	}
}

func TestClickLoadMoreContextDeadlineBoundsTheLoop(t *testing.T) {
	tab := newFakeTab(t)
	// Endless clickable control over static content with the no-change stop
	// off: only the deadline can end this loop.
	tab.on(kindSizeProbe, num(100))
	tab.on(kindClick, func(int) (gson.JSON, error) { return clickResp(true, true, false), nil })

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	res, err := ClickLoadMore(ctx, tab, "#more", LoadMoreConfig{
		MaxClicks:             1 << 20,
		AfterClickDelay:       5 * time.Millisecond,
		MaxNoChangeIterations: 1,
		StopIfNoChange:        false,
	})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want context.DeadlineExceeded", err)
	}
	if res != nil {
		t.Errorf("result = %+v, want nil on deadline", res)
	}
}

func TestClickLoadMoreClickEvalFailure(t *testing.T) {
	evalErr := errors.New("evaluation failed")
	tab := newFakeTab(t)
	tab.on(kindSizeProbe, num(100))
	tab.on(kindClick, func(int) (gson.JSON, error) { return gson.JSON{}, evalErr })

	res, err := ClickLoadMore(context.Background(), tab, "#more", LoadMoreConfig{
		MaxClicks:             10,
		MaxNoChangeIterations: 2,
		StopIfNoChange:        true,
	})
	if !errors.Is(err, evalErr) {
		t.Fatalf("err = %v, want wrapped %v", err, evalErr)
	}
	if res != nil {
		t.Errorf("result = %+v, want nil on eval failure", res)
	}
}
