package interact

import (
	"testing"
	"time"
)

func intp(v int) *int    { return &v }
func boolp(v bool) *bool { return &v }

func TestNormalizeNetworkIdleConfigDefaults(t *testing.T) {
	for _, o := range []*NetworkIdleOptions{nil, {}} {
		cfg := NormalizeNetworkIdleConfig(o)
		if cfg.IdleTime != 500*time.Millisecond {
			t.Errorf("IdleTime = %v, want 500ms", cfg.IdleTime)
		}
		if cfg.Timeout != 15*time.Second {
			t.Errorf("Timeout = %v, want 15s", cfg.Timeout)
		}
		if cfg.PollInterval != 100*time.Millisecond {
			t.Errorf("PollInterval = %v, want 100ms", cfg.PollInterval)
		}
		if cfg.MaxPolls != 155 {
			t.Errorf("MaxPolls = %d, want 155", cfg.MaxPolls)
		}
	}
}

func TestNormalizeNetworkIdleConfigClamps(t *testing.T) {
	tests := []struct {
		name string
		opts NetworkIdleOptions
		want NetworkIdleConfig
	}{
		{
			name: "negative idle time clamps to zero",
			opts: NetworkIdleOptions{IdleTimeMs: intp(-1)},
			want: NetworkIdleConfig{IdleTime: 0, Timeout: 15 * time.Second, PollInterval: 100 * time.Millisecond, MaxPolls: 155},
		},
		{
			name: "timeout capped at two minutes",
			opts: NetworkIdleOptions{TimeoutMs: intp(999999), MaxPolls: intp(10)},
			want: NetworkIdleConfig{IdleTime: 500 * time.Millisecond, Timeout: 120 * time.Second, PollInterval: 100 * time.Millisecond, MaxPolls: 10},
		},
		{
			name: "negative timeout clamps to zero",
			opts: NetworkIdleOptions{TimeoutMs: intp(-5), MaxPolls: intp(10)},
			want: NetworkIdleConfig{IdleTime: 500 * time.Millisecond, Timeout: 0, PollInterval: 100 * time.Millisecond, MaxPolls: 10},
		},
		{
			name: "poll interval floored at 25ms",
			opts: NetworkIdleOptions{PollIntervalMs: intp(1), MaxPolls: intp(10)},
			want: NetworkIdleConfig{IdleTime: 500 * time.Millisecond, Timeout: 15 * time.Second, PollInterval: 25 * time.Millisecond, MaxPolls: 10},
		},
		{
			name: "max polls floored at one",
			opts: NetworkIdleOptions{MaxPolls: intp(0)},
			want: NetworkIdleConfig{IdleTime: 500 * time.Millisecond, Timeout: 15 * time.Second, PollInterval: 100 * time.Millisecond, MaxPolls: 1},
		},
		{
			name: "derived max polls covers timeout with margin",
			opts: NetworkIdleOptions{TimeoutMs: intp(1000), PollIntervalMs: intp(250)},
			want: NetworkIdleConfig{IdleTime: 500 * time.Millisecond, Timeout: time.Second, PollInterval: 250 * time.Millisecond, MaxPolls: 9},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizeNetworkIdleConfig(&tt.opts)
			if got != tt.want {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestNormalizeScrollConfigDefaults(t *testing.T) {
	cfg := NormalizeScrollConfig(nil)
	want := ScrollConfig{
		MaxIterations:    12,
		ScrollDelay:      750 * time.Millisecond,
		StableIterations: 2,
		Timeout:          30 * time.Second,
	}
	if cfg != want {
		t.Errorf("got %+v, want %+v", cfg, want)
	}
}

func TestNormalizeScrollConfigClamps(t *testing.T) {
	cfg := NormalizeScrollConfig(&ScrollOptions{
		MaxIterations:    intp(0),
		ScrollDelayMs:    intp(-10),
		StableIterations: intp(-1),
		TimeoutMs:        intp(999999),
	})
	want := ScrollConfig{
		MaxIterations:    1,
		ScrollDelay:      0,
		StableIterations: 1,
		Timeout:          120 * time.Second,
	}
	if cfg != want {
		t.Errorf("got %+v, want %+v", cfg, want)
	}
}

func TestNormalizeLoadMoreConfigDefaults(t *testing.T) {
	cfg, err := NormalizeLoadMoreConfig(nil)
	if err != nil {
		t.Fatalf("NormalizeLoadMoreConfig: %v", err)
	}
	if cfg.MaxClicks != 10 {
		t.Errorf("MaxClicks = %d, want 10", cfg.MaxClicks)
	}
	if cfg.NetworkIdle != nil {
		t.Errorf("NetworkIdle = %+v, want nil", cfg.NetworkIdle)
	}
	if cfg.HeightProbeSelector != "" {
		t.Errorf("HeightProbeSelector = %q, want empty", cfg.HeightProbeSelector)
	}
	if cfg.AfterClickDelay != time.Second {
		t.Errorf("AfterClickDelay = %v, want 1s", cfg.AfterClickDelay)
	}
	if cfg.MaxNoChangeIterations != 2 {
		t.Errorf("MaxNoChangeIterations = %d, want 2", cfg.MaxNoChangeIterations)
	}
	if !cfg.StopIfNoChange {
		t.Error("StopIfNoChange = false, want true")
	}
}

func TestNormalizeLoadMoreConfigClamps(t *testing.T) {
	cfg, err := NormalizeLoadMoreConfig(&LoadMoreOptions{
		MaxClicks:             intp(0),
		AfterClickDelayMs:     intp(-100),
		MaxNoChangeIterations: intp(0),
		StopIfNoChange:        boolp(false),
	})
	if err != nil {
		t.Fatalf("NormalizeLoadMoreConfig: %v", err)
	}
	if cfg.MaxClicks != 1 {
		t.Errorf("MaxClicks = %d, want 1", cfg.MaxClicks)
	}
	if cfg.AfterClickDelay != 0 {
		t.Errorf("AfterClickDelay = %v, want 0", cfg.AfterClickDelay)
	}
	if cfg.MaxNoChangeIterations != 1 {
		t.Errorf("MaxNoChangeIterations = %d, want 1", cfg.MaxNoChangeIterations)
	}
	if cfg.StopIfNoChange {
		t.Error("StopIfNoChange = true, want false")
	}
}

func TestNormalizeLoadMoreConfigNestedIdle(t *testing.T) {
	cfg, err := NormalizeLoadMoreConfig(&LoadMoreOptions{
		WaitForNetworkIdle: &NetworkIdleOptions{TimeoutMs: intp(2000)},
	})
	if err != nil {
		t.Fatalf("NormalizeLoadMoreConfig: %v", err)
	}
	if cfg.NetworkIdle == nil {
		t.Fatal("NetworkIdle is nil, want normalized config")
	}
	if cfg.NetworkIdle.Timeout != 2*time.Second {
		t.Errorf("NetworkIdle.Timeout = %v, want 2s", cfg.NetworkIdle.Timeout)
	}
	if cfg.NetworkIdle.IdleTime != 500*time.Millisecond {
		t.Errorf("NetworkIdle.IdleTime = %v, want default 500ms", cfg.NetworkIdle.IdleTime)
	}
}

func TestNormalizeLoadMoreConfigInvalidSelector(t *testing.T) {
	_, err := NormalizeLoadMoreConfig(&LoadMoreOptions{
		HeightProbeSelector: "div[unclosed",
	})
	if err == nil {
		t.Fatal("expected error for malformed height probe selector")
	}
}

func TestNormalizeLoadMoreConfigValidSelector(t *testing.T) {
	cfg, err := NormalizeLoadMoreConfig(&LoadMoreOptions{
		HeightProbeSelector: "#feed > .item",
	})
	if err != nil {
		t.Fatalf("NormalizeLoadMoreConfig: %v", err)
	}
	if cfg.HeightProbeSelector != "#feed > .item" {
		t.Errorf("HeightProbeSelector = %q", cfg.HeightProbeSelector)
	}
}
