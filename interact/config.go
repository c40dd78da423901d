package interact

import (
	"fmt"
	"time"

	"github.com/andybalholm/cascadia"
)

// Network-idle defaults and bounds.
const (
	defaultIdleTime     = 500 * time.Millisecond
	defaultIdleTimeout  = 15 * time.Second
	maxIdleTimeout      = 120 * time.Second
	defaultPollInterval = 100 * time.Millisecond
	minPollInterval     = 25 * time.Millisecond

	// maxPollsMargin pads the derived poll ceiling so the wall-clock timeout,
	// not the count, is normally the binding limit.
	maxPollsMargin = 5
)

// Scroll defaults.
const (
	defaultScrollIterations = 12
	defaultScrollDelay      = 750 * time.Millisecond
	defaultStableIterations = 2
	defaultScrollTimeout    = 30 * time.Second
)

// Load-more defaults.
const (
	defaultMaxClicks       = 10
	defaultAfterClickDelay = time.Second
	defaultMaxNoChange     = 2
)

// NetworkIdleOptions is the wire-facing, partially-specified form of
// NetworkIdleConfig. Nil fields take documented defaults; out-of-range
// values are clamped, never silently accepted.
type NetworkIdleOptions struct {
	IdleTimeMs     *int `json:"idle_time_ms,omitempty"`
	TimeoutMs      *int `json:"timeout_ms,omitempty"`
	PollIntervalMs *int `json:"poll_interval_ms,omitempty"`
	MaxPolls       *int `json:"max_polls,omitempty"`
}

// NetworkIdleConfig is the fully-resolved configuration for
// WaitForNetworkIdle. Build one with NormalizeNetworkIdleConfig.
type NetworkIdleConfig struct {
	// IdleTime is the quiet period with zero in-flight requests required to
	// declare the page idle.
	IdleTime time.Duration

	// Timeout bounds the total wall-clock time of the wait.
	Timeout time.Duration

	// PollInterval separates consecutive page probes.
	PollInterval time.Duration

	// MaxPolls caps the number of probes regardless of elapsed time.
	MaxPolls int
}

// NormalizeNetworkIdleConfig resolves options into a complete config.
//
// Defaults: idle time 500ms, timeout 15s, poll interval 100ms, max polls
// ⌈timeout/poll⌉+5 (155 for the defaults). Clamps: idle time ≥ 0, timeout in
// [0, 120s], poll interval ≥ 25ms, max polls ≥ 1.
func NormalizeNetworkIdleConfig(o *NetworkIdleOptions) NetworkIdleConfig {
	if o == nil {
		o = &NetworkIdleOptions{}
	}
	cfg := NetworkIdleConfig{
		IdleTime:     msOr(o.IdleTimeMs, defaultIdleTime),
		Timeout:      msOr(o.TimeoutMs, defaultIdleTimeout),
		PollInterval: msOr(o.PollIntervalMs, defaultPollInterval),
	}
	if cfg.IdleTime < 0 {
		cfg.IdleTime = 0
	}
	if cfg.Timeout < 0 {
		cfg.Timeout = 0
	}
	if cfg.Timeout > maxIdleTimeout {
		cfg.Timeout = maxIdleTimeout
	}
	if cfg.PollInterval < minPollInterval {
		cfg.PollInterval = minPollInterval
	}
	if o.MaxPolls != nil {
		cfg.MaxPolls = *o.MaxPolls
	} else {
		cfg.MaxPolls = int(ceilDiv(cfg.Timeout, cfg.PollInterval)) + maxPollsMargin
	}
	if cfg.MaxPolls < 1 {
		cfg.MaxPolls = 1
	}
	return cfg
}

// ScrollOptions is the wire-facing form of ScrollConfig.
type ScrollOptions struct {
	MaxIterations    *int `json:"max_iterations,omitempty"`
	ScrollDelayMs    *int `json:"scroll_delay_ms,omitempty"`
	StableIterations *int `json:"stable_iterations,omitempty"`
	TimeoutMs        *int `json:"timeout_ms,omitempty"`
}

// ScrollConfig is the fully-resolved configuration for ScrollToBottom.
type ScrollConfig struct {
	// MaxIterations caps the number of scroll steps.
	MaxIterations int

	// ScrollDelay separates a scroll step from the height reading after it.
	ScrollDelay time.Duration

	// StableIterations is how many consecutive unchanged height readings
	// count as the page having settled.
	StableIterations int

	// Timeout bounds the total wall-clock time of the scroll loop.
	Timeout time.Duration
}

// NormalizeScrollConfig resolves options into a complete config.
//
// Defaults: 12 iterations, 750ms delay, 2 stable readings, 30s timeout.
// Clamps: iterations ≥ 1, stable readings ≥ 1, delay ≥ 0, timeout in
// [0, 120s].
func NormalizeScrollConfig(o *ScrollOptions) ScrollConfig {
	if o == nil {
		o = &ScrollOptions{}
	}
	cfg := ScrollConfig{
		MaxIterations:    intOr(o.MaxIterations, defaultScrollIterations),
		ScrollDelay:      msOr(o.ScrollDelayMs, defaultScrollDelay),
		StableIterations: intOr(o.StableIterations, defaultStableIterations),
		Timeout:          msOr(o.TimeoutMs, defaultScrollTimeout),
	}
	if cfg.MaxIterations < 1 {
		cfg.MaxIterations = 1
	}
	if cfg.StableIterations < 1 {
		cfg.StableIterations = 1
	}
	if cfg.ScrollDelay < 0 {
		cfg.ScrollDelay = 0
	}
	if cfg.Timeout < 0 {
		cfg.Timeout = 0
	}
	if cfg.Timeout > maxIdleTimeout {
		cfg.Timeout = maxIdleTimeout
	}
	return cfg
}

// LoadMoreOptions is the wire-facing form of LoadMoreConfig.
type LoadMoreOptions struct {
	MaxClicks             *int                `json:"max_clicks,omitempty"`
	WaitForNetworkIdle    *NetworkIdleOptions `json:"wait_for_network_idle,omitempty"`
	HeightProbeSelector   string              `json:"height_probe_selector,omitempty"`
	AfterClickDelayMs     *int                `json:"after_click_delay_ms,omitempty"`
	MaxNoChangeIterations *int                `json:"max_no_change_iterations,omitempty"`
	StopIfNoChange        *bool               `json:"stop_if_no_change,omitempty"`
}

// LoadMoreConfig is the fully-resolved configuration for ClickLoadMore.
type LoadMoreConfig struct {
	// MaxClicks caps the number of click attempts that actually land.
	MaxClicks int

	// NetworkIdle, when non-nil, runs a full network-idle wait after each
	// click before the post-click probe.
	NetworkIdle *NetworkIdleConfig

	// HeightProbeSelector, when set, measures content growth on the matched
	// element instead of the whole document.
	HeightProbeSelector string

	// AfterClickDelay separates a click from the probe reading after it.
	AfterClickDelay time.Duration

	// MaxNoChangeIterations is how many consecutive clicks without probe
	// growth stop the loop when StopIfNoChange is set.
	MaxNoChangeIterations int

	// StopIfNoChange stops clicking once the probe stops growing.
	StopIfNoChange bool
}

// NormalizeLoadMoreConfig resolves options into a complete config.
//
// Defaults: 10 clicks, no idle waiting, 1s post-click delay, stop after 2
// unchanged probes. A height probe selector that does not parse as a CSS
// selector group is a construction error, not a silent fallback.
func NormalizeLoadMoreConfig(o *LoadMoreOptions) (LoadMoreConfig, error) {
	if o == nil {
		o = &LoadMoreOptions{}
	}
	cfg := LoadMoreConfig{
		MaxClicks:             intOr(o.MaxClicks, defaultMaxClicks),
		HeightProbeSelector:   o.HeightProbeSelector,
		AfterClickDelay:       msOr(o.AfterClickDelayMs, defaultAfterClickDelay),
		MaxNoChangeIterations: intOr(o.MaxNoChangeIterations, defaultMaxNoChange),
		StopIfNoChange:        true,
	}
	if o.StopIfNoChange != nil {
		cfg.StopIfNoChange = *o.StopIfNoChange
	}
	if o.WaitForNetworkIdle != nil {
		idle := NormalizeNetworkIdleConfig(o.WaitForNetworkIdle)
		cfg.NetworkIdle = &idle
	}
	if cfg.MaxClicks < 1 {
		cfg.MaxClicks = 1
	}
	if cfg.AfterClickDelay < 0 {
		cfg.AfterClickDelay = 0
	}
	if cfg.MaxNoChangeIterations < 1 {
		cfg.MaxNoChangeIterations = 1
	}
	if cfg.HeightProbeSelector != "" {
		if _, err := cascadia.ParseGroup(cfg.HeightProbeSelector); err != nil {
			return LoadMoreConfig{}, fmt.Errorf("interact: invalid height probe selector %q: %w", cfg.HeightProbeSelector, err)
		}
	}
	return cfg, nil
}

func msOr(p *int, fallback time.Duration) time.Duration {
	if p == nil {
		return fallback
	}
	return time.Duration(*p) * time.Millisecond
}

func intOr(p *int, fallback int) int {
	if p == nil {
		return fallback
	}
	return *p
}

func ceilDiv(a, b time.Duration) int64 {
	if b <= 0 {
		return 0
	}
	return int64((a + b - 1) / b)
}
