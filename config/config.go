package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Browser   BrowserConfig
	Scraper   ScraperConfig
	Breaker   BreakerConfig
	Challenge ChallengeConfig
	Engine    EngineConfig
	Auth      AuthConfig
	RateLimit RateLimitConfig
	Cache     CacheConfig
	Log       LogConfig
}

// ServerConfig controls the HTTP server.
type ServerConfig struct {
	Host string // default: "0.0.0.0"
	Port int    // default: 8080
	Mode string // "debug", "release", "test"; default: "release"
}

// BrowserConfig controls the Rod browser instance.
type BrowserConfig struct {
	// Headless controls whether the browser runs headless.
	Headless bool // default: true

	// MaxPages is the page pool capacity (max concurrent tabs).
	MaxPages int // default: 10

	// DefaultProxy is the default proxy URL for all requests.
	DefaultProxy string

	// NoSandbox disables Chrome's sandbox (needed in Docker).
	NoSandbox bool // default: false

	// BrowserBin overrides the Chromium binary path.
	BrowserBin string
}

// ScraperConfig controls per-attempt scraping behavior.
type ScraperConfig struct {
	// DefaultTimeout is the per-request timeout.
	DefaultTimeout time.Duration // default: 30s

	// MaxTimeout is the maximum allowed timeout from the client.
	MaxTimeout time.Duration // default: 120s

	// SettleDelay is the fixed post-load pause before any signal reads,
	// to avoid racing early-page mutations.
	SettleDelay time.Duration // default: 2s

	// BlockedResourceTypes lists resource types to block.
	// default: ["Image", "Stylesheet", "Font", "Media"]
	BlockedResourceTypes []string
}

// BreakerConfig controls the per-domain circuit breaker.
type BreakerConfig struct {
	// FailureThreshold is the consecutive failure count that opens a domain.
	FailureThreshold int // default: 5

	// Cooldown is how long an open domain stays blocked before probing.
	Cooldown time.Duration // default: 60s

	// HalfOpenMaxAttempts is the probe budget while half-open.
	HalfOpenMaxAttempts int // default: 2

	// ResetOnSuccess zeroes the failure count on success while closed.
	ResetOnSuccess bool // default: true
}

// ChallengeConfig controls anti-bot interstitial handling.
type ChallengeConfig struct {
	// MaxWait bounds a single challenge-handling attempt.
	MaxWait time.Duration // default: 45s

	// PollInterval separates challenge re-detection probes.
	PollInterval time.Duration // default: 500ms

	// CaptchaProvider names the configured solver; empty disables solving.
	CaptchaProvider string

	// CaptchaFallback tries the solver only after waiting fails.
	CaptchaFallback bool // default: true
}

// EngineConfig controls the multi-engine escalation dispatcher.
type EngineConfig struct {
	// EnableMultiEngine toggles the HTTP-first dispatcher.
	EnableMultiEngine bool // default: true

	// EscalationDelays is the staged start delay for each engine tier.
	EscalationDelays []time.Duration // default: [0s, 2s, 5s]

	// MemoryTTL is how long a domain's preferred engine is remembered.
	MemoryTTL time.Duration // default: 24h
}

// AuthConfig controls API key authentication.
type AuthConfig struct {
	// Enabled toggles API key authentication.
	Enabled bool // default: true

	// APIKeys is the list of valid API keys.
	APIKeys []string
}

// RateLimitConfig controls per-key rate limiting.
type RateLimitConfig struct {
	// RequestsPerSecond is the sustained rate per API key.
	RequestsPerSecond float64 // default: 5

	// Burst is the maximum burst size per API key.
	Burst int // default: 10
}

// CacheConfig controls the scrape response cache.
type CacheConfig struct {
	// MaxEntries is the maximum number of cached responses.
	MaxEntries int // default: 1000
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string // default: "info"
	Format string // "json" or "text"; default: "json"
}

// Load reads configuration from environment variables with sane defaults.
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Host: envOr("SF_HOST", "0.0.0.0"),
			Port: envIntOr("SF_PORT", 8080),
			Mode: envOr("SF_MODE", "release"),
		},
		Browser: BrowserConfig{
			Headless:     envBoolOr("SF_HEADLESS", true),
			MaxPages:     envIntOr("SF_MAX_PAGES", 10),
			DefaultProxy: os.Getenv("SF_PROXY"),
			NoSandbox:    envBoolOr("SF_NO_SANDBOX", false),
			BrowserBin:   os.Getenv("SF_BROWSER_BIN"),
		},
		Scraper: ScraperConfig{
			DefaultTimeout: envDurationOr("SF_DEFAULT_TIMEOUT", 30*time.Second),
			MaxTimeout:     envDurationOr("SF_MAX_TIMEOUT", 120*time.Second),
			SettleDelay:    envDurationOr("SF_SETTLE_DELAY", 2*time.Second),
			BlockedResourceTypes: envSliceOr("SF_BLOCKED_RESOURCES", []string{
				"Image", "Stylesheet", "Font", "Media",
			}),
		},
		Breaker: BreakerConfig{
			FailureThreshold:    envIntOr("SF_BREAKER_THRESHOLD", 5),
			Cooldown:            envDurationOr("SF_BREAKER_COOLDOWN", 60*time.Second),
			HalfOpenMaxAttempts: envIntOr("SF_BREAKER_HALF_OPEN_ATTEMPTS", 2),
			ResetOnSuccess:      envBoolOr("SF_BREAKER_RESET_ON_SUCCESS", true),
		},
		Challenge: ChallengeConfig{
			MaxWait:         envDurationOr("SF_CHALLENGE_MAX_WAIT", 45*time.Second),
			PollInterval:    envDurationOr("SF_CHALLENGE_POLL_INTERVAL", 500*time.Millisecond),
			CaptchaProvider: os.Getenv("SF_CAPTCHA_PROVIDER"),
			CaptchaFallback: envBoolOr("SF_CAPTCHA_FALLBACK", true),
		},
		Engine: EngineConfig{
			EnableMultiEngine: envBoolOr("SF_MULTI_ENGINE", true),
			EscalationDelays:  envDurationSliceOr("SF_ESCALATION_DELAYS", []time.Duration{0, 2 * time.Second, 5 * time.Second}),
			MemoryTTL:         envDurationOr("SF_ENGINE_MEMORY_TTL", 24*time.Hour),
		},
		Auth: AuthConfig{
			Enabled: envBoolOr("SF_AUTH_ENABLED", true),
			APIKeys: envSliceOr("SF_API_KEYS", nil),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: envFloatOr("SF_RATE_RPS", 5.0),
			Burst:             envIntOr("SF_RATE_BURST", 10),
		},
		Cache: CacheConfig{
			MaxEntries: envIntOr("SF_CACHE_MAX_ENTRIES", 1000),
		},
		Log: LogConfig{
			Level:  envOr("SF_LOG_LEVEL", "info"),
			Format: envOr("SF_LOG_FORMAT", "json"),
		},
	}
}

// --- helper functions ---

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envBoolOr(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envFloatOr(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envDurationOr(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envSliceOr(key string, fallback []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		return result
	}
	return fallback
}

func envDurationSliceOr(key string, fallback []time.Duration) []time.Duration {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]time.Duration, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				if d, err := time.ParseDuration(trimmed); err == nil {
					result = append(result, d)
				}
			}
		}
		if len(result) > 0 {
			return result
		}
	}
	return fallback
}
