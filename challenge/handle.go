package challenge

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/steadyfetch/steadyfetch/interact"
)

// HandleConfig controls how long a detected challenge is waited out and
// whether a captcha solver may be consulted.
type HandleConfig struct {
	// Captcha names the configured solver provider; empty disables solving.
	Captcha string

	// CaptchaFallback, when set, tries the solver only after waiting fails.
	// When unset and a solver is configured, the solver is tried first.
	CaptchaFallback bool

	// MaxWait bounds the whole handling attempt. Default 45s.
	MaxWait time.Duration

	// PollInterval separates re-detection probes. Default 500ms.
	PollInterval time.Duration
}

// Handling is the outcome of a challenge-handling attempt. Resolved=false
// after the budget is an expected outcome, not an error.
type Handling struct {
	Resolved bool          `json:"resolved"`
	Method   string        `json:"method,omitempty"`
	Waited   time.Duration `json:"waited_ms"`
}

// Solver is a pluggable captcha-solving hook. Provider integrations live
// outside this package; the handler only needs to know whether the attempt
// succeeded.
type Solver interface {
	Solve(ctx context.Context, tab interact.Tab, det *Detection) (bool, error)
}

// Handler waits for challenges to clear, optionally delegating to a Solver.
type Handler struct {
	detector *Detector
	solver   Solver

	// sleepFunc allows test injection of the inter-poll suspension.
	sleepFunc func(ctx context.Context, d time.Duration) error
}

// NewHandler creates a Handler. solver may be nil.
func NewHandler(detector *Detector, solver Solver) *Handler {
	return &Handler{
		detector:  detector,
		solver:    solver,
		sleepFunc: sleepCtx,
	}
}

// Handle polls the tab until the challenge clears or the budget runs out.
// Many JS challenges resolve themselves once the browser has sat on the page
// for a few seconds, so waiting is the primary strategy; the solver, when
// configured, covers widget challenges that never clear on their own.
func (h *Handler) Handle(ctx context.Context, tab interact.Tab, det *Detection, cfg HandleConfig) (*Handling, error) {
	if cfg.MaxWait <= 0 {
		cfg.MaxWait = 45 * time.Second
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 500 * time.Millisecond
	}

	start := time.Now()

	if h.solver != nil && cfg.Captcha != "" && !cfg.CaptchaFallback {
		if ok, err := h.trySolver(ctx, tab, det, cfg); err != nil {
			return nil, err
		} else if ok {
			return &Handling{Resolved: true, Method: "captcha", Waited: time.Since(start)}, nil
		}
	}

	for time.Since(start) < cfg.MaxWait {
		if err := h.sleepFunc(ctx, cfg.PollInterval); err != nil {
			return nil, err
		}
		current, err := h.detector.Detect(ctx, tab)
		if err != nil {
			return nil, err
		}
		if !current.IsChallenge {
			return &Handling{Resolved: true, Method: "wait", Waited: time.Since(start)}, nil
		}
	}

	if h.solver != nil && cfg.Captcha != "" && cfg.CaptchaFallback {
		if ok, err := h.trySolver(ctx, tab, det, cfg); err != nil {
			return nil, err
		} else if ok {
			return &Handling{Resolved: true, Method: "captcha", Waited: time.Since(start)}, nil
		}
	}

	slog.Warn("challenge unresolved after budget",
		"type", det.Type, "waited", time.Since(start))
	return &Handling{Resolved: false, Waited: time.Since(start)}, nil
}

func (h *Handler) trySolver(ctx context.Context, tab interact.Tab, det *Detection, cfg HandleConfig) (bool, error) {
	ok, err := h.solver.Solve(ctx, tab, det)
	if err != nil {
		return false, fmt.Errorf("challenge: solver %s: %w", cfg.Captcha, err)
	}
	return ok, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
