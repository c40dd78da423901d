// Package behavior nudges a page the way a human reader would: small mouse
// wheel movements, partial scrolls, and irregular pauses. It runs once per
// scrape attempt, before the interaction controllers, to trip lazy-load and
// engagement-based anti-bot heuristics.
package behavior

import (
	"context"
	"math/rand/v2"
	"time"

	"github.com/go-rod/rod"
)

// Simulator performs a short randomized reading pattern on a page.
type Simulator struct {
	// Steps is the number of scroll/pause rounds. Default 3.
	Steps int
}

// NewSimulator creates a Simulator with default settings.
func NewSimulator() *Simulator {
	return &Simulator{Steps: 3}
}

// Simulate scrolls part-way down the page in uneven wheel steps with reading
// pauses between them, then drifts back up slightly. Errors from individual
// gestures abort the simulation; the orchestrator decides whether that fails
// the attempt.
func (s *Simulator) Simulate(ctx context.Context, page *rod.Page) error {
	p := page.Context(ctx)

	res, err := p.Eval(`() => window.innerHeight`)
	if err != nil {
		return err
	}
	viewport := float64(res.Value.Int())

	steps := s.Steps
	if steps <= 0 {
		steps = 3
	}
	for i := 0; i < steps; i++ {
		// Between a third and a full viewport per wheel gesture.
		delta := viewport * (0.33 + rand.Float64()*0.67)
		if err := p.Mouse.Scroll(0, delta, 3); err != nil {
			return err
		}
		if err := pause(ctx, 200*time.Millisecond+rand.N(500*time.Millisecond)); err != nil {
			return err
		}
	}

	// Drift back up a little, like re-reading a paragraph.
	if err := p.Mouse.Scroll(0, -viewport*0.25, 2); err != nil {
		return err
	}
	return pause(ctx, 150*time.Millisecond+rand.N(250*time.Millisecond))
}

func pause(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
