// Package challenge detects and waits out anti-bot interstitials
// (Cloudflare JS challenges, Turnstile, reCAPTCHA, and hard access-denied
// pages) using the same page-evaluation capability the interaction
// controllers use.
package challenge

import (
	"context"
	"fmt"
	"strings"

	"github.com/steadyfetch/steadyfetch/interact"
)

// Challenge types the detector can report.
const (
	TypeNone         = "none"
	TypeCloudflareJS = "cloudflare_js"
	TypeTurnstile    = "turnstile"
	TypeRecaptcha    = "recaptcha"
	TypeAccessDenied = "access_denied"
)

// Detection is the outcome of a challenge probe.
type Detection struct {
	IsChallenge bool     `json:"is_challenge"`
	Type        string   `json:"type"`
	Confidence  float64  `json:"confidence"`
	Signals     []string `json:"signals,omitempty"`
}

// detectJS gathers the raw signals in a single page round-trip; scoring
// happens on the Go side so the heuristics stay testable.
const detectJS = `() => ({
	title: document.title || '',
	hasCfForm: !!document.querySelector('#challenge-form, #challenge-running, .cf-browser-verification'),
	hasTurnstile: !!document.querySelector('#turnstile-wrapper, iframe[src*="challenges.cloudflare.com"]'),
	hasRecaptcha: !!document.querySelector('iframe[src*="recaptcha"], .g-recaptcha'),
	bodyLength: (document.body && document.body.innerText || '').length,
})`

// Detector recognizes challenge pages from DOM signals. The zero value is
// ready to use.
type Detector struct{}

// NewDetector creates a Detector.
func NewDetector() *Detector { return &Detector{} }

// Detect probes the tab and scores the collected signals. A probe failure is
// an error; an ordinary page yields IsChallenge=false with TypeNone.
func (d *Detector) Detect(ctx context.Context, tab interact.Tab) (*Detection, error) {
	probe, err := tab.Eval(ctx, detectJS)
	if err != nil {
		return nil, fmt.Errorf("challenge: detect probe: %w", err)
	}

	title := strings.ToLower(probe.Get("title").Str())
	det := &Detection{Type: TypeNone}

	addSignal := func(s string, weight float64) {
		det.Signals = append(det.Signals, s)
		det.Confidence += weight
	}

	if probe.Get("hasTurnstile").Bool() {
		det.Type = TypeTurnstile
		addSignal("turnstile_widget", 0.6)
	}
	if probe.Get("hasRecaptcha").Bool() && det.Type == TypeNone {
		det.Type = TypeRecaptcha
		addSignal("recaptcha_widget", 0.6)
	}
	if probe.Get("hasCfForm").Bool() {
		if det.Type == TypeNone {
			det.Type = TypeCloudflareJS
		}
		addSignal("cf_challenge_form", 0.5)
	}

	switch {
	case strings.Contains(title, "just a moment"),
		strings.Contains(title, "checking your browser"):
		if det.Type == TypeNone {
			det.Type = TypeCloudflareJS
		}
		addSignal("interstitial_title", 0.4)
	case strings.Contains(title, "access denied"),
		strings.Contains(title, "attention required"):
		if det.Type == TypeNone {
			det.Type = TypeAccessDenied
		}
		addSignal("denied_title", 0.4)
	}

	// Interstitials are near-empty; a tiny body corroborates other signals
	// but never triggers on its own.
	if len(det.Signals) > 0 && probe.Get("bodyLength").Int() < 300 {
		addSignal("sparse_body", 0.2)
	}

	if det.Confidence > 1 {
		det.Confidence = 1
	}
	det.IsChallenge = det.Type != TypeNone
	return det, nil
}
