package interact

import (
	"context"
	"strings"
	"testing"

	"github.com/ysmood/gson"
)

// scriptKind identifies which of the package's page scripts an Eval call is
// running, so tests can script responses per concern instead of per literal.
type scriptKind string

const (
	kindTracker    scriptKind = "tracker"
	kindIdleProbe  scriptKind = "idleProbe"
	kindScrollStep scriptKind = "scrollStep"
	kindMeasure    scriptKind = "measure"
	kindClick      scriptKind = "click"
	kindSizeProbe  scriptKind = "sizeProbe"
)

func classify(js string) scriptKind {
	switch {
	case strings.Contains(js, "__netIdleTracker") && strings.Contains(js, "origOpen"):
		return kindTracker
	case strings.Contains(js, "lastActivityTs"):
		return kindIdleProbe
	case strings.Contains(js, "scrollTo("):
		return kindScrollStep
	case strings.Contains(js, "viewportHeight"):
		return kindMeasure
	case strings.Contains(js, "el.click()"):
		return kindClick
	default:
		return kindSizeProbe
	}
}

// fakeTab scripts Eval responses per script kind. The handler receives the
// zero-based call count for that kind, so a test can vary answers over time.
type fakeTab struct {
	t        *testing.T
	handlers map[scriptKind]func(call int) (gson.JSON, error)
	counts   map[scriptKind]int
	log      []scriptKind
}

func newFakeTab(t *testing.T) *fakeTab {
	return &fakeTab{
		t:        t,
		handlers: map[scriptKind]func(int) (gson.JSON, error){},
		counts:   map[scriptKind]int{},
	}
}

func (f *fakeTab) on(kind scriptKind, fn func(call int) (gson.JSON, error)) {
	f.handlers[kind] = fn
}

func (f *fakeTab) Eval(ctx context.Context, js string) (gson.JSON, error) {
	if err := ctx.Err(); err != nil {
		return gson.JSON{}, err
	}
	kind := classify(js)
	f.log = append(f.log, kind)
	call := f.counts[kind]
	f.counts[kind]++
	fn := f.handlers[kind]
	if fn == nil {
		f.t.Fatalf("unexpected %s evaluation", kind)
	}
	return fn(call)
}

func (f *fakeTab) sawKind(kind scriptKind) bool {
	for _, k := range f.log {
		if k == kind {
			return true
		}
	}
	return false
}

func obj(m map[string]any) func(int) (gson.JSON, error) {
	return func(int) (gson.JSON, error) { return gson.New(m), nil }
}

func num(v int) func(int) (gson.JSON, error) {
	return func(int) (gson.JSON, error) { return gson.New(v), nil }
}

func ok() func(int) (gson.JSON, error) {
	return func(int) (gson.JSON, error) { return gson.New(true), nil }
}
