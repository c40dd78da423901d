package engine

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

type fakeEngine struct {
	name   string
	delay  time.Duration
	err    error
	calls  atomic.Int32
	result string
}

func (f *fakeEngine) Name() string { return f.name }

func (f *fakeEngine) Fetch(ctx context.Context, req *FetchRequest) (*FetchResult, error) {
	f.calls.Add(1)
	if f.delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(f.delay):
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return &FetchResult{HTML: f.result, EngineName: f.name, StatusCode: 200}, nil
}

func newTestMemory(t *testing.T) *EngineMemory {
	t.Helper()
	m := NewEngineMemory(time.Hour)
	t.Cleanup(m.Stop)
	return m
}

func TestDispatchFirstEngineWins(t *testing.T) {
	fast := &fakeEngine{name: "http", result: "<html>fast</html>"}
	slow := &fakeEngine{name: "browser", delay: 5 * time.Second, result: "<html>slow</html>"}

	d := NewDispatcher([]Engine{fast, slow}, []time.Duration{0, 2 * time.Second}, newTestMemory(t))

	result, err := d.Dispatch(context.Background(), &FetchRequest{URL: "https://example.com/page"})
	if err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}
	if result.EngineName != "http" {
		t.Errorf("EngineName = %q, want %q", result.EngineName, "http")
	}
}

func TestDispatchEscalatesOnFailure(t *testing.T) {
	failing := &fakeEngine{name: "http", err: errors.New("blocked")}
	working := &fakeEngine{name: "browser", result: "<html>ok</html>"}

	d := NewDispatcher([]Engine{failing, working}, []time.Duration{0, 10 * time.Millisecond}, newTestMemory(t))

	result, err := d.Dispatch(context.Background(), &FetchRequest{URL: "https://example.com/page"})
	if err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}
	if result.EngineName != "browser" {
		t.Errorf("EngineName = %q, want %q", result.EngineName, "browser")
	}
}

func TestDispatchAllEnginesFail(t *testing.T) {
	a := &fakeEngine{name: "http", err: errors.New("fail a")}
	b := &fakeEngine{name: "browser", err: errors.New("fail b")}

	d := NewDispatcher([]Engine{a, b}, []time.Duration{0, 0}, newTestMemory(t))

	_, err := d.Dispatch(context.Background(), &FetchRequest{URL: "https://example.com"})
	if err == nil {
		t.Fatal("Dispatch() expected error, got nil")
	}
}

func TestDispatchMemoryHitSkipsRace(t *testing.T) {
	http := &fakeEngine{name: "http", result: "<html>http</html>"}
	browser := &fakeEngine{name: "browser", result: "<html>browser</html>"}

	memory := newTestMemory(t)
	memory.Set("example.com", "browser")

	d := NewDispatcher([]Engine{http, browser}, []time.Duration{0, 0}, memory)

	result, err := d.Dispatch(context.Background(), &FetchRequest{URL: "https://example.com/page"})
	if err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}
	if result.EngineName != "browser" {
		t.Errorf("EngineName = %q, want %q", result.EngineName, "browser")
	}
	if http.calls.Load() != 0 {
		t.Errorf("http engine called %d times, want 0", http.calls.Load())
	}
}

func TestDispatchMemoryFallsBackOnFailure(t *testing.T) {
	http := &fakeEngine{name: "http", result: "<html>http</html>"}
	browser := &fakeEngine{name: "browser", err: errors.New("crashed")}

	memory := newTestMemory(t)
	memory.Set("example.com", "browser")

	d := NewDispatcher([]Engine{http, browser}, []time.Duration{0, 50 * time.Millisecond}, memory)

	result, err := d.Dispatch(context.Background(), &FetchRequest{URL: "https://example.com/page"})
	if err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}
	if result.EngineName != "http" {
		t.Errorf("EngineName = %q, want %q", result.EngineName, "http")
	}
	if got := memory.Get("example.com"); got != "http" {
		t.Errorf("memory after race = %q, want %q", got, "http")
	}
}

func TestEngineMemoryExpiry(t *testing.T) {
	m := NewEngineMemory(10 * time.Millisecond)
	defer m.Stop()

	m.Set("example.com", "http")
	if got := m.Get("example.com"); got != "http" {
		t.Fatalf("Get() = %q, want %q", got, "http")
	}

	time.Sleep(20 * time.Millisecond)
	if got := m.Get("example.com"); got != "" {
		t.Errorf("Get() after expiry = %q, want empty", got)
	}
}

func TestNeedsBrowser(t *testing.T) {
	longText := ""
	for i := 0; i < 60; i++ {
		longText += "plenty of visible article text here "
	}

	tests := []struct {
		name string
		html string
		want bool
	}{
		{"empty root container", `<html><body><div id="root"></div></body></html>`, true},
		{"thin body", `<html><body><p>hi</p></body></html>`, true},
		{"rendered article", `<html><body><article>` + longText + `</article></body></html>`, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := needsBrowser([]byte(tt.html)); got != tt.want {
				t.Errorf("needsBrowser() = %v, want %v", got, tt.want)
			}
		})
	}
}
