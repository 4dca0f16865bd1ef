package library

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/desertthunder/plexaa/internal/shared"
)

type call struct {
	v  string
	ok bool
}

type recorder struct {
	mu    sync.Mutex
	calls []call
	order []int
}

func (r *recorder) cb(n int) Callback[string] {
	return func(v string, ok bool) {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.calls = append(r.calls, call{v, ok})
		r.order = append(r.order, n)
	}
}

func (r *recorder) snapshot() ([]call, []int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]call(nil), r.calls...), append([]int(nil), r.order...)
}

func TestGate(t *testing.T) {
	t.Run("Queued Waiters Run Once In Order", func(t *testing.T) {
		g := NewGate[string]("test")
		defer g.Close()

		gen, started := g.Begin("a", false)
		if !started {
			t.Fatal("expected fetch to start")
		}

		rec := &recorder{}
		for i := range 3 {
			if g.Request("a", rec.cb(i)) {
				t.Fatalf("request %d should not be satisfied before resolution", i)
			}
		}
		if calls, _ := rec.snapshot(); len(calls) != 0 {
			t.Fatalf("no waiter should run before resolution, got %d", len(calls))
		}

		if !g.Resolve("a", gen, "payload") {
			t.Fatal("expected resolution to apply")
		}

		calls, order := rec.snapshot()
		if len(calls) != 3 {
			t.Fatalf("expected 3 calls, got %d", len(calls))
		}
		for i, c := range calls {
			if c.v != "payload" || !c.ok {
				t.Errorf("call %d = %+v", i, c)
			}
			if order[i] != i {
				t.Errorf("expected FIFO order, got %v", order)
			}
		}

		if g.Resolve("a", gen, "again") {
			t.Error("second resolution should be ignored")
		}
		if calls, _ := rec.snapshot(); len(calls) != 3 {
			t.Errorf("waiters must not run twice, got %d calls", len(calls))
		}
	})

	t.Run("Resolved Request Is Synchronous", func(t *testing.T) {
		g := NewGate[string]("test")
		defer g.Close()

		gen, _ := g.Begin("a", false)
		g.Resolve("a", gen, "ready")

		ran := false
		satisfied := g.Request("a", func(v string, ok bool) {
			ran = true
			if v != "ready" || !ok {
				t.Errorf("unexpected callback args %q %v", v, ok)
			}
		})
		if !satisfied || !ran {
			t.Errorf("expected synchronous delivery, satisfied=%v ran=%v", satisfied, ran)
		}
	})

	t.Run("Fail Delivers Absence", func(t *testing.T) {
		g := NewGate[string]("test")
		defer g.Close()

		rec := &recorder{}
		gen, _ := g.Begin("a", false)
		g.Request("a", rec.cb(0))
		g.Fail("a", gen)

		calls, _ := rec.snapshot()
		if len(calls) != 1 || calls[0].ok {
			t.Fatalf("expected one absent delivery, got %+v", calls)
		}
		if g.State("a") != Error {
			t.Errorf("expected Error, got %s", g.State("a"))
		}

		if !g.Request("a", rec.cb(1)) {
			t.Error("request on errored resource should be satisfied synchronously")
		}
	})

	t.Run("Begin Is Idempotent", func(t *testing.T) {
		g := NewGate[string]("test")
		defer g.Close()

		if g.State("a") != Created {
			t.Fatalf("expected Created, got %s", g.State("a"))
		}
		gen, started := g.Begin("a", false)
		if !started || g.State("a") != Initializing {
			t.Fatal("expected first Begin to start")
		}
		if _, again := g.Begin("a", false); again {
			t.Error("Begin while initializing must not start another fetch")
		}

		g.Resolve("a", gen, "x")
		if _, again := g.Begin("a", false); again {
			t.Error("Begin on initialized resource must not start without force")
		}

		gen2, forced := g.Begin("a", true)
		if !forced || gen2 == gen {
			t.Error("forced Begin should start with a new generation")
		}
		if _, ok := g.Peek("a"); ok {
			t.Error("forced Begin should drop the stale payload")
		}
		g.Fail("a", gen2)

		if _, retry := g.Begin("a", false); !retry {
			t.Error("Begin after an error should retry")
		}
	})

	t.Run("Stale Generation Is Discarded", func(t *testing.T) {
		g := NewGate[string]("test")
		defer g.Close()

		rec := &recorder{}
		old, _ := g.Begin("a", false)
		g.Request("a", rec.cb(0))

		fresh, started := g.Begin("a", true)
		if !started {
			t.Fatal("forced Begin should start")
		}
		g.Request("a", rec.cb(1))

		if g.Resolve("a", old, "stale") {
			t.Error("stale resolution should be discarded")
		}
		if calls, _ := rec.snapshot(); len(calls) != 0 {
			t.Fatalf("stale resolution must not drain waiters, got %+v", calls)
		}
		if g.State("a") != Initializing {
			t.Errorf("expected Initializing, got %s", g.State("a"))
		}

		g.Resolve("a", fresh, "fresh")
		calls, order := rec.snapshot()
		if len(calls) != 2 || calls[0].v != "fresh" || calls[1].v != "fresh" {
			t.Fatalf("expected both waiters to get the fresh payload, got %+v", calls)
		}
		if order[0] != 0 || order[1] != 1 {
			t.Errorf("expected registration order, got %v", order)
		}
	})

	t.Run("Reset Keeps Waiters And Invalidates Fetch", func(t *testing.T) {
		g := NewGate[string]("test")
		defer g.Close()

		rec := &recorder{}
		old, _ := g.Begin("a", false)
		g.Request("a", rec.cb(0))

		if !g.Reset("a") {
			t.Error("reset should report the queued waiter")
		}
		if g.State("a") != Created {
			t.Fatalf("expected Created after reset, got %s", g.State("a"))
		}
		if g.Fail("a", old) {
			t.Error("fetch from before the reset should be discarded")
		}

		gen, started := g.Begin("a", false)
		if !started {
			t.Fatal("expected Begin after reset to start")
		}
		g.Resolve("a", gen, "after")

		calls, _ := rec.snapshot()
		if len(calls) != 1 || calls[0].v != "after" {
			t.Errorf("queued waiter should get the post-reset payload, got %+v", calls)
		}
	})

	t.Run("ResetAll", func(t *testing.T) {
		g := NewGate[string]("test")
		defer g.Close()

		for _, id := range []string{"a", "b"} {
			gen, _ := g.Begin(id, false)
			g.Resolve(id, gen, id)
		}
		if pending := g.ResetAll(); len(pending) != 0 {
			t.Errorf("resolved ids have no waiters, got %v", pending)
		}
		for _, id := range []string{"a", "b"} {
			if g.State(id) != Created {
				t.Errorf("%s: expected Created, got %s", id, g.State(id))
			}
		}
		if g.Reset("a") {
			t.Error("reset of an id without waiters should report none")
		}
	})

	t.Run("ResetAll Reports Ids With Waiters", func(t *testing.T) {
		g := NewGate[string]("test")
		defer g.Close()

		rec := &recorder{}
		for i, id := range []string{"c", "a", "b"} {
			g.Begin(id, false)
			if id != "b" {
				g.Request(id, rec.cb(i))
			}
		}

		pending := g.ResetAll()
		if len(pending) != 2 || pending[0] != "a" || pending[1] != "c" {
			t.Fatalf("expected [a c], got %v", pending)
		}

		for _, id := range pending {
			gen, started := g.Begin(id, false)
			if !started {
				t.Fatalf("%s: expected a new fetch to start", id)
			}
			g.Resolve(id, gen, id)
		}
		if calls, _ := rec.snapshot(); len(calls) != 2 {
			t.Errorf("every stranded waiter should run once, got %+v", calls)
		}
	})

	t.Run("Concurrent Requests Are Never Lost", func(t *testing.T) {
		g := NewGate[string]("test")
		defer g.Close()

		gen, _ := g.Begin("a", false)

		const n = 200
		var delivered atomic.Int64
		var wg sync.WaitGroup
		start := make(chan struct{})
		for range n {
			wg.Add(1)
			go func() {
				defer wg.Done()
				<-start
				g.Request("a", func(string, bool) { delivered.Add(1) })
			}()
		}

		close(start)
		g.Resolve("a", gen, "v")
		wg.Wait()

		if got := delivered.Load(); got != n {
			t.Errorf("expected %d deliveries, got %d", n, got)
		}
	})

	t.Run("Callbacks May Use The Gate", func(t *testing.T) {
		g := NewGate[string]("test")
		defer g.Close()

		gen, _ := g.Begin("a", false)
		var inner atomic.Bool
		g.Request("a", func(string, bool) {
			g.Request("a", func(string, bool) { inner.Store(true) })
		})

		done := make(chan struct{})
		go func() {
			g.Resolve("a", gen, "v")
			close(done)
		}()

		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("resolution deadlocked on a re-entrant callback")
		}
		if !inner.Load() {
			t.Error("nested request should be served synchronously")
		}
	})

	t.Run("Wait", func(t *testing.T) {
		g := NewGate[string]("test")
		defer g.Close()

		gen, _ := g.Begin("a", false)
		go g.Resolve("a", gen, "v")

		v, err := g.Wait(context.Background(), "a")
		if err != nil || v != "v" {
			t.Errorf("Wait() = %q, %v", v, err)
		}

		gen, _ = g.Begin("b", false)
		go g.Fail("b", gen)
		if _, err := g.Wait(context.Background(), "b"); !errors.Is(err, shared.ErrResourceFailed) {
			t.Errorf("expected ErrResourceFailed, got %v", err)
		}

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		g.Begin("c", false)
		if _, err := g.Wait(ctx, "c"); !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("expected deadline exceeded, got %v", err)
		}
	})

	t.Run("Close Releases Waiters", func(t *testing.T) {
		g := NewGate[string]("test")

		rec := &recorder{}
		g.Begin("a", false)
		g.Request("a", rec.cb(0))
		g.Close()

		calls, _ := rec.snapshot()
		if len(calls) != 1 || calls[0].ok {
			t.Errorf("expected one absent delivery on close, got %+v", calls)
		}

		if !g.Request("a", rec.cb(1)) {
			t.Error("request on closed gate should be answered immediately")
		}
		g.Close()
	})
}

func TestClassify(t *testing.T) {
	tc := []struct {
		name string
		err  error
		want Status
	}{
		{name: "auth expired", err: shared.ErrAuthExpired, want: StatusAuthExpired},
		{name: "wrapped auth expired", err: errors.Join(errors.New("GET /playlists"), shared.ErrAuthExpired), want: StatusAuthExpired},
		{name: "network", err: shared.ErrServiceUnavailable, want: StatusFailed},
		{name: "other", err: errors.New("boom"), want: StatusFailed},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			r := Classify[int](tt.err)
			if r.Status != tt.want {
				t.Errorf("Classify() = %s, want %s", r.Status, tt.want)
			}
			if r.Err == nil {
				t.Error("expected error to be kept")
			}
		})
	}

	if r := From(3, nil); r.Status != StatusOK || r.Value != 3 {
		t.Errorf("From() = %+v", r)
	}
}
