package library

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/desertthunder/plexaa/internal/shared"
)

// State is the readiness of one resource.
type State int

const (
	Created State = iota
	Initializing
	Initialized
	Error
)

func (s State) String() string {
	switch s {
	case Created:
		return "created"
	case Initializing:
		return "initializing"
	case Initialized:
		return "initialized"
	case Error:
		return "error"
	default:
		return ""
	}
}

// Terminal reports whether the state is a resolution.
func (s State) Terminal() bool { return s == Initialized || s == Error }

// Callback receives a resolved payload, or ok == false when the resource failed.
type Callback[T any] func(v T, ok bool)

type entry[T any] struct {
	state   State
	payload T
	gen     uint64
	waiters []Callback[T]
}

// Gate tracks the readiness of a family of resources keyed by id and replays queued callbacks when
// each resolves.
//
// A single owner goroutine holds every entry; all operations are messages to it. Callbacks never
// run on the owner: a resolution takes the waiter list in the same step that marks the entry
// terminal, then runs the callbacks in registration order on the resolving goroutine. A Request
// racing a resolution is therefore either queued before the drain or served from the terminal state.
type Gate[T any] struct {
	name      string
	msgs      chan func(map[string]*entry[T])
	done      chan struct{}
	closeOnce sync.Once
}

// NewGate starts the owner goroutine. Call [Gate.Close] to stop it.
func NewGate[T any](name string) *Gate[T] {
	g := &Gate[T]{
		name: name,
		msgs: make(chan func(map[string]*entry[T])),
		done: make(chan struct{}),
	}
	go g.run()
	return g
}

func (g *Gate[T]) run() {
	entries := make(map[string]*entry[T])
	for {
		select {
		case fn := <-g.msgs:
			fn(entries)
		case <-g.done:
			return
		}
	}
}

// do runs fn on the owner and waits for it. It reports false once the gate is closed.
func (g *Gate[T]) do(fn func(map[string]*entry[T])) bool {
	ack := make(chan struct{})
	msg := func(m map[string]*entry[T]) {
		fn(m)
		close(ack)
	}
	select {
	case g.msgs <- msg:
		<-ack
		return true
	case <-g.done:
		return false
	}
}

func lookup[T any](m map[string]*entry[T], id string) *entry[T] {
	e, ok := m[id]
	if !ok {
		e = &entry[T]{}
		m[id] = e
	}
	return e
}

// Name identifies the resource kind in logs.
func (g *Gate[T]) Name() string { return g.name }

// Request delivers the resource to cb. If id is already resolved, cb runs before Request returns
// and the result is true. Otherwise cb is queued and runs exactly once when id resolves.
//
// On a closed gate cb runs immediately with ok == false.
func (g *Gate[T]) Request(id string, cb Callback[T]) bool {
	var (
		resolved bool
		v        T
		ok       bool
	)
	alive := g.do(func(m map[string]*entry[T]) {
		e := lookup(m, id)
		switch e.state {
		case Initialized:
			resolved, v, ok = true, e.payload, true
		case Error:
			resolved = true
		default:
			e.waiters = append(e.waiters, cb)
		}
	})
	if !alive {
		var zero T
		cb(zero, false)
		return true
	}
	if resolved {
		cb(v, ok)
	}
	return resolved
}

// Begin claims a fetch for id. It starts one when id has never been fetched or last failed; with
// force it starts one regardless, superseding any fetch in flight. Starting bumps the generation,
// drops the stale payload, and keeps queued waiters.
//
// The returned generation must be passed to [Gate.Resolve] or [Gate.Fail].
func (g *Gate[T]) Begin(id string, force bool) (gen uint64, started bool) {
	g.do(func(m map[string]*entry[T]) {
		e := lookup(m, id)
		if !force && (e.state == Initializing || e.state == Initialized) {
			gen = e.gen
			return
		}
		var zero T
		e.gen++
		e.state = Initializing
		e.payload = zero
		gen, started = e.gen, true
	})
	return gen, started
}

// Resolve marks id initialized with v and runs its waiters. A resolution from a superseded
// generation is discarded and Resolve returns false.
func (g *Gate[T]) Resolve(id string, gen uint64, v T) bool {
	return g.settle(id, gen, v, true)
}

// Fail marks id errored and runs its waiters with ok == false. Stale generations are discarded.
func (g *Gate[T]) Fail(id string, gen uint64) bool {
	var zero T
	return g.settle(id, gen, zero, false)
}

func (g *Gate[T]) settle(id string, gen uint64, v T, ok bool) bool {
	var (
		applied bool
		waiters []Callback[T]
	)
	g.do(func(m map[string]*entry[T]) {
		e := lookup(m, id)
		if e.gen != gen || e.state != Initializing {
			return
		}
		if ok {
			e.state, e.payload = Initialized, v
		} else {
			e.state = Error
		}
		waiters, e.waiters = e.waiters, nil
		applied = true
	})
	for _, cb := range waiters {
		cb(v, ok)
	}
	return applied
}

// Wait blocks until id resolves or ctx ends.
func (g *Gate[T]) Wait(ctx context.Context, id string) (T, error) {
	type result struct {
		v  T
		ok bool
	}
	ch := make(chan result, 1)
	g.Request(id, func(v T, ok bool) { ch <- result{v, ok} })

	var zero T
	select {
	case r := <-ch:
		if !r.ok {
			return zero, fmt.Errorf("%w: %s %q", shared.ErrResourceFailed, g.name, id)
		}
		return r.v, nil
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

// State returns id's current state. Unknown ids are Created.
func (g *Gate[T]) State(id string) State {
	var s State
	g.do(func(m map[string]*entry[T]) {
		if e, ok := m[id]; ok {
			s = e.state
		}
	})
	return s
}

// Peek returns the payload without registering a waiter.
func (g *Gate[T]) Peek(id string) (T, bool) {
	var (
		v  T
		ok bool
	)
	g.do(func(m map[string]*entry[T]) {
		if e, found := m[id]; found && e.state == Initialized {
			v, ok = e.payload, true
		}
	})
	return v, ok
}

// Reset returns id to Created and invalidates any fetch in flight. Queued waiters stay queued; it
// reports whether any are, in which case the caller must start a new fetch for id.
func (g *Gate[T]) Reset(id string) bool {
	var pending bool
	g.do(func(m map[string]*entry[T]) {
		if e, ok := m[id]; ok {
			reset(e)
			pending = len(e.waiters) > 0
		}
	})
	return pending
}

// ResetAll resets every id and returns, sorted, the ids that still have queued waiters.
func (g *Gate[T]) ResetAll() []string {
	var pending []string
	g.do(func(m map[string]*entry[T]) {
		for id, e := range m {
			reset(e)
			if len(e.waiters) > 0 {
				pending = append(pending, id)
			}
		}
	})
	slices.Sort(pending)
	return pending
}

func reset[T any](e *entry[T]) {
	var zero T
	e.gen++
	e.state = Created
	e.payload = zero
}

// Close stops the owner and releases every queued waiter with ok == false.
func (g *Gate[T]) Close() {
	g.closeOnce.Do(func() {
		var pending []Callback[T]
		g.do(func(m map[string]*entry[T]) {
			for _, e := range m {
				pending = append(pending, e.waiters...)
				e.waiters = nil
			}
		})
		close(g.done)

		var zero T
		for _, cb := range pending {
			cb(zero, false)
		}
	})
}
