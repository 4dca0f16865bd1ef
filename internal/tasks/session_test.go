package tasks

import (
	"context"
	"errors"
	"math/rand/v2"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/desertthunder/plexaa/internal/browse"
	"github.com/desertthunder/plexaa/internal/shared"
)

type fakePreparer struct {
	queues map[string]*browse.Queue
	calls  []string
}

func (f *fakePreparer) Prepare(ctx context.Context, mediaID string) (*browse.Queue, error) {
	f.calls = append(f.calls, mediaID)
	q, ok := f.queues[mediaID]
	if !ok {
		return nil, shared.ErrTrackNotFound
	}
	return q, nil
}

type fakePlayer struct {
	items    []browse.Item
	start    int
	position time.Duration
	seeks    []int
	err      error
}

func (p *fakePlayer) Load(items []browse.Item, start int, position time.Duration) error {
	if p.err != nil {
		return p.err
	}
	p.items, p.start, p.position = items, start, position
	return nil
}

func (p *fakePlayer) Seek(index int, position time.Duration) error {
	p.seeks = append(p.seeks, index)
	return nil
}

type memStore struct {
	mu       sync.Mutex
	mediaID  string
	position time.Duration
	shuffle  bool
	repeat   string
}

func (m *memStore) SaveResume(mediaID string, position time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mediaID, m.position = mediaID, position
	return nil
}

func (m *memStore) Resume() (string, time.Duration, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.mediaID, m.position, m.mediaID != ""
}

func (m *memStore) SetShuffle(on bool) error    { m.shuffle = on; return nil }
func (m *memStore) Shuffle() bool               { return m.shuffle }
func (m *memStore) SetRepeat(mode string) error { m.repeat = mode; return nil }
func (m *memStore) Repeat() string              { return m.repeat }

type recordingCache struct {
	updates [][]string
}

func (r *recordingCache) Update(items []browse.Item) {
	ids := make([]string, len(items))
	for i, it := range items {
		ids[i] = it.ID
	}
	r.updates = append(r.updates, ids)
}

func (r *recordingCache) last() []string {
	if len(r.updates) == 0 {
		return nil
	}
	return r.updates[len(r.updates)-1]
}

func queueOf(parent string, n, start int) *browse.Queue {
	q := &browse.Queue{ParentID: parent, Start: start}
	for i := range n {
		q.Items = append(q.Items, browse.Item{ID: browse.ChildID(parent, string(rune('a'+i))), Title: string(rune('A' + i)), Playable: true})
	}
	return q
}

func TestNextIndices(t *testing.T) {
	order := []int{0, 1, 2, 3, 4, 5, 6}
	tc := []struct {
		name    string
		order   []int
		current int
		repeat  RepeatMode
		count   int
		want    []int
	}{
		{name: "in order", order: order, current: 0, repeat: RepeatOff, count: 5, want: []int{1, 2, 3, 4, 5}},
		{name: "stops at end", order: order, current: 4, repeat: RepeatOff, count: 5, want: []int{5, 6}},
		{name: "last item", order: order, current: 6, repeat: RepeatOff, count: 5, want: []int{}},
		{name: "repeat all wraps", order: order, current: 5, repeat: RepeatAll, count: 5, want: []int{6, 0, 1, 2, 3}},
		{name: "repeat all short queue", order: []int{0, 1, 2}, current: 1, repeat: RepeatAll, count: 5, want: []int{2, 0, 1}},
		{name: "repeat one", order: order, current: 3, repeat: RepeatOne, count: 5, want: []int{3}},
		{name: "shuffled order", order: []int{3, 0, 6, 1}, current: 0, repeat: RepeatOff, count: 5, want: []int{6, 1}},
		{name: "empty", order: nil, current: 0, repeat: RepeatAll, count: 5, want: []int{}},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			got := NextIndices(tt.order, tt.current, tt.repeat, tt.count)
			if !slices.Equal(got, tt.want) {
				t.Errorf("NextIndices() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSession(t *testing.T) {
	ctx := context.Background()

	newSession := func(store *memStore, cache *recordingCache) (*Session, *fakePlayer, *fakePreparer) {
		prep := &fakePreparer{queues: map[string]*browse.Queue{
			"20/c": queueOf("20", 8, 2),
		}}
		player := &fakePlayer{}
		opts := SessionOpts{
			Preparer: prep,
			Player:   player,
			Store:    store,
			Rand:     rand.New(rand.NewPCG(1, 2)),
		}
		if cache != nil {
			opts.Cache = cache
		}
		return NewSession(opts), player, prep
	}

	t.Run("Prepare Loads Player And Records Resume", func(t *testing.T) {
		store, cache := &memStore{}, &recordingCache{}
		s, player, _ := newSession(store, cache)

		q, err := s.Prepare(ctx, "20/c", 30*time.Second)
		if err != nil {
			t.Fatalf("Prepare() error = %v", err)
		}
		if player.start != 2 || player.position != 30*time.Second || len(player.items) != 8 {
			t.Errorf("player loaded start=%d pos=%v items=%d", player.start, player.position, len(player.items))
		}
		if q.Current().ID != "20/c" {
			t.Errorf("current = %s", q.Current().ID)
		}
		if id, pos, _ := store.Resume(); id != "20/c" || pos != 30*time.Second {
			t.Errorf("resume state = %s %v", id, pos)
		}
		if want := []string{"20/d", "20/e", "20/f", "20/g", "20/h"}; !slices.Equal(cache.last(), want) {
			t.Errorf("prefetch = %v, want %v", cache.last(), want)
		}
	})

	t.Run("Resume", func(t *testing.T) {
		store := &memStore{mediaID: "20/c", position: 95 * time.Second}
		s, player, prep := newSession(store, nil)

		if _, err := s.Resume(ctx); err != nil {
			t.Fatalf("Resume() error = %v", err)
		}
		if !slices.Equal(prep.calls, []string{"20/c"}) || player.position != 95*time.Second {
			t.Errorf("resume prepared %v at %v", prep.calls, player.position)
		}

		empty, _, _ := newSession(&memStore{}, nil)
		if _, err := empty.Resume(ctx); !errors.Is(err, ErrNothingToPlay) {
			t.Errorf("expected ErrNothingToPlay, got %v", err)
		}
	})

	t.Run("Index Changes Update Resume And Prefetch", func(t *testing.T) {
		store, cache := &memStore{}, &recordingCache{}
		s, _, _ := newSession(store, cache)
		if _, err := s.Prepare(ctx, "20/c", 0); err != nil {
			t.Fatalf("Prepare() error = %v", err)
		}

		if err := s.SetIndex(6); err != nil {
			t.Fatalf("SetIndex() error = %v", err)
		}
		if id, pos, _ := store.Resume(); id != "20/g" || pos != 0 {
			t.Errorf("resume state = %s %v", id, pos)
		}
		if want := []string{"20/h"}; !slices.Equal(cache.last(), want) {
			t.Errorf("prefetch = %v, want %v", cache.last(), want)
		}

		if err := s.SavePosition(12 * time.Second); err != nil {
			t.Fatalf("SavePosition() error = %v", err)
		}
		if _, pos, _ := store.Resume(); pos != 12*time.Second {
			t.Errorf("position = %v", pos)
		}

		if err := s.SetIndex(99); !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
	})

	t.Run("Next Respects Repeat", func(t *testing.T) {
		store := &memStore{}
		s, player, _ := newSession(store, nil)
		if _, err := s.Prepare(ctx, "20/c", 0); err != nil {
			t.Fatalf("Prepare() error = %v", err)
		}
		_ = s.SetIndex(7)

		if err := s.Next(); !errors.Is(err, ErrEndOfQueue) {
			t.Errorf("expected ErrEndOfQueue, got %v", err)
		}

		if err := s.SetRepeat(RepeatAll); err != nil {
			t.Fatalf("SetRepeat() error = %v", err)
		}
		if err := s.Next(); err != nil {
			t.Fatalf("Next() error = %v", err)
		}
		if s.Current() != 0 || !slices.Equal(player.seeks, []int{0}) {
			t.Errorf("current = %d, seeks = %v", s.Current(), player.seeks)
		}
		if store.repeat != "all" {
			t.Errorf("repeat not persisted: %q", store.repeat)
		}

		_ = s.SetRepeat(RepeatOne)
		if got := s.Upcoming(); len(got) != 1 || got[0].ID != "20/a" {
			t.Errorf("repeat one should prefetch the current track, got %v", got)
		}
	})

	t.Run("Shuffle Covers Every Other Track", func(t *testing.T) {
		store := &memStore{}
		s, _, _ := newSession(store, nil)
		if err := s.SetShuffle(true); err != nil {
			t.Fatalf("SetShuffle() error = %v", err)
		}
		if _, err := s.Prepare(ctx, "20/c", 0); err != nil {
			t.Fatalf("Prepare() error = %v", err)
		}
		_ = s.SetRepeat(RepeatOff)

		s.mu.Lock()
		order := slices.Clone(s.order)
		s.mu.Unlock()

		if order[0] != 2 {
			t.Errorf("shuffled order should start at the requested track, got %v", order)
		}
		sorted := slices.Clone(order)
		slices.Sort(sorted)
		if !slices.Equal(sorted, []int{0, 1, 2, 3, 4, 5, 6, 7}) {
			t.Errorf("order is not a permutation: %v", order)
		}
		if !store.shuffle {
			t.Error("shuffle not persisted")
		}
		if got := s.Upcoming(); len(got) != 5 || got[0].ID != s.Queue().Items[order[1]].ID {
			t.Errorf("upcoming should follow the shuffled order, got %v", got)
		}
	})

	t.Run("Errors", func(t *testing.T) {
		s, player, _ := newSession(&memStore{}, nil)
		if _, err := s.Prepare(ctx, "missing/1", 0); !errors.Is(err, shared.ErrTrackNotFound) {
			t.Errorf("expected ErrTrackNotFound, got %v", err)
		}
		if err := s.Next(); !errors.Is(err, ErrNoQueue) {
			t.Errorf("expected ErrNoQueue, got %v", err)
		}

		player.err = errors.New("engine down")
		if _, err := s.Prepare(ctx, "20/c", 0); err == nil {
			t.Error("expected player error")
		}
	})

	t.Run("Restores Flags", func(t *testing.T) {
		s, _, _ := newSession(&memStore{shuffle: true, repeat: "one"}, nil)
		if !s.shuffle || s.repeat != RepeatOne {
			t.Errorf("flags = %v %s", s.shuffle, s.repeat)
		}
	})
}
