package tasks

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/plexaa/internal/browse"
	"github.com/desertthunder/plexaa/internal/shared"
)

// DefaultLookahead is how many upcoming tracks are prefetched.
const DefaultLookahead = 5

var (
	ErrNoQueue       = errors.New("nothing is queued")
	ErrEndOfQueue    = errors.New("end of queue")
	ErrNothingToPlay = errors.New("no previous playback to resume")
)

// RepeatMode controls what follows the last track.
type RepeatMode int

const (
	RepeatOff RepeatMode = iota
	RepeatOne
	RepeatAll
)

func (m RepeatMode) String() string {
	switch m {
	case RepeatOne:
		return "one"
	case RepeatAll:
		return "all"
	default:
		return "off"
	}
}

// ParseRepeatMode reads a mode name. Unknown names are [RepeatOff].
func ParseRepeatMode(s string) RepeatMode {
	switch s {
	case "one":
		return RepeatOne
	case "all":
		return RepeatAll
	default:
		return RepeatOff
	}
}

// Player is the playback engine.
type Player interface {
	// Load replaces the queue and starts item start at position.
	Load(items []browse.Item, start int, position time.Duration) error
	// Seek jumps to index in the loaded queue.
	Seek(index int, position time.Duration) error
}

// Preparer resolves a playable media id into a queue.
type Preparer interface {
	Prepare(ctx context.Context, mediaID string) (*browse.Queue, error)
}

// Cacher keeps the given upcoming items cached.
type Cacher interface {
	Update(items []browse.Item)
}

// SessionStore persists resume state and playback flags.
type SessionStore interface {
	SaveResume(mediaID string, position time.Duration) error
	Resume() (mediaID string, position time.Duration, ok bool)
	SetShuffle(on bool) error
	Shuffle() bool
	SetRepeat(mode string) error
	Repeat() string
}

// SessionOpts configure a [Session]. Preparer and Player are required.
type SessionOpts struct {
	Preparer  Preparer
	Player    Player
	Store     SessionStore
	Cache     Cacher
	Logger    *log.Logger
	Progress  chan<- ProgressUpdate
	Lookahead int
	Rand      *rand.Rand
}

// Session drives one playback queue: it prepares queues from media ids, hands them to the
// player, records the current track for resume, and keeps the next tracks in play order cached.
type Session struct {
	preparer  Preparer
	player    Player
	store     SessionStore
	cache     Cacher
	logger    *log.Logger
	progress  chan<- ProgressUpdate
	lookahead int

	mu      sync.Mutex
	rng     *rand.Rand
	queue   *browse.Queue
	order   []int
	current int
	shuffle bool
	repeat  RepeatMode
}

// NewSession creates a session, restoring shuffle and repeat from the store.
func NewSession(opts SessionOpts) *Session {
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard)
	}
	if opts.Lookahead <= 0 {
		opts.Lookahead = DefaultLookahead
	}
	if opts.Rand == nil {
		opts.Rand = rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0))
	}

	s := &Session{
		preparer:  opts.Preparer,
		player:    opts.Player,
		store:     opts.Store,
		cache:     opts.Cache,
		logger:    opts.Logger,
		progress:  opts.Progress,
		lookahead: opts.Lookahead,
		rng:       opts.Rand,
	}
	if s.store != nil {
		s.shuffle = s.store.Shuffle()
		s.repeat = ParseRepeatMode(s.store.Repeat())
	}
	return s
}

// Prepare resolves mediaID, loads the queue into the player at position, and records it for
// resume.
func (s *Session) Prepare(ctx context.Context, mediaID string, position time.Duration) (*browse.Queue, error) {
	q, err := s.preparer.Prepare(ctx, mediaID)
	if err != nil {
		return nil, err
	}
	if err := s.player.Load(q.Items, q.Start, position); err != nil {
		return nil, fmt.Errorf("player rejected queue: %w", err)
	}

	s.mu.Lock()
	s.queue = q
	s.current = q.Start
	s.order = s.playOrder(len(q.Items), q.Start)
	upcoming := s.upcomingLocked()
	s.mu.Unlock()

	s.save(mediaID, position)
	s.prefetch(upcoming)
	sendProgress(s.progress, preparedUpdate(q))
	s.logger.Info("prepared", "media_id", mediaID, "items", len(q.Items), "start", q.Start, "position", position)
	return q, nil
}

// Resume prepares the last recorded media id at its recorded position.
func (s *Session) Resume(ctx context.Context) (*browse.Queue, error) {
	if s.store == nil {
		return nil, ErrNothingToPlay
	}
	mediaID, position, ok := s.store.Resume()
	if !ok {
		return nil, ErrNothingToPlay
	}
	sendProgress(s.progress, resumeUpdate(mediaID))
	return s.Prepare(ctx, mediaID, position)
}

// Queue returns the prepared queue, or nil.
func (s *Session) Queue() *browse.Queue {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queue
}

// Current returns the index of the playing item.
func (s *Session) Current() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// SetIndex records that the player moved to index.
func (s *Session) SetIndex(index int) error {
	s.mu.Lock()
	if s.queue == nil {
		s.mu.Unlock()
		return ErrNoQueue
	}
	if index < 0 || index >= len(s.queue.Items) {
		s.mu.Unlock()
		return fmt.Errorf("%w: index %d out of range", shared.ErrInvalidArgument, index)
	}
	s.current = index
	id := s.queue.Items[index].ID
	upcoming := s.upcomingLocked()
	s.mu.Unlock()

	s.save(id, 0)
	s.prefetch(upcoming)
	return nil
}

// SavePosition records the playback position within the current item.
func (s *Session) SavePosition(position time.Duration) error {
	s.mu.Lock()
	if s.queue == nil {
		s.mu.Unlock()
		return ErrNoQueue
	}
	id := s.queue.Items[s.current].ID
	s.mu.Unlock()

	if s.store == nil {
		return nil
	}
	return s.store.SaveResume(id, position)
}

// Next moves the player to the following item in play order.
func (s *Session) Next() error {
	s.mu.Lock()
	if s.queue == nil {
		s.mu.Unlock()
		return ErrNoQueue
	}
	next := NextIndices(s.order, s.current, s.repeat, 1)
	s.mu.Unlock()

	if len(next) == 0 {
		return ErrEndOfQueue
	}
	if err := s.player.Seek(next[0], 0); err != nil {
		return err
	}
	return s.SetIndex(next[0])
}

// SetShuffle switches shuffle and rebuilds the play order from the current item.
func (s *Session) SetShuffle(on bool) error {
	s.mu.Lock()
	s.shuffle = on
	var upcoming []browse.Item
	if s.queue != nil {
		s.order = s.playOrder(len(s.queue.Items), s.current)
		upcoming = s.upcomingLocked()
	}
	s.mu.Unlock()

	s.prefetch(upcoming)
	if s.store == nil {
		return nil
	}
	return s.store.SetShuffle(on)
}

// SetRepeat changes the repeat mode.
func (s *Session) SetRepeat(mode RepeatMode) error {
	s.mu.Lock()
	s.repeat = mode
	var upcoming []browse.Item
	if s.queue != nil {
		upcoming = s.upcomingLocked()
	}
	s.mu.Unlock()

	s.prefetch(upcoming)
	if s.store == nil {
		return nil
	}
	return s.store.SetRepeat(mode.String())
}

// Upcoming returns the next items to play, at most the lookahead.
func (s *Session) Upcoming() []browse.Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.queue == nil {
		return nil
	}
	return s.upcomingLocked()
}

func (s *Session) upcomingLocked() []browse.Item {
	idx := NextIndices(s.order, s.current, s.repeat, s.lookahead)
	out := make([]browse.Item, 0, len(idx))
	for _, i := range idx {
		out = append(out, s.queue.Items[i])
	}
	return out
}

// playOrder is the identity, or with shuffle a random order that starts at start.
func (s *Session) playOrder(n, start int) []int {
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	if !s.shuffle || n < 2 {
		return order
	}
	order[0], order[start] = order[start], order[0]
	rest := order[1:]
	s.rng.Shuffle(len(rest), func(i, j int) { rest[i], rest[j] = rest[j], rest[i] })
	return order
}

func (s *Session) save(mediaID string, position time.Duration) {
	if s.store == nil {
		return
	}
	if err := s.store.SaveResume(mediaID, position); err != nil {
		s.logger.Warn("failed to save resume state", "media_id", mediaID, "error", err)
	}
}

func (s *Session) prefetch(items []browse.Item) {
	if s.cache == nil || items == nil {
		return
	}
	s.cache.Update(items)
}

// NextIndices returns up to count indices that follow current in order.
//
// Repeat one yields current itself. Repeat all wraps around the end; the walk stops after
// len(order) steps. Without repeat the walk stops at the end of order.
func NextIndices(order []int, current int, repeat RepeatMode, count int) []int {
	if len(order) == 0 || count <= 0 {
		return []int{}
	}
	if repeat == RepeatOne {
		return []int{current}
	}

	pos := -1
	for i, idx := range order {
		if idx == current {
			pos = i
			break
		}
	}
	if pos < 0 {
		return []int{}
	}

	limit := min(count, len(order))
	out := make([]int, 0, limit)
	for step := 1; len(out) < limit; step++ {
		next := pos + step
		if next >= len(order) {
			if repeat != RepeatAll {
				break
			}
			next %= len(order)
		}
		out = append(out, order[next])
	}
	return out
}
