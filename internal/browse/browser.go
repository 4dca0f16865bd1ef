package browse

import (
	"cmp"
	"context"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/plexaa/internal/library"
	"github.com/desertthunder/plexaa/internal/models"
	"github.com/desertthunder/plexaa/internal/shared"
)

// Session event names.
const (
	EventNetworkFailure = "NETWORK_FAILURE"
	EventLoginRequired  = "LOGIN_REQUIRED"
)

const eventBuffer = 16

// Event is an out-of-band notice for the browsing client.
type Event struct {
	Name     string `json:"name"`
	ParentID string `json:"parent_id,omitempty"`
}

// Queue is an ordered list of playable items and the index to start from.
type Queue struct {
	ParentID string `json:"parent_id"`
	Items    []Item `json:"items"`
	Start    int    `json:"start"`
}

// Current returns the item at Start.
func (q *Queue) Current() Item { return q.Items[q.Start] }

// Browser answers load-children and prepare requests against a [library.Source].
type Browser struct {
	source *library.Source
	tree   *Tree
	logger *log.Logger
	events chan Event
}

// NewBrowser creates a browser over source with an empty tree.
func NewBrowser(source *library.Source, logger *log.Logger) *Browser {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	b := &Browser{source: source, logger: logger, events: make(chan Event, eventBuffer)}
	b.tree = NewTree(b.artURL)
	return b
}

func (b *Browser) artURL(path string) string {
	sel := b.source.Selected()
	if sel == nil {
		return ""
	}
	return sel.Server.ArtURL(path)
}

// Tree exposes the projected tree.
func (b *Browser) Tree() *Tree { return b.tree }

// Events delivers session events. Events are dropped when nobody reads them.
func (b *Browser) Events() <-chan Event { return b.events }

func (b *Browser) emit(e Event) {
	select {
	case b.events <- e:
	default:
		b.logger.Debug("dropped session event", "event", e.Name, "parent", e.ParentID)
	}
}

// RequireLogin tells the client the account must sign in again.
func (b *Browser) RequireLogin() { b.emit(Event{Name: EventLoginRequired}) }

// Reload resets the tree and reloads the source.
func (b *Browser) Reload() {
	b.tree.Reset()
	b.source.Reload()
}

// Children lists the children of parentID through result. It reports whether result already ran;
// when it did not, result runs once the backing resource settles.
//
// Failures are reported as an empty list plus a [EventNetworkFailure] event.
func (b *Browser) Children(parentID string, result func([]Item)) bool {
	return b.children(parentID, func(items []Item, _ error) { result(items) })
}

// ChildrenContext is the blocking form of [Browser.Children]. It returns an error wrapping
// [shared.ErrResourceFailed] when the backing resource fails to load.
func (b *Browser) ChildrenContext(ctx context.Context, parentID string) ([]Item, error) {
	type answer struct {
		items []Item
		err   error
	}
	ch := make(chan answer, 1)
	b.children(parentID, func(items []Item, err error) { ch <- answer{items, err} })

	select {
	case a := <-ch:
		return a.items, a.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

type doneFunc func(items []Item, err error)

func (b *Browser) children(parentID string, done doneFunc) bool {
	if !b.source.Authenticated() {
		b.logger.Info("not authenticated", "parent", parentID)
		done([]Item{}, shared.ErrNotAuthenticated)
		return true
	}

	switch {
	case parentID == RootID, parentID == PlaylistsID:
		return b.catalogChildren(parentID, done)
	case parentID == HomeID:
		items, _ := b.tree.Get(HomeID)
		done(items, nil)
		return true
	case parentID == RecentlyPlayedID:
		b.source.LoadRecentlyPlayed(false)
		return b.source.RecentlyPlayedWhenReady(b.tracks(parentID, done))
	case parentID == OnDeckID:
		b.source.LoadOnDeck(false)
		return b.source.OnDeckWhenReady(b.tracks(parentID, done))
	case parentID == RecentlyAddedID:
		b.source.LoadRecentlyAdded(false)
		return b.source.RecentlyAddedWhenReady(b.albums(parentID, false, done))
	case parentID == ArtistsID:
		b.source.LoadArtists(false)
		return b.source.ArtistsWhenReady(func(artists []models.Artist, ok bool) {
			if !ok {
				b.fail(parentID, done)
				return
			}
			items := make([]Item, 0, len(artists))
			for _, a := range artists {
				items = append(items, artistItem(a, b.artURL))
			}
			sortByTitle(items)
			b.logger.Debug("sending artists", "count", len(items))
			done(items, nil)
		})
	case parentID == AlbumsID:
		b.source.LoadAlbums(false)
		return b.source.AlbumsWhenReady(b.albums(parentID, true, done))
	case strings.HasPrefix(parentID, ArtistPrefix):
		id := strings.TrimPrefix(parentID, ArtistPrefix)
		b.source.LoadArtistAlbums(id, false)
		return b.source.ArtistAlbumsWhenReady(id, b.albums(parentID, true, done))
	case strings.HasPrefix(parentID, AlbumPrefix) && !strings.Contains(parentID, "/"):
		id := strings.TrimPrefix(parentID, AlbumPrefix)
		b.source.LoadAlbumTracks(id, false)
		return b.source.AlbumTracksWhenReady(id, b.tracks(parentID, done))
	case isReserved(parentID):
		done([]Item{}, nil)
		return true
	default:
		return b.playlistChildren(parentID, done)
	}
}

func (b *Browser) fail(parentID string, done doneFunc) {
	b.logger.Warn("failed to load children", "parent", parentID)
	b.emit(Event{Name: EventNetworkFailure, ParentID: parentID})
	done([]Item{}, fmt.Errorf("%w: %s", shared.ErrResourceFailed, parentID))
}

func (b *Browser) catalogChildren(parentID string, done doneFunc) bool {
	b.source.LoadCatalog(false)
	return b.source.CatalogWhenReady(func(_ []models.Playlist, ok bool) {
		if !ok {
			b.fail(parentID, done)
			return
		}
		b.tree.Refresh(b.source.CatalogPlaylists())
		items, _ := b.tree.Get(parentID)
		sortByTitle(items)
		b.logger.Debug("sending catalog children", "parent", parentID, "count", len(items))
		done(items, nil)
	})
}

func (b *Browser) playlistChildren(parentID string, done doneFunc) bool {
	playlistID := parentID
	if id, _, ok := ParsePage(parentID); ok {
		playlistID = id
	}

	b.source.LoadPlaylist(playlistID, false)
	return b.source.PlaylistWhenReady(playlistID, func(_ models.Playlist, ok bool) {
		if !ok {
			b.fail(parentID, done)
			return
		}
		b.tree.Refresh(b.source.CatalogPlaylists())
		items, found := b.tree.Get(parentID)
		if !found {
			items = []Item{}
		}
		b.logger.Debug("sending playlist children", "parent", parentID, "count", len(items))
		done(items, nil)
	})
}

func (b *Browser) tracks(parentID string, done doneFunc) library.Callback[[]models.Track] {
	return func(tracks []models.Track, ok bool) {
		if !ok {
			b.fail(parentID, done)
			return
		}
		done(trackItems(parentID, tracks, b.artURL), nil)
	}
}

func (b *Browser) albums(parentID string, sorted bool, done doneFunc) library.Callback[[]models.Album] {
	return func(albums []models.Album, ok bool) {
		if !ok {
			b.fail(parentID, done)
			return
		}
		items := make([]Item, 0, len(albums))
		for _, a := range albums {
			items = append(items, albumItem(a, b.artURL))
		}
		if sorted {
			sortByTitle(items)
		}
		done(items, nil)
	}
}

func sortByTitle(items []Item) {
	slices.SortStableFunc(items, func(a, b Item) int { return cmp.Compare(a.Title, b.Title) })
}

// Prepare resolves a playable id of the form "<parent>/<trackId>" into the parent's queue, with
// stream addresses for the selected server, starting at the requested track.
//
// The parent may be a playlist, an album, recently played or on deck.
func (b *Browser) Prepare(ctx context.Context, mediaID string) (*Queue, error) {
	parts := strings.Split(mediaID, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return nil, fmt.Errorf("%w: %q has no parent", shared.ErrInvalidID, mediaID)
	}
	parentID, trackID := parts[0], parts[1]

	tracks, err := b.queueTracks(ctx, parentID)
	if err != nil {
		return nil, err
	}

	srv, err := b.source.Server(ctx)
	if err != nil {
		return nil, err
	}

	q := &Queue{ParentID: parentID, Start: -1}
	for _, t := range tracks {
		if !isTrack(t) {
			continue
		}
		it := trackItem(parentID, t, srv.ArtURL)
		it.StreamURL = srv.StreamURL(t)
		if t.RatingKey.String() == trackID && q.Start < 0 {
			q.Start = len(q.Items)
		}
		q.Items = append(q.Items, it)
	}
	if q.Start < 0 {
		return nil, fmt.Errorf("%w: %s in %s", shared.ErrTrackNotFound, trackID, parentID)
	}

	b.logger.Info("prepared queue", "parent", parentID, "items", len(q.Items), "start", q.Start)
	return q, nil
}

func (b *Browser) queueTracks(ctx context.Context, parentID string) ([]models.Track, error) {
	switch {
	case parentID == RecentlyPlayedID:
		return b.source.RecentlyPlayed(ctx)
	case parentID == OnDeckID:
		return b.source.OnDeck(ctx)
	case strings.HasPrefix(parentID, AlbumPrefix):
		return b.source.AlbumTracks(ctx, strings.TrimPrefix(parentID, AlbumPrefix))
	case isReserved(parentID), strings.HasPrefix(parentID, ArtistPrefix):
		return nil, fmt.Errorf("%w: %s holds no tracks", shared.ErrInvalidID, parentID)
	default:
		p, err := b.source.Playlist(ctx, parentID)
		if err != nil {
			return nil, err
		}
		return p.Items, nil
	}
}
