package browse

import (
	"slices"
	"sync"

	"github.com/desertthunder/plexaa/internal/models"
)

// Tree maps node ids to their children. It is rebuilt from the catalog rather than appended to, so
// refreshing twice yields the same tree.
type Tree struct {
	mu    sync.RWMutex
	nodes map[string][]Item
	art   ArtFunc
}

// NewTree returns a tree holding only the fixed categories.
func NewTree(art ArtFunc) *Tree {
	t := &Tree{art: art}
	t.Reset()
	return t
}

func categories() map[string][]Item {
	return map[string][]Item{
		RootID: {
			categoryItem(HomeID, "Home"),
			categoryItem(PlaylistsID, "Playlists"),
			categoryItem(ArtistsID, "Artists"),
			categoryItem(AlbumsID, "Albums"),
		},
		HomeID: {
			categoryItem(RecentlyPlayedID, "Recently Played"),
			categoryItem(RecentlyAddedID, "Recently Added"),
			categoryItem(OnDeckID, "On Deck"),
		},
		PlaylistsID: {},
	}
}

// Reset drops every playlist node.
func (t *Tree) Reset() {
	t.mu.Lock()
	t.nodes = categories()
	t.mu.Unlock()
}

// Refresh rebuilds the playlist nodes from playlists. Each playlist is listed under the playlists
// category once; playlists with loaded items also get their tracks, or their pages when they are
// longer than [PageSize].
func (t *Tree) Refresh(playlists []models.Playlist) {
	nodes := categories()
	seen := make(map[string]bool, len(playlists))

	for _, p := range playlists {
		id := p.ID()
		if seen[id] {
			continue
		}
		seen[id] = true
		nodes[PlaylistsID] = append(nodes[PlaylistsID], playlistItem(p, t.art))

		if !p.Loaded() {
			continue
		}
		if !Paged(p) {
			nodes[id] = trackItems(id, p.Items, t.art)
			continue
		}
		nodes[id] = Pages(p)
		for i := range PageCount(p.LeafCount) {
			nodes[PageID(id, i)] = trackItems(id, Page(p.Items, i), t.art)
		}
	}

	t.mu.Lock()
	t.nodes = nodes
	t.mu.Unlock()
}

// Get returns a copy of id's children.
func (t *Tree) Get(id string) ([]Item, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	items, ok := t.nodes[id]
	if !ok {
		return nil, false
	}
	return slices.Clone(items), true
}
