package browse

import (
	"fmt"

	"github.com/desertthunder/plexaa/internal/models"
)

// PageSize is the most items listed under one playlist node.
const PageSize = 100

// PageCount is the number of pages needed for leafCount items.
func PageCount(leafCount int) int {
	if leafCount <= 0 {
		return 0
	}
	return (leafCount + PageSize - 1) / PageSize
}

// Paged reports whether a playlist is listed as pages rather than tracks.
func Paged(p models.Playlist) bool { return p.LeafCount > PageSize }

// Pages lists the page nodes of p, titled by the 1-based range of items each covers.
func Pages(p models.Playlist) []Item {
	n := PageCount(p.LeafCount)
	out := make([]Item, 0, n)
	for i := range n {
		start := i*PageSize + 1
		end := min((i+1)*PageSize, p.LeafCount)
		out = append(out, Item{
			ID:        PageID(p.ID(), i),
			Title:     fmt.Sprintf("%d - %d", start, end),
			Browsable: true,
		})
	}
	return out
}

// Page returns page n of items. Pages past the end are empty.
func Page[T any](items []T, n int) []T {
	start := n * PageSize
	if n < 0 || start >= len(items) {
		return []T{}
	}
	return items[start:min(start+PageSize, len(items))]
}
