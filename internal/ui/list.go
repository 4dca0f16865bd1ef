package ui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/list"
	"github.com/desertthunder/plexaa/internal/browse"
	"github.com/desertthunder/plexaa/internal/shared"
)

var (
	_ list.Item = browseItem{}
)

// browseItem wraps [browse.Item] to implement [list.Item].
type browseItem struct {
	item browse.Item
}

func (i browseItem) FilterValue() string { return i.item.Title }
func (i browseItem) Title() string {
	if i.item.Browsable {
		return i.item.Title + " ›"
	}
	return i.item.Title
}
func (i browseItem) Description() string {
	desc := i.item.Subtitle
	if i.item.Playable && i.item.DurationMS > 0 {
		d := shared.FormatDuration(i.item.DurationMS)
		if desc == "" {
			return d
		}
		desc = fmt.Sprintf("%s • %s", desc, d)
	}
	return desc
}

func toListItems(items []browse.Item) []list.Item {
	out := make([]list.Item, len(items))
	for i, it := range items {
		out[i] = browseItem{item: it}
	}
	return out
}
