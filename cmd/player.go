package main

import (
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/plexaa/internal/browse"
	"github.com/desertthunder/plexaa/internal/shared"
	"github.com/desertthunder/plexaa/internal/tasks"
)

var _ tasks.Player = (*printPlayer)(nil)

// printPlayer stands in for an audio engine by announcing what would play.
type printPlayer struct {
	out    io.Writer
	logger *log.Logger
	items  []browse.Item
}

func newPrintPlayer(out io.Writer, logger *log.Logger) *printPlayer {
	return &printPlayer{out: out, logger: logger}
}

func (p *printPlayer) Load(items []browse.Item, start int, position time.Duration) error {
	p.items = items
	return p.Seek(start, position)
}

func (p *printPlayer) Seek(index int, position time.Duration) error {
	if index < 0 || index >= len(p.items) {
		return fmt.Errorf("%w: index %d out of range", shared.ErrInvalidArgument, index)
	}
	it := p.items[index]
	p.logger.Debug("playing", "id", it.ID, "stream", it.StreamURL, "position", position)

	line := fmt.Sprintf("▶ Playing %s", it.Title)
	if it.Subtitle != "" {
		line += " - " + it.Subtitle
	}
	if position > 0 {
		line += fmt.Sprintf(" from %s", shared.FormatDuration(position.Milliseconds()))
	}
	_, err := fmt.Fprintf(p.out, "%s (%d/%d)\n", line, index+1, len(p.items))
	return err
}
