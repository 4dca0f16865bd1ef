package ui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/plexaa/internal/browse"
	"github.com/desertthunder/plexaa/internal/tasks"
)

// MsgKind enumerates all message types in the application.
type MsgKind int

// Msg represents all possible messages in the TUI (Elm-style message union).
type Msg struct {
	kind MsgKind
	data any
}

var (
	_ tea.Msg = Msg{}
)

const (
	MsgChildrenLoaded MsgKind = iota
	MsgPrepared
	MsgProgressUpdate
	MsgSessionEvent
	MsgPlayback
)

type childrenLoaded struct {
	parentID string
	items    []browse.Item
	err      error
}

type prepared struct {
	queue *browse.Queue
	err   error
}

// childrenLoadedMsg is the constructor for [MsgChildrenLoaded]
func childrenLoadedMsg(parentID string, items []browse.Item, err error) Msg {
	return Msg{kind: MsgChildrenLoaded, data: childrenLoaded{parentID, items, err}}
}

// preparedMsg is the constructor for [MsgPrepared]
func preparedMsg(q *browse.Queue, err error) Msg {
	return Msg{kind: MsgPrepared, data: prepared{q, err}}
}

// progressUpdateMsg is the constructor for [MsgProgressUpdate]
func progressUpdateMsg(update tasks.ProgressUpdate) Msg {
	return Msg{kind: MsgProgressUpdate, data: update}
}

// sessionEventMsg is the constructor for [MsgSessionEvent]
func sessionEventMsg(e browse.Event) Msg {
	return Msg{kind: MsgSessionEvent, data: e}
}

// playbackMsg is the constructor for [MsgPlayback], sent after next/shuffle/repeat.
func playbackMsg(err error) Msg {
	return Msg{kind: MsgPlayback, data: err}
}
