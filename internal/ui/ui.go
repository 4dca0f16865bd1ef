package ui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/plexaa/internal/browse"
	"github.com/desertthunder/plexaa/internal/shared"
	"github.com/desertthunder/plexaa/internal/tasks"
)

const (
	defaultWidth  = 80
	defaultHeight = 24
	queueWindow   = 12
)

// ViewState represents the current view in the TUI.
type ViewState int

const (
	BrowseView ViewState = iota
	NowPlayingView
)

// Browsing is the browse layer the TUI navigates.
type Browsing interface {
	ChildrenContext(ctx context.Context, parentID string) ([]browse.Item, error)
	Reload()
	Events() <-chan browse.Event
}

// Player controls playback of prepared queues.
type Player interface {
	Prepare(ctx context.Context, mediaID string, position time.Duration) (*browse.Queue, error)
	Next() error
	Current() int
	SetShuffle(on bool) error
	SetRepeat(mode tasks.RepeatMode) error
}

// level is one opened node in the navigation stack.
type level struct {
	id    string
	title string
	list  list.Model
}

// Model represents the TUI application state.
type Model struct {
	ctx      context.Context
	view     ViewState
	browser  Browsing
	player   Player
	progress <-chan tasks.ProgressUpdate

	stack   []level
	pending string
	title   string
	spinner spinner.Model

	queue   *browse.Queue
	shuffle bool
	repeat  tasks.RepeatMode

	status    string
	statusErr bool
	width     int
	height    int
	help      help.Model
	keys      keyMap
}

// NewModel creates a new TUI model with the provided dependencies. progress may be nil.
func NewModel(ctx context.Context, browser Browsing, player Player, progress <-chan tasks.ProgressUpdate) *Model {
	return &Model{
		ctx:      ctx,
		view:     BrowseView,
		browser:  browser,
		player:   player,
		progress: progress,
		spinner:  spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(styles.warn)),
		width:    defaultWidth,
		height:   defaultHeight,
		help:     help.New(),
		keys:     newKeyMap(),
	}
}

// Init loads the root node and starts listening for session events and progress.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.load(browse.RootID, "Plex"), m.waitForEvent(), m.waitForProgress())
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		for i := range m.stack {
			m.stack[i].list.SetSize(m.listSize())
		}
		m.help.Width = msg.Width
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		if top := m.top(); top != nil && top.list.FilterState() == list.Filtering {
			return m.updateList(msg)
		}
		if key.Matches(msg, m.keys.quit) {
			return m, tea.Quit
		}
		switch m.view {
		case BrowseView:
			return m.handleBrowseKeys(msg)
		case NowPlayingView:
			return m.handleNowPlayingKeys(msg)
		}

	case Msg:
		return m.handleMsg(msg)
	}

	return m.updateList(msg)
}

func (m *Model) handleMsg(msg Msg) (tea.Model, tea.Cmd) {
	switch msg.kind {
	case MsgChildrenLoaded:
		data := msg.data.(childrenLoaded)
		if data.parentID != m.pending {
			return m, nil
		}
		m.pending = ""
		if data.err != nil {
			m.setError(data.err)
			if len(m.stack) > 0 {
				return m, nil
			}
		}
		l := list.New(toListItems(data.items), list.NewDefaultDelegate(), 0, 0)
		l.Title = m.title
		l.SetShowHelp(false)
		l.SetSize(m.listSize())
		m.stack = append(m.stack, level{id: data.parentID, title: m.title, list: l})
		return m, nil

	case MsgPrepared:
		data := msg.data.(prepared)
		m.pending = ""
		if data.err != nil {
			m.setError(data.err)
			return m, nil
		}
		m.queue = data.queue
		m.view = NowPlayingView
		m.setStatus(fmt.Sprintf("Playing %s", data.queue.Current().Title))
		return m, nil

	case MsgProgressUpdate:
		update := msg.data.(tasks.ProgressUpdate)
		if update.Phase == tasks.Prefetch || update.Phase == tasks.Evict {
			m.setStatus(update.Message)
		}
		return m, m.waitForProgress()

	case MsgSessionEvent:
		e := msg.data.(browse.Event)
		switch e.Name {
		case browse.EventLoginRequired:
			m.setError(shared.ErrAuthExpired)
		case browse.EventNetworkFailure:
			m.status = fmt.Sprintf("Network failure loading %s", e.ParentID)
			m.statusErr = true
		}
		return m, m.waitForEvent()

	case MsgPlayback:
		if err, _ := msg.data.(error); err != nil {
			m.setError(err)
		}
		return m, nil
	}
	return m, nil
}

func (m *Model) handleBrowseKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.enter):
		top := m.top()
		if top == nil || m.pending != "" {
			return m, nil
		}
		selected, ok := top.list.SelectedItem().(browseItem)
		if !ok {
			return m, nil
		}
		if selected.item.Browsable {
			return m, m.load(selected.item.ID, selected.item.Title)
		}
		if selected.item.Playable {
			return m, m.prepare(selected.item.ID)
		}
		return m, nil

	case key.Matches(msg, m.keys.back):
		if len(m.stack) > 1 {
			m.stack = m.stack[:len(m.stack)-1]
		}
		m.pending = ""
		return m, nil

	case key.Matches(msg, m.keys.playing):
		if m.queue != nil {
			m.view = NowPlayingView
		}
		return m, nil

	case key.Matches(msg, m.keys.reload):
		m.browser.Reload()
		m.stack = nil
		m.setStatus("Reloading library...")
		return m, m.load(browse.RootID, "Plex")
	}

	return m.updateList(msg)
}

func (m *Model) handleNowPlayingKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.back), key.Matches(msg, m.keys.playing):
		m.view = BrowseView
	case key.Matches(msg, m.keys.next):
		return m, m.playback(m.player.Next)
	case key.Matches(msg, m.keys.shuffle):
		m.shuffle = !m.shuffle
		on := m.shuffle
		return m, m.playback(func() error { return m.player.SetShuffle(on) })
	case key.Matches(msg, m.keys.repeat):
		m.repeat = (m.repeat + 1) % 3
		mode := m.repeat
		return m, m.playback(func() error { return m.player.SetRepeat(mode) })
	}
	return m, nil
}

func (m *Model) updateList(msg tea.Msg) (tea.Model, tea.Cmd) {
	top := m.top()
	if top == nil || m.view != BrowseView {
		return m, nil
	}
	var cmd tea.Cmd
	top.list, cmd = top.list.Update(msg)
	return m, cmd
}

func (m *Model) top() *level {
	if len(m.stack) == 0 {
		return nil
	}
	return &m.stack[len(m.stack)-1]
}

func (m *Model) listSize() (int, int) {
	return max(m.width-4, 20), max(m.height-6, 5)
}

func (m *Model) setStatus(s string) {
	m.status = s
	m.statusErr = false
}

func (m *Model) setError(err error) {
	m.statusErr = true
	switch {
	case errors.Is(err, shared.ErrNotAuthenticated), errors.Is(err, shared.ErrAuthExpired):
		m.status = "Not signed in to Plex. Run `plexaa auth login` and press ctrl+r."
	default:
		m.status = fmt.Sprintf("Error: %v", err)
	}
}

func (m *Model) load(id, title string) tea.Cmd {
	m.pending = id
	m.title = title
	return func() tea.Msg {
		items, err := m.browser.ChildrenContext(m.ctx, id)
		return childrenLoadedMsg(id, items, err)
	}
}

func (m *Model) prepare(mediaID string) tea.Cmd {
	m.pending = mediaID
	return func() tea.Msg {
		q, err := m.player.Prepare(m.ctx, mediaID, 0)
		return preparedMsg(q, err)
	}
}

func (m *Model) playback(fn func() error) tea.Cmd {
	return func() tea.Msg { return playbackMsg(fn()) }
}

func (m *Model) waitForEvent() tea.Cmd {
	events := m.browser.Events()
	if events == nil {
		return nil
	}
	return func() tea.Msg {
		e, ok := <-events
		if !ok {
			return nil
		}
		return sessionEventMsg(e)
	}
}

func (m *Model) waitForProgress() tea.Cmd {
	if m.progress == nil {
		return nil
	}
	return func() tea.Msg {
		update, ok := <-m.progress
		if !ok {
			return nil
		}
		return progressUpdateMsg(update)
	}
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	switch m.view {
	case NowPlayingView:
		return m.renderNowPlaying()
	default:
		return m.renderBrowse()
	}
}

func (m *Model) renderStatus() string {
	line := m.status
	if m.pending != "" {
		line = fmt.Sprintf("%s Loading %s...", m.spinner.View(), m.title)
	}
	if line == "" {
		return ""
	}
	if m.statusErr && m.pending == "" {
		return styles.err.Render(line)
	}
	return styles.status.Render(line)
}

func (m *Model) renderBrowse() string {
	helpKeys := []key.Binding{m.keys.enter, m.keys.back, m.keys.reload, m.keys.quit}
	if m.queue != nil {
		helpKeys = append(helpKeys, m.keys.playing)
	}
	helpView := m.help.ShortHelpView(helpKeys)

	top := m.top()
	if top == nil {
		return fmt.Sprintf("%s\n\n%s", m.renderStatus(), helpView)
	}
	return fmt.Sprintf("%s\n%s\n\n%s", top.list.View(), m.renderStatus(), helpView)
}

func (m *Model) renderNowPlaying() string {
	title := styles.title.Render("Now Playing")
	if m.queue == nil || len(m.queue.Items) == 0 {
		return fmt.Sprintf("%s\nNothing queued.\n\n%s", title, m.help.ShortHelpView([]key.Binding{m.keys.back, m.keys.quit}))
	}

	current := m.player.Current()
	start := max(current-2, 0)
	end := min(start+queueWindow, len(m.queue.Items))

	var b strings.Builder
	for i := start; i < end; i++ {
		it := m.queue.Items[i]
		line := fmt.Sprintf("%2d. %s", i+1, it.Title)
		if it.Subtitle != "" {
			line += " - " + it.Subtitle
		}
		if i == current {
			b.WriteString(styles.current.Render(line))
		} else {
			b.WriteString("  " + line)
		}
		b.WriteString("\n")
	}

	shuffle := "off"
	if m.shuffle {
		shuffle = styles.ok.Render("on")
	}
	flags := styles.help.Render(fmt.Sprintf("Shuffle: %s  Repeat: %s  Track %d/%d", shuffle, m.repeat, current+1, len(m.queue.Items)))

	helpKeys := []key.Binding{m.keys.next, m.keys.shuffle, m.keys.repeat, m.keys.back, m.keys.quit}
	helpView := m.help.ShortHelpView(helpKeys)

	return fmt.Sprintf("%s\n%s\n%s\n%s\n\n%s", title, b.String(), flags, m.renderStatus(), helpView)
}
