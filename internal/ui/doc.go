// Package ui implements an interactive terminal browser for a Plex music library using bubbletea's Elm architecture.
//
// The TUI has two views:
//  1. [BrowseView] : a stack of lists, one per opened node, starting at the browse root
//  2. [NowPlayingView] : the prepared queue around the current track, with shuffle and repeat flags
//
// Enter opens a browsable item or prepares a playable one; esc goes back up the stack.
// Session events (network failure, login required) and prefetch progress arrive on channels and
// are shown in the status line.
//
// Keyboard navigation uses vim-style bindings (j/k, enter, esc, n/s/r, q) with contextual help displayed via charmbracelet/bubbles/help.
package ui
