package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/plexaa/internal/browse"
	"github.com/desertthunder/plexaa/internal/shared"
)

const keepAlive = 15 * time.Second

// Browsing is the browse layer served by the API.
type Browsing interface {
	ChildrenContext(ctx context.Context, parentID string) ([]browse.Item, error)
	Reload()
	Events() <-chan browse.Event
}

// Preparer starts playback of a media id.
type Preparer interface {
	Prepare(ctx context.Context, mediaID string, position time.Duration) (*browse.Queue, error)
}

// APIOpts configure an [API].
type APIOpts struct {
	Browser       Browsing
	Player        Preparer
	Authenticated func() bool
	Logger        *log.Logger
}

// API serves the browse tree over HTTP.
type API struct {
	browser       Browsing
	player        Preparer
	authenticated func() bool
	logger        *log.Logger
	hub           *broadcaster
}

// NewAPI creates the browse API.
func NewAPI(opts APIOpts) *API {
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard)
	}
	if opts.Authenticated == nil {
		opts.Authenticated = func() bool { return true }
	}
	return &API{
		browser:       opts.Browser,
		player:        opts.Player,
		authenticated: opts.Authenticated,
		logger:        opts.Logger,
		hub:           newBroadcaster(opts.Browser.Events, opts.Logger),
	}
}

// Register adds the API routes to r.
func (a *API) Register(r Router) {
	r.Handle(http.MethodGet, "/healthz", http.HandlerFunc(a.health))
	r.Handle(http.MethodGet, "/browse", http.HandlerFunc(a.children))
	r.Handle(http.MethodPost, "/reload", http.HandlerFunc(a.reload))
	r.Handle(http.MethodGet, "/events", http.HandlerFunc(a.events))
	if a.player != nil {
		r.Handle(http.MethodPost, "/prepare", http.HandlerFunc(a.prepare))
	}
}

type childrenResponse struct {
	ParentID string        `json:"parent_id"`
	Items    []browse.Item `json:"items"`
}

type prepareRequest struct {
	MediaID    string `json:"media_id"`
	PositionMS int64  `json:"position_ms"`
}

func (a *API) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":        "ok",
		"authenticated": a.authenticated(),
	})
}

func (a *API) children(w http.ResponseWriter, r *http.Request) {
	parentID := r.URL.Query().Get("id")
	if parentID == "" {
		parentID = browse.RootID
	}

	items, err := a.browser.ChildrenContext(r.Context(), parentID)
	if err != nil {
		a.logger.Warn("load children failed", "parent", parentID, "error", err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, childrenResponse{ParentID: parentID, Items: items})
}

func (a *API) prepare(w http.ResponseWriter, r *http.Request) {
	var req prepareRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, fmt.Errorf("%w: %v", shared.ErrInvalidArgument, err))
		return
	}
	if req.MediaID == "" {
		writeError(w, fmt.Errorf("%w: media_id is required", shared.ErrInvalidArgument))
		return
	}

	q, err := a.player.Prepare(r.Context(), req.MediaID, time.Duration(req.PositionMS)*time.Millisecond)
	if err != nil {
		a.logger.Warn("prepare failed", "media_id", req.MediaID, "error", err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, q)
}

func (a *API) reload(w http.ResponseWriter, r *http.Request) {
	a.browser.Reload()
	w.WriteHeader(http.StatusNoContent)
}

// events streams session events as server-sent events until the client goes away. Every
// connected client receives every event.
func (a *API) events(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	events, unsubscribe := a.hub.subscribe()
	defer unsubscribe()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ticker := time.NewTicker(keepAlive)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
			fmt.Fprint(w, ": ping\n\n")
		case e, ok := <-events:
			if !ok {
				return
			}
			data, err := json.Marshal(e)
			if err != nil {
				a.logger.Error("failed to encode event", "event", e.Name, "error", err)
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", e.Name, data)
		}
		flusher.Flush()
	}
}

// StatusFor maps domain errors to HTTP status codes.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, shared.ErrNotAuthenticated), errors.Is(err, shared.ErrAuthExpired):
		return http.StatusUnauthorized
	case errors.Is(err, shared.ErrInvalidID), errors.Is(err, shared.ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, shared.ErrNotFound), errors.Is(err, shared.ErrTrackNotFound), errors.Is(err, shared.ErrPlaylistNotFound):
		return http.StatusNotFound
	case errors.Is(err, shared.ErrResourceFailed), errors.Is(err, shared.ErrNoServer), errors.Is(err, shared.ErrServiceUnavailable):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, StatusFor(err), map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
