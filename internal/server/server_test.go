package server

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/plexaa/internal/browse"
	"github.com/desertthunder/plexaa/internal/models"
	"github.com/desertthunder/plexaa/internal/shared"
)

type fakeBrowser struct {
	mu       sync.Mutex
	children map[string][]browse.Item
	err      error
	reloads  int
	events   chan browse.Event
}

func (f *fakeBrowser) ChildrenContext(_ context.Context, parentID string) ([]browse.Item, error) {
	if f.err != nil {
		return []browse.Item{}, f.err
	}
	return f.children[parentID], nil
}

func (f *fakeBrowser) Reload() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reloads++
}

func (f *fakeBrowser) Events() <-chan browse.Event { return f.events }

type fakePlayer struct {
	mediaID  string
	position time.Duration
	err      error
}

func (f *fakePlayer) Prepare(_ context.Context, mediaID string, position time.Duration) (*browse.Queue, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.mediaID, f.position = mediaID, position
	return &browse.Queue{
		ParentID: "10",
		Items:    []browse.Item{{ID: "10/1", Title: "One"}, {ID: "10/2", Title: "Two"}},
		Start:    1,
	}, nil
}

type fakeChecker struct {
	pin *models.Pin
	err error
}

func (f fakeChecker) CheckPin(context.Context, int64) (*models.Pin, error) { return f.pin, f.err }

func newAPIServer(t *testing.T, b *fakeBrowser, p *fakePlayer) *httptest.Server {
	t.Helper()
	router := NewBasicRouter()
	router.Use(Recover(log.New(io.Discard)), Logger(log.New(io.Discard)))

	opts := APIOpts{Browser: b, Authenticated: func() bool { return true }}
	if p != nil {
		opts.Player = p
	}
	NewAPI(opts).Register(router)

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv
}

func TestBasicRouter(t *testing.T) {
	t.Run("Method Dispatch", func(t *testing.T) {
		router := NewBasicRouter()
		router.Handle(http.MethodGet, "/thing", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			io.WriteString(w, "get")
		}))
		router.Handle(http.MethodPost, "/thing", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			io.WriteString(w, "post")
		}))

		for _, tt := range []struct {
			method string
			status int
			body   string
		}{
			{http.MethodGet, http.StatusOK, "get"},
			{http.MethodPost, http.StatusOK, "post"},
			{http.MethodDelete, http.StatusMethodNotAllowed, ""},
		} {
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(tt.method, "/thing", nil))
			if rec.Code != tt.status {
				t.Errorf("%s: status = %d, want %d", tt.method, rec.Code, tt.status)
			}
			if tt.body != "" && rec.Body.String() != tt.body {
				t.Errorf("%s: body = %q, want %q", tt.method, rec.Body.String(), tt.body)
			}
			if tt.status == http.StatusMethodNotAllowed && rec.Header().Get("Allow") != "GET, POST" {
				t.Errorf("Allow = %q", rec.Header().Get("Allow"))
			}
		}
	})

	t.Run("Middleware Order", func(t *testing.T) {
		var order []string
		mw := func(name string) Middleware {
			return func(next http.Handler) http.Handler {
				return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					order = append(order, name)
					next.ServeHTTP(w, r)
				})
			}
		}

		router := NewBasicRouter()
		router.Use(mw("first"), mw("second"))
		router.Handle(http.MethodGet, "/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			order = append(order, "handler")
		}))
		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

		if got := strings.Join(order, ","); got != "first,second,handler" {
			t.Errorf("order = %s", got)
		}
	})

	t.Run("Recover", func(t *testing.T) {
		router := NewBasicRouter()
		router.Use(Recover(log.New(io.Discard)))
		router.Handle(http.MethodGet, "/boom", http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
			panic("boom")
		}))

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/boom", nil))
		if rec.Code != http.StatusInternalServerError {
			t.Errorf("status = %d", rec.Code)
		}
	})
}

func TestAPI(t *testing.T) {
	t.Run("Browse Root By Default", func(t *testing.T) {
		b := &fakeBrowser{children: map[string][]browse.Item{
			browse.RootID: {{ID: browse.PlaylistsID, Title: "Playlists", Browsable: true}},
		}}
		srv := newAPIServer(t, b, nil)

		resp, err := http.Get(srv.URL + "/browse")
		if err != nil {
			t.Fatal(err)
		}
		defer resp.Body.Close()

		var got childrenResponse
		if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
			t.Fatal(err)
		}
		if got.ParentID != browse.RootID || len(got.Items) != 1 || got.Items[0].ID != browse.PlaylistsID {
			t.Errorf("unexpected response %+v", got)
		}
	})

	t.Run("Browse Errors", func(t *testing.T) {
		tc := []struct {
			err  error
			want int
		}{
			{shared.ErrNotAuthenticated, http.StatusUnauthorized},
			{fmt.Errorf("%w: page", shared.ErrInvalidID), http.StatusBadRequest},
			{fmt.Errorf("%w: playlist 10", shared.ErrResourceFailed), http.StatusBadGateway},
			{errors.New("boom"), http.StatusInternalServerError},
		}
		for _, tt := range tc {
			srv := newAPIServer(t, &fakeBrowser{err: tt.err}, nil)
			resp, err := http.Get(srv.URL + "/browse?id=10")
			if err != nil {
				t.Fatal(err)
			}
			resp.Body.Close()
			if resp.StatusCode != tt.want {
				t.Errorf("%v: status = %d, want %d", tt.err, resp.StatusCode, tt.want)
			}
		}
	})

	t.Run("Prepare", func(t *testing.T) {
		p := &fakePlayer{}
		srv := newAPIServer(t, &fakeBrowser{}, p)

		body := strings.NewReader(`{"media_id":"10/2","position_ms":1500}`)
		resp, err := http.Post(srv.URL+"/prepare", "application/json", body)
		if err != nil {
			t.Fatal(err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status = %d", resp.StatusCode)
		}
		var q browse.Queue
		if err := json.NewDecoder(resp.Body).Decode(&q); err != nil {
			t.Fatal(err)
		}
		if q.Start != 1 || len(q.Items) != 2 {
			t.Errorf("unexpected queue %+v", q)
		}
		if p.mediaID != "10/2" || p.position != 1500*time.Millisecond {
			t.Errorf("player got %q at %v", p.mediaID, p.position)
		}
	})

	t.Run("Prepare Rejects Bad Input", func(t *testing.T) {
		srv := newAPIServer(t, &fakeBrowser{}, &fakePlayer{err: fmt.Errorf("%w: 10", shared.ErrInvalidID)})

		for _, body := range []string{`not json`, `{}`, `{"media_id":"10"}`} {
			resp, err := http.Post(srv.URL+"/prepare", "application/json", strings.NewReader(body))
			if err != nil {
				t.Fatal(err)
			}
			resp.Body.Close()
			if resp.StatusCode != http.StatusBadRequest {
				t.Errorf("%s: status = %d", body, resp.StatusCode)
			}
		}
	})

	t.Run("Prepare Not Registered Without Player", func(t *testing.T) {
		srv := newAPIServer(t, &fakeBrowser{}, nil)
		resp, err := http.Post(srv.URL+"/prepare", "application/json", strings.NewReader(`{}`))
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusNotFound {
			t.Errorf("status = %d", resp.StatusCode)
		}
	})

	t.Run("Reload", func(t *testing.T) {
		b := &fakeBrowser{}
		srv := newAPIServer(t, b, nil)

		resp, err := http.Post(srv.URL+"/reload", "", nil)
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusNoContent || b.reloads != 1 {
			t.Errorf("status = %d reloads = %d", resp.StatusCode, b.reloads)
		}
	})

	t.Run("Health", func(t *testing.T) {
		srv := newAPIServer(t, &fakeBrowser{}, nil)
		resp, err := http.Get(srv.URL + "/healthz")
		if err != nil {
			t.Fatal(err)
		}
		defer resp.Body.Close()

		var got map[string]any
		json.NewDecoder(resp.Body).Decode(&got)
		if got["status"] != "ok" || got["authenticated"] != true {
			t.Errorf("unexpected health %v", got)
		}
	})

	t.Run("Events", func(t *testing.T) {
		b := &fakeBrowser{events: make(chan browse.Event, 1)}
		srv := newAPIServer(t, b, nil)

		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		resp := openEvents(t, ctx, srv.URL)

		if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
			t.Fatalf("Content-Type = %q", ct)
		}

		b.events <- browse.Event{Name: browse.EventNetworkFailure, ParentID: "10"}

		lines := readEvent(t, bufio.NewReader(resp.Body))
		if lines[0] != "event: NETWORK_FAILURE" {
			t.Errorf("event line = %q", lines[0])
		}
		if lines[1] != `data: {"name":"NETWORK_FAILURE","parent_id":"10"}` {
			t.Errorf("data line = %q", lines[1])
		}
	})

	t.Run("Events Reach Every Client", func(t *testing.T) {
		b := &fakeBrowser{events: make(chan browse.Event, 1)}
		srv := newAPIServer(t, b, nil)

		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		first := bufio.NewReader(openEvents(t, ctx, srv.URL).Body)
		second := bufio.NewReader(openEvents(t, ctx, srv.URL).Body)

		b.events <- browse.Event{Name: browse.EventLoginRequired}

		for i, r := range []*bufio.Reader{first, second} {
			if lines := readEvent(t, r); lines[0] != "event: LOGIN_REQUIRED" {
				t.Errorf("client %d: event line = %q", i, lines[0])
			}
		}
	})
}

// openEvents connects to the event stream. The subscription is live once headers arrive.
func openEvents(t *testing.T, ctx context.Context, base string) *http.Response {
	t.Helper()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, base+"/events", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

// readEvent returns the event and data lines of the next event, skipping keep-alive comments.
func readEvent(t *testing.T, reader *bufio.Reader) []string {
	t.Helper()
	var lines []string
	for len(lines) < 2 {
		line, err := reader.ReadString('\n')
		if err != nil {
			t.Fatalf("read event: %v", err)
		}
		if line = strings.TrimSpace(line); line != "" && !strings.HasPrefix(line, ":") {
			lines = append(lines, line)
		}
	}
	return lines
}

func TestBroadcaster(t *testing.T) {
	t.Run("Slow Subscriber Does Not Block Others", func(t *testing.T) {
		src := make(chan browse.Event)
		b := newBroadcaster(func() <-chan browse.Event { return src }, log.New(io.Discard))

		stalled, cancelStalled := b.subscribe()
		defer cancelStalled()
		live, cancelLive := b.subscribe()
		defer cancelLive()

		for range subscriberBuffer + 1 {
			src <- browse.Event{Name: browse.EventNetworkFailure}
		}
		got := 0
		for range subscriberBuffer {
			select {
			case <-live:
				got++
			case <-time.After(time.Second):
				t.Fatalf("live subscriber got %d events", got)
			}
		}
		if len(stalled) != subscriberBuffer {
			t.Errorf("stalled subscriber should hold a full buffer, got %d", len(stalled))
		}
	})

	t.Run("Unsubscribe And Source Close", func(t *testing.T) {
		src := make(chan browse.Event)
		b := newBroadcaster(func() <-chan browse.Event { return src }, log.New(io.Discard))

		gone, cancel := b.subscribe()
		cancel()
		cancel()
		if _, open := <-gone; open {
			t.Error("unsubscribed channel should be closed")
		}

		kept, _ := b.subscribe()
		if b.subscribers() != 1 {
			t.Fatalf("expected one subscriber, got %d", b.subscribers())
		}
		close(src)
		select {
		case _, open := <-kept:
			if open {
				t.Error("expected the subscriber closed with the source")
			}
		case <-time.After(time.Second):
			t.Fatal("subscriber not closed after the source closed")
		}

		late, _ := b.subscribe()
		if _, open := <-late; open {
			t.Error("subscribing after the source closed should yield a closed channel")
		}
	})
}

func TestPinHandler(t *testing.T) {
	pin := &models.Pin{ID: 42, Code: "abcd"}

	t.Run("Approved", func(t *testing.T) {
		h := NewPinHandler(fakeChecker{pin: &models.Pin{ID: 42, AuthToken: "secret"}}, pin)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/callback?pin=42", nil))

		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
		result := <-h.Result()
		if result.Error() != nil || result.Token != "secret" {
			t.Errorf("unexpected result %+v", result)
		}
		if _, open := <-h.Result(); open {
			t.Error("result channel should be closed after one result")
		}
	})

	t.Run("Failures", func(t *testing.T) {
		tc := []struct {
			name    string
			checker fakeChecker
			query   string
			status  int
		}{
			{"wrong pin", fakeChecker{pin: &models.Pin{AuthToken: "x"}}, "pin=7", http.StatusBadRequest},
			{"missing pin", fakeChecker{pin: &models.Pin{AuthToken: "x"}}, "", http.StatusBadRequest},
			{"not approved", fakeChecker{pin: &models.Pin{ID: 42}}, "pin=42", http.StatusUnauthorized},
			{"expired", fakeChecker{err: shared.ErrPinExpired}, "pin=42", http.StatusBadGateway},
		}
		for _, tt := range tc {
			t.Run(tt.name, func(t *testing.T) {
				h := NewPinHandler(tt.checker, pin)
				rec := httptest.NewRecorder()
				h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/callback?"+tt.query, nil))

				if rec.Code != tt.status {
					t.Errorf("status = %d, want %d", rec.Code, tt.status)
				}
				if result := <-h.Result(); result.Error() == nil {
					t.Error("expected an error result")
				}
			})
		}
	})

	t.Run("Only First Callback", func(t *testing.T) {
		h := NewPinHandler(fakeChecker{pin: &models.Pin{AuthToken: "secret"}}, pin)
		router := NewBasicRouter()
		router.Handler(h)

		for i, want := range []int{http.StatusOK, http.StatusBadRequest} {
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/callback?pin=42", nil))
			if rec.Code != want {
				t.Errorf("call %d: status = %d, want %d", i, rec.Code, want)
			}
		}
	})

	t.Run("Callback URL", func(t *testing.T) {
		h := NewPinHandler(fakeChecker{}, pin)
		if got := h.CallbackURL("localhost:3000"); got != "http://localhost:3000/callback?pin=42" {
			t.Errorf("CallbackURL() = %q", got)
		}
	})
}
