package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/desertthunder/plexaa/internal/models"
)

const pinCheckTimeout = 10 * time.Second

// PinChecker polls a plex.tv login PIN.
type PinChecker interface {
	CheckPin(ctx context.Context, id int64) (*models.Pin, error)
}

// PinResult contains the outcome of a PIN login.
type PinResult struct {
	Token string
	err   error
}

func (p *PinResult) Error() error {
	return p.err
}

// PinHandler handles the browser redirect plex.tv sends after the user approves a login PIN.
// Implements the Handler interface for registration with a Router.
type PinHandler struct {
	checker     PinChecker
	pin         *models.Pin
	resultChan  chan PinResult
	once        sync.Once
	callbackHit bool
	mu          sync.Mutex
}

// NewPinHandler creates a handler waiting for approval of pin.
func NewPinHandler(checker PinChecker, pin *models.Pin) *PinHandler {
	return &PinHandler{
		checker:    checker,
		pin:        pin,
		resultChan: make(chan PinResult, 1),
	}
}

// Routes returns the HTTP routes this handler serves.
func (h *PinHandler) Routes() []string {
	return []string{"/callback"}
}

// CallbackURL is the forward URL to hand to plex.tv for a server listening on addr.
func (h *PinHandler) CallbackURL(addr string) string {
	return fmt.Sprintf("http://%s/callback?pin=%d", addr, h.pin.ID)
}

// ServeHTTP handles the callback request.
//
// Validates the pin parameter, checks the PIN against plex.tv, and sends the token through the
// result channel.
func (h *PinHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	if h.callbackHit {
		h.mu.Unlock()
		http.Error(w, "Callback already processed", http.StatusBadRequest)
		return
	}
	h.callbackHit = true
	h.mu.Unlock()

	id, err := strconv.ParseInt(r.URL.Query().Get("pin"), 10, 64)
	if err != nil || id != h.pin.ID {
		h.Send(PinResult{err: errors.New("invalid pin parameter")})
		http.Error(w, "Invalid pin parameter", http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), pinCheckTimeout)
	defer cancel()

	pin, err := h.checker.CheckPin(ctx, id)
	if err != nil {
		h.Send(PinResult{err: fmt.Errorf("pin check failed: %w", err)})
		http.Error(w, "Pin check failed", http.StatusBadGateway)
		return
	}
	if pin.AuthToken == "" {
		h.Send(PinResult{err: errors.New("login was not approved")})
		http.Error(w, "Login was not approved", http.StatusUnauthorized)
		return
	}

	h.Send(PinResult{Token: pin.AuthToken})

	w.Header().Set("Content-Type", "text/html")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, `
<!DOCTYPE html>
<html>
<head>
    <title>Signed In</title>
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, sans-serif;
               display: flex; align-items: center; justify-content: center; height: 100vh;
               margin: 0; background: #1f1f1f; }
        .container { text-align: center; background: #2b2b2b; padding: 2rem;
                     border-radius: 8px; box-shadow: 0 2px 4px rgba(0,0,0,0.3); }
        h1 { color: #E5A00D; margin: 0 0 1rem 0; }
        p { color: #aaa; margin: 0; }
    </style>
</head>
<body>
    <div class="container">
        <h1>✓ Signed in to Plex</h1>
        <p>You can close this window and return to the terminal.</p>
    </div>
</body>
</html>
`)
}

// Send sends the result through the channel (only once).
func (h *PinHandler) Send(result PinResult) {
	h.once.Do(func() {
		h.resultChan <- result
		close(h.resultChan)
	})
}

// Result returns the result channel for receiving login completion.
//
// Channel will receive exactly one result and then be closed.
func (h *PinHandler) Result() <-chan PinResult {
	return h.resultChan
}
