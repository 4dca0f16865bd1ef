// plex.tv account API: resources, PIN login and the signed-in user
package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/plexaa/internal/models"
	"github.com/desertthunder/plexaa/internal/shared"
)

const (
	defaultAccountURL = "https://plex.tv"
	defaultAuthAppURL = "https://app.plex.tv/auth"
)

// APIService talks to the plex.tv account API and implements [Account].
type APIService struct {
	baseURL    string
	authAppURL string
	client     *PlexClient
}

// NewAPIService creates an account client. Empty URLs default to plex.tv.
func NewAPIService(baseURL, authAppURL string, client *PlexClient) *APIService {
	if baseURL == "" {
		baseURL = defaultAccountURL
	}
	if authAppURL == "" {
		authAppURL = defaultAuthAppURL
	}
	if client == nil {
		client = NewPlexClient(ClientOptions{})
	}

	return &APIService{
		baseURL:    strings.TrimRight(baseURL, "/"),
		authAppURL: authAppURL,
		client:     client,
	}
}

func (a *APIService) logger() *log.Logger { return a.client.logger }

// do performs a request against the account API and decodes the JSON response into result.
func (a *APIService) do(ctx context.Context, method, path, token string, result any) error {
	fullURL := a.baseURL + path

	req, err := http.NewRequestWithContext(ctx, method, fullURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	a.client.setHeaders(req, token)

	resp, err := a.client.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: request failed: %v", shared.ErrServiceUnavailable, err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp, path); err != nil {
		return err
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if result != nil {
		if err := json.Unmarshal(body, result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}

// Resources lists devices authorized for the account, including HTTPS and relay connections.
func (a *APIService) Resources(ctx context.Context, token string) ([]models.Resource, error) {
	if token == "" {
		return nil, shared.ErrNotAuthenticated
	}

	var resources []models.Resource
	if err := a.do(ctx, http.MethodGet, "/api/v2/resources?includeHttps=1&includeRelay=1", token, &resources); err != nil {
		return nil, err
	}
	a.logger().Debug("fetched resources", "count", len(resources))
	return resources, nil
}

// CreatePin requests a strong PIN for login.
func (a *APIService) CreatePin(ctx context.Context) (*models.Pin, error) {
	var pin models.Pin
	if err := a.do(ctx, http.MethodPost, "/api/v2/pins?strong=true", "", &pin); err != nil {
		return nil, err
	}
	if pin.ID == 0 || pin.Code == "" {
		return nil, fmt.Errorf("%w: pin response missing id or code", shared.ErrAPIRequest)
	}
	return &pin, nil
}

// CheckPin polls a PIN. A 404 means the PIN expired.
func (a *APIService) CheckPin(ctx context.Context, id int64) (*models.Pin, error) {
	var pin models.Pin
	err := a.do(ctx, http.MethodGet, "/api/v2/pins/"+strconv.FormatInt(id, 10), "", &pin)
	switch {
	case err == nil:
		return &pin, nil
	case errors.Is(err, shared.ErrNotFound):
		return nil, fmt.Errorf("%w: pin %d", shared.ErrPinExpired, id)
	default:
		return nil, err
	}
}

func (a *APIService) User(ctx context.Context, token string) (*models.Account, error) {
	if token == "" {
		return nil, shared.ErrNotAuthenticated
	}
	var account models.Account
	if err := a.do(ctx, http.MethodGet, "/api/v2/user", token, &account); err != nil {
		return nil, err
	}
	return &account, nil
}

// AuthURL builds the app.plex.tv login link for pin. forwardURL, when set, is where the browser
// is sent after approval.
func (a *APIService) AuthURL(pin *models.Pin, forwardURL string) string {
	params := url.Values{}
	params.Set("clientID", a.client.clientID)
	params.Set("code", pin.Code)
	params.Set("context[device][product]", a.client.product)
	if forwardURL != "" {
		params.Set("forwardUrl", forwardURL)
	}
	return a.authAppURL + "#?" + params.Encode()
}
