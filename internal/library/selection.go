package library

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/plexaa/internal/models"
	"github.com/desertthunder/plexaa/internal/services"
	"github.com/desertthunder/plexaa/internal/shared"
)

// Selection is the server connection chosen for a source.
type Selection struct {
	Resource   models.Resource
	Connection models.Connection
	Server     services.Server
}

// ServerID is the selected server's clientIdentifier.
func (s *Selection) ServerID() string { return s.Resource.ClientIdentifier }

// SelectOpts configure [SelectServer].
type SelectOpts struct {
	Token        string // account token
	Pinned       string // clientIdentifier to restrict to; empty means any server
	ProbeTimeout time.Duration
	Logger       *log.Logger
}

// SelectServer lists the account's servers and returns the first remote connection that answers
// a liveness probe. Candidates are tried one at a time in listed order.
//
// A pinned server that the account does not list yields [shared.ErrNoServer]; no other server is
// tried in its place.
func SelectServer(ctx context.Context, account services.Account, dial services.Dialer, opts SelectOpts) (*Selection, error) {
	resources, err := account.Resources(ctx, opts.Token)
	if err != nil {
		return nil, fmt.Errorf("failed to list servers: %w", err)
	}

	var candidates []models.Resource
	for _, r := range resources {
		if !r.IsServer() {
			continue
		}
		if opts.Pinned != "" && r.ClientIdentifier != opts.Pinned {
			continue
		}
		candidates = append(candidates, r)
	}

	if len(candidates) == 0 {
		if opts.Pinned != "" {
			return nil, fmt.Errorf("%w: pinned server %s is not available", shared.ErrNoServer, opts.Pinned)
		}
		return nil, fmt.Errorf("%w: account has no servers", shared.ErrNoServer)
	}

	for _, r := range candidates {
		token := r.AccessToken
		if token == "" {
			token = opts.Token
		}

		for _, conn := range r.RemoteConnections() {
			srv := dial(conn.URI, token)
			if err := probe(ctx, srv, opts.ProbeTimeout); err != nil {
				if opts.Logger != nil {
					opts.Logger.Debug("connection probe failed", "server", r.Name, "uri", conn.URI, "error", err)
				}
				continue
			}
			if opts.Logger != nil {
				opts.Logger.Info("selected server", "server", r.Name, "uri", conn.URI, "relay", conn.Relay)
			}
			return &Selection{Resource: r, Connection: conn, Server: srv}, nil
		}
	}

	return nil, fmt.Errorf("%w: no connection answered", shared.ErrNoServer)
}

func probe(ctx context.Context, srv services.Server, timeout time.Duration) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return srv.Identity(ctx)
}
