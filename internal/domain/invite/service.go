package invite

import (
	"context"

	"github.com/noaione/klibrarian/internal/pkg/komga"
	"github.com/noaione/klibrarian/internal/pkg/navidrome"
)

// ConfigResponse is the invite-options data the admin UI builds its create
// form from.
type ConfigResponse struct {
	Komga     KomgaConfigSection     `json:"komga"`
	Navidrome NavidromeConfigSection `json:"navidrome"`
}

type KomgaConfigSection struct {
	Active    bool            `json:"active"`
	Labels    []string        `json:"labels"`
	Libraries []komga.Library `json:"libraries"`
}

type NavidromeConfigSection struct {
	Active    bool                `json:"active"`
	Libraries []navidrome.Library `json:"libraries"`
}

// InfoResponse reports which backing servers are active.
type InfoResponse struct {
	Servers []string `json:"servers"`
	Version string   `json:"v"`
}

// InviteService defines the invite lifecycle operations exposed to the HTTP
// layer.
type InviteService interface {
	// Create mints a token and persists a new invite.
	Create(ctx context.Context, req CreateRequest) (Invite, error)

	// Fetch loads an invite by its textual token, purging it lazily when
	// expired (ErrInviteExpired).
	Fetch(ctx context.Context, token string) (Invite, error)

	// Delete removes an invite unconditionally.
	Delete(ctx context.Context, token string) error

	// Redeem drives the two-phase remote-account-creation protocol and
	// returns the host the new user should be redirected to.
	Redeem(ctx context.Context, token string, req ApplyRequest) (string, error)

	// List returns every pending invite.
	List(ctx context.Context) ([]Invite, error)

	// Config collects label and library options from the backing platforms.
	Config(ctx context.Context) (ConfigResponse, error)

	// Info reports the active backing servers.
	Info(ctx context.Context) InfoResponse
}
