package invite

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/noaione/klibrarian/internal/domain/invite"
	"github.com/noaione/klibrarian/internal/pkg/komga"
	"github.com/noaione/klibrarian/internal/pkg/navidrome"
)

// komgaDefaultRoles is the role set applied to self-service Komga signups
// when the invite does not pin one.
var komgaDefaultRoles = []string{"USER", "FILE_DOWNLOAD", "PAGE_STREAMING"}

// KomgaAPI is the surface of the Komga client the invite flow depends on.
type KomgaAPI interface {
	CreateUser(ctx context.Context, user komga.UserCreate) (komga.User, error)
	ApplyUserRestriction(ctx context.Context, userID string, restriction komga.UserRestriction) error
	GetSharingLabels(ctx context.Context) ([]string, error)
	GetLibraries(ctx context.Context) ([]komga.Library, error)
}

// NavidromeAPI is the surface of the Navidrome client the invite flow
// depends on.
type NavidromeAPI interface {
	CreateUser(ctx context.Context, user navidrome.UserCreate) (navidrome.User, error)
	ApplyUserLibrary(ctx context.Context, userID string, libraryIDs []uint64) error
	GetLibraries(ctx context.Context) ([]navidrome.Library, error)
}

type inviteServiceImpl struct {
	logger        *slog.Logger
	repo          invite.InviteRepository
	komga         KomgaAPI
	navidrome     NavidromeAPI
	komgaHost     string
	navidromeHost string
	version       string
}

// NewInviteService wires the invite lifecycle service. navidromeClient may be
// nil when the deployment has no Navidrome instance configured.
func NewInviteService(
	logger *slog.Logger,
	repo invite.InviteRepository,
	komgaClient KomgaAPI,
	navidromeClient NavidromeAPI,
	komgaHost string,
	navidromeHost string,
	version string,
) invite.InviteService {
	return &inviteServiceImpl{
		logger:        logger,
		repo:          repo,
		komga:         komgaClient,
		navidrome:     navidromeClient,
		komgaHost:     komgaHost,
		navidromeHost: navidromeHost,
		version:       version,
	}
}

// Create implements invite.InviteService.
func (s *inviteServiceImpl) Create(ctx context.Context, req invite.CreateRequest) (invite.Invite, error) {
	var inv invite.Invite
	switch req.Kind {
	case invite.KindKomga:
		inv = invite.NewKomgaInvite(*req.Komga)
	case invite.KindNavidrome:
		inv = invite.NewNavidromeInvite(*req.Navidrome)
	default:
		return invite.Invite{}, &invite.UnknownKindError{Kind: string(req.Kind)}
	}

	if err := s.repo.Insert(ctx, inv); err != nil {
		return invite.Invite{}, err
	}

	s.logger.Info("created invite token", "token", inv.Token.String(), "kind", string(inv.Kind))
	return inv, nil
}

// Fetch implements invite.InviteService. An expired invite is purged on
// access; a failure of that purge surfaces as the store error rather than
// the expiry signal.
func (s *inviteServiceImpl) Fetch(ctx context.Context, tokenText string) (invite.Invite, error) {
	token, err := invite.ParseToken(tokenText)
	if err != nil {
		return invite.Invite{}, err
	}

	inv, err := s.repo.Get(ctx, token)
	if err != nil {
		return invite.Invite{}, err
	}

	if inv.IsExpired(time.Now()) {
		if err := s.repo.Delete(ctx, token); err != nil {
			return invite.Invite{}, fmt.Errorf("failed to delete expired invite token: %w", err)
		}
		return invite.Invite{}, invite.ErrInviteExpired
	}

	return inv, nil
}

// Delete implements invite.InviteService.
func (s *inviteServiceImpl) Delete(ctx context.Context, tokenText string) error {
	token, err := invite.ParseToken(tokenText)
	if err != nil {
		return err
	}
	return s.repo.Delete(ctx, token)
}

// List implements invite.InviteService.
func (s *inviteServiceImpl) List(ctx context.Context) ([]invite.Invite, error) {
	return s.repo.ListAll(ctx)
}

// Redeem implements invite.InviteService. It drives the two-phase protocol:
// create the remote account, checkpoint its id, apply restrictions, then
// delete the invite. A prior partial failure resumes from the restriction
// step. Nothing is retried and nothing is rolled back.
func (s *inviteServiceImpl) Redeem(ctx context.Context, tokenText string, req invite.ApplyRequest) (string, error) {
	token, err := invite.ParseToken(tokenText)
	if err != nil {
		return "", err
	}

	inv, err := s.repo.Get(ctx, token)
	if err != nil {
		return "", err
	}

	if inv.IsExpired(time.Now()) {
		if err := s.repo.Delete(ctx, token); err != nil {
			return "", fmt.Errorf("failed to delete expired invite token: %w", err)
		}
		return "", invite.ErrInviteExpired
	}

	if err := req.Validate(inv.Kind); err != nil {
		return "", err
	}

	switch inv.Kind {
	case invite.KindKomga:
		if err := s.redeemKomga(ctx, &inv, req); err != nil {
			return "", err
		}
		return s.komgaHost, nil
	case invite.KindNavidrome:
		if s.navidrome == nil || s.navidromeHost == "" {
			return "", &invite.ClientUnavailableError{Platform: "navidrome"}
		}
		if err := s.redeemNavidrome(ctx, &inv, req); err != nil {
			return "", err
		}
		return s.navidromeHost, nil
	default:
		return "", &invite.UnknownKindError{Kind: string(inv.Kind)}
	}
}

func (s *inviteServiceImpl) redeemKomga(ctx context.Context, inv *invite.Invite, req invite.ApplyRequest) error {
	if inv.Kind != invite.KindKomga {
		return &invite.WrongInviteKindError{Actual: inv.Kind, Expected: invite.KindKomga}
	}

	option := inv.Komga
	roles := option.Roles
	if roles == nil {
		roles = komgaDefaultRoles
	}
	restriction := komga.UserRestriction{
		LabelsAllow:   option.LabelsAllow,
		LabelsExclude: option.LabelsExclude,
	}
	if option.SharedLibraries != nil {
		restriction.SharedLibraries = &komga.SharedLibraries{
			All:        option.SharedLibraries.All,
			LibraryIDs: option.SharedLibraries.LibraryIDs,
		}
	}

	userID := inv.RemoteUserID
	if userID == nil {
		s.logger.Info("creating new user", "token", inv.Token.String(), "email", req.Email)
		user, err := s.komga.CreateUser(ctx, komga.UserCreate{
			Email:    req.Email,
			Password: req.Password,
			Roles:    roles,
		})
		if err != nil {
			return fmt.Errorf("failed to create user in Komga: %w", err)
		}

		// Checkpoint the remote id first: a crash between here and the
		// restriction call must not re-create the account on retry.
		if err := s.repo.SetRemoteUserID(ctx, inv.Token, user.ID); err != nil {
			return err
		}
		userID = &user.ID
	} else {
		s.logger.Info("user already created, applying restrictions",
			"token", inv.Token.String(), "user_id", *userID)
	}

	if err := s.komga.ApplyUserRestriction(ctx, *userID, restriction); err != nil {
		return fmt.Errorf("failed to create user in Komga: %w", err)
	}

	s.logger.Info("deleting invite token after user creation", "token", inv.Token.String())
	if err := s.repo.Delete(ctx, inv.Token); err != nil {
		return err
	}

	s.logger.Info("user created successfully", "token", inv.Token.String(), "user_id", *userID)
	return nil
}

func (s *inviteServiceImpl) redeemNavidrome(ctx context.Context, inv *invite.Invite, req invite.ApplyRequest) error {
	if inv.Kind != invite.KindNavidrome {
		return &invite.WrongInviteKindError{Actual: inv.Kind, Expected: invite.KindNavidrome}
	}

	option := inv.Navidrome

	userID := inv.RemoteUserID
	if userID == nil {
		s.logger.Info("creating new user", "token", inv.Token.String(), "email", req.Email)
		user, err := s.navidrome.CreateUser(ctx, navidrome.NewUserCreate(
			req.Username, req.Email, req.Password, option.IsAdmin,
		))
		if err != nil {
			return fmt.Errorf("failed to create user in Navidrome: %w", err)
		}

		if err := s.repo.SetRemoteUserID(ctx, inv.Token, user.ID); err != nil {
			return err
		}
		userID = &user.ID
	} else {
		s.logger.Info("user already created, applying restrictions",
			"token", inv.Token.String(), "user_id", *userID)
	}

	if err := s.navidrome.ApplyUserLibrary(ctx, *userID, option.LibraryIDs); err != nil {
		return fmt.Errorf("failed to create user in Navidrome: %w", err)
	}

	s.logger.Info("deleting invite token after user creation", "token", inv.Token.String())
	if err := s.repo.Delete(ctx, inv.Token); err != nil {
		return err
	}

	s.logger.Info("user created successfully", "token", inv.Token.String(), "user_id", *userID)
	return nil
}

// Config implements invite.InviteService.
func (s *inviteServiceImpl) Config(ctx context.Context) (invite.ConfigResponse, error) {
	labels, err := s.komga.GetSharingLabels(ctx)
	if err != nil {
		return invite.ConfigResponse{}, fmt.Errorf("failed to get labels from Komga: %w", err)
	}

	libraries, err := s.komga.GetLibraries(ctx)
	if err != nil {
		return invite.ConfigResponse{}, fmt.Errorf("failed to get libraries from Komga: %w", err)
	}

	response := invite.ConfigResponse{
		Komga: invite.KomgaConfigSection{
			Active:    true,
			Labels:    labels,
			Libraries: libraries,
		},
		Navidrome: invite.NavidromeConfigSection{
			Libraries: []navidrome.Library{},
		},
	}

	if s.navidrome != nil {
		navidromeLibraries, err := s.navidrome.GetLibraries(ctx)
		if err != nil {
			return invite.ConfigResponse{}, fmt.Errorf("failed to get libraries from Navidrome: %w", err)
		}
		response.Navidrome.Active = true
		response.Navidrome.Libraries = navidromeLibraries
	}

	return response, nil
}

// Info implements invite.InviteService.
func (s *inviteServiceImpl) Info(ctx context.Context) invite.InfoResponse {
	servers := []string{"komga"}
	if s.navidrome != nil {
		servers = append(servers, "navidrome")
	}
	return invite.InfoResponse{Servers: servers, Version: s.version}
}
