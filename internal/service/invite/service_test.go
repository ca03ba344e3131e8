package invite

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noaione/klibrarian/internal/domain/invite"
	"github.com/noaione/klibrarian/internal/pkg/komga"
	"github.com/noaione/klibrarian/internal/pkg/navidrome"
	"github.com/noaione/klibrarian/internal/pkg/validator"
)

type fakeRepo struct {
	invites   map[string]invite.Invite
	deleteErr error
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{invites: make(map[string]invite.Invite)}
}

func (r *fakeRepo) Initialize(ctx context.Context) error {
	return nil
}

func (r *fakeRepo) Insert(ctx context.Context, inv invite.Invite) error {
	key := inv.Token.String()
	if _, exists := r.invites[key]; exists {
		return errors.New("duplicate key value violates unique constraint")
	}
	r.invites[key] = inv
	return nil
}

func (r *fakeRepo) Get(ctx context.Context, token invite.TokenID) (invite.Invite, error) {
	inv, ok := r.invites[token.String()]
	if !ok {
		return invite.Invite{}, invite.ErrInviteNotFound
	}
	return inv, nil
}

func (r *fakeRepo) Delete(ctx context.Context, token invite.TokenID) error {
	if r.deleteErr != nil {
		return r.deleteErr
	}
	delete(r.invites, token.String())
	return nil
}

func (r *fakeRepo) SetRemoteUserID(ctx context.Context, token invite.TokenID, userID string) error {
	inv, ok := r.invites[token.String()]
	if !ok {
		return nil
	}
	inv.RemoteUserID = &userID
	r.invites[token.String()] = inv
	return nil
}

func (r *fakeRepo) ListAll(ctx context.Context) ([]invite.Invite, error) {
	var all []invite.Invite
	for _, inv := range r.invites {
		all = append(all, inv)
	}
	return all, nil
}

type fakeKomga struct {
	createCalls  []komga.UserCreate
	applyCalls   []string
	applyOptions []komga.UserRestriction
	createErr    error
	applyErr     error
}

func (k *fakeKomga) CreateUser(ctx context.Context, user komga.UserCreate) (komga.User, error) {
	k.createCalls = append(k.createCalls, user)
	if k.createErr != nil {
		return komga.User{}, k.createErr
	}
	return komga.User{ID: "komga-user-1", Email: user.Email, Roles: user.Roles}, nil
}

func (k *fakeKomga) ApplyUserRestriction(ctx context.Context, userID string, restriction komga.UserRestriction) error {
	k.applyCalls = append(k.applyCalls, userID)
	k.applyOptions = append(k.applyOptions, restriction)
	return k.applyErr
}

func (k *fakeKomga) GetSharingLabels(ctx context.Context) ([]string, error) {
	return []string{"kids", "teens"}, nil
}

func (k *fakeKomga) GetLibraries(ctx context.Context) ([]komga.Library, error) {
	return []komga.Library{{ID: "lib1", Name: "Manga"}}, nil
}

type fakeNavidrome struct {
	createCalls []navidrome.UserCreate
	applyCalls  []string
	applyLibs   [][]uint64
	createErr   error
	applyErr    error
}

func (n *fakeNavidrome) CreateUser(ctx context.Context, user navidrome.UserCreate) (navidrome.User, error) {
	n.createCalls = append(n.createCalls, user)
	if n.createErr != nil {
		return navidrome.User{}, n.createErr
	}
	return navidrome.User{ID: "nd-user-1"}, nil
}

func (n *fakeNavidrome) ApplyUserLibrary(ctx context.Context, userID string, libraryIDs []uint64) error {
	n.applyCalls = append(n.applyCalls, userID)
	n.applyLibs = append(n.applyLibs, libraryIDs)
	return n.applyErr
}

func (n *fakeNavidrome) GetLibraries(ctx context.Context) ([]navidrome.Library, error) {
	return []navidrome.Library{{ID: 1, Name: "Music"}}, nil
}

func newTestService(repo *fakeRepo, komgaClient *fakeKomga, navidromeClient *fakeNavidrome) invite.InviteService {
	var navidromeAPI NavidromeAPI
	if navidromeClient != nil {
		navidromeAPI = navidromeClient
	}
	return NewInviteService(
		slog.New(slog.DiscardHandler),
		repo,
		komgaClient,
		navidromeAPI,
		"https://comics.example.com",
		"https://music.example.com",
		"test",
	)
}

func credentials() invite.ApplyRequest {
	return invite.ApplyRequest{
		Email:    "new-user@example.com",
		Password: "hunter22",
		Username: "new_user",
	}
}

func TestRedeem_KomgaDefaultRoles(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepo()
	komgaClient := &fakeKomga{}
	svc := newTestService(repo, komgaClient, nil)

	inv, err := svc.Create(ctx, invite.CreateRequest{Kind: invite.KindKomga, Komga: &invite.KomgaOption{}})
	require.NoError(t, err)

	host, err := svc.Redeem(ctx, inv.Token.String(), credentials())
	require.NoError(t, err)
	assert.Equal(t, "https://comics.example.com", host)

	require.Len(t, komgaClient.createCalls, 1)
	assert.Equal(t, []string{"USER", "FILE_DOWNLOAD", "PAGE_STREAMING"}, komgaClient.createCalls[0].Roles)
	assert.Equal(t, []string{"komga-user-1"}, komgaClient.applyCalls)

	// The invite is gone after a successful redemption
	_, err = repo.Get(ctx, inv.Token)
	assert.ErrorIs(t, err, invite.ErrInviteNotFound)
}

func TestRedeem_KomgaExplicitRoles(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepo()
	komgaClient := &fakeKomga{}
	svc := newTestService(repo, komgaClient, nil)

	inv, err := svc.Create(ctx, invite.CreateRequest{
		Kind:  invite.KindKomga,
		Komga: &invite.KomgaOption{Roles: []string{"USER"}},
	})
	require.NoError(t, err)

	_, err = svc.Redeem(ctx, inv.Token.String(), credentials())
	require.NoError(t, err)

	require.Len(t, komgaClient.createCalls, 1)
	assert.Equal(t, []string{"USER"}, komgaClient.createCalls[0].Roles)
}

func TestRedeem_ResumesFromCheckpoint(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepo()
	komgaClient := &fakeKomga{}
	svc := newTestService(repo, komgaClient, nil)

	inv := invite.NewKomgaInvite(invite.KomgaOption{})
	userID := "u1"
	inv.RemoteUserID = &userID
	require.NoError(t, repo.Insert(ctx, inv))

	_, err := svc.Redeem(ctx, inv.Token.String(), credentials())
	require.NoError(t, err)

	assert.Empty(t, komgaClient.createCalls, "account creation must not run again")
	assert.Equal(t, []string{"u1"}, komgaClient.applyCalls)

	_, err = repo.Get(ctx, inv.Token)
	assert.ErrorIs(t, err, invite.ErrInviteNotFound)
}

func TestRedeem_CheckpointSurvivesRestrictionFailure(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepo()
	komgaClient := &fakeKomga{applyErr: komga.ErrApplyRestriction}
	svc := newTestService(repo, komgaClient, nil)

	inv, err := svc.Create(ctx, invite.CreateRequest{Kind: invite.KindKomga, Komga: &invite.KomgaOption{}})
	require.NoError(t, err)

	_, err = svc.Redeem(ctx, inv.Token.String(), credentials())
	require.ErrorIs(t, err, komga.ErrApplyRestriction)

	// The account exists remotely; the stored checkpoint makes the next
	// attempt resume at the restriction step.
	stored, err := repo.Get(ctx, inv.Token)
	require.NoError(t, err)
	require.NotNil(t, stored.RemoteUserID)
	assert.Equal(t, "komga-user-1", *stored.RemoteUserID)

	komgaClient.applyErr = nil
	_, err = svc.Redeem(ctx, inv.Token.String(), credentials())
	require.NoError(t, err)
	assert.Len(t, komgaClient.createCalls, 1, "creation ran exactly once across both attempts")

	_, err = repo.Get(ctx, inv.Token)
	assert.ErrorIs(t, err, invite.ErrInviteNotFound)
}

func TestRedeem_WrongKind(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepo()
	komgaClient := &fakeKomga{}
	svc := newTestService(repo, komgaClient, nil).(*inviteServiceImpl)

	inv := invite.NewNavidromeInvite(invite.NavidromeOption{LibraryIDs: []uint64{1}})
	require.NoError(t, repo.Insert(ctx, inv))

	err := svc.redeemKomga(ctx, &inv, credentials())

	var wrongKind *invite.WrongInviteKindError
	require.ErrorAs(t, err, &wrongKind)
	assert.Equal(t, invite.KindNavidrome, wrongKind.Actual)
	assert.Equal(t, invite.KindKomga, wrongKind.Expected)

	// Record untouched
	stored, getErr := repo.Get(ctx, inv.Token)
	require.NoError(t, getErr)
	assert.Nil(t, stored.RemoteUserID)
	assert.Empty(t, komgaClient.createCalls)
}

func TestRedeem_Expired(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepo()
	svc := newTestService(repo, &fakeKomga{}, nil)

	past := time.Now().Add(-time.Hour).Unix()
	inv := invite.NewKomgaInvite(invite.KomgaOption{ExpiresAt: &past})
	require.NoError(t, repo.Insert(ctx, inv))

	_, err := svc.Redeem(ctx, inv.Token.String(), credentials())
	require.ErrorIs(t, err, invite.ErrInviteExpired)

	// Expired record was purged; the next access reports it missing
	_, err = svc.Fetch(ctx, inv.Token.String())
	assert.ErrorIs(t, err, invite.ErrInviteNotFound)
}

func TestRedeem_ExpiredDeleteFailureIsDistinct(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepo()
	svc := newTestService(repo, &fakeKomga{}, nil)

	past := time.Now().Add(-time.Hour).Unix()
	inv := invite.NewKomgaInvite(invite.KomgaOption{ExpiresAt: &past})
	require.NoError(t, repo.Insert(ctx, inv))

	repo.deleteErr = errors.New("connection reset")
	_, err := svc.Redeem(ctx, inv.Token.String(), credentials())
	require.Error(t, err)
	assert.NotErrorIs(t, err, invite.ErrInviteExpired)
	assert.ErrorContains(t, err, "connection reset")
}

func TestRedeem_NotFound(t *testing.T) {
	svc := newTestService(newFakeRepo(), &fakeKomga{}, nil)

	_, err := svc.Redeem(context.Background(), invite.GenerateToken().String(), credentials())
	assert.ErrorIs(t, err, invite.ErrInviteNotFound)
}

func TestRedeem_ValidationAggregatesAllViolations(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepo()
	navidromeClient := &fakeNavidrome{}
	svc := newTestService(repo, &fakeKomga{}, navidromeClient)

	inv, err := svc.Create(ctx, invite.CreateRequest{
		Kind:      invite.KindNavidrome,
		Navidrome: &invite.NavidromeOption{LibraryIDs: []uint64{1}},
	})
	require.NoError(t, err)

	_, err = svc.Redeem(ctx, inv.Token.String(), invite.ApplyRequest{
		Email:    "nope",
		Password: "ab",
		Username: "bad name!",
	})

	var errs validator.ValidationErrors
	require.ErrorAs(t, err, &errs)
	assert.Len(t, errs, 3)
	assert.Empty(t, navidromeClient.createCalls)
}

func TestRedeem_NavidromeUnavailable(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepo()
	svc := newTestService(repo, &fakeKomga{}, nil)

	inv := invite.NewNavidromeInvite(invite.NavidromeOption{LibraryIDs: []uint64{1}})
	require.NoError(t, repo.Insert(ctx, inv))

	_, err := svc.Redeem(ctx, inv.Token.String(), credentials())

	var unavailable *invite.ClientUnavailableError
	require.ErrorAs(t, err, &unavailable)
	assert.Equal(t, "navidrome", unavailable.Platform)
}

func TestRedeem_Navidrome(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepo()
	navidromeClient := &fakeNavidrome{}
	svc := newTestService(repo, &fakeKomga{}, navidromeClient)

	inv, err := svc.Create(ctx, invite.CreateRequest{
		Kind:      invite.KindNavidrome,
		Navidrome: &invite.NavidromeOption{IsAdmin: false, LibraryIDs: []uint64{2, 5}},
	})
	require.NoError(t, err)

	host, err := svc.Redeem(ctx, inv.Token.String(), credentials())
	require.NoError(t, err)
	assert.Equal(t, "https://music.example.com", host)

	require.Len(t, navidromeClient.createCalls, 1)
	assert.Equal(t, "new_user", navidromeClient.createCalls[0].Username)
	require.Len(t, navidromeClient.applyLibs, 1)
	assert.Equal(t, []uint64{2, 5}, navidromeClient.applyLibs[0])
}

func TestFetch_AcceptsBothTokenForms(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepo()
	svc := newTestService(repo, &fakeKomga{}, nil)

	inv, err := svc.Create(ctx, invite.CreateRequest{Kind: invite.KindKomga, Komga: &invite.KomgaOption{}})
	require.NoError(t, err)

	fromPrefixed, err := svc.Fetch(ctx, inv.Token.String())
	require.NoError(t, err)
	fromCanonical, err := svc.Fetch(ctx, inv.Token.Canonical())
	require.NoError(t, err)
	assert.Equal(t, fromPrefixed.Token, fromCanonical.Token)
}

func TestList_MixedKinds(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepo()
	navidromeClient := &fakeNavidrome{}
	svc := newTestService(repo, &fakeKomga{}, navidromeClient)

	_, err := svc.Create(ctx, invite.CreateRequest{Kind: invite.KindKomga, Komga: &invite.KomgaOption{}})
	require.NoError(t, err)
	_, err = svc.Create(ctx, invite.CreateRequest{Kind: invite.KindKomga, Komga: &invite.KomgaOption{Roles: []string{"USER"}}})
	require.NoError(t, err)
	_, err = svc.Create(ctx, invite.CreateRequest{
		Kind:      invite.KindNavidrome,
		Navidrome: &invite.NavidromeOption{LibraryIDs: []uint64{1}},
	})
	require.NoError(t, err)

	all, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)

	kinds := map[invite.Kind]int{}
	for _, inv := range all {
		kinds[inv.Kind]++
		switch inv.Kind {
		case invite.KindKomga:
			assert.NotNil(t, inv.Komga)
			assert.Nil(t, inv.Navidrome)
		case invite.KindNavidrome:
			assert.NotNil(t, inv.Navidrome)
			assert.Nil(t, inv.Komga)
		}
	}
	assert.Equal(t, 2, kinds[invite.KindKomga])
	assert.Equal(t, 1, kinds[invite.KindNavidrome])
}

func TestConfig(t *testing.T) {
	ctx := context.Background()

	withNavidrome := newTestService(newFakeRepo(), &fakeKomga{}, &fakeNavidrome{})
	cfg, err := withNavidrome.Config(ctx)
	require.NoError(t, err)
	assert.True(t, cfg.Komga.Active)
	assert.Equal(t, []string{"kids", "teens"}, cfg.Komga.Labels)
	assert.True(t, cfg.Navidrome.Active)
	assert.Len(t, cfg.Navidrome.Libraries, 1)

	komgaOnly := newTestService(newFakeRepo(), &fakeKomga{}, nil)
	cfg, err = komgaOnly.Config(ctx)
	require.NoError(t, err)
	assert.False(t, cfg.Navidrome.Active)
	assert.Empty(t, cfg.Navidrome.Libraries)
}

func TestInfo(t *testing.T) {
	ctx := context.Background()

	komgaOnly := newTestService(newFakeRepo(), &fakeKomga{}, nil)
	assert.Equal(t, []string{"komga"}, komgaOnly.Info(ctx).Servers)

	withNavidrome := newTestService(newFakeRepo(), &fakeKomga{}, &fakeNavidrome{})
	assert.Equal(t, []string{"komga", "navidrome"}, withNavidrome.Info(ctx).Servers)
}
