package postgresql

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/noaione/klibrarian/internal/domain/invite"
	"github.com/noaione/klibrarian/internal/pkg/database"
)

type inviteRepositoryImpl struct {
	db *database.DB
}

// NewInviteRepository creates a new invite repository instance
func NewInviteRepository(db *database.DB) invite.InviteRepository {
	return &inviteRepositoryImpl{db: db}
}

// Initialize implements invite.InviteRepository.
func (r *inviteRepositoryImpl) Initialize(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS invites (
			token TEXT PRIMARY KEY,
			option TEXT NOT NULL,
			uuid TEXT,
			kind TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`

	if _, err := r.db.Exec(ctx, query); err != nil {
		return fmt.Errorf("failed to create invites table: %w", err)
	}
	return nil
}

// Insert implements invite.InviteRepository.
func (r *inviteRepositoryImpl) Insert(ctx context.Context, inv invite.Invite) error {
	optionJSON, err := inv.OptionJSON()
	if err != nil {
		return err
	}

	query := `
		INSERT INTO invites (token, option, uuid, kind)
		VALUES ($1, $2, $3, $4)
	`

	if _, err := r.db.Exec(ctx, query, inv.Token.String(), string(optionJSON), inv.RemoteUserID, string(inv.Kind)); err != nil {
		return fmt.Errorf("failed to insert invite: %w", err)
	}
	return nil
}

// Get implements invite.InviteRepository. The lookup matches both the
// prefixed and the canonical token encodings so rows written under the older
// encoding scheme stay reachable.
func (r *inviteRepositoryImpl) Get(ctx context.Context, token invite.TokenID) (invite.Invite, error) {
	query := `
		SELECT token, option, uuid, kind, created_at FROM invites
		WHERE token IN ($1, $2)
	`

	var (
		tokenText    string
		optionJSON   string
		remoteUserID *string
		kind         string
		createdAt    time.Time
	)
	err := r.db.QueryRow(ctx, query, token.String(), token.Canonical()).Scan(
		&tokenText, &optionJSON, &remoteUserID, &kind, &createdAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return invite.Invite{}, invite.ErrInviteNotFound
		}
		return invite.Invite{}, fmt.Errorf("failed to get invite by token: %w", err)
	}

	return invite.DecodeInvite(token, kind, []byte(optionJSON), remoteUserID, createdAt)
}

// Delete implements invite.InviteRepository. Deleting a non-existent token
// is a no-op.
func (r *inviteRepositoryImpl) Delete(ctx context.Context, token invite.TokenID) error {
	query := `DELETE FROM invites WHERE token IN ($1, $2)`

	if _, err := r.db.Exec(ctx, query, token.String(), token.Canonical()); err != nil {
		return fmt.Errorf("failed to delete invite: %w", err)
	}
	return nil
}

// SetRemoteUserID implements invite.InviteRepository.
func (r *inviteRepositoryImpl) SetRemoteUserID(ctx context.Context, token invite.TokenID, userID string) error {
	query := `UPDATE invites SET uuid = $1 WHERE token IN ($2, $3)`

	if _, err := r.db.Exec(ctx, query, userID, token.String(), token.Canonical()); err != nil {
		return fmt.Errorf("failed to set invite remote user id: %w", err)
	}
	return nil
}

// ListAll implements invite.InviteRepository.
func (r *inviteRepositoryImpl) ListAll(ctx context.Context) ([]invite.Invite, error) {
	query := `SELECT token, option, uuid, kind, created_at FROM invites`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list invites: %w", err)
	}
	defer rows.Close()

	var invites []invite.Invite
	for rows.Next() {
		var (
			tokenText    string
			optionJSON   string
			remoteUserID *string
			kind         string
			createdAt    time.Time
		)
		if err := rows.Scan(&tokenText, &optionJSON, &remoteUserID, &kind, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan invite: %w", err)
		}

		token, err := invite.ParseToken(tokenText)
		if err != nil {
			return nil, fmt.Errorf("invalid stored invite token %q: %w", tokenText, err)
		}

		// bubble up decode errors instead of skipping corrupt rows
		inv, err := invite.DecodeInvite(token, kind, []byte(optionJSON), remoteUserID, createdAt)
		if err != nil {
			return nil, err
		}
		invites = append(invites, inv)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return invites, nil
}
