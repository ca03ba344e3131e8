package invite

import "context"

// InviteRepository defines the durable storage contract for pending invites.
// Implementations must accept a token minted fresh or supplied by a caller in
// either textual form.
type InviteRepository interface {
	// Initialize idempotently ensures the backing table exists.
	Initialize(ctx context.Context) error

	// Insert persists a new invite; the token must not already exist.
	Insert(ctx context.Context, inv Invite) error

	// Get retrieves an invite by token, returning ErrInviteNotFound when absent.
	Get(ctx context.Context, token TokenID) (Invite, error)

	// Delete removes an invite; deleting a non-existent token is not an error.
	Delete(ctx context.Context, token TokenID) error

	// SetRemoteUserID records the remote account id without touching the
	// options payload or discriminant.
	SetRemoteUserID(ctx context.Context, token TokenID, userID string) error

	// ListAll returns every stored invite, in no particular order.
	ListAll(ctx context.Context) ([]Invite, error)
}
