package repository

import "context"

// SessionProvider resolves the authenticated owner of the remote dataset.
type SessionProvider interface {
	// CurrentOwner returns entity.ErrNotAuthenticated (possibly wrapped) when no session exists.
	CurrentOwner(ctx context.Context) (string, error)
}
