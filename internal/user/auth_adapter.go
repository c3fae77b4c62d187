package user

import (
	"context"

	"github.com/lbessard/concours/internal/auth"
)

// AuthAdapter adapts user.Store to the auth.UserLookup interface.
type AuthAdapter struct {
	store *Store
}

// NewAuthAdapter creates a new AuthAdapter wrapping the given user store.
func NewAuthAdapter(store *Store) *AuthAdapter {
	return &AuthAdapter{store: store}
}

// LookupUser loads the user by id and returns a principal, or nil when the
// account does not exist or has been deactivated.
func (a *AuthAdapter) LookupUser(ctx context.Context, id string) (*auth.Principal, error) {
	u, err := a.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !u.IsActive {
		return nil, nil
	}
	return &auth.Principal{
		ID:       u.ID,
		Username: u.Username,
		Kind:     auth.KindUser,
	}, nil
}
