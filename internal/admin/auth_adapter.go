package admin

import (
	"context"

	"github.com/lbessard/concours/internal/auth"
)

// AuthAdapter adapts admin.Store to the auth.AdminLookup interface.
type AuthAdapter struct {
	store *Store
}

// NewAuthAdapter creates a new AuthAdapter wrapping the given admin store.
func NewAuthAdapter(store *Store) *AuthAdapter {
	return &AuthAdapter{store: store}
}

// LookupAdmin loads the admin by id and returns a principal, or nil when
// the account does not exist or has been deactivated.
func (a *AuthAdapter) LookupAdmin(ctx context.Context, id string) (*auth.Principal, error) {
	adm, err := a.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !adm.IsActive {
		return nil, nil
	}
	return &auth.Principal{
		ID:       adm.ID,
		Username: adm.Username,
		Kind:     auth.KindAdmin,
	}, nil
}
