// Package social manages the friend graph. Friendship is symmetric: an
// accepted request adds each user to the other's friend list, and removing
// a friend removes both directions.
package social

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/lbessard/concours/internal/user"
)

var (
	ErrSelfRequest      = errors.New("cannot send a friend request to yourself")
	ErrAlreadyFriends   = errors.New("users are already friends")
	ErrDuplicateRequest = errors.New("a pending friend request already exists")
	ErrRequestNotFound  = errors.New("friend request not found")
	ErrNotFriends       = errors.New("users are not friends")
)

// Users is the slice of the user store the manager needs.
type Users interface {
	GetByID(ctx context.Context, id string) (*user.User, error)
	SetFriends(ctx context.Context, id string, friends []string) error
	SetFriendRequests(ctx context.Context, id string, requests []user.FriendRequest) error
}

// Manager runs friend-graph transitions against the user store.
type Manager struct {
	users Users
	newID func() string
	now   func() time.Time
}

func NewManager(users Users) *Manager {
	return &Manager{
		users: users,
		newID: uuid.NewString,
		now:   time.Now,
	}
}

// Request records a pending friend request from one user to another. The
// request lives on the recipient's document.
func (m *Manager) Request(ctx context.Context, fromID, toID string) error {
	if fromID == toID {
		return ErrSelfRequest
	}
	from, err := m.users.GetByID(ctx, fromID)
	if err != nil {
		return fmt.Errorf("loading sender: %w", err)
	}
	to, err := m.users.GetByID(ctx, toID)
	if err != nil {
		return fmt.Errorf("loading recipient: %w", err)
	}
	if from.HasFriend(toID) || to.HasFriend(fromID) {
		return ErrAlreadyFriends
	}
	if to.PendingRequestFrom(fromID) != nil {
		return ErrDuplicateRequest
	}

	requests := append(to.FriendRequests, user.FriendRequest{
		ID:        m.newID(),
		From:      fromID,
		Status:    user.RequestPending,
		CreatedAt: m.now(),
	})
	if err := m.users.SetFriendRequests(ctx, toID, requests); err != nil {
		return fmt.Errorf("saving friend request: %w", err)
	}
	return nil
}

// Decide resolves a pending request on the given user's document. Accepting
// adds each user to the other's friend list; either way the request record
// is removed.
func (m *Manager) Decide(ctx context.Context, userID, requestID string, accept bool) error {
	u, err := m.users.GetByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("loading user: %w", err)
	}

	idx := -1
	for i, r := range u.FriendRequests {
		if r.ID == requestID && r.Status == user.RequestPending {
			idx = i
			break
		}
	}
	if idx < 0 {
		return ErrRequestNotFound
	}
	req := u.FriendRequests[idx]
	remaining := append(u.FriendRequests[:idx:idx], u.FriendRequests[idx+1:]...)

	if accept {
		sender, err := m.users.GetByID(ctx, req.From)
		if err != nil {
			return fmt.Errorf("loading sender: %w", err)
		}
		if !u.HasFriend(req.From) {
			if err := m.users.SetFriends(ctx, userID, append(u.Friends, req.From)); err != nil {
				return fmt.Errorf("saving friends: %w", err)
			}
		}
		if !sender.HasFriend(userID) {
			if err := m.users.SetFriends(ctx, req.From, append(sender.Friends, userID)); err != nil {
				return fmt.Errorf("saving sender friends: %w", err)
			}
		}
	}

	if err := m.users.SetFriendRequests(ctx, userID, remaining); err != nil {
		return fmt.Errorf("saving friend requests: %w", err)
	}
	return nil
}

// Unfriend removes the friendship in both directions.
func (m *Manager) Unfriend(ctx context.Context, userID, friendID string) error {
	u, err := m.users.GetByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("loading user: %w", err)
	}
	if !u.HasFriend(friendID) {
		return ErrNotFriends
	}
	friend, err := m.users.GetByID(ctx, friendID)
	if err != nil {
		return fmt.Errorf("loading friend: %w", err)
	}

	if err := m.users.SetFriends(ctx, userID, remove(u.Friends, friendID)); err != nil {
		return fmt.Errorf("saving friends: %w", err)
	}
	if err := m.users.SetFriends(ctx, friendID, remove(friend.Friends, userID)); err != nil {
		return fmt.Errorf("saving friend's friends: %w", err)
	}
	return nil
}

func remove(ids []string, id string) []string {
	out := make([]string, 0, len(ids))
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}
