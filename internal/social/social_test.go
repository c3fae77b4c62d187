package social

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/lbessard/concours/internal/user"
)

type fakeUsers struct {
	users map[string]*user.User
}

func newFakeUsers(ids ...string) *fakeUsers {
	f := &fakeUsers{users: make(map[string]*user.User)}
	for _, id := range ids {
		f.users[id] = &user.User{ID: id, Username: id, IsActive: true}
	}
	return f
}

func (f *fakeUsers) GetByID(_ context.Context, id string) (*user.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, fmt.Errorf("getting user by id: %w", pgx.ErrNoRows)
	}
	cp := *u
	cp.Friends = append([]string{}, u.Friends...)
	cp.FriendRequests = append([]user.FriendRequest{}, u.FriendRequests...)
	return &cp, nil
}

func (f *fakeUsers) SetFriends(_ context.Context, id string, friends []string) error {
	u, ok := f.users[id]
	if !ok {
		return pgx.ErrNoRows
	}
	u.Friends = friends
	return nil
}

func (f *fakeUsers) SetFriendRequests(_ context.Context, id string, requests []user.FriendRequest) error {
	u, ok := f.users[id]
	if !ok {
		return pgx.ErrNoRows
	}
	u.FriendRequests = requests
	return nil
}

func newTestManager(f *fakeUsers) *Manager {
	m := NewManager(f)
	n := 0
	m.newID = func() string { n++; return fmt.Sprintf("fr-%d", n) }
	m.now = func() time.Time { return time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC) }
	return m
}

func TestRequest(t *testing.T) {
	f := newFakeUsers("alice", "bob")
	m := newTestManager(f)

	if err := m.Request(context.Background(), "alice", "bob"); err != nil {
		t.Fatalf("Request failed: %v", err)
	}

	reqs := f.users["bob"].FriendRequests
	if len(reqs) != 1 {
		t.Fatalf("expected 1 request on recipient, got %d", len(reqs))
	}
	if reqs[0].From != "alice" || reqs[0].Status != user.RequestPending {
		t.Errorf("unexpected request %+v", reqs[0])
	}
	if len(f.users["alice"].FriendRequests) != 0 {
		t.Error("sender's document must not carry the request")
	}
}

func TestRequest_Self(t *testing.T) {
	f := newFakeUsers("alice")
	m := newTestManager(f)

	if err := m.Request(context.Background(), "alice", "alice"); !errors.Is(err, ErrSelfRequest) {
		t.Errorf("expected ErrSelfRequest, got %v", err)
	}
}

func TestRequest_Duplicate(t *testing.T) {
	f := newFakeUsers("alice", "bob")
	m := newTestManager(f)

	if err := m.Request(context.Background(), "alice", "bob"); err != nil {
		t.Fatalf("first request failed: %v", err)
	}
	if err := m.Request(context.Background(), "alice", "bob"); !errors.Is(err, ErrDuplicateRequest) {
		t.Errorf("expected ErrDuplicateRequest, got %v", err)
	}
}

func TestRequest_AlreadyFriends(t *testing.T) {
	f := newFakeUsers("alice", "bob")
	f.users["alice"].Friends = []string{"bob"}
	f.users["bob"].Friends = []string{"alice"}
	m := newTestManager(f)

	if err := m.Request(context.Background(), "alice", "bob"); !errors.Is(err, ErrAlreadyFriends) {
		t.Errorf("expected ErrAlreadyFriends, got %v", err)
	}
}

func TestDecide_AcceptIsSymmetric(t *testing.T) {
	f := newFakeUsers("alice", "bob")
	m := newTestManager(f)

	if err := m.Request(context.Background(), "alice", "bob"); err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	reqID := f.users["bob"].FriendRequests[0].ID

	if err := m.Decide(context.Background(), "bob", reqID, true); err != nil {
		t.Fatalf("Decide failed: %v", err)
	}

	if !f.users["bob"].HasFriend("alice") {
		t.Error("recipient should list the sender as a friend")
	}
	if !f.users["alice"].HasFriend("bob") {
		t.Error("sender should list the recipient as a friend")
	}
	if len(f.users["bob"].FriendRequests) != 0 {
		t.Error("request record should be removed")
	}
}

func TestDecide_RejectAddsNothing(t *testing.T) {
	f := newFakeUsers("alice", "bob")
	m := newTestManager(f)

	if err := m.Request(context.Background(), "alice", "bob"); err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	reqID := f.users["bob"].FriendRequests[0].ID

	if err := m.Decide(context.Background(), "bob", reqID, false); err != nil {
		t.Fatalf("Decide failed: %v", err)
	}

	if f.users["bob"].HasFriend("alice") || f.users["alice"].HasFriend("bob") {
		t.Error("rejection must not create a friendship")
	}
	if len(f.users["bob"].FriendRequests) != 0 {
		t.Error("request record should be removed")
	}

	// A new request after rejection is allowed.
	if err := m.Request(context.Background(), "alice", "bob"); err != nil {
		t.Errorf("request after rejection should succeed, got %v", err)
	}
}

func TestDecide_UnknownRequest(t *testing.T) {
	f := newFakeUsers("bob")
	m := newTestManager(f)

	if err := m.Decide(context.Background(), "bob", "nope", true); !errors.Is(err, ErrRequestNotFound) {
		t.Errorf("expected ErrRequestNotFound, got %v", err)
	}
}

func TestUnfriend(t *testing.T) {
	f := newFakeUsers("alice", "bob")
	f.users["alice"].Friends = []string{"bob"}
	f.users["bob"].Friends = []string{"alice"}
	m := newTestManager(f)

	if err := m.Unfriend(context.Background(), "alice", "bob"); err != nil {
		t.Fatalf("Unfriend failed: %v", err)
	}

	if f.users["alice"].HasFriend("bob") || f.users["bob"].HasFriend("alice") {
		t.Error("removal must clear both directions")
	}
}

func TestUnfriend_NotFriends(t *testing.T) {
	f := newFakeUsers("alice", "bob")
	m := newTestManager(f)

	if err := m.Unfriend(context.Background(), "alice", "bob"); !errors.Is(err, ErrNotFriends) {
		t.Errorf("expected ErrNotFriends, got %v", err)
	}
}
