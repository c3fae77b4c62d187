// Package membership coordinates the two sides of the team relation. The
// store keeps User.team and Team.members as independent documents; every
// operation here mutates both sides before returning so that a user points
// at a team exactly when the team lists the user.
package membership

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/lbessard/concours/internal/team"
	"github.com/lbessard/concours/internal/user"
)

var (
	ErrAlreadyInTeam      = errors.New("user already belongs to a team")
	ErrDuplicateRequest   = errors.New("a pending join request already exists")
	ErrNotCreator         = errors.New("only the team creator may do this")
	ErrRequestNotFound    = errors.New("join request not found")
	ErrTeamFull           = errors.New("team is full")
	ErrCreatorCannotLeave = errors.New("the creator cannot leave the team, delete it instead")
	ErrNotMember          = errors.New("user is not a member of this team")
)

// Users is the slice of the user store the coordinator needs.
type Users interface {
	GetByID(ctx context.Context, id string) (*user.User, error)
	SetTeam(ctx context.Context, id string, teamID *string) error
}

// Teams is the slice of the team store the coordinator needs.
type Teams interface {
	GetByID(ctx context.Context, id string) (*team.Team, error)
	Create(ctx context.Context, in team.CreateTeamInput) (*team.Team, error)
	SetMembers(ctx context.Context, id string, members []string) error
	SetJoinRequests(ctx context.Context, id string, requests []team.JoinRequest) error
	RecalculateScore(ctx context.Context, id string) (*team.Team, error)
	Delete(ctx context.Context, id string) error
}

// Coordinator runs membership transitions against the two stores.
type Coordinator struct {
	users Users
	teams Teams
	newID func() string
	now   func() time.Time
}

// NewCoordinator wires the coordinator to its stores.
func NewCoordinator(users Users, teams Teams) *Coordinator {
	return &Coordinator{
		users: users,
		teams: teams,
		newID: uuid.NewString,
		now:   time.Now,
	}
}

// CreateTeam creates a team. The creator joins automatically unless the
// creation is performed by an administrator on behalf of others, in which
// case the member set starts empty.
func (c *Coordinator) CreateTeam(ctx context.Context, creatorID string, adminCreated bool, in team.CreateTeamInput) (*team.Team, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	in.CreatorID = creatorID
	if adminCreated {
		in.Members = []string{}
	} else {
		u, err := c.users.GetByID(ctx, creatorID)
		if err != nil {
			return nil, err
		}
		if u.TeamID != nil {
			return nil, ErrAlreadyInTeam
		}
		in.Members = []string{creatorID}
	}

	t, err := c.teams.Create(ctx, in)
	if err != nil {
		return nil, err
	}

	if !adminCreated {
		if err := c.users.SetTeam(ctx, creatorID, &t.ID); err != nil {
			return nil, fmt.Errorf("linking creator to team: %w", err)
		}
	}
	return t, nil
}

// RequestJoin records a pending join request. Membership is not mutated
// until the creator approves.
func (c *Coordinator) RequestJoin(ctx context.Context, userID, teamID string) (*team.Team, error) {
	t, err := c.teams.GetByID(ctx, teamID)
	if err != nil {
		return nil, err
	}
	u, err := c.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	if u.TeamID != nil {
		return nil, ErrAlreadyInTeam
	}
	if t.PendingRequestFrom(userID) != nil {
		return nil, ErrDuplicateRequest
	}

	requests := append(t.JoinRequests, team.JoinRequest{
		ID:          c.newID(),
		UserID:      userID,
		Status:      team.RequestPending,
		RequestedAt: c.now(),
	})
	if err := c.teams.SetJoinRequests(ctx, teamID, requests); err != nil {
		return nil, err
	}
	t.JoinRequests = requests
	return t, nil
}

// DecideRequest approves or rejects a join request. Only the creator may
// decide. Approval is capacity-checked and fails without touching state
// when the team is full or when the user has joined a team since
// requesting; a successful decision removes the request record.
func (c *Coordinator) DecideRequest(ctx context.Context, deciderID, teamID, requestID string, approve bool) error {
	t, err := c.teams.GetByID(ctx, teamID)
	if err != nil {
		return err
	}
	if t.CreatorID != deciderID {
		return ErrNotCreator
	}

	var decided *team.JoinRequest
	remaining := make([]team.JoinRequest, 0, len(t.JoinRequests))
	for i := range t.JoinRequests {
		if t.JoinRequests[i].ID == requestID {
			decided = &t.JoinRequests[i]
			continue
		}
		remaining = append(remaining, t.JoinRequests[i])
	}
	if decided == nil {
		return ErrRequestNotFound
	}

	if approve {
		if t.IsFull() {
			return ErrTeamFull
		}
		u, err := c.users.GetByID(ctx, decided.UserID)
		if err != nil {
			return err
		}
		if u.TeamID != nil {
			return ErrAlreadyInTeam
		}
		if !t.IsMember(decided.UserID) {
			members := append(t.Members, decided.UserID)
			if err := c.teams.SetMembers(ctx, teamID, members); err != nil {
				return err
			}
		}
		if err := c.users.SetTeam(ctx, decided.UserID, &t.ID); err != nil {
			return err
		}
		if _, err := c.teams.RecalculateScore(ctx, teamID); err != nil {
			return err
		}
	}

	return c.teams.SetJoinRequests(ctx, teamID, remaining)
}

// Join adds the user to the team without an approval step. A user already
// in a different team is detached from it (and that team's aggregates
// refreshed) before joining. Joining the team the user is already in is a
// no-op. Admin assignment uses the same transition.
func (c *Coordinator) Join(ctx context.Context, userID, teamID string) (*team.Team, error) {
	t, err := c.teams.GetByID(ctx, teamID)
	if err != nil {
		return nil, err
	}
	u, err := c.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	if u.TeamID != nil && *u.TeamID == teamID && t.IsMember(userID) {
		return t, nil
	}
	if t.IsFull() {
		return nil, ErrTeamFull
	}

	if u.TeamID != nil && *u.TeamID != teamID {
		if err := c.detach(ctx, userID, *u.TeamID); err != nil {
			return nil, err
		}
	}

	if !t.IsMember(userID) {
		members := append(t.Members, userID)
		if err := c.teams.SetMembers(ctx, teamID, members); err != nil {
			return nil, err
		}
	}
	if err := c.users.SetTeam(ctx, userID, &t.ID); err != nil {
		return nil, err
	}

	return c.teams.RecalculateScore(ctx, teamID)
}

// Leave removes the user from their current team. When teamID is
// non-empty it must name that team; leaving through another team's id
// fails with ErrNotMember. The creator cannot leave; they must delete
// the team.
func (c *Coordinator) Leave(ctx context.Context, userID, teamID string) error {
	u, err := c.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if u.TeamID == nil {
		return ErrNotMember
	}
	if teamID != "" && teamID != *u.TeamID {
		return ErrNotMember
	}

	t, err := c.teams.GetByID(ctx, *u.TeamID)
	if err != nil {
		return err
	}
	if t.CreatorID == userID {
		return ErrCreatorCannotLeave
	}
	if !t.IsMember(userID) {
		return ErrNotMember
	}

	if err := c.detach(ctx, userID, t.ID); err != nil {
		return err
	}
	return c.users.SetTeam(ctx, userID, nil)
}

// DeleteTeam removes the team permanently. Only the creator may delete.
// Every member's team reference is cleared before the row goes away, so no
// user is left pointing at a missing team.
func (c *Coordinator) DeleteTeam(ctx context.Context, actorID, teamID string) error {
	t, err := c.teams.GetByID(ctx, teamID)
	if err != nil {
		return err
	}
	if t.CreatorID != actorID {
		return ErrNotCreator
	}

	for _, memberID := range t.Members {
		if err := c.users.SetTeam(ctx, memberID, nil); err != nil {
			return fmt.Errorf("clearing member team reference: %w", err)
		}
	}
	return c.teams.Delete(ctx, teamID)
}

// detach removes the user from a team's member set and refreshes that
// team's aggregates. The user side is left to the caller.
func (c *Coordinator) detach(ctx context.Context, userID, teamID string) error {
	t, err := c.teams.GetByID(ctx, teamID)
	if err != nil {
		return err
	}

	members := make([]string, 0, len(t.Members))
	for _, m := range t.Members {
		if m != userID {
			members = append(members, m)
		}
	}
	if err := c.teams.SetMembers(ctx, teamID, members); err != nil {
		return err
	}
	_, err = c.teams.RecalculateScore(ctx, teamID)
	return err
}
