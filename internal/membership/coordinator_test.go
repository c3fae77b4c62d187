package membership

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/lbessard/concours/internal/team"
	"github.com/lbessard/concours/internal/user"
)

// fakeState is an in-memory stand-in for the user and team stores.
type fakeState struct {
	users map[string]*user.User
	teams map[string]*team.Team
}

func newFakeState() *fakeState {
	return &fakeState{
		users: make(map[string]*user.User),
		teams: make(map[string]*team.Team),
	}
}

func (f *fakeState) addUser(id string, score int64) *user.User {
	u := &user.User{ID: id, Username: id, Score: score, IsActive: true}
	f.users[id] = u
	return u
}

func (f *fakeState) addTeam(id, creatorID string, maxMembers int, members ...string) *team.Team {
	t := &team.Team{
		ID: id, Name: "team-" + id, CreatorID: creatorID,
		Members: append([]string{}, members...), MaxMembers: maxMembers,
		Category: "Tech", IsActive: true,
	}
	f.teams[id] = t
	for _, m := range members {
		tid := id
		f.users[m].TeamID = &tid
	}
	return t
}

type fakeUsers struct{ state *fakeState }

func (f *fakeUsers) GetByID(_ context.Context, id string) (*user.User, error) {
	u, ok := f.state.users[id]
	if !ok {
		return nil, fmt.Errorf("getting user by id: %w", pgx.ErrNoRows)
	}
	cp := *u
	return &cp, nil
}

func (f *fakeUsers) SetTeam(_ context.Context, id string, teamID *string) error {
	u, ok := f.state.users[id]
	if !ok {
		return pgx.ErrNoRows
	}
	u.TeamID = teamID
	return nil
}

type fakeTeams struct{ state *fakeState }

func (f *fakeTeams) GetByID(_ context.Context, id string) (*team.Team, error) {
	t, ok := f.state.teams[id]
	if !ok {
		return nil, fmt.Errorf("getting team by id: %w", pgx.ErrNoRows)
	}
	cp := *t
	cp.Members = append([]string{}, t.Members...)
	cp.JoinRequests = append([]team.JoinRequest{}, t.JoinRequests...)
	return &cp, nil
}

func (f *fakeTeams) Create(_ context.Context, in team.CreateTeamInput) (*team.Team, error) {
	for _, existing := range f.state.teams {
		if existing.Name == in.Name {
			return nil, team.ErrNameTaken
		}
	}
	t := &team.Team{
		ID:   fmt.Sprintf("team-%d", len(f.state.teams)+1),
		Name: in.Name, Description: in.Description, CreatorID: in.CreatorID,
		Members: append([]string{}, in.Members...), Invites: in.Invites,
		Category: in.Category, MaxMembers: in.MaxMembers, IsActive: true,
	}
	f.state.teams[t.ID] = t
	return t, nil
}

func (f *fakeTeams) SetMembers(_ context.Context, id string, members []string) error {
	t, ok := f.state.teams[id]
	if !ok {
		return pgx.ErrNoRows
	}
	t.Members = members
	return nil
}

func (f *fakeTeams) SetJoinRequests(_ context.Context, id string, requests []team.JoinRequest) error {
	t, ok := f.state.teams[id]
	if !ok {
		return pgx.ErrNoRows
	}
	t.JoinRequests = requests
	return nil
}

func (f *fakeTeams) RecalculateScore(_ context.Context, id string) (*team.Team, error) {
	t, ok := f.state.teams[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	var scores []int64
	for _, m := range t.Members {
		if u, ok := f.state.users[m]; ok {
			scores = append(scores, u.Score)
		}
	}
	t.TotalScore, t.AverageScore = team.Aggregate(scores)
	cp := *t
	return &cp, nil
}

func (f *fakeTeams) Delete(_ context.Context, id string) error {
	delete(f.state.teams, id)
	return nil
}

func newTestCoordinator(state *fakeState) *Coordinator {
	c := NewCoordinator(&fakeUsers{state}, &fakeTeams{state})
	n := 0
	c.newID = func() string { n++; return fmt.Sprintf("req-%d", n) }
	c.now = func() time.Time { return time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC) }
	return c
}

// checkInvariant asserts the bidirectional membership rule: a user points
// at a team exactly when that team lists the user.
func checkInvariant(t *testing.T, state *fakeState) {
	t.Helper()
	for id, u := range state.users {
		if u.TeamID != nil {
			tm, ok := state.teams[*u.TeamID]
			if !ok {
				t.Errorf("user %s references missing team %s", id, *u.TeamID)
				continue
			}
			if !tm.IsMember(id) {
				t.Errorf("user %s references team %s but is not in its member set", id, tm.ID)
			}
		}
	}
	for id, tm := range state.teams {
		for _, m := range tm.Members {
			u, ok := state.users[m]
			if !ok {
				t.Errorf("team %s lists missing user %s", id, m)
				continue
			}
			if u.TeamID == nil || *u.TeamID != id {
				t.Errorf("team %s lists user %s but the user does not point back", id, m)
			}
		}
	}
}

func TestCreateTeam_CreatorBecomesMember(t *testing.T) {
	state := newFakeState()
	state.addUser("c1", 50)
	coord := newTestCoordinator(state)

	created, err := coord.CreateTeam(context.Background(), "c1", false, team.CreateTeamInput{
		Name: "Les Aigles", Category: "Tech",
	})
	if err != nil {
		t.Fatalf("CreateTeam failed: %v", err)
	}

	if !state.teams[created.ID].IsMember("c1") {
		t.Error("creator should be a member")
	}
	if state.users["c1"].TeamID == nil || *state.users["c1"].TeamID != created.ID {
		t.Error("creator's team reference should point at the new team")
	}
	checkInvariant(t, state)
}

func TestCreateTeam_AdminCreateSkipsMembership(t *testing.T) {
	state := newFakeState()
	state.addUser("a1", 0)
	coord := newTestCoordinator(state)

	created, err := coord.CreateTeam(context.Background(), "a1", true, team.CreateTeamInput{
		Name: "Les Aigles", Category: "Design",
	})
	if err != nil {
		t.Fatalf("CreateTeam failed: %v", err)
	}

	if len(state.teams[created.ID].Members) != 0 {
		t.Error("admin-created team should start with no members")
	}
	if state.users["a1"].TeamID != nil {
		t.Error("admin creator should not be joined to the team")
	}
	checkInvariant(t, state)
}

func TestCreateTeam_NameConflict(t *testing.T) {
	state := newFakeState()
	state.addUser("c1", 0)
	state.addUser("c2", 0)
	coord := newTestCoordinator(state)

	if _, err := coord.CreateTeam(context.Background(), "c1", false, team.CreateTeamInput{
		Name: "Les Aigles", Category: "Tech",
	}); err != nil {
		t.Fatalf("first CreateTeam failed: %v", err)
	}

	_, err := coord.CreateTeam(context.Background(), "c2", false, team.CreateTeamInput{
		Name: "Les Aigles", Category: "Tech",
	})
	if !errors.Is(err, team.ErrNameTaken) {
		t.Errorf("expected ErrNameTaken, got %v", err)
	}
}

func TestCreateTeam_RejectedWhenAlreadyInTeam(t *testing.T) {
	state := newFakeState()
	state.addUser("c1", 0)
	state.addTeam("t1", "c1", 10, "c1")
	coord := newTestCoordinator(state)

	_, err := coord.CreateTeam(context.Background(), "c1", false, team.CreateTeamInput{
		Name: "Deuxième équipe", Category: "Tech",
	})
	if !errors.Is(err, ErrAlreadyInTeam) {
		t.Errorf("expected ErrAlreadyInTeam, got %v", err)
	}
}

func TestRequestJoin(t *testing.T) {
	state := newFakeState()
	state.addUser("c1", 0)
	state.addUser("u1", 0)
	state.addTeam("t1", "c1", 10, "c1")
	coord := newTestCoordinator(state)

	updated, err := coord.RequestJoin(context.Background(), "u1", "t1")
	if err != nil {
		t.Fatalf("RequestJoin failed: %v", err)
	}

	if len(updated.JoinRequests) != 1 {
		t.Fatalf("expected 1 join request, got %d", len(updated.JoinRequests))
	}
	req := updated.JoinRequests[0]
	if req.UserID != "u1" || req.Status != team.RequestPending {
		t.Errorf("unexpected request %+v", req)
	}
	if state.users["u1"].TeamID != nil {
		t.Error("requesting must not mutate membership")
	}

	// Second request while one is pending must fail.
	if _, err := coord.RequestJoin(context.Background(), "u1", "t1"); !errors.Is(err, ErrDuplicateRequest) {
		t.Errorf("expected ErrDuplicateRequest, got %v", err)
	}
}

func TestRequestJoin_RejectedWhenInAnyTeam(t *testing.T) {
	state := newFakeState()
	state.addUser("c1", 0)
	state.addUser("c2", 0)
	state.addUser("u1", 0)
	state.addTeam("t1", "c1", 10, "c1")
	state.addTeam("t2", "c2", 10, "c2", "u1")
	coord := newTestCoordinator(state)

	if _, err := coord.RequestJoin(context.Background(), "u1", "t1"); !errors.Is(err, ErrAlreadyInTeam) {
		t.Errorf("expected ErrAlreadyInTeam, got %v", err)
	}
}

func TestDecideRequest_Approve(t *testing.T) {
	state := newFakeState()
	state.addUser("c1", 10)
	state.addUser("u1", 30)
	state.addTeam("t1", "c1", 10, "c1")
	coord := newTestCoordinator(state)

	if _, err := coord.RequestJoin(context.Background(), "u1", "t1"); err != nil {
		t.Fatalf("RequestJoin failed: %v", err)
	}
	reqID := state.teams["t1"].JoinRequests[0].ID

	if err := coord.DecideRequest(context.Background(), "c1", "t1", reqID, true); err != nil {
		t.Fatalf("DecideRequest failed: %v", err)
	}

	tm := state.teams["t1"]
	if !tm.IsMember("u1") {
		t.Error("approved user should be a member")
	}
	if len(tm.JoinRequests) != 0 {
		t.Error("request record should be removed")
	}
	if tm.TotalScore != 40 || tm.AverageScore != 20 {
		t.Errorf("aggregates not refreshed: total=%d avg=%v", tm.TotalScore, tm.AverageScore)
	}
	checkInvariant(t, state)
}

func TestDecideRequest_Reject(t *testing.T) {
	state := newFakeState()
	state.addUser("c1", 0)
	state.addUser("u1", 0)
	state.addTeam("t1", "c1", 10, "c1")
	coord := newTestCoordinator(state)

	if _, err := coord.RequestJoin(context.Background(), "u1", "t1"); err != nil {
		t.Fatalf("RequestJoin failed: %v", err)
	}
	reqID := state.teams["t1"].JoinRequests[0].ID

	if err := coord.DecideRequest(context.Background(), "c1", "t1", reqID, false); err != nil {
		t.Fatalf("DecideRequest failed: %v", err)
	}

	tm := state.teams["t1"]
	if tm.IsMember("u1") {
		t.Error("rejected user must not become a member")
	}
	if len(tm.JoinRequests) != 0 {
		t.Error("request record should be removed")
	}
	checkInvariant(t, state)
}

func TestDecideRequest_OnlyCreator(t *testing.T) {
	state := newFakeState()
	state.addUser("c1", 0)
	state.addUser("u1", 0)
	state.addUser("u2", 0)
	state.addTeam("t1", "c1", 10, "c1")
	coord := newTestCoordinator(state)

	if _, err := coord.RequestJoin(context.Background(), "u1", "t1"); err != nil {
		t.Fatalf("RequestJoin failed: %v", err)
	}
	reqID := state.teams["t1"].JoinRequests[0].ID

	if err := coord.DecideRequest(context.Background(), "u2", "t1", reqID, true); !errors.Is(err, ErrNotCreator) {
		t.Errorf("expected ErrNotCreator, got %v", err)
	}
}

func TestDecideRequest_FullTeamLeavesStateUntouched(t *testing.T) {
	state := newFakeState()
	state.addUser("c1", 0)
	state.addUser("u1", 0)
	state.addUser("u2", 0)
	state.addTeam("t1", "c1", 2, "c1", "u1")
	coord := newTestCoordinator(state)

	state.teams["t1"].JoinRequests = []team.JoinRequest{
		{ID: "r1", UserID: "u2", Status: team.RequestPending},
	}

	err := coord.DecideRequest(context.Background(), "c1", "t1", "r1", true)
	if !errors.Is(err, ErrTeamFull) {
		t.Fatalf("expected ErrTeamFull, got %v", err)
	}

	tm := state.teams["t1"]
	if tm.IsMember("u2") {
		t.Error("full team must not gain a member")
	}
	if len(tm.JoinRequests) != 1 {
		t.Error("failed approval must not consume the request")
	}
	if state.users["u2"].TeamID != nil {
		t.Error("user must remain unaffiliated")
	}
	checkInvariant(t, state)
}

func TestDecideRequest_StaleRequestAfterJoiningElsewhere(t *testing.T) {
	state := newFakeState()
	state.addUser("c1", 0)
	state.addUser("c2", 0)
	state.addUser("u1", 0)
	state.addTeam("t1", "c1", 10, "c1")
	state.addTeam("t2", "c2", 10, "c2")
	coord := newTestCoordinator(state)

	// u1 requests t2 while unaffiliated, then joins t1 directly.
	if _, err := coord.RequestJoin(context.Background(), "u1", "t2"); err != nil {
		t.Fatalf("RequestJoin failed: %v", err)
	}
	reqID := state.teams["t2"].JoinRequests[0].ID
	if _, err := coord.Join(context.Background(), "u1", "t1"); err != nil {
		t.Fatalf("Join failed: %v", err)
	}

	err := coord.DecideRequest(context.Background(), "c2", "t2", reqID, true)
	if !errors.Is(err, ErrAlreadyInTeam) {
		t.Fatalf("expected ErrAlreadyInTeam, got %v", err)
	}

	if state.teams["t2"].IsMember("u1") {
		t.Error("stale approval must not add the user to a second team")
	}
	if got := state.users["u1"].TeamID; got == nil || *got != "t1" {
		t.Errorf("user should still point at t1, got %v", got)
	}
	if len(state.teams["t2"].JoinRequests) != 1 {
		t.Error("failed approval must not consume the request")
	}
	checkInvariant(t, state)
}

func TestJoin_CapacityScenario(t *testing.T) {
	// Team with maxMembers=2 and creator C; U joins, then V must be turned
	// away without any state change.
	state := newFakeState()
	state.addUser("C", 0)
	state.addUser("U", 0)
	state.addUser("V", 0)
	state.addTeam("t1", "C", 2, "C")
	coord := newTestCoordinator(state)

	if _, err := coord.Join(context.Background(), "U", "t1"); err != nil {
		t.Fatalf("U join failed: %v", err)
	}
	if got := state.teams["t1"].Members; len(got) != 2 {
		t.Fatalf("expected members [C U], got %v", got)
	}

	_, err := coord.Join(context.Background(), "V", "t1")
	if !errors.Is(err, ErrTeamFull) {
		t.Fatalf("expected ErrTeamFull, got %v", err)
	}
	if state.teams["t1"].IsMember("V") || state.users["V"].TeamID != nil {
		t.Error("failed join must not mutate state")
	}
	checkInvariant(t, state)
}

func TestJoin_MovesBetweenTeams(t *testing.T) {
	state := newFakeState()
	state.addUser("c1", 0)
	state.addUser("c2", 0)
	state.addUser("u1", 100)
	state.addTeam("t1", "c1", 10, "c1", "u1")
	state.addTeam("t2", "c2", 10, "c2")
	coord := newTestCoordinator(state)

	joined, err := coord.Join(context.Background(), "u1", "t2")
	if err != nil {
		t.Fatalf("Join failed: %v", err)
	}

	if state.teams["t1"].IsMember("u1") {
		t.Error("user should be detached from the old team")
	}
	if !state.teams["t2"].IsMember("u1") {
		t.Error("user should be in the new team")
	}
	if state.teams["t1"].TotalScore != 0 {
		t.Errorf("old team aggregate should drop u1's score, got %d", state.teams["t1"].TotalScore)
	}
	if joined.TotalScore != 100 {
		t.Errorf("new team aggregate should include u1's score, got %d", joined.TotalScore)
	}
	checkInvariant(t, state)
}

func TestJoin_SameTeamIsNoop(t *testing.T) {
	state := newFakeState()
	state.addUser("c1", 0)
	state.addUser("u1", 0)
	state.addTeam("t1", "c1", 2, "c1", "u1")
	coord := newTestCoordinator(state)

	// Team is at capacity but u1 is already in it; re-joining must not fail.
	if _, err := coord.Join(context.Background(), "u1", "t1"); err != nil {
		t.Fatalf("re-join failed: %v", err)
	}
	if got := len(state.teams["t1"].Members); got != 2 {
		t.Errorf("member set should be unchanged, got %d members", got)
	}
	checkInvariant(t, state)
}

func TestLeave(t *testing.T) {
	state := newFakeState()
	state.addUser("c1", 10)
	state.addUser("u1", 40)
	state.addTeam("t1", "c1", 10, "c1", "u1")
	coord := newTestCoordinator(state)

	if err := coord.Leave(context.Background(), "u1", "t1"); err != nil {
		t.Fatalf("Leave failed: %v", err)
	}

	if state.teams["t1"].IsMember("u1") {
		t.Error("user should be out of the member set")
	}
	if state.users["u1"].TeamID != nil {
		t.Error("user's team reference should be cleared")
	}
	if state.teams["t1"].TotalScore != 10 {
		t.Errorf("aggregate should exclude the departed member, got %d", state.teams["t1"].TotalScore)
	}
	checkInvariant(t, state)
}

func TestLeave_CreatorCannot(t *testing.T) {
	state := newFakeState()
	state.addUser("c1", 0)
	state.addTeam("t1", "c1", 10, "c1")
	coord := newTestCoordinator(state)

	if err := coord.Leave(context.Background(), "c1", "t1"); !errors.Is(err, ErrCreatorCannotLeave) {
		t.Errorf("expected ErrCreatorCannotLeave, got %v", err)
	}
	if !state.teams["t1"].IsMember("c1") {
		t.Error("failed leave must not mutate the member set")
	}
}

func TestLeave_NotInATeam(t *testing.T) {
	state := newFakeState()
	state.addUser("u1", 0)
	coord := newTestCoordinator(state)

	if err := coord.Leave(context.Background(), "u1", "t1"); !errors.Is(err, ErrNotMember) {
		t.Errorf("expected ErrNotMember, got %v", err)
	}
}

func TestLeave_OtherTeamID(t *testing.T) {
	state := newFakeState()
	state.addUser("c1", 0)
	state.addUser("c2", 0)
	state.addUser("u1", 0)
	state.addTeam("t1", "c1", 10, "c1", "u1")
	state.addTeam("t2", "c2", 10, "c2")
	coord := newTestCoordinator(state)

	if err := coord.Leave(context.Background(), "u1", "t2"); !errors.Is(err, ErrNotMember) {
		t.Errorf("expected ErrNotMember, got %v", err)
	}
	if !state.teams["t1"].IsMember("u1") {
		t.Error("leaving through another team's id must not detach the user")
	}
	checkInvariant(t, state)
}

func TestDeleteTeam_CascadesToMembers(t *testing.T) {
	state := newFakeState()
	state.addUser("c1", 0)
	state.addUser("u1", 0)
	state.addUser("u2", 0)
	state.addTeam("t1", "c1", 10, "c1", "u1", "u2")
	coord := newTestCoordinator(state)

	if err := coord.DeleteTeam(context.Background(), "c1", "t1"); err != nil {
		t.Fatalf("DeleteTeam failed: %v", err)
	}

	if _, ok := state.teams["t1"]; ok {
		t.Error("team should be hard-deleted")
	}
	for _, id := range []string{"c1", "u1", "u2"} {
		if state.users[id].TeamID != nil {
			t.Errorf("user %s should have no team reference", id)
		}
	}
	checkInvariant(t, state)
}

func TestDeleteTeam_OnlyCreator(t *testing.T) {
	state := newFakeState()
	state.addUser("c1", 0)
	state.addUser("u1", 0)
	state.addTeam("t1", "c1", 10, "c1", "u1")
	coord := newTestCoordinator(state)

	if err := coord.DeleteTeam(context.Background(), "u1", "t1"); !errors.Is(err, ErrNotCreator) {
		t.Errorf("expected ErrNotCreator, got %v", err)
	}
	if _, ok := state.teams["t1"]; !ok {
		t.Error("team must survive an unauthorized delete")
	}
}
