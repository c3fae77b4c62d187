package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"

	"github.com/lbessard/concours/internal/auth"
	"github.com/lbessard/concours/internal/metrics"
	"github.com/lbessard/concours/internal/ranking"
	"github.com/lbessard/concours/internal/team"
	"github.com/lbessard/concours/internal/user"
)

// usersHandler groups the user-facing HTTP handlers.
type usersHandler struct {
	store   UserStore
	teams   TeamStore
	ranked  ranking.Scope
	coord   Coordinator
	social  Social
	tokens  *auth.Manager
	metrics *metrics.Metrics
}

func newUsersHandler(deps RouterDeps) *usersHandler {
	return &usersHandler{
		store:   deps.Users,
		teams:   deps.Teams,
		ranked:  deps.Ranked,
		coord:   deps.Coordinator,
		social:  deps.Social,
		tokens:  deps.Tokens,
		metrics: deps.Metrics,
	}
}

// recalcPositions reruns the leaderboard placement over all active users.
// A failed recalculation fails the triggering request; callers surface the
// error rather than responding with stale positions.
func (h *usersHandler) recalcPositions(ctx context.Context) error {
	if h.ranked == nil {
		return nil
	}
	start := time.Now()
	placed, err := ranking.Recalculate(ctx, h.ranked)
	if err != nil {
		return fmt.Errorf("recalculating positions: %w", err)
	}
	if h.metrics != nil {
		h.metrics.ObserveRankingRecalc(placed, time.Since(start).Seconds())
	}
	return nil
}

// teamRef is the tagged pair identifying a team by id or by name. At most
// one side is expected; the id wins when both are present.
type teamRef struct {
	Team     *string `json:"team"`
	TeamName *string `json:"teamName"`
}

// resolve looks the reference up, returning nil when neither side is set.
func (ref teamRef) resolve(ctx context.Context, teams TeamStore) (*team.Team, error) {
	switch {
	case ref.Team != nil && *ref.Team != "":
		return teams.GetByID(ctx, *ref.Team)
	case ref.TeamName != nil && *ref.TeamName != "":
		return teams.GetByName(ctx, *ref.TeamName)
	}
	return nil, nil
}

// Register handles POST /api/users/register.
func (h *usersHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req struct {
		user.CreateUserInput
		teamRef
	}
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := req.CreateUserInput.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	target, err := req.teamRef.resolve(r.Context(), h.teams)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, "Team not found")
			return
		}
		writeDomainError(w, err)
		return
	}

	u, err := h.store.Create(r.Context(), req.CreateUserInput)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	if target != nil {
		if _, err := h.coord.Join(r.Context(), u.ID, target.ID); err != nil {
			writeDomainError(w, err)
			return
		}
		u, err = h.store.GetByID(r.Context(), u.ID)
		if err != nil {
			writeDomainError(w, err)
			return
		}
	}

	if err := h.recalcPositions(r.Context()); err != nil {
		writeDomainError(w, err)
		return
	}

	token, err := h.tokens.IssueUserToken(u.ID, u.Username)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	if h.metrics != nil {
		h.metrics.IncAuthSuccess("user")
	}
	writeMessage(w, http.StatusCreated, "User registered successfully", map[string]any{
		"user":  u,
		"token": token,
	})
}

// Login handles POST /api/users/login.
func (h *usersHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	u, err := h.store.GetByUsername(r.Context(), req.Username)
	if err != nil || !u.IsActive || !user.CheckPassword(u, req.Password) {
		if h.metrics != nil {
			h.metrics.IncAuthFailure("user")
		}
		writeError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	_ = h.store.TouchLogin(r.Context(), u.ID)

	token, err := h.tokens.IssueUserToken(u.ID, u.Username)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	if h.metrics != nil {
		h.metrics.IncAuthSuccess("user")
	}
	writeMessage(w, http.StatusOK, "Login successful", map[string]any{
		"user":  u,
		"token": token,
	})
}

// List handles GET /api/users.
func (h *usersHandler) List(w http.ResponseWriter, r *http.Request) {
	params := user.ListParams{Category: r.URL.Query().Get("category")}
	if limit := r.URL.Query().Get("limit"); limit != "" {
		n, err := parsePositiveInt(limit)
		if err != nil {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		params.Limit = n
	}

	users, err := h.store.List(r.Context(), params)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if users == nil {
		users = []*user.User{}
	}
	writeList(w, http.StatusOK, len(users), users)
}

// Top3 handles GET /api/users/top3.
func (h *usersHandler) Top3(w http.ResponseWriter, r *http.Request) {
	users, err := h.store.Top3(r.Context(), r.URL.Query().Get("category"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if users == nil {
		users = []*user.User{}
	}
	writeList(w, http.StatusOK, len(users), users)
}

// Me handles GET /api/users/me.
func (h *usersHandler) Me(w http.ResponseWriter, r *http.Request) {
	p := auth.PrincipalFromContext(r.Context())
	u, err := h.store.GetByID(r.Context(), p.ID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeData(w, http.StatusOK, u)
}

// UpdateMe handles PUT /api/users/me. Profile fields are applied directly;
// a team reference in the body is routed through the membership coordinator.
func (h *usersHandler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	p := auth.PrincipalFromContext(r.Context())

	var req struct {
		user.UpdateUserInput
		teamRef
	}
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := req.UpdateUserInput.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	u, err := h.store.Update(r.Context(), p.ID, req.UpdateUserInput)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	if target, err := req.teamRef.resolve(r.Context(), h.teams); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, "Team not found")
			return
		}
		writeDomainError(w, err)
		return
	} else if target != nil {
		if _, err := h.coord.Join(r.Context(), p.ID, target.ID); err != nil {
			writeDomainError(w, err)
			return
		}
		u, err = h.store.GetByID(r.Context(), p.ID)
		if err != nil {
			writeDomainError(w, err)
			return
		}
	}

	// Reactivation re-enters the leaderboard.
	if req.IsActive != nil {
		if err := h.recalcPositions(r.Context()); err != nil {
			writeDomainError(w, err)
			return
		}
	}

	writeMessage(w, http.StatusOK, "Profile updated successfully", u)
}

// JoinTeam handles PUT /api/users/me/join-team.
func (h *usersHandler) JoinTeam(w http.ResponseWriter, r *http.Request) {
	p := auth.PrincipalFromContext(r.Context())

	var ref teamRef
	if err := readJSON(r, &ref); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	target, err := ref.resolve(r.Context(), h.teams)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, "Team not found")
			return
		}
		writeDomainError(w, err)
		return
	}
	if target == nil {
		writeError(w, http.StatusBadRequest, "team or teamName is required")
		return
	}

	joined, err := h.coord.Join(r.Context(), p.ID, target.ID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeMessage(w, http.StatusOK, "Joined team successfully", joined)
}

// LeaveTeam handles PUT /api/users/me/leave-team.
func (h *usersHandler) LeaveTeam(w http.ResponseWriter, r *http.Request) {
	p := auth.PrincipalFromContext(r.Context())
	if err := h.coord.Leave(r.Context(), p.ID, ""); err != nil {
		writeDomainError(w, err)
		return
	}
	writeMessage(w, http.StatusOK, "Left team successfully", nil)
}

// Friends handles GET /api/users/me/friends. The friend id list is expanded
// into user documents; dangling references are skipped.
func (h *usersHandler) Friends(w http.ResponseWriter, r *http.Request) {
	p := auth.PrincipalFromContext(r.Context())
	u, err := h.store.GetByID(r.Context(), p.ID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	friends := make([]*user.User, 0, len(u.Friends))
	for _, id := range u.Friends {
		f, err := h.store.GetByID(r.Context(), id)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				continue
			}
			writeDomainError(w, err)
			return
		}
		friends = append(friends, f)
	}
	writeList(w, http.StatusOK, len(friends), friends)
}

// FriendRequests handles GET /api/users/me/friend-requests.
func (h *usersHandler) FriendRequests(w http.ResponseWriter, r *http.Request) {
	p := auth.PrincipalFromContext(r.Context())
	u, err := h.store.GetByID(r.Context(), p.ID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeList(w, http.StatusOK, len(u.FriendRequests), u.FriendRequests)
}

// UpdateScore handles PUT /api/users/{id}/score.
func (h *usersHandler) UpdateScore(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req struct {
		Score int64 `json:"score"`
	}
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Score < 0 {
		writeError(w, http.StatusBadRequest, user.ErrNegativeScore.Error())
		return
	}

	u, err := h.store.SetScore(r.Context(), id, req.Score)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, "User not found")
			return
		}
		writeDomainError(w, err)
		return
	}

	if err := h.recalcPositions(r.Context()); err != nil {
		writeDomainError(w, err)
		return
	}
	if u.TeamID != nil {
		if _, err := h.teams.RecalculateScore(r.Context(), *u.TeamID); err != nil {
			writeDomainError(w, err)
			return
		}
		if h.metrics != nil {
			h.metrics.IncTeamAggregation()
		}
	}

	// Positions moved; return the fresh placement.
	if refreshed, err := h.store.GetByID(r.Context(), u.ID); err == nil {
		u = refreshed
	}
	writeMessage(w, http.StatusOK, "Score updated successfully", u)
}

// Delete handles DELETE /api/users/{id}. Users are deactivated, never
// removed, and the leaderboard closes over the gap they leave.
func (h *usersHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	u, err := h.store.SetActive(r.Context(), id, false)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, "User not found")
			return
		}
		writeDomainError(w, err)
		return
	}

	if err := h.recalcPositions(r.Context()); err != nil {
		writeDomainError(w, err)
		return
	}
	if u.TeamID != nil {
		if _, err := h.teams.RecalculateScore(r.Context(), *u.TeamID); err != nil {
			writeDomainError(w, err)
			return
		}
		if h.metrics != nil {
			h.metrics.IncTeamAggregation()
		}
	}
	writeMessage(w, http.StatusOK, "User deleted successfully", nil)
}

// SendFriendRequest handles POST /api/users/{id}/friend-request.
func (h *usersHandler) SendFriendRequest(w http.ResponseWriter, r *http.Request) {
	p := auth.PrincipalFromContext(r.Context())
	toID := chi.URLParam(r, "id")

	if err := h.social.Request(r.Context(), p.ID, toID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, "User not found")
			return
		}
		writeDomainError(w, err)
		return
	}
	writeMessage(w, http.StatusOK, "Friend request sent", nil)
}

// DecideFriendRequest handles PUT /api/users/friend-requests/{requestId}.
func (h *usersHandler) DecideFriendRequest(w http.ResponseWriter, r *http.Request) {
	p := auth.PrincipalFromContext(r.Context())
	requestID := chi.URLParam(r, "requestId")

	var req struct {
		Status string `json:"status"`
	}
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Status != user.RequestAccepted && req.Status != user.RequestRejected {
		writeError(w, http.StatusBadRequest, "status must be accepted or rejected")
		return
	}

	if err := h.social.Decide(r.Context(), p.ID, requestID, req.Status == user.RequestAccepted); err != nil {
		writeDomainError(w, err)
		return
	}
	writeMessage(w, http.StatusOK, "Friend request "+req.Status, nil)
}

// Unfriend handles DELETE /api/users/friends/{friendId}.
func (h *usersHandler) Unfriend(w http.ResponseWriter, r *http.Request) {
	p := auth.PrincipalFromContext(r.Context())
	friendID := chi.URLParam(r, "friendId")

	if err := h.social.Unfriend(r.Context(), p.ID, friendID); err != nil {
		writeDomainError(w, err)
		return
	}
	writeMessage(w, http.StatusOK, "Friend removed", nil)
}

// AssignTeam handles PUT /api/users/{userId}/assign-team (administrators).
func (h *usersHandler) AssignTeam(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userId")

	var ref teamRef
	if err := readJSON(r, &ref); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	target, err := ref.resolve(r.Context(), h.teams)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, "Team not found")
			return
		}
		writeDomainError(w, err)
		return
	}
	if target == nil {
		writeError(w, http.StatusBadRequest, "team or teamName is required")
		return
	}

	joined, err := h.coord.Join(r.Context(), userID, target.ID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeMessage(w, http.StatusOK, "User assigned to team", joined)
}

func parsePositiveInt(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, errors.New("not a positive integer")
	}
	return n, nil
}
