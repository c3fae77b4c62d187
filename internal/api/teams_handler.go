package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"

	"github.com/lbessard/concours/internal/auth"
	"github.com/lbessard/concours/internal/metrics"
	"github.com/lbessard/concours/internal/team"
)

// teamsHandler groups the team HTTP handlers. Reads go to the store;
// anything that touches membership goes through the coordinator.
type teamsHandler struct {
	store   TeamStore
	coord   Coordinator
	metrics *metrics.Metrics
}

func newTeamsHandler(deps RouterDeps) *teamsHandler {
	return &teamsHandler{
		store:   deps.Teams,
		coord:   deps.Coordinator,
		metrics: deps.Metrics,
	}
}

// List handles GET /api/teams. Aggregates are recomputed eagerly by the
// store before sorting.
func (h *teamsHandler) List(w http.ResponseWriter, r *http.Request) {
	params := team.ListParams{
		Category: r.URL.Query().Get("category"),
		Search:   r.URL.Query().Get("search"),
	}
	teams, err := h.store.List(r.Context(), params)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if teams == nil {
		teams = []*team.Team{}
	}
	writeList(w, http.StatusOK, len(teams), teams)
}

// Get handles GET /api/teams/{id}. The returned document carries freshly
// recomputed aggregates.
func (h *teamsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	t, err := h.store.RecalculateScore(r.Context(), id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, "Team not found")
			return
		}
		writeDomainError(w, err)
		return
	}
	if h.metrics != nil {
		h.metrics.IncTeamAggregation()
	}
	writeData(w, http.StatusOK, t)
}

// Create handles POST /api/teams.
func (h *teamsHandler) Create(w http.ResponseWriter, r *http.Request) {
	p := auth.PrincipalFromContext(r.Context())

	var in team.CreateTeamInput
	if err := readJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	created, err := h.coord.CreateTeam(r.Context(), p.ID, false, in)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeMessage(w, http.StatusCreated, "Team created successfully", created)
}

// AdminCreate handles POST /api/admin/teams. The team starts with an
// empty member set; the administrator is recorded as creator and members
// are assigned afterwards.
func (h *teamsHandler) AdminCreate(w http.ResponseWriter, r *http.Request) {
	p := auth.PrincipalFromContext(r.Context())

	var in team.CreateTeamInput
	if err := readJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	created, err := h.coord.CreateTeam(r.Context(), p.ID, true, in)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeMessage(w, http.StatusCreated, "Team created successfully", created)
}

// Update handles PUT /api/teams/{id}. Only the creator may edit the team.
func (h *teamsHandler) Update(w http.ResponseWriter, r *http.Request) {
	p := auth.PrincipalFromContext(r.Context())
	id := chi.URLParam(r, "id")

	t, err := h.store.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, "Team not found")
			return
		}
		writeDomainError(w, err)
		return
	}
	if t.CreatorID != p.ID {
		writeError(w, http.StatusForbidden, "only the team creator may do this")
		return
	}

	var in team.UpdateTeamInput
	if err := readJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := in.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	updated, err := h.store.Update(r.Context(), id, in)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeMessage(w, http.StatusOK, "Team updated successfully", updated)
}

// Delete handles DELETE /api/teams/{id}.
func (h *teamsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	p := auth.PrincipalFromContext(r.Context())
	id := chi.URLParam(r, "id")

	if err := h.coord.DeleteTeam(r.Context(), p.ID, id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, "Team not found")
			return
		}
		writeDomainError(w, err)
		return
	}
	writeMessage(w, http.StatusOK, "Team deleted successfully", nil)
}

// RequestJoin handles POST /api/teams/{id}/join.
func (h *teamsHandler) RequestJoin(w http.ResponseWriter, r *http.Request) {
	p := auth.PrincipalFromContext(r.Context())
	id := chi.URLParam(r, "id")

	t, err := h.coord.RequestJoin(r.Context(), p.ID, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, "Team not found")
			return
		}
		writeDomainError(w, err)
		return
	}
	writeMessage(w, http.StatusOK, "Join request sent", t)
}

// DecideRequest handles PUT /api/teams/{id}/requests/{requestId}.
func (h *teamsHandler) DecideRequest(w http.ResponseWriter, r *http.Request) {
	p := auth.PrincipalFromContext(r.Context())
	id := chi.URLParam(r, "id")
	requestID := chi.URLParam(r, "requestId")

	var req struct {
		Status string `json:"status"`
	}
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Status != team.RequestApproved && req.Status != team.RequestRejected {
		writeError(w, http.StatusBadRequest, "status must be approved or rejected")
		return
	}

	err := h.coord.DecideRequest(r.Context(), p.ID, id, requestID, req.Status == team.RequestApproved)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, "Team not found")
			return
		}
		writeDomainError(w, err)
		return
	}
	writeMessage(w, http.StatusOK, "Join request "+req.Status, nil)
}

// Leave handles DELETE /api/teams/{id}/leave. The path must name the
// caller's own team.
func (h *teamsHandler) Leave(w http.ResponseWriter, r *http.Request) {
	p := auth.PrincipalFromContext(r.Context())

	if err := h.coord.Leave(r.Context(), p.ID, chi.URLParam(r, "id")); err != nil {
		writeDomainError(w, err)
		return
	}
	writeMessage(w, http.StatusOK, "Left team successfully", nil)
}

// OverrideScore handles PUT /api/teams/{id}/score (administrators).
func (h *teamsHandler) OverrideScore(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req struct {
		TotalScore int64 `json:"totalScore"`
	}
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.TotalScore < 0 {
		writeError(w, http.StatusBadRequest, "totalScore cannot be negative")
		return
	}

	t, err := h.store.OverrideScore(r.Context(), id, req.TotalScore)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, "Team not found")
			return
		}
		writeDomainError(w, err)
		return
	}
	writeMessage(w, http.StatusOK, "Team score updated", t)
}
