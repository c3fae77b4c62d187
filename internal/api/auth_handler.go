package api

import (
	"net/http"
	"strings"

	"github.com/lbessard/concours/internal/admin"
	"github.com/lbessard/concours/internal/auth"
	"github.com/lbessard/concours/internal/metrics"
)

// authHandler groups the administrator authentication handlers.
type authHandler struct {
	store   AdminStore
	tokens  *auth.Manager
	metrics *metrics.Metrics
}

func newAuthHandler(deps RouterDeps) *authHandler {
	return &authHandler{
		store:   deps.Admins,
		tokens:  deps.Tokens,
		metrics: deps.Metrics,
	}
}

// Login handles POST /api/auth/login.
func (h *authHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	a, err := h.store.GetByUsername(r.Context(), req.Username)
	if err != nil || !admin.CheckPassword(a, req.Password) {
		if h.metrics != nil {
			h.metrics.IncAuthFailure("admin")
		}
		writeError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	token, err := h.tokens.IssueAdminToken(a.ID, a.Username)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	if h.metrics != nil {
		h.metrics.IncAuthSuccess("admin")
	}
	writeMessage(w, http.StatusOK, "Login successful", map[string]any{
		"admin": a,
		"token": token,
	})
}

// Verify handles POST /api/auth/verify. The bearer token is parsed and the
// administrator it names is returned, confirming the session is still valid.
func (h *authHandler) Verify(w http.ResponseWriter, r *http.Request) {
	header := r.Header.Get("Authorization")
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		writeError(w, http.StatusUnauthorized, "invalid or expired token")
		return
	}

	claims, err := h.tokens.Parse(parts[1])
	if err != nil || claims.Kind != auth.KindAdmin {
		writeError(w, http.StatusUnauthorized, "invalid or expired token")
		return
	}

	a, err := h.store.GetByID(r.Context(), claims.Subject)
	if err != nil || !a.IsActive {
		writeError(w, http.StatusUnauthorized, "administrator not found")
		return
	}
	writeData(w, http.StatusOK, a)
}
