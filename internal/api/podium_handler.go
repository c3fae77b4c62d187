package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"

	"github.com/lbessard/concours/internal/podium"
)

// podiumHandler groups the podium entry HTTP handlers.
type podiumHandler struct {
	store PodiumStore
}

func newPodiumHandler(deps RouterDeps) *podiumHandler {
	return &podiumHandler{store: deps.Podium}
}

// List handles GET /api/podium.
func (h *podiumHandler) List(w http.ResponseWriter, r *http.Request) {
	params := podium.ListParams{Category: r.URL.Query().Get("category")}
	if limit := r.URL.Query().Get("limit"); limit != "" {
		n, err := parsePositiveInt(limit)
		if err != nil {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		params.Limit = n
	}

	entries, err := h.store.List(r.Context(), params)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if entries == nil {
		entries = []*podium.Entry{}
	}
	writeList(w, http.StatusOK, len(entries), entries)
}

// Top3 handles GET /api/podium/top3.
func (h *podiumHandler) Top3(w http.ResponseWriter, r *http.Request) {
	entries, err := h.store.Top3(r.Context(), r.URL.Query().Get("category"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if entries == nil {
		entries = []*podium.Entry{}
	}
	writeList(w, http.StatusOK, len(entries), entries)
}

// Get handles GET /api/podium/{id}.
func (h *podiumHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	entry, err := h.store.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, "Podium entry not found")
			return
		}
		writeDomainError(w, err)
		return
	}
	writeData(w, http.StatusOK, entry)
}

// Create handles POST /api/podium.
func (h *podiumHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in podium.CreateEntryInput
	if err := readJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := in.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	entry, err := h.store.Create(r.Context(), in)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeMessage(w, http.StatusCreated, "Podium entry created", entry)
}

// Update handles PUT /api/podium/{id}.
func (h *podiumHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var in podium.UpdateEntryInput
	if err := readJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := in.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	entry, err := h.store.Update(r.Context(), id, in)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, "Podium entry not found")
			return
		}
		writeDomainError(w, err)
		return
	}
	writeMessage(w, http.StatusOK, "Podium entry updated", entry)
}

// Delete handles DELETE /api/podium/{id}. Entries are deactivated, freeing
// their position for reuse.
func (h *podiumHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if _, err := h.store.SoftDelete(r.Context(), id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, "Podium entry not found")
			return
		}
		writeDomainError(w, err)
		return
	}
	writeMessage(w, http.StatusOK, "Podium entry deleted", nil)
}
