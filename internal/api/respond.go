package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/jackc/pgx/v5"

	"github.com/lbessard/concours/internal/membership"
	"github.com/lbessard/concours/internal/podium"
	"github.com/lbessard/concours/internal/social"
	"github.com/lbessard/concours/internal/team"
	"github.com/lbessard/concours/internal/user"
)

// maxBodySize is the maximum allowed request body size (1 MB).
const maxBodySize = 1 << 20

// envelope is the standard response shape for every endpoint.
type envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
	Count   *int   `json:"count,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// writeData writes a success response carrying data.
func writeData(w http.ResponseWriter, statusCode int, data any) {
	writeJSON(w, statusCode, envelope{Success: true, Data: data})
}

// writeMessage writes a success response carrying a message and optional data.
func writeMessage(w http.ResponseWriter, statusCode int, message string, data any) {
	writeJSON(w, statusCode, envelope{Success: true, Message: message, Data: data})
}

// writeList writes a success response carrying a collection and its count.
func writeList(w http.ResponseWriter, statusCode int, count int, data any) {
	writeJSON(w, statusCode, envelope{Success: true, Count: &count, Data: data})
}

// writeError writes an error response with the given status code.
func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, envelope{Success: false, Error: message})
}

func writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(v)
}

// readJSON decodes the request body into v, enforcing a size limit.
func readJSON(r *http.Request, v any) error {
	lr := io.LimitReader(r.Body, maxBodySize)
	return json.NewDecoder(lr).Decode(v)
}

// badRequestErrors are domain failures reported to the caller as 400.
var badRequestErrors = []error{
	user.ErrUsernameLength,
	user.ErrEmailInvalid,
	user.ErrPasswordTooShort,
	user.ErrNameRequired,
	user.ErrNameTooLong,
	user.ErrBadCategory,
	user.ErrNegativeScore,
	user.ErrDuplicate,
	team.ErrNameLength,
	team.ErrDescriptionTooLong,
	team.ErrBadCategory,
	team.ErrBadMaxMembers,
	team.ErrInviteInvalid,
	team.ErrNameTaken,
	podium.ErrNameRequired,
	podium.ErrNameTooLong,
	podium.ErrBadPosition,
	podium.ErrNegativeScore,
	podium.ErrTeamTooLong,
	podium.ErrBadCategory,
	membership.ErrAlreadyInTeam,
	membership.ErrDuplicateRequest,
	membership.ErrTeamFull,
	social.ErrSelfRequest,
	social.ErrAlreadyFriends,
	social.ErrDuplicateRequest,
	social.ErrNotFriends,
}

// forbiddenErrors are failures reported as 403.
var forbiddenErrors = []error{
	membership.ErrNotCreator,
	membership.ErrCreatorCannotLeave,
}

// notFoundErrors are failures reported as 404.
var notFoundErrors = []error{
	pgx.ErrNoRows,
	membership.ErrRequestNotFound,
	membership.ErrNotMember,
	social.ErrRequestNotFound,
}

// writeDomainError maps a domain error onto the response taxonomy. Known
// sentinel errors keep their message; anything unexpected becomes a 500 with
// a generic message.
func writeDomainError(w http.ResponseWriter, err error) {
	var taken *podium.PositionTakenError
	if errors.As(err, &taken) {
		writeError(w, http.StatusBadRequest, taken.Error())
		return
	}
	for _, known := range badRequestErrors {
		if errors.Is(err, known) {
			writeError(w, http.StatusBadRequest, known.Error())
			return
		}
	}
	for _, known := range forbiddenErrors {
		if errors.Is(err, known) {
			writeError(w, http.StatusForbidden, known.Error())
			return
		}
	}
	for _, known := range notFoundErrors {
		if errors.Is(err, known) {
			writeNotFound(w, known)
			return
		}
	}
	writeError(w, http.StatusInternalServerError, "Internal server error")
}

func writeNotFound(w http.ResponseWriter, known error) {
	msg := known.Error()
	if errors.Is(known, pgx.ErrNoRows) {
		msg = "not found"
	}
	writeError(w, http.StatusNotFound, msg)
}
