package podium

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Categories label what kind of competitor an entry represents.
var Categories = []string{"individual", "team", "mixed"}

var (
	ErrNameRequired  = errors.New("name is required")
	ErrNameTooLong   = errors.New("name cannot exceed 100 characters")
	ErrBadPosition   = errors.New("position must be between 1 and 10")
	ErrNegativeScore = errors.New("score cannot be negative")
	ErrTeamTooLong   = errors.New("team cannot exceed 50 characters")
	ErrBadCategory   = errors.New("category must be one of individual, team, mixed")
)

// PositionTakenError reports a position conflict, naming the active entry
// holding it.
type PositionTakenError struct {
	Position int
	Occupant string
}

func (e *PositionTakenError) Error() string {
	return fmt.Sprintf("position %d is already held by %s", e.Position, e.Occupant)
}

// Entry is a standalone leaderboard record, independent of users and teams.
// Positions 1-10 are unique among active entries and never auto-renumbered.
type Entry struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Position  int       `json:"position"`
	Score     int64     `json:"score"`
	Team      string    `json:"team"`
	Category  string    `json:"category"`
	IsActive  bool      `json:"isActive"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// CreateEntryInput holds the fields for a new podium entry.
type CreateEntryInput struct {
	Name     string `json:"name"`
	Position int    `json:"position"`
	Score    int64  `json:"score"`
	Team     string `json:"team"`
	Category string `json:"category"`
}

// Validate checks the input against the schema constraints. Category
// defaults to individual.
func (in *CreateEntryInput) Validate() error {
	in.Name = strings.TrimSpace(in.Name)
	in.Team = strings.TrimSpace(in.Team)

	if in.Name == "" {
		return ErrNameRequired
	}
	if len(in.Name) > 100 {
		return ErrNameTooLong
	}
	if in.Position < 1 || in.Position > 10 {
		return ErrBadPosition
	}
	if in.Score < 0 {
		return ErrNegativeScore
	}
	if len(in.Team) > 50 {
		return ErrTeamTooLong
	}
	if in.Category == "" {
		in.Category = "individual"
	}
	if !ValidCategory(in.Category) {
		return ErrBadCategory
	}
	return nil
}

// UpdateEntryInput holds optional fields for a partial entry update.
type UpdateEntryInput struct {
	Name     *string `json:"name,omitempty"`
	Position *int    `json:"position,omitempty"`
	Score    *int64  `json:"score,omitempty"`
	Team     *string `json:"team,omitempty"`
	Category *string `json:"category,omitempty"`
}

// Validate checks the provided fields only.
func (in *UpdateEntryInput) Validate() error {
	if in.Name != nil {
		*in.Name = strings.TrimSpace(*in.Name)
		if *in.Name == "" {
			return ErrNameRequired
		}
		if len(*in.Name) > 100 {
			return ErrNameTooLong
		}
	}
	if in.Position != nil && (*in.Position < 1 || *in.Position > 10) {
		return ErrBadPosition
	}
	if in.Score != nil && *in.Score < 0 {
		return ErrNegativeScore
	}
	if in.Team != nil && len(*in.Team) > 50 {
		return ErrTeamTooLong
	}
	if in.Category != nil && !ValidCategory(*in.Category) {
		return ErrBadCategory
	}
	return nil
}

// ValidCategory reports whether c is a known podium category.
func ValidCategory(c string) bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// ListParams filters the podium listing.
type ListParams struct {
	Category string
	Limit    int
}
