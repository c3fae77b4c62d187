package team

import (
	"errors"
	"strings"
	"time"
)

// Join request statuses.
const (
	RequestPending  = "pending"
	RequestApproved = "approved"
	RequestRejected = "rejected"
)

// Categories a team can compete in.
var Categories = []string{"Tech", "Design", "Marketing", "Business"}

var (
	ErrNameLength         = errors.New("team name must be between 3 and 50 characters")
	ErrDescriptionTooLong = errors.New("description cannot exceed 500 characters")
	ErrBadCategory        = errors.New("category must be one of Tech, Design, Marketing, Business")
	ErrBadMaxMembers      = errors.New("maxMembers must be between 2 and 50")
	ErrInviteInvalid      = errors.New("invites require a name and an email")

	// ErrNameTaken is returned when the team name is already in use.
	ErrNameTaken = errors.New("team name already in use")
)

// Invite is an external invitee recorded on the team before they register.
type Invite struct {
	Name    string    `json:"name"`
	Email   string    `json:"email"`
	AddedAt time.Time `json:"addedAt"`
}

// JoinRequest is a membership request embedded in a team document.
type JoinRequest struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user"`
	Status      string    `json:"status"`
	RequestedAt time.Time `json:"requestedAt"`
}

// Team groups users under a creator. TotalScore and AverageScore are derived
// from member scores and recomputed by the aggregation engine; they are never
// authored directly except through the admin override.
type Team struct {
	ID           string        `json:"id"`
	Name         string        `json:"name"`
	Description  string        `json:"description"`
	CreatorID    string        `json:"creator"`
	Members      []string      `json:"members"`
	Invites      []Invite      `json:"invites"`
	JoinRequests []JoinRequest `json:"joinRequests"`
	Category     string        `json:"category"`
	TotalScore   int64         `json:"totalScore"`
	AverageScore float64       `json:"averageScore"`
	MaxMembers   int           `json:"maxMembers"`
	IsActive     bool          `json:"isActive"`
	CreatedAt    time.Time     `json:"createdAt"`
	UpdatedAt    time.Time     `json:"updatedAt"`
}

// IsMember reports whether the user id is in the member set.
func (t *Team) IsMember(id string) bool {
	for _, m := range t.Members {
		if m == id {
			return true
		}
	}
	return false
}

// IsFull reports whether the member set has reached capacity.
func (t *Team) IsFull() bool {
	return len(t.Members) >= t.MaxMembers
}

// PendingRequestFrom returns the pending join request by the given user,
// or nil.
func (t *Team) PendingRequestFrom(userID string) *JoinRequest {
	for i := range t.JoinRequests {
		r := &t.JoinRequests[i]
		if r.UserID == userID && r.Status == RequestPending {
			return r
		}
	}
	return nil
}

// Aggregate computes the derived team scores from member scores. An empty
// member set yields 0, 0 rather than a division error.
func Aggregate(scores []int64) (total int64, average float64) {
	if len(scores) == 0 {
		return 0, 0
	}
	for _, s := range scores {
		total += s
	}
	return total, float64(total) / float64(len(scores))
}

// CreateTeamInput holds the fields required to create a team. Members and
// CreatorID are set by the membership coordinator, not by callers.
type CreateTeamInput struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Category    string   `json:"category"`
	MaxMembers  int      `json:"maxMembers"`
	Invites     []Invite `json:"invites"`

	CreatorID string   `json:"-"`
	Members   []string `json:"-"`
}

// Validate checks the input against the schema constraints. MaxMembers
// defaults to 10 when unset.
func (in *CreateTeamInput) Validate() error {
	in.Name = strings.TrimSpace(in.Name)
	in.Description = strings.TrimSpace(in.Description)

	if len(in.Name) < 3 || len(in.Name) > 50 {
		return ErrNameLength
	}
	if len(in.Description) > 500 {
		return ErrDescriptionTooLong
	}
	if !ValidCategory(in.Category) {
		return ErrBadCategory
	}
	if in.MaxMembers == 0 {
		in.MaxMembers = 10
	}
	if in.MaxMembers < 2 || in.MaxMembers > 50 {
		return ErrBadMaxMembers
	}
	return validateInvites(in.Invites)
}

// UpdateTeamInput holds optional fields for a partial team update.
type UpdateTeamInput struct {
	Name        *string   `json:"name,omitempty"`
	Description *string   `json:"description,omitempty"`
	Category    *string   `json:"category,omitempty"`
	MaxMembers  *int      `json:"maxMembers,omitempty"`
	Invites     *[]Invite `json:"invites,omitempty"`
}

// Validate checks the provided fields only.
func (in *UpdateTeamInput) Validate() error {
	if in.Name != nil {
		*in.Name = strings.TrimSpace(*in.Name)
		if len(*in.Name) < 3 || len(*in.Name) > 50 {
			return ErrNameLength
		}
	}
	if in.Description != nil && len(*in.Description) > 500 {
		return ErrDescriptionTooLong
	}
	if in.Category != nil && !ValidCategory(*in.Category) {
		return ErrBadCategory
	}
	if in.MaxMembers != nil && (*in.MaxMembers < 2 || *in.MaxMembers > 50) {
		return ErrBadMaxMembers
	}
	if in.Invites != nil {
		return validateInvites(*in.Invites)
	}
	return nil
}

func validateInvites(invites []Invite) error {
	for _, inv := range invites {
		if strings.TrimSpace(inv.Name) == "" || strings.TrimSpace(inv.Email) == "" {
			return ErrInviteInvalid
		}
	}
	return nil
}

// ValidCategory reports whether c is a known competition category.
func ValidCategory(c string) bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// ListParams filters the team listing.
type ListParams struct {
	Category string
	Search   string
}
