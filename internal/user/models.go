package user

import (
	"errors"
	"regexp"
	"strings"
	"time"
)

// Friend request statuses.
const (
	RequestPending  = "pending"
	RequestAccepted = "accepted"
	RequestRejected = "rejected"
)

// Categories a user can compete in.
var Categories = []string{"Tech", "Design", "Marketing", "Business"}

var (
	ErrUsernameLength   = errors.New("username must be between 3 and 50 characters")
	ErrEmailInvalid     = errors.New("email is invalid")
	ErrPasswordTooShort = errors.New("password must be at least 6 characters")
	ErrNameRequired     = errors.New("name is required")
	ErrNameTooLong      = errors.New("name cannot exceed 100 characters")
	ErrBadCategory      = errors.New("category must be one of Tech, Design, Marketing, Business")
	ErrNegativeScore    = errors.New("score cannot be negative")

	// ErrDuplicate is returned when the username or email is already taken.
	ErrDuplicate = errors.New("username or email already in use")
)

var emailRe = regexp.MustCompile(`^\S+@\S+\.\S+$`)

// FriendRequest is a pending or decided request embedded in a user document.
type FriendRequest struct {
	ID        string    `json:"id"`
	From      string    `json:"from"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
}

// User is a registered competitor. Position is nil for unranked users and
// TeamID is nil for users without a team.
type User struct {
	ID             string          `json:"id"`
	Username       string          `json:"username"`
	Email          string          `json:"email"`
	PasswordHash   string          `json:"-"`
	Name           string          `json:"name"`
	Score          int64           `json:"score"`
	Position       *int64          `json:"position"`
	TeamID         *string         `json:"team"`
	Friends        []string        `json:"friends"`
	FriendRequests []FriendRequest `json:"friendRequests"`
	Category       string          `json:"category"`
	Avatar         *string         `json:"avatar"`
	IsActive       bool            `json:"isActive"`
	LastLogin      *time.Time      `json:"lastLogin"`
	CreatedAt      time.Time       `json:"createdAt"`
	UpdatedAt      time.Time       `json:"updatedAt"`
}

// HasFriend reports whether id is in the user's friend set.
func (u *User) HasFriend(id string) bool {
	for _, f := range u.Friends {
		if f == id {
			return true
		}
	}
	return false
}

// PendingRequestFrom returns the pending friend request sent by the given
// user, or nil.
func (u *User) PendingRequestFrom(from string) *FriendRequest {
	for i := range u.FriendRequests {
		r := &u.FriendRequests[i]
		if r.From == from && r.Status == RequestPending {
			return r
		}
	}
	return nil
}

// CreateUserInput holds the fields required to register a new user.
type CreateUserInput struct {
	Username string  `json:"username"`
	Email    string  `json:"email"`
	Password string  `json:"password"`
	Name     string  `json:"name"`
	Category string  `json:"category"`
	TeamID   *string `json:"-"`
}

// Validate checks the input against the schema constraints. Category
// defaults to Tech when empty.
func (in *CreateUserInput) Validate() error {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Name = strings.TrimSpace(in.Name)

	if len(in.Username) < 3 || len(in.Username) > 50 {
		return ErrUsernameLength
	}
	if !emailRe.MatchString(in.Email) {
		return ErrEmailInvalid
	}
	if len(in.Password) < 6 {
		return ErrPasswordTooShort
	}
	if in.Name == "" {
		return ErrNameRequired
	}
	if len(in.Name) > 100 {
		return ErrNameTooLong
	}
	if in.Category == "" {
		in.Category = "Tech"
	}
	if !ValidCategory(in.Category) {
		return ErrBadCategory
	}
	return nil
}

// UpdateUserInput holds optional fields for a partial profile update.
type UpdateUserInput struct {
	Name     *string `json:"name,omitempty"`
	Email    *string `json:"email,omitempty"`
	Category *string `json:"category,omitempty"`
	Avatar   *string `json:"avatar,omitempty"`
	IsActive *bool   `json:"isActive,omitempty"`
}

// Validate checks the provided fields only.
func (in *UpdateUserInput) Validate() error {
	if in.Name != nil {
		*in.Name = strings.TrimSpace(*in.Name)
		if *in.Name == "" {
			return ErrNameRequired
		}
		if len(*in.Name) > 100 {
			return ErrNameTooLong
		}
	}
	if in.Email != nil {
		*in.Email = strings.ToLower(strings.TrimSpace(*in.Email))
		if !emailRe.MatchString(*in.Email) {
			return ErrEmailInvalid
		}
	}
	if in.Category != nil && !ValidCategory(*in.Category) {
		return ErrBadCategory
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

// ListParams filters the ranked user listing.
type ListParams struct {
	Category string
	Limit    int
}
