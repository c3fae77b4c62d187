package user

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/crypto/bcrypt"

	"github.com/lbessard/concours/internal/ranking"
)

const userColumns = `id, username, email, password_hash, name, score, position, team_id,
	 friends, friend_requests, category, avatar, is_active, last_login, created_at, updated_at`

// Store provides database operations for users.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a new user store backed by the given connection pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// scanUser scans a user row, handling the JSONB friends and friend_requests
// columns.
func scanUser(scan func(dest ...any) error) (*User, error) {
	u := &User{}
	var friendsJSON, requestsJSON []byte
	err := scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.Name, &u.Score,
		&u.Position, &u.TeamID, &friendsJSON, &requestsJSON, &u.Category,
		&u.Avatar, &u.IsActive, &u.LastLogin, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if len(friendsJSON) > 0 {
		if err := json.Unmarshal(friendsJSON, &u.Friends); err != nil {
			return nil, fmt.Errorf("unmarshaling friends: %w", err)
		}
	}
	if len(requestsJSON) > 0 {
		if err := json.Unmarshal(requestsJSON, &u.FriendRequests); err != nil {
			return nil, fmt.Errorf("unmarshaling friend requests: %w", err)
		}
	}
	if u.Friends == nil {
		u.Friends = []string{}
	}
	if u.FriendRequests == nil {
		u.FriendRequests = []FriendRequest{}
	}
	return u, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// Create inserts a new user with a bcrypt-hashed password. Returns
// ErrDuplicate when the username or email is already taken.
func (s *Store) Create(ctx context.Context, in CreateUserInput) (*User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	u, err := scanUser(func(dest ...any) error {
		return s.pool.QueryRow(ctx,
			`INSERT INTO users (id, username, email, password_hash, name, team_id, category)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)
			 RETURNING `+userColumns,
			uuid.NewString(), in.Username, in.Email, string(hash), in.Name, in.TeamID, in.Category,
		).Scan(dest...)
	})
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicate
		}
		return nil, fmt.Errorf("creating user: %w", err)
	}
	return u, nil
}

// GetByID retrieves a user by primary key.
func (s *Store) GetByID(ctx context.Context, id string) (*User, error) {
	u, err := scanUser(func(dest ...any) error {
		return s.pool.QueryRow(ctx,
			`SELECT `+userColumns+` FROM users WHERE id = $1`, id,
		).Scan(dest...)
	})
	if err != nil {
		return nil, fmt.Errorf("getting user by id: %w", err)
	}
	return u, nil
}

// GetByUsername retrieves a user by username, used at login.
func (s *Store) GetByUsername(ctx context.Context, username string) (*User, error) {
	u, err := scanUser(func(dest ...any) error {
		return s.pool.QueryRow(ctx,
			`SELECT `+userColumns+` FROM users WHERE username = $1`, username,
		).Scan(dest...)
	})
	if err != nil {
		return nil, fmt.Errorf("getting user by username: %w", err)
	}
	return u, nil
}

// List returns active users in ranking order (score descending, creation
// ascending), optionally filtered by category.
func (s *Store) List(ctx context.Context, params ListParams) ([]*User, error) {
	limit := params.Limit
	if limit <= 0 {
		limit = 100
	}

	query := `SELECT ` + userColumns + ` FROM users WHERE is_active`
	args := []any{}
	if params.Category != "" {
		query += ` AND category = $1`
		args = append(args, params.Category)
	}
	query += fmt.Sprintf(` ORDER BY score DESC, created_at ASC, id ASC LIMIT %d`, limit)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}
	defer rows.Close()

	var users []*User
	for rows.Next() {
		u, err := scanUser(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scanning user row: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// Top3 returns up to three active users with the best scores, optionally
// filtered by category.
func (s *Store) Top3(ctx context.Context, category string) ([]*User, error) {
	users, err := s.List(ctx, ListParams{Category: category, Limit: 3})
	if err != nil {
		return nil, err
	}
	return users, nil
}

// Update performs a partial update on the user with the given id.
func (s *Store) Update(ctx context.Context, id string, in UpdateUserInput) (*User, error) {
	var setClauses []string
	var args []any
	argIdx := 1

	if in.Name != nil {
		setClauses = append(setClauses, fmt.Sprintf("name = $%d", argIdx))
		args = append(args, *in.Name)
		argIdx++
	}
	if in.Email != nil {
		setClauses = append(setClauses, fmt.Sprintf("email = $%d", argIdx))
		args = append(args, *in.Email)
		argIdx++
	}
	if in.Category != nil {
		setClauses = append(setClauses, fmt.Sprintf("category = $%d", argIdx))
		args = append(args, *in.Category)
		argIdx++
	}
	if in.Avatar != nil {
		setClauses = append(setClauses, fmt.Sprintf("avatar = $%d", argIdx))
		args = append(args, *in.Avatar)
		argIdx++
	}
	if in.IsActive != nil {
		setClauses = append(setClauses, fmt.Sprintf("is_active = $%d", argIdx))
		args = append(args, *in.IsActive)
		argIdx++
	}

	if len(setClauses) == 0 {
		return s.GetByID(ctx, id)
	}
	setClauses = append(setClauses, "updated_at = now()")

	args = append(args, id)
	query := fmt.Sprintf(
		`UPDATE users SET %s WHERE id = $%d RETURNING `+userColumns,
		strings.Join(setClauses, ", "), argIdx,
	)

	u, err := scanUser(func(dest ...any) error {
		return s.pool.QueryRow(ctx, query, args...).Scan(dest...)
	})
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicate
		}
		return nil, fmt.Errorf("updating user: %w", err)
	}
	return u, nil
}

// SetScore overwrites the user's score. Position staleness is resolved by
// the caller via a ranking recalculation.
func (s *Store) SetScore(ctx context.Context, id string, score int64) (*User, error) {
	u, err := scanUser(func(dest ...any) error {
		return s.pool.QueryRow(ctx,
			`UPDATE users SET score = $1, updated_at = now() WHERE id = $2 RETURNING `+userColumns,
			score, id,
		).Scan(dest...)
	})
	if err != nil {
		return nil, fmt.Errorf("setting score: %w", err)
	}
	return u, nil
}

// SetTeam points the user at a team, or clears the reference when teamID is
// nil. The team side of the relation is maintained by the membership
// coordinator.
func (s *Store) SetTeam(ctx context.Context, id string, teamID *string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE users SET team_id = $1, updated_at = now() WHERE id = $2`, teamID, id)
	if err != nil {
		return fmt.Errorf("setting team: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// SetFriends replaces the user's friend set.
func (s *Store) SetFriends(ctx context.Context, id string, friends []string) error {
	if friends == nil {
		friends = []string{}
	}
	data, err := json.Marshal(friends)
	if err != nil {
		return fmt.Errorf("marshaling friends: %w", err)
	}
	_, err = s.pool.Exec(ctx,
		`UPDATE users SET friends = $1, updated_at = now() WHERE id = $2`, data, id)
	if err != nil {
		return fmt.Errorf("setting friends: %w", err)
	}
	return nil
}

// SetFriendRequests replaces the user's friend request list.
func (s *Store) SetFriendRequests(ctx context.Context, id string, requests []FriendRequest) error {
	if requests == nil {
		requests = []FriendRequest{}
	}
	data, err := json.Marshal(requests)
	if err != nil {
		return fmt.Errorf("marshaling friend requests: %w", err)
	}
	_, err = s.pool.Exec(ctx,
		`UPDATE users SET friend_requests = $1, updated_at = now() WHERE id = $2`, data, id)
	if err != nil {
		return fmt.Errorf("setting friend requests: %w", err)
	}
	return nil
}

// SetActive flips the soft-delete flag. Deactivated users keep their row
// but drop out of rankings and listings.
func (s *Store) SetActive(ctx context.Context, id string, active bool) (*User, error) {
	u, err := scanUser(func(dest ...any) error {
		return s.pool.QueryRow(ctx,
			`UPDATE users SET is_active = $1, updated_at = now() WHERE id = $2 RETURNING `+userColumns,
			active, id,
		).Scan(dest...)
	})
	if err != nil {
		return nil, fmt.Errorf("setting active flag: %w", err)
	}
	return u, nil
}

// TouchLogin records a successful login.
func (s *Store) TouchLogin(ctx context.Context, id string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE users SET last_login = now() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("recording login: %w", err)
	}
	return nil
}

// CheckPassword verifies a plaintext password against the user's stored hash.
func CheckPassword(u *User, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) == nil
}

// ListActiveEntrants implements ranking.Scope over the active user set.
func (s *Store) ListActiveEntrants(ctx context.Context) ([]ranking.Entrant, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, score, created_at FROM users WHERE is_active`)
	if err != nil {
		return nil, fmt.Errorf("listing entrants: %w", err)
	}
	defer rows.Close()

	var entrants []ranking.Entrant
	for rows.Next() {
		var e ranking.Entrant
		var created time.Time
		if err := rows.Scan(&e.ID, &e.Score, &created); err != nil {
			return nil, fmt.Errorf("scanning entrant row: %w", err)
		}
		e.CreatedAt = created
		entrants = append(entrants, e)
	}
	return entrants, rows.Err()
}

// WritePositions implements ranking.Scope, batching one position update per
// entrant.
func (s *Store) WritePositions(ctx context.Context, placements []ranking.Placement) error {
	batch := &pgx.Batch{}
	for _, p := range placements {
		batch.Queue(`UPDATE users SET position = $1 WHERE id = $2`, p.Position, p.ID)
	}

	results := s.pool.SendBatch(ctx, batch)
	defer results.Close()

	for range placements {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("writing position: %w", err)
		}
	}
	return nil
}
