package admin

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/crypto/bcrypt"
)

// ErrDuplicate is returned when the admin username is already taken.
var ErrDuplicate = errors.New("admin username already in use")

// Store provides database operations for administrators.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a new admin store backed by the given connection pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Create inserts a new administrator with a bcrypt-hashed password. Role
// defaults to "admin".
func (s *Store) Create(ctx context.Context, in CreateAdminInput) (*Admin, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	role := in.Role
	if role == "" {
		role = "admin"
	}

	a := &Admin{}
	err = s.pool.QueryRow(ctx,
		`INSERT INTO admins (id, username, password_hash, role)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, username, password_hash, role, is_active, created_at`,
		uuid.NewString(), in.Username, string(hash), role,
	).Scan(&a.ID, &a.Username, &a.PasswordHash, &a.Role, &a.IsActive, &a.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, ErrDuplicate
		}
		return nil, fmt.Errorf("creating admin: %w", err)
	}
	return a, nil
}

// GetByID retrieves an administrator by primary key.
func (s *Store) GetByID(ctx context.Context, id string) (*Admin, error) {
	a := &Admin{}
	err := s.pool.QueryRow(ctx,
		`SELECT id, username, password_hash, role, is_active, created_at
		 FROM admins WHERE id = $1`, id,
	).Scan(&a.ID, &a.Username, &a.PasswordHash, &a.Role, &a.IsActive, &a.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("getting admin by id: %w", err)
	}
	return a, nil
}

// GetByUsername retrieves an active administrator by username, used at
// login.
func (s *Store) GetByUsername(ctx context.Context, username string) (*Admin, error) {
	a := &Admin{}
	err := s.pool.QueryRow(ctx,
		`SELECT id, username, password_hash, role, is_active, created_at
		 FROM admins WHERE username = $1 AND is_active`, username,
	).Scan(&a.ID, &a.Username, &a.PasswordHash, &a.Role, &a.IsActive, &a.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("getting admin by username: %w", err)
	}
	return a, nil
}

// CheckPassword verifies a plaintext password against the admin's stored
// hash.
func CheckPassword(a *Admin, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(a.PasswordHash), []byte(password)) == nil
}
