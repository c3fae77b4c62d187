package podium

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const entryColumns = `id, name, position, score, team, category, is_active, created_at, updated_at`

// Store provides database operations for podium entries.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a new podium store backed by the given connection pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func scanEntry(scan func(dest ...any) error) (*Entry, error) {
	e := &Entry{}
	err := scan(&e.ID, &e.Name, &e.Position, &e.Score, &e.Team, &e.Category,
		&e.IsActive, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return e, nil
}

// occupant returns the active entry holding the given position, excluding
// excludeID (pass "" for none). Returns nil when the position is free.
func (s *Store) occupant(ctx context.Context, position int, excludeID string) (*Entry, error) {
	e, err := scanEntry(func(dest ...any) error {
		return s.pool.QueryRow(ctx,
			`SELECT `+entryColumns+` FROM podium_entries
			 WHERE position = $1 AND is_active AND id <> $2`,
			position, excludeID,
		).Scan(dest...)
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("checking position occupancy: %w", err)
	}
	return e, nil
}

// Create inserts a new podium entry. The position must be free among active
// entries; a conflict fails with a PositionTakenError naming the occupant.
func (s *Store) Create(ctx context.Context, in CreateEntryInput) (*Entry, error) {
	occ, err := s.occupant(ctx, in.Position, "")
	if err != nil {
		return nil, err
	}
	if occ != nil {
		return nil, &PositionTakenError{Position: in.Position, Occupant: occ.Name}
	}

	e, err := scanEntry(func(dest ...any) error {
		return s.pool.QueryRow(ctx,
			`INSERT INTO podium_entries (id, name, position, score, team, category)
			 VALUES ($1, $2, $3, $4, $5, $6)
			 RETURNING `+entryColumns,
			uuid.NewString(), in.Name, in.Position, in.Score, in.Team, in.Category,
		).Scan(dest...)
	})
	if err != nil {
		return nil, fmt.Errorf("creating podium entry: %w", err)
	}
	return e, nil
}

// GetByID retrieves an entry by primary key.
func (s *Store) GetByID(ctx context.Context, id string) (*Entry, error) {
	e, err := scanEntry(func(dest ...any) error {
		return s.pool.QueryRow(ctx,
			`SELECT `+entryColumns+` FROM podium_entries WHERE id = $1`, id,
		).Scan(dest...)
	})
	if err != nil {
		return nil, fmt.Errorf("getting podium entry by id: %w", err)
	}
	return e, nil
}

// List returns active entries ordered by position ascending, optionally
// filtered by category.
func (s *Store) List(ctx context.Context, params ListParams) ([]*Entry, error) {
	limit := params.Limit
	if limit <= 0 {
		limit = 10
	}

	query := `SELECT ` + entryColumns + ` FROM podium_entries WHERE is_active`
	var args []any
	if params.Category != "" {
		query += ` AND category = $1`
		args = append(args, params.Category)
	}
	query += fmt.Sprintf(` ORDER BY position ASC LIMIT %d`, limit)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing podium entries: %w", err)
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		e, err := scanEntry(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scanning podium row: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Top3 returns the active entries holding positions 1-3, ordered ascending.
// Fewer than three results simply means fewer entries exist.
func (s *Store) Top3(ctx context.Context, category string) ([]*Entry, error) {
	query := `SELECT ` + entryColumns + ` FROM podium_entries
	 WHERE is_active AND position <= 3`
	var args []any
	if category != "" {
		query += ` AND category = $1`
		args = append(args, category)
	}
	query += ` ORDER BY position ASC LIMIT 3`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("getting podium top 3: %w", err)
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		e, err := scanEntry(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scanning podium row: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Update performs a partial update. A position change is checked against
// the other active entries first.
func (s *Store) Update(ctx context.Context, id string, in UpdateEntryInput) (*Entry, error) {
	if in.Position != nil {
		occ, err := s.occupant(ctx, *in.Position, id)
		if err != nil {
			return nil, err
		}
		if occ != nil {
			return nil, &PositionTakenError{Position: *in.Position, Occupant: occ.Name}
		}
	}

	var setClauses []string
	var args []any
	argIdx := 1

	if in.Name != nil {
		setClauses = append(setClauses, fmt.Sprintf("name = $%d", argIdx))
		args = append(args, *in.Name)
		argIdx++
	}
	if in.Position != nil {
		setClauses = append(setClauses, fmt.Sprintf("position = $%d", argIdx))
		args = append(args, *in.Position)
		argIdx++
	}
	if in.Score != nil {
		setClauses = append(setClauses, fmt.Sprintf("score = $%d", argIdx))
		args = append(args, *in.Score)
		argIdx++
	}
	if in.Team != nil {
		setClauses = append(setClauses, fmt.Sprintf("team = $%d", argIdx))
		args = append(args, *in.Team)
		argIdx++
	}
	if in.Category != nil {
		setClauses = append(setClauses, fmt.Sprintf("category = $%d", argIdx))
		args = append(args, *in.Category)
		argIdx++
	}

	if len(setClauses) == 0 {
		return s.GetByID(ctx, id)
	}
	setClauses = append(setClauses, "updated_at = now()")

	args = append(args, id)
	query := fmt.Sprintf(
		`UPDATE podium_entries SET %s WHERE id = $%d RETURNING `+entryColumns,
		strings.Join(setClauses, ", "), argIdx,
	)

	e, err := scanEntry(func(dest ...any) error {
		return s.pool.QueryRow(ctx, query, args...).Scan(dest...)
	})
	if err != nil {
		return nil, fmt.Errorf("updating podium entry: %w", err)
	}
	return e, nil
}

// SoftDelete deactivates an entry, freeing its position for reuse.
func (s *Store) SoftDelete(ctx context.Context, id string) (*Entry, error) {
	e, err := scanEntry(func(dest ...any) error {
		return s.pool.QueryRow(ctx,
			`UPDATE podium_entries SET is_active = false, updated_at = now()
			 WHERE id = $1 RETURNING `+entryColumns, id,
		).Scan(dest...)
	})
	if err != nil {
		return nil, fmt.Errorf("deleting podium entry: %w", err)
	}
	return e, nil
}
