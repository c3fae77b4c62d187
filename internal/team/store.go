package team

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const teamColumns = `id, name, description, creator_id, members, invites, join_requests,
	 category, total_score, average_score, max_members, is_active, created_at, updated_at`

// Store provides database operations for teams. Aggregate recomputation
// reads member scores straight from the users collection.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a new team store backed by the given connection pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func scanTeam(scan func(dest ...any) error) (*Team, error) {
	t := &Team{}
	var membersJSON, invitesJSON, requestsJSON []byte
	err := scan(&t.ID, &t.Name, &t.Description, &t.CreatorID, &membersJSON,
		&invitesJSON, &requestsJSON, &t.Category, &t.TotalScore, &t.AverageScore,
		&t.MaxMembers, &t.IsActive, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if len(membersJSON) > 0 {
		if err := json.Unmarshal(membersJSON, &t.Members); err != nil {
			return nil, fmt.Errorf("unmarshaling members: %w", err)
		}
	}
	if len(invitesJSON) > 0 {
		if err := json.Unmarshal(invitesJSON, &t.Invites); err != nil {
			return nil, fmt.Errorf("unmarshaling invites: %w", err)
		}
	}
	if len(requestsJSON) > 0 {
		if err := json.Unmarshal(requestsJSON, &t.JoinRequests); err != nil {
			return nil, fmt.Errorf("unmarshaling join requests: %w", err)
		}
	}
	if t.Members == nil {
		t.Members = []string{}
	}
	if t.Invites == nil {
		t.Invites = []Invite{}
	}
	if t.JoinRequests == nil {
		t.JoinRequests = []JoinRequest{}
	}
	return t, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// Create inserts a new team. Returns ErrNameTaken on a name collision.
func (s *Store) Create(ctx context.Context, in CreateTeamInput) (*Team, error) {
	members := in.Members
	if members == nil {
		members = []string{}
	}
	invites := in.Invites
	if invites == nil {
		invites = []Invite{}
	}
	for i := range invites {
		if invites[i].AddedAt.IsZero() {
			invites[i].AddedAt = time.Now()
		}
	}

	membersJSON, err := json.Marshal(members)
	if err != nil {
		return nil, fmt.Errorf("marshaling members: %w", err)
	}
	invitesJSON, err := json.Marshal(invites)
	if err != nil {
		return nil, fmt.Errorf("marshaling invites: %w", err)
	}

	t, err := scanTeam(func(dest ...any) error {
		return s.pool.QueryRow(ctx,
			`INSERT INTO teams (id, name, description, creator_id, members, invites, category, max_members)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			 RETURNING `+teamColumns,
			uuid.NewString(), in.Name, in.Description, in.CreatorID,
			membersJSON, invitesJSON, in.Category, in.MaxMembers,
		).Scan(dest...)
	})
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrNameTaken
		}
		return nil, fmt.Errorf("creating team: %w", err)
	}
	return t, nil
}

// GetByID retrieves a team by primary key.
func (s *Store) GetByID(ctx context.Context, id string) (*Team, error) {
	t, err := scanTeam(func(dest ...any) error {
		return s.pool.QueryRow(ctx,
			`SELECT `+teamColumns+` FROM teams WHERE id = $1`, id,
		).Scan(dest...)
	})
	if err != nil {
		return nil, fmt.Errorf("getting team by id: %w", err)
	}
	return t, nil
}

// GetByName retrieves a team by its unique name.
func (s *Store) GetByName(ctx context.Context, name string) (*Team, error) {
	t, err := scanTeam(func(dest ...any) error {
		return s.pool.QueryRow(ctx,
			`SELECT `+teamColumns+` FROM teams WHERE name = $1`, name,
		).Scan(dest...)
	})
	if err != nil {
		return nil, fmt.Errorf("getting team by name: %w", err)
	}
	return t, nil
}

// List returns active teams, aggregates freshly recomputed, sorted by
// totalScore descending. Reads pay the recompute cost so they never see a
// stale aggregate.
func (s *Store) List(ctx context.Context, params ListParams) ([]*Team, error) {
	query := `SELECT ` + teamColumns + ` FROM teams WHERE is_active`
	var args []any
	argIdx := 1

	if params.Category != "" && params.Category != "all" {
		query += fmt.Sprintf(` AND category = $%d`, argIdx)
		args = append(args, params.Category)
		argIdx++
	}
	if params.Search != "" {
		query += fmt.Sprintf(` AND name ILIKE $%d`, argIdx)
		args = append(args, "%"+params.Search+"%")
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing teams: %w", err)
	}
	defer rows.Close()

	var teams []*Team
	for rows.Next() {
		t, err := scanTeam(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scanning team row: %w", err)
		}
		teams = append(teams, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i, t := range teams {
		fresh, err := s.RecalculateScore(ctx, t.ID)
		if err != nil {
			return nil, err
		}
		teams[i] = fresh
	}

	sort.SliceStable(teams, func(i, j int) bool {
		return teams[i].TotalScore > teams[j].TotalScore
	})
	return teams, nil
}

// Update performs a partial update on the team with the given id.
func (s *Store) Update(ctx context.Context, id string, in UpdateTeamInput) (*Team, error) {
	var setClauses []string
	var args []any
	argIdx := 1

	if in.Name != nil {
		setClauses = append(setClauses, fmt.Sprintf("name = $%d", argIdx))
		args = append(args, *in.Name)
		argIdx++
	}
	if in.Description != nil {
		setClauses = append(setClauses, fmt.Sprintf("description = $%d", argIdx))
		args = append(args, *in.Description)
		argIdx++
	}
	if in.Category != nil {
		setClauses = append(setClauses, fmt.Sprintf("category = $%d", argIdx))
		args = append(args, *in.Category)
		argIdx++
	}
	if in.MaxMembers != nil {
		setClauses = append(setClauses, fmt.Sprintf("max_members = $%d", argIdx))
		args = append(args, *in.MaxMembers)
		argIdx++
	}
	if in.Invites != nil {
		invites := *in.Invites
		for i := range invites {
			if invites[i].AddedAt.IsZero() {
				invites[i].AddedAt = time.Now()
			}
		}
		invitesJSON, err := json.Marshal(invites)
		if err != nil {
			return nil, fmt.Errorf("marshaling invites: %w", err)
		}
		setClauses = append(setClauses, fmt.Sprintf("invites = $%d", argIdx))
		args = append(args, invitesJSON)
		argIdx++
	}

	if len(setClauses) == 0 {
		return s.GetByID(ctx, id)
	}
	setClauses = append(setClauses, "updated_at = now()")

	args = append(args, id)
	query := fmt.Sprintf(
		`UPDATE teams SET %s WHERE id = $%d RETURNING `+teamColumns,
		strings.Join(setClauses, ", "), argIdx,
	)

	t, err := scanTeam(func(dest ...any) error {
		return s.pool.QueryRow(ctx, query, args...).Scan(dest...)
	})
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrNameTaken
		}
		return nil, fmt.Errorf("updating team: %w", err)
	}
	return t, nil
}

// SetMembers replaces the team's member set. The user side of the relation
// is maintained by the membership coordinator.
func (s *Store) SetMembers(ctx context.Context, id string, members []string) error {
	if members == nil {
		members = []string{}
	}
	data, err := json.Marshal(members)
	if err != nil {
		return fmt.Errorf("marshaling members: %w", err)
	}
	_, err = s.pool.Exec(ctx,
		`UPDATE teams SET members = $1, updated_at = now() WHERE id = $2`, data, id)
	if err != nil {
		return fmt.Errorf("setting members: %w", err)
	}
	return nil
}

// SetJoinRequests replaces the team's join request list.
func (s *Store) SetJoinRequests(ctx context.Context, id string, requests []JoinRequest) error {
	if requests == nil {
		requests = []JoinRequest{}
	}
	data, err := json.Marshal(requests)
	if err != nil {
		return fmt.Errorf("marshaling join requests: %w", err)
	}
	_, err = s.pool.Exec(ctx,
		`UPDATE teams SET join_requests = $1, updated_at = now() WHERE id = $2`, data, id)
	if err != nil {
		return fmt.Errorf("setting join requests: %w", err)
	}
	return nil
}

// RecalculateScore reloads member scores and writes back totalScore and
// averageScore. Returns the refreshed team.
func (s *Store) RecalculateScore(ctx context.Context, id string) (*Team, error) {
	t, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	scores, err := s.memberScores(ctx, t.Members)
	if err != nil {
		return nil, err
	}

	total, average := Aggregate(scores)
	fresh, err := scanTeam(func(dest ...any) error {
		return s.pool.QueryRow(ctx,
			`UPDATE teams SET total_score = $1, average_score = $2, updated_at = now()
			 WHERE id = $3 RETURNING `+teamColumns,
			total, average, id,
		).Scan(dest...)
	})
	if err != nil {
		return nil, fmt.Errorf("writing team aggregates: %w", err)
	}
	return fresh, nil
}

// OverrideScore overwrites totalScore directly (manual correction) and
// recomputes averageScore from the override, bypassing the member sum.
func (s *Store) OverrideScore(ctx context.Context, id string, total int64) (*Team, error) {
	t, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	var average float64
	if len(t.Members) > 0 {
		average = float64(total) / float64(len(t.Members))
	}

	fresh, err := scanTeam(func(dest ...any) error {
		return s.pool.QueryRow(ctx,
			`UPDATE teams SET total_score = $1, average_score = $2, updated_at = now()
			 WHERE id = $3 RETURNING `+teamColumns,
			total, average, id,
		).Scan(dest...)
	})
	if err != nil {
		return nil, fmt.Errorf("overriding team score: %w", err)
	}
	return fresh, nil
}

// Delete removes a team permanently. Clearing member references is the
// membership coordinator's job and must happen first.
func (s *Store) Delete(ctx context.Context, id string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM teams WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting team: %w", err)
	}
	return nil
}

func (s *Store) memberScores(ctx context.Context, members []string) ([]int64, error) {
	if len(members) == 0 {
		return nil, nil
	}

	rows, err := s.pool.Query(ctx,
		`SELECT score FROM users WHERE id = ANY($1)`, members)
	if err != nil {
		return nil, fmt.Errorf("loading member scores: %w", err)
	}
	defer rows.Close()

	var scores []int64
	for rows.Next() {
		var score int64
		if err := rows.Scan(&score); err != nil {
			return nil, fmt.Errorf("scanning member score: %w", err)
		}
		scores = append(scores, score)
	}
	return scores, rows.Err()
}
