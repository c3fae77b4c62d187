// Package ranking recomputes leaderboard positions. The recalculation is
// full-scope: every active entrant is reloaded, ordered, and written back
// with a fresh 1-based position. Acceptable at competition scale, where the
// entrant count stays small.
package ranking

import (
	"context"
	"fmt"
	"sort"
	"time"
)

// Entrant is the minimal view of a rankable entity.
type Entrant struct {
	ID        string
	Score     int64
	CreatedAt time.Time
}

// Placement assigns a 1-based position to an entrant.
type Placement struct {
	ID       string
	Position int64
}

// Scope abstracts the collection being ranked so the engine runs against
// the user store or an in-memory fake.
type Scope interface {
	ListActiveEntrants(ctx context.Context) ([]Entrant, error)
	WritePositions(ctx context.Context, placements []Placement) error
}

// Order sorts entrants into ranking order: score descending, ties broken
// by creation time ascending, then by id. The tie-break is deterministic so
// repeated recalculations never reshuffle equal scores.
func Order(entrants []Entrant) []Entrant {
	ordered := make([]Entrant, len(entrants))
	copy(ordered, entrants)
	sort.SliceStable(ordered, func(i, j int) bool {
		a, b := ordered[i], ordered[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
	return ordered
}

// Assign converts entrants into placements 1..N following Order.
func Assign(entrants []Entrant) []Placement {
	ordered := Order(entrants)
	placements := make([]Placement, len(ordered))
	for i, e := range ordered {
		placements[i] = Placement{ID: e.ID, Position: int64(i + 1)}
	}
	return placements
}

// Recalculate reloads every active entrant in the scope and writes back
// fresh positions. Returns the number of entrants ranked.
func Recalculate(ctx context.Context, scope Scope) (int, error) {
	entrants, err := scope.ListActiveEntrants(ctx)
	if err != nil {
		return 0, fmt.Errorf("listing entrants: %w", err)
	}

	placements := Assign(entrants)
	if len(placements) == 0 {
		return 0, nil
	}

	if err := scope.WritePositions(ctx, placements); err != nil {
		return 0, fmt.Errorf("writing positions: %w", err)
	}
	return len(placements), nil
}
