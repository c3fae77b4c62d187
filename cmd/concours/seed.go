package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/lbessard/concours/internal/config"
	"github.com/lbessard/concours/internal/membership"
	"github.com/lbessard/concours/internal/podium"
	"github.com/lbessard/concours/internal/ranking"
	"github.com/lbessard/concours/internal/team"
	"github.com/lbessard/concours/internal/user"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed demo users, a team, and podium entries",
	RunE:  runSeed,
}

func init() {
	rootCmd.AddCommand(seedCmd)
}

var demoUsers = []struct {
	input user.CreateUserInput
	score int64
}{
	{user.CreateUserInput{Username: "camille", Email: "camille@example.com", Password: "demo-pass", Name: "Camille Perrin", Category: "Tech"}, 320},
	{user.CreateUserInput{Username: "jules", Email: "jules@example.com", Password: "demo-pass", Name: "Jules Garnier", Category: "Tech"}, 275},
	{user.CreateUserInput{Username: "manon", Email: "manon@example.com", Password: "demo-pass", Name: "Manon Lefèvre", Category: "Design"}, 410},
	{user.CreateUserInput{Username: "theo", Email: "theo@example.com", Password: "demo-pass", Name: "Théo Blanchard", Category: "Marketing"}, 150},
}

var demoPodium = []podium.CreateEntryInput{
	{Name: "Manon Lefèvre", Position: 1, Score: 410, Category: "individual"},
	{Name: "Camille Perrin", Position: 2, Score: 320, Category: "individual"},
	{Name: "Jules Garnier", Position: 3, Score: 275, Category: "individual"},
}

func runSeed(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, cfg.Database.URL)
	if err != nil {
		return err
	}
	defer pool.Close()

	userStore := user.NewStore(pool)
	teamStore := team.NewStore(pool)
	podiumStore := podium.NewStore(pool)
	coord := membership.NewCoordinator(userStore, teamStore)

	// Check if seed has already run.
	existing, err := userStore.List(ctx, user.ListParams{Limit: 1})
	if err != nil {
		return fmt.Errorf("checking existing users: %w", err)
	}
	if len(existing) > 0 {
		slog.Info("demo data already exists, skipping seed")
		return nil
	}

	var created []*user.User
	for _, demo := range demoUsers {
		u, err := userStore.Create(ctx, demo.input)
		if err != nil {
			return fmt.Errorf("creating user %q: %w", demo.input.Username, err)
		}
		if _, err := userStore.SetScore(ctx, u.ID, demo.score); err != nil {
			return fmt.Errorf("scoring user %q: %w", demo.input.Username, err)
		}
		slog.Info("created user", "username", u.Username, "id", u.ID)
		created = append(created, u)
	}

	t, err := coord.CreateTeam(ctx, created[0].ID, false, team.CreateTeamInput{
		Name:        "Les Pionniers",
		Description: "Demo team seeded for local development.",
		Category:    "Tech",
		MaxMembers:  10,
	})
	if err != nil {
		return fmt.Errorf("creating demo team: %w", err)
	}
	if _, err := coord.Join(ctx, created[1].ID, t.ID); err != nil {
		return fmt.Errorf("joining demo team: %w", err)
	}
	slog.Info("created team", "name", t.Name, "id", t.ID)

	for _, input := range demoPodium {
		e, err := podiumStore.Create(ctx, input)
		if err != nil {
			return fmt.Errorf("creating podium entry %q: %w", input.Name, err)
		}
		slog.Info("created podium entry", "name", e.Name, "position", e.Position)
	}

	placed, err := ranking.Recalculate(ctx, userStore)
	if err != nil {
		return fmt.Errorf("recalculating positions: %w", err)
	}

	fmt.Printf("\n=== Demo Data Seeded ===\n")
	fmt.Printf("Users:  %d (ranked %d)\n", len(created), placed)
	fmt.Printf("Team:   %s\n", t.Name)
	fmt.Printf("Podium: %d entries\n", len(demoPodium))
	fmt.Printf("\nTry it:\n")
	fmt.Printf("  curl http://localhost:8080/api/users/top3\n")
	fmt.Printf("  curl http://localhost:8080/api/teams\n")

	return nil
}
