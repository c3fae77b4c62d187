package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/lbessard/concours/internal/admin"
	"github.com/lbessard/concours/internal/config"
)

var (
	seedAdminUsername string
	seedAdminPassword string
	seedAdminRole     string
)

var seedAdminCmd = &cobra.Command{
	Use:   "seed-admin",
	Short: "Create an administrator account",
	RunE:  runSeedAdmin,
}

func init() {
	seedAdminCmd.Flags().StringVar(&seedAdminUsername, "username", "", "administrator username (required)")
	seedAdminCmd.Flags().StringVar(&seedAdminPassword, "password", "", "administrator password (required)")
	seedAdminCmd.Flags().StringVar(&seedAdminRole, "role", "admin", "administrator role")
	_ = seedAdminCmd.MarkFlagRequired("username")
	_ = seedAdminCmd.MarkFlagRequired("password")
	rootCmd.AddCommand(seedAdminCmd)
}

func runSeedAdmin(cmd *cobra.Command, args []string) error {
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

	store := admin.NewStore(pool)
	a, err := store.Create(ctx, admin.CreateAdminInput{
		Username: seedAdminUsername,
		Password: seedAdminPassword,
		Role:     seedAdminRole,
	})
	if err != nil {
		if errors.Is(err, admin.ErrDuplicate) {
			return fmt.Errorf("administrator %q already exists", seedAdminUsername)
		}
		return err
	}

	slog.Info("created administrator", "username", a.Username, "id", a.ID, "role", a.Role)
	return nil
}
