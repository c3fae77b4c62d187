package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/lbessard/concours/internal/admin"
	"github.com/lbessard/concours/internal/api"
	"github.com/lbessard/concours/internal/auth"
	"github.com/lbessard/concours/internal/config"
	"github.com/lbessard/concours/internal/membership"
	"github.com/lbessard/concours/internal/metrics"
	"github.com/lbessard/concours/internal/podium"
	"github.com/lbessard/concours/internal/ratelimit"
	"github.com/lbessard/concours/internal/social"
	"github.com/lbessard/concours/internal/team"
	"github.com/lbessard/concours/internal/user"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the Concours API server",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := pgxpool.New(ctx, cfg.Database.URL)
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		return err
	}
	slog.Info("connected to database")

	userStore := user.NewStore(pool)
	teamStore := team.NewStore(pool)
	podiumStore := podium.NewStore(pool)
	adminStore := admin.NewStore(pool)

	tokens, err := auth.NewManager(cfg.Auth)
	if err != nil {
		return err
	}

	m := metrics.New()
	m.RegisterDBPoolCollector(func() metrics.PoolStats {
		stat := pool.Stat()
		return metrics.PoolStats{
			Total:    stat.TotalConns(),
			Idle:     stat.IdleConns(),
			Acquired: stat.AcquiredConns(),
			Max:      stat.MaxConns(),
		}
	})

	limiter := ratelimit.New(cfg.RateLimit.LoginBurst, cfg.RateLimit.Window)

	router := api.NewRouter(api.RouterDeps{
		Users:          userStore,
		Teams:          teamStore,
		Podium:         podiumStore,
		Admins:         adminStore,
		Ranked:         userStore,
		Coordinator:    membership.NewCoordinator(userStore, teamStore),
		Social:         social.NewManager(userStore),
		Tokens:         tokens,
		UserAuth:       user.NewAuthAdapter(userStore),
		AdminAuth:      admin.NewAuthAdapter(adminStore),
		LoginLimiter:   limiter,
		Metrics:        m,
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		DBPing:         pool.Ping,
	})

	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("server starting", "addr", cfg.Addr())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-sigCh
	slog.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	return srv.Shutdown(shutdownCtx)
}
