package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/lbessard/concours/internal/admin"
	"github.com/lbessard/concours/internal/auth"
	"github.com/lbessard/concours/internal/metrics"
	"github.com/lbessard/concours/internal/podium"
	"github.com/lbessard/concours/internal/ranking"
	"github.com/lbessard/concours/internal/ratelimit"
	"github.com/lbessard/concours/internal/team"
	"github.com/lbessard/concours/internal/user"
)

// UserStore is the slice of the user store the handlers need.
type UserStore interface {
	Create(ctx context.Context, in user.CreateUserInput) (*user.User, error)
	GetByID(ctx context.Context, id string) (*user.User, error)
	GetByUsername(ctx context.Context, username string) (*user.User, error)
	List(ctx context.Context, params user.ListParams) ([]*user.User, error)
	Top3(ctx context.Context, category string) ([]*user.User, error)
	Update(ctx context.Context, id string, in user.UpdateUserInput) (*user.User, error)
	SetScore(ctx context.Context, id string, score int64) (*user.User, error)
	SetActive(ctx context.Context, id string, active bool) (*user.User, error)
	TouchLogin(ctx context.Context, id string) error
}

// TeamStore is the slice of the team store the handlers need. Membership
// transitions go through the coordinator instead.
type TeamStore interface {
	GetByID(ctx context.Context, id string) (*team.Team, error)
	GetByName(ctx context.Context, name string) (*team.Team, error)
	List(ctx context.Context, params team.ListParams) ([]*team.Team, error)
	Update(ctx context.Context, id string, in team.UpdateTeamInput) (*team.Team, error)
	RecalculateScore(ctx context.Context, id string) (*team.Team, error)
	OverrideScore(ctx context.Context, id string, total int64) (*team.Team, error)
}

// PodiumStore is the slice of the podium store the handlers need.
type PodiumStore interface {
	Create(ctx context.Context, in podium.CreateEntryInput) (*podium.Entry, error)
	GetByID(ctx context.Context, id string) (*podium.Entry, error)
	List(ctx context.Context, params podium.ListParams) ([]*podium.Entry, error)
	Top3(ctx context.Context, category string) ([]*podium.Entry, error)
	Update(ctx context.Context, id string, in podium.UpdateEntryInput) (*podium.Entry, error)
	SoftDelete(ctx context.Context, id string) (*podium.Entry, error)
}

// AdminStore is the slice of the administrator store the handlers need.
type AdminStore interface {
	GetByID(ctx context.Context, id string) (*admin.Admin, error)
	GetByUsername(ctx context.Context, username string) (*admin.Admin, error)
}

// Coordinator runs membership transitions, keeping users and teams in sync.
type Coordinator interface {
	CreateTeam(ctx context.Context, creatorID string, adminCreated bool, in team.CreateTeamInput) (*team.Team, error)
	RequestJoin(ctx context.Context, userID, teamID string) (*team.Team, error)
	DecideRequest(ctx context.Context, deciderID, teamID, requestID string, approve bool) error
	Join(ctx context.Context, userID, teamID string) (*team.Team, error)
	Leave(ctx context.Context, userID, teamID string) error
	DeleteTeam(ctx context.Context, actorID, teamID string) error
}

// Social runs friend-graph transitions.
type Social interface {
	Request(ctx context.Context, fromID, toID string) error
	Decide(ctx context.Context, userID, requestID string, accept bool) error
	Unfriend(ctx context.Context, userID, friendID string) error
}

// RouterDeps holds all dependencies for the API router.
type RouterDeps struct {
	Users        UserStore
	Teams        TeamStore
	Podium       PodiumStore
	Admins       AdminStore
	Ranked       ranking.Scope
	Coordinator  Coordinator
	Social       Social
	Tokens       *auth.Manager
	UserAuth     auth.UserLookup
	AdminAuth    auth.AdminLookup
	LoginLimiter *ratelimit.Limiter
	Metrics      *metrics.Metrics

	AllowedOrigins []string
	DBPing         func(ctx context.Context) error
}

// NewRouter builds the chi router with all routes and middleware.
func NewRouter(deps RouterDeps) http.Handler {
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chimw.Recoverer)
	r.Use(requestObserver(deps.Metrics))
	if len(deps.AllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   deps.AllowedOrigins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
			ExposedHeaders:   []string{"X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset"},
			AllowCredentials: false,
			MaxAge:           86400,
		}))
	}

	// Handlers.
	users := newUsersHandler(deps)
	teams := newTeamsHandler(deps)
	entries := newPodiumHandler(deps)
	admins := newAuthHandler(deps)

	// Health check.
	r.Get("/health", healthHandler(deps.DBPing))

	// Metrics summary.
	if deps.Metrics != nil {
		r.Get("/metrics", deps.Metrics.Handler())
	}

	limited := func(next http.HandlerFunc) http.Handler {
		if deps.LoginLimiter == nil {
			return next
		}
		return ratelimit.Middleware(deps.LoginLimiter)(next)
	}

	// Public routes. The credential endpoints are rate limited per client.
	r.Method(http.MethodPost, "/api/users/register", limited(users.Register))
	r.Method(http.MethodPost, "/api/users/login", limited(users.Login))
	r.Method(http.MethodPost, "/api/auth/login", limited(admins.Login))
	r.Post("/api/auth/verify", admins.Verify)

	r.Get("/api/users", users.List)
	r.Get("/api/users/top3", users.Top3)
	r.Get("/api/teams", teams.List)
	r.Get("/api/teams/{id}", teams.Get)
	r.Get("/api/podium", entries.List)
	r.Get("/api/podium/top3", entries.Top3)
	r.Get("/api/podium/{id}", entries.Get)
	r.Post("/api/podium", entries.Create)
	r.Put("/api/podium/{id}", entries.Update)
	r.Delete("/api/podium/{id}", entries.Delete)

	// Routes requiring a user principal.
	r.Group(func(ur chi.Router) {
		ur.Use(auth.RequireUser(deps.Tokens, deps.UserAuth))

		ur.Get("/api/users/me", users.Me)
		ur.Put("/api/users/me", users.UpdateMe)
		ur.Put("/api/users/me/join-team", users.JoinTeam)
		ur.Put("/api/users/me/leave-team", users.LeaveTeam)
		ur.Get("/api/users/me/friends", users.Friends)
		ur.Get("/api/users/me/friend-requests", users.FriendRequests)
		ur.Put("/api/users/{id}/score", users.UpdateScore)
		ur.Delete("/api/users/{id}", users.Delete)
		ur.Post("/api/users/{id}/friend-request", users.SendFriendRequest)
		ur.Put("/api/users/friend-requests/{requestId}", users.DecideFriendRequest)
		ur.Delete("/api/users/friends/{friendId}", users.Unfriend)

		ur.Post("/api/teams", teams.Create)
		ur.Put("/api/teams/{id}", teams.Update)
		ur.Delete("/api/teams/{id}", teams.Delete)
		ur.Post("/api/teams/{id}/join", teams.RequestJoin)
		ur.Put("/api/teams/{id}/requests/{requestId}", teams.DecideRequest)
		ur.Delete("/api/teams/{id}/leave", teams.Leave)
	})

	// Routes requiring an administrator principal.
	r.Group(func(ar chi.Router) {
		ar.Use(auth.RequireAdmin(deps.Tokens, deps.AdminAuth))

		ar.Put("/api/users/{userId}/assign-team", users.AssignTeam)
		ar.Post("/api/admin/teams", teams.AdminCreate)
		ar.Put("/api/teams/{id}/score", teams.OverrideScore)
	})

	return r
}

// healthHandler reports liveness and, when a pinger is wired, database
// reachability.
func healthHandler(ping func(ctx context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := map[string]string{"status": "ok", "database": "connected"}
		code := http.StatusOK
		if ping != nil {
			if err := ping(r.Context()); err != nil {
				status["status"] = "degraded"
				status["database"] = "unreachable"
				code = http.StatusServiceUnavailable
			}
		}
		writeJSON(w, code, status)
	}
}

// requestObserver logs every request through slog and, when metrics are
// wired, records the request counter and duration under the chi route
// pattern.
func requestObserver(m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			elapsed := time.Since(start)
			slog.Info("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"duration_ms", elapsed.Milliseconds(),
				"bytes", ww.BytesWritten(),
			)

			if m != nil {
				pattern := chi.RouteContext(r.Context()).RoutePattern()
				if pattern == "" {
					pattern = "unmatched"
				}
				m.IncHTTPRequest(r.Method, pattern, ww.Status())
				m.ObserveHTTPDuration(r.Method, pattern, elapsed.Seconds())
			}
		})
	}
}
